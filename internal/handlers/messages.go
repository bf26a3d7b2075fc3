package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/chat"
	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/models"
)

// MessagesResponse represents the fetch messages response.
type MessagesResponse struct {
	Messages []models.Message `json:"messages"`
	Count    int              `json:"count"`
}

// SendMessageRequest represents the send message request.
type SendMessageRequest struct {
	Sender  string `json:"sender"`
	Content string `json:"content"`
	Kind    string `json:"kind,omitempty"`
}

// SendMessageResponse represents the send message response.
type SendMessageResponse struct {
	Message models.Message `json:"message"`
}

// FetchMessages returns a group's log. The id is a group id or a collection address.
func (h *Handler) FetchMessages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	msgs, err := h.chat.FetchMessages(r.Context(), id)
	if err != nil {
		h.Fail(w, r, err)
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}

	h.JSON(w, http.StatusOK, MessagesResponse{Messages: msgs, Count: len(msgs)})
}

// SendMessage posts a message to a group.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if !h.decode(w, r, &req) {
		return
	}

	msg, err := h.chat.SendMessage(r.Context(), chat.SendRequest{
		GroupID: chi.URLParam(r, "id"),
		Sender:  req.Sender,
		Content: sanitizeContent(req.Content),
		Kind:    models.Kind(req.Kind),
	})
	if err != nil {
		h.Fail(w, r, err)
		return
	}

	h.JSON(w, http.StatusCreated, SendMessageResponse{Message: msg})
}
