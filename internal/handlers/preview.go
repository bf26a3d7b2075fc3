package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// CollectionPreview returns display metadata for a collection.
func (h *Handler) CollectionPreview(w http.ResponseWriter, r *http.Request) {
	p, err := h.chat.CollectionPreview(r.Context(), chi.URLParam(r, "address"))
	if err != nil {
		h.Fail(w, r, err)
		return
	}
	h.JSON(w, http.StatusOK, p)
}
