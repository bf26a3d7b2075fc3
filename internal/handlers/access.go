package handlers

import (
	"net/http"
)

// AccessRequest represents the access check request.
type AccessRequest struct {
	Wallets           []string `json:"wallets"`
	CollectionAddress string   `json:"collection_address"`
}

// AccessResponse represents the access check response.
type AccessResponse struct {
	HasAccess bool `json:"has_access"`
}

// VerifyAccess reports whether any of the wallets holds a token of the collection.
func (h *Handler) VerifyAccess(w http.ResponseWriter, r *http.Request) {
	var req AccessRequest
	if !h.decode(w, r, &req) {
		return
	}

	ok, err := h.chat.VerifyAccess(r.Context(), req.Wallets, req.CollectionAddress)
	if err != nil {
		h.Fail(w, r, err)
		return
	}

	h.JSON(w, http.StatusOK, AccessResponse{HasAccess: ok})
}
