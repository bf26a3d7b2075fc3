package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/apperr"
	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/chat"
	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/relay"
	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/store"
)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	chat   *chat.Service
	relay  *relay.Relay
	data   store.DataStore
	redis  *store.RedisStore
	logger zerolog.Logger
}

// NewHandler creates a new Handler. data and redis may be nil when the
// service runs without them.
func NewHandler(svc *chat.Service, r *relay.Relay, data store.DataStore, redis *store.RedisStore, logger zerolog.Logger) *Handler {
	return &Handler{chat: svc, relay: r, data: data, redis: redis, logger: logger}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, kind apperr.Kind, message string) {
	h.JSON(w, status, ErrorResponse{Error: message, Kind: string(kind)})
}

// Fail renders err by kind. Causes are logged, never sent to the client.
func (h *Handler) Fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
		// Client went away; nobody is listening.
		return
	}
	if errors.Is(err, context.DeadlineExceeded) {
		h.Error(w, http.StatusGatewayTimeout, apperr.KindInternal, "request timed out")
		return
	}

	kind := apperr.KindOf(err)
	status := statusFor(kind)
	detail := apperr.Detail(err)
	if kind == apperr.KindInternal {
		detail = "internal error"
	}

	event := h.logger.Warn()
	if status >= http.StatusInternalServerError {
		event = h.logger.Error()
	}
	event.Err(err).
		Str("kind", string(kind)).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Msg("request failed")

	h.Error(w, status, kind, detail)
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindGateDenied:
		return http.StatusForbidden
	case apperr.KindNoSponsorWallet:
		return http.StatusConflict
	case apperr.KindWalletSwitchFailed:
		return http.StatusBadGateway
	case apperr.KindGateUnavailable, apperr.KindRelayUnavailable:
		return http.StatusServiceUnavailable
	case apperr.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// decode reads a JSON body into v, rendering a validation error on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.Error(w, http.StatusRequestEntityTooLarge, apperr.KindValidation, "request body too large")
			return false
		}
		h.Error(w, http.StatusBadRequest, apperr.KindValidation, "invalid JSON body")
		return false
	}
	return true
}

// sanitizeContent removes control characters other than newlines and tabs.
func sanitizeContent(content string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, content)
}
