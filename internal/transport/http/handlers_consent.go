package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"chatvault/internal/consent/models"
	transportjson "chatvault/internal/transport/http/json"
	"chatvault/internal/transport/http/shared"
	dErrors "chatvault/pkg/domain-errors"
)

// ConsentService is the slice of the consent domain the transport layer
// calls into.
type ConsentService interface {
	Grant(ctx context.Context, userID, rank string) error
	Revoke(ctx context.Context, userID string) error
	Status(ctx context.Context, userID string) (models.Status, error)
}

// ConsentHandler handles consent lifecycle endpoints. It stays thin:
// parse, delegate, translate errors.
type ConsentHandler struct {
	logger  *slog.Logger
	consent ConsentService
}

func NewConsentHandler(consent ConsentService, logger *slog.Logger) *ConsentHandler {
	return &ConsentHandler{logger: logger, consent: consent}
}

type grantRequest struct {
	UserID string `json:"user_id"`
	Rank   string `json:"rank"`
}

type revokeRequest struct {
	UserID string `json:"user_id"`
}

func (h *ConsentHandler) handleGrant(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	if err := h.consent.Grant(r.Context(), req.UserID, req.Rank); err != nil {
		shared.WriteError(w, err)
		return
	}
	transportjson.WriteJSON(w, http.StatusOK, map[string]string{"status": "granted"})
}

func (h *ConsentHandler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	var req revokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	if err := h.consent.Revoke(r.Context(), req.UserID); err != nil {
		shared.WriteError(w, err)
		return
	}
	transportjson.WriteJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

func (h *ConsentHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")

	status, err := h.consent.Status(r.Context(), userID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	transportjson.WriteJSON(w, http.StatusOK, map[string]string{"status": string(status)})
}
