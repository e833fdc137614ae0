package httptransport

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"

	"chatvault/internal/collect"
	transportjson "chatvault/internal/transport/http/json"
	"chatvault/internal/transport/http/shared"
	dErrors "chatvault/pkg/domain-errors"
)

// CollectRunner triggers one collection pass.
type CollectRunner interface {
	Run(ctx context.Context) (collect.Summary, error)
}

// CollectHandler guards the collection trigger behind a static operator
// token. The response carries aggregate counts only.
type CollectHandler struct {
	logger *slog.Logger
	runner CollectRunner
	token  string
}

func NewCollectHandler(runner CollectRunner, token string, logger *slog.Logger) *CollectHandler {
	return &CollectHandler{logger: logger, runner: runner, token: token}
}

func (h *CollectHandler) handleCollect(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid operator token"))
		return
	}
	if h.runner == nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "no history source configured"))
		return
	}

	summary, err := h.runner.Run(r.Context())
	if err != nil {
		h.logger.Error("collection pass failed", "error", err)
		shared.WriteError(w, err)
		return
	}
	transportjson.WriteJSON(w, http.StatusOK, summary)
}

func (h *CollectHandler) authorized(r *http.Request) bool {
	if h.token == "" {
		return false
	}
	provided := r.Header.Get("X-Operator-Token")
	return subtle.ConstantTimeCompare([]byte(provided), []byte(h.token)) == 1
}
