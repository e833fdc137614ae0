// Package httptransport is the thin HTTP layer. It delegates to domain
// services without embedding business logic so transport concerns remain
// isolated.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"chatvault/internal/platform/health"
	"chatvault/internal/platform/middleware"
)

// NewRouter wires all public endpoints with middleware.
func NewRouter(consent *ConsentHandler, collect *CollectHandler, checker *health.Handler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))

		r.Post("/v1/consent/grant", consent.handleGrant)
		r.Post("/v1/consent/revoke", consent.handleRevoke)
		r.Get("/v1/consent/status", consent.handleStatus)
	})

	// A collection pass walks a whole history window; it gets no request
	// timeout and is bounded by its own context instead.
	r.Post("/v1/collect", collect.handleCollect)

	checker.Register(r)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
