/**
 * @description
 * HTTP router setup for the payout service using go-chi/chi. The routes are a thin
 * adapter over app.Service for server-to-server callers.
 */
package api

import (
	"net/http"
	"time"

	"github.com/Deed3Labs/Protocol-Contracts-sub005/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter creates a new Chi router and registers payout routes.
func NewRouter(h *Handler, internalKey string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(metrics.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Payout service is healthy"))
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/payouts", func(r chi.Router) {
		r.Use(InternalAuthMiddleware(internalKey))
		r.Post("/eligibility", h.handleEnsureEligibility)
		r.Post("/dispatch", h.handleDispatch)
	})

	return r
}
