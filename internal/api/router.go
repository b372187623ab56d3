// Package api wires the HTTP surface: routes, middleware, handlers.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/riegen-io/riegen/internal/api/middleware"
	"github.com/riegen-io/riegen/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	RateLimit *mw.RateLimit

	HealthHandler        http.HandlerFunc
	CreateReportHandler  http.HandlerFunc
	GetReportHandler     http.HandlerFunc
	ProcessReportHandler http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public health check
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	// Rate-limited report routes
	r.Group(func(r chi.Router) {
		if deps.RateLimit != nil {
			r.Use(deps.RateLimit.Limit)
		}

		r.Post("/api/v1/reports", orNotImplemented(deps.CreateReportHandler))
		r.Get("/api/v1/reports/{reportID}", orNotImplemented(deps.GetReportHandler))
		r.Post("/api/v1/reports/{reportID}/process", orNotImplemented(deps.ProcessReportHandler))
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
