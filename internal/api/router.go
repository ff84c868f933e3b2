package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	mw "github.com/autoresttest/console/internal/api/middleware"
	"github.com/autoresttest/console/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	Internal  *mw.Internal
	RateLimit *mw.RateLimit

	HealthHandler http.HandlerFunc

	CreateJobHandler http.HandlerFunc
	ListJobsHandler  http.HandlerFunc
	GetJobHandler    http.HandlerFunc
	DeleteJobHandler http.HandlerFunc
	CancelJobHandler http.HandlerFunc
	ReplayJobHandler http.HandlerFunc
	APIKeyHandler    http.HandlerFunc

	ProgressHandler     http.HandlerFunc
	RunInvokeHandler    http.HandlerFunc
	RunCancelledHandler http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public health check
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	// User-facing routes: session or machine API key
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)

		r.Post("/api/v1/jobs", orNotImplemented(deps.CreateJobHandler))
		r.Get("/api/v1/jobs", orNotImplemented(deps.ListJobsHandler))
		r.Get("/api/v1/jobs/{jobID}", orNotImplemented(deps.GetJobHandler))
		r.Delete("/api/v1/jobs/{jobID}", orNotImplemented(deps.DeleteJobHandler))
		r.Post("/api/v1/jobs/{jobID}/cancel", orNotImplemented(deps.CancelJobHandler))
		r.Post("/api/v1/jobs/{jobID}/replay", orNotImplemented(deps.ReplayJobHandler))

		r.Get("/api/v1/user/api-key", orNotImplemented(deps.APIKeyHandler))
	})

	// Internal callbacks: pre-shared secret only
	r.Group(func(r chi.Router) {
		r.Use(deps.Internal.Authenticate)

		r.Patch("/api/v1/jobs/{jobID}/progress", orNotImplemented(deps.ProgressHandler))
		r.Post("/internal/v1/runs/invoke", orNotImplemented(deps.RunInvokeHandler))
		r.Post("/internal/v1/runs/cancelled", orNotImplemented(deps.RunCancelledHandler))
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
