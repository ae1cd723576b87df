// Package router wires the redirclean HTTP API: global middleware, the
// public health and metrics endpoints, and the authenticated /api tree.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"redirclean/internal/handlers"
	"redirclean/internal/middleware"
	"redirclean/internal/session"
)

// Deps are the handler groups and stores the router needs. Metrics and
// LoginLimiter are optional.
type Deps struct {
	Sessions      *session.Store
	Auth          *handlers.Auth
	Jobs          *handlers.Jobs
	Redirects     *handlers.Redirects
	Metrics       http.Handler
	LoginLimiter  *middleware.RateLimiter
	SecureCookies bool
}

// New creates the chi router with all middleware and routes.
func New(d Deps) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(middleware.SecureHeaders)

	r.Get("/health", healthHandler)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.NewCSRF(d.SecureCookies))
		r.Use(middleware.LoadSession(d.Sessions))

		r.Route("/auth", func(r chi.Router) {
			if d.LoginLimiter != nil {
				r.Use(d.LoginLimiter.Middleware)
			}
			r.Get("/session", d.Auth.Session)
			r.Post("/login", d.Auth.Login)
			r.Post("/logout", d.Auth.Logout)

			// Signed in, second factor still pending.
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAuth)
				r.Post("/totp/setup", d.Auth.TOTPSetup)
				r.Post("/totp/verify", d.Auth.TOTPVerify)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Use(middleware.Require2FA)

			r.Route("/jobs", func(r chi.Router) {
				r.Get("/", d.Jobs.List)
				r.Post("/", d.Jobs.Start)
				r.Get("/{id}", d.Jobs.Get)
				r.Post("/{id}/batch", d.Jobs.Batch)
				r.Post("/{id}/rollback", d.Jobs.Rollback)
				r.Get("/{id}/report", d.Jobs.Report)
			})

			r.Post("/rewrite/preview", handlers.Preview)

			r.Route("/redirects", func(r chi.Router) {
				r.Get("/", d.Redirects.List)
				r.Post("/", d.Redirects.Create)
				r.Delete("/{id}", d.Redirects.Delete)
			})
		})
	})

	return r
}

// healthHandler returns a simple JSON health check response.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
