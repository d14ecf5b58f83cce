package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Public, no auth required.
	r.Get("/health", g.handleHealth())
	r.Get("/metrics", g.metrics.Handler().ServeHTTP)

	r.Group(func(r chi.Router) {
		if g.cfg.Auth.Token != "" {
			r.Use(authMiddleware(g.cfg.Auth.Token, g.logger))
		}

		r.Get("/status", g.handleStatus())
		r.Get("/ws/sessions/{id}", g.handleSessionEvents)

		r.Route("/api", func(r chi.Router) {
			r.Get("/welcome", g.handleWelcomeDoc())
			r.Get("/config", g.handleGetConfig())
			r.Get("/history/{id}", g.handleArchivedHistory())

			r.Route("/sessions", func(r chi.Router) {
				r.Post("/", g.handleCreateSession())
				r.Get("/", g.handleListSessions())

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", g.handleGetSession())
					r.Delete("/", g.handleDeleteSession())
					r.Post("/prompt", g.handlePrompt())
					r.Post("/approvals", g.handleApprovals())
					r.Post("/disapprove", g.handleDisapprove())
					r.Post("/welcome/dismiss", g.handleDismissWelcome())
					r.Post("/login", g.handleLogin())
					r.Post("/logout", g.handleLogout())
					r.Post("/reset", g.handleReset())
					r.Get("/history", g.handleSessionHistory())
				})
			})
		})
	})

	return r
}
