package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/giahuy0968/EVDealerManagementSystem-sub000/internal/application"
)

// Handler is the HTTP adapter entrypoint for auth use-cases.
// Keeping only application dependency here preserves clean adapter boundaries.
type Handler struct {
	service *application.Service
	ready   func() error
}

// NewHandler constructs an HTTP handler bound to the application service.
// readyCheck reports downstream health for the readiness probe; nil means
// always ready.
func NewHandler(service *application.Service, readyCheck func() error) *Handler {
	return &Handler{service: service, ready: readyCheck}
}

// NewRouter registers the auth HTTP routes and middleware stack.
// Centralizing routes here ensures consistent auth and error behavior across endpoints.
func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)

	r.Get("/healthz", handler.healthz)
	r.Get("/readyz", handler.readyz)

	r.Route("/auth/v1", func(r chi.Router) {
		r.Post("/register", handler.register)
		r.Post("/login", handler.login)
		r.Post("/refresh", handler.refresh)
		r.Post("/logout", handler.logout)
		r.Get("/verify", handler.verify)
		r.Post("/forgot-password", handler.forgotPassword)
		r.Post("/reset-password", handler.resetPassword)

		r.Group(func(r chi.Router) {
			r.Use(handler.authMiddleware)
			r.Put("/change-password", handler.changePassword)
			r.Get("/sessions", handler.listSessions)
			r.Delete("/sessions/{session_id}", handler.revokeSession)
			r.Delete("/sessions", handler.revokeAllSessions)
			r.Get("/login-history", handler.loginHistory)
		})
	})

	return r
}
