package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter creates a new router with all routes configured
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (all routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Get("/health", h.Health)

		// Protected routes (auth required when an API key is configured)
		r.Group(func(r chi.Router) {
			if h.apiKey != "" {
				r.Use(RequireAPIKey(h.apiKey))
			}
			r.Post("/parse", h.Parse)
			r.Post("/log", h.Log)
			r.Post("/query", h.Query)

			r.Get("/queue", h.ListQueue)
			r.Post("/queue/{id}/retry", h.RetryQueueItem)

			r.Get("/sessions", h.ListSessions)
			r.Route("/sessions/{id}", func(r chi.Router) {
				r.Use(h.SessionCtx)
				r.Get("/", h.GetSession)
				r.Patch("/", h.UpdateSession)
				r.Delete("/", h.DeleteSession)
				r.Post("/end", h.EndSession)
				r.Get("/entries", h.ListSessionEntries)
			})

			r.Patch("/entries/{id}", h.UpdateEntry)
			r.Delete("/entries/{id}", h.DeleteEntry)

			r.Post("/sync/push", h.SyncPush)
			r.Post("/sync/pull", h.SyncPull)
		})
	})

	return r
}
