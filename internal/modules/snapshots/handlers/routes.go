package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the snapshot routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/snapshots", func(r chi.Router) {
		r.Get("/", h.HandleGetHistory) // ?days=30
		r.Get("/latest", h.HandleGetLatest)
		r.Post("/", h.HandleCapture)
	})
}
