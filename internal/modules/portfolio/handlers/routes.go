package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all portfolio routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/portfolio", func(r chi.Router) {
		r.Route("/positions", func(r chi.Router) {
			r.Get("/", h.HandleGetPositions)
			r.Get("/{identifier}", h.HandleGetPosition)
			r.Put("/{identifier}/price", h.HandleSetPrice)           // Manual price override
			r.Get("/{identifier}/operations", h.HandleGetOperations) // Trade history
		})

		r.Get("/summary", h.HandleGetSummary)
		r.Get("/distribution", h.HandleGetDistribution)   // ?by=asset_type|broker|currency
		r.Get("/concentration", h.HandleGetConcentration) // HHI of current value weights
	})
}
