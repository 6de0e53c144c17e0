package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the cash account routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/accounts", func(r chi.Router) {
		r.Get("/", h.HandleListAccounts)
		r.Post("/", h.HandleOpenAccount)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.HandleGetAccount)
			r.Post("/deposit", h.HandleDeposit)
			r.Post("/withdraw", h.HandleWithdraw)
			r.Get("/cash-flows", h.HandleGetCashFlows) // ?limit=, newest first
		})
	})
}
