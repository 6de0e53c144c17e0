package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all trading routes.
// The per-identifier operation history lives under /portfolio/positions.
func (h *TradingHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/trades", func(r chi.Router) {
		r.Get("/", h.HandleGetTrades) // Ledger, newest first
		r.Post("/buy", h.HandleBuy)
		r.Post("/sell", h.HandleSell)
		r.Post("/reconcile", h.HandleReconcile) // Replay the ledger against stored positions
		r.Get("/{id}", h.HandleGetTrade)
	})
}
