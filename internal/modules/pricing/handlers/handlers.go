// Package handlers provides HTTP handlers for market prices.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/aristath/holdings/internal/httputil"
	"github.com/aristath/holdings/internal/modules/pricing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles pricing HTTP requests
type Handler struct {
	service *pricing.Service
	log     zerolog.Logger
}

// NewHandler creates a new pricing handler
func NewHandler(service *pricing.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "pricing").Logger(),
	}
}

// RegisterRoutes registers the pricing routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/prices", func(r chi.Router) {
		r.Post("/sync", h.HandleSync)
		r.Get("/{identifier}", h.HandleGetQuote) // cached quote, fresh or stale
	})
}

// HandleSync handles POST /api/prices/sync
func (h *Handler) HandleSync(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.SyncPrices(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Price sync failed")
		h.writeJSON(w, httputil.StatusFor(err), httputil.NewErrorBody(err))
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// HandleGetQuote handles GET /api/prices/{identifier}
func (h *Handler) HandleGetQuote(w http.ResponseWriter, r *http.Request) {
	quote, err := h.service.GetQuote(r.Context(), chi.URLParam(r, "identifier"))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get quote")
		h.writeJSON(w, http.StatusInternalServerError, httputil.NewErrorBody(err))
		return
	}
	if quote == nil {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "no quote cached"})
		return
	}

	h.writeJSON(w, http.StatusOK, quote)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
