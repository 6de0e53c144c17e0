// Package handlers provides HTTP handlers for portfolio management.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/aristath/holdings/internal/domain"
	"github.com/aristath/holdings/internal/httputil"
	"github.com/aristath/holdings/internal/modules/portfolio"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// PriceSetter records a user-supplied market price
type PriceSetter interface {
	SetManualPrice(ctx context.Context, identifier string, price decimal.Decimal) error
}

// OperationLister returns the trade history of one identifier
type OperationLister interface {
	GetByIdentifier(ctx context.Context, identifier string) ([]domain.Operation, error)
}

// Handler handles portfolio HTTP requests
type Handler struct {
	service    *portfolio.Service
	prices     PriceSetter
	operations OperationLister
	log        zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(
	service *portfolio.Service,
	prices PriceSetter,
	operations OperationLister,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		service:    service,
		prices:     prices,
		operations: operations,
		log:        log.With().Str("handler", "portfolio").Logger(),
	}
}

// HandleGetPositions handles GET /api/portfolio/positions
// Closed positions are included with ?status=all.
func (h *Handler) HandleGetPositions(w http.ResponseWriter, r *http.Request) {
	includeClosed := r.URL.Query().Get("status") == "all"

	valuations, err := h.service.ListValuations(r.Context(), includeClosed)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, valuations)
}

// HandleGetPosition handles GET /api/portfolio/positions/{identifier}
func (h *Handler) HandleGetPosition(w http.ResponseWriter, r *http.Request) {
	valuation, err := h.service.GetValuation(r.Context(), chi.URLParam(r, "identifier"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, valuation)
}

type setPriceRequest struct {
	Price decimal.Decimal `json:"price"`
}

// HandleSetPrice handles PUT /api/portfolio/positions/{identifier}/price
func (h *Handler) HandleSetPrice(w http.ResponseWriter, r *http.Request) {
	identifier := domain.NormalizeIdentifier(chi.URLParam(r, "identifier"))

	var req setPriceRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if !req.Price.IsPositive() {
		h.writeError(w, domain.NewOperationError(domain.KindInvalidPrice, identifier,
			"price must be greater than zero, got %s", req.Price))
		return
	}

	if err := h.prices.SetManualPrice(r.Context(), identifier, req.Price); err != nil {
		h.writeError(w, err)
		return
	}

	valuation, err := h.service.GetValuation(r.Context(), identifier)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, valuation)
}

// HandleGetOperations handles GET /api/portfolio/positions/{identifier}/operations
func (h *Handler) HandleGetOperations(w http.ResponseWriter, r *http.Request) {
	ops, err := h.operations.GetByIdentifier(r.Context(), chi.URLParam(r, "identifier"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, ops)
}

// HandleGetSummary handles GET /api/portfolio/summary
func (h *Handler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, summary)
}

// HandleGetDistribution handles GET /api/portfolio/distribution?by=asset_type|broker|currency
func (h *Handler) HandleGetDistribution(w http.ResponseWriter, r *http.Request) {
	by := portfolio.Dimension(r.URL.Query().Get("by"))
	if _, ok := by.KeyFunc(); !ok {
		h.writeMessage(w, http.StatusBadRequest, "by must be one of asset_type, broker, currency")
		return
	}

	slices, err := h.service.Distribution(r.Context(), by)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if by == "" {
		by = portfolio.DimensionAssetType
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"by":     by,
		"slices": slices,
	})
}

// HandleGetConcentration handles GET /api/portfolio/concentration
func (h *Handler) HandleGetConcentration(w http.ResponseWriter, r *http.Request) {
	concentration, err := h.service.Concentration(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, concentration)
}

// Helper methods

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := httputil.StatusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Msg("Request failed")
	}
	h.writeJSON(w, status, httputil.NewErrorBody(err))
}

func (h *Handler) writeMessage(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
