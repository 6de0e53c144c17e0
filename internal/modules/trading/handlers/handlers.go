// Package handlers provides HTTP handlers for trade execution and the operation ledger.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/holdings/internal/httputil"
	"github.com/aristath/holdings/internal/modules/trading"
	"github.com/aristath/holdings/internal/utils"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// TradingHandlers contains HTTP handlers for trading API
type TradingHandlers struct {
	service    *trading.Service
	reconciler *trading.Reconciler
	log        zerolog.Logger
}

// NewTradingHandlers creates a new trading handlers instance
func NewTradingHandlers(service *trading.Service, reconciler *trading.Reconciler, log zerolog.Logger) *TradingHandlers {
	return &TradingHandlers{
		service:    service,
		reconciler: reconciler,
		log:        log.With().Str("handler", "trading").Logger(),
	}
}

// tradeFields are shared by buy and sell bodies. Date accepts YYYY-MM-DD or RFC 3339.
type tradeFields struct {
	Identifier string          `json:"identifier"`
	Quantity   decimal.Decimal `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Fees       decimal.Decimal `json:"fees"`
	Date       string          `json:"date"`
	AccountID  string          `json:"account_id"`
	Notes      string          `json:"notes"`
}

// buyRequest also describes the asset, which is only recorded on a buy
type buyRequest struct {
	tradeFields
	Name      string `json:"name"`
	AssetType string `json:"asset_type"`
	Broker    string `json:"broker"`
	Currency  string `json:"currency"`
}

type sellRequest struct {
	tradeFields
}

// HandleBuy handles POST /api/trades/buy
func (h *TradingHandlers) HandleBuy(w http.ResponseWriter, r *http.Request) {
	var req buyRequest
	date, ok := h.decodeTrade(w, r, &req, &req.tradeFields)
	if !ok {
		return
	}

	result, err := h.service.Buy(r.Context(), trading.BuyRequest{
		Identifier: req.Identifier,
		Quantity:   req.Quantity,
		UnitPrice:  req.UnitPrice,
		Fees:       req.Fees,
		Date:       date,
		AccountID:  req.AccountID,
		Name:       req.Name,
		AssetType:  req.AssetType,
		Broker:     req.Broker,
		Currency:   req.Currency,
		Notes:      req.Notes,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, result)
}

// HandleSell handles POST /api/trades/sell.
// Asset fields (name, asset_type, broker, currency) are rejected as unknown.
func (h *TradingHandlers) HandleSell(w http.ResponseWriter, r *http.Request) {
	var req sellRequest
	date, ok := h.decodeTrade(w, r, &req, &req.tradeFields)
	if !ok {
		return
	}

	result, err := h.service.Sell(r.Context(), trading.SellRequest{
		Identifier: req.Identifier,
		Quantity:   req.Quantity,
		UnitPrice:  req.UnitPrice,
		Fees:       req.Fees,
		Date:       date,
		AccountID:  req.AccountID,
		Notes:      req.Notes,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, result)
}

// decodeTrade reads body into req, checks the shared fields and returns the
// parsed trade date. Value checks (quantity, price, fees, funds) are left to
// the service so every surface reports them the same way.
func (h *TradingHandlers) decodeTrade(w http.ResponseWriter, r *http.Request, req interface{}, fields *tradeFields) (time.Time, bool) {
	if err := httputil.DecodeJSON(r, req); err != nil {
		h.writeMessage(w, http.StatusBadRequest, err.Error())
		return time.Time{}, false
	}
	if fields.Identifier == "" {
		h.writeMessage(w, http.StatusBadRequest, "identifier is required")
		return time.Time{}, false
	}
	date, err := trading.ParseTradeDate(fields.Date)
	if err != nil {
		h.writeMessage(w, http.StatusBadRequest, err.Error())
		return time.Time{}, false
	}
	return date, true
}

// HandleGetTrades handles GET /api/trades?limit=
func (h *TradingHandlers) HandleGetTrades(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			h.writeMessage(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	ops, err := h.service.History(r.Context(), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, ops)
}

// HandleGetTrade handles GET /api/trades/{id}
func (h *TradingHandlers) HandleGetTrade(w http.ResponseWriter, r *http.Request) {
	op, err := h.service.GetOperation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if op == nil {
		h.writeMessage(w, http.StatusNotFound, "operation not found")
		return
	}

	h.writeJSON(w, http.StatusOK, op)
}

// HandleReconcile handles POST /api/trades/reconcile?identifiers=A,B
// Without identifiers every known position is checked.
func (h *TradingHandlers) HandleReconcile(w http.ResponseWriter, r *http.Request) {
	identifiers := utils.ParseIdentifiers(r.URL.Query().Get("identifiers"))

	reports, err := h.reconciler.Reconcile(r.Context(), identifiers)
	if err != nil {
		h.writeError(w, err)
		return
	}

	failed := 0
	for _, report := range reports {
		if !report.OK {
			failed++
		}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"checked": len(reports),
		"failed":  failed,
		"reports": reports,
	})
}

func (h *TradingHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *TradingHandlers) writeError(w http.ResponseWriter, err error) {
	status := httputil.StatusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Msg("Request failed")
	}
	h.writeJSON(w, status, httputil.NewErrorBody(err))
}

func (h *TradingHandlers) writeMessage(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
