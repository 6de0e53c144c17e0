// Package handlers provides HTTP handlers for cash accounts.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/aristath/holdings/internal/httputil"
	"github.com/aristath/holdings/internal/modules/cash_flows"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Handler handles cash account HTTP requests
type Handler struct {
	service *cash_flows.Service
	log     zerolog.Logger
}

// NewHandler creates a new cash account handler
func NewHandler(service *cash_flows.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "cash_flows").Logger(),
	}
}

type openAccountRequest struct {
	ID       string `json:"id"`
	Currency string `json:"currency"`
}

type movementRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

// HandleListAccounts handles GET /api/accounts
func (h *Handler) HandleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.ListAccounts(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, accounts)
}

// HandleOpenAccount handles POST /api/accounts
func (h *Handler) HandleOpenAccount(w http.ResponseWriter, r *http.Request) {
	var req openAccountRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ID == "" {
		h.writeMessage(w, http.StatusBadRequest, "id is required")
		return
	}

	account, err := h.service.OpenAccount(r.Context(), req.ID, req.Currency)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, account)
}

// HandleGetAccount handles GET /api/accounts/{id}
func (h *Handler) HandleGetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.service.GetAccount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, account)
}

// HandleDeposit handles POST /api/accounts/{id}/deposit
func (h *Handler) HandleDeposit(w http.ResponseWriter, r *http.Request) {
	var req movementRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	flow, err := h.service.Deposit(r.Context(), chi.URLParam(r, "id"), req.Amount, req.Description)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, flow)
}

// HandleWithdraw handles POST /api/accounts/{id}/withdraw
func (h *Handler) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req movementRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	flow, err := h.service.Withdraw(r.Context(), chi.URLParam(r, "id"), req.Amount, req.Description)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, flow)
}

// HandleGetCashFlows handles GET /api/accounts/{id}/cash-flows?limit=
func (h *Handler) HandleGetCashFlows(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			h.writeMessage(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	flows, err := h.service.History(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, flows)
}

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
