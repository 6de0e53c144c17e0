// Package handlers provides HTTP handlers for portfolio snapshots.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/aristath/holdings/internal/modules/snapshots"
	"github.com/rs/zerolog"
)

const maxHistoryDays = 3650

// Handler handles snapshot HTTP requests
type Handler struct {
	service *snapshots.Service
	log     zerolog.Logger
}

// NewHandler creates a new snapshot handler
func NewHandler(service *snapshots.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "snapshots").Logger(),
	}
}

// HandleGetHistory handles GET /api/snapshots?days=30
func (h *Handler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	days := 30
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxHistoryDays {
			h.writeError(w, http.StatusBadRequest, "days must be between 1 and 3650")
			return
		}
		days = parsed
	}

	history, err := h.service.History(r.Context(), days)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get snapshot history")
		h.writeError(w, http.StatusInternalServerError, "failed to get snapshots")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"days":      days,
		"snapshots": history,
	})
}

// HandleGetLatest handles GET /api/snapshots/latest
func (h *Handler) HandleGetLatest(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.service.Latest(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get latest snapshot")
		h.writeError(w, http.StatusInternalServerError, "failed to get snapshot")
		return
	}
	if snapshot == nil {
		h.writeError(w, http.StatusNotFound, "no snapshots yet")
		return
	}

	h.writeJSON(w, http.StatusOK, snapshot)
}

// HandleCapture handles POST /api/snapshots
func (h *Handler) HandleCapture(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.service.CaptureNow(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to capture snapshot")
		h.writeError(w, http.StatusInternalServerError, "failed to capture snapshot")
		return
	}

	h.writeJSON(w, http.StatusCreated, snapshot)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
