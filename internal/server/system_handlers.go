package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/holdings/internal/database"
	"github.com/aristath/holdings/internal/scheduler"
)

// JobController lists, triggers and reports background jobs
type JobController interface {
	Jobs() []scheduler.JobInfo
	RunNow(name string) (*scheduler.JobRun, error)
	History(ctx context.Context, name string, limit int) ([]scheduler.JobRun, error)
}

// SystemHandlers handles system monitoring and job endpoints
type SystemHandlers struct {
	log         zerolog.Logger
	startupTime time.Time
	databases   []*database.DB
	jobs        JobController
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(databases []*database.DB, jobs JobController, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		log:         log.With().Str("component", "system_handlers").Logger(),
		startupTime: time.Now(),
		databases:   databases,
		jobs:        jobs,
	}
}

// SystemStatusResponse represents the system status
type SystemStatusResponse struct {
	Status        string           `json:"status"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	CPUPercent    float64          `json:"cpu_percent"`
	MemoryPercent float64          `json:"memory_percent"`
	Databases     []DatabaseStatus `json:"databases"`
	CheckedAt     time.Time        `json:"checked_at"`
}

// DatabaseStatus represents the health of a single database
type DatabaseStatus struct {
	Name         string `json:"name"`
	Healthy      bool   `json:"healthy"`
	Error        string `json:"error,omitempty"`
	SizeBytes    int64  `json:"size_bytes"`
	WALSizeBytes int64  `json:"wal_size_bytes"`
}

// HandleSystemStatus returns process, host and database health.
// Responds 503 when any database fails its quick check.
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, memPercent := h.getSystemStats()

	response := SystemStatusResponse{
		Status:        "healthy",
		UptimeSeconds: int64(time.Since(h.startupTime).Seconds()),
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		Databases:     make([]DatabaseStatus, 0, len(h.databases)),
		CheckedAt:     time.Now().UTC(),
	}

	for _, db := range h.databases {
		status := DatabaseStatus{Name: db.Name(), Healthy: true}
		if err := db.QuickCheck(r.Context()); err != nil {
			h.log.Warn().Err(err).Str("database", db.Name()).Msg("Database check failed")
			status.Healthy = false
			status.Error = err.Error()
			response.Status = "degraded"
		}
		if stats, err := db.GetStats(); err == nil {
			status.SizeBytes = stats.SizeBytes
			status.WALSizeBytes = stats.WALSizeBytes
		}
		response.Databases = append(response.Databases, status)
	}

	code := http.StatusOK
	if response.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, response, h.log)
}

// getSystemStats returns CPU and RAM usage percentages
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	// 100ms keeps the endpoint responsive
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

// HandleListJobs returns every registered job with its next run
// GET /api/jobs
func (h *SystemHandlers) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jobs": h.jobs.Jobs(),
	}, h.log)
}

// HandleRunJob runs a job immediately and returns the recorded run.
// A job that ran and failed still answers 200; the run carries the error.
// POST /api/jobs/{name}
func (h *SystemHandlers) HandleRunJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	run, err := h.jobs.RunNow(name)
	switch {
	case errors.Is(err, scheduler.ErrUnknownJob):
		writeError(w, http.StatusNotFound, err.Error(), h.log)
		return
	case errors.Is(err, scheduler.ErrJobRunning):
		writeError(w, http.StatusConflict, err.Error(), h.log)
		return
	case run == nil:
		writeError(w, http.StatusInternalServerError, err.Error(), h.log)
		return
	}

	h.log.Info().Str("job", name).Str("status", run.Status).Msg("Job triggered manually")
	writeJSON(w, http.StatusOK, run, h.log)
}

// HandleJobHistory returns recent runs of a job
// GET /api/jobs/{name}/history?limit=20
func (h *SystemHandlers) HandleJobHistory(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !h.hasJob(name) {
		writeError(w, http.StatusNotFound, "unknown job: "+name, h.log)
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 500 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 500", h.log)
			return
		}
		limit = parsed
	}

	runs, err := h.jobs.History(r.Context(), name, limit)
	if err != nil {
		h.log.Error().Err(err).Str("job", name).Msg("Failed to load job history")
		writeError(w, http.StatusInternalServerError, "failed to load job history", h.log)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"job":  name,
		"runs": runs,
	}, h.log)
}

func (h *SystemHandlers) hasJob(name string) bool {
	for _, job := range h.jobs.Jobs() {
		if job.Name == name {
			return true
		}
	}
	return false
}
