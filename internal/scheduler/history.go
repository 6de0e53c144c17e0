package scheduler

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Job run statuses as stored in job_history
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// JobRun is one recorded execution of a job
type JobRun struct {
	ID        int64         `json:"id"`
	JobName   string        `json:"job_name"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Status    string        `json:"status"`
	Error     string        `json:"error,omitempty"`
}

func (r JobRun) eventStatus() string {
	if r.Status == StatusFailed {
		return "failed"
	}
	return "completed"
}

// HistoryRepository stores job runs in cache.db
type HistoryRepository struct {
	db  *sql.DB
	now func() time.Time
	log zerolog.Logger
}

// NewHistoryRepository creates a new job history repository
func NewHistoryRepository(db *sql.DB, log zerolog.Logger) *HistoryRepository {
	return &HistoryRepository{
		db:  db,
		now: time.Now,
		log: log.With().Str("repo", "job_history").Logger(),
	}
}

// Record appends a job run
func (r *HistoryRepository) Record(ctx context.Context, run JobRun) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO job_history (job_name, started_at, duration_ms, status, error)
		VALUES (?, ?, ?, ?, ?)`,
		run.JobName, run.StartedAt.Unix(), run.Duration.Milliseconds(), run.Status, run.Error)
	if err != nil {
		return fmt.Errorf("failed to record job run: %w", err)
	}
	return nil
}

// Recent returns the latest runs, newest first. An empty name returns runs of
// every job; limit <= 0 means 50.
func (r *HistoryRepository) Recent(ctx context.Context, name string, limit int) ([]JobRun, error) {
	if limit <= 0 {
		limit = 50
	}

	query := "SELECT id, job_name, started_at, duration_ms, status, error FROM job_history"
	args := []interface{}{}
	if name != "" {
		query += " WHERE job_name = ?"
		args = append(args, name)
	}
	query += " ORDER BY started_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query job history: %w", err)
	}
	defer rows.Close()

	runs := make([]JobRun, 0)
	for rows.Next() {
		var run JobRun
		var startedAt, durationMs int64
		if err := rows.Scan(&run.ID, &run.JobName, &startedAt, &durationMs, &run.Status, &run.Error); err != nil {
			return nil, fmt.Errorf("failed to scan job run: %w", err)
		}
		run.StartedAt = time.Unix(startedAt, 0).UTC()
		run.Duration = time.Duration(durationMs) * time.Millisecond
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job history: %w", err)
	}
	return runs, nil
}

// Prune deletes runs that started more than olderThan ago
func (r *HistoryRepository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM job_history WHERE started_at < ?", r.now().Add(-olderThan).Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to prune job history: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if deleted > 0 {
		r.log.Debug().Int64("deleted", deleted).Msg("Pruned job history")
	}
	return deleted, nil
}
