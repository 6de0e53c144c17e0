package snapshots

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// Repository stores snapshots in cache.db as msgpack blobs keyed by date
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new snapshot repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "snapshots").Logger(),
	}
}

// Save stores a snapshot, replacing an earlier one for the same date
func (r *Repository) Save(ctx context.Context, snapshot Snapshot) error {
	if _, err := time.Parse(DateLayout, snapshot.Date); err != nil {
		return fmt.Errorf("invalid snapshot date %q: %w", snapshot.Date, err)
	}

	data, err := msgpack.Marshal(&snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO snapshots (date, data, created_at) VALUES (?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET data = excluded.data, created_at = excluded.created_at`,
		snapshot.Date, data, snapshot.CapturedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to save snapshot %s: %w", snapshot.Date, err)
	}

	r.log.Debug().Str("date", snapshot.Date).Int("bytes", len(data)).Msg("Snapshot saved")
	return nil
}

// GetRange returns snapshots with from <= date <= to, oldest first.
// Dates use DateLayout so string comparison orders them correctly.
func (r *Repository) GetRange(ctx context.Context, from, to string) ([]Snapshot, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT data FROM snapshots WHERE date >= ? AND date <= ? ORDER BY date ASC", from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := make([]Snapshot, 0)
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshot, err := decode(data)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snapshot)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}
	return snapshots, nil
}

// Latest returns the most recent snapshot, or nil if none exists
func (r *Repository) Latest(ctx context.Context) (*Snapshot, error) {
	var data []byte
	err := r.db.QueryRowContext(ctx, "SELECT data FROM snapshots ORDER BY date DESC LIMIT 1").Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest snapshot: %w", err)
	}

	snapshot, err := decode(data)
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func decode(data []byte) (Snapshot, error) {
	var snapshot Snapshot
	if err := msgpack.Unmarshal(data, &snapshot); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return snapshot, nil
}
