package pricing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/holdings/internal/domain"
	"github.com/rs/zerolog"
)

// QuoteRepository is the quote cache in cache.db. Every row carries its own
// expiry so readers can choose between fresh-only and stale-as-fallback.
type QuoteRepository struct {
	db  *sql.DB
	now func() time.Time
	log zerolog.Logger
}

// NewQuoteRepository creates a new quote repository
func NewQuoteRepository(db *sql.DB, log zerolog.Logger) *QuoteRepository {
	return &QuoteRepository{
		db:  db,
		now: time.Now,
		log: log.With().Str("repo", "quotes").Logger(),
	}
}

// Store saves a quote with expiration = now + ttl, replacing any previous one
func (r *QuoteRepository) Store(ctx context.Context, quote Quote, ttl time.Duration) error {
	now := r.now()
	if quote.FetchedAt.IsZero() {
		quote.FetchedAt = now
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO quotes (identifier, price, currency, source, fetched_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		domain.NormalizeIdentifier(quote.Identifier),
		quote.Price,
		quote.Currency,
		quote.Source,
		quote.FetchedAt.Unix(),
		now.Add(ttl).Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to store quote for %s: %w", quote.Identifier, err)
	}
	return nil
}

// GetIfFresh returns the cached quote only if it has not expired.
// Returns nil, nil if there is no quote or it is expired.
func (r *QuoteRepository) GetIfFresh(ctx context.Context, identifier string) (*Quote, error) {
	return r.get(ctx,
		"SELECT identifier, price, currency, source, fetched_at, expires_at FROM quotes WHERE identifier = ? AND expires_at > ?",
		domain.NormalizeIdentifier(identifier), r.now().Unix())
}

// Get returns the cached quote regardless of expiration, or nil if none exists
func (r *QuoteRepository) Get(ctx context.Context, identifier string) (*Quote, error) {
	return r.get(ctx,
		"SELECT identifier, price, currency, source, fetched_at, expires_at FROM quotes WHERE identifier = ?",
		domain.NormalizeIdentifier(identifier))
}

func (r *QuoteRepository) get(ctx context.Context, query string, args ...interface{}) (*Quote, error) {
	var quote Quote
	var fetchedAt, expiresAt int64

	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&quote.Identifier,
		&quote.Price,
		&quote.Currency,
		&quote.Source,
		&fetchedAt,
		&expiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get quote: %w", err)
	}

	quote.FetchedAt = time.Unix(fetchedAt, 0).UTC()
	quote.ExpiresAt = time.Unix(expiresAt, 0).UTC()
	return &quote, nil
}

// DeleteExpired removes quotes that expired more than olderThan ago and
// returns the number of rows deleted
func (r *QuoteRepository) DeleteExpired(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := r.now().Add(-olderThan).Unix()

	result, err := r.db.ExecContext(ctx, "DELETE FROM quotes WHERE expires_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired quotes: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected for quotes: %w", err)
	}

	if deleted > 0 {
		r.log.Debug().Int64("deleted", deleted).Msg("Deleted expired quotes")
	}
	return deleted, nil
}
