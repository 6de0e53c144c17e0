package pricing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/holdings/internal/domain"
	"github.com/aristath/holdings/internal/events"
	"github.com/aristath/holdings/internal/utils"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// PositionStore is the part of position storage the pricing service writes to
type PositionStore interface {
	domain.PositionReader
	domain.PriceSetter
	GetActive(ctx context.Context) ([]domain.Position, error)
}

// Service applies market prices to positions
type Service struct {
	positions PositionStore
	quotes    *QuoteRepository
	provider  Provider
	events    *events.Manager
	now       func() time.Time
	log       zerolog.Logger
}

// NewService creates a new pricing service. A nil provider behaves like NoopProvider.
func NewService(positions PositionStore, quotes *QuoteRepository, provider Provider, eventManager *events.Manager, log zerolog.Logger) *Service {
	if provider == nil {
		provider = NoopProvider{}
	}
	return &Service{
		positions: positions,
		quotes:    quotes,
		provider:  provider,
		events:    eventManager,
		now:       time.Now,
		log:       log.With().Str("service", "pricing").Logger(),
	}
}

// SyncPrices refreshes the price of every active position. A fresh cached
// quote is used before asking the provider. One failing identifier never
// stops the others; the returned error is non-nil only when nothing could be
// loaded at all.
func (s *Service) SyncPrices(ctx context.Context) (SyncResult, error) {
	defer utils.OperationTimer("sync_prices", s.log)()

	var result SyncResult

	positions, err := s.positions.GetActive(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to get active positions: %w", err)
	}

	for _, position := range positions {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		quote, cached, err := s.quoteFor(ctx, position)
		if err != nil {
			if errors.Is(err, ErrNoQuote) {
				result.Skipped++
				continue
			}
			result.Failed++
			s.log.Warn().Err(err).Str("identifier", position.Identifier).Msg("Failed to fetch quote, keeping previous price")
			continue
		}

		if quote.Currency != "" && position.Currency != "" && !strings.EqualFold(quote.Currency, position.Currency) {
			result.Skipped++
			s.log.Warn().
				Str("identifier", position.Identifier).
				Str("quote_currency", quote.Currency).
				Str("position_currency", position.Currency).
				Msg("Quote currency differs from position currency, skipping")
			continue
		}

		if err := s.apply(ctx, position.Identifier, *quote); err != nil {
			result.Failed++
			s.log.Warn().Err(err).Str("identifier", position.Identifier).Msg("Failed to apply price")
			continue
		}

		if cached {
			result.Cached++
		} else {
			result.Updated++
		}
	}

	s.log.Info().
		Int("positions", len(positions)).
		Int("updated", result.Updated).
		Int("cached", result.Cached).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Msg("Price sync completed")

	return result, nil
}

// quoteFor returns a fresh cached quote or fetches and caches a new one
func (s *Service) quoteFor(ctx context.Context, position domain.Position) (*Quote, bool, error) {
	quote, err := s.quotes.GetIfFresh(ctx, position.Identifier)
	if err != nil {
		s.log.Warn().Err(err).Str("identifier", position.Identifier).Msg("Quote cache read failed")
	}
	if quote != nil {
		return quote, true, nil
	}

	quote, err = s.provider.Quote(ctx, position)
	if err != nil {
		return nil, false, err
	}

	if err := s.quotes.Store(ctx, *quote, TTLQuote); err != nil {
		s.log.Warn().Err(err).Str("identifier", position.Identifier).Msg("Failed to cache quote")
	}
	return quote, false, nil
}

func (s *Service) apply(ctx context.Context, identifier string, quote Quote) error {
	at := quote.FetchedAt
	if at.IsZero() {
		at = s.now()
	}

	if err := s.positions.UpdatePrice(ctx, identifier, quote.Price, at); err != nil {
		return err
	}

	s.events.Emit("pricing", &events.PriceUpdatedData{
		Identifier: domain.NormalizeIdentifier(identifier),
		Price:      quote.Price,
		Source:     quote.Source,
	})
	return nil
}

// SetManualPrice records a user-supplied price. It is cached with a long TTL
// so the next sync does not immediately overwrite it.
func (s *Service) SetManualPrice(ctx context.Context, identifier string, price decimal.Decimal) error {
	identifier = domain.NormalizeIdentifier(identifier)
	if !price.IsPositive() {
		return domain.NewOperationError(domain.KindInvalidPrice, identifier, "price must be positive")
	}

	position, err := s.positions.GetByIdentifier(ctx, identifier)
	if err != nil {
		return fmt.Errorf("failed to get position %s: %w", identifier, err)
	}
	if position == nil {
		return domain.NewOperationError(domain.KindPositionNotFound, identifier, "no position to price")
	}

	quote := Quote{
		Identifier: identifier,
		Price:      price,
		Currency:   position.Currency,
		Source:     SourceManual,
		FetchedAt:  s.now(),
	}
	if err := s.quotes.Store(ctx, quote, TTLManualQuote); err != nil {
		return err
	}

	return s.apply(ctx, identifier, quote)
}

// GetQuote returns the cached quote for an identifier, fresh or stale
func (s *Service) GetQuote(ctx context.Context, identifier string) (*Quote, error) {
	return s.quotes.Get(ctx, identifier)
}

// PruneQuotes removes quotes expired for longer than StaleRetention
func (s *Service) PruneQuotes(ctx context.Context) (int64, error) {
	return s.quotes.DeleteExpired(ctx, StaleRetention)
}
