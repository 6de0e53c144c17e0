package snapshots

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/holdings/internal/events"
	"github.com/aristath/holdings/internal/modules/accounting"
	"github.com/aristath/holdings/internal/modules/portfolio"
	"github.com/rs/zerolog"
)

// PortfolioReader supplies the aggregates a snapshot is built from
type PortfolioReader interface {
	Summary(ctx context.Context) (portfolio.Summary, error)
	Distribution(ctx context.Context, by portfolio.Dimension) ([]accounting.Slice, error)
}

// Service captures and serves daily snapshots
type Service struct {
	portfolio PortfolioReader
	repo      *Repository
	events    *events.Manager
	now       func() time.Time
	log       zerolog.Logger
}

// NewService creates a new snapshot service
func NewService(portfolio PortfolioReader, repo *Repository, eventManager *events.Manager, log zerolog.Logger) *Service {
	return &Service{
		portfolio: portfolio,
		repo:      repo,
		events:    eventManager,
		now:       time.Now,
		log:       log.With().Str("service", "snapshots").Logger(),
	}
}

// Capture values the portfolio and stores it under at's calendar date
func (s *Service) Capture(ctx context.Context, at time.Time) (*Snapshot, error) {
	summary, err := s.portfolio.Summary(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get portfolio summary: %w", err)
	}

	allocation, err := s.portfolio.Distribution(ctx, portfolio.DimensionAssetType)
	if err != nil {
		return nil, fmt.Errorf("failed to get distribution: %w", err)
	}

	snapshot := Snapshot{
		Date:          at.Format(DateLayout),
		CapturedAt:    at.UTC(),
		TotalInvested: summary.TotalInvested,
		CurrentValue:  summary.CurrentValue,
		UnrealizedPnL: summary.UnrealizedPnL,
		RealizedPnL:   summary.RealizedPnL,
		CashBalance:   summary.CashBalance,
		NetWorth:      summary.NetWorth,
		OpenPositions: summary.OpenPositions,
		Allocation:    allocation,
	}

	if err := s.repo.Save(ctx, snapshot); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("date", snapshot.Date).
		Str("net_worth", snapshot.NetWorth.String()).
		Msg("Snapshot captured")

	s.events.Emit("snapshots", &events.SnapshotCreatedData{
		Date:     snapshot.Date,
		NetWorth: snapshot.NetWorth,
	})

	return &snapshot, nil
}

// CaptureNow captures a snapshot for the current day
func (s *Service) CaptureNow(ctx context.Context) (*Snapshot, error) {
	return s.Capture(ctx, s.now())
}

// History returns the snapshots of the last days calendar days, today included
func (s *Service) History(ctx context.Context, days int) ([]Snapshot, error) {
	if days < 1 {
		return nil, fmt.Errorf("days must be at least 1, got %d", days)
	}

	today := s.now()
	from := today.AddDate(0, 0, -(days - 1))
	return s.repo.GetRange(ctx, from.Format(DateLayout), today.Format(DateLayout))
}

// Latest returns the most recent snapshot, or nil if none exists
func (s *Service) Latest(ctx context.Context) (*Snapshot, error) {
	return s.repo.Latest(ctx)
}
