package portfolio

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aristath/holdings/internal/domain"
	"github.com/aristath/holdings/internal/modules/accounting"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/floats"
)

var hundred = decimal.NewFromInt(100)

// PositionRepositoryInterface is the read side of position storage used by the service
type PositionRepositoryInterface interface {
	GetByIdentifier(ctx context.Context, identifier string) (*domain.Position, error)
	GetAll(ctx context.Context) ([]domain.Position, error)
	GetActive(ctx context.Context) ([]domain.Position, error)
}

// CashProvider reports the cash held across accounts.
// Defined here to avoid an import cycle with cash_flows.
type CashProvider interface {
	TotalBalance(ctx context.Context) (decimal.Decimal, error)
}

// Service computes valuations and aggregates over stored positions.
//
// Every number it returns comes from the accounting package; the service
// only loads positions and shapes results.
type Service struct {
	positionRepo PositionRepositoryInterface
	cash         CashProvider
	now          func() time.Time
	log          zerolog.Logger
}

// NewService creates a new portfolio service. cash may be nil, in which case
// summaries report zero cash.
func NewService(positionRepo PositionRepositoryInterface, cash CashProvider, log zerolog.Logger) *Service {
	return &Service{
		positionRepo: positionRepo,
		cash:         cash,
		now:          time.Now,
		log:          log.With().Str("service", "portfolio").Logger(),
	}
}

// ListValuations values positions with their stored market price. Closed
// positions are included only when includeClosed is set. Results are sorted by
// current value, largest first.
func (s *Service) ListValuations(ctx context.Context, includeClosed bool) ([]PositionValuation, error) {
	var positions []domain.Position
	var err error
	if includeClosed {
		positions, err = s.positionRepo.GetAll(ctx)
	} else {
		positions, err = s.positionRepo.GetActive(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get positions: %w", err)
	}

	result := make([]PositionValuation, 0, len(positions))
	total := decimal.Zero
	for _, p := range positions {
		v := accounting.Valuate(p, p.CurrentPrice)
		total = total.Add(v.CurrentValue)
		result = append(result, PositionValuation{Position: p, Valuation: v, Weight: decimal.Zero})
	}

	if !total.IsZero() {
		for i := range result {
			result[i].Weight = result[i].CurrentValue.Div(total).Mul(hundred)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		if c := result[i].CurrentValue.Cmp(result[j].CurrentValue); c != 0 {
			return c > 0
		}
		return result[i].Identifier < result[j].Identifier
	})

	return result, nil
}

// GetValuation values a single position. It fails with PositionNotFound when
// the identifier has never been traded.
func (s *Service) GetValuation(ctx context.Context, identifier string) (*PositionValuation, error) {
	pos, err := s.positionRepo.GetByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		return nil, domain.NewOperationError(domain.KindPositionNotFound,
			domain.NormalizeIdentifier(identifier), "position not found")
	}

	return &PositionValuation{
		Position:  *pos,
		Valuation: accounting.Valuate(*pos, pos.CurrentPrice),
		Weight:    decimal.Zero,
	}, nil
}

// Summary totals the portfolio. Realized P&L includes closed positions.
func (s *Service) Summary(ctx context.Context) (Summary, error) {
	positions, err := s.positionRepo.GetAll(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to get positions: %w", err)
	}

	summary := Summary{
		AsOf:                 s.now().UTC(),
		TotalInvested:        decimal.Zero,
		CurrentValue:         decimal.Zero,
		UnrealizedPnL:        decimal.Zero,
		UnrealizedPnLPercent: decimal.Zero,
		RealizedPnL:          decimal.Zero,
		CashBalance:          decimal.Zero,
	}

	for _, p := range positions {
		summary.RealizedPnL = summary.RealizedPnL.Add(p.RealizedPnL)
		if !p.IsOpen() {
			summary.ClosedPositions++
			continue
		}

		summary.OpenPositions++
		if p.CurrentPrice == nil {
			summary.UnpricedPositions++
		}

		v := accounting.Valuate(p, p.CurrentPrice)
		summary.TotalInvested = summary.TotalInvested.Add(p.TotalInvested)
		summary.CurrentValue = summary.CurrentValue.Add(v.CurrentValue)
		summary.UnrealizedPnL = summary.UnrealizedPnL.Add(v.UnrealizedPnL)
	}

	if !summary.TotalInvested.IsZero() {
		summary.UnrealizedPnLPercent = summary.UnrealizedPnL.Div(summary.TotalInvested).Mul(hundred)
	}

	if s.cash != nil {
		cash, err := s.cash.TotalBalance(ctx)
		if err != nil {
			return Summary{}, fmt.Errorf("failed to get cash balance: %w", err)
		}
		summary.CashBalance = cash
	}
	summary.NetWorth = summary.CurrentValue.Add(summary.CashBalance)

	return summary, nil
}

// Distribution groups the open positions along a dimension
func (s *Service) Distribution(ctx context.Context, by Dimension) ([]accounting.Slice, error) {
	keyFn, ok := by.KeyFunc()
	if !ok {
		return nil, fmt.Errorf("unknown distribution dimension: %q", by)
	}

	positions, err := s.positionRepo.GetActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get positions: %w", err)
	}

	return accounting.DistributeBy(positions, keyFn), nil
}

// Concentration computes the Herfindahl-Hirschman index of the open positions'
// current value weights.
func (s *Service) Concentration(ctx context.Context) (Concentration, error) {
	valuations, err := s.ListValuations(ctx, false)
	if err != nil {
		return Concentration{}, err
	}

	result := Concentration{NumPositions: len(valuations)}
	if len(valuations) == 0 {
		return result, nil
	}

	weights := make([]float64, len(valuations))
	for i, v := range valuations {
		weights[i] = v.CurrentValue.InexactFloat64()
	}

	total := floats.Sum(weights)
	if total <= 0 {
		s.log.Debug().Int("positions", len(valuations)).Msg("Portfolio has no value, concentration undefined")
		return result, nil
	}
	floats.Scale(1/total, weights)

	result.HerfindahlIndex = floats.Dot(weights, weights)
	result.EffectiveHoldings = 1 / result.HerfindahlIndex

	largest := floats.MaxIdx(weights)
	result.LargestWeight = weights[largest] * 100
	result.LargestIdentifier = valuations[largest].Identifier

	// valuations are sorted by value, so weights are already descending
	n := len(weights)
	if n > 5 {
		n = 5
	}
	result.Top5Weight = floats.Sum(weights[:n]) * 100

	return result, nil
}
