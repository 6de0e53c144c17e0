package portfolio

import (
	"time"

	"github.com/aristath/holdings/internal/domain"
	"github.com/aristath/holdings/internal/modules/accounting"
	"github.com/shopspring/decimal"
)

// PositionValuation is a position marked to market
type PositionValuation struct {
	domain.Position
	accounting.Valuation
	Weight decimal.Decimal `json:"weight"` // Percent of the portfolio's current value
}

// Summary aggregates the whole portfolio
type Summary struct {
	AsOf                 time.Time       `json:"as_of"`
	TotalInvested        decimal.Decimal `json:"total_invested"`
	CurrentValue         decimal.Decimal `json:"current_value"`
	UnrealizedPnL        decimal.Decimal `json:"unrealized_pnl"`
	UnrealizedPnLPercent decimal.Decimal `json:"unrealized_pnl_percent"`
	RealizedPnL          decimal.Decimal `json:"realized_pnl"`
	CashBalance          decimal.Decimal `json:"cash_balance"`
	NetWorth             decimal.Decimal `json:"net_worth"`
	OpenPositions        int             `json:"open_positions"`
	ClosedPositions      int             `json:"closed_positions"`
	UnpricedPositions    int             `json:"unpriced_positions"` // Valued at cost basis
}

// Concentration describes how concentrated the open positions are
type Concentration struct {
	HerfindahlIndex   float64 `json:"herfindahl_index"`   // Sum of squared weights, 1/N when equal
	EffectiveHoldings float64 `json:"effective_holdings"` // 1 / HHI
	LargestWeight     float64 `json:"largest_weight"`     // Percent
	LargestIdentifier string  `json:"largest_identifier"`
	Top5Weight        float64 `json:"top_5_weight"` // Percent
	NumPositions      int     `json:"num_positions"`
}

// Dimension names a distribution grouping
type Dimension string

const (
	DimensionAssetType Dimension = "asset_type"
	DimensionBroker    Dimension = "broker"
	DimensionCurrency  Dimension = "currency"
)

// KeyFunc returns the accounting key function for the dimension
func (d Dimension) KeyFunc() (accounting.KeyFunc, bool) {
	switch d {
	case DimensionAssetType, "":
		return accounting.ByAssetType, true
	case DimensionBroker:
		return accounting.ByBroker, true
	case DimensionCurrency:
		return accounting.ByCurrency, true
	default:
		return nil, false
	}
}
