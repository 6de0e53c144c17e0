package accounting

import (
	"sort"
	"strings"

	"github.com/aristath/holdings/internal/domain"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Valuation is the mark-to-market view of a position
type Valuation struct {
	CurrentValue         decimal.Decimal `json:"current_value"`
	UnrealizedPnL        decimal.Decimal `json:"unrealized_pnl"`
	UnrealizedPnLPercent decimal.Decimal `json:"unrealized_pnl_percent"`
	MarketPriced         bool            `json:"market_priced"` // false when valued at cost basis
}

// Valuate marks a position to market. Without a current price the position is
// valued at its average price, so no gain is ever fabricated.
func Valuate(position domain.Position, currentPrice *decimal.Decimal) Valuation {
	price := position.AveragePrice
	priced := false
	if currentPrice != nil {
		price = *currentPrice
		priced = true
	}

	value := position.TotalQuantity.Mul(price)
	unrealized := value.Sub(position.TotalInvested)

	percent := decimal.Zero
	if !position.TotalInvested.IsZero() {
		percent = unrealized.Div(position.TotalInvested).Mul(hundred)
	}

	return Valuation{
		CurrentValue:         value,
		UnrealizedPnL:        unrealized,
		UnrealizedPnLPercent: percent,
		MarketPriced:         priced,
	}
}

// Slice is one group of a distribution
type Slice struct {
	Key        string          `json:"key"`
	Value      decimal.Decimal `json:"value"`
	Percentage decimal.Decimal `json:"percentage"`
	Count      int             `json:"count"`
}

// KeyFunc maps a position to its distribution group
type KeyFunc func(domain.Position) string

// ByAssetType groups positions by asset type
func ByAssetType(p domain.Position) string { return string(p.AssetType) }

// ByBroker groups positions by broker; positions without one share a group
func ByBroker(p domain.Position) string {
	if b := strings.TrimSpace(p.Broker); b != "" {
		return b
	}
	return "unassigned"
}

// ByCurrency groups positions by currency
func ByCurrency(p domain.Position) string { return p.Currency }

// DistributeBy sums the current value of positions per group (each position is
// valued with its own CurrentPrice, falling back to cost basis) and computes
// each group's share of the grand total. Groups are returned by descending
// value; equal values are ordered by key. When the grand total is zero every
// percentage is zero.
func DistributeBy(positions []domain.Position, keyFn KeyFunc) []Slice {
	index := make(map[string]int)
	slices := make([]Slice, 0)
	total := decimal.Zero

	for _, p := range positions {
		value := Valuate(p, p.CurrentPrice).CurrentValue
		key := keyFn(p)

		i, ok := index[key]
		if !ok {
			i = len(slices)
			index[key] = i
			slices = append(slices, Slice{Key: key, Value: decimal.Zero, Percentage: decimal.Zero})
		}
		slices[i].Value = slices[i].Value.Add(value)
		slices[i].Count++
		total = total.Add(value)
	}

	if !total.IsZero() {
		for i := range slices {
			slices[i].Percentage = slices[i].Value.Div(total).Mul(hundred)
		}
	}

	sort.SliceStable(slices, func(i, j int) bool {
		if c := slices[i].Value.Cmp(slices[j].Value); c != 0 {
			return c > 0
		}
		return slices[i].Key < slices[j].Key
	})

	return slices
}
