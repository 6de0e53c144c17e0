package testing

import (
	"time"

	"github.com/aristath/holdings/internal/domain"
	"github.com/shopspring/decimal"
)

// FixtureTime is the clock used by fixtures
var FixtureTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// Dec parses a decimal literal and panics on malformed input
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// DecPtr returns a pointer to a parsed decimal
func DecPtr(s string) *decimal.Decimal {
	d := Dec(s)
	return &d
}

// NewPositionFixture returns an active position whose invested amount matches
// quantity * average price.
func NewPositionFixture(identifier string, assetType domain.AssetType, quantity, averagePrice string) domain.Position {
	qty := Dec(quantity)
	avg := Dec(averagePrice)
	return domain.Position{
		Identifier:    identifier,
		AssetType:     assetType,
		Currency:      "BRL",
		Status:        domain.PositionStatusActive,
		TotalQuantity: qty,
		AveragePrice:  avg,
		TotalInvested: qty.Mul(avg),
		RealizedPnL:   decimal.Zero,
		OpenedAt:      FixtureTime,
		UpdatedAt:     FixtureTime,
	}
}

// NewPositionFixtures returns a small mixed portfolio
func NewPositionFixtures() []domain.Position {
	return []domain.Position{
		NewPositionFixture("ITSA4", domain.AssetTypeStock, "100", "10"),
		NewPositionFixture("HGLG11", domain.AssetTypeFII, "10", "160"),
		NewPositionFixture("IVVB11", domain.AssetTypeETF, "5", "300"),
	}
}

// NewAccountFixture returns an account holding balance
func NewAccountFixture(id, balance string) domain.Account {
	return domain.Account{
		ID:        id,
		Currency:  "BRL",
		Balance:   Dec(balance),
		CreatedAt: FixtureTime,
		UpdatedAt: FixtureTime,
	}
}
