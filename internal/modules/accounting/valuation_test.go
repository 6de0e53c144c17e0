package accounting

import (
	"testing"

	"github.com/aristath/holdings/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func position(identifier string, assetType domain.AssetType, broker, quantity, avg string, price *string) domain.Position {
	p := domain.Position{
		Identifier:    identifier,
		AssetType:     assetType,
		Broker:        broker,
		Currency:      "BRL",
		Status:        domain.PositionStatusActive,
		TotalQuantity: d(quantity),
		AveragePrice:  d(avg),
	}
	p.TotalInvested = p.TotalQuantity.Mul(p.AveragePrice)
	if price != nil {
		v := d(*price)
		p.CurrentPrice = &v
	}
	return p
}

func strPtr(s string) *string { return &s }

func TestDistributeBy_Empty(t *testing.T) {
	slices := DistributeBy(nil, ByAssetType)
	require.NotNil(t, slices)
	assert.Empty(t, slices)
}

func TestDistributeBy_AssetType(t *testing.T) {
	positions := []domain.Position{
		position("ITSA4", domain.AssetTypeStock, "xp", "100", "10", strPtr("12")),  // 1200
		position("PETR4", domain.AssetTypeStock, "xp", "10", "30", nil),            // 300 at cost
		position("HGLG11", domain.AssetTypeFII, "rico", "3", "160", strPtr("150")), // 450
		position("BTC", domain.AssetTypeCrypto, "", "0.01", "5000", nil),           // 50
	}

	slices := DistributeBy(positions, ByAssetType)
	require.Len(t, slices, 3)

	assert.Equal(t, "stock", slices[0].Key)
	assertDecimal(t, "1500", slices[0].Value)
	assertDecimal(t, "75", slices[0].Percentage)
	assert.Equal(t, 2, slices[0].Count)

	assert.Equal(t, "fii", slices[1].Key)
	assertDecimal(t, "22.5", slices[1].Percentage)

	assert.Equal(t, "crypto", slices[2].Key)
	assertDecimal(t, "2.5", slices[2].Percentage)

	total := decimal.Zero
	for _, s := range slices {
		total = total.Add(s.Percentage)
	}
	assertDecimal(t, "100", total)
}

func TestDistributeBy_BrokerFallback(t *testing.T) {
	positions := []domain.Position{
		position("A", domain.AssetTypeStock, "", "1", "10", nil),
		position("B", domain.AssetTypeStock, "  ", "1", "10", nil),
		position("C", domain.AssetTypeStock, "xp", "1", "20", nil),
	}

	slices := DistributeBy(positions, ByBroker)
	require.Len(t, slices, 2)
	// equal values, ordered by key
	assert.Equal(t, "unassigned", slices[1].Key)
	assert.Equal(t, "xp", slices[0].Key)
	assert.Equal(t, 2, slices[1].Count)
}

func TestDistributeBy_TiesOrderedByKey(t *testing.T) {
	positions := []domain.Position{
		position("Z", domain.AssetTypeETF, "", "1", "10", nil),
		position("A", domain.AssetTypeBDR, "", "1", "10", nil),
	}

	slices := DistributeBy(positions, ByAssetType)
	require.Len(t, slices, 2)
	assert.Equal(t, "bdr", slices[0].Key)
	assert.Equal(t, "etf", slices[1].Key)
}

func TestDistributeBy_ZeroTotal(t *testing.T) {
	positions := []domain.Position{
		position("A", domain.AssetTypeStock, "", "0", "0", nil),
		position("B", domain.AssetTypeFund, "", "0", "0", nil),
	}

	slices := DistributeBy(positions, ByAssetType)
	require.Len(t, slices, 2)
	for _, s := range slices {
		assertDecimal(t, "0", s.Percentage)
	}
}

func TestDistributeBy_Currency(t *testing.T) {
	usd := position("AAPL", domain.AssetTypeStock, "", "1", "100", nil)
	usd.Currency = "USD"
	brl := position("ITSA4", domain.AssetTypeStock, "", "1", "300", nil)

	slices := DistributeBy([]domain.Position{usd, brl}, ByCurrency)
	require.Len(t, slices, 2)
	assert.Equal(t, "BRL", slices[0].Key)
	assertDecimal(t, "75", slices[0].Percentage)
}
