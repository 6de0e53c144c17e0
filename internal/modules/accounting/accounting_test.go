package accounting

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/aristath/holdings/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, expected string, actual decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	assert.True(t, d(expected).Equal(actual), append([]interface{}{"expected %s, got %s", expected, actual.String()}, msgAndArgs...)...)
}

func buy(quantity, price, fees string) domain.Operation {
	return domain.Operation{
		Identifier: "ITSA4",
		Type:       domain.OperationBuy,
		Quantity:   d(quantity),
		UnitPrice:  d(price),
		Fees:       d(fees),
		Date:       day,
	}
}

func sell(quantity, price, fees string) domain.Operation {
	op := buy(quantity, price, fees)
	op.Type = domain.OperationSell
	return op
}

// scenarioB builds the position reached after scenarios A and B
func scenarioB(t *testing.T) domain.Position {
	t.Helper()
	posA, _ := Bought(nil, buy("100", "10", "5"))
	posB, _ := Bought(&posA, buy("50", "12", "0"))
	return posB
}

func TestScenarioA_FirstBuy(t *testing.T) {
	res := ApplyBuy(nil, buy("100", "10", "5"))

	assertDecimal(t, "10.05", res.NewAveragePrice)
	assertDecimal(t, "100", res.NewTotalQuantity)
	assertDecimal(t, "1005", res.NewTotalInvested)
	assertDecimal(t, "1005", res.OperationCost)
}

func TestScenarioB_SecondBuyRebasesAverage(t *testing.T) {
	posA, _ := Bought(nil, buy("100", "10", "5"))

	res := ApplyBuy(&posA, buy("50", "12", "0"))

	assertDecimal(t, "150", res.NewTotalQuantity)
	assertDecimal(t, "1605", res.NewTotalInvested)
	assertDecimal(t, "10.7", res.NewAveragePrice)
}

func TestScenarioC_PartialSale(t *testing.T) {
	posB := scenarioB(t)

	next, res, err := Sold(&posB, sell("60", "15", "10"))
	require.NoError(t, err)

	assertDecimal(t, "900", res.GrossValue)
	assertDecimal(t, "890", res.NetValue)
	assertDecimal(t, "642", res.CostOfSoldLot)
	assertDecimal(t, "248", res.ProfitLoss)
	assertDecimal(t, "90", res.RemainingQuantity)
	assertDecimal(t, "963", res.NewTotalInvested)
	assert.False(t, res.Closed)

	assertDecimal(t, "10.7", next.AveragePrice, "average price must not change on sale")
	assertDecimal(t, "248", next.RealizedPnL)
	assert.Equal(t, domain.PositionStatusActive, next.Status)
	require.NoError(t, CheckInvariant(next))
}

func TestScenarioD_OversellRejected(t *testing.T) {
	posB := scenarioB(t)
	before := posB

	err := ValidateSell(sell("151", "15", "0"), &posB)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInsufficientQuantity))
	assert.Equal(t, before, posB)

	_, _, err = Sold(&posB, sell("151", "15", "0"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrQuantityExceedsPosition))
	assert.Equal(t, before, posB)
}

func TestScenarioE_ValuateWithoutPriceFallsBackToCost(t *testing.T) {
	posB := scenarioB(t)

	v := Valuate(posB, nil)

	assertDecimal(t, "1605", v.CurrentValue)
	assertDecimal(t, "0", v.UnrealizedPnL)
	assertDecimal(t, "0", v.UnrealizedPnLPercent)
	assert.False(t, v.MarketPriced)
}

func TestValuate_WithMarketPrice(t *testing.T) {
	posB := scenarioB(t)
	price := d("12")

	v := Valuate(posB, &price)

	assertDecimal(t, "1800", v.CurrentValue)
	assertDecimal(t, "195", v.UnrealizedPnL)
	assert.True(t, v.MarketPriced)
	assert.True(t, v.UnrealizedPnLPercent.Sub(d("12.1495327")).Abs().LessThan(d("0.0000001")))
}

func TestValuate_Idempotent(t *testing.T) {
	posB := scenarioB(t)
	price := d("11.37")

	first := Valuate(posB, &price)
	second := Valuate(posB, &price)

	assert.Equal(t, first, second)
}

func TestValuate_ZeroInvestedHasZeroPercent(t *testing.T) {
	v := Valuate(domain.Position{Identifier: "EMPTY"}, nil)
	assertDecimal(t, "0", v.CurrentValue)
	assertDecimal(t, "0", v.UnrealizedPnLPercent)
}

func TestRoundTrip_BuyThenSellSamePrice(t *testing.T) {
	pos, _ := Bought(nil, buy("37", "24.5", "0"))

	next, res, err := Sold(&pos, sell("37", "24.5", "0"))
	require.NoError(t, err)

	assertDecimal(t, "0", res.ProfitLoss)
	assertDecimal(t, "0", res.RemainingQuantity)
	assert.True(t, res.Closed)
	assert.Equal(t, domain.PositionStatusClosed, next.Status)
}

func TestSellExactQuantityClosesPosition(t *testing.T) {
	posB := scenarioB(t)

	require.NoError(t, ValidateSell(sell("150", "9", "2"), &posB))
	next, res, err := Sold(&posB, sell("150", "9", "2"))
	require.NoError(t, err)

	assert.True(t, res.Closed)
	assertDecimal(t, "0", res.RemainingQuantity)
	assertDecimal(t, "-257", res.ProfitLoss) // 1348 net - 1605 cost
	assert.Equal(t, domain.PositionStatusClosed, next.Status)
	require.NotNil(t, next.ClosedAt)
	assertDecimal(t, "0", next.AveragePrice)
	assertDecimal(t, "0", next.TotalInvested)
	require.NoError(t, CheckInvariant(next))
}

func TestBuyAfterCloseStartsFreshCostBasis(t *testing.T) {
	posB := scenarioB(t)
	closed, _, err := Sold(&posB, sell("150", "15", "0"))
	require.NoError(t, err)
	require.Equal(t, domain.PositionStatusClosed, closed.Status)

	reopenDate := day.AddDate(0, 1, 0)
	op := buy("10", "20", "1")
	op.Date = reopenDate
	reopened, res := Bought(&closed, op)

	assertDecimal(t, "20.1", res.NewAveragePrice)
	assertDecimal(t, "10", reopened.TotalQuantity)
	assertDecimal(t, "201", reopened.TotalInvested)
	assert.Equal(t, domain.PositionStatusActive, reopened.Status)
	assert.Nil(t, reopened.ClosedAt)
	assert.Equal(t, reopenDate, reopened.OpenedAt)
	assertDecimal(t, "645", reopened.RealizedPnL, "realized history survives reopen") // 2250 - 1605
}

func TestBuyAfterCloseDropsStalePrice(t *testing.T) {
	posB := scenarioB(t)
	price := d("14")
	priced := day.AddDate(0, 0, 1)
	posB.CurrentPrice = &price
	posB.PriceUpdatedAt = &priced

	closed, _, err := Sold(&posB, sell("150", "15", "0"))
	require.NoError(t, err)
	require.NotNil(t, closed.CurrentPrice)

	reopened, _ := Bought(&closed, buy("10", "20", "0"))
	assert.Nil(t, reopened.CurrentPrice)
	assert.Nil(t, reopened.PriceUpdatedAt)

	v := Valuate(reopened, reopened.CurrentPrice)
	assertDecimal(t, "200", v.CurrentValue)
	assertDecimal(t, "0", v.UnrealizedPnL)

	kept, _ := Bought(&posB, buy("10", "20", "0"))
	require.NotNil(t, kept.CurrentPrice, "an open position keeps its price")
	assertDecimal(t, "14", *kept.CurrentPrice)
}

func TestBoughtDoesNotMutateInput(t *testing.T) {
	posB := scenarioB(t)
	snapshot := posB

	_, _ = Bought(&posB, buy("1", "100", "0"))

	assert.Equal(t, snapshot, posB)
}

func TestInvariant_RandomBuySequences(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for seq := 0; seq < 200; seq++ {
		var pos *domain.Position
		steps := 1 + rng.Intn(25)
		for i := 0; i < steps; i++ {
			op := domain.Operation{
				Identifier: "RAND3",
				Type:       domain.OperationBuy,
				Quantity:   decimal.New(int64(1+rng.Intn(100000)), -int32(rng.Intn(5))),
				UnitPrice:  decimal.New(int64(1+rng.Intn(1000000)), -2),
				Fees:       decimal.New(int64(rng.Intn(5000)), -2),
				Date:       day,
			}
			next, _ := Bought(pos, op)
			require.NoError(t, CheckInvariant(next), "sequence %d step %d", seq, i)
			pos = &next
		}
	}
}

func TestInvariant_RandomBuySellSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for seq := 0; seq < 100; seq++ {
		var pos *domain.Position
		for i := 0; i < 30; i++ {
			if pos.IsOpen() && rng.Intn(3) == 0 {
				// sell between 1 unit and everything held
				held := pos.TotalQuantity.IntPart()
				qty := pos.TotalQuantity
				if held > 1 {
					qty = decimal.NewFromInt(1 + rng.Int63n(held))
				}
				next, _, err := Sold(pos, domain.Operation{
					Identifier: "RAND3",
					Type:       domain.OperationSell,
					Quantity:   qty,
					UnitPrice:  decimal.New(int64(1+rng.Intn(100000)), -2),
					Fees:       decimal.New(int64(rng.Intn(1000)), -2),
					Date:       day,
				})
				require.NoError(t, err)
				require.NoError(t, CheckInvariant(next))
				pos = &next
				continue
			}

			next, _ := Bought(pos, domain.Operation{
				Identifier: "RAND3",
				Type:       domain.OperationBuy,
				Quantity:   decimal.NewFromInt(int64(1 + rng.Intn(500))),
				UnitPrice:  decimal.New(int64(1+rng.Intn(100000)), -2),
				Fees:       decimal.New(int64(rng.Intn(1000)), -2),
				Date:       day,
			})
			require.NoError(t, CheckInvariant(next))
			pos = &next
		}
	}
}

func TestCheckInvariant_DetectsDrift(t *testing.T) {
	pos := scenarioB(t)
	pos.TotalInvested = pos.TotalInvested.Add(d("1"))
	assert.Error(t, CheckInvariant(pos))

	closed := domain.Position{Identifier: "X", TotalInvested: d("5")}
	assert.Error(t, CheckInvariant(closed))

	negative := domain.Position{Identifier: "X", TotalQuantity: d("-1")}
	assert.Error(t, CheckInvariant(negative))
}

func TestReplay(t *testing.T) {
	ops := []domain.Operation{
		buy("100", "10", "5"),
		buy("50", "12", "0"),
		sell("60", "15", "10"),
	}

	pos, err := Replay(ops)
	require.NoError(t, err)
	require.NotNil(t, pos)

	assertDecimal(t, "90", pos.TotalQuantity)
	assertDecimal(t, "10.7", pos.AveragePrice)
	assertDecimal(t, "963", pos.TotalInvested)
	assertDecimal(t, "248", pos.RealizedPnL)
}

func TestReplay_Empty(t *testing.T) {
	pos, err := Replay(nil)
	require.NoError(t, err)
	assert.Nil(t, pos)
}

func TestReplay_InvalidHistory(t *testing.T) {
	_, err := Replay([]domain.Operation{buy("1", "10", "0"), sell("2", "10", "0")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrQuantityExceedsPosition))

	_, err = Replay([]domain.Operation{buy("0", "10", "0")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidQuantity))
}
