package accounting

import (
	"github.com/aristath/holdings/internal/domain"
	"github.com/shopspring/decimal"
)

// BuyResult is the state of a position after a buy
type BuyResult struct {
	NewAveragePrice  decimal.Decimal `json:"new_average_price"`
	NewTotalQuantity decimal.Decimal `json:"new_total_quantity"`
	NewTotalInvested decimal.Decimal `json:"new_total_invested"`
	OperationCost    decimal.Decimal `json:"operation_cost"`
}

// ApplyBuy re-bases the weighted average cost across the combined lot.
// Fees are capitalized into the cost basis. A nil or closed position starts a
// fresh cost basis. The operation must already have passed ValidateBuy, which
// guarantees a positive quantity.
func ApplyBuy(position *domain.Position, op domain.Operation) BuyResult {
	cost := OperationCost(op)

	if !position.IsOpen() {
		return BuyResult{
			NewAveragePrice:  cost.Div(op.Quantity),
			NewTotalQuantity: op.Quantity,
			NewTotalInvested: cost,
			OperationCost:    cost,
		}
	}

	totalCost := position.TotalInvested.Add(cost)
	totalQuantity := position.TotalQuantity.Add(op.Quantity)

	return BuyResult{
		NewAveragePrice:  totalCost.Div(totalQuantity),
		NewTotalQuantity: totalQuantity,
		NewTotalInvested: totalCost,
		OperationCost:    cost,
	}
}

// Bought returns the position that results from applying a buy.
// The input position is not modified. Descriptive fields (name, asset type,
// broker, currency) and the realized P&L history carry over from the previous
// state, including when a closed position is reopened. A reopened position
// drops its last market price until a new one is set.
func Bought(position *domain.Position, op domain.Operation) (domain.Position, BuyResult) {
	res := ApplyBuy(position, op)

	var next domain.Position
	if position != nil {
		next = *position
	} else {
		next = domain.Position{
			Identifier: op.Identifier,
			AssetType:  domain.AssetTypeOther,
		}
	}

	if !position.IsOpen() {
		next.OpenedAt = op.Date
		next.ClosedAt = nil
		next.CurrentPrice = nil
		next.PriceUpdatedAt = nil
	}

	next.Status = domain.PositionStatusActive
	next.TotalQuantity = res.NewTotalQuantity
	next.AveragePrice = res.NewAveragePrice
	next.TotalInvested = res.NewTotalInvested
	next.UpdatedAt = op.Date

	return next, res
}
