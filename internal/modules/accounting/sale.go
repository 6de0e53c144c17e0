package accounting

import (
	"github.com/aristath/holdings/internal/domain"
	"github.com/shopspring/decimal"
)

// SaleResult is the outcome of selling part or all of a position
type SaleResult struct {
	GrossValue        decimal.Decimal `json:"gross_value"`
	NetValue          decimal.Decimal `json:"net_value"`
	CostOfSoldLot     decimal.Decimal `json:"cost_of_sold_lot"`
	ProfitLoss        decimal.Decimal `json:"profit_loss"`
	RemainingQuantity decimal.Decimal `json:"remaining_quantity"`
	NewTotalInvested  decimal.Decimal `json:"new_total_invested"`
	Closed            bool            `json:"closed"`
}

// ApplySale realizes profit or loss against the current weighted average price.
// The average price of the remaining quantity is unchanged; only the total
// invested shrinks proportionally.
//
// ApplySale re-checks the held quantity itself and fails with
// QuantityExceedsPosition rather than clamping, even when ValidateSell was skipped.
func ApplySale(position *domain.Position, op domain.Operation) (SaleResult, error) {
	if !position.IsOpen() {
		return SaleResult{}, domain.NewOperationError(domain.KindPositionNotFound, op.Identifier,
			"no open position to sell from")
	}
	if op.Quantity.GreaterThan(position.TotalQuantity) {
		return SaleResult{}, domain.NewOperationError(domain.KindQuantityExceedsPosition, op.Identifier,
			"sell quantity %s exceeds position quantity %s", op.Quantity, position.TotalQuantity)
	}

	gross := op.Quantity.Mul(op.UnitPrice)
	net := gross.Sub(op.Fees)
	costOfSoldLot := position.AveragePrice.Mul(op.Quantity)
	remaining := position.TotalQuantity.Sub(op.Quantity)

	return SaleResult{
		GrossValue:        gross,
		NetValue:          net,
		CostOfSoldLot:     costOfSoldLot,
		ProfitLoss:        net.Sub(costOfSoldLot),
		RemainingQuantity: remaining,
		NewTotalInvested:  position.AveragePrice.Mul(remaining),
		Closed:            remaining.IsZero(),
	}, nil
}

// Sold returns the position that results from applying a sell.
// When the position is fully sold it transitions to closed and its average
// price is zeroed so it cannot leak into later arithmetic.
func Sold(position *domain.Position, op domain.Operation) (domain.Position, SaleResult, error) {
	res, err := ApplySale(position, op)
	if err != nil {
		return domain.Position{}, SaleResult{}, err
	}

	next := *position
	next.TotalQuantity = res.RemainingQuantity
	next.TotalInvested = res.NewTotalInvested
	next.RealizedPnL = next.RealizedPnL.Add(res.ProfitLoss)
	next.UpdatedAt = op.Date

	if res.Closed {
		closedAt := op.Date
		next.Status = domain.PositionStatusClosed
		next.AveragePrice = decimal.Zero
		next.TotalInvested = decimal.Zero
		next.ClosedAt = &closedAt
	}

	return next, res, nil
}
