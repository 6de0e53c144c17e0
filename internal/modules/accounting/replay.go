package accounting

import (
	"fmt"

	"github.com/aristath/holdings/internal/domain"
	"github.com/shopspring/decimal"
)

// InvariantTolerance is the relative tolerance allowed between TotalInvested
// and AveragePrice*TotalQuantity. Division rounds to decimal.DivisionPrecision
// digits, so the product can differ in the last places.
var InvariantTolerance = decimal.New(1, -6)

// CheckInvariant verifies the cost-basis invariants of a position
func CheckInvariant(p domain.Position) error {
	if p.TotalQuantity.IsNegative() {
		return fmt.Errorf("%s: negative quantity %s", p.Identifier, p.TotalQuantity)
	}
	if p.TotalInvested.IsNegative() {
		return fmt.Errorf("%s: negative total invested %s", p.Identifier, p.TotalInvested)
	}
	if p.TotalQuantity.IsZero() {
		if !p.TotalInvested.IsZero() {
			return fmt.Errorf("%s: zero quantity but total invested is %s", p.Identifier, p.TotalInvested)
		}
		return nil
	}

	expected := p.AveragePrice.Mul(p.TotalQuantity)
	diff := p.TotalInvested.Sub(expected).Abs()
	scale := decimal.Max(p.TotalInvested.Abs(), decimal.NewFromInt(1))
	if diff.GreaterThan(InvariantTolerance.Mul(scale)) {
		return fmt.Errorf("%s: total invested %s differs from average price * quantity %s",
			p.Identifier, p.TotalInvested, expected)
	}
	return nil
}

// Replay rebuilds a position from its ordered operation history.
// It returns nil when ops is empty. The first operation that cannot be
// applied stops the replay and its error is returned.
func Replay(ops []domain.Operation) (*domain.Position, error) {
	var current *domain.Position

	for i, op := range ops {
		if err := validateFields(op); err != nil {
			return nil, fmt.Errorf("failed to replay operation %d (%s): %w", i, op.ID, err)
		}

		switch op.Type {
		case domain.OperationBuy:
			next, _ := Bought(current, op)
			current = &next
		case domain.OperationSell:
			next, _, err := Sold(current, op)
			if err != nil {
				return nil, fmt.Errorf("failed to replay operation %d (%s): %w", i, op.ID, err)
			}
			current = &next
		default:
			return nil, fmt.Errorf("failed to replay operation %d (%s): unknown type %q", i, op.ID, op.Type)
		}
	}

	return current, nil
}
