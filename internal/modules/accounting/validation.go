// Package accounting implements weighted-average-cost position accounting.
//
// Every function in this package is pure: inputs are values (or read-only
// pointers), results are new values, and there is no package-level state.
// Serializing operations on the same identifier and persisting the results
// atomically is the caller's job (see the trading module).
package accounting

import (
	"github.com/aristath/holdings/internal/domain"
	"github.com/shopspring/decimal"
)

// validateFields checks the fields shared by buys and sells.
// Checks run in a fixed order so the first failing field is reported.
func validateFields(op domain.Operation) error {
	if !op.Quantity.IsPositive() {
		return domain.NewOperationError(domain.KindInvalidQuantity, op.Identifier,
			"quantity must be greater than zero, got %s", op.Quantity)
	}
	if !op.UnitPrice.IsPositive() {
		return domain.NewOperationError(domain.KindInvalidPrice, op.Identifier,
			"unit price must be greater than zero, got %s", op.UnitPrice)
	}
	if op.Fees.IsNegative() {
		return domain.NewOperationError(domain.KindInvalidFees, op.Identifier,
			"fees must not be negative, got %s", op.Fees)
	}
	return nil
}

// OperationCost is what a buy takes out of the account: quantity*unitPrice + fees
func OperationCost(op domain.Operation) decimal.Decimal {
	return op.Quantity.Mul(op.UnitPrice).Add(op.Fees)
}

// ValidateBuy checks a buy against the account's available balance
func ValidateBuy(op domain.Operation, availableBalance decimal.Decimal) error {
	if err := validateFields(op); err != nil {
		return err
	}

	cost := OperationCost(op)
	if cost.GreaterThan(availableBalance) {
		return domain.NewOperationError(domain.KindInsufficientFunds, op.Identifier,
			"operation costs %s but only %s is available", cost, availableBalance)
	}
	return nil
}

// ValidateSell checks a sell against the position it would reduce
func ValidateSell(op domain.Operation, position *domain.Position) error {
	if err := validateFields(op); err != nil {
		return err
	}

	if !position.IsOpen() {
		return domain.NewOperationError(domain.KindPositionNotFound, op.Identifier,
			"no open position to sell from")
	}

	if op.Quantity.GreaterThan(position.TotalQuantity) {
		return domain.NewOperationError(domain.KindInsufficientQuantity, op.Identifier,
			"cannot sell %s, only %s held", op.Quantity, position.TotalQuantity)
	}
	return nil
}
