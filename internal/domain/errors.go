package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why an operation was rejected.
// Every kind is a user-correctable input error; none of them is retried.
type ErrorKind string

const (
	KindInvalidQuantity         ErrorKind = "InvalidQuantity"
	KindInvalidPrice            ErrorKind = "InvalidPrice"
	KindInvalidFees             ErrorKind = "InvalidFees"
	KindInsufficientFunds       ErrorKind = "InsufficientFunds"
	KindInsufficientQuantity    ErrorKind = "InsufficientQuantity"
	KindQuantityExceedsPosition ErrorKind = "QuantityExceedsPosition"
	KindPositionNotFound        ErrorKind = "PositionNotFound"
	KindInvalidAmount           ErrorKind = "InvalidAmount"
	KindAccountNotFound         ErrorKind = "AccountNotFound"
	KindInvalidCurrency         ErrorKind = "InvalidCurrency"
)

// OperationError is returned when an operation is rejected before any state changes
type OperationError struct {
	Kind       ErrorKind
	Identifier string
	Message    string
}

func (e *OperationError) Error() string {
	if e.Identifier != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Identifier, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is matches any OperationError of the same kind, so callers can compare
// against the sentinel values below with errors.Is.
func (e *OperationError) Is(target error) bool {
	var other *OperationError
	if !errors.As(target, &other) {
		return false
	}
	return other.Kind == e.Kind
}

// Sentinels for errors.Is comparisons
var (
	ErrInvalidQuantity         = &OperationError{Kind: KindInvalidQuantity, Message: "quantity must be greater than zero"}
	ErrInvalidPrice            = &OperationError{Kind: KindInvalidPrice, Message: "unit price must be greater than zero"}
	ErrInvalidFees             = &OperationError{Kind: KindInvalidFees, Message: "fees must not be negative"}
	ErrInsufficientFunds       = &OperationError{Kind: KindInsufficientFunds, Message: "insufficient funds"}
	ErrInsufficientQuantity    = &OperationError{Kind: KindInsufficientQuantity, Message: "insufficient quantity"}
	ErrQuantityExceedsPosition = &OperationError{Kind: KindQuantityExceedsPosition, Message: "quantity exceeds position"}
	ErrPositionNotFound        = &OperationError{Kind: KindPositionNotFound, Message: "position not found"}
	ErrInvalidAmount           = &OperationError{Kind: KindInvalidAmount, Message: "amount must be greater than zero"}
	ErrAccountNotFound         = &OperationError{Kind: KindAccountNotFound, Message: "account not found"}
	ErrInvalidCurrency         = &OperationError{Kind: KindInvalidCurrency, Message: "unsupported currency"}
)

// NewOperationError builds a rejection for a specific identifier
func NewOperationError(kind ErrorKind, identifier, format string, args ...interface{}) *OperationError {
	return &OperationError{
		Kind:       kind,
		Identifier: identifier,
		Message:    fmt.Sprintf(format, args...),
	}
}

// IsNotFound reports whether err rejects a missing position or account
func IsNotFound(err error) bool {
	kind, ok := KindOf(err)
	return ok && (kind == KindPositionNotFound || kind == KindAccountNotFound)
}

// KindOf extracts the rejection kind from err (which may be wrapped).
// It returns false for errors that are not operation rejections.
func KindOf(err error) (ErrorKind, bool) {
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return opErr.Kind, true
	}
	return "", false
}
