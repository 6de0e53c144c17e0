package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// PositionReader supplies the current state of a position.
// Implementations return nil, nil when no position exists for the identifier.
type PositionReader interface {
	GetByIdentifier(ctx context.Context, identifier string) (*Position, error)
}

// PositionWriter persists a position as a single-row upsert
type PositionWriter interface {
	Save(ctx context.Context, position Position) error
}

// BalanceReader supplies the available cash balance of an account
type BalanceReader interface {
	GetBalance(ctx context.Context, accountID string) (decimal.Decimal, error)
}

// OperationAppender appends an operation to the append-only ledger
type OperationAppender interface {
	Append(ctx context.Context, op Operation) error
}

// PriceSetter records an externally supplied market price on a position
type PriceSetter interface {
	UpdatePrice(ctx context.Context, identifier string, price decimal.Decimal, at time.Time) error
}
