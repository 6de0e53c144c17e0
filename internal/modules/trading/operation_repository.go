package trading

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/holdings/internal/database"
	"github.com/aristath/holdings/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// operationColumns is the column list shared by every SELECT.
// Order must match scanOperation.
const operationColumns = `id, account_id, identifier, type, quantity, unit_price, fees,
	gross_value, net_value, cost_basis, profit_loss, average_price_after, quantity_after,
	notes, date, created_at`

// OperationRepository handles the append-only operation ledger in ledger.db
type OperationRepository struct {
	db  database.Querier
	log zerolog.Logger
}

// NewOperationRepository creates a new operation repository
func NewOperationRepository(db database.Querier, log zerolog.Logger) *OperationRepository {
	return &OperationRepository{
		db:  db,
		log: log.With().Str("repo", "operation").Logger(),
	}
}

// WithQuerier returns a copy of the repository bound to q, typically a *sql.Tx
func (r *OperationRepository) WithQuerier(q database.Querier) *OperationRepository {
	return &OperationRepository{db: q, log: r.log}
}

var _ domain.OperationAppender = (*OperationRepository)(nil)

// Append records an applied operation. Operations are never updated; the
// insertion order is the order replay applies them in.
func (r *OperationRepository) Append(ctx context.Context, op domain.Operation) error {
	if op.ID == "" {
		op.ID = uuid.New().String()
	}
	if op.CreatedAt.IsZero() {
		op.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO operations (` + operationColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		op.ID,
		op.AccountID,
		domain.NormalizeIdentifier(op.Identifier),
		string(op.Type),
		op.Quantity,
		op.UnitPrice,
		op.Fees,
		op.GrossValue,
		op.NetValue,
		op.CostBasis,
		op.ProfitLoss,
		op.AveragePriceAfter,
		op.QuantityAfter,
		op.Notes,
		op.Date.Unix(),
		op.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to append operation: %w", err)
	}

	r.log.Info().
		Str("id", op.ID).
		Str("identifier", op.Identifier).
		Str("type", string(op.Type)).
		Str("quantity", op.Quantity.String()).
		Str("unit_price", op.UnitPrice.String()).
		Msg("Operation recorded")

	return nil
}

// GetByID returns an operation, or nil if it does not exist
func (r *OperationRepository) GetByID(ctx context.Context, id string) (*domain.Operation, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+operationColumns+" FROM operations WHERE id = ?", id)

	op, err := scanOperation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get operation %s: %w", id, err)
	}
	return &op, nil
}

// GetHistory returns the most recent operations, newest first.
// A limit <= 0 returns the whole ledger.
func (r *OperationRepository) GetHistory(ctx context.Context, limit int) ([]domain.Operation, error) {
	query := "SELECT " + operationColumns + " FROM operations ORDER BY seq DESC"
	if limit > 0 {
		return r.query(ctx, query+" LIMIT ?", limit)
	}
	return r.query(ctx, query)
}

// GetByIdentifier returns every operation of an identifier in application order
func (r *OperationRepository) GetByIdentifier(ctx context.Context, identifier string) ([]domain.Operation, error) {
	return r.query(ctx,
		"SELECT "+operationColumns+" FROM operations WHERE identifier = ? ORDER BY seq",
		domain.NormalizeIdentifier(identifier))
}

// GetIdentifiers returns every identifier that has at least one operation
func (r *OperationRepository) GetIdentifiers(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT DISTINCT identifier FROM operations ORDER BY identifier")
	if err != nil {
		return nil, fmt.Errorf("failed to query operation identifiers: %w", err)
	}
	defer rows.Close()

	identifiers := make([]string, 0)
	for rows.Next() {
		var identifier string
		if err := rows.Scan(&identifier); err != nil {
			return nil, fmt.Errorf("failed to scan identifier: %w", err)
		}
		identifiers = append(identifiers, identifier)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating identifiers: %w", err)
	}

	return identifiers, nil
}

// RealizedPnL sums the recorded profit or loss of every sale of an identifier.
// Amounts are TEXT columns, so the sum is taken in Go to stay exact.
func (r *OperationRepository) RealizedPnL(ctx context.Context, identifier string) (decimal.Decimal, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT profit_loss FROM operations WHERE identifier = ? AND type = ?",
		domain.NormalizeIdentifier(identifier), string(domain.OperationSell))
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query realized P&L: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var pnl decimal.Decimal
		if err := rows.Scan(&pnl); err != nil {
			return decimal.Zero, fmt.Errorf("failed to scan profit_loss: %w", err)
		}
		total = total.Add(pnl)
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, fmt.Errorf("error iterating profit_loss: %w", err)
	}

	return total, nil
}

func (r *OperationRepository) query(ctx context.Context, query string, args ...interface{}) ([]domain.Operation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query operations: %w", err)
	}
	defer rows.Close()

	ops := make([]domain.Operation, 0)
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan operation: %w", err)
		}
		ops = append(ops, op)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating operations: %w", err)
	}

	return ops, nil
}

func scanOperation(row interface{ Scan(...interface{}) error }) (domain.Operation, error) {
	var op domain.Operation
	var opType string
	var date, createdAt int64

	err := row.Scan(
		&op.ID,
		&op.AccountID,
		&op.Identifier,
		&opType,
		&op.Quantity,
		&op.UnitPrice,
		&op.Fees,
		&op.GrossValue,
		&op.NetValue,
		&op.CostBasis,
		&op.ProfitLoss,
		&op.AveragePriceAfter,
		&op.QuantityAfter,
		&op.Notes,
		&date,
		&createdAt,
	)
	if err != nil {
		return op, err
	}

	op.Type = domain.OperationType(opType)
	op.Date = time.Unix(date, 0).UTC()
	op.CreatedAt = time.Unix(createdAt, 0).UTC()
	return op, nil
}
