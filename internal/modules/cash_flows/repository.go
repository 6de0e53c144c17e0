package cash_flows

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/holdings/internal/database"
	"github.com/aristath/holdings/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const cashFlowColumns = "id, account_id, type, amount, balance_after, operation_id, description, date"

// Repository handles the append-only cash flow trail in ledger.db.
// Rows are never updated or deleted.
type Repository struct {
	db  database.Querier
	log zerolog.Logger
}

// NewRepository creates a new cash flow repository
func NewRepository(db database.Querier, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "cash_flows").Logger(),
	}
}

// WithQuerier returns a copy of the repository bound to q, typically a *sql.Tx
func (r *Repository) WithQuerier(q database.Querier) *Repository {
	return &Repository{db: q, log: r.log}
}

// Append records a cash flow. An empty ID is filled with a new UUID and the
// stored flow is returned.
func (r *Repository) Append(ctx context.Context, flow domain.CashFlow) (domain.CashFlow, error) {
	if flow.ID == "" {
		flow.ID = uuid.New().String()
	}
	flow.AccountID = normalizeAccountID(flow.AccountID)
	if flow.Date.IsZero() {
		flow.Date = time.Now()
	}

	var operationID sql.NullString
	if flow.OperationID != "" {
		operationID = sql.NullString{String: flow.OperationID, Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO cash_flows ("+cashFlowColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		flow.ID,
		flow.AccountID,
		string(flow.Type),
		flow.Amount,
		flow.BalanceAfter,
		operationID,
		flow.Description,
		flow.Date.Unix(),
	)
	if err != nil {
		return flow, fmt.Errorf("failed to insert cash flow: %w", err)
	}

	r.log.Debug().
		Str("account", flow.AccountID).
		Str("type", string(flow.Type)).
		Str("amount", flow.Amount.String()).
		Msg("Cash flow recorded")

	flow.Date = time.Unix(flow.Date.Unix(), 0).UTC()
	return flow, nil
}

// GetByAccount returns the most recent flows of an account, newest first.
// A limit <= 0 returns the whole history.
func (r *Repository) GetByAccount(ctx context.Context, accountID string, limit int) ([]domain.CashFlow, error) {
	query := "SELECT " + cashFlowColumns + " FROM cash_flows WHERE account_id = ? ORDER BY seq DESC"
	args := []interface{}{normalizeAccountID(accountID)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return r.query(ctx, query, args...)
}

// GetByOperation returns the flows produced by a trade
func (r *Repository) GetByOperation(ctx context.Context, operationID string) ([]domain.CashFlow, error) {
	return r.query(ctx,
		"SELECT "+cashFlowColumns+" FROM cash_flows WHERE operation_id = ? ORDER BY seq",
		operationID)
}

func (r *Repository) query(ctx context.Context, query string, args ...interface{}) ([]domain.CashFlow, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cash flows: %w", err)
	}
	defer rows.Close()

	flows := make([]domain.CashFlow, 0)
	for rows.Next() {
		var flow domain.CashFlow
		var flowType string
		var operationID sql.NullString
		var date int64

		err := rows.Scan(
			&flow.ID,
			&flow.AccountID,
			&flowType,
			&flow.Amount,
			&flow.BalanceAfter,
			&operationID,
			&flow.Description,
			&date,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cash flow: %w", err)
		}

		flow.Type = domain.CashFlowType(flowType)
		flow.OperationID = operationID.String
		flow.Date = time.Unix(date, 0).UTC()
		flows = append(flows, flow)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cash flows: %w", err)
	}

	return flows, nil
}
