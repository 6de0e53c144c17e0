// Package cash_flows manages cash accounts and the append-only trail of cash movements.
package cash_flows

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/holdings/internal/database"
	"github.com/aristath/holdings/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// CashRepository handles account balance persistence in ledger.db.
// Balances are stored as decimal TEXT and only change through Adjust, so every
// change can be paired with a cash flow row in the same transaction.
type CashRepository struct {
	db  database.Querier
	log zerolog.Logger
}

// NewCashRepository creates a new cash repository
func NewCashRepository(db database.Querier, log zerolog.Logger) *CashRepository {
	return &CashRepository{
		db:  db,
		log: log.With().Str("repo", "cash_balance").Logger(),
	}
}

// WithQuerier returns a copy of the repository bound to q, typically a *sql.Tx
func (r *CashRepository) WithQuerier(q database.Querier) *CashRepository {
	return &CashRepository{db: q, log: r.log}
}

// GetAccount returns an account, or nil if it does not exist
func (r *CashRepository) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT id, currency, balance, created_at, updated_at FROM accounts WHERE id = ?",
		normalizeAccountID(accountID))

	account, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account %s: %w", accountID, err)
	}
	return &account, nil
}

var _ domain.BalanceReader = (*CashRepository)(nil)

// GetBalance returns the available balance of an account.
// Unlike GetAccount, a missing account is an AccountNotFound rejection.
func (r *CashRepository) GetBalance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	account, err := r.GetAccount(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	if account == nil {
		return decimal.Zero, domain.NewOperationError(domain.KindAccountNotFound, "", "account %q does not exist", accountID)
	}
	return account.Balance, nil
}

// GetAll returns all accounts ordered by id
func (r *CashRepository) GetAll(ctx context.Context) ([]domain.Account, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, currency, balance, created_at, updated_at FROM accounts ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]domain.Account, 0)
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}

	return accounts, nil
}

// Upsert inserts an account or updates its currency and balance
func (r *CashRepository) Upsert(ctx context.Context, account domain.Account) error {
	account.ID = normalizeAccountID(account.ID)
	if account.ID == "" {
		return fmt.Errorf("account id is required")
	}
	now := time.Now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	if account.UpdatedAt.IsZero() {
		account.UpdatedAt = now
	}

	query := `
		INSERT INTO accounts (id, currency, balance, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			currency = excluded.currency,
			balance = excluded.balance,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		account.ID,
		account.Currency,
		account.Balance,
		account.CreatedAt.Unix(),
		account.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert account %s: %w", account.ID, err)
	}

	r.log.Debug().
		Str("account", account.ID).
		Str("currency", account.Currency).
		Str("balance", account.Balance.String()).
		Msg("Upserted account")

	return nil
}

// Adjust adds delta (which may be negative) to an account balance and returns
// the new balance. A change that would leave the balance negative is rejected
// with InsufficientFunds and nothing is written.
func (r *CashRepository) Adjust(ctx context.Context, accountID string, delta decimal.Decimal, at time.Time) (decimal.Decimal, error) {
	balance, err := r.GetBalance(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}

	newBalance := balance.Add(delta)
	if newBalance.IsNegative() {
		return decimal.Zero, domain.NewOperationError(domain.KindInsufficientFunds, "",
			"account %s holds %s, cannot apply %s", accountID, balance, delta)
	}

	_, err = r.db.ExecContext(ctx,
		"UPDATE accounts SET balance = ?, updated_at = ? WHERE id = ?",
		newBalance, at.Unix(), normalizeAccountID(accountID))
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to adjust balance of %s: %w", accountID, err)
	}

	return newBalance, nil
}

func scanAccount(row interface{ Scan(...interface{}) error }) (domain.Account, error) {
	var account domain.Account
	var createdAt, updatedAt int64

	if err := row.Scan(&account.ID, &account.Currency, &account.Balance, &createdAt, &updatedAt); err != nil {
		return account, err
	}

	account.CreatedAt = time.Unix(createdAt, 0).UTC()
	account.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return account, nil
}

func normalizeAccountID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
