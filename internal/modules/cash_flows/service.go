package cash_flows

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/aristath/holdings/internal/database"
	"github.com/aristath/holdings/internal/domain"
	"github.com/aristath/holdings/internal/events"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Service manages cash accounts. Every balance change is written together with
// its cash flow row in one transaction.
type Service struct {
	db           *sql.DB
	accounts     *CashRepository
	flows        *Repository
	events       *events.Manager
	baseCurrency string
	now          func() time.Time
	log          zerolog.Logger
}

// NewService creates a cash service over the ledger database.
// baseCurrency is the currency TotalBalance reports in.
func NewService(db *sql.DB, baseCurrency string, eventManager *events.Manager, log zerolog.Logger) *Service {
	return &Service{
		db:           db,
		accounts:     NewCashRepository(db, log),
		flows:        NewRepository(db, log),
		events:       eventManager,
		baseCurrency: strings.ToUpper(baseCurrency),
		now:          time.Now,
		log:          log.With().Str("service", "cash").Logger(),
	}
}

// Accounts returns the account repository bound to the service's database
func (s *Service) Accounts() *CashRepository {
	return s.accounts
}

// ResolveCurrency validates an ISO 4217 code and returns its go-money definition
func ResolveCurrency(code string) (*money.Currency, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	currency := money.GetCurrency(code)
	if code == "" || currency == nil {
		return nil, domain.NewOperationError(domain.KindInvalidCurrency, "", "unknown currency %q", code)
	}
	return currency, nil
}

// RoundToCurrency rounds amount to the minor units of currency (2 places for BRL, 0 for JPY)
func RoundToCurrency(amount decimal.Decimal, currency *money.Currency) decimal.Decimal {
	return amount.Round(int32(currency.Fraction))
}

// OpenAccount creates an account with a zero balance.
// Opening an existing account with the same currency returns it unchanged.
func (s *Service) OpenAccount(ctx context.Context, accountID, currencyCode string) (*domain.Account, error) {
	accountID = normalizeAccountID(accountID)
	if accountID == "" {
		return nil, fmt.Errorf("account id is required")
	}
	currency, err := ResolveCurrency(currencyCode)
	if err != nil {
		return nil, err
	}

	existing, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.Currency != currency.Code {
			return nil, domain.NewOperationError(domain.KindInvalidCurrency, "",
				"account %s already exists in %s", accountID, existing.Currency)
		}
		return existing, nil
	}

	now := s.now()
	account := domain.Account{
		ID:        accountID,
		Currency:  currency.Code,
		Balance:   decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.accounts.Upsert(ctx, account); err != nil {
		return nil, err
	}

	s.log.Info().Str("account", accountID).Str("currency", currency.Code).Msg("Account opened")
	return s.accounts.GetAccount(ctx, accountID)
}

// EnsureDefaultAccount opens the account if it does not exist yet
func (s *Service) EnsureDefaultAccount(ctx context.Context, accountID, currencyCode string) error {
	account, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if account != nil {
		return nil
	}
	_, err = s.OpenAccount(ctx, accountID, currencyCode)
	return err
}

// Deposit credits amount (rounded to the account currency) to an account
func (s *Service) Deposit(ctx context.Context, accountID string, amount decimal.Decimal, description string) (*domain.CashFlow, error) {
	return s.move(ctx, accountID, amount, domain.CashFlowDeposit, description)
}

// Withdraw debits amount from an account. Overdrawing is an InsufficientFunds rejection.
func (s *Service) Withdraw(ctx context.Context, accountID string, amount decimal.Decimal, description string) (*domain.CashFlow, error) {
	return s.move(ctx, accountID, amount, domain.CashFlowWithdrawal, description)
}

func (s *Service) move(ctx context.Context, accountID string, amount decimal.Decimal, flowType domain.CashFlowType, description string) (*domain.CashFlow, error) {
	account, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, domain.NewOperationError(domain.KindAccountNotFound, "", "account %q does not exist", accountID)
	}

	currency, err := ResolveCurrency(account.Currency)
	if err != nil {
		return nil, err
	}
	amount = RoundToCurrency(amount, currency)
	if !amount.IsPositive() {
		return nil, domain.NewOperationError(domain.KindInvalidAmount, "",
			"amount must be at least one minor unit of %s", currency.Code)
	}

	delta := amount
	if flowType == domain.CashFlowWithdrawal {
		delta = amount.Neg()
	}

	var recorded domain.CashFlow
	err = database.WithTransactionContext(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		recorded, err = s.ApplyFlow(ctx, tx, domain.CashFlow{
			AccountID:   account.ID,
			Type:        flowType,
			Amount:      delta,
			Description: description,
			Date:        s.now(),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("account", account.ID).
		Str("type", string(flowType)).
		Str("amount", delta.String()).
		Str("balance", recorded.BalanceAfter.String()).
		Msg("Cash movement applied")

	s.events.Emit("cash_flows", &events.CashMovementData{
		AccountID:    account.ID,
		Amount:       delta,
		BalanceAfter: recorded.BalanceAfter,
	})

	return &recorded, nil
}

// ApplyFlow adjusts the account balance by flow.Amount and appends the flow,
// both through q. Trading calls it with its own transaction so a trade and
// its cash movement commit together.
func (s *Service) ApplyFlow(ctx context.Context, q database.Querier, flow domain.CashFlow) (domain.CashFlow, error) {
	if flow.Date.IsZero() {
		flow.Date = s.now()
	}

	balance, err := s.accounts.WithQuerier(q).Adjust(ctx, flow.AccountID, flow.Amount, flow.Date)
	if err != nil {
		return flow, err
	}
	flow.BalanceAfter = balance

	return s.flows.WithQuerier(q).Append(ctx, flow)
}

// Balance returns the current balance of an account
func (s *Service) Balance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	return s.accounts.GetBalance(ctx, accountID)
}

// GetAccount returns an account or an AccountNotFound rejection
func (s *Service) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	account, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, domain.NewOperationError(domain.KindAccountNotFound, "", "account %q does not exist", accountID)
	}
	return account, nil
}

// ListAccounts returns every account
func (s *Service) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	return s.accounts.GetAll(ctx)
}

// History returns the latest cash flows of an account, newest first
func (s *Service) History(ctx context.Context, accountID string, limit int) ([]domain.CashFlow, error) {
	if _, err := s.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return s.flows.GetByAccount(ctx, accountID, limit)
}

// TotalBalance sums the balances of accounts held in the base currency.
// Accounts in other currencies are skipped since no FX conversion exists.
func (s *Service) TotalBalance(ctx context.Context) (decimal.Decimal, error) {
	accounts, err := s.accounts.GetAll(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, account := range accounts {
		if account.Currency != s.baseCurrency {
			s.log.Warn().
				Str("account", account.ID).
				Str("currency", account.Currency).
				Msg("Skipping account outside base currency in total balance")
			continue
		}
		total = total.Add(account.Balance)
	}
	return total, nil
}
