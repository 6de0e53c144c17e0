package cash_flows

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/aristath/holdings/internal/database"
	"github.com/aristath/holdings/internal/domain"
	"github.com/aristath/holdings/internal/events"
	testingpkg "github.com/aristath/holdings/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *events.Bus) {
	t.Helper()
	db := testingpkg.NewMemoryDB(t, "ledger")
	bus := events.NewBus()
	service := NewService(db, "BRL", events.NewManager(bus, zerolog.Nop()), zerolog.Nop())
	service.now = func() time.Time { return testingpkg.FixtureTime }
	return service, bus
}

func TestService_OpenAccount(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	account, err := service.OpenAccount(ctx, "Main", "brl")
	require.NoError(t, err)
	assert.Equal(t, "main", account.ID)
	assert.Equal(t, "BRL", account.Currency)
	assert.True(t, account.Balance.IsZero())

	again, err := service.OpenAccount(ctx, "main", "BRL")
	require.NoError(t, err)
	assert.Equal(t, account.ID, again.ID)

	_, err = service.OpenAccount(ctx, "main", "USD")
	assert.True(t, errors.Is(err, domain.ErrInvalidCurrency))

	_, err = service.OpenAccount(ctx, "other", "XYZ")
	assert.True(t, errors.Is(err, domain.ErrInvalidCurrency))
}

func TestService_DepositRoundsToMinorUnits(t *testing.T) {
	service, bus := newTestService(t)
	ctx := context.Background()
	_, err := service.OpenAccount(ctx, "main", "BRL")
	require.NoError(t, err)

	var received []*events.Event
	bus.Subscribe(func(e *events.Event) { received = append(received, e) }, events.CashDeposited, events.CashWithdrawn)

	flow, err := service.Deposit(ctx, "main", testingpkg.Dec("1000.456"), "salary")
	require.NoError(t, err)
	assert.True(t, flow.Amount.Equal(testingpkg.Dec("1000.46")))
	assert.True(t, flow.BalanceAfter.Equal(testingpkg.Dec("1000.46")))
	assert.Equal(t, domain.CashFlowDeposit, flow.Type)

	flow, err = service.Withdraw(ctx, "main", testingpkg.Dec("0.46"), "")
	require.NoError(t, err)
	assert.True(t, flow.Amount.Equal(testingpkg.Dec("-0.46")))

	balance, err := service.Balance(ctx, "main")
	require.NoError(t, err)
	assert.True(t, balance.Equal(testingpkg.Dec("1000")))

	require.Len(t, received, 2)
	assert.Equal(t, events.CashDeposited, received[0].Type)
	assert.Equal(t, events.CashWithdrawn, received[1].Type)
}

func TestService_Rejections(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()
	_, err := service.OpenAccount(ctx, "main", "BRL")
	require.NoError(t, err)
	_, err = service.Deposit(ctx, "main", testingpkg.Dec("50"), "")
	require.NoError(t, err)

	_, err = service.Withdraw(ctx, "main", testingpkg.Dec("50.01"), "")
	assert.True(t, errors.Is(err, domain.ErrInsufficientFunds))

	_, err = service.Deposit(ctx, "main", testingpkg.Dec("0.004"), "")
	assert.True(t, errors.Is(err, domain.ErrInvalidAmount))

	_, err = service.Deposit(ctx, "main", testingpkg.Dec("-10"), "")
	assert.True(t, errors.Is(err, domain.ErrInvalidAmount))

	_, err = service.Deposit(ctx, "ghost", testingpkg.Dec("10"), "")
	assert.True(t, errors.Is(err, domain.ErrAccountNotFound))

	history, err := service.History(ctx, "main", 0)
	require.NoError(t, err)
	assert.Len(t, history, 1, "rejected movements leave no trail")

	_, err = service.History(ctx, "ghost", 0)
	assert.True(t, errors.Is(err, domain.ErrAccountNotFound))
}

func TestService_ApplyFlowRollsBackWithTransaction(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()
	_, err := service.OpenAccount(ctx, "main", "BRL")
	require.NoError(t, err)

	failure := errors.New("position write failed")
	err = database.WithTransactionContext(ctx, service.db, func(tx *sql.Tx) error {
		if _, err := service.ApplyFlow(ctx, tx, domain.CashFlow{
			AccountID: "main",
			Type:      domain.CashFlowTradeCredit,
			Amount:    testingpkg.Dec("890"),
		}); err != nil {
			return err
		}
		return failure
	})
	require.ErrorIs(t, err, failure)

	balance, err := service.Balance(ctx, "main")
	require.NoError(t, err)
	assert.True(t, balance.IsZero())

	history, err := service.History(ctx, "main", 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestService_TotalBalanceSkipsForeignCurrencies(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, service.EnsureDefaultAccount(ctx, "main", "BRL"))
	require.NoError(t, service.EnsureDefaultAccount(ctx, "main", "BRL"))
	_, err := service.OpenAccount(ctx, "savings", "BRL")
	require.NoError(t, err)
	_, err = service.OpenAccount(ctx, "usd", "USD")
	require.NoError(t, err)

	_, err = service.Deposit(ctx, "main", testingpkg.Dec("100"), "")
	require.NoError(t, err)
	_, err = service.Deposit(ctx, "savings", testingpkg.Dec("23.5"), "")
	require.NoError(t, err)
	_, err = service.Deposit(ctx, "usd", testingpkg.Dec("999"), "")
	require.NoError(t, err)

	total, err := service.TotalBalance(ctx)
	require.NoError(t, err)
	assert.True(t, total.Equal(testingpkg.Dec("123.5")), "got %s", total)

	accounts, err := service.ListAccounts(ctx)
	require.NoError(t, err)
	assert.Len(t, accounts, 3)
}
