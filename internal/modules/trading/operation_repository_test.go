package trading

import (
	"context"
	"testing"

	"github.com/aristath/holdings/internal/domain"
	testingpkg "github.com/aristath/holdings/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOp(id, identifier string, opType domain.OperationType, quantity, price, pnl string) domain.Operation {
	return domain.Operation{
		ID:         id,
		AccountID:  "main",
		Identifier: identifier,
		Type:       opType,
		Quantity:   testingpkg.Dec(quantity),
		UnitPrice:  testingpkg.Dec(price),
		Fees:       testingpkg.Dec("0"),
		ProfitLoss: testingpkg.Dec(pnl),
		Date:       tradeDay,
		CreatedAt:  testingpkg.FixtureTime,
	}
}

func TestOperationRepository_AppendAndGet(t *testing.T) {
	db := testingpkg.NewMemoryDB(t, "ledger")
	repo := NewOperationRepository(db, zerolog.Nop())
	ctx := context.Background()

	op := newOp("op-1", "itsa4", domain.OperationBuy, "100", "10.05", "0")
	op.Notes = "first lot"
	require.NoError(t, repo.Append(ctx, op))

	got, err := repo.GetByID(ctx, "op-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "ITSA4", got.Identifier)
	assert.Equal(t, domain.OperationBuy, got.Type)
	assert.True(t, got.UnitPrice.Equal(testingpkg.Dec("10.05")))
	assert.Equal(t, "first lot", got.Notes)
	assert.Equal(t, tradeDay, got.Date)

	missing, err := repo.GetByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestOperationRepository_AppendGeneratesID(t *testing.T) {
	db := testingpkg.NewMemoryDB(t, "ledger")
	repo := NewOperationRepository(db, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, repo.Append(ctx, newOp("", "ITSA4", domain.OperationBuy, "1", "1", "0")))

	history, err := repo.GetHistory(ctx, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Len(t, history[0].ID, 36)
}

func TestOperationRepository_Ordering(t *testing.T) {
	db := testingpkg.NewMemoryDB(t, "ledger")
	repo := NewOperationRepository(db, zerolog.Nop())
	ctx := context.Background()

	// Same trade date everywhere: insertion order is the only order
	require.NoError(t, repo.Append(ctx, newOp("b1", "ITSA4", domain.OperationBuy, "100", "10", "0")))
	require.NoError(t, repo.Append(ctx, newOp("x1", "HGLG11", domain.OperationBuy, "5", "160", "0")))
	require.NoError(t, repo.Append(ctx, newOp("s1", "ITSA4", domain.OperationSell, "60", "15", "248")))
	require.NoError(t, repo.Append(ctx, newOp("s2", "ITSA4", domain.OperationSell, "10", "9", "-17.5")))

	ops, err := repo.GetByIdentifier(ctx, "itsa4")
	require.NoError(t, err)
	require.Len(t, ops, 3)
	assert.Equal(t, []string{"b1", "s1", "s2"}, []string{ops[0].ID, ops[1].ID, ops[2].ID})

	history, err := repo.GetHistory(ctx, 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "s2", history[0].ID)
	assert.Equal(t, "s1", history[1].ID)

	identifiers, err := repo.GetIdentifiers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"HGLG11", "ITSA4"}, identifiers)

	pnl, err := repo.RealizedPnL(ctx, "ITSA4")
	require.NoError(t, err)
	assert.True(t, pnl.Equal(testingpkg.Dec("230.5")), "got %s", pnl)

	none, err := repo.RealizedPnL(ctx, "HGLG11")
	require.NoError(t, err)
	assert.True(t, none.IsZero())
}
