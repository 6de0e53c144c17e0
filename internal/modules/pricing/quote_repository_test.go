package pricing

import (
	"context"
	"testing"
	"time"

	testingpkg "github.com/aristath/holdings/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQuoteRepo(t *testing.T, now *time.Time) *QuoteRepository {
	t.Helper()
	repo := NewQuoteRepository(testingpkg.NewMemoryDB(t, "cache"), zerolog.Nop())
	repo.now = func() time.Time { return *now }
	return repo
}

func TestQuoteRepository_StoreAndGetIfFresh(t *testing.T) {
	now := testingpkg.FixtureTime
	repo := newTestQuoteRepo(t, &now)
	ctx := context.Background()

	err := repo.Store(ctx, Quote{Identifier: "itsa4", Price: testingpkg.Dec("10.42"), Currency: "BRL", Source: SourceYahoo}, TTLQuote)
	require.NoError(t, err)

	quote, err := repo.GetIfFresh(ctx, "ITSA4")
	require.NoError(t, err)
	require.NotNil(t, quote)
	assert.Equal(t, "ITSA4", quote.Identifier)
	assert.True(t, quote.Price.Equal(testingpkg.Dec("10.42")))
	assert.Equal(t, "BRL", quote.Currency)
	assert.Equal(t, SourceYahoo, quote.Source)
	assert.Equal(t, now.Unix(), quote.FetchedAt.Unix())
	assert.Equal(t, now.Add(TTLQuote).Unix(), quote.ExpiresAt.Unix())
}

func TestQuoteRepository_ExpiredQuoteOnlyFromGet(t *testing.T) {
	now := testingpkg.FixtureTime
	repo := newTestQuoteRepo(t, &now)
	ctx := context.Background()

	require.NoError(t, repo.Store(ctx, Quote{Identifier: "PETR4", Price: testingpkg.Dec("38"), Source: SourceYahoo}, TTLQuote))

	now = now.Add(TTLQuote + time.Second)

	fresh, err := repo.GetIfFresh(ctx, "PETR4")
	require.NoError(t, err)
	assert.Nil(t, fresh)

	stale, err := repo.Get(ctx, "PETR4")
	require.NoError(t, err)
	require.NotNil(t, stale)
	assert.True(t, stale.Price.Equal(testingpkg.Dec("38")))
}

func TestQuoteRepository_StoreReplaces(t *testing.T) {
	now := testingpkg.FixtureTime
	repo := newTestQuoteRepo(t, &now)
	ctx := context.Background()

	require.NoError(t, repo.Store(ctx, Quote{Identifier: "BTC", Price: testingpkg.Dec("300000"), Source: SourceYahoo}, TTLQuote))
	require.NoError(t, repo.Store(ctx, Quote{Identifier: "BTC", Price: testingpkg.Dec("310000"), Source: SourceManual}, TTLManualQuote))

	quote, err := repo.Get(ctx, "btc")
	require.NoError(t, err)
	require.NotNil(t, quote)
	assert.True(t, quote.Price.Equal(testingpkg.Dec("310000")))
	assert.Equal(t, SourceManual, quote.Source)
}

func TestQuoteRepository_GetMissing(t *testing.T) {
	now := testingpkg.FixtureTime
	repo := newTestQuoteRepo(t, &now)

	quote, err := repo.Get(context.Background(), "NOPE3")
	require.NoError(t, err)
	assert.Nil(t, quote)
}

func TestQuoteRepository_DeleteExpired(t *testing.T) {
	now := testingpkg.FixtureTime
	repo := newTestQuoteRepo(t, &now)
	ctx := context.Background()

	require.NoError(t, repo.Store(ctx, Quote{Identifier: "OLD3", Price: testingpkg.Dec("1"), Source: SourceYahoo}, TTLQuote))
	now = now.Add(2 * time.Hour)
	require.NoError(t, repo.Store(ctx, Quote{Identifier: "NEW3", Price: testingpkg.Dec("2"), Source: SourceYahoo}, TTLQuote))

	deleted, err := repo.DeleteExpired(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	old, err := repo.Get(ctx, "OLD3")
	require.NoError(t, err)
	assert.Nil(t, old)

	kept, err := repo.Get(ctx, "NEW3")
	require.NoError(t, err)
	assert.NotNil(t, kept)
}
