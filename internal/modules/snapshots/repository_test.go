package snapshots

import (
	"context"
	"testing"
	"time"

	"github.com/aristath/holdings/internal/modules/accounting"
	testingpkg "github.com/aristath/holdings/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	return NewRepository(testingpkg.NewMemoryDB(t, "cache"), zerolog.Nop())
}

func snapshotOn(date, netWorth string) Snapshot {
	at, _ := time.Parse(DateLayout, date)
	return Snapshot{
		Date:          date,
		CapturedAt:    at.Add(22 * time.Hour),
		TotalInvested: testingpkg.Dec("4100"),
		CurrentValue:  testingpkg.Dec(netWorth),
		NetWorth:      testingpkg.Dec(netWorth),
		OpenPositions: 3,
		Allocation: []accounting.Slice{
			{Key: "stock", Value: testingpkg.Dec("1000"), Percentage: testingpkg.Dec("24.39"), Count: 1},
		},
	}
}

func TestRepository_SaveAndLatest(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	latest, err := repo.Latest(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	require.NoError(t, repo.Save(ctx, snapshotOn("2024-03-01", "4100")))
	require.NoError(t, repo.Save(ctx, snapshotOn("2024-03-02", "4250.75")))

	latest, err = repo.Latest(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)

	assert.Equal(t, "2024-03-02", latest.Date)
	assert.True(t, latest.NetWorth.Equal(testingpkg.Dec("4250.75")))
	assert.Equal(t, 3, latest.OpenPositions)
	assert.True(t, latest.CapturedAt.Equal(snapshotOn("2024-03-02", "0").CapturedAt))
	require.Len(t, latest.Allocation, 1)
	assert.Equal(t, "stock", latest.Allocation[0].Key)
	assert.True(t, latest.Allocation[0].Percentage.Equal(testingpkg.Dec("24.39")))
}

func TestRepository_SaveReplacesSameDay(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, snapshotOn("2024-03-01", "4100")))
	require.NoError(t, repo.Save(ctx, snapshotOn("2024-03-01", "4200")))

	all, err := repo.GetRange(ctx, "2024-01-01", "2024-12-31")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].NetWorth.Equal(testingpkg.Dec("4200")))
}

func TestRepository_GetRange(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for _, date := range []string{"2024-03-03", "2024-02-28", "2024-03-01", "2024-03-10"} {
		require.NoError(t, repo.Save(ctx, snapshotOn(date, "1")))
	}

	got, err := repo.GetRange(ctx, "2024-03-01", "2024-03-09")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2024-03-01", got[0].Date)
	assert.Equal(t, "2024-03-03", got[1].Date)

	empty, err := repo.GetRange(ctx, "2025-01-01", "2025-01-31")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestRepository_SaveRejectsBadDate(t *testing.T) {
	repo := newTestRepo(t)

	err := repo.Save(context.Background(), snapshotOn("03/01/2024", "1"))
	assert.Error(t, err)
}
