package snapshots

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aristath/holdings/internal/events"
	"github.com/aristath/holdings/internal/modules/accounting"
	"github.com/aristath/holdings/internal/modules/portfolio"
	testingpkg "github.com/aristath/holdings/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPortfolio struct {
	mock.Mock
}

func (m *mockPortfolio) Summary(ctx context.Context) (portfolio.Summary, error) {
	args := m.Called()
	return args.Get(0).(portfolio.Summary), args.Error(1)
}

func (m *mockPortfolio) Distribution(ctx context.Context, by portfolio.Dimension) ([]accounting.Slice, error) {
	args := m.Called(by)
	return args.Get(0).([]accounting.Slice), args.Error(1)
}

func TestService_Capture(t *testing.T) {
	reader := &mockPortfolio{}
	reader.On("Summary").Return(portfolio.Summary{
		TotalInvested: testingpkg.Dec("4100"),
		CurrentValue:  testingpkg.Dec("4300"),
		UnrealizedPnL: testingpkg.Dec("200"),
		RealizedPnL:   testingpkg.Dec("248"),
		CashBalance:   testingpkg.Dec("700"),
		NetWorth:      testingpkg.Dec("5000"),
		OpenPositions: 3,
	}, nil)
	reader.On("Distribution", portfolio.DimensionAssetType).Return([]accounting.Slice{
		{Key: "fii", Value: testingpkg.Dec("1700"), Percentage: testingpkg.Dec("39.53"), Count: 1},
	}, nil)

	bus := events.NewBus()
	var received []*events.Event
	bus.Subscribe(func(e *events.Event) { received = append(received, e) }, events.SnapshotCreated)

	repo := newTestRepo(t)
	service := NewService(reader, repo, events.NewManager(bus, zerolog.Nop()), zerolog.Nop())

	snapshot, err := service.Capture(context.Background(), testingpkg.FixtureTime)
	require.NoError(t, err)
	assert.Equal(t, testingpkg.FixtureTime.Format(DateLayout), snapshot.Date)
	assert.True(t, snapshot.NetWorth.Equal(testingpkg.Dec("5000")))
	assert.True(t, snapshot.CashBalance.Equal(testingpkg.Dec("700")))
	require.Len(t, snapshot.Allocation, 1)

	stored, err := repo.Latest(context.Background())
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.RealizedPnL.Equal(testingpkg.Dec("248")))

	require.Len(t, received, 1)
	data := received[0].Data.(*events.SnapshotCreatedData)
	assert.Equal(t, snapshot.Date, data.Date)
	assert.True(t, data.NetWorth.Equal(testingpkg.Dec("5000")))
	reader.AssertExpectations(t)
}

func TestService_CaptureFailsWithoutSaving(t *testing.T) {
	reader := &mockPortfolio{}
	reader.On("Summary").Return(portfolio.Summary{}, errors.New("db locked"))

	repo := newTestRepo(t)
	service := NewService(reader, repo, nil, zerolog.Nop())

	_, err := service.Capture(context.Background(), testingpkg.FixtureTime)
	require.Error(t, err)

	latest, err := repo.Latest(context.Background())
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestService_HistoryWindow(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	for _, date := range []string{"2024-02-01", "2024-02-25", "2024-03-01", "2024-03-02"} {
		require.NoError(t, repo.Save(ctx, snapshotOn(date, "1")))
	}

	service := NewService(&mockPortfolio{}, repo, nil, zerolog.Nop())
	service.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }

	history, err := service.History(ctx, 7)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "2024-02-25", history[0].Date)
	assert.Equal(t, "2024-03-01", history[1].Date)

	_, err = service.History(ctx, 0)
	assert.Error(t, err)
}

func TestService_WithPortfolioService(t *testing.T) {
	positions := portfolio.NewPositionRepository(testingpkg.NewMemoryDB(t, "ledger"), zerolog.Nop())
	for _, p := range testingpkg.NewPositionFixtures() {
		require.NoError(t, positions.Save(context.Background(), p))
	}

	service := NewService(portfolio.NewService(positions, nil, zerolog.Nop()), newTestRepo(t), nil, zerolog.Nop())

	snapshot, err := service.Capture(context.Background(), testingpkg.FixtureTime)
	require.NoError(t, err)
	assert.True(t, snapshot.NetWorth.Equal(testingpkg.Dec("4100")))
	assert.Equal(t, 3, snapshot.OpenPositions)
	assert.Len(t, snapshot.Allocation, 3)
}
