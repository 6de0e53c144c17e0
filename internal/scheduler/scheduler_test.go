package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aristath/holdings/internal/events"
	testingpkg "github.com/aristath/holdings/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type funcJob struct {
	name string
	fn   func() error
}

func (j *funcJob) Name() string { return j.name }
func (j *funcJob) Run() error   { return j.fn() }

func newTestScheduler(t *testing.T) (*Scheduler, *HistoryRepository, *[]*events.Event) {
	t.Helper()
	history := NewHistoryRepository(testingpkg.NewMemoryDB(t, "cache"), zerolog.Nop())

	var mu sync.Mutex
	received := []*events.Event{}
	bus := events.NewBus()
	bus.Subscribe(func(e *events.Event) {
		mu.Lock()
		received = append(received, e)
		mu.Unlock()
	}, events.JobCompleted, events.JobFailed)

	s := New(history, events.NewManager(bus, zerolog.Nop()), zerolog.Nop())
	return s, history, &received
}

func TestScheduler_RunNowRecordsSuccess(t *testing.T) {
	s, history, received := newTestScheduler(t)
	calls := 0
	require.NoError(t, s.AddJob("0 0 22 * * *", &funcJob{name: "snapshot", fn: func() error { calls++; return nil }}))

	run, err := s.RunNow("snapshot")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, StatusSuccess, run.Status)

	runs, err := history.Recent(context.Background(), "snapshot", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, StatusSuccess, runs[0].Status)
	assert.Empty(t, runs[0].Error)

	require.Len(t, *received, 1)
	assert.Equal(t, events.JobCompleted, (*received)[0].Type)
}

func TestScheduler_RunNowRecordsFailure(t *testing.T) {
	s, history, received := newTestScheduler(t)
	require.NoError(t, s.AddJob("@every 1h", &funcJob{name: "backup", fn: func() error { return errors.New("disk full") }}))

	run, err := s.RunNow("backup")
	require.Error(t, err)
	require.NotNil(t, run)
	assert.Equal(t, StatusFailed, run.Status)
	assert.Equal(t, "disk full", run.Error)

	runs, err := history.Recent(context.Background(), "", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "disk full", runs[0].Error)

	require.Len(t, *received, 1)
	assert.Equal(t, events.JobFailed, (*received)[0].Type)
	data := (*received)[0].Data.(*events.JobStatusData)
	assert.Equal(t, "backup", data.JobName)
	assert.Equal(t, "failed", data.Status)
}

func TestScheduler_PanicBecomesFailure(t *testing.T) {
	s, _, _ := newTestScheduler(t)
	require.NoError(t, s.AddJob("@every 1h", &funcJob{name: "boom", fn: func() error { panic("nil map") }}))

	run, err := s.RunNow("boom")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
	assert.Equal(t, StatusFailed, run.Status)
}

func TestScheduler_UnknownJob(t *testing.T) {
	s, _, _ := newTestScheduler(t)

	_, err := s.RunNow("nope")
	assert.True(t, errors.Is(err, ErrUnknownJob))
}

func TestScheduler_AddJobValidation(t *testing.T) {
	s, _, _ := newTestScheduler(t)
	job := &funcJob{name: "reconcile", fn: func() error { return nil }}

	assert.Error(t, s.AddJob("every day", job))
	require.NoError(t, s.AddJob("0 30 3 * * *", job))
	assert.Error(t, s.AddJob("0 30 4 * * *", job), "duplicate name")

	jobs := s.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "reconcile", jobs[0].Name)
	assert.Equal(t, "0 30 3 * * *", jobs[0].Schedule)
}

func TestScheduler_SkipsOverlappingRun(t *testing.T) {
	s, _, _ := newTestScheduler(t)
	started := make(chan struct{})
	release := make(chan struct{})
	require.NoError(t, s.AddJob("@every 1h", &funcJob{name: "slow", fn: func() error {
		close(started)
		<-release
		return nil
	}}))

	done := make(chan error, 1)
	go func() {
		_, err := s.RunNow("slow")
		done <- err
	}()

	<-started
	assert.True(t, s.Jobs()[0].Running)

	_, err := s.RunNow("slow")
	assert.True(t, errors.Is(err, ErrJobRunning))

	close(release)
	require.NoError(t, <-done)
	assert.False(t, s.Jobs()[0].Running)
}

func TestScheduler_CronFires(t *testing.T) {
	s, history, _ := newTestScheduler(t)
	fired := make(chan struct{}, 1)
	require.NoError(t, s.AddJob("@every 1s", &funcJob{name: "tick", fn: func() error {
		select {
		case fired <- struct{}{}:
		default:
		}
		return nil
	}}))

	s.Start()
	defer s.Stop()

	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not fire")
	}

	assert.Eventually(t, func() bool {
		runs, err := history.Recent(context.Background(), "tick", 1)
		return err == nil && len(runs) == 1
	}, 2*time.Second, 20*time.Millisecond)
}

func TestHistoryRepository_Prune(t *testing.T) {
	history := NewHistoryRepository(testingpkg.NewMemoryDB(t, "cache"), zerolog.Nop())
	history.now = func() time.Time { return testingpkg.FixtureTime }
	ctx := context.Background()

	require.NoError(t, history.Record(ctx, JobRun{JobName: "a", StartedAt: testingpkg.FixtureTime.AddDate(0, -6, 0), Status: StatusSuccess}))
	require.NoError(t, history.Record(ctx, JobRun{JobName: "a", StartedAt: testingpkg.FixtureTime.Add(-time.Hour), Duration: 1500 * time.Millisecond, Status: StatusSuccess}))

	deleted, err := history.Prune(ctx, JobHistoryRetention)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	runs, err := history.Recent(ctx, "a", 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 1500*time.Millisecond, runs[0].Duration)
}
