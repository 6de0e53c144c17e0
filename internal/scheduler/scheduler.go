// Package scheduler runs the background jobs on cron schedules and records
// every run in the job history.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aristath/holdings/internal/events"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

var (
	// ErrUnknownJob is returned by RunNow for a name no job was registered under
	ErrUnknownJob = errors.New("unknown job")
	// ErrJobRunning is returned when a run of the same job is still in progress
	ErrJobRunning = errors.New("job already running")
)

// Job represents a scheduled job
type Job interface {
	Run() error
	Name() string
}

// JobInfo describes a registered job
type JobInfo struct {
	Name     string    `json:"name"`
	Schedule string    `json:"schedule"`
	NextRun  time.Time `json:"next_run,omitempty"`
	Running  bool      `json:"running"`
}

type entry struct {
	job      Job
	schedule string
	id       cron.EntryID
}

// Scheduler manages background jobs
type Scheduler struct {
	cron    *cron.Cron
	history *HistoryRepository
	events  *events.Manager

	mu      sync.Mutex
	jobs    map[string]*entry
	running map[string]bool

	now func() time.Time
	log zerolog.Logger
}

// New creates a new scheduler. history and eventManager may be nil.
func New(history *HistoryRepository, eventManager *events.Manager, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		history: history,
		events:  eventManager,
		jobs:    make(map[string]*entry),
		running: make(map[string]bool),
		now:     time.Now,
		log:     log.With().Str("component", "scheduler").Logger(),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Int("jobs", len(s.jobs)).Msg("Scheduler started")
}

// Stop stops the scheduler and waits for running jobs to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}

// AddJob registers a new job with cron schedule (seconds field first)
// Schedule examples:
//   - "0 */15 * * * *"     - Every 15 minutes
//   - "0 0 22 * * MON-FRI" - 22:00 on weekdays
//   - "@every 30s"         - Every 30 seconds
func (s *Scheduler) AddJob(schedule string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.Name()]; exists {
		return fmt.Errorf("job %s already registered", job.Name())
	}

	id, err := s.cron.AddFunc(schedule, func() {
		if _, err := s.execute(job); err != nil && !errors.Is(err, ErrJobRunning) {
			s.log.Error().Err(err).Str("job", job.Name()).Msg("Job failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q for job %s: %w", schedule, job.Name(), err)
	}

	s.jobs[job.Name()] = &entry{job: job, schedule: schedule, id: id}

	s.log.Info().
		Str("schedule", schedule).
		Str("job", job.Name()).
		Msg("Job registered")

	return nil
}

// RunNow executes a registered job immediately (outside schedule) and
// returns the recorded run
func (s *Scheduler) RunNow(name string) (*JobRun, error) {
	s.mu.Lock()
	e, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}

	s.log.Info().Str("job", name).Msg("Running job immediately")
	return s.execute(e.job)
}

// Jobs lists the registered jobs sorted by name
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]JobInfo, 0, len(s.jobs))
	for name, e := range s.jobs {
		infos = append(infos, JobInfo{
			Name:     name,
			Schedule: e.schedule,
			NextRun:  s.cron.Entry(e.id).Next,
			Running:  s.running[name],
		})
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// History returns the most recent runs of a job, newest first
func (s *Scheduler) History(ctx context.Context, name string, limit int) ([]JobRun, error) {
	if s.history == nil {
		return []JobRun{}, nil
	}
	return s.history.Recent(ctx, name, limit)
}

// execute runs a job unless a run of it is already in progress, then records
// the outcome
func (s *Scheduler) execute(job Job) (*JobRun, error) {
	name := job.Name()

	s.mu.Lock()
	if s.running[name] {
		s.mu.Unlock()
		s.log.Warn().Str("job", name).Msg("Previous run still in progress, skipping")
		return nil, fmt.Errorf("%w: %s", ErrJobRunning, name)
	}
	s.running[name] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.running, name)
		s.mu.Unlock()
	}()

	run := JobRun{JobName: name, StartedAt: s.now()}
	s.log.Debug().Str("job", name).Msg("Running job")

	err := safeRun(job)
	run.Duration = s.now().Sub(run.StartedAt)
	run.Status = StatusSuccess
	if err != nil {
		run.Status = StatusFailed
		run.Error = err.Error()
	} else {
		s.log.Debug().Str("job", name).Dur("duration", run.Duration).Msg("Job completed")
	}

	if s.history != nil {
		if herr := s.history.Record(context.Background(), run); herr != nil {
			s.log.Warn().Err(herr).Str("job", name).Msg("Failed to record job run")
		}
	}

	s.events.Emit("scheduler", &events.JobStatusData{
		JobName:  name,
		Status:   run.eventStatus(),
		Error:    run.Error,
		Duration: run.Duration.Seconds(),
		Started:  run.StartedAt.UTC(),
	})

	return &run, err
}

// safeRun converts a panicking job into a failed run
func safeRun(job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Name(), r)
		}
	}()
	return job.Run()
}
