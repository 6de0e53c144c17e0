package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/holdings/internal/modules/pricing"
	"github.com/aristath/holdings/internal/modules/snapshots"
	"github.com/aristath/holdings/internal/modules/trading"
	"github.com/aristath/holdings/internal/reliability"
	"github.com/rs/zerolog"
)

// Job names, also used by POST /api/jobs/{name}
const (
	JobSyncPrices  = "sync_prices"
	JobSnapshot    = "snapshot"
	JobReconcile   = "reconcile"
	JobBackup      = "backup"
	JobMaintenance = "maintenance"
	JobCleanup     = "cleanup"
)

// JobHistoryRetention is how long job runs are kept by the cleanup job
const JobHistoryRetention = 90 * 24 * time.Hour

// PriceSyncer refreshes market prices
type PriceSyncer interface {
	SyncPrices(ctx context.Context) (pricing.SyncResult, error)
	PruneQuotes(ctx context.Context) (int64, error)
}

// SnapshotCapturer stores the daily valuation
type SnapshotCapturer interface {
	CaptureNow(ctx context.Context) (*snapshots.Snapshot, error)
}

// LedgerReconciler replays the operation ledger against stored positions
type LedgerReconciler interface {
	Reconcile(ctx context.Context, identifiers []string) ([]trading.ReconcileReport, error)
}

// BackupRunner writes a database backup
type BackupRunner interface {
	Run(ctx context.Context) (*reliability.BackupResult, error)
}

// MaintenanceRunner checks database health
type MaintenanceRunner interface {
	Run(ctx context.Context) (*reliability.MaintenanceReport, error)
}

// SyncPricesJob refreshes the price of every active position
type SyncPricesJob struct {
	prices  PriceSyncer
	timeout time.Duration
	log     zerolog.Logger
}

// NewSyncPricesJob creates a new SyncPricesJob
func NewSyncPricesJob(prices PriceSyncer, log zerolog.Logger) *SyncPricesJob {
	return &SyncPricesJob{
		prices:  prices,
		timeout: 5 * time.Minute,
		log:     log.With().Str("job", JobSyncPrices).Logger(),
	}
}

// Name returns the job name
func (j *SyncPricesJob) Name() string { return JobSyncPrices }

// Run executes the price sync
func (j *SyncPricesJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	result, err := j.prices.SyncPrices(ctx)
	if err != nil {
		return fmt.Errorf("price sync failed: %w", err)
	}

	if result.Failed > 0 && result.Updated == 0 && result.Cached == 0 {
		return fmt.Errorf("price sync failed for all %d priced positions", result.Failed)
	}
	return nil
}

// SnapshotJob captures the daily portfolio valuation
type SnapshotJob struct {
	snapshots SnapshotCapturer
	log       zerolog.Logger
}

// NewSnapshotJob creates a new SnapshotJob
func NewSnapshotJob(snapshots SnapshotCapturer, log zerolog.Logger) *SnapshotJob {
	return &SnapshotJob{
		snapshots: snapshots,
		log:       log.With().Str("job", JobSnapshot).Logger(),
	}
}

// Name returns the job name
func (j *SnapshotJob) Name() string { return JobSnapshot }

// Run captures today's snapshot
func (j *SnapshotJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if _, err := j.snapshots.CaptureNow(ctx); err != nil {
		return fmt.Errorf("snapshot failed: %w", err)
	}
	return nil
}

// ReconcileJob checks every position against its operation history. Drift
// fails the run so it shows up in the job history and as a JOB_FAILED event.
type ReconcileJob struct {
	reconciler LedgerReconciler
	log        zerolog.Logger
}

// NewReconcileJob creates a new ReconcileJob
func NewReconcileJob(reconciler LedgerReconciler, log zerolog.Logger) *ReconcileJob {
	return &ReconcileJob{
		reconciler: reconciler,
		log:        log.With().Str("job", JobReconcile).Logger(),
	}
}

// Name returns the job name
func (j *ReconcileJob) Name() string { return JobReconcile }

// Run reconciles all identifiers
func (j *ReconcileJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	reports, err := j.reconciler.Reconcile(ctx, nil)
	if err != nil {
		return fmt.Errorf("reconciliation failed: %w", err)
	}

	failed := 0
	for _, report := range reports {
		if !report.OK {
			failed++
		}
	}

	j.log.Info().Int("checked", len(reports)).Int("failed", failed).Msg("Reconciliation finished")
	if failed > 0 {
		return fmt.Errorf("%d of %d positions do not match their ledger", failed, len(reports))
	}
	return nil
}

// BackupJob backs up the databases
type BackupJob struct {
	backup BackupRunner
	log    zerolog.Logger
}

// NewBackupJob creates a new BackupJob
func NewBackupJob(backup BackupRunner, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		backup: backup,
		log:    log.With().Str("job", JobBackup).Logger(),
	}
}

// Name returns the job name
func (j *BackupJob) Name() string { return JobBackup }

// Run creates and ships a backup
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	if _, err := j.backup.Run(ctx); err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}
	return nil
}

// MaintenanceJob checks database integrity, checkpoints the WAL and watches
// free disk space
type MaintenanceJob struct {
	maintenance MaintenanceRunner
	log         zerolog.Logger
}

// NewMaintenanceJob creates a new MaintenanceJob
func NewMaintenanceJob(maintenance MaintenanceRunner, log zerolog.Logger) *MaintenanceJob {
	return &MaintenanceJob{
		maintenance: maintenance,
		log:         log.With().Str("job", JobMaintenance).Logger(),
	}
}

// Name returns the job name
func (j *MaintenanceJob) Name() string { return JobMaintenance }

// Run executes database maintenance
func (j *MaintenanceJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	_, err := j.maintenance.Run(ctx)
	return err
}

// CleanupJob removes long-expired quotes and old job history from cache.db
type CleanupJob struct {
	prices  PriceSyncer
	history *HistoryRepository
	log     zerolog.Logger
}

// NewCleanupJob creates a new CleanupJob. history may be nil.
func NewCleanupJob(prices PriceSyncer, history *HistoryRepository, log zerolog.Logger) *CleanupJob {
	return &CleanupJob{
		prices:  prices,
		history: history,
		log:     log.With().Str("job", JobCleanup).Logger(),
	}
}

// Name returns the job name
func (j *CleanupJob) Name() string { return JobCleanup }

// Run executes the cleanup
func (j *CleanupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	quotes, err := j.prices.PruneQuotes(ctx)
	if err != nil {
		return err
	}

	var runs int64
	if j.history != nil {
		runs, err = j.history.Prune(ctx, JobHistoryRetention)
		if err != nil {
			return err
		}
	}

	j.log.Info().Int64("quotes", quotes).Int64("job_runs", runs).Msg("Cleanup completed")
	return nil
}
