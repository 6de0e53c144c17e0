package di

import (
	"fmt"

	"github.com/aristath/holdings/internal/config"
	"github.com/aristath/holdings/internal/scheduler"
	"github.com/rs/zerolog"
)

// RegisterJobs adds every background job to the container's scheduler
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) error {
	jobs := []struct {
		schedule string
		job      scheduler.Job
	}{
		{cfg.Schedules.PriceSync, scheduler.NewSyncPricesJob(container.PricingService, log)},
		{cfg.Schedules.Snapshot, scheduler.NewSnapshotJob(container.SnapshotService, log)},
		{cfg.Schedules.Reconcile, scheduler.NewReconcileJob(container.Reconciler, log)},
		{cfg.Schedules.Backup, scheduler.NewBackupJob(container.BackupService, log)},
		{cfg.Schedules.Maintenance, scheduler.NewMaintenanceJob(container.Maintenance, log)},
		{cfg.Schedules.Cleanup, scheduler.NewCleanupJob(container.PricingService, container.JobHistoryRepo, log)},
	}

	for _, j := range jobs {
		if err := container.Scheduler.AddJob(j.schedule, j.job); err != nil {
			return fmt.Errorf("failed to register job %s: %w", j.job.Name(), err)
		}
	}

	log.Info().Int("count", len(jobs)).Msg("Jobs registered")
	return nil
}
