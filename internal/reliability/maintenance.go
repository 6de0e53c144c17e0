package reliability

import (
	"context"
	"fmt"

	"github.com/aristath/holdings/internal/database"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"
)

// Free space thresholds for the data directory
const (
	criticalFreeBytes = 500 << 20 // below this maintenance fails
	warnFreeBytes     = 5 << 30
)

// DatabaseReport is the post-maintenance state of one database
type DatabaseReport struct {
	Name         string `json:"name"`
	SizeBytes    int64  `json:"size_bytes"`
	WALSizeBytes int64  `json:"wal_size_bytes"`
	Healthy      bool   `json:"healthy"`
}

// MaintenanceReport summarizes a maintenance run
type MaintenanceReport struct {
	Databases     []DatabaseReport `json:"databases"`
	DiskFreeBytes uint64           `json:"disk_free_bytes"`
}

// Maintenance runs integrity checks and WAL checkpoints on the databases and
// watches free disk space in the data directory
type Maintenance struct {
	databases []*database.DB
	dataDir   string
	log       zerolog.Logger
}

// NewMaintenance creates a maintenance runner
func NewMaintenance(databases []*database.DB, dataDir string, log zerolog.Logger) *Maintenance {
	return &Maintenance{
		databases: databases,
		dataDir:   dataDir,
		log:       log.With().Str("service", "maintenance").Logger(),
	}
}

// Run checks every database. A failed integrity check or critically low disk
// space is returned as an error; checkpoint failures are only logged.
func (m *Maintenance) Run(ctx context.Context) (*MaintenanceReport, error) {
	report := &MaintenanceReport{Databases: make([]DatabaseReport, 0, len(m.databases))}

	for _, db := range m.databases {
		if err := db.HealthCheck(ctx); err != nil {
			m.log.Error().Err(err).Str("database", db.Name()).Msg("Database integrity check failed")
			return nil, err
		}

		if err := db.WALCheckpoint("TRUNCATE"); err != nil {
			m.log.Warn().Err(err).Str("database", db.Name()).Msg("WAL checkpoint failed")
		}

		dbReport := DatabaseReport{Name: db.Name(), Healthy: true}
		if stats, err := db.GetStats(); err != nil {
			m.log.Warn().Err(err).Str("database", db.Name()).Msg("Failed to get database stats")
		} else {
			dbReport.SizeBytes = stats.SizeBytes
			dbReport.WALSizeBytes = stats.WALSizeBytes
		}
		report.Databases = append(report.Databases, dbReport)
	}

	usage, err := disk.UsageWithContext(ctx, m.dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to get disk usage for %s: %w", m.dataDir, err)
	}
	report.DiskFreeBytes = usage.Free

	switch {
	case usage.Free < criticalFreeBytes:
		m.log.Error().Uint64("free_bytes", usage.Free).Msg("Insufficient disk space")
		return report, fmt.Errorf("only %d MB free in %s", usage.Free>>20, m.dataDir)
	case usage.Free < warnFreeBytes:
		m.log.Warn().Uint64("free_bytes", usage.Free).Msg("Disk space running low")
	}

	m.log.Info().Int("databases", len(report.Databases)).Msg("Maintenance completed")
	return report, nil
}
