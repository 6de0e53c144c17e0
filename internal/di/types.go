package di

import (
	"github.com/aristath/holdings/internal/config"
	"github.com/aristath/holdings/internal/database"
	"github.com/aristath/holdings/internal/events"
	"github.com/aristath/holdings/internal/modules/cash_flows"
	"github.com/aristath/holdings/internal/modules/portfolio"
	"github.com/aristath/holdings/internal/modules/pricing"
	"github.com/aristath/holdings/internal/modules/snapshots"
	"github.com/aristath/holdings/internal/modules/trading"
	"github.com/aristath/holdings/internal/reliability"
	"github.com/aristath/holdings/internal/scheduler"
)

// Container holds all application dependencies.
// Services read from a single instance of each repository.
type Container struct {
	Config *config.Config

	// Databases
	LedgerDB *database.DB // positions, operations, accounts, cash flows
	CacheDB  *database.DB // quotes, snapshots, job history

	// Events
	EventBus     *events.Bus
	EventManager *events.Manager

	// Repositories
	PositionRepo   *portfolio.PositionRepository
	OperationRepo  *trading.OperationRepository
	QuoteRepo      *pricing.QuoteRepository
	SnapshotRepo   *snapshots.Repository
	JobHistoryRepo *scheduler.HistoryRepository

	// Services
	PortfolioService *portfolio.Service
	CashService      *cash_flows.Service
	TradingService   *trading.Service
	Reconciler       *trading.Reconciler
	PricingService   *pricing.Service
	SnapshotService  *snapshots.Service
	BackupService    *reliability.BackupService
	Maintenance      *reliability.Maintenance

	Scheduler *scheduler.Scheduler
}

// Databases returns the open databases in backup order
func (c *Container) Databases() []*database.DB {
	var dbs []*database.DB
	for _, db := range []*database.DB{c.LedgerDB, c.CacheDB} {
		if db != nil {
			dbs = append(dbs, db)
		}
	}
	return dbs
}

// Close closes every database. Errors are collected and the first is returned.
func (c *Container) Close() error {
	var firstErr error
	for _, db := range c.Databases() {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
