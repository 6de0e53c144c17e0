package di

import (
	"github.com/aristath/holdings/internal/events"
	"github.com/aristath/holdings/internal/modules/portfolio"
	"github.com/aristath/holdings/internal/modules/pricing"
	"github.com/aristath/holdings/internal/modules/snapshots"
	"github.com/aristath/holdings/internal/modules/trading"
	"github.com/aristath/holdings/internal/scheduler"
	"github.com/rs/zerolog"
)

// InitializeRepositories creates the event bus and every repository
func InitializeRepositories(container *Container, log zerolog.Logger) {
	container.EventBus = events.NewBus()
	container.EventManager = events.NewManager(container.EventBus, log)

	// ledger.db
	container.PositionRepo = portfolio.NewPositionRepository(container.LedgerDB.Conn(), log)
	container.OperationRepo = trading.NewOperationRepository(container.LedgerDB.Conn(), log)

	// cache.db
	container.QuoteRepo = pricing.NewQuoteRepository(container.CacheDB.Conn(), log)
	container.SnapshotRepo = snapshots.NewRepository(container.CacheDB.Conn(), log)
	container.JobHistoryRepo = scheduler.NewHistoryRepository(container.CacheDB.Conn(), log)
}
