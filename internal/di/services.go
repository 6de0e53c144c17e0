package di

import (
	"context"
	"fmt"

	"github.com/aristath/holdings/internal/config"
	"github.com/aristath/holdings/internal/modules/cash_flows"
	"github.com/aristath/holdings/internal/modules/portfolio"
	"github.com/aristath/holdings/internal/modules/pricing"
	"github.com/aristath/holdings/internal/modules/snapshots"
	"github.com/aristath/holdings/internal/modules/trading"
	"github.com/aristath/holdings/internal/reliability"
	"github.com/aristath/holdings/internal/scheduler"
	"github.com/rs/zerolog"
)

// InitializeServices creates the services in dependency order
func InitializeServices(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	container.CashService = cash_flows.NewService(container.LedgerDB.Conn(), cfg.DefaultCurrency, container.EventManager, log)
	if err := container.CashService.EnsureDefaultAccount(ctx, cfg.DefaultAccount, cfg.DefaultCurrency); err != nil {
		return fmt.Errorf("failed to open default account: %w", err)
	}

	container.PortfolioService = portfolio.NewService(container.PositionRepo, container.CashService, log)

	container.TradingService = trading.NewService(
		container.LedgerDB.Conn(),
		container.PositionRepo,
		container.OperationRepo,
		container.CashService,
		container.EventManager,
		cfg.DefaultAccount,
		log,
	)
	container.Reconciler = trading.NewReconciler(
		container.LedgerDB.Conn(),
		container.PositionRepo,
		container.OperationRepo,
		container.TradingService.Locks(),
		container.EventManager,
		log,
	)

	container.PricingService = pricing.NewService(
		container.PositionRepo,
		container.QuoteRepo,
		newPriceProvider(cfg, log),
		container.EventManager,
		log,
	)

	container.SnapshotService = snapshots.NewService(container.PortfolioService, container.SnapshotRepo, container.EventManager, log)

	var store reliability.ObjectStore
	if cfg.Backup.Enabled() {
		client, err := reliability.NewS3Client(ctx, cfg.Backup, log)
		if err != nil {
			return fmt.Errorf("failed to create backup storage client: %w", err)
		}
		store = client
	}
	container.BackupService = reliability.NewBackupService(
		container.Databases(),
		cfg.DataDir,
		store,
		cfg.Backup.RetentionDays,
		container.EventManager,
		log,
	)
	container.Maintenance = reliability.NewMaintenance(container.Databases(), cfg.DataDir, log)

	container.Scheduler = scheduler.New(container.JobHistoryRepo, container.EventManager, log)

	return nil
}

func newPriceProvider(cfg *config.Config, log zerolog.Logger) pricing.Provider {
	switch cfg.PriceProvider {
	case config.PriceProviderYahoo:
		return pricing.NewYahooProvider("", log)
	default:
		return pricing.NoopProvider{}
	}
}
