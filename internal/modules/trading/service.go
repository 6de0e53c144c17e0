// Package trading applies buys and sells to positions and records them in the ledger.
package trading

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/holdings/internal/database"
	"github.com/aristath/holdings/internal/domain"
	"github.com/aristath/holdings/internal/events"
	"github.com/aristath/holdings/internal/modules/accounting"
	"github.com/aristath/holdings/internal/modules/cash_flows"
	"github.com/aristath/holdings/internal/modules/portfolio"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Service executes trades. Operations on the same identifier are serialized,
// and each trade reads, validates and writes the position, the operation and
// the cash movement inside one ledger transaction.
type Service struct {
	db             *sql.DB
	positions      *portfolio.PositionRepository
	operations     *OperationRepository
	cash           *cash_flows.Service
	events         *events.Manager
	locks          *KeyedMutex
	defaultAccount string
	now            func() time.Time
	log            zerolog.Logger
}

// NewService creates a trading service over the ledger database
func NewService(
	db *sql.DB,
	positions *portfolio.PositionRepository,
	operations *OperationRepository,
	cash *cash_flows.Service,
	eventManager *events.Manager,
	defaultAccount string,
	log zerolog.Logger,
) *Service {
	return &Service{
		db:             db,
		positions:      positions,
		operations:     operations,
		cash:           cash,
		events:         eventManager,
		locks:          NewKeyedMutex(),
		defaultAccount: defaultAccount,
		now:            time.Now,
		log:            log.With().Str("service", "trading").Logger(),
	}
}

// Locks returns the per-identifier lock shared with the reconciler
func (s *Service) Locks() *KeyedMutex {
	return s.locks
}

// Buy applies a purchase and debits its total cost from the account
func (s *Service) Buy(ctx context.Context, req BuyRequest) (*TradeResult, error) {
	identifier := domain.NormalizeIdentifier(req.Identifier)
	if identifier == "" {
		return nil, fmt.Errorf("identifier is required")
	}
	assetType, err := domain.ParseAssetType(req.AssetType)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(identifier)
	defer unlock()

	now := s.now()
	op := domain.Operation{
		ID:         uuid.New().String(),
		AccountID:  s.accountID(req.AccountID),
		Identifier: identifier,
		Type:       domain.OperationBuy,
		Quantity:   req.Quantity,
		UnitPrice:  req.UnitPrice,
		Fees:       req.Fees,
		Date:       s.tradeDate(req.Date, now),
		Notes:      req.Notes,
		CreatedAt:  now,
	}

	result := &TradeResult{}
	err = database.WithTransactionContext(ctx, s.db, func(tx *sql.Tx) error {
		positions := s.positions.WithQuerier(tx)

		current, err := positions.GetByIdentifier(ctx, identifier)
		if err != nil {
			return err
		}
		account, err := s.account(ctx, tx, op.AccountID)
		if err != nil {
			return err
		}

		if err := accounting.ValidateBuy(op, account.Balance); err != nil {
			return err
		}

		next, res := accounting.Bought(current, op)
		next.UpdatedAt = now
		if current == nil {
			next.Currency = account.Currency
			if code := strings.ToUpper(strings.TrimSpace(req.Currency)); code != "" {
				next.Currency = code
			}
		}
		if req.Name != "" {
			next.Name = req.Name
		}
		if req.AssetType != "" || current == nil {
			next.AssetType = assetType
		}
		if req.Broker != "" {
			next.Broker = req.Broker
		}
		if err := checkSettlementCurrency(identifier, next.Currency, account); err != nil {
			return err
		}
		if err := accounting.CheckInvariant(next); err != nil {
			return fmt.Errorf("refusing to save inconsistent position: %w", err)
		}

		op.GrossValue = op.Quantity.Mul(op.UnitPrice)
		op.CostBasis = res.OperationCost
		op.AveragePriceAfter = next.AveragePrice
		op.QuantityAfter = next.TotalQuantity

		if err := positions.Save(ctx, next); err != nil {
			return err
		}
		if err := s.operations.WithQuerier(tx).Append(ctx, op); err != nil {
			return err
		}
		flow, err := s.cash.ApplyFlow(ctx, tx, domain.CashFlow{
			AccountID:   account.ID,
			Type:        domain.CashFlowTradeDebit,
			OperationID: op.ID,
			Amount:      res.OperationCost.Neg(),
			Description: fmt.Sprintf("buy %s %s @ %s", op.Quantity, identifier, op.UnitPrice),
			Date:        op.Date,
		})
		if err != nil {
			return err
		}

		result.Operation = op
		result.Position = next
		result.CashBalance = flow.BalanceAfter
		switch {
		case current == nil:
			result.Transition = events.PositionOpened
		case !current.IsOpen():
			result.Transition = events.PositionReopened
		}
		return nil
	})
	if err != nil {
		s.log.Warn().Err(err).Str("identifier", identifier).Msg("Buy rejected")
		return nil, err
	}

	s.log.Info().
		Str("identifier", identifier).
		Str("quantity", op.Quantity.String()).
		Str("unit_price", op.UnitPrice.String()).
		Str("average_price", result.Position.AveragePrice.String()).
		Msg("Buy executed")

	s.emit(result)
	return result, nil
}

// Sell applies a sale, realizes P&L against the average price and credits the
// net proceeds to the account
func (s *Service) Sell(ctx context.Context, req SellRequest) (*TradeResult, error) {
	identifier := domain.NormalizeIdentifier(req.Identifier)
	if identifier == "" {
		return nil, fmt.Errorf("identifier is required")
	}

	unlock := s.locks.Lock(identifier)
	defer unlock()

	now := s.now()
	op := domain.Operation{
		ID:         uuid.New().String(),
		AccountID:  s.accountID(req.AccountID),
		Identifier: identifier,
		Type:       domain.OperationSell,
		Quantity:   req.Quantity,
		UnitPrice:  req.UnitPrice,
		Fees:       req.Fees,
		Date:       s.tradeDate(req.Date, now),
		Notes:      req.Notes,
		CreatedAt:  now,
	}

	result := &TradeResult{}
	err := database.WithTransactionContext(ctx, s.db, func(tx *sql.Tx) error {
		positions := s.positions.WithQuerier(tx)

		current, err := positions.GetByIdentifier(ctx, identifier)
		if err != nil {
			return err
		}
		account, err := s.account(ctx, tx, op.AccountID)
		if err != nil {
			return err
		}

		if err := accounting.ValidateSell(op, current); err != nil {
			return err
		}
		if err := checkSettlementCurrency(identifier, current.Currency, account); err != nil {
			return err
		}

		next, sale, err := accounting.Sold(current, op)
		if err != nil {
			return err
		}
		next.UpdatedAt = now
		if err := accounting.CheckInvariant(next); err != nil {
			return fmt.Errorf("refusing to save inconsistent position: %w", err)
		}

		op.GrossValue = sale.GrossValue
		op.NetValue = sale.NetValue
		op.CostBasis = sale.CostOfSoldLot
		op.ProfitLoss = sale.ProfitLoss
		op.AveragePriceAfter = next.AveragePrice
		op.QuantityAfter = next.TotalQuantity

		if err := positions.Save(ctx, next); err != nil {
			return err
		}
		if err := s.operations.WithQuerier(tx).Append(ctx, op); err != nil {
			return err
		}

		// Fees above the gross value turn the proceeds into a debit
		flowType := domain.CashFlowTradeCredit
		if sale.NetValue.IsNegative() {
			flowType = domain.CashFlowTradeDebit
		}
		flow, err := s.cash.ApplyFlow(ctx, tx, domain.CashFlow{
			AccountID:   account.ID,
			Type:        flowType,
			OperationID: op.ID,
			Amount:      sale.NetValue,
			Description: fmt.Sprintf("sell %s %s @ %s", op.Quantity, identifier, op.UnitPrice),
			Date:        op.Date,
		})
		if err != nil {
			return err
		}

		result.Operation = op
		result.Position = next
		result.Sale = &sale
		result.CashBalance = flow.BalanceAfter
		if sale.Closed {
			result.Transition = events.PositionClosed
		}
		return nil
	})
	if err != nil {
		s.log.Warn().Err(err).Str("identifier", identifier).Msg("Sell rejected")
		return nil, err
	}

	s.log.Info().
		Str("identifier", identifier).
		Str("quantity", op.Quantity.String()).
		Str("profit_loss", op.ProfitLoss.String()).
		Bool("closed", result.Sale.Closed).
		Msg("Sell executed")

	s.emit(result)
	return result, nil
}

// GetOperation returns a recorded operation, or nil if it does not exist
func (s *Service) GetOperation(ctx context.Context, id string) (*domain.Operation, error) {
	return s.operations.GetByID(ctx, id)
}

// History returns the latest operations across all identifiers, newest first
func (s *Service) History(ctx context.Context, limit int) ([]domain.Operation, error) {
	return s.operations.GetHistory(ctx, limit)
}

// OperationsFor returns the operations of one identifier in application order
func (s *Service) OperationsFor(ctx context.Context, identifier string) ([]domain.Operation, error) {
	return s.operations.GetByIdentifier(ctx, identifier)
}

func (s *Service) account(ctx context.Context, q database.Querier, accountID string) (*domain.Account, error) {
	account, err := s.cash.Accounts().WithQuerier(q).GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, domain.NewOperationError(domain.KindAccountNotFound, "", "account %q does not exist", accountID)
	}
	return account, nil
}

func (s *Service) accountID(requested string) string {
	if requested = strings.TrimSpace(requested); requested == "" {
		requested = s.defaultAccount
	}
	return strings.ToLower(requested)
}

func (s *Service) tradeDate(requested, now time.Time) time.Time {
	if requested.IsZero() {
		return now
	}
	return requested
}

// checkSettlementCurrency rejects trades whose position currency differs from
// the account that settles them, since no FX conversion is applied.
func checkSettlementCurrency(identifier, positionCurrency string, account *domain.Account) error {
	if positionCurrency != "" && positionCurrency != account.Currency {
		return domain.NewOperationError(domain.KindInvalidCurrency, identifier,
			"position is in %s but account %s settles in %s", positionCurrency, account.ID, account.Currency)
	}
	return nil
}

func (s *Service) emit(result *TradeResult) {
	op := result.Operation
	s.events.Emit("trading", &events.TradeExecutedData{
		OperationID: op.ID,
		AccountID:   op.AccountID,
		Identifier:  op.Identifier,
		Side:        string(op.Type),
		Quantity:    op.Quantity,
		UnitPrice:   op.UnitPrice,
		Fees:        op.Fees,
		ProfitLoss:  op.ProfitLoss,
	})

	if result.Transition != "" {
		s.events.Emit("trading", &events.PositionChangedData{
			Identifier:   result.Position.Identifier,
			Transition:   result.Transition,
			Quantity:     result.Position.TotalQuantity,
			AveragePrice: result.Position.AveragePrice,
			RealizedPnL:  result.Position.RealizedPnL,
		})
	}
}
