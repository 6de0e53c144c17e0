package portfolio

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/holdings/internal/database"
	"github.com/aristath/holdings/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const positionColumns = `identifier, name, asset_type, broker, currency, status,
	total_quantity, average_price, total_invested, realized_pnl,
	current_price, price_updated_at, opened_at, closed_at, updated_at`

// PositionRepository handles position persistence in ledger.db
type PositionRepository struct {
	db  database.Querier
	log zerolog.Logger
}

// NewPositionRepository creates a new position repository
func NewPositionRepository(db database.Querier, log zerolog.Logger) *PositionRepository {
	return &PositionRepository{
		db:  db,
		log: log.With().Str("repo", "position").Logger(),
	}
}

// WithQuerier returns a copy of the repository bound to q, typically a *sql.Tx
func (r *PositionRepository) WithQuerier(q database.Querier) *PositionRepository {
	return &PositionRepository{db: q, log: r.log}
}

var (
	_ domain.PositionReader = (*PositionRepository)(nil)
	_ domain.PositionWriter = (*PositionRepository)(nil)
	_ domain.PriceSetter    = (*PositionRepository)(nil)
)

// GetByIdentifier returns the position for an identifier, or nil if none exists
func (r *PositionRepository) GetByIdentifier(ctx context.Context, identifier string) (*domain.Position, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+positionColumns+" FROM positions WHERE identifier = ?",
		domain.NormalizeIdentifier(identifier))

	pos, err := scanPosition(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get position %s: %w", identifier, err)
	}
	return &pos, nil
}

// GetAll returns every position, open and closed
func (r *PositionRepository) GetAll(ctx context.Context) ([]domain.Position, error) {
	return r.query(ctx, "SELECT "+positionColumns+" FROM positions ORDER BY identifier")
}

// GetActive returns the open positions
func (r *PositionRepository) GetActive(ctx context.Context) ([]domain.Position, error) {
	return r.query(ctx,
		"SELECT "+positionColumns+" FROM positions WHERE status = ? ORDER BY identifier",
		domain.PositionStatusActive)
}

func (r *PositionRepository) query(ctx context.Context, query string, args ...interface{}) ([]domain.Position, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	positions := make([]domain.Position, 0)
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, pos)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating positions: %w", err)
	}

	return positions, nil
}

// Save inserts or fully replaces a position row
func (r *PositionRepository) Save(ctx context.Context, p domain.Position) error {
	p.Identifier = domain.NormalizeIdentifier(p.Identifier)
	if p.Identifier == "" {
		return fmt.Errorf("identifier is required for position save")
	}
	if p.AssetType == "" {
		p.AssetType = domain.AssetTypeOther
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now()
	}
	if p.OpenedAt.IsZero() {
		p.OpenedAt = p.UpdatedAt
	}

	var currentPrice decimal.NullDecimal
	if p.CurrentPrice != nil {
		currentPrice = decimal.NewNullDecimal(*p.CurrentPrice)
	}

	query := `
		INSERT INTO positions (` + positionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(identifier) DO UPDATE SET
			name = excluded.name,
			asset_type = excluded.asset_type,
			broker = excluded.broker,
			currency = excluded.currency,
			status = excluded.status,
			total_quantity = excluded.total_quantity,
			average_price = excluded.average_price,
			total_invested = excluded.total_invested,
			realized_pnl = excluded.realized_pnl,
			current_price = excluded.current_price,
			price_updated_at = excluded.price_updated_at,
			opened_at = excluded.opened_at,
			closed_at = excluded.closed_at,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		p.Identifier,
		p.Name,
		string(p.AssetType),
		p.Broker,
		p.Currency,
		string(p.Status),
		p.TotalQuantity,
		p.AveragePrice,
		p.TotalInvested,
		p.RealizedPnL,
		currentPrice,
		nullUnix(p.PriceUpdatedAt),
		p.OpenedAt.Unix(),
		nullUnix(p.ClosedAt),
		p.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save position %s: %w", p.Identifier, err)
	}

	r.log.Debug().
		Str("identifier", p.Identifier).
		Str("status", string(p.Status)).
		Str("quantity", p.TotalQuantity.String()).
		Msg("Position saved")
	return nil
}

// UpdatePrice sets the latest market price of a position.
// It fails with PositionNotFound when no row exists for the identifier.
func (r *PositionRepository) UpdatePrice(ctx context.Context, identifier string, price decimal.Decimal, at time.Time) error {
	identifier = domain.NormalizeIdentifier(identifier)

	result, err := r.db.ExecContext(ctx,
		"UPDATE positions SET current_price = ?, price_updated_at = ? WHERE identifier = ?",
		price, at.Unix(), identifier)
	if err != nil {
		return fmt.Errorf("failed to update price for %s: %w", identifier, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return domain.NewOperationError(domain.KindPositionNotFound, identifier, "no position to price")
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPosition(row rowScanner) (domain.Position, error) {
	var pos domain.Position
	var assetType, status string
	var currentPrice decimal.NullDecimal
	var priceUpdatedAt, closedAt sql.NullInt64
	var openedAt, updatedAt int64

	err := row.Scan(
		&pos.Identifier,
		&pos.Name,
		&assetType,
		&pos.Broker,
		&pos.Currency,
		&status,
		&pos.TotalQuantity,
		&pos.AveragePrice,
		&pos.TotalInvested,
		&pos.RealizedPnL,
		&currentPrice,
		&priceUpdatedAt,
		&openedAt,
		&closedAt,
		&updatedAt,
	)
	if err != nil {
		return pos, err
	}

	pos.AssetType = domain.AssetType(assetType)
	pos.Status = domain.PositionStatus(status)
	pos.OpenedAt = time.Unix(openedAt, 0).UTC()
	pos.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	pos.PriceUpdatedAt = timeFromNull(priceUpdatedAt)
	pos.ClosedAt = timeFromNull(closedAt)
	if currentPrice.Valid {
		price := currentPrice.Decimal
		pos.CurrentPrice = &price
	}

	return pos, nil
}

func nullUnix(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

func timeFromNull(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}
