// Package snapshots records one valuation of the whole portfolio per day.
package snapshots

import (
	"time"

	"github.com/aristath/holdings/internal/modules/accounting"
	"github.com/shopspring/decimal"
)

// DateLayout is the snapshot key format
const DateLayout = "2006-01-02"

// Snapshot is the portfolio valuation captured on one day
type Snapshot struct {
	Date          string             `msgpack:"date" json:"date"`
	CapturedAt    time.Time          `msgpack:"captured_at" json:"captured_at"`
	TotalInvested decimal.Decimal    `msgpack:"total_invested" json:"total_invested"`
	CurrentValue  decimal.Decimal    `msgpack:"current_value" json:"current_value"`
	UnrealizedPnL decimal.Decimal    `msgpack:"unrealized_pnl" json:"unrealized_pnl"`
	RealizedPnL   decimal.Decimal    `msgpack:"realized_pnl" json:"realized_pnl"`
	CashBalance   decimal.Decimal    `msgpack:"cash_balance" json:"cash_balance"`
	NetWorth      decimal.Decimal    `msgpack:"net_worth" json:"net_worth"`
	OpenPositions int                `msgpack:"open_positions" json:"open_positions"`
	Allocation    []accounting.Slice `msgpack:"allocation" json:"allocation"` // By asset type
}
