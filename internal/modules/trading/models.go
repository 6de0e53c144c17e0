package trading

import (
	"fmt"
	"strings"
	"time"

	"github.com/aristath/holdings/internal/domain"
	"github.com/aristath/holdings/internal/events"
	"github.com/aristath/holdings/internal/modules/accounting"
	"github.com/shopspring/decimal"
)

// BuyRequest describes a purchase. Descriptive fields are applied to the
// position when set; AccountID and Date fall back to the service defaults.
type BuyRequest struct {
	Identifier string          `json:"identifier"`
	Quantity   decimal.Decimal `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Fees       decimal.Decimal `json:"fees"`
	Date       time.Time       `json:"date"`
	AccountID  string          `json:"account_id,omitempty"`
	Name       string          `json:"name,omitempty"`
	AssetType  string          `json:"asset_type,omitempty"`
	Broker     string          `json:"broker,omitempty"`
	Currency   string          `json:"currency,omitempty"`
	Notes      string          `json:"notes,omitempty"`
}

// SellRequest describes a sale
type SellRequest struct {
	Identifier string          `json:"identifier"`
	Quantity   decimal.Decimal `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Fees       decimal.Decimal `json:"fees"`
	Date       time.Time       `json:"date"`
	AccountID  string          `json:"account_id,omitempty"`
	Notes      string          `json:"notes,omitempty"`
}

// TradeResult is returned by Buy and Sell once the trade has been committed
type TradeResult struct {
	Operation   domain.Operation       `json:"operation"`
	Position    domain.Position        `json:"position"`
	Sale        *accounting.SaleResult `json:"sale,omitempty"`
	Transition  events.EventType       `json:"transition,omitempty"` // POSITION_OPENED, POSITION_CLOSED or POSITION_REOPENED
	CashBalance decimal.Decimal        `json:"cash_balance"`
}

// ParseTradeDate accepts an RFC 3339 timestamp or a plain YYYY-MM-DD date.
// An empty string yields the zero time, which the service replaces with now.
func ParseTradeDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (expected YYYY-MM-DD or RFC 3339)", s)
	}
	return t, nil
}
