// Package domain provides core domain models and types.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AssetType represents the class of a tradable asset
type AssetType string

const (
	AssetTypeStock       AssetType = "stock"
	AssetTypeFII         AssetType = "fii" // Real estate investment fund (fundo imobiliário)
	AssetTypeETF         AssetType = "etf"
	AssetTypeCrypto      AssetType = "crypto"
	AssetTypeFixedIncome AssetType = "fixed_income"
	AssetTypeFund        AssetType = "fund"
	AssetTypeBDR         AssetType = "bdr" // Brazilian depositary receipt
	AssetTypeOption      AssetType = "option"
	AssetTypeFuture      AssetType = "future"
	AssetTypeOther       AssetType = "other"
)

// AllAssetTypes lists every supported asset type in display order
var AllAssetTypes = []AssetType{
	AssetTypeStock,
	AssetTypeFII,
	AssetTypeETF,
	AssetTypeCrypto,
	AssetTypeFixedIncome,
	AssetTypeFund,
	AssetTypeBDR,
	AssetTypeOption,
	AssetTypeFuture,
	AssetTypeOther,
}

// Valid reports whether t is one of the supported asset types
func (t AssetType) Valid() bool {
	for _, known := range AllAssetTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ParseAssetType parses a case-insensitive asset type. Empty input maps to AssetTypeOther.
func ParseAssetType(s string) (AssetType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return AssetTypeOther, nil
	}
	t := AssetType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown asset type: %q", s)
	}
	return t, nil
}

// PositionStatus is the two-state lifecycle of a position
type PositionStatus string

const (
	PositionStatusActive PositionStatus = "active"
	PositionStatusClosed PositionStatus = "closed"
)

// OperationType is the side of a trade
type OperationType string

const (
	OperationBuy  OperationType = "buy"
	OperationSell OperationType = "sell"
)

// ParseOperationType parses "buy" or "sell" (case-insensitive)
func ParseOperationType(s string) (OperationType, error) {
	switch OperationType(strings.ToLower(strings.TrimSpace(s))) {
	case OperationBuy:
		return OperationBuy, nil
	case OperationSell:
		return OperationSell, nil
	default:
		return "", fmt.Errorf("unknown operation type: %q", s)
	}
}

// NormalizeIdentifier returns the canonical form of a ticker/symbol
func NormalizeIdentifier(identifier string) string {
	return strings.ToUpper(strings.TrimSpace(identifier))
}

// Position is the aggregated holding of one asset identifier.
// TotalInvested always equals AveragePrice * TotalQuantity; AveragePrice is zero
// and must be ignored while the position is closed.
type Position struct {
	OpenedAt       time.Time        `json:"opened_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
	ClosedAt       *time.Time       `json:"closed_at,omitempty"`
	PriceUpdatedAt *time.Time       `json:"price_updated_at,omitempty"`
	CurrentPrice   *decimal.Decimal `json:"current_price,omitempty"`
	Identifier     string           `json:"identifier"`
	Name           string           `json:"name,omitempty"`
	AssetType      AssetType        `json:"asset_type"`
	Broker         string           `json:"broker,omitempty"`
	Currency       string           `json:"currency"`
	Status         PositionStatus   `json:"status"`
	TotalQuantity  decimal.Decimal  `json:"total_quantity"`
	AveragePrice   decimal.Decimal  `json:"average_price"`
	TotalInvested  decimal.Decimal  `json:"total_invested"`
	RealizedPnL    decimal.Decimal  `json:"realized_pnl"`
}

// IsOpen reports whether the position currently holds a positive quantity
func (p *Position) IsOpen() bool {
	return p != nil && p.Status == PositionStatusActive && p.TotalQuantity.IsPositive()
}

// Operation is an immutable record of a single buy or sell.
// The result fields are filled in by the trading service when the operation is applied.
type Operation struct {
	Date              time.Time       `json:"date"`
	CreatedAt         time.Time       `json:"created_at"`
	ID                string          `json:"id"`
	AccountID         string          `json:"account_id"`
	Identifier        string          `json:"identifier"`
	Type              OperationType   `json:"type"`
	Notes             string          `json:"notes,omitempty"`
	Quantity          decimal.Decimal `json:"quantity"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	Fees              decimal.Decimal `json:"fees"`
	GrossValue        decimal.Decimal `json:"gross_value"`
	NetValue          decimal.Decimal `json:"net_value"`
	CostBasis         decimal.Decimal `json:"cost_basis"`
	ProfitLoss        decimal.Decimal `json:"profit_loss"`
	AveragePriceAfter decimal.Decimal `json:"average_price_after"`
	QuantityAfter     decimal.Decimal `json:"quantity_after"`
}

// Account is a cash account that funds buys and receives sale proceeds
type Account struct {
	UpdatedAt time.Time       `json:"updated_at"`
	CreatedAt time.Time       `json:"created_at"`
	ID        string          `json:"id"`
	Currency  string          `json:"currency"`
	Balance   decimal.Decimal `json:"balance"`
}

// CashFlowType classifies a movement of cash on an account
type CashFlowType string

const (
	CashFlowDeposit     CashFlowType = "deposit"
	CashFlowWithdrawal  CashFlowType = "withdrawal"
	CashFlowTradeDebit  CashFlowType = "trade_debit"
	CashFlowTradeCredit CashFlowType = "trade_credit"
)

// CashFlow is an append-only record of a balance change
type CashFlow struct {
	Date         time.Time       `json:"date"`
	ID           string          `json:"id"`
	AccountID    string          `json:"account_id"`
	Type         CashFlowType    `json:"type"`
	OperationID  string          `json:"operation_id,omitempty"`
	Description  string          `json:"description,omitempty"`
	Amount       decimal.Decimal `json:"amount"` // Signed: positive credits, negative debits
	BalanceAfter decimal.Decimal `json:"balance_after"`
}
