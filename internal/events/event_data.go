package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// EventData is the interface that all event data types must implement
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// TradeExecutedData contains data for TradeExecuted events
type TradeExecutedData struct {
	OperationID string          `json:"operation_id"`
	AccountID   string          `json:"account_id"`
	Identifier  string          `json:"identifier"`
	Side        string          `json:"side"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Fees        decimal.Decimal `json:"fees"`
	ProfitLoss  decimal.Decimal `json:"profit_loss"` // Zero for buys
}

// EventType returns the event type for TradeExecutedData
func (d *TradeExecutedData) EventType() EventType {
	return TradeExecuted
}

// PositionChangedData contains data for position lifecycle events.
// Transition selects the event type.
type PositionChangedData struct {
	Identifier   string          `json:"identifier"`
	Transition   EventType       `json:"-"`
	Quantity     decimal.Decimal `json:"quantity"`
	AveragePrice decimal.Decimal `json:"average_price"`
	RealizedPnL  decimal.Decimal `json:"realized_pnl"`
}

// EventType returns the lifecycle transition
func (d *PositionChangedData) EventType() EventType {
	return d.Transition
}

// PriceUpdatedData contains data for PriceUpdated events
type PriceUpdatedData struct {
	Identifier string          `json:"identifier"`
	Price      decimal.Decimal `json:"price"`
	Source     string          `json:"source"`
}

// EventType returns the event type for PriceUpdatedData
func (d *PriceUpdatedData) EventType() EventType {
	return PriceUpdated
}

// CashMovementData contains data for deposits and withdrawals
type CashMovementData struct {
	AccountID    string          `json:"account_id"`
	Amount       decimal.Decimal `json:"amount"` // Signed
	BalanceAfter decimal.Decimal `json:"balance_after"`
}

// EventType returns CashDeposited or CashWithdrawn depending on the sign of Amount
func (d *CashMovementData) EventType() EventType {
	if d.Amount.IsNegative() {
		return CashWithdrawn
	}
	return CashDeposited
}

// ReconciliationFailedData contains data for ReconciliationFailed events
type ReconciliationFailedData struct {
	Identifier string `json:"identifier"`
	Reason     string `json:"reason"`
}

// EventType returns the event type for ReconciliationFailedData
func (d *ReconciliationFailedData) EventType() EventType {
	return ReconciliationFailed
}

// SnapshotCreatedData contains data for SnapshotCreated events
type SnapshotCreatedData struct {
	Date     string          `json:"date"`
	NetWorth decimal.Decimal `json:"net_worth"`
}

// EventType returns the event type for SnapshotCreatedData
func (d *SnapshotCreatedData) EventType() EventType {
	return SnapshotCreated
}

// BackupCompletedData contains data for BackupCompleted events
type BackupCompletedData struct {
	Archive   string  `json:"archive"`
	SizeBytes int64   `json:"size_bytes"`
	Uploaded  bool    `json:"uploaded"`
	Duration  float64 `json:"duration_seconds"`
}

// EventType returns the event type for BackupCompletedData
func (d *BackupCompletedData) EventType() EventType {
	return BackupCompleted
}

// JobStatusData contains data for job lifecycle events
type JobStatusData struct {
	JobName  string    `json:"job_name"`
	Status   string    `json:"status"` // "completed" or "failed"
	Error    string    `json:"error,omitempty"`
	Duration float64   `json:"duration_seconds"`
	Started  time.Time `json:"started_at"`
}

// EventType returns JobFailed for failed runs and JobCompleted otherwise
func (d *JobStatusData) EventType() EventType {
	if d.Status == "failed" {
		return JobFailed
	}
	return JobCompleted
}

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType {
	return ErrorOccurred
}

// UnmarshalJSON decodes an event, picking the data type from the event type
func (e *Event) UnmarshalJSON(data []byte) error {
	type Alias Event
	aux := &struct {
		Data json.RawMessage `json:"data"`
		*Alias
	}{
		Alias: (*Alias)(e),
	}

	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	if len(aux.Data) == 0 || string(aux.Data) == "null" {
		e.Data = nil
		return nil
	}

	var eventData EventData
	switch aux.Type {
	case TradeExecuted:
		eventData = &TradeExecutedData{}
	case PositionOpened, PositionClosed, PositionReopened:
		eventData = &PositionChangedData{Transition: aux.Type}
	case PriceUpdated:
		eventData = &PriceUpdatedData{}
	case CashDeposited, CashWithdrawn:
		eventData = &CashMovementData{}
	case ReconciliationFailed:
		eventData = &ReconciliationFailedData{}
	case SnapshotCreated:
		eventData = &SnapshotCreatedData{}
	case BackupCompleted:
		eventData = &BackupCompletedData{}
	case JobCompleted, JobFailed:
		eventData = &JobStatusData{}
	case ErrorOccurred:
		eventData = &ErrorEventData{}
	default:
		return fmt.Errorf("unknown event type: %s", aux.Type)
	}

	if err := json.Unmarshal(aux.Data, eventData); err != nil {
		return err
	}
	e.Data = eventData
	return nil
}
