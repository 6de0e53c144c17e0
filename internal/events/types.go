package events

import "time"

// EventType represents different event types
type EventType string

const (
	TradeExecuted        EventType = "TRADE_EXECUTED"
	PositionOpened       EventType = "POSITION_OPENED"
	PositionClosed       EventType = "POSITION_CLOSED"
	PositionReopened     EventType = "POSITION_REOPENED"
	PriceUpdated         EventType = "PRICE_UPDATED"
	CashDeposited        EventType = "CASH_DEPOSITED"
	CashWithdrawn        EventType = "CASH_WITHDRAWN"
	ReconciliationFailed EventType = "RECONCILIATION_FAILED"
	SnapshotCreated      EventType = "SNAPSHOT_CREATED"
	BackupCompleted      EventType = "BACKUP_COMPLETED"
	JobCompleted         EventType = "JOB_COMPLETED"
	JobFailed            EventType = "JOB_FAILED"
	ErrorOccurred        EventType = "ERROR_OCCURRED"
)

// AllEventTypes lists every event type the system emits
var AllEventTypes = []EventType{
	TradeExecuted,
	PositionOpened,
	PositionClosed,
	PositionReopened,
	PriceUpdated,
	CashDeposited,
	CashWithdrawn,
	ReconciliationFailed,
	SnapshotCreated,
	BackupCompleted,
	JobCompleted,
	JobFailed,
	ErrorOccurred,
}

// Event represents a system event
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Module    string    `json:"module"`
	Data      EventData `json:"data"`
}
