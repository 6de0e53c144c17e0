package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventTypes_DerivedFromData(t *testing.T) {
	assert.Equal(t, CashDeposited, (&CashMovementData{Amount: decimal.NewFromInt(10)}).EventType())
	assert.Equal(t, CashWithdrawn, (&CashMovementData{Amount: decimal.NewFromInt(-10)}).EventType())
	assert.Equal(t, PositionClosed, (&PositionChangedData{Transition: PositionClosed}).EventType())
	assert.Equal(t, JobFailed, (&JobStatusData{Status: "failed"}).EventType())
	assert.Equal(t, JobCompleted, (&JobStatusData{Status: "completed"}).EventType())
}

func TestEvent_JSONKeepsTypedData(t *testing.T) {
	original := &Event{
		Type:      TradeExecuted,
		Timestamp: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Module:    "trading",
		Data: &TradeExecutedData{
			OperationID: "op-1",
			Identifier:  "ITSA4",
			Side:        "sell",
			Quantity:    decimal.NewFromInt(60),
			UnitPrice:   decimal.NewFromInt(15),
			Fees:        decimal.NewFromInt(10),
			ProfitLoss:  decimal.NewFromInt(248),
		},
	}

	raw, err := json.Marshal(original)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"profit_loss":"248"`)

	var decoded Event
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, TradeExecuted, decoded.Type)
	assert.Equal(t, "trading", decoded.Module)

	data, ok := decoded.Data.(*TradeExecutedData)
	require.True(t, ok)
	assert.Equal(t, "ITSA4", data.Identifier)
	assert.True(t, data.ProfitLoss.Equal(decimal.NewFromInt(248)))
}

func TestEvent_PositionTransitionRestored(t *testing.T) {
	raw := []byte(`{"type":"POSITION_REOPENED","module":"trading","timestamp":"2024-03-01T12:00:00Z","data":{"identifier":"ITSA4","quantity":"10","average_price":"20.1","realized_pnl":"0"}}`)

	var decoded Event
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.NotNil(t, decoded.Data)
	assert.Equal(t, PositionReopened, decoded.Data.EventType())
}

func TestEvent_UnknownType(t *testing.T) {
	var decoded Event
	err := json.Unmarshal([]byte(`{"type":"SOMETHING","data":{}}`), &decoded)
	assert.Error(t, err)
}
