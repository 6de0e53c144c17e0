package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/aristath/holdings/internal/events"
	"github.com/aristath/holdings/internal/utils"
)

const (
	eventBufferSize   = 100
	eventWriteTimeout = 10 * time.Second
)

// EventsWebSocketHandler streams bus events to WebSocket clients as JSON
// messages, one event per message.
type EventsWebSocketHandler struct {
	eventBus *events.Bus
	log      zerolog.Logger
}

// NewEventsWebSocketHandler creates a new events stream handler
func NewEventsWebSocketHandler(eventBus *events.Bus, log zerolog.Logger) *EventsWebSocketHandler {
	return &EventsWebSocketHandler{
		eventBus: eventBus,
		log:      log.With().Str("component", "events_ws").Logger(),
	}
}

// ServeHTTP handles GET /api/events/ws?types=TRADE_EXECUTED,PRICE_UPDATED
func (h *EventsWebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	types, ok := parseEventTypes(r.URL.Query().Get("types"))
	if !ok {
		http.Error(w, "unknown event type", http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("WebSocket handshake failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	eventChan := make(chan *events.Event, eventBufferSize)

	unsubscribe := h.eventBus.Subscribe(func(event *events.Event) {
		// Non-blocking send (drop if the client is slow)
		select {
		case eventChan <- event:
		default:
			h.log.Warn().
				Str("event_type", string(event.Type)).
				Msg("Event channel full, dropping event")
		}
	}, types...)
	defer unsubscribe()

	h.log.Info().Int("types", len(types)).Msg("Client connected to event stream")

	// Clients only listen; CloseRead handles their control frames
	ctx := conn.CloseRead(r.Context())

	for {
		select {
		case <-ctx.Done():
			h.log.Info().Msg("Client disconnected from event stream")
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case event := <-eventChan:
			if err := h.write(ctx, conn, event); err != nil {
				h.log.Debug().Err(err).Msg("Failed to write event, closing stream")
				return
			}
		}
	}
}

func (h *EventsWebSocketHandler) write(ctx context.Context, conn *websocket.Conn, event *events.Event) error {
	ctx, cancel := context.WithTimeout(ctx, eventWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, event)
}

// parseEventTypes parses a comma separated filter. An empty filter selects
// every event type.
func parseEventTypes(filter string) ([]events.EventType, bool) {
	values := utils.ParseCSV(filter)
	if values == nil {
		return nil, true
	}

	known := make(map[events.EventType]bool, len(events.AllEventTypes))
	for _, t := range events.AllEventTypes {
		known[t] = true
	}

	types := make([]events.EventType, 0, len(values))
	for _, raw := range values {
		t := events.EventType(strings.ToUpper(raw))
		if !known[t] {
			return nil, false
		}
		types = append(types, t)
	}
	return types, true
}
