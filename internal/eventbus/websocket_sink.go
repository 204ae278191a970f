package eventbus

import (
	"fmt"

	"github.com/solace-automations/intentflow/internal/infrastructure/websocket"
)

// WebSocketSink adapts a Bus to the Hub's Broadcaster interface, translating
// the generic Event shape into the transport-specific WSEvent the Hub's
// subscription indexes (by user/pipeline/run) understand.
type WebSocketSink struct {
	hub websocket.Broadcaster
}

// NewWebSocketSink wraps a Hub (or any Broadcaster) as a Sink.
func NewWebSocketSink(hub websocket.Broadcaster) *WebSocketSink {
	return &WebSocketSink{hub: hub}
}

// Publish implements Sink.
func (s *WebSocketSink) Publish(e Event) error {
	if s.hub == nil {
		return nil
	}
	ws := &websocket.WSEvent{
		Type:       string(e.Kind),
		Timestamp:  e.Timestamp,
		PipelineID: e.PipelineID,
		RunID:      e.RunID,
		NodeID:     e.NodeID,
		BlockID:    e.BlockID,
	}
	if e.SessionID != "" && ws.RunID == "" {
		ws.RunID = e.SessionID
	}
	applyPayload(ws, e.Payload)
	s.hub.Broadcast(e.UserID, e.PipelineID, ws.RunID, ws)
	return nil
}

// applyPayload lifts well-known fields (status, output, error, duration_ms)
// out of a map payload onto their typed WSEvent columns and leaves the rest
// as the free-form Payload field, so clients that only read the typed
// columns don't need to parse payload for the common cases.
func applyPayload(ws *websocket.WSEvent, payload any) {
	m, ok := payload.(map[string]any)
	if !ok {
		ws.Payload = payload
		return
	}
	if v, ok := m["status"].(string); ok {
		ws.Status = v
	}
	if v, ok := m["output"]; ok {
		ws.Output = v
	}
	if v, ok := m["error"]; ok {
		ws.Error = fmt.Sprint(v)
	}
	if v, ok := m["duration_ms"]; ok {
		switch n := v.(type) {
		case int64:
			ws.DurationMs = n
		case int:
			ws.DurationMs = int64(n)
		case float64:
			ws.DurationMs = int64(n)
		}
	}
	rest := make(map[string]any, len(m))
	for k, v := range m {
		switch k {
		case "status", "output", "error", "duration_ms":
			continue
		}
		rest[k] = v
	}
	if len(rest) > 0 {
		ws.Payload = rest
	}
}
