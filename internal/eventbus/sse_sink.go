package eventbus

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// flusher is the subset of http.Flusher an SSESink needs, narrowed so tests
// can satisfy it with a plain buffer wrapper instead of a real ResponseWriter.
type flusher interface {
	Flush()
}

// SSESink streams events to a single HTTP client as `POST /create-agent/stream`
// (spec §6.1) requires: one `event: <kind>\ndata: <json>\n\n` record per
// event, flushed immediately so the client sees it without server buffering.
type SSESink struct {
	w       http.ResponseWriter
	flusher flusher
}

// NewSSESink wraps w. Returns an error if w does not support flushing —
// required for a no-buffering stream.
func NewSSESink(w http.ResponseWriter) (*SSESink, error) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("eventbus: response writer does not support flushing")
	}
	return &SSESink{w: w, flusher: f}, nil
}

// Publish implements Sink, writing one SSE record and flushing it.
func (s *SSESink) Publish(e Event) error {
	data, err := json.Marshal(sseData{
		Seq:        e.Seq,
		Timestamp:  e.Timestamp,
		PipelineID: e.PipelineID,
		RunID:      e.RunID,
		SessionID:  e.SessionID,
		NodeID:     e.NodeID,
		BlockID:    e.BlockID,
		Payload:    e.Payload,
	})
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", e.Kind, data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

type sseData struct {
	Seq        int64     `json:"seq"`
	Timestamp  time.Time `json:"timestamp"`
	PipelineID string    `json:"pipeline_id,omitempty"`
	RunID      string    `json:"run_id,omitempty"`
	SessionID  string    `json:"session_id,omitempty"`
	NodeID     string    `json:"node_id,omitempty"`
	BlockID    string    `json:"block_id,omitempty"`
	Payload    any       `json:"payload,omitempty"`
}
