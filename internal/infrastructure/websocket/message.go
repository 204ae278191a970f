package websocket

import (
	"time"
)

// Event types mirrored over the WS transport (server -> client).
// These are the wire names of the domain event protocol kinds (see
// internal/eventbus), kept distinct from in-process kind strings so the
// transport layer can evolve independently of the event bus.
const (
	EventRunStart      = "run_start"
	EventNodeStart     = "node_start"
	EventNodeComplete  = "node_complete"
	EventRunComplete   = "run_complete"
	EventRunError      = "run_error"
	EventStage         = "stage"
	EventDecomposeDone = "decompose_blocks"
	EventSearchFound   = "search_found"
	EventSearchMissing = "search_missing"
	EventBlockCreated  = "block_created"
	EventThinkerDone   = "complete"
)

// Command types (client -> server)
const (
	CmdSubscribe   = "subscribe"
	CmdUnsubscribe = "unsubscribe"
	CmdCancel      = "cancel"
)

// WSEvent represents an event sent from server to client, mirroring one
// event from the run/thinker event protocol over the WebSocket transport.
type WSEvent struct {
	Type       string    `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	PipelineID string    `json:"pipeline_id,omitempty"`
	RunID      string    `json:"run_id,omitempty"`

	// Node-specific fields (optional)
	NodeID     string `json:"node_id,omitempty"`
	BlockID    string `json:"block_id,omitempty"`
	Status     string `json:"status,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
	Output     any    `json:"output,omitempty"`
	Error      string `json:"error,omitempty"`

	// Free-form payload for thinker-stage events (decompose results,
	// search matches, synthesis attempts) that don't fit the node/run shape.
	Payload any `json:"payload,omitempty"`
}

// WSCommand represents a command sent from client to server
type WSCommand struct {
	Action     string `json:"action"`
	RunID      string `json:"run_id,omitempty"`
	PipelineID string `json:"pipeline_id,omitempty"`
}

// WSResponse represents a response to a client command
type WSResponse struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// NewWSEvent creates a new WSEvent with the given type and IDs
func NewWSEvent(eventType, pipelineID, runID string) *WSEvent {
	return &WSEvent{
		Type:       eventType,
		Timestamp:  time.Now(),
		PipelineID: pipelineID,
		RunID:      runID,
	}
}

// NewSuccessResponse creates a success response
func NewSuccessResponse(responseType, message string) *WSResponse {
	return &WSResponse{
		Type:    responseType,
		Success: true,
		Message: message,
	}
}

// NewErrorResponse creates an error response
func NewErrorResponse(responseType, errorMsg string) *WSResponse {
	return &WSResponse{
		Type:    responseType,
		Success: false,
		Error:   errorMsg,
	}
}
