// Package eventbus fans out the run/thinker event protocol (spec §4.7) to
// external observers — WebSocket clients, an optional Kafka topic, SSE
// streams — independent of how the Doer and Thinker produce those events.
package eventbus

import "time"

// Kind is the wire name of one event protocol entry (§4.7). Doer kinds and
// Thinker kinds share one vocabulary so a single Sink can carry both.
type Kind string

const (
	// Doer (run) events.
	KindRunStart     Kind = "run_start"
	KindNodeStart    Kind = "node_start"
	KindNodeComplete Kind = "node_complete"
	KindRunComplete  Kind = "run_complete"
	KindRunError     Kind = "run_error"

	// Thinker events.
	KindStage             Kind = "stage"
	KindLLMPrompt         Kind = "llm_prompt"
	KindLLMResponse       Kind = "llm_response"
	KindDecomposeBlocks   Kind = "decompose_blocks"
	KindSearchFound       Kind = "search_found"
	KindSearchMissing     Kind = "search_missing"
	KindCreatingBlock     Kind = "creating_block"
	KindBlockCreated      Kind = "block_created"
	KindBlockTestPassed   Kind = "block_test_passed"
	KindBlockTestFailed   Kind = "block_test_failed"
	KindBlockCreateFailed Kind = "block_create_failed"
	KindComplete          Kind = "complete"
)

// Event is one entry in the append-only, ordered stream a run or thinker
// session emits. Seq is assigned by the Bus at publish time and is strictly
// increasing per RunID/SessionID so consumers can detect gaps or reordering.
type Event struct {
	Kind       Kind
	Seq        int64
	Timestamp  time.Time
	UserID     string
	PipelineID string
	RunID      string
	SessionID  string
	NodeID     string
	BlockID    string
	Payload    any
}

// Sink receives published events. Implementations must not block the
// publisher for long — a slow or unavailable sink degrades delivery to
// itself, never to the run it is observing (§5: emission is best-effort
// relative to the run's own progress).
type Sink interface {
	Publish(e Event) error
}
