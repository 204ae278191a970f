// Package thinker implements the Thinker (spec §4.5): the agentic
// Decompose -> Search -> Synthesize -> Wire state machine that turns a
// refined intent into a PipelineDAG the Doer can execute. Where the Doer is
// a deterministic scheduler, the Thinker is an LLM + validator loop — kept
// in its own package so it can be iterated without risking Doer execution
// correctness (spec.md's own rationale for the split).
package thinker

import "github.com/solace-automations/intentflow/internal/domain"

// RequiredBlockSpec is one item of the Decompose stage's output: a
// granular, single-boundary unit of work the Search stage tries to match
// against the registry before falling back to Synthesize.
type RequiredBlockSpec struct {
	SuggestedID       string              `json:"suggested_id"`
	Description       string              `json:"description"`
	ExecutionKindHint domain.ExecutionKind `json:"execution_kind_hint"`
	DependsOn         []string            `json:"depends_on"`
	InputSchema       domain.Schema       `json:"input_schema"`
	OutputSchema      domain.Schema       `json:"output_schema"`
}

// Config bounds the Thinker's retry/attempt loops (§4.5: "one retry" for
// Decompose/Wire, "<= 3 attempts" for Synthesize) and the Search stage's
// candidate limit.
type Config struct {
	DecomposeRetries   int
	WireRetries        int
	SynthesizeAttempts int
	SearchLimit        int
}

// DefaultConfig mirrors spec.md's stated bounds exactly.
func DefaultConfig() Config {
	return Config{
		DecomposeRetries:   1,
		WireRetries:        1,
		SynthesizeAttempts: 3,
		SearchLimit:        5,
	}
}

// Result is what Run returns regardless of outcome: Status is always
// terminal (domain.ThinkerStateDone or domain.ThinkerStateError).
// Pipeline is non-nil only on Done. Unresolved lists specs that could
// neither be matched nor synthesized within the attempt cap (only set on
// Error from the Synthesize stage).
type Result struct {
	Pipeline   *domain.PipelineDAG
	Status     domain.ThinkerState
	Unresolved []string
}
