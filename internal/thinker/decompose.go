package thinker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/solace-automations/intentflow/internal/domain"
	"github.com/solace-automations/intentflow/internal/eventbus"
)

const decomposeSystemPrompt = `You decompose a user's automation intent into a list of granular block ` +
	`specs. Each spec is one intent, one boundary — never a composite operation that bundles multiple ` +
	`unrelated actions. Allowed execution_kind_hint values: "llm" (a single reasoning/generation step) or ` +
	`"code" (a single deterministic transform). Respond with ONLY a JSON array, no prose, where each ` +
	`element has exactly these fields: suggested_id (string, unique), description (string), ` +
	`execution_kind_hint ("llm" or "code"), depends_on (array of other suggested_ids in this same list, ` +
	`possibly empty), input_schema (object mapping field name to {type, required, default?}), ` +
	`output_schema (same shape as input_schema).`

// decompose runs Stage A (§4.5): one LLM call producing required_blocks,
// validated structurally with one retry on failure.
func (t *Thinker) decompose(ctx context.Context, refinedIntent, userID string, sink eventbus.Sink) ([]RequiredBlockSpec, error) {
	userPrompt := refinedIntent
	var lastErr error

	for attempt := 0; attempt <= t.config.DecomposeRetries; attempt++ {
		if lastErr != nil {
			userPrompt = refinedIntent + "\n\nYour previous response was rejected: " + lastErr.Error() +
				"\nRespond again with ONLY a corrected JSON array."
		}

		started := time.Now()
		raw, promptTokens, completionTokens, err := t.messenger.CreateMessage(ctx, decomposeSystemPrompt, userPrompt)
		t.emitLLMExchange(sink, userID, decomposeSystemPrompt, userPrompt, started, raw, promptTokens, completionTokens, err)
		if err != nil {
			lastErr = err
			continue
		}

		specs, err := parseRequiredBlocks(raw)
		if err != nil {
			lastErr = err
			continue
		}
		if err := validateRequiredBlocks(specs); err != nil {
			lastErr = err
			continue
		}

		sink.Publish(eventbus.Event{
			Kind:      eventbus.KindDecomposeBlocks,
			Timestamp: time.Now(),
			UserID:    userID,
			Payload:   map[string]any{"required": specs},
		})
		return specs, nil
	}

	return nil, domain.DecomposeError("decompose stage failed after retry", lastErr)
}

func parseRequiredBlocks(raw string) ([]RequiredBlockSpec, error) {
	candidate, err := extractJSONArray(raw)
	if err != nil {
		return nil, err
	}
	var specs []RequiredBlockSpec
	if err := json.Unmarshal([]byte(candidate), &specs); err != nil {
		return nil, err
	}
	return specs, nil
}

// validateRequiredBlocks enforces the structural shape Stage A promises:
// at least one spec, unique non-empty ids, a recognized execution kind
// hint (or none), and depends_on entries that resolve within the same
// batch.
func validateRequiredBlocks(specs []RequiredBlockSpec) error {
	if len(specs) == 0 {
		return fmt.Errorf("decompose returned no required blocks")
	}
	seen := make(map[string]bool, len(specs))
	for _, s := range specs {
		if s.SuggestedID == "" {
			return fmt.Errorf("a required block is missing suggested_id")
		}
		if seen[s.SuggestedID] {
			return fmt.Errorf("duplicate suggested_id %q", s.SuggestedID)
		}
		seen[s.SuggestedID] = true
		if s.Description == "" {
			return fmt.Errorf("block %q is missing description", s.SuggestedID)
		}
		if s.ExecutionKindHint != "" && !s.ExecutionKindHint.Implemented() {
			return fmt.Errorf("block %q: execution_kind_hint %q is not implemented", s.SuggestedID, s.ExecutionKindHint)
		}
	}
	for _, s := range specs {
		for _, dep := range s.DependsOn {
			if !seen[dep] {
				return fmt.Errorf("block %q depends_on unknown block %q", s.SuggestedID, dep)
			}
		}
	}
	return nil
}
