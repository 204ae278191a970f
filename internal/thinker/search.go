package thinker

import (
	"context"
	"time"

	"github.com/solace-automations/intentflow/internal/domain"
	"github.com/solace-automations/intentflow/internal/eventbus"
	"github.com/solace-automations/intentflow/internal/registry"
)

// Match-quality thresholds resolving Open Question (b): the threshold is
// per-request, not a single global constant. A spec that names a concrete
// execution_kind_hint is asking for a narrower capability and gets the
// stricter bar; an unhinted spec is judged more leniently since a good
// lexical/semantic hit across either kind is still useful signal.
const (
	minScoreWithHint    = 0.55
	minScoreWithoutHint = 0.35
)

func searchThreshold(hint domain.ExecutionKind) float64 {
	if hint != "" {
		return minScoreWithHint
	}
	return minScoreWithoutHint
}

// search runs Stage B (§4.5): for each required spec, rank registry
// candidates against the spec's description (optionally rewritten+embedded)
// and the structural FitnessHint (§4.2), partitioning into matched/missing.
func (t *Thinker) search(ctx context.Context, specs []RequiredBlockSpec, userID string, sink eventbus.Sink) (map[string]*domain.BlockDefinition, []RequiredBlockSpec, error) {
	candidates, err := t.blocks.List(ctx, "")
	if err != nil {
		return nil, nil, domain.StoreError("failed to list candidate blocks", err)
	}

	matched := make(map[string]*domain.BlockDefinition, len(specs))
	var missing []RequiredBlockSpec

	for _, spec := range specs {
		hint := registry.FitnessHint{
			RequiredInputs:  schemaFieldNames(spec.InputSchema),
			RequiredOutputs: schemaFieldNames(spec.OutputSchema),
			ExecutionKind:   spec.ExecutionKindHint,
		}
		fit := filterFits(candidates, hint)

		queryText := spec.Description
		var embedding []float32
		if t.embedder != nil {
			if text, emb, embErr := registry.EmbedQuery(ctx, t.embedder, t.rewriter, spec.Description, spec.ExecutionKindHint); embErr == nil {
				queryText, embedding = text, emb
			}
			// embErr falls back to lexical-only search (§4.2 degraded path):
			// queryText stays the raw description, embedding stays nil.
		}

		ranked := registry.Search(fit, embedding, queryText, t.config.SearchLimit)
		threshold := searchThreshold(spec.ExecutionKindHint)

		if len(ranked) > 0 && ranked[0].Score >= threshold {
			matched[spec.SuggestedID] = ranked[0].Block
			sink.Publish(eventbus.Event{
				Kind:      eventbus.KindSearchFound,
				Timestamp: time.Now(),
				UserID:    userID,
				BlockID:   ranked[0].Block.ID,
				Payload:   map[string]any{"suggested_id": spec.SuggestedID, "matched": ranked[0].Block.ID, "score": ranked[0].Score},
			})
			continue
		}

		missing = append(missing, spec)
		sink.Publish(eventbus.Event{
			Kind:      eventbus.KindSearchMissing,
			Timestamp: time.Now(),
			UserID:    userID,
			Payload:   map[string]any{"suggested_id": spec.SuggestedID},
		})
	}

	return matched, missing, nil
}

func filterFits(candidates []*domain.BlockDefinition, hint registry.FitnessHint) []*domain.BlockDefinition {
	out := make([]*domain.BlockDefinition, 0, len(candidates))
	for _, b := range candidates {
		if hint.Fits(b) {
			out = append(out, b)
		}
	}
	return out
}

func schemaFieldNames(schema domain.Schema) []string {
	out := make([]string, 0, len(schema))
	for name := range schema {
		out = append(out, name)
	}
	return out
}
