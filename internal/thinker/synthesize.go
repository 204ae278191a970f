package thinker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/solace-automations/intentflow/internal/blockexec"
	"github.com/solace-automations/intentflow/internal/domain"
	"github.com/solace-automations/intentflow/internal/eventbus"
)

// synthesizeAll runs Stage C (§4.5) for every missing spec, returning the
// newly created+registered blocks keyed by suggested_id and the
// suggested_ids that exhausted their attempt cap without passing.
func (t *Thinker) synthesizeAll(ctx context.Context, missing []RequiredBlockSpec, userID string, sink eventbus.Sink) (map[string]*domain.BlockDefinition, []string) {
	synthesized := make(map[string]*domain.BlockDefinition, len(missing))
	var unresolved []string

	for _, spec := range missing {
		def, err := t.synthesizeOne(ctx, spec, userID, sink)
		if err != nil {
			unresolved = append(unresolved, spec.SuggestedID)
			continue
		}
		synthesized[spec.SuggestedID] = def
	}
	return synthesized, unresolved
}

// synthesizeOne runs the per-attempt loop (<= SynthesizeAttempts) for one
// missing spec: generate -> structurally validate -> sample-test -> save.
func (t *Thinker) synthesizeOne(ctx context.Context, spec RequiredBlockSpec, userID string, sink eventbus.Sink) (*domain.BlockDefinition, error) {
	nodeID := "synth-" + spec.SuggestedID
	var lastErr error

	for attempt := 1; attempt <= t.config.SynthesizeAttempts; attempt++ {
		sink.Publish(eventbus.Event{
			Kind:      eventbus.KindCreatingBlock,
			Timestamp: time.Now(),
			UserID:    userID,
			Payload:   map[string]any{"suggested_id": spec.SuggestedID, "attempt": attempt},
		})

		def, err := t.generateBlockDefinition(ctx, spec, lastErr, userID, sink)
		if err != nil {
			lastErr = err
			t.emitTestFailed(sink, userID, spec.SuggestedID, attempt, err)
			continue
		}

		if err := def.Validate(); err != nil {
			lastErr = err
			t.emitTestFailed(sink, userID, spec.SuggestedID, attempt, err)
			continue
		}

		testInputs := generateTestInputs(def.InputSchema)
		output, err := t.executor.Execute(ctx, def, nodeID, testInputs, blockexec.ExecContext{})
		if err != nil {
			lastErr = fmt.Errorf("sample test raised an error: %w", err)
			t.emitTestFailed(sink, userID, spec.SuggestedID, attempt, lastErr)
			continue
		}
		if err := blockexec.ValidateOutput(def.ID, nodeID, def.OutputSchema, output); err != nil {
			lastErr = err
			t.emitTestFailed(sink, userID, spec.SuggestedID, attempt, err)
			continue
		}

		sink.Publish(eventbus.Event{
			Kind:      eventbus.KindBlockTestPassed,
			Timestamp: time.Now(),
			UserID:    userID,
			BlockID:   def.ID,
			Payload:   map[string]any{"suggested_id": spec.SuggestedID, "attempt": attempt},
		})

		if err := t.blocks.Save(ctx, def); err != nil {
			return nil, domain.StoreError("failed to save synthesized block "+def.ID, err)
		}
		sink.Publish(eventbus.Event{
			Kind:      eventbus.KindBlockCreated,
			Timestamp: time.Now(),
			UserID:    userID,
			BlockID:   def.ID,
			Payload:   map[string]any{"suggested_id": spec.SuggestedID},
		})
		return def, nil
	}

	sink.Publish(eventbus.Event{
		Kind:      eventbus.KindBlockCreateFailed,
		Timestamp: time.Now(),
		UserID:    userID,
		Payload:   map[string]any{"suggested_id": spec.SuggestedID, "attempts": t.config.SynthesizeAttempts, "error": lastErr.Error()},
	})
	return nil, lastErr
}

func (t *Thinker) emitTestFailed(sink eventbus.Sink, userID, suggestedID string, attempt int, err error) {
	sink.Publish(eventbus.Event{
		Kind:      eventbus.KindBlockTestFailed,
		Timestamp: time.Now(),
		UserID:    userID,
		Payload:   map[string]any{"suggested_id": suggestedID, "attempt": attempt, "error": err.Error()},
	})
}

const synthesizeSystemPromptTemplate = `You write one BlockDefinition to satisfy a required block spec. Allowed ` +
	`modules for execution_kind="code" (the sandbox whitelist): %s. Respond with ONLY a JSON object with fields: ` +
	`id, name, description, use_when, tags (array of strings), category (one of "input","process","action",` +
	`"memory","trigger"), execution_kind ("llm" or "code"), input_schema, output_schema (each a map of field ` +
	`name to {type, required, default?}), and exactly one of: prompt_template (a string with {slot} ` +
	`placeholders matching input_schema, for execution_kind="llm") or source (a single entrypoint(inputs, ` +
	`context) function body, for execution_kind="code").`

// generateBlockDefinition makes the Stage C step 1 LLM call: the spec, the
// module whitelist, and (on a retry) the previous attempt's error appended
// to the user prompt.
func (t *Thinker) generateBlockDefinition(ctx context.Context, spec RequiredBlockSpec, previousErr error, userID string, sink eventbus.Sink) (*domain.BlockDefinition, error) {
	system := fmt.Sprintf(synthesizeSystemPromptTemplate, strings.Join(blockexec.AllowedModules(), ", "))

	specJSON, err := json.Marshal(spec)
	if err != nil {
		return nil, err
	}
	user := "Required block spec:\n" + string(specJSON)
	if previousErr != nil {
		user += "\n\nYour previous attempt was rejected: " + previousErr.Error() + "\nFix it and respond again with ONLY the corrected JSON object."
	}

	started := time.Now()
	raw, promptTokens, completionTokens, err := t.messenger.CreateMessage(ctx, system, user)
	t.emitLLMExchange(sink, userID, system, user, started, raw, promptTokens, completionTokens, err)
	if err != nil {
		return nil, err
	}

	candidate, err := extractJSONObject(raw)
	if err != nil {
		return nil, err
	}
	var def domain.BlockDefinition
	if err := json.Unmarshal([]byte(candidate), &def); err != nil {
		return nil, err
	}
	if def.ID == "" {
		def.ID = spec.SuggestedID
	}
	if !def.Category.IsValid() {
		def.Category = domain.CategoryProcess
	}
	return &def, nil
}

// generateTestInputs synthesizes sample inputs for the Stage C step 3
// sample test (§4.5): a declared default wins, a required field with no
// default gets a minimal example value for its type, optional fields
// without defaults are left absent.
func generateTestInputs(schema domain.Schema) map[string]any {
	out := make(map[string]any, len(schema))
	for name, field := range schema {
		switch {
		case field.Default != nil:
			out[name] = field.Default
		case field.Required:
			out[name] = sampleValueForType(field.Type)
		}
	}
	return out
}

func sampleValueForType(t domain.SchemaType) any {
	switch t {
	case domain.SchemaTypeString:
		return "example"
	case domain.SchemaTypeNumber, domain.SchemaTypeInteger:
		return 0
	case domain.SchemaTypeBoolean:
		return false
	case domain.SchemaTypeArray:
		return []any{}
	case domain.SchemaTypeObject:
		return map[string]any{}
	default:
		return "example"
	}
}
