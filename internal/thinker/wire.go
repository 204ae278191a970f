package thinker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/solace-automations/intentflow/internal/domain"
	"github.com/solace-automations/intentflow/internal/eventbus"
	"github.com/solace-automations/intentflow/internal/template"
)

const wireSystemPromptHeader = `You wire a PipelineDAG from the blocks listed below. Respond with ONLY a JSON ` +
	`object: {"name": string, "nodes": [{"id": "n1", "block_id": string, "inputs": object}], "edges": ` +
	`[{"from": "n1", "to": "n2"}]}. Node ids must be sequential: n1, n2, n3, ... Rules: (a) the first ` +
	`node(s) — those with no incoming edge — must take only literal values in inputs, never a template ` +
	`reference; (b) every other node's inputs that depend on a prior step must use a "{{node_id.field}}" ` +
	`or "{{memory.key}}" or "{{user.key}}" template reference, where node_id is a node that is an explicit ` +
	`predecessor (an edge from it must be present); (c) a referenced field's type must be compatible with ` +
	`the target input's declared type (strings accept anything, numbers/integers interchange, objects must ` +
	`match shape). Available blocks (id: description -- input_schema -> output_schema):` + "\n"

// wire runs Stage D (§4.5): one LLM call producing a PipelineDAG wired over
// the matched+synthesized blocks, validated and retried once on failure.
func (t *Thinker) wire(ctx context.Context, refinedIntent string, matched map[string]*domain.BlockDefinition, userID string, sink eventbus.Sink) (*domain.PipelineDAG, error) {
	blocksByID := make(map[string]*domain.BlockDefinition, len(matched))
	for _, def := range matched {
		blocksByID[def.ID] = def
	}

	system := buildWireSystemPrompt(blocksByID)
	user := refinedIntent
	var lastErr error

	for attempt := 0; attempt <= t.config.WireRetries; attempt++ {
		if lastErr != nil {
			user = refinedIntent + "\n\nThe previous DAG was rejected: " + lastErr.Error() +
				"\nRespond again with ONLY a corrected JSON object."
		}

		started := time.Now()
		raw, promptTokens, completionTokens, err := t.messenger.CreateMessage(ctx, system, user)
		t.emitLLMExchange(sink, userID, system, user, started, raw, promptTokens, completionTokens, err)
		if err != nil {
			lastErr = err
			continue
		}

		pipeline, err := parseWireOutput(raw, refinedIntent)
		if err != nil {
			lastErr = err
			continue
		}

		if err := validateWire(pipeline, blocksByID); err != nil {
			lastErr = err
			continue
		}

		return pipeline, nil
	}

	return nil, domain.WireError("wire stage failed after retry", lastErr)
}

func buildWireSystemPrompt(blocksByID map[string]*domain.BlockDefinition) string {
	var sb strings.Builder
	sb.WriteString(wireSystemPromptHeader)
	for id, def := range blocksByID {
		inputJSON, _ := json.Marshal(def.InputSchema)
		outputJSON, _ := json.Marshal(def.OutputSchema)
		fmt.Fprintf(&sb, "- %s: %s -- %s -> %s\n", id, def.Description, inputJSON, outputJSON)
	}
	return sb.String()
}

func parseWireOutput(raw, refinedIntent string) (*domain.PipelineDAG, error) {
	candidate, err := extractJSONObject(raw)
	if err != nil {
		return nil, err
	}
	var out struct {
		Name  string                `json:"name"`
		Nodes []domain.PipelineNode `json:"nodes"`
		Edges []domain.PipelineEdge `json:"edges"`
	}
	if err := json.Unmarshal([]byte(candidate), &out); err != nil {
		return nil, err
	}
	return &domain.PipelineDAG{
		ID:         uuid.New().String(),
		Name:       out.Name,
		UserPrompt: refinedIntent,
		Nodes:      out.Nodes,
		Edges:      out.Edges,
	}, nil
}

// validateWire enforces the Wire validator's checks (§4.5 Stage D): the DAG
// is structurally valid (domain.PipelineDAG.Validate), every block_id
// resolves, entry nodes carry only literal inputs, every other reference
// names a declared predecessor (or memory/user), and referenced/target
// field types are compatible.
func validateWire(pipeline *domain.PipelineDAG, blocksByID map[string]*domain.BlockDefinition) error {
	if err := pipeline.Validate(); err != nil {
		return err
	}

	levels, err := pipeline.TopologicalLevels()
	if err != nil {
		return err
	}
	entrySet := make(map[string]bool, len(levels[0]))
	for _, id := range levels[0] {
		entrySet[id] = true
	}

	predecessors := make(map[string]map[string]bool, len(pipeline.Nodes))
	for _, e := range pipeline.Edges {
		if predecessors[e.To] == nil {
			predecessors[e.To] = make(map[string]bool)
		}
		predecessors[e.To][e.From] = true
	}

	nodeBlock := make(map[string]*domain.BlockDefinition, len(pipeline.Nodes))
	for _, n := range pipeline.Nodes {
		block, ok := blocksByID[n.BlockID]
		if !ok {
			return fmt.Errorf("node %q references unknown block_id %q", n.ID, n.BlockID)
		}
		nodeBlock[n.ID] = block
	}

	for _, n := range pipeline.Nodes {
		block := nodeBlock[n.ID]
		for inputName, v := range n.Inputs {
			s, ok := v.(string)
			if !ok {
				continue
			}
			refs := template.References(s)
			if len(refs) == 0 {
				continue
			}
			if entrySet[n.ID] {
				return fmt.Errorf("entry node %q has a template reference in input %q; entry nodes take literal inputs", n.ID, inputName)
			}
			for _, ref := range refs {
				if err := validateReference(n.ID, inputName, ref, block, nodeBlock, predecessors); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func validateReference(nodeID, inputName, ref string, targetBlock *domain.BlockDefinition, nodeBlock map[string]*domain.BlockDefinition, predecessors map[string]map[string]bool) error {
	parts := strings.SplitN(ref, ".", 2)
	namespace := parts[0]
	if namespace == template.NamespaceMemory || namespace == template.NamespaceUser {
		return nil
	}

	if !predecessors[nodeID][namespace] {
		return fmt.Errorf("node %q input %q references %q, which is not a declared predecessor", nodeID, inputName, namespace)
	}
	producer, ok := nodeBlock[namespace]
	if !ok {
		return fmt.Errorf("node %q input %q references unknown node %q", nodeID, inputName, namespace)
	}
	if len(parts) < 2 {
		return nil
	}
	field := strings.SplitN(parts[1], ".", 2)[0]
	producerField, ok := producer.OutputSchema[field]
	if !ok {
		return nil // unknown field shape; resolver will null it out at run time, not a wire-time error
	}
	targetField, ok := targetBlock.InputSchema[inputName]
	if !ok {
		return nil
	}
	if !typesCompatible(producerField.Type, targetField.Type) {
		return fmt.Errorf("node %q input %q: %s output %q (%s) incompatible with declared type %s",
			nodeID, inputName, namespace, field, producerField.Type, targetField.Type)
	}
	return nil
}

func typesCompatible(producer, target domain.SchemaType) bool {
	if producer == target {
		return true
	}
	if target == domain.SchemaTypeString {
		return true
	}
	numeric := func(t domain.SchemaType) bool { return t == domain.SchemaTypeNumber || t == domain.SchemaTypeInteger }
	return numeric(producer) && numeric(target)
}
