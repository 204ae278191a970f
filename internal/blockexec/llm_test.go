package blockexec

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/solace-automations/intentflow/internal/domain"
)

func TestRenderPromptTemplate_SubstitutesKnownSlots(t *testing.T) {
	out := renderPromptTemplate("Summarize {topic} in {tone} tone.", map[string]any{
		"topic": "distributed systems",
		"tone":  "casual",
	})
	assert.Equal(t, "Summarize distributed systems in casual tone.", out)
}

func TestRenderPromptTemplate_MissingSlotRendersEmpty(t *testing.T) {
	out := renderPromptTemplate("Hello {name}!", map[string]any{})
	assert.Equal(t, "Hello !", out)
}

func TestRenderPromptTemplate_NonStringValueMarshalsJSON(t *testing.T) {
	out := renderPromptTemplate("Items: {items}", map[string]any{
		"items": []any{1.0, 2.0},
	})
	assert.Equal(t, "Items: [1,2]", out)
}

func TestExtractJSONObject_PlainObject(t *testing.T) {
	out, err := extractJSONObject(`{"summary": "hello"}`)
	assert.NoError(t, err)
	assert.Equal(t, "hello", out["summary"])
}

func TestExtractJSONObject_IgnoresSurroundingProse(t *testing.T) {
	out, err := extractJSONObject("Sure, here is the result:\n```json\n{\"a\": 1}\n```\nHope that helps.")
	assert.NoError(t, err)
	assert.Equal(t, 1.0, out["a"])
}

func TestExtractJSONObject_BracesInsideStringDontConfuseDepth(t *testing.T) {
	out, err := extractJSONObject(`{"note": "contains { and } inside a string"}`)
	assert.NoError(t, err)
	assert.Equal(t, "contains { and } inside a string", out["note"])
}

func TestExtractJSONObject_NoObjectIsError(t *testing.T) {
	_, err := extractJSONObject("no json here")
	assert.Error(t, err)
}

func TestExtractJSONObject_UnbalancedIsError(t *testing.T) {
	_, err := extractJSONObject(`{"a": 1`)
	assert.Error(t, err)
}

func TestSystemMessageForBlock_IncludesNameDescriptionAndSchema(t *testing.T) {
	block := &domain.BlockDefinition{
		Name:        "summarize_text",
		Description: "Summarizes input text",
		OutputSchema: domain.Schema{
			"summary": {Type: domain.SchemaTypeString, Required: true},
		},
	}
	msg := systemMessageForBlock(block)
	assert.Contains(t, msg, "summarize_text")
	assert.Contains(t, msg, "Summarizes input text")
	assert.Contains(t, msg, "summary")
	assert.Contains(t, msg, "ONLY a valid JSON object")
}
