package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validBlock() *BlockDefinition {
	return &BlockDefinition{
		ID:             "summarize_text",
		Name:           "Summarize Text",
		Description:    "Summarizes a block of text",
		UseWhen:        "use when the user wants a shorter version of long text",
		Tags:           []string{"text", "summary"},
		Category:       CategoryProcess,
		ExecutionKind:  ExecutionKindLLM,
		InputSchema:    Schema{"text": {Type: SchemaTypeString, Required: true}},
		OutputSchema:   Schema{"summary": {Type: SchemaTypeString, Required: true}},
		PromptTemplate: "Summarize the following text: {text}",
	}
}

func TestBlockDefinition_Validate_OK(t *testing.T) {
	b := validBlock()
	assert.NoError(t, b.Validate())
}

func TestBlockDefinition_Validate_RejectsUnknownPromptSlot(t *testing.T) {
	b := validBlock()
	b.PromptTemplate = "Summarize {text} in the style of {tone}"
	err := b.Validate()
	require.Error(t, err)
	var de *DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, ErrCodeInvalidInput, de.Code)
}

func TestBlockDefinition_Validate_RejectsReservedExecutionKind(t *testing.T) {
	b := validBlock()
	b.ExecutionKind = ExecutionKindMCP
	err := b.Validate()
	require.Error(t, err)
	var de *DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, ErrCodeNotImplemented, de.Code)
}

func TestBlockDefinition_Validate_CodeRequiresSource(t *testing.T) {
	b := validBlock()
	b.ExecutionKind = ExecutionKindCode
	b.PromptTemplate = ""
	err := b.Validate()
	require.Error(t, err)
}

func TestBlockDefinition_SameSemanticFields(t *testing.T) {
	a := validBlock()
	b := validBlock()
	assert.True(t, a.SameSemanticFields(b))

	b.Description = "Something else entirely"
	assert.False(t, a.SameSemanticFields(b))
}

func TestBlockDefinition_VersionChanges_OnSchemaChange(t *testing.T) {
	a := validBlock()
	b := validBlock()
	assert.False(t, a.VersionChanges(b))

	b.OutputSchema = Schema{"summary": {Type: SchemaTypeString, Required: false}}
	assert.True(t, a.VersionChanges(b))
}

func TestBlockDefinition_SemanticKey_ExcludesSchemas(t *testing.T) {
	a := validBlock()
	b := validBlock()
	b.InputSchema = Schema{"different": {Type: SchemaTypeNumber}}
	assert.Equal(t, a.SemanticKey(), b.SemanticKey())
}
