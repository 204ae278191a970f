package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// SchemaField describes one field of an input_schema/output_schema object
// (§3.1). Schemas are JSON-Schema-shaped but intentionally shallow — the
// engine only needs type, required-ness, and a default, never full
// JSON-Schema validation (allOf/anyOf/refs are out of scope).
type SchemaField struct {
	Type     SchemaType `json:"type"`
	Required bool       `json:"required,omitempty"`
	Default  any        `json:"default,omitempty"`
	// Items describes the element type when Type == array; nil otherwise.
	Items *SchemaField `json:"items,omitempty"`
	// Properties describes nested fields when Type == object; nil otherwise.
	Properties map[string]SchemaField `json:"properties,omitempty"`
}

// Schema is a named set of SchemaFields — the shape of a block's inputs or
// outputs.
type Schema map[string]SchemaField

// RequiredFields returns the names of fields marked required, in no
// particular order.
func (s Schema) RequiredFields() []string {
	out := make([]string, 0, len(s))
	for name, f := range s {
		if f.Required {
			out = append(out, name)
		}
	}
	return out
}

// BlockDefinition is a reusable, versioned unit of work (§3.1).
type BlockDefinition struct {
	ID          string   `json:"id"`
	Version     int      `json:"version"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	UseWhen     string   `json:"use_when"`
	Tags        []string `json:"tags"`
	Category    Category `json:"category"`

	ExecutionKind ExecutionKind `json:"execution_kind"`
	InputSchema   Schema        `json:"input_schema"`
	OutputSchema  Schema        `json:"output_schema"`

	// PromptTemplate is populated for ExecutionKindLLM: text with
	// {placeholder} slots matching input_schema names.
	PromptTemplate string `json:"prompt_template,omitempty"`

	// Source is populated for ExecutionKindCode: the entrypoint source,
	// defining entrypoint(inputs, context) -> object.
	Source string `json:"source,omitempty"`

	// Embedding is assigned by the registry on save, derived only from
	// Description + UseWhen + Tags (never from schemas).
	Embedding []float32 `json:"embedding,omitempty"`

	Metadata map[string]any `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

var placeholderRe = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// Validate checks the structural invariants spec.md §3.1 attaches to a
// BlockDefinition: id present, a recognized category, an execution kind the
// executor can dispatch, and (for llm blocks) a prompt_template that only
// references names present in input_schema.
func (b *BlockDefinition) Validate() error {
	if b.ID == "" {
		return NewDomainError(ErrCodeInvalidInput, "block id is required", nil)
	}
	if !b.Category.IsValid() {
		return NewDomainError(ErrCodeInvalidInput, fmt.Sprintf("block %q: invalid category %q", b.ID, b.Category), nil)
	}
	if !b.ExecutionKind.IsValid() {
		return NewDomainError(ErrCodeInvalidInput, fmt.Sprintf("block %q: invalid execution_kind %q", b.ID, b.ExecutionKind), nil)
	}
	if !b.ExecutionKind.Implemented() {
		return NewDomainError(ErrCodeNotImplemented, fmt.Sprintf("execution_kind %q is reserved, not implemented", b.ExecutionKind), nil)
	}

	switch b.ExecutionKind {
	case ExecutionKindLLM:
		if strings.TrimSpace(b.PromptTemplate) == "" {
			return NewDomainError(ErrCodeInvalidInput, fmt.Sprintf("block %q: llm blocks require prompt_template", b.ID), nil)
		}
		if err := b.validatePromptSlots(); err != nil {
			return err
		}
	case ExecutionKindCode:
		if strings.TrimSpace(b.Source) == "" {
			return NewDomainError(ErrCodeInvalidInput, fmt.Sprintf("block %q: code blocks require source", b.ID), nil)
		}
	}
	return nil
}

// validatePromptSlots enforces "an llm definition's prompt_template must
// reference only names from its input_schema" (§3.1 invariant).
func (b *BlockDefinition) validatePromptSlots() error {
	for _, m := range placeholderRe.FindAllStringSubmatch(b.PromptTemplate, -1) {
		name := m[1]
		if _, ok := b.InputSchema[name]; !ok {
			return NewDomainError(ErrCodeInvalidInput,
				fmt.Sprintf("block %q: prompt_template references unknown input %q", b.ID, name), nil)
		}
	}
	return nil
}

// SemanticKey returns the text the registry embeds — derived only from
// description + use_when + tags, per the §3.1 invariant that embeddings
// never incorporate schemas.
func (b *BlockDefinition) SemanticKey() string {
	var sb strings.Builder
	sb.WriteString(b.Description)
	sb.WriteString("\n")
	sb.WriteString(b.UseWhen)
	sb.WriteString("\n")
	sb.WriteString(strings.Join(b.Tags, " "))
	return sb.String()
}

// SameSemanticFields reports whether b and other share the same
// description/use_when/tags — used by the registry to decide whether a
// save is a reword (in-place, refresh embedding) or a schema/kind change
// (new version row). See DESIGN.md, Open Question (c).
func (b *BlockDefinition) SameSemanticFields(other *BlockDefinition) bool {
	if b.Description != other.Description || b.UseWhen != other.UseWhen {
		return false
	}
	if len(b.Tags) != len(other.Tags) {
		return false
	}
	for i := range b.Tags {
		if b.Tags[i] != other.Tags[i] {
			return false
		}
	}
	return true
}

// VersionChanges reports whether the execution shape changed between b and
// other (schema or kind) — these require a new version row rather than an
// in-place update (Open Question (c): immutable-on-update).
func (b *BlockDefinition) VersionChanges(other *BlockDefinition) bool {
	if b.ExecutionKind != other.ExecutionKind {
		return true
	}
	if !schemaEqual(b.InputSchema, other.InputSchema) || !schemaEqual(b.OutputSchema, other.OutputSchema) {
		return true
	}
	return false
}

func schemaEqual(a, b Schema) bool {
	if len(a) != len(b) {
		return false
	}
	for name, fa := range a {
		fb, ok := b[name]
		if !ok || fa.Type != fb.Type || fa.Required != fb.Required {
			return false
		}
	}
	return true
}
