package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve_WholeStringPreservesType(t *testing.T) {
	lookup := NewRunLookup(map[string]any{
		"n1": map[string]any{"items": []any{map[string]any{"a": 1.0}, map[string]any{"a": 2.0}}},
	}, nil, nil)

	out := Resolve(map[string]any{"data": "{{n1.items}}"}, lookup)

	list, ok := out["data"].([]any)
	assert.True(t, ok, "expected whole-string reference to preserve list type")
	assert.Len(t, list, 2)
}

func TestResolve_MixedInterpolationSubstitutesString(t *testing.T) {
	lookup := NewRunLookup(map[string]any{
		"n1": map[string]any{"topic": "golang"},
	}, nil, nil)

	out := Resolve(map[string]any{"query": "Search for {{n1.topic}}"}, lookup)
	assert.Equal(t, "Search for golang", out["query"])
}

func TestResolve_MixedInterpolationStringifiesCompactJSON(t *testing.T) {
	lookup := NewRunLookup(map[string]any{
		"n1": map[string]any{"obj": map[string]any{"a": 1.0}},
	}, nil, nil)

	out := Resolve(map[string]any{"msg": "payload: {{n1.obj}}"}, lookup)
	assert.Equal(t, `payload: {"a":1}`, out["msg"])
}

func TestResolve_MissingReference_WholeStringIsNull(t *testing.T) {
	lookup := NewRunLookup(map[string]any{}, nil, nil)
	out := Resolve(map[string]any{"data": "{{n1.results}}"}, lookup)
	assert.Nil(t, out["data"])
}

func TestResolve_MissingReference_MixedIsEmptyString(t *testing.T) {
	lookup := NewRunLookup(map[string]any{}, nil, nil)
	out := Resolve(map[string]any{"msg": "value is {{n1.missing}}"}, lookup)
	assert.Equal(t, "value is ", out["msg"])
}

func TestResolve_NonStringPassesThrough(t *testing.T) {
	lookup := NewRunLookup(nil, nil, nil)
	out := Resolve(map[string]any{"count": 5, "flag": true, "list": []any{1, 2}}, lookup)
	assert.Equal(t, 5, out["count"])
	assert.Equal(t, true, out["flag"])
	assert.Equal(t, []any{1, 2}, out["list"])
}

func TestResolve_IdentityWhenNoTemplates(t *testing.T) {
	lookup := NewRunLookup(nil, nil, nil)
	in := map[string]any{"a": "plain text", "b": 3}
	out := Resolve(in, lookup)
	assert.Equal(t, in, out)
}

func TestResolve_MemoryAndUserNamespaces(t *testing.T) {
	lookup := NewRunLookup(nil, map[string]any{"city": "Berlin"}, map[string]any{"name": "Alex"})

	out := Resolve(map[string]any{
		"city": "{{memory.city}}",
		"name": "Hello {{user.name}}",
	}, lookup)

	assert.Equal(t, "Berlin", out["city"])
	assert.Equal(t, "Hello Alex", out["name"])
}

func TestResolve_ArrayIndexTraversal(t *testing.T) {
	lookup := NewRunLookup(map[string]any{
		"n1": map[string]any{"results": []any{
			map[string]any{"title": "first"},
			map[string]any{"title": "second"},
		}},
	}, nil, nil)

	out := Resolve(map[string]any{"title": "{{n1.results.0.title}}"}, lookup)
	assert.Equal(t, "first", out["title"])
}

func TestResolve_DoesNotMutateInput(t *testing.T) {
	lookup := NewRunLookup(map[string]any{"n1": map[string]any{"x": "y"}}, nil, nil)
	in := map[string]any{"ref": "{{n1.x}}"}
	_ = Resolve(in, lookup)
	assert.Equal(t, "{{n1.x}}", in["ref"])
}
