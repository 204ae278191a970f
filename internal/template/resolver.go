// Package template implements the Template Resolver (spec §4.1): it rewrites
// {{namespace.dotted.path}} references in a node's inputs against live
// values from a run state, preserving the type of whole-string references
// and stringifying mixed interpolation. It is deliberately not built on
// expr-lang (see DESIGN.md) — expr's compile/eval model errors on an unknown
// identifier rather than returning nil, and always yields a single scalar
// result, neither of which fits the whole-string type-preservation and
// null-on-missing semantics this component must implement exactly.
package template

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Namespace values resolvable by a reference's leading path segment.
const (
	NamespaceMemory = "memory"
	NamespaceUser   = "user"
)

// refPattern matches {{<namespace>.<dotted.path>}}. The namespace segment
// is either "memory", "user", or a node id (n1, n2, ...); everything after
// the first dot is the dotted path into that namespace's value.
var refPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_]*(?:\.[a-zA-Z0-9_]+)*)\s*\}\}`)

// Lookup resolves a namespace to its backing value tree: node results by id,
// "memory" to run memory, "user" to the run's static user profile. Returning
// (nil, false) means the namespace itself is unknown; Resolve treats an
// unknown namespace the same as a path miss inside a known one — both
// surface as a missing reference (§4.1: "the resolver never fails on
// missing").
type Lookup func(namespace string) (any, bool)

// NewRunLookup builds a Lookup backed by a run's results/memory/user maps —
// the concrete binding the Doer uses at each node (§4.4 step 5: "resolve
// templates").
func NewRunLookup(results map[string]any, memory map[string]any, user map[string]any) Lookup {
	return func(namespace string) (any, bool) {
		switch namespace {
		case NamespaceMemory:
			return memory, true
		case NamespaceUser:
			return user, true
		default:
			v, ok := results[namespace]
			return v, ok
		}
	}
}

// Resolve rewrites every string value in inputs according to §4.1 and
// returns a new map; inputs is never mutated. Non-string values pass
// through untouched. Resolve performs no I/O and cannot fail — it is pure,
// per §5 ("Template resolution is pure (non-suspending) and must not call
// I/O").
func Resolve(inputs map[string]any, lookup Lookup) map[string]any {
	out := make(map[string]any, len(inputs))
	for k, v := range inputs {
		out[k] = resolveValue(v, lookup)
	}
	return out
}

func resolveValue(v any, lookup Lookup) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	return resolveString(s, lookup)
}

// resolveString implements the whole-string-vs-mixed-interpolation split.
func resolveString(s string, lookup Lookup) any {
	if m := wholeStringRef(s); m != "" {
		val, found := lookupRef(m, lookup)
		if !found {
			return nil
		}
		return val
	}

	return refPattern.ReplaceAllStringFunc(s, func(match string) string {
		sub := refPattern.FindStringSubmatch(match)
		ref := sub[1]
		val, found := lookupRef(ref, lookup)
		if !found {
			return ""
		}
		return stringify(val)
	})
}

// wholeStringRef returns the reference path when s is exactly one
// {{...}} template with no surrounding text, or "" otherwise.
func wholeStringRef(s string) string {
	trimmed := strings.TrimSpace(s)
	m := refPattern.FindStringSubmatch(trimmed)
	if m == nil || m[0] != trimmed {
		return ""
	}
	return m[1]
}

// References extracts every {{namespace.dotted.path}} reference contained
// in s, in order of appearance, without resolving them against any value
// tree. The Thinker's Wire stage uses this to structurally validate a
// synthesized DAG (every reference points at a real predecessor output or
// memory/user) before any RunState exists to resolve against.
func References(s string) []string {
	matches := refPattern.FindAllStringSubmatch(s, -1)
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m[1]
	}
	return out
}

// lookupRef resolves "namespace.dotted.path" against lookup, walking
// objects by key and arrays by integer index.
func lookupRef(ref string, lookup Lookup) (any, bool) {
	parts := strings.Split(ref, ".")
	root, ok := lookup(parts[0])
	if !ok {
		return nil, false
	}
	if len(parts) == 1 {
		return root, true
	}
	return walkPath(root, parts[1:])
}

func walkPath(v any, path []string) (any, bool) {
	current := v
	for _, seg := range path {
		switch typed := current.(type) {
		case map[string]any:
			next, ok := typed[seg]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(typed) {
				return nil, false
			}
			current = typed[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

// stringify implements the mixed-interpolation coercion rule: primitives
// render as their textual form, objects/arrays as compact JSON.
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	default:
		return fmt.Sprint(t)
	}
}
