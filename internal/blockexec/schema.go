package blockexec

import (
	"fmt"

	"github.com/solace-automations/intentflow/internal/domain"
)

// ApplyDefaults fills in missing input fields from schema's declared
// defaults (§4.3 LLM step 1 "Apply defaults from input_schema"), returning a
// new map — inputs is never mutated.
func ApplyDefaults(schema domain.Schema, inputs map[string]any) map[string]any {
	out := make(map[string]any, len(inputs))
	for k, v := range inputs {
		out[k] = v
	}
	for name, field := range schema {
		if _, present := out[name]; !present && field.Default != nil {
			out[name] = field.Default
		}
	}
	return out
}

// ValidateInputs checks that every required field of schema is present in
// inputs, raising BlockInputError naming the missing field and block.
func ValidateInputs(blockID, nodeID string, schema domain.Schema, inputs map[string]any) error {
	for _, name := range schema.RequiredFields() {
		if _, ok := inputs[name]; !ok {
			return domain.BlockInputError(blockID, nodeID, name, nil)
		}
	}
	return nil
}

// ValidateOutput checks output against schema: every required field present
// and type-compatible. Compatibility is permissive only between numbers and
// integers (either accepts float64, float32, int or int64) since schemas here
// describe shape, not strict wire format (§3.1's "shallow" schema intent);
// a field typed string must be a string, a field typed object/array must
// actually be a map/slice, and a missing required field is always an error.
func ValidateOutput(blockID, nodeID string, schema domain.Schema, output map[string]any) error {
	for name, field := range schema {
		v, present := output[name]
		if !present {
			if field.Required {
				return domain.BlockOutputError(blockID, nodeID, fmt.Sprintf("missing required output %q", name), nil)
			}
			continue
		}
		if !typeCompatible(field.Type, v) {
			return domain.BlockOutputError(blockID, nodeID, fmt.Sprintf("output %q: expected %s, got %T", name, field.Type, v), nil)
		}
	}
	return nil
}

func typeCompatible(t domain.SchemaType, v any) bool {
	switch t {
	case domain.SchemaTypeString:
		_, ok := v.(string)
		return ok
	case domain.SchemaTypeNumber, domain.SchemaTypeInteger:
		switch v.(type) {
		case float64, float32, int, int64:
			return true
		default:
			return false
		}
	case domain.SchemaTypeBoolean:
		_, ok := v.(bool)
		return ok
	case domain.SchemaTypeArray:
		_, ok := v.([]any)
		return ok
	case domain.SchemaTypeObject:
		_, ok := v.(map[string]any)
		return ok
	default:
		return true
	}
}
