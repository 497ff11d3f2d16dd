package registry

import (
	"fmt"

	"github.com/sidepanelai/agentcore/pkg/models"
)

// validateInput checks value against schema. It is deliberately narrow: it
// understands type (or a list of types), required, maxLength on strings,
// and nested object properties — nothing more. "integer" accepts any
// numeric value with no fractional part.
func validateInput(schema *models.InputSchema, value any, path string) error {
	if schema == nil {
		return nil
	}

	if types := schema.Types(); len(types) > 0 {
		if !matchesAnyType(types, value) {
			return fmt.Errorf("%s: expected type %v, got %T", path, types, value)
		}
	}

	switch v := value.(type) {
	case string:
		if schema.MaxLength > 0 && len(v) > schema.MaxLength {
			return fmt.Errorf("%s: exceeds maxLength %d", path, schema.MaxLength)
		}
	case map[string]any:
		for _, req := range schema.Required {
			if _, ok := v[req]; !ok {
				return fmt.Errorf("%s: missing required property %q", path, req)
			}
		}
		for key, propSchema := range schema.Properties {
			propVal, ok := v[key]
			if !ok {
				continue
			}
			if err := validateInput(propSchema, propVal, path+"."+key); err != nil {
				return err
			}
		}
	}
	return nil
}

func matchesAnyType(types []models.SchemaType, value any) bool {
	for _, t := range types {
		if matchesType(t, value) {
			return true
		}
	}
	return false
}

func matchesType(t models.SchemaType, value any) bool {
	switch t {
	case models.SchemaString:
		_, ok := value.(string)
		return ok
	case models.SchemaBoolean:
		_, ok := value.(bool)
		return ok
	case models.SchemaNumber:
		return isNumber(value)
	case models.SchemaInteger:
		return isInteger(value)
	case models.SchemaArray:
		_, ok := value.([]any)
		return ok
	case models.SchemaObject:
		_, ok := value.(map[string]any)
		return ok
	case models.SchemaNull:
		return value == nil
	default:
		return true
	}
}

func isNumber(value any) bool {
	switch value.(type) {
	case float64, float32, int, int32, int64, uint, uint32, uint64:
		return true
	default:
		return false
	}
}

// isInteger accepts any numeric value with no fractional part (JSON decodes
// all numbers as float64, so 3.0 must count as an integer).
func isInteger(value any) bool {
	switch v := value.(type) {
	case int, int32, int64, uint, uint32, uint64:
		return true
	case float64:
		return v == float64(int64(v))
	case float32:
		return v == float32(int64(v))
	default:
		return false
	}
}
