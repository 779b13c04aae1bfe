package bus

import "fmt"

// sanitizeMap normalizes event data so only JSON-safe values cross the bus.
// Strings, numbers, booleans and nil pass through; sequences and mappings are
// sanitized recursively; anything else (errors, external library types,
// structs) is coerced to its string representation. The coercion is a
// serialization-safety invariant: an opaque type must never reach the wire
// encoder.
func sanitizeMap(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	clean := make(map[string]any, len(data))
	for k, v := range data {
		clean[k] = sanitizeValue(v)
	}
	return clean
}

func sanitizeValue(v any) any {
	switch val := v.(type) {
	case nil, string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return val
	case map[string]any:
		return sanitizeMap(val)
	case []any:
		clean := make([]any, len(val))
		for i, item := range val {
			clean[i] = sanitizeValue(item)
		}
		return clean
	case []string:
		return val
	case fmt.Stringer:
		return val.String()
	case error:
		return val.Error()
	default:
		return fmt.Sprintf("%v", val)
	}
}
