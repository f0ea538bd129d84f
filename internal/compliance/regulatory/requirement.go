package regulatory

import (
	"fmt"
	"strconv"
	"strings"
)

// requirementMet evaluates one "field:condition" expression against
// content. Malformed expressions and unknown conditions are treated as
// unmet: evaluation degrades to non-compliant instead of erroring.
func requirementMet(requirement string, content map[string]any) bool {
	parts := strings.Split(requirement, ":")
	if len(parts) != 2 {
		return false
	}
	field, condition := parts[0], parts[1]

	value, ok := content[field]
	if !ok || value == nil {
		return false
	}

	switch {
	case strings.HasPrefix(condition, "min_length="):
		n, err := strconv.Atoi(strings.TrimPrefix(condition, "min_length="))
		if err != nil {
			return false
		}
		return len(stringify(value)) >= n

	case strings.HasPrefix(condition, "max_length="):
		n, err := strconv.Atoi(strings.TrimPrefix(condition, "max_length="))
		if err != nil {
			return false
		}
		return len(stringify(value)) <= n

	case strings.HasPrefix(condition, "contains="):
		return strings.Contains(stringify(value), strings.TrimPrefix(condition, "contains="))

	case strings.HasPrefix(condition, "not_contains="):
		return !strings.Contains(stringify(value), strings.TrimPrefix(condition, "not_contains="))

	case condition == "required":
		return truthy(value)
	}
	return false
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// truthy mirrors the loose presence semantics of the "required"
// condition: empty strings, false, zero numbers, and empty collections
// do not satisfy it.
func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case int:
		return val != 0
	case int64:
		return val != 0
	case float64:
		return val != 0
	case []any:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	default:
		return true
	}
}
