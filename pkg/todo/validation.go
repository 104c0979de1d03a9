package todo

import (
	"math"
	"strings"
)

// IsValidText reports whether v is a string with non-whitespace content.
// Any non-string value, nil included, is invalid.
func IsValidText(v interface{}) bool {
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) != ""
}

// Truthy coerces an arbitrary decoded JSON value to a boolean.
// false, nil, 0, NaN and "" are false; everything else, including empty
// arrays and objects, is true.
func Truthy(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case float64:
		return x != 0 && !math.IsNaN(x)
	case float32:
		return x != 0 && !math.IsNaN(float64(x))
	case int:
		return x != 0
	case int64:
		return x != 0
	default:
		return true
	}
}
