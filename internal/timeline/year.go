package timeline

import (
	"math"
	"strconv"
	"strings"
)

// ParseYear converts a raw date value into a signed year (negative = BCE).
// Missing or unparseable input returns ok=false rather than an error.
//
// Numbers pass through unchanged. Strings that parse as a number do too;
// anything else is reduced to its digits and sign characters and negated
// when it mentions "bce", so "500 BCE" is -500 and "500 CE" is 500.
func ParseYear(v interface{}) (year float64, ok bool) {
	switch x := v.(type) {
	case nil:
		return 0, false
	case float64:
		return x, !math.IsNaN(x)
	case float32:
		return float64(x), !math.IsNaN(float64(x))
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	case string:
		return parseYearString(x)
	case *string:
		if x == nil {
			return 0, false
		}
		return parseYearString(*x)
	default:
		return 0, false
	}
}

func parseYearString(s string) (float64, bool) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, false
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return f, !math.IsNaN(f)
	}

	lower := strings.ToLower(trimmed)
	var digits strings.Builder
	for _, ch := range lower {
		if (ch >= '0' && ch <= '9') || ch == '+' || ch == '-' {
			digits.WriteRune(ch)
		}
	}
	if digits.Len() == 0 {
		return 0, false
	}
	val, err := strconv.ParseFloat(digits.String(), 64)
	if err != nil {
		// ranges such as "500-300 BCE" leave "500-300"
		return 0, false
	}
	if strings.Contains(lower, "bce") {
		return -math.Abs(val), true
	}
	return val, true
}
