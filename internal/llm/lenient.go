package llm

import (
	"math"
	"strconv"
	"strings"
)

var (
	personalKeys = []string{"name", "age", "weight", "height", "location", "test_date"}
	resultKeys   = []string{"test_name", "value", "unit", "normal_range"}
	errorKeys    = []string{"error", "description"}
)

// coerceNumber returns a float64 for numbers and numeric strings, nil for null-ish input.
// ok is false when the input is text that is not a number.
func coerceNumber(v any) (any, bool) {
	switch t := v.(type) {
	case nil:
		return nil, true
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil, false
		}
		return t, true
	case string:
		s := strings.TrimSpace(t)
		if s == "" || strings.EqualFold(s, "null") || strings.EqualFold(s, "n/a") {
			return nil, true
		}
		if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
			s = strings.Replace(s, ",", ".", 1)
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, false
		}
		return f, true
	default:
		return nil, false
	}
}

// optionalString trims strings and turns empty or non-string values into null.
func optionalString(v any) any {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") {
		return nil
	}
	return s
}

// requiredString trims strings and turns anything else into "".
func requiredString(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

// keepKeys deletes keys not in allowed and adds missing ones as null.
func keepKeys(m map[string]any, allowed []string, prefix string, dropped *[]string) {
	set := make(map[string]struct{}, len(allowed))
	for _, k := range allowed {
		set[k] = struct{}{}
		if _, ok := m[k]; !ok {
			m[k] = nil
		}
	}
	for k := range m {
		if _, ok := set[k]; !ok {
			delete(m, k)
			*dropped = append(*dropped, prefix+k+"(unknown)")
		}
	}
}
