package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
)

// SanitizeReportJSON makes a model answer fit the report schema without inventing data:
//   - null arrays become empty arrays
//   - numeric strings become numbers for age/weight/height/value
//   - age/weight/height that are not numbers become null with an error entry
//   - empty optional strings become null
//   - a reading whose value is text that is not a number is moved to errors
//   - unknown keys are removed
func SanitizeReportJSON(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	dropped := make([]string, 0, 4)
	keepKeys(m, []string{"personal_info", "test_results", "errors"}, "", &dropped)

	errs := sanitizeErrors(m["errors"])

	if p, ok := m["personal_info"].(map[string]any); ok {
		keepKeys(p, personalKeys, "personal_info.", &dropped)
		p["name"] = requiredString(p["name"])
		p["test_date"] = requiredString(p["test_date"])
		p["location"] = optionalString(p["location"])
		for _, k := range []string{"weight", "height"} {
			if n, ok := coerceNumber(p[k]); ok {
				p[k] = n
			} else {
				errs = append(errs, unparseableField(k, p[k]))
				p[k] = nil
				dropped = append(dropped, "personal_info."+k+"(moved to errors)")
			}
		}
		if n, ok := coerceNumber(p["age"]); ok && n != nil {
			p["age"] = math.Floor(n.(float64))
		} else {
			if !ok {
				errs = append(errs, unparseableField("age", p["age"]))
				dropped = append(dropped, "personal_info.age(moved to errors)")
			}
			p["age"] = nil
		}
	}

	switch list := m["test_results"].(type) {
	case nil:
		m["test_results"] = []any{}
	case []any:
		results := make([]any, 0, len(list))
		for _, item := range list {
			r, ok := item.(map[string]any)
			if !ok {
				dropped = append(dropped, "test_results[](not an object)")
				continue
			}
			keepKeys(r, resultKeys, "test_results[].", &dropped)
			name := requiredString(r["test_name"])
			r["test_name"] = name
			r["unit"] = optionalString(r["unit"])
			r["normal_range"] = optionalString(r["normal_range"])

			n, ok := coerceNumber(r["value"])
			if !ok {
				errs = append(errs, map[string]any{
					"error":       "unparseable_value",
					"description": fmt.Sprintf("%s: value %v is not a number", name, r["value"]),
				})
				dropped = append(dropped, "test_results["+name+"].value(moved to errors)")
				continue
			}
			r["value"] = n
			results = append(results, r)
		}
		m["test_results"] = results
	default:
		// left as is; schema validation rejects it
	}
	m["errors"] = errs

	out, err := json.Marshal(m)
	if err != nil {
		return nil, dropped, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(dropped) > 0 {
		logger.Warn("llm.structure.sanitize", "dropped", dropped)
	}
	return out, dropped, nil
}

func unparseableField(field string, v any) map[string]any {
	return map[string]any{
		"error":       "unparseable_" + field,
		"description": fmt.Sprintf("%s: %v is not a number", field, v),
	}
}

func sanitizeErrors(v any) []any {
	out := []any{}
	list, ok := v.([]any)
	if !ok {
		return out
	}
	for _, item := range list {
		e, ok := item.(map[string]any)
		if !ok {
			if s, isStr := item.(string); isStr && s != "" {
				out = append(out, map[string]any{"error": "note", "description": s})
			}
			continue
		}
		var ignored []string
		keepKeys(e, errorKeys, "", &ignored)
		e["error"] = requiredString(e["error"])
		e["description"] = requiredString(e["description"])
		out = append(out, e)
	}
	return out
}
