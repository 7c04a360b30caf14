package llm

import (
	"maps"
	"slices"
)

// ReportSchemaName is the name announced to the provider for structured output.
const ReportSchemaName = "blood_test_results"

// BuildReportJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a generic map.
// We pass this to OpenAI as a strict structured output constraint and also use it locally to validate.
// Strict mode wants every property listed in required, so optional fields are typed as nullable.
func BuildReportJSONSchema() map[string]any {
	personal := object(map[string]any{
		"name":      map[string]any{"type": "string"},
		"age":       nullable("integer"),
		"weight":    nullable("number"),
		"height":    nullable("number"),
		"location":  nullable("string"),
		"test_date": map[string]any{"type": "string"},
	})
	result := object(map[string]any{
		"test_name":    map[string]any{"type": "string"},
		"value":        nullable("number"),
		"unit":         nullable("string"),
		"normal_range": nullable("string"),
	})
	extractionErr := object(map[string]any{
		"error":       map[string]any{"type": "string"},
		"description": map[string]any{"type": "string"},
	})

	return object(map[string]any{
		"personal_info": personal,
		"test_results":  map[string]any{"type": "array", "items": result},
		"errors":        map[string]any{"type": "array", "items": extractionErr},
	})
}

func object(props map[string]any) map[string]any {
	required := slices.Sorted(maps.Keys(props))
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             required,
	}
}

func nullable(typ string) map[string]any {
	return map[string]any{"type": []string{typ, "null"}}
}
