package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/bloodwork-tracker/internal/common"
)

// ValidateJSONAgainstSchema validates "data" against "schemaMap".
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

const (
	maxAge    = 130
	maxWeight = 500.0 // kg
	minHeight = 30.0  // cm
	maxHeight = 272.0 // cm
)

// ValidateReport checks a decoded report before it is trusted. A missing subject name
// is fatal since it is the identity key. Implausible metadata is nulled and recorded
// in Errors; readings without a name are moved to Errors.
func ValidateReport(r *StructuredReport) error {
	r.PersonalInfo.Name = strings.TrimSpace(r.PersonalInfo.Name)
	if r.PersonalInfo.Name == "" {
		return fmt.Errorf("personal_info.name is empty: %w", common.ErrValidation)
	}

	p := &r.PersonalInfo
	if p.Age != nil && (*p.Age < 0 || *p.Age > maxAge) {
		r.Errors = append(r.Errors, ExtractionError{Error: "invalid_age", Description: fmt.Sprintf("age %d is outside 0-%d", *p.Age, maxAge)})
		p.Age = nil
	}
	if p.Weight != nil && (*p.Weight <= 0 || *p.Weight > maxWeight) {
		r.Errors = append(r.Errors, ExtractionError{Error: "invalid_weight", Description: fmt.Sprintf("weight %g kg is not plausible", *p.Weight)})
		p.Weight = nil
	}
	if p.Height != nil && (*p.Height < minHeight || *p.Height > maxHeight) {
		r.Errors = append(r.Errors, ExtractionError{Error: "invalid_height", Description: fmt.Sprintf("height %g cm is not plausible", *p.Height)})
		p.Height = nil
	}

	kept := r.TestResults[:0]
	for _, t := range r.TestResults {
		if strings.TrimSpace(t.TestName) == "" {
			desc := "reading without a test name"
			if t.Value != nil {
				desc = fmt.Sprintf("reading without a test name (value %g)", *t.Value)
			}
			r.Errors = append(r.Errors, ExtractionError{Error: "missing_test_name", Description: desc})
			continue
		}
		kept = append(kept, t)
	}
	r.TestResults = kept
	if r.Errors == nil {
		r.Errors = []ExtractionError{}
	}
	return nil
}
