package llm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/bloodwork-tracker/internal/common"
)

func fptr(f float64) *float64 { return &f }
func sptr(s string) *string   { return &s }

func TestValidateJSONAgainstSchema(t *testing.T) {
	schema := BuildReportJSONSchema()

	good := `{"personal_info":{"name":"A","age":null,"weight":null,"height":null,"location":null,"test_date":"07-03-2024"},
		"test_results":[{"test_name":"Glucose","value":95,"unit":"mg/dL","normal_range":null}],"errors":[]}`
	require.NoError(t, ValidateJSONAgainstSchema(schema, []byte(good)))

	missingField := `{"personal_info":{"name":"A","test_date":"07-03-2024"},"test_results":[],"errors":[]}`
	assert.Error(t, ValidateJSONAgainstSchema(schema, []byte(missingField)))

	stringValue := `{"personal_info":{"name":"A","age":null,"weight":null,"height":null,"location":null,"test_date":""},
		"test_results":[{"test_name":"Glucose","value":"95","unit":null,"normal_range":null}],"errors":[]}`
	assert.Error(t, ValidateJSONAgainstSchema(schema, []byte(stringValue)))
}

func TestValidateReport_RequiresName(t *testing.T) {
	r := StructuredReport{PersonalInfo: PersonalMetadata{Name: "  "}}
	err := ValidateReport(&r)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrValidation))
}

func TestValidateReport_NullsImplausibleMetadata(t *testing.T) {
	age := 212
	r := StructuredReport{
		PersonalInfo: PersonalMetadata{Name: "A", Age: &age, Weight: fptr(70), Height: fptr(1.75)},
		TestResults: []TestResult{
			{TestName: "Glucose", Value: fptr(95)},
			{TestName: " ", Value: fptr(4.2)},
		},
	}
	require.NoError(t, ValidateReport(&r))

	assert.Nil(t, r.PersonalInfo.Age)
	assert.Nil(t, r.PersonalInfo.Height)
	require.NotNil(t, r.PersonalInfo.Weight)
	require.Len(t, r.TestResults, 1)

	codes := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		codes = append(codes, e.Error)
	}
	assert.ElementsMatch(t, []string{"invalid_age", "invalid_height", "missing_test_name"}, codes)
}
