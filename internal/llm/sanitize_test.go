package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeReportJSON(t *testing.T) {
	in := `{
		"personal_info": {"name": " Maria P. ", "age": "54", "weight": "71,5", "height": "", "location": "", "test_date": "2024/03/07", "gender": "F"},
		"test_results": [
			{"test_name": "Glucose", "value": "95", "unit": "mg/dL", "normal_range": "70-110"},
			{"test_name": "Ferritin", "value": "smudged", "unit": "ng/mL", "normal_range": ""},
			{"test_name": "TSH", "value": 1.8, "unit": "uIU/mL"}
		],
		"errors": null,
		"notes": "extra"
	}`

	out, dropped, err := SanitizeReportJSON([]byte(in), nil)
	require.NoError(t, err)
	assert.NotEmpty(t, dropped)
	require.NoError(t, ValidateJSONAgainstSchema(BuildReportJSONSchema(), out))

	var r StructuredReport
	require.NoError(t, json.Unmarshal(out, &r))

	assert.Equal(t, "Maria P.", r.PersonalInfo.Name)
	require.NotNil(t, r.PersonalInfo.Age)
	assert.Equal(t, 54, *r.PersonalInfo.Age)
	require.NotNil(t, r.PersonalInfo.Weight)
	assert.InDelta(t, 71.5, *r.PersonalInfo.Weight, 1e-9)
	assert.Nil(t, r.PersonalInfo.Height)
	assert.Nil(t, r.PersonalInfo.Location)

	require.Len(t, r.TestResults, 2)
	assert.Equal(t, "Glucose", r.TestResults[0].TestName)
	require.NotNil(t, r.TestResults[0].Value)
	assert.InDelta(t, 95, *r.TestResults[0].Value, 1e-9)
	assert.Nil(t, r.TestResults[1].NormalRange)

	require.Len(t, r.Errors, 1)
	assert.Equal(t, "unparseable_value", r.Errors[0].Error)
	assert.Contains(t, r.Errors[0].Description, "Ferritin")
}

func TestSanitizeReportJSON_RejectsGarbage(t *testing.T) {
	_, _, err := SanitizeReportJSON([]byte("not json"), nil)
	assert.Error(t, err)
}

func TestSanitizeReportJSON_WrongShapeStillFailsSchema(t *testing.T) {
	out, _, err := SanitizeReportJSON([]byte(`{"personal_info": {"name": "A", "test_date": ""}, "test_results": {"Glucose": 95}}`), nil)
	require.NoError(t, err)
	assert.Error(t, ValidateJSONAgainstSchema(BuildReportJSONSchema(), out))
}

func TestSanitizeReportJSON_UnparseableMetadataIsRecorded(t *testing.T) {
	in := `{
		"personal_info": {"name": "Jane Doe", "age": "forty", "weight": "70 kg", "height": 168, "test_date": "04-07-2024"},
		"test_results": [],
		"errors": []
	}`

	out, _, err := SanitizeReportJSON([]byte(in), nil)
	require.NoError(t, err)
	require.NoError(t, ValidateJSONAgainstSchema(BuildReportJSONSchema(), out))

	var r StructuredReport
	require.NoError(t, json.Unmarshal(out, &r))
	assert.Nil(t, r.PersonalInfo.Age)
	assert.Nil(t, r.PersonalInfo.Weight)
	require.NotNil(t, r.PersonalInfo.Height)

	codes := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		codes = append(codes, e.Error)
	}
	assert.ElementsMatch(t, []string{"unparseable_age", "unparseable_weight"}, codes)
	for _, e := range r.Errors {
		assert.NotEmpty(t, e.Description)
	}
}
