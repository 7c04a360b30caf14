package llm

import "context"

// PersonalMetadata describes the subject of a report.
type PersonalMetadata struct {
	Name     string   `json:"name"`
	Age      *int     `json:"age"`
	Weight   *float64 `json:"weight"` // kg
	Height   *float64 `json:"height"` // cm
	Location *string  `json:"location"`
	TestDate string   `json:"test_date"`
}

// TestResult is one reading. A nil Value means the test is present but has no usable number.
type TestResult struct {
	TestName    string   `json:"test_name"`
	Value       *float64 `json:"value"`
	Unit        *string  `json:"unit"`
	NormalRange *string  `json:"normal_range"`
}

// ExtractionError records a fragment that could not be turned into a reading.
type ExtractionError struct {
	Error       string `json:"error"`
	Description string `json:"description"`
}

// StructuredReport is the normalized shape we want from the LLM.
type StructuredReport struct {
	PersonalInfo PersonalMetadata  `json:"personal_info"`
	TestResults  []TestResult      `json:"test_results"`
	Errors       []ExtractionError `json:"errors"`
}

// ReportStructurer is the interface our pipeline depends on.
type ReportStructurer interface {
	StructureReport(ctx context.Context, rawText string) (StructuredReport, []byte /*rawJSON*/, error)
}

// PageTranscriber turns one rendered page into verbatim text.
type PageTranscriber interface {
	TranscribePage(ctx context.Context, page int, png []byte) (string, error)
}
