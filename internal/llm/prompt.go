package llm

import (
	"strings"
	"time"

	"github.com/joseph-ayodele/bloodwork-tracker/constants"
)

// VisionInstruction is the system message for page transcription.
const VisionInstruction = "You transcribe scanned laboratory reports. Return the text of the page exactly as printed, " +
	"character for character. Do not interpret, summarize, translate, correct or reorder anything. " +
	"Preserve line breaks, and render table columns with spaces so rows stay on one line. " +
	"If the page has no text, return an empty response."

// BuildSystemPrompt composes the structuring instructions. Rules are listed in priority order.
func BuildSystemPrompt(today time.Time) string {
	var names strings.Builder
	for _, ex := range constants.NameExamples {
		names.WriteString("   - ")
		names.WriteString(ex.Source)
		names.WriteString(" -> ")
		names.WriteString(string(ex.Canonical))
		names.WriteString("\n")
	}

	parts := []string{
		"You are an expert in extracting structured data from the raw text of blood test reports. " +
			"Return ONLY JSON that matches the provided JSON Schema: personal_info, test_results and errors.",
		"1. Test names: translate non-English labels and use the shortest standard English name. Examples (not exhaustive):\n" +
			names.String() +
			"   HbA1c and HbA1 are different tests with different values. Never merge them; if both appear, output both.\n" +
			"   If you cannot tell which test a label means, put that reading in errors only, not in test_results.",
		"2. Units: labs in this region report glucose, cholesterol, triglycerides, creatinine and similar analytes in mg/dL; " +
			"keep or convert to mg/dL for those. Keep the source unit for tests normally reported otherwise (for example U/L for enzymes). " +
			"Convert normal ranges to the final unit. If a value cannot be converted reliably, put it in errors instead of guessing.",
		"3. Test date: use the report's collection date in DD-MM-YYYY. If no date is present, use today's date: " +
			today.Format("02-01-2006") + ".",
		"4. No hallucination: never invent values. A test that is listed without a readable value gets value null. " +
			"A fragment that cannot be parsed at all goes to errors with a short code in 'error' and a concise 'description' naming the test.",
		"5. Every reading in the text must appear exactly once: either in test_results or in errors, never both, never repeated, never omitted.",
	}
	return strings.Join(parts, "\n\n")
}

// BuildUserPrompt wraps the extracted text.
func BuildUserPrompt(rawText string) string {
	var b strings.Builder
	b.WriteString("Raw report text:\n")
	b.WriteString(rawText)
	return b.String()
}
