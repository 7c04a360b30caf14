package constants

import (
	"strings"
)

type TestName string

const (
	HDL              TestName = "HDL"
	LDL              TestName = "LDL"
	TotalCholesterol TestName = "Total Cholesterol"
	Triglycerides    TestName = "Triglycerides"
	Glucose          TestName = "Glucose"
	HbA1c            TestName = "HbA1c"
	HbA1             TestName = "HbA1"
	VitaminD         TestName = "Vitamin D"
	T4               TestName = "T4"
	TSH              TestName = "TSH"
)

var allTestNames = []TestName{
	HDL,
	LDL,
	TotalCholesterol,
	Triglycerides,
	Glucose,
	HbA1c,
	HbA1,
	VitaminD,
	T4,
	TSH,
}

// TestNameExample pairs a label as printed by labs with the name we store.
type TestNameExample struct {
	Source    string
	Canonical TestName
}

// NameExamples is the mapping table shown to the model. It is illustrative, not exhaustive.
var NameExamples = []TestNameExample{
	{Source: "HDL Cholesterol", Canonical: HDL},
	{Source: "LDL Cholesterol", Canonical: LDL},
	{Source: "Total Cholesterol", Canonical: TotalCholesterol},
	{Source: "Triglycerides", Canonical: Triglycerides},
	{Source: "Glucose", Canonical: Glucose},
	{Source: "Hemoglobin A1c", Canonical: HbA1c},
	{Source: "Vitamin D (e.g., 25-OH D3, D2)", Canonical: VitaminD},
	{Source: "T4 Thyroxine (T4, Thyroxine)", Canonical: T4},
	{Source: "TSH", Canonical: TSH},
}

// synonyms are matched on the whole label only. HbA1 and HbA1c are different tests,
// so no prefix or substring matching happens here.
var synonyms = map[string]TestName{
	"hdl cholesterol":           HDL,
	"hdl-c":                     HDL,
	"hdl-cholesterol":           HDL,
	"ldl cholesterol":           LDL,
	"ldl-c":                     LDL,
	"ldl-cholesterol":           LDL,
	"cholesterol":               TotalCholesterol,
	"total cholesterol":         TotalCholesterol,
	"cholesterol total":         TotalCholesterol,
	"triglyceride":              Triglycerides,
	"blood glucose":             Glucose,
	"glucose serum":             Glucose,
	"hemoglobin a1c":            HbA1c,
	"haemoglobin a1c":           HbA1c,
	"hb a1c":                    HbA1c,
	"hemoglobin a1":             HbA1,
	"haemoglobin a1":            HbA1,
	"hb a1":                     HbA1,
	"25-oh vitamin d":           VitaminD,
	"25(oh) vitamin d":          VitaminD,
	"25-oh d3":                  VitaminD,
	"vitamin d3":                VitaminD,
	"vitamin d (25-oh)":         VitaminD,
	"thyroxine":                 T4,
	"t4 thyroxine":              T4,

	"thyroid stimulating hormone": TSH,
}

// TestNamesAsStrings returns the known canonical names.
func TestNamesAsStrings() []string {
	result := make([]string, len(allTestNames))
	for i, n := range allTestNames {
		result[i] = string(n)
	}
	return result
}

// CanonicalTestName folds a known label onto its canonical name. Unknown labels are
// returned trimmed, with ok=false.
func CanonicalTestName(input string) (string, bool) {
	trimmed := strings.Join(strings.Fields(input), " ")
	if trimmed == "" {
		return "", false
	}
	normalized := strings.ToLower(trimmed)

	if name, ok := synonyms[normalized]; ok {
		return string(name), true
	}
	for _, name := range allTestNames {
		if normalized == strings.ToLower(string(name)) {
			return string(name), true
		}
	}
	return trimmed, false
}

// SameTest reports whether two labels refer to the same test after canonical folding.
func SameTest(a, b string) bool {
	ca, _ := CanonicalTestName(a)
	cb, _ := CanonicalTestName(b)
	return ca != "" && strings.EqualFold(ca, cb)
}
