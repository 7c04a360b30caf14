package llm

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/joseph-ayodele/bloodwork-tracker/constants"
)

// Reconcile enforces the one-reading-one-entry rule on a validated report:
// known labels are folded onto canonical names, exact repeats are dropped, a
// null-valued reading is dropped when an error entry already describes that test,
// and an error entry about a test that kept a value is dropped.
func Reconcile(r StructuredReport, logger *slog.Logger) StructuredReport {
	if logger == nil {
		logger = slog.Default()
	}

	type key struct {
		name, unit, rng string
		value           float64
		hasValue        bool
	}
	seen := make(map[key]struct{}, len(r.TestResults))
	out := make([]TestResult, 0, len(r.TestResults))

	for _, t := range r.TestResults {
		name, known := constants.CanonicalTestName(t.TestName)
		if known && name != t.TestName {
			logger.Debug("llm.reconcile.canonical_name", "from", t.TestName, "to", name)
		}
		t.TestName = name

		if t.Value == nil && describedInErrors(t.TestName, r.Errors) {
			logger.Info("llm.reconcile.null_reading_dropped", "test_name", t.TestName)
			continue
		}

		k := key{name: strings.ToLower(t.TestName), unit: lowerOrEmpty(t.Unit), rng: lowerOrEmpty(t.NormalRange)}
		if t.Value != nil {
			k.value, k.hasValue = *t.Value, true
		}
		if _, dup := seen[k]; dup {
			logger.Info("llm.reconcile.duplicate_dropped", "test_name", t.TestName)
			continue
		}
		seen[k] = struct{}{}
		out = append(out, t)
	}
	r.TestResults = out

	errs := make([]ExtractionError, 0, len(r.Errors))
	for _, e := range r.Errors {
		// entries raised by sanitizing or validation describe their own item, even if a row shares the name
		if !strings.HasPrefix(e.Error, "unparseable_") && !strings.HasPrefix(e.Error, "invalid_") && e.Error != "missing_test_name" {
			if name, ok := valuedRowNamedIn(e, out); ok {
				logger.Info("llm.reconcile.error_dropped", "test_name", name, "error", e.Error)
				continue
			}
		}
		errs = append(errs, e)
	}
	r.Errors = errs
	return r
}

func valuedRowNamedIn(e ExtractionError, rows []TestResult) (string, bool) {
	for _, t := range rows {
		if t.Value != nil && describedInErrors(t.TestName, []ExtractionError{e}) {
			return t.TestName, true
		}
	}
	return "", false
}

func describedInErrors(name string, errs []ExtractionError) bool {
	if len(errs) == 0 {
		return false
	}
	// whole-word match so that an error about HbA1c does not hide an HbA1 row
	re, err := regexp.Compile(`(?i)(^|[^\pL\pN])` + regexp.QuoteMeta(name) + `($|[^\pL\pN])`)
	if err != nil {
		return false
	}
	for _, e := range errs {
		if re.MatchString(e.Error) || re.MatchString(e.Description) {
			return true
		}
	}
	return false
}

func lowerOrEmpty(p *string) string {
	if p == nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(*p))
}
