package utils

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FileStem returns the base name of a client filename without its extension,
// with anything unsafe for a path replaced by underscores.
func FileStem(name string) string {
	base := filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), `\`, "/"))
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	stem = strings.Trim(unsafeChars.ReplaceAllString(stem, "_"), "._")
	if stem == "" {
		return "report"
	}
	return stem
}

// StampedPDFName builds the stored name for an upload: <stem>_<dd-mm-YYYY_HH-MM-SS>.pdf
func StampedPDFName(name string, at time.Time) string {
	return FileStem(name) + "_" + at.Format("02-01-2006_15-04-05") + ".pdf"
}

func StrOrEmpty(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func Ptr[T any](v T) *T {
	return &v
}
