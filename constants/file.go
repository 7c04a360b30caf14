package constants

import (
	"path/filepath"
	"strings"
)

// AllowedExtensions holds the file extensions accepted for lab report ingestion.
var AllowedExtensions = map[string]struct{}{
	"pdf": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsPDFName reports whether a client-supplied filename carries a .pdf extension.
func IsPDFName(name string) bool {
	return NormalizeExt(filepath.Ext(strings.TrimSpace(name))) == "pdf"
}

// Method labels for how raw text was obtained from a report.
const (
	MethodPDFText = "pdf_text"
	MethodVision  = "vision"
)

// PageErrorPlaceholder replaces the text of a page whose transcription failed.
const PageErrorPlaceholder = "[Error extracting text]"
