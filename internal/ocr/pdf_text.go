package ocr

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
)

// PDFTextReader reads the embedded text layer of a PDF.
type PDFTextReader struct {
	logger *slog.Logger
}

func NewPDFTextReader(logger *slog.Logger) *PDFTextReader {
	if logger == nil {
		logger = slog.Default()
	}
	return &PDFTextReader{logger: logger}
}

// ExtractText returns the text of all pages joined by newlines, trimmed. Pages without
// text are skipped. Any failure, including a panic inside the parser on a malformed
// file, yields "" so the caller can fall back.
func (r *PDFTextReader) ExtractText(ctx context.Context, path string) (text string) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("ocr.direct.panic", "path", path, "panic", rec)
			text = ""
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		r.logger.Warn("ocr.direct.open_failed", "path", path, "error", err)
		return ""
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			r.logger.Warn("ocr.direct.close_failed", "path", path, "error", cerr)
		}
	}()

	total := reader.NumPage()
	parts := make([]string, 0, total)
	skipped := 0
	for i := 1; i <= total; i++ {
		if ctx.Err() != nil {
			r.logger.Warn("ocr.direct.cancelled", "path", path, "page", i, "error", ctx.Err())
			return ""
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			skipped++
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			r.logger.Debug("ocr.direct.page_failed", "path", path, "page", i, "error", err)
			skipped++
			continue
		}
		content = Normalize(content)
		if content == "" {
			skipped++
			continue
		}
		parts = append(parts, content)
	}

	text = strings.TrimSpace(strings.Join(parts, "\n"))
	r.logger.Info("ocr.direct.done",
		"path", path,
		"pages", total,
		"skipped", skipped,
		"text_len", len(text),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return text
}
