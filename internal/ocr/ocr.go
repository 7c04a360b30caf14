package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/bloodwork-tracker/constants"
)

// ErrNoText is returned when neither the text layer nor the vision fallback produced text.
var ErrNoText = errors.New("no text could be extracted from pdf")

// TextReader reads a PDF's embedded text. It never fails; "" means nothing usable.
type TextReader interface {
	ExtractText(ctx context.Context, path string) string
}

// PageReader turns a PDF into page-labelled text by rendering its pages.
type PageReader interface {
	ExtractPages(ctx context.Context, path string) (string, int, error)
}

type Result struct {
	Text     string
	Pages    int
	Method   string // constants.MethodPDFText | constants.MethodVision
	Duration time.Duration
}

// Extractor tries the text layer first and only falls back to page vision when it is empty.
type Extractor struct {
	text   TextReader
	pages  PageReader
	logger *slog.Logger
}

func NewExtractor(text TextReader, pages PageReader, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{text: text, pages: pages, logger: logger}
}

func (e *Extractor) Extract(ctx context.Context, path string) (Result, error) {
	start := time.Now()
	e.logger.Debug("ocr.extract.start", "path", path)

	if text := strings.TrimSpace(e.text.ExtractText(ctx, path)); text != "" {
		res := Result{Text: text, Method: constants.MethodPDFText, Duration: time.Since(start)}
		e.logger.Info("ocr.extract.done", "path", path, "method", res.Method, "text_len", len(text), "duration_ms", res.Duration.Milliseconds())
		return res, nil
	}

	if e.pages == nil {
		return Result{}, ErrNoText
	}
	e.logger.Info("ocr.extract.fallback", "path", path, "method", constants.MethodVision)

	text, n, err := e.pages.ExtractPages(ctx, path)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, fmt.Errorf("%w: %w", ErrNoText, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{}, ErrNoText
	}

	res := Result{Text: text, Pages: n, Method: constants.MethodVision, Duration: time.Since(start)}
	e.logger.Info("ocr.extract.done", "path", path, "method", res.Method, "pages", n, "text_len", len(text), "duration_ms", res.Duration.Milliseconds())
	return res, nil
}
