package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/joseph-ayodele/bloodwork-tracker/internal/artifacts"
	"github.com/joseph-ayodele/bloodwork-tracker/internal/common"
	"github.com/joseph-ayodele/bloodwork-tracker/internal/ocr"
)

// TextExtractor is the seam over the two-tier OCR orchestrator.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (ocr.Result, error)
}

type ExtractStage struct {
	Extractor TextExtractor
	Artifacts *artifacts.Writer
	Logger    *slog.Logger
}

func NewExtractStage(ex TextExtractor, aw *artifacts.Writer, logger *slog.Logger) *ExtractStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExtractStage{Extractor: ex, Artifacts: aw, Logger: logger}
}

// Run extracts the report text and keeps a raw copy next to the other artifacts.
func (s *ExtractStage) Run(ctx context.Context, path, filename string) (ocr.Result, error) {
	res, err := s.Extractor.Extract(ctx, path)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return res, err
		}
		s.Logger.Error("pipeline.extract.failed", "path", path, "error", err)
		return res, common.NewAppError(common.CodeExtractionFailed, "could not extract text from pdf", err)
	}
	s.Logger.Info("pipeline.extract.ok",
		"path", path,
		"method", res.Method,
		"pages", res.Pages,
		"text_len", len(res.Text),
		"duration_ms", res.Duration.Milliseconds(),
	)
	s.Artifacts.WriteRawText(ctx, filename, res.Text)
	return res, nil
}
