package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/joseph-ayodele/bloodwork-tracker/internal/artifacts"
	"github.com/joseph-ayodele/bloodwork-tracker/internal/common"
	"github.com/joseph-ayodele/bloodwork-tracker/internal/llm"
)

type StructureStage struct {
	Structurer llm.ReportStructurer
	Artifacts  *artifacts.Writer
	Logger     *slog.Logger
}

func NewStructureStage(st llm.ReportStructurer, aw *artifacts.Writer, logger *slog.Logger) *StructureStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &StructureStage{Structurer: st, Artifacts: aw, Logger: logger}
}

// Run turns raw text into a validated report. Any failure is all-or-nothing.
func (s *StructureStage) Run(ctx context.Context, text, filename string) (llm.StructuredReport, error) {
	report, _, err := s.Structurer.StructureReport(ctx, text)
	if err != nil {
		s.Logger.Error("pipeline.structure.failed", "file", filename, "error", err)
		return llm.StructuredReport{}, common.NewAppError(common.CodeStructuringFailed, "could not structure report", err)
	}
	s.Logger.Info("pipeline.structure.ok",
		"file", filename,
		"tests", len(report.TestResults),
		"errors", len(report.Errors),
	)

	if out, err := json.MarshalIndent(report, "", "  "); err == nil {
		s.Artifacts.WriteStructured(ctx, filename, out)
	}
	return report, nil
}
