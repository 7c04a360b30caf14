// Package pipeline runs an uploaded report through extraction, structuring and persistence.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/bloodwork-tracker/constants"
	"github.com/joseph-ayodele/bloodwork-tracker/internal/common"
	"github.com/joseph-ayodele/bloodwork-tracker/internal/entity"
	"github.com/joseph-ayodele/bloodwork-tracker/internal/llm"
	"github.com/joseph-ayodele/bloodwork-tracker/internal/utils"
)

// Outcome is everything an upload produced, whether or not it got all the way through.
type Outcome struct {
	Filename string
	Path     string
	Method   string
	Pages    int
	Status   constants.ProcessStatus
	Report   llm.StructuredReport
	User     *entity.User
	Session  *entity.TestSession
	Duration time.Duration
}

// Processor coordinates text extraction, then LLM structuring, then persistence.
type Processor struct {
	Logger    *slog.Logger
	Extract   *ExtractStage
	Structure *StructureStage
	Persist   *PersistStage
}

func NewProcessor(logger *slog.Logger, ex *ExtractStage, st *StructureStage, ps *PersistStage) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{Logger: logger, Extract: ex, Structure: st, Persist: ps}
}

// ProcessFile runs the stages in order for a stored PDF. filename is the stored name,
// used for artifact keys and recorded as the session's source file.
func (p *Processor) ProcessFile(ctx context.Context, path, filename string) (*Outcome, error) {
	start := time.Now()
	logger := common.LoggerFromContext(ctx, p.Logger).With("file", filename)
	out := &Outcome{Filename: filename, Path: path, Status: constants.StatusQueued}
	finish := func(err error) (*Outcome, error) {
		out.Duration = time.Since(start)
		if err != nil {
			out.Status = constants.StatusFailed
			logger.Error("processor.failed", "code", common.ErrorCode(err), "error", err, "duration_ms", out.Duration.Milliseconds())
			return out, err
		}
		logger.Info("processor.done", "status", out.Status, "session_id", out.Session.ID, "duration_ms", out.Duration.Milliseconds())
		return out, nil
	}

	// 1) text: direct layer first, vision fallback only when empty
	res, err := p.Extract.Run(ctx, path, filename)
	if err != nil {
		return finish(err)
	}
	out.Method, out.Pages, out.Status = res.Method, res.Pages, constants.StatusExtracted

	// 2) structure: schema constrained, validated, reconciled
	report, err := p.Structure.Run(ctx, res.Text, filename)
	if err != nil {
		return finish(err)
	}
	out.Report, out.Status = report, constants.StatusStructured

	// 3) persist: user upsert, then session + readings in one tx
	user, session, err := p.Persist.Run(ctx, report, filename)
	out.User = user
	if err != nil {
		return finish(err)
	}
	out.Session, out.Status = session, constants.StatusPersisted
	// the stored date is authoritative once persisted
	out.Report.PersonalInfo.TestDate = session.TestDate.Format(utils.DMYLayout)
	return finish(nil)
}
