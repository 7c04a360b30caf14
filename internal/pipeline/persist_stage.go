package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/bloodwork-tracker/internal/entity"
	"github.com/joseph-ayodele/bloodwork-tracker/internal/events"
	"github.com/joseph-ayodele/bloodwork-tracker/internal/llm"
	"github.com/joseph-ayodele/bloodwork-tracker/internal/repository"
	"github.com/joseph-ayodele/bloodwork-tracker/internal/utils"
)

type PersistStage struct {
	Users    repository.UserRepository
	Sessions repository.SessionRepository
	Events   events.Publisher
	Logger   *slog.Logger
	Now      func() time.Time
}

func NewPersistStage(users repository.UserRepository, sessions repository.SessionRepository, pub events.Publisher, logger *slog.Logger) *PersistStage {
	if logger == nil {
		logger = slog.Default()
	}
	if pub == nil {
		pub = events.Nop{}
	}
	return &PersistStage{Users: users, Sessions: sessions, Events: pub, Logger: logger, Now: time.Now}
}

// Run maps a report onto rows: the user is upserted by name and committed on its
// own, then the session and every reading go in a single transaction. A crash
// between the two leaves a user without sessions.
func (s *PersistStage) Run(ctx context.Context, report llm.StructuredReport, sourceFile string) (*entity.User, *entity.TestSession, error) {
	info := report.PersonalInfo

	date := s.normalizeDate(info.TestDate)
	testDate, err := utils.ParseDMY(date)
	if err != nil {
		return nil, nil, err
	}

	user, created, err := s.Users.Upsert(ctx, info.Name, info.Height)
	if err != nil {
		return nil, nil, err
	}
	if !created && info.Height != nil && (user.Height == nil || *user.Height != *info.Height) {
		s.Logger.Info("pipeline.persist.height_ignored", "user_id", user.ID, "reported_height", *info.Height)
	}

	tests := make([]entity.NewBloodTest, 0, len(report.TestResults))
	for _, r := range report.TestResults {
		tests = append(tests, entity.NewBloodTest{
			TestName:    r.TestName,
			Value:       r.Value,
			Unit:        r.Unit,
			NormalRange: r.NormalRange,
		})
	}

	session, err := s.Sessions.CreateWithTests(ctx, user.ID, entity.NewSession{
		TestDate:   testDate,
		Location:   info.Location,
		Weight:     info.Weight,
		SourceFile: sourceFile,
	}, tests)
	if err != nil {
		return user, nil, err
	}

	evt := events.SessionCreated{
		SessionID:  session.ID,
		UserID:     user.ID,
		UserName:   user.Name,
		TestDate:   testDate.Format(time.DateOnly),
		TestCount:  len(session.BloodTests),
		SourceFile: sourceFile,
	}
	if err := s.Events.PublishSessionCreated(ctx, evt); err != nil {
		s.Logger.Warn("pipeline.persist.event_failed", "session_id", session.ID, "error", err)
	}
	return user, session, nil
}

// normalizeDate always yields a DD-MM-YYYY date; falling back to today is logged
// because it silently dates the session to the upload day.
func (s *PersistStage) normalizeDate(raw string) string {
	trimmed := strings.TrimSpace(raw)
	date := utils.NormalizeDateAt(trimmed, s.Now())
	switch {
	case date == trimmed:
	case utils.IsYMDSlash(trimmed):
		s.Logger.Debug("pipeline.persist.date_converted", "raw", raw, "date", date)
	default:
		s.Logger.Warn("pipeline.persist.date_fallback", "raw", raw, "date", date)
	}
	return date
}
