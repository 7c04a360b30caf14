package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/bloodwork-tracker/internal/entity"
	"github.com/joseph-ayodele/bloodwork-tracker/internal/repository"
	"github.com/joseph-ayodele/bloodwork-tracker/internal/utils"
)

const (
	sessionsSheet = "Sessions"
	testsSheet    = "Tests"
)

// Filter narrows an export. Zero values mean no restriction.
type Filter struct {
	UserID *int
	From   *time.Time
	To     *time.Time
}

// Service is a small façade over repositories that produces XLSX bytes for exports.
type Service struct {
	sessions repository.SessionRepository
	users    repository.UserRepository
	logger   *slog.Logger
}

func NewService(sessions repository.SessionRepository, users repository.UserRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{sessions: sessions, users: users, logger: logger}
}

// ExportSessionsXLSX returns a workbook with one row per session and one row per reading.
// If only From is provided -> From..today (inclusive).
func (s *Service) ExportSessionsXLSX(ctx context.Context, filter Filter) ([]byte, error) {
	start := time.Now()

	var from, to *time.Time
	if filter.From != nil {
		f := utils.DateOnly(*filter.From)
		from = &f
	}
	if filter.To != nil {
		t := utils.DateOnly(*filter.To)
		to = &t
	}
	if from != nil && to == nil {
		t := utils.DateOnly(time.Now().UTC())
		to = &t
	}

	all, err := s.sessions.ListWithTests(ctx)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	sessions := make([]*entity.TestSession, 0, len(all))
	for _, sess := range all {
		if filter.UserID != nil && sess.UserID != *filter.UserID {
			continue
		}
		d := utils.DateOnly(sess.TestDate)
		if (from != nil && d.Before(*from)) || (to != nil && d.After(*to)) {
			continue
		}
		sessions = append(sessions, sess)
	}

	names := map[int]string{}
	userName := func(id int) string {
		if n, ok := names[id]; ok {
			return n
		}
		n := ""
		if u, err := s.users.Get(ctx, id); err == nil {
			n = u.Name
		} else {
			s.logger.Warn("export.user_lookup_failed", "user_id", id, "error", err)
		}
		names[id] = n
		return n
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	// the default sheet becomes the sessions sheet
	if err := f.SetSheetName(f.GetSheetName(0), sessionsSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(testsSheet); err != nil {
		return nil, err
	}
	f.SetActiveSheet(0)

	writeRow := func(sheet string, row int, values ...any) {
		for i, v := range values {
			cell, _ := excelize.CoordinatesToCellName(i+1, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}

	writeRow(sessionsSheet, 1, "Session ID", "User", "Test Date", "Location", "Weight (kg)", "Tests", "Source File")
	writeRow(testsSheet, 1, "Session ID", "User", "Test Date", "Test Name", "Value", "Unit", "Normal Range")

	testRow := 2
	for i, sess := range sessions {
		user := userName(sess.UserID)
		date := sess.TestDate.Format(utils.DMYLayout)
		writeRow(sessionsSheet, i+2,
			sess.ID, user, date,
			utils.StrOrEmpty(sess.Location), floatOrEmpty(sess.Weight),
			len(sess.BloodTests), sess.SourceFile,
		)
		for _, t := range sess.BloodTests {
			writeRow(testsSheet, testRow,
				sess.ID, user, date,
				t.TestName, floatOrEmpty(t.Value),
				utils.StrOrEmpty(t.Unit), truncate(utils.StrOrEmpty(t.NormalRange), 140),
			)
			testRow++
		}
	}

	// Widen a few columns
	_ = f.SetColWidth(sessionsSheet, "B", "B", 24) // user
	_ = f.SetColWidth(sessionsSheet, "C", "C", 12) // date
	_ = f.SetColWidth(sessionsSheet, "D", "D", 28) // location
	_ = f.SetColWidth(sessionsSheet, "G", "G", 48) // source
	_ = f.SetColWidth(testsSheet, "B", "B", 24)
	_ = f.SetColWidth(testsSheet, "D", "D", 22)
	_ = f.SetColWidth(testsSheet, "G", "G", 32)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"sessions", len(sessions),
		"tests", testRow-2,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func floatOrEmpty(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
