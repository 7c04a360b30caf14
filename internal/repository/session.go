package repository

import (
	"context"
	stdsql "database/sql"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/bloodwork-tracker/internal/common"
	"github.com/joseph-ayodele/bloodwork-tracker/internal/entity"
)

var sessionColumns = []string{"id", "user_id", "test_date", "location", "weight", "source_file", "created_at"}

type SessionRepository interface {
	// CreateWithTests inserts a session and all of its readings in one transaction.
	CreateWithTests(ctx context.Context, userID int, s entity.NewSession, tests []entity.NewBloodTest) (*entity.TestSession, error)
	List(ctx context.Context) ([]*entity.TestSession, error)
	ListByUser(ctx context.Context, userID int) ([]*entity.TestSession, error)
	// ListWithTests is List with every session's readings attached.
	ListWithTests(ctx context.Context) ([]*entity.TestSession, error)
	// Get returns the session with its readings.
	Get(ctx context.Context, id int) (*entity.TestSession, error)
	// Delete removes the session; its readings go with it through ON DELETE CASCADE.
	Delete(ctx context.Context, id int) error
}

type sessionRepository struct {
	drv    *entsql.Driver
	logger *slog.Logger
}

func NewSessionRepository(drv *entsql.Driver, logger *slog.Logger) SessionRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &sessionRepository{drv: drv, logger: logger}
}

func (r *sessionRepository) CreateWithTests(ctx context.Context, userID int, s entity.NewSession, tests []entity.NewBloodTest) (*entity.TestSession, error) {
	d := r.drv.Dialect()
	now := time.Now().UTC()
	out := &entity.TestSession{
		UserID:     userID,
		TestDate:   s.TestDate,
		Location:   s.Location,
		Weight:     s.Weight,
		SourceFile: s.SourceFile,
		CreatedAt:  now,
		BloodTests: make([]entity.BloodTest, 0, len(tests)),
	}

	err := withTx(ctx, r.drv, func(tx dialect.Tx) error {
		ins := entsql.Dialect(d).
			Insert(sessionsTable).
			Columns("user_id", "test_date", "location", "weight", "source_file", "created_at").
			Values(userID, s.TestDate, s.Location, s.Weight, s.SourceFile, now).
			Returning("id")
		if err := queryRows(ctx, tx, ins, func(rows *entsql.Rows) error {
			return rows.Scan(&out.ID)
		}); err != nil {
			return err
		}

		for _, t := range tests {
			bt := entity.BloodTest{
				SessionID:   out.ID,
				TestName:    t.TestName,
				Value:       t.Value,
				Unit:        t.Unit,
				NormalRange: t.NormalRange,
			}
			ins := entsql.Dialect(d).
				Insert(bloodTestsTable).
				Columns("session_id", "test_name", "value", "unit", "normal_range").
				Values(out.ID, t.TestName, t.Value, t.Unit, t.NormalRange).
				Returning("id")
			if err := queryRows(ctx, tx, ins, func(rows *entsql.Rows) error {
				return rows.Scan(&bt.ID)
			}); err != nil {
				return err
			}
			out.BloodTests = append(out.BloodTests, bt)
		}
		return nil
	})
	if err != nil {
		r.logger.Error("failed to create session", "user_id", userID, "tests", len(tests), "error", err)
		return nil, dbError("create session", err)
	}

	r.logger.Info("session created", "session_id", out.ID, "user_id", userID, "tests", len(out.BloodTests))
	return out, nil
}

func (r *sessionRepository) List(ctx context.Context) ([]*entity.TestSession, error) {
	return r.list(ctx, nil)
}

func (r *sessionRepository) ListByUser(ctx context.Context, userID int) ([]*entity.TestSession, error) {
	return r.list(ctx, entsql.EQ("user_id", userID))
}

// list orders newest test date first; id breaks ties so equal dates list the latest upload first.
func (r *sessionRepository) list(ctx context.Context, where *entsql.Predicate) ([]*entity.TestSession, error) {
	sel := entsql.Dialect(r.drv.Dialect()).
		Select(sessionColumns...).
		From(entsql.Table(sessionsTable)).
		OrderBy(entsql.Desc("test_date"), entsql.Desc("id"))
	if where != nil {
		sel = sel.Where(where)
	}

	var out []*entity.TestSession
	err := queryRows(ctx, r.drv, sel, func(rows *entsql.Rows) error {
		s, err := scanSession(rows)
		if err != nil {
			return err
		}
		out = append(out, s)
		return nil
	})
	if err != nil {
		r.logger.Error("failed to list sessions", "error", err)
		return nil, dbError("list sessions", err)
	}
	return out, nil
}

func (r *sessionRepository) ListWithTests(ctx context.Context) ([]*entity.TestSession, error) {
	sessions, err := r.list(ctx, nil)
	if err != nil {
		return nil, err
	}
	tests, err := listTests(ctx, r.drv, r.drv.Dialect(), nil)
	if err != nil {
		return nil, dbError("list tests", err)
	}
	bySession := make(map[int][]entity.BloodTest, len(sessions))
	for _, t := range tests {
		bySession[t.SessionID] = append(bySession[t.SessionID], t)
	}
	for _, s := range sessions {
		s.BloodTests = bySession[s.ID]
	}
	return sessions, nil
}

func (r *sessionRepository) Get(ctx context.Context, id int) (*entity.TestSession, error) {
	sel := entsql.Dialect(r.drv.Dialect()).
		Select(sessionColumns...).
		From(entsql.Table(sessionsTable)).
		Where(entsql.EQ("id", id)).
		Limit(1)

	var found *entity.TestSession
	err := queryRows(ctx, r.drv, sel, func(rows *entsql.Rows) error {
		s, err := scanSession(rows)
		found = s
		return err
	})
	if err != nil {
		return nil, dbError("load session", err)
	}
	if found == nil {
		return nil, common.NotFoundErrorf("session %d not found", id)
	}

	tests, err := listTests(ctx, r.drv, r.drv.Dialect(), entsql.EQ("session_id", id))
	if err != nil {
		return nil, dbError("load session tests", err)
	}
	found.BloodTests = tests
	return found, nil
}

func (r *sessionRepository) Delete(ctx context.Context, id int) error {
	del := entsql.Dialect(r.drv.Dialect()).
		Delete(sessionsTable).
		Where(entsql.EQ("id", id))
	n, err := execAffected(ctx, r.drv, del)
	if err != nil {
		r.logger.Error("failed to delete session", "session_id", id, "error", err)
		return dbError("delete session", err)
	}
	if n == 0 {
		return common.NotFoundErrorf("session %d not found", id)
	}
	r.logger.Info("session deleted", "session_id", id)
	return nil
}

func scanSession(rows *entsql.Rows) (*entity.TestSession, error) {
	var (
		s        entity.TestSession
		location stdsql.NullString
		weight   stdsql.NullFloat64
	)
	if err := rows.Scan(&s.ID, &s.UserID, &s.TestDate, &location, &weight, &s.SourceFile, &s.CreatedAt); err != nil {
		return nil, err
	}
	s.Location = nullString(location)
	s.Weight = nullFloat(weight)
	return &s, nil
}
