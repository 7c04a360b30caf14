package repository

import (
	"context"
	stdsql "database/sql"
	"log/slog"
	"sort"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/bloodwork-tracker/constants"
	"github.com/joseph-ayodele/bloodwork-tracker/internal/common"
	"github.com/joseph-ayodele/bloodwork-tracker/internal/entity"
)

var bloodTestColumns = []string{"id", "session_id", "test_name", "value", "unit", "normal_range"}

type BloodTestRepository interface {
	// Get returns a reading only when it belongs to the given session.
	Get(ctx context.Context, sessionID, testID int) (*entity.BloodTest, error)
	Update(ctx context.Context, sessionID, testID int, upd entity.BloodTestUpdate) (*entity.BloodTest, error)
	// Trend lists a user's readings of one test, oldest session first.
	Trend(ctx context.Context, userID int, testName string) ([]entity.TrendPoint, error)
}

type bloodTestRepository struct {
	drv    *entsql.Driver
	logger *slog.Logger
}

func NewBloodTestRepository(drv *entsql.Driver, logger *slog.Logger) BloodTestRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &bloodTestRepository{drv: drv, logger: logger}
}

func (r *bloodTestRepository) Get(ctx context.Context, sessionID, testID int) (*entity.BloodTest, error) {
	tests, err := listTests(ctx, r.drv, r.drv.Dialect(), entsql.And(entsql.EQ("id", testID), entsql.EQ("session_id", sessionID)))
	if err != nil {
		return nil, dbError("load test", err)
	}
	if len(tests) == 0 {
		return nil, common.NotFoundErrorf("test %d not found in session %d", testID, sessionID)
	}
	return &tests[0], nil
}

func (r *bloodTestRepository) Update(ctx context.Context, sessionID, testID int, upd entity.BloodTestUpdate) (*entity.BloodTest, error) {
	u := entsql.Dialect(r.drv.Dialect()).
		Update(bloodTestsTable).
		Set("test_name", upd.TestName).
		Set("value", upd.Value).
		Where(entsql.And(entsql.EQ("id", testID), entsql.EQ("session_id", sessionID)))
	if upd.Unit != nil {
		u = u.Set("unit", *upd.Unit)
	}

	n, err := execAffected(ctx, r.drv, u)
	if err != nil {
		r.logger.Error("failed to update test", "session_id", sessionID, "test_id", testID, "error", err)
		return nil, dbError("update test", err)
	}
	if n == 0 {
		return nil, common.NotFoundErrorf("test %d not found in session %d", testID, sessionID)
	}
	r.logger.Info("test updated", "session_id", sessionID, "test_id", testID)
	return r.Get(ctx, sessionID, testID)
}

func (r *bloodTestRepository) Trend(ctx context.Context, userID int, testName string) ([]entity.TrendPoint, error) {
	b := entsql.Dialect(r.drv.Dialect())
	t := b.Table(bloodTestsTable).As("t")
	s := b.Table(sessionsTable).As("s")
	sel := b.Select(t.C("id"), s.C("id"), s.C("test_date"), t.C("test_name"), t.C("value"), t.C("unit")).
		From(t).
		Join(s).On(t.C("session_id"), s.C("id")).
		Where(entsql.EQ(s.C("user_id"), userID))

	var out []entity.TrendPoint
	err := queryRows(ctx, r.drv, sel, func(rows *entsql.Rows) error {
		var (
			p     entity.TrendPoint
			value stdsql.NullFloat64
			unit  stdsql.NullString
		)
		if err := rows.Scan(&p.TestID, &p.SessionID, &p.TestDate, &p.TestName, &value, &unit); err != nil {
			return err
		}
		// Stored names may predate canonical folding, so match on the canonical form.
		if !constants.SameTest(p.TestName, testName) {
			return nil
		}
		p.Value = nullFloat(value)
		p.Unit = nullString(unit)
		out = append(out, p)
		return nil
	})
	if err != nil {
		r.logger.Error("failed to load trend", "user_id", userID, "test_name", testName, "error", err)
		return nil, dbError("load trend", err)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].TestDate.Equal(out[j].TestDate) {
			return out[i].TestDate.Before(out[j].TestDate)
		}
		return out[i].SessionID < out[j].SessionID
	})
	return out, nil
}

func listTests(ctx context.Context, q dialect.ExecQuerier, d string, where *entsql.Predicate) ([]entity.BloodTest, error) {
	sel := entsql.Dialect(d).
		Select(bloodTestColumns...).
		From(entsql.Table(bloodTestsTable)).
		OrderBy("id")
	if where != nil {
		sel = sel.Where(where)
	}

	tests := []entity.BloodTest{}
	err := queryRows(ctx, q, sel, func(rows *entsql.Rows) error {
		var (
			t     entity.BloodTest
			value stdsql.NullFloat64
			unit  stdsql.NullString
			rng   stdsql.NullString
		)
		if err := rows.Scan(&t.ID, &t.SessionID, &t.TestName, &value, &unit, &rng); err != nil {
			return err
		}
		t.Value = nullFloat(value)
		t.Unit = nullString(unit)
		t.NormalRange = nullString(rng)
		tests = append(tests, t)
		return nil
	})
	return tests, err
}
