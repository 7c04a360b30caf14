package repository

import (
	"context"
	stdsql "database/sql"
	"log/slog"
	"strings"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/bloodwork-tracker/internal/common"
	"github.com/joseph-ayodele/bloodwork-tracker/internal/entity"
)

type UserRepository interface {
	// Upsert returns the user with this exact name, creating it on first sighting.
	// A height supplied for an existing user is ignored.
	Upsert(ctx context.Context, name string, height *float64) (*entity.User, bool, error)
	Get(ctx context.Context, id int) (*entity.User, error)
}

type userRepository struct {
	drv    *entsql.Driver
	logger *slog.Logger
}

func NewUserRepository(drv *entsql.Driver, logger *slog.Logger) UserRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &userRepository{drv: drv, logger: logger}
}

// Upsert leans on the UNIQUE(name) constraint: concurrent first uploads for the same
// name both end up reading the single row that won the insert.
func (r *userRepository) Upsert(ctx context.Context, name string, height *float64) (*entity.User, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false, common.InvalidInputErrorf("user name is required")
	}

	ins := entsql.Dialect(r.drv.Dialect()).
		Insert(usersTable).
		Columns("name", "height", "created_at").
		Values(name, height, time.Now().UTC()).
		OnConflict(entsql.ConflictColumns("name"), entsql.DoNothing())
	created, err := execAffected(ctx, r.drv, ins)
	if err != nil {
		r.logger.Error("failed to upsert user", "name", name, "error", err)
		return nil, false, dbError("upsert user", err)
	}

	u, err := r.findOne(ctx, entsql.EQ("name", name))
	if err != nil {
		return nil, false, err
	}
	return u, created > 0, nil
}

func (r *userRepository) Get(ctx context.Context, id int) (*entity.User, error) {
	return r.findOne(ctx, entsql.EQ("id", id))
}

func (r *userRepository) findOne(ctx context.Context, where *entsql.Predicate) (*entity.User, error) {
	sel := entsql.Dialect(r.drv.Dialect()).
		Select("id", "name", "height", "created_at").
		From(entsql.Table(usersTable)).
		Where(where).
		Limit(1)

	var found *entity.User
	err := queryRows(ctx, r.drv, sel, func(rows *entsql.Rows) error {
		var (
			u      entity.User
			height stdsql.NullFloat64
		)
		if err := rows.Scan(&u.ID, &u.Name, &height, &u.CreatedAt); err != nil {
			return err
		}
		u.Height = nullFloat(height)
		found = &u
		return nil
	})
	if err != nil {
		return nil, dbError("load user", err)
	}
	if found == nil {
		return nil, common.NotFoundErrorf("user not found")
	}
	return found, nil
}
