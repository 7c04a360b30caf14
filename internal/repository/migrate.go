package repository

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

const (
	usersTable      = "users"
	sessionsTable   = "test_sessions"
	bloodTestsTable = "blood_tests"
)

var (
	// UsersColumns holds the columns for the "users" table.
	UsersColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "name", Type: field.TypeString, Unique: true},
		{Name: "height", Type: field.TypeFloat64, Nullable: true},
		{Name: "created_at", Type: field.TypeTime},
	}
	// UsersTable holds the schema information for the "users" table.
	UsersTable = &schema.Table{
		Name:       usersTable,
		Columns:    UsersColumns,
		PrimaryKey: []*schema.Column{UsersColumns[0]},
	}

	// TestSessionsColumns holds the columns for the "test_sessions" table.
	TestSessionsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "test_date", Type: field.TypeTime, SchemaType: map[string]string{dialect.Postgres: "date"}},
		{Name: "location", Type: field.TypeString, Nullable: true},
		{Name: "weight", Type: field.TypeFloat64, Nullable: true},
		{Name: "source_file", Type: field.TypeString, Default: ""},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "user_id", Type: field.TypeInt},
	}
	// TestSessionsTable holds the schema information for the "test_sessions" table.
	TestSessionsTable = &schema.Table{
		Name:       sessionsTable,
		Columns:    TestSessionsColumns,
		PrimaryKey: []*schema.Column{TestSessionsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "test_sessions_users_sessions",
				Columns:    []*schema.Column{TestSessionsColumns[6]},
				RefColumns: []*schema.Column{UsersColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{
				Name:    "testsession_user_id_test_date",
				Unique:  false,
				Columns: []*schema.Column{TestSessionsColumns[6], TestSessionsColumns[1]},
			},
		},
	}

	// BloodTestsColumns holds the columns for the "blood_tests" table.
	BloodTestsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "test_name", Type: field.TypeString},
		{Name: "value", Type: field.TypeFloat64, Nullable: true},
		{Name: "unit", Type: field.TypeString, Nullable: true},
		{Name: "normal_range", Type: field.TypeString, Nullable: true},
		{Name: "session_id", Type: field.TypeInt},
	}
	// BloodTestsTable holds the schema information for the "blood_tests" table.
	BloodTestsTable = &schema.Table{
		Name:       bloodTestsTable,
		Columns:    BloodTestsColumns,
		PrimaryKey: []*schema.Column{BloodTestsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "blood_tests_test_sessions_blood_tests",
				Columns:    []*schema.Column{BloodTestsColumns[5]},
				RefColumns: []*schema.Column{TestSessionsColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{
				Name:    "bloodtest_session_id",
				Unique:  false,
				Columns: []*schema.Column{BloodTestsColumns[5]},
			},
		},
	}

	// Tables holds all the tables in the schema.
	Tables = []*schema.Table{
		UsersTable,
		TestSessionsTable,
		BloodTestsTable,
	}
)

func init() {
	TestSessionsTable.ForeignKeys[0].RefTable = UsersTable
	BloodTestsTable.ForeignKeys[0].RefTable = TestSessionsTable
}

// Migrate creates missing tables, columns and indexes. It never drops anything.
func Migrate(ctx context.Context, drv *entsql.Driver) error {
	m, err := schema.NewMigrate(drv)
	if err != nil {
		return fmt.Errorf("init migrate: %w", err)
	}
	if err := m.Create(ctx, Tables...); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}
