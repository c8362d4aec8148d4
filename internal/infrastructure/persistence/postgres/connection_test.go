package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/alem-economy/internal/application/uow"
	"github.com/alem-hub/alem-economy/internal/domain/achievement"
)

func TestErrorHelpers(t *testing.T) {
	wrap := func(code string) error {
		return fmt.Errorf("commit error: %w", &pgconn.PgError{Code: code})
	}

	assert.True(t, IsUniqueViolation(wrap("23505")))
	assert.False(t, IsUniqueViolation(wrap("23503")))
	assert.True(t, IsForeignKeyViolation(wrap("23503")))
	assert.True(t, IsSerializationFailure(wrap("40001")))
	assert.True(t, IsSerializationFailure(wrap("40P01")))
	assert.False(t, IsSerializationFailure(errors.New("boom")))
	assert.True(t, IsNoRows(fmt.Errorf("scan: %w", pgx.ErrNoRows)))
}

func TestSerializationFailureIsConflict(t *testing.T) {
	err := fmt.Errorf("commit error: %w", &pgconn.PgError{Code: "40001"})
	require.True(t, IsSerializationFailure(err))

	// the unit of work maps it the same way
	mapped := (&UnitOfWork{}).mapErr(err)
	assert.True(t, uow.IsConflict(mapped))
	assert.False(t, uow.IsConflict((&UnitOfWork{}).mapErr(errors.New("other"))))
}

func TestMigrationsAreOrdered(t *testing.T) {
	migs := GetMigrations()
	require.NotEmpty(t, migs)
	require.NoError(t, checkMigrations(migs))
	assert.Contains(t, migs[1].SQL, "append-only")
	assert.True(t, strings.Contains(migs[2].SQL, "PRIMARY KEY (account_id, achievement_id)"))
}

func TestCheckMigrations(t *testing.T) {
	step := func(v int) Migration { return Migration{Version: v, Name: fmt.Sprintf("step_%d", v), SQL: "SELECT 1"} }

	tests := []struct {
		name string
		migs []Migration
	}{
		{"gap", []Migration{step(1), step(3)}},
		{"duplicate", []Migration{step(1), step(1)}},
		{"starts at two", []Migration{step(2)}},
		{"empty sql", []Migration{{Version: 1, Name: "blank"}}},
		{"no name", []Migration{{Version: 1, SQL: "SELECT 1"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, checkMigrations(tt.migs), ErrMigrationFailed)
		})
	}
	assert.NoError(t, checkMigrations(nil))
}

func TestMigrator_ClosedConnection(t *testing.T) {
	m := NewMigrator(&Connection{closed: true})
	applied, err := m.Migrate(context.Background())
	assert.Zero(t, applied)
	assert.ErrorIs(t, err, ErrMigrationFailed)
	assert.ErrorIs(t, err, ErrConnectionClosed)
}

func TestMigrator_RejectsBrokenSetBeforeTouchingTheDatabase(t *testing.T) {
	m := &Migrator{conn: &Connection{closed: true}, migrations: []Migration{{Version: 2, Name: "x", SQL: "SELECT 1"}}}
	_, err := m.Migrate(context.Background())
	assert.ErrorIs(t, err, ErrMigrationFailed)
	assert.NotErrorIs(t, err, ErrConnectionClosed)
}

func TestCriteriaParam(t *testing.T) {
	v, err := criteriaParam(nil)
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = criteriaParam(achievement.LessonsCompleted{Threshold: 5})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"LESSONS_COMPLETED","params":{"threshold":5}}`, v.(string))
}

func TestClosedConnection(t *testing.T) {
	c := &Connection{closed: true}
	assert.ErrorIs(t, c.Ping(context.Background()), ErrConnectionClosed)
	err := c.WithTx(context.Background(), DefaultTxOptions(), func(pgx.Tx) error { return nil })
	assert.ErrorIs(t, err, ErrConnectionClosed)
}
