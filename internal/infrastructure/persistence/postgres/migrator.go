package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Migration is one forward-only schema step. Ledger tables are append-only,
// so there is no down path.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// migrationLockID keys the advisory lock that serializes concurrent migrators.
const migrationLockID int64 = 0x4c4544474552 // "LEDGER"

const createVersionsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Migrator applies the embedded migrations.
type Migrator struct {
	conn       *Connection
	migrations []Migration
}

// NewMigrator creates a migrator over the embedded migrations.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{conn: conn, migrations: GetMigrations()}
}

// checkMigrations rejects gaps, duplicates and empty steps.
func checkMigrations(migs []Migration) error {
	for i, m := range migs {
		if m.Version != i+1 {
			return fmt.Errorf("%w: migration #%d has version %d, want %d", ErrMigrationFailed, i+1, m.Version, i+1)
		}
		if m.Name == "" || m.SQL == "" {
			return fmt.Errorf("%w: migration %d is incomplete", ErrMigrationFailed, m.Version)
		}
	}
	return nil
}

// Migrate applies pending migrations, one transaction each, and returns how
// many it applied. Workers starting together wait on an advisory lock and
// re-check the version inside the transaction, so every step runs once.
func (m *Migrator) Migrate(ctx context.Context) (int, error) {
	if err := checkMigrations(m.migrations); err != nil {
		return 0, err
	}
	if _, err := m.conn.Exec(ctx, createVersionsTable); err != nil {
		return 0, fmt.Errorf("%w: versions table: %w", ErrMigrationFailed, err)
	}

	count := 0
	for _, mig := range m.migrations {
		applied := false
		err := m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, migrationLockID); err != nil {
				return err
			}
			var done bool
			err := tx.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, mig.Version).Scan(&done)
			if err != nil || done {
				return err
			}
			if _, err := tx.Exec(ctx, mig.SQL); err != nil {
				return err
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, mig.Version, mig.Name); err != nil {
				return err
			}
			applied = true
			return nil
		})
		if err != nil {
			return count, fmt.Errorf("%w: version %d (%s): %w", ErrMigrationFailed, mig.Version, mig.Name, err)
		}
		if applied {
			count++
		}
	}
	return count, nil
}
