package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// migration is one schema version. SQLite executes one statement at a time,
// so each migration is a list of statements.
type migration struct {
	version    int
	name       string
	statements []string
}

func migrations() []migration {
	return []migration{
		{version: 1, name: "create_accounts", statements: []string{
			`CREATE TABLE IF NOT EXISTS accounts (
				id                       TEXT PRIMARY KEY,
				path                     TEXT NOT NULL,
				track                    TEXT NOT NULL,
				stage                    INTEGER NOT NULL CHECK (stage >= 1),
				unit                     INTEGER NOT NULL CHECK (unit >= 1),
				curriculum_complete      INTEGER NOT NULL DEFAULT 0,
				locked                   INTEGER NOT NULL DEFAULT 0,
				lessons_completed        INTEGER NOT NULL DEFAULT 0,
				lessons_since_conversion INTEGER NOT NULL DEFAULT 0,
				quiz_answered            INTEGER NOT NULL DEFAULT 0,
				quiz_correct             INTEGER NOT NULL DEFAULT 0,
				purchases_made           INTEGER NOT NULL DEFAULT 0,
				total_earned             INTEGER NOT NULL DEFAULT 0,
				total_spent              INTEGER NOT NULL DEFAULT 0,
				alternation_flag         INTEGER NOT NULL DEFAULT 0,
				created_at               INTEGER NOT NULL,
				updated_at               INTEGER NOT NULL
			)`,
		}},
		{version: 2, name: "create_ledger", statements: []string{
			`CREATE TABLE IF NOT EXISTS ledger_entries (
				seq        INTEGER PRIMARY KEY AUTOINCREMENT,
				id         TEXT NOT NULL UNIQUE,
				account_id TEXT NOT NULL REFERENCES accounts(id),
				currency   TEXT NOT NULL,
				amount     INTEGER NOT NULL CHECK (amount <> 0),
				kind       TEXT NOT NULL,
				source     TEXT NOT NULL,
				source_id  TEXT NOT NULL DEFAULT '',
				note       TEXT NOT NULL DEFAULT '',
				created_at INTEGER NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_ledger_account_currency_seq
				ON ledger_entries(account_id, currency, seq)`,
			`CREATE INDEX IF NOT EXISTS idx_ledger_source
				ON ledger_entries(account_id, source, source_id)`,
			`CREATE TRIGGER IF NOT EXISTS trg_ledger_entries_no_update
				BEFORE UPDATE ON ledger_entries
				BEGIN SELECT RAISE(ABORT, 'ledger entries are append-only'); END`,
			`CREATE TRIGGER IF NOT EXISTS trg_ledger_entries_no_delete
				BEFORE DELETE ON ledger_entries
				BEGIN SELECT RAISE(ABORT, 'ledger entries are append-only'); END`,
			`CREATE TABLE IF NOT EXISTS balance_cache (
				account_id   TEXT NOT NULL REFERENCES accounts(id),
				currency     TEXT NOT NULL,
				amount       INTEGER NOT NULL,
				seq          INTEGER NOT NULL,
				refreshed_at INTEGER NOT NULL,
				PRIMARY KEY (account_id, currency)
			)`,
		}},
		{version: 3, name: "create_achievements", statements: []string{
			`CREATE TABLE IF NOT EXISTS achievements (
				id          TEXT PRIMARY KEY,
				code        TEXT NOT NULL UNIQUE,
				name        TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				category    TEXT NOT NULL,
				rarity      TEXT NOT NULL DEFAULT 'COMMON',
				icon        TEXT NOT NULL DEFAULT '',
				reward      INTEGER NOT NULL DEFAULT 0 CHECK (reward >= 0),
				manual_only INTEGER NOT NULL DEFAULT 0,
				active      INTEGER NOT NULL DEFAULT 1,
				hidden      INTEGER NOT NULL DEFAULT 0,
				criteria    TEXT,
				created_at  INTEGER NOT NULL,
				updated_at  INTEGER NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS achievement_progress (
				account_id           TEXT NOT NULL REFERENCES accounts(id),
				achievement_id       TEXT NOT NULL REFERENCES achievements(id) ON DELETE CASCADE,
				unlocked             INTEGER NOT NULL DEFAULT 0,
				unlocked_at          INTEGER,
				percent              INTEGER NOT NULL DEFAULT 0 CHECK (percent BETWEEN 0 AND 100),
				seen                 INTEGER NOT NULL DEFAULT 0,
				manually_awarded     INTEGER NOT NULL DEFAULT 0,
				awarded_by           TEXT NOT NULL DEFAULT '',
				is_leaderboard_badge INTEGER NOT NULL DEFAULT 0,
				created_at           INTEGER NOT NULL,
				updated_at           INTEGER NOT NULL,
				PRIMARY KEY (account_id, achievement_id)
			)`,
		}},
	}
}

// Migrate applies every migration newer than the database's user_version and
// returns how many were applied.
func Migrate(ctx context.Context, db *sql.DB) (int, error) {
	var current int
	if err := db.QueryRowContext(ctx, `PRAGMA user_version`).Scan(&current); err != nil {
		return 0, fmt.Errorf("sqlite: read schema version: %w", err)
	}

	applied := 0
	for _, m := range migrations() {
		if m.version <= current {
			continue
		}
		if err := applyMigration(ctx, db, m); err != nil {
			return applied, err
		}
		applied++
	}
	return applied, nil
}

func applyMigration(ctx context.Context, db *sql.DB, m migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin migration %d: %w", m.version, err)
	}
	defer tx.Rollback()

	for _, stmt := range m.statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: migration %d (%s): %w", m.version, m.name, err)
		}
	}
	// PRAGMA does not accept bound parameters.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d`, m.version)); err != nil {
		return fmt.Errorf("sqlite: set schema version %d: %w", m.version, err)
	}
	return tx.Commit()
}
