package postgres

// GetMigrations returns the embedded schema steps in version order.
func GetMigrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_accounts", SQL: migration001},
		{Version: 2, Name: "create_ledger", SQL: migration002},
		{Version: 3, Name: "create_achievements", SQL: migration003},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE ACCOUNTS
// ══════════════════════════════════════════════════════════════════════════════

const migration001 = `
CREATE TABLE IF NOT EXISTS accounts (
    id TEXT PRIMARY KEY,
    path VARCHAR(64) NOT NULL,
    track VARCHAR(16) NOT NULL,
    stage INTEGER NOT NULL,
    unit INTEGER NOT NULL,
    curriculum_complete BOOLEAN NOT NULL DEFAULT FALSE,
    locked BOOLEAN NOT NULL DEFAULT FALSE,
    lessons_completed BIGINT NOT NULL DEFAULT 0,
    lessons_since_conversion INTEGER NOT NULL DEFAULT 0,
    quiz_answered BIGINT NOT NULL DEFAULT 0,
    quiz_correct BIGINT NOT NULL DEFAULT 0,
    purchases_made BIGINT NOT NULL DEFAULT 0,
    total_earned BIGINT NOT NULL DEFAULT 0,
    total_spent BIGINT NOT NULL DEFAULT 0,
    alternation_flag BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_position CHECK (stage >= 1 AND unit >= 1),
    CONSTRAINT valid_counters CHECK (
        lessons_completed >= 0 AND quiz_correct <= quiz_answered AND
        total_earned >= 0 AND total_spent >= 0
    )
);

CREATE INDEX IF NOT EXISTS idx_accounts_locked ON accounts(locked) WHERE locked;
`


// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE LEDGER
// Entries are append-only: a trigger rejects UPDATE and DELETE.
// ══════════════════════════════════════════════════════════════════════════════

const migration002 = `
CREATE TABLE IF NOT EXISTS ledger_entries (
    seq BIGSERIAL PRIMARY KEY,
    id TEXT NOT NULL UNIQUE,
    account_id TEXT NOT NULL REFERENCES accounts(id),
    currency VARCHAR(16) NOT NULL,
    amount BIGINT NOT NULL,
    kind VARCHAR(16) NOT NULL,
    source VARCHAR(16) NOT NULL,
    source_id TEXT NOT NULL DEFAULT '',
    note TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT nonzero_amount CHECK (amount <> 0)
);

CREATE INDEX IF NOT EXISTS idx_ledger_account_currency_seq
    ON ledger_entries(account_id, currency, seq DESC);
CREATE INDEX IF NOT EXISTS idx_ledger_source
    ON ledger_entries(account_id, source, source_id);

CREATE OR REPLACE FUNCTION ledger_entries_append_only() RETURNS trigger AS $$
BEGIN
    RAISE EXCEPTION 'ledger entries are append-only';
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS trg_ledger_entries_append_only ON ledger_entries;
CREATE TRIGGER trg_ledger_entries_append_only
    BEFORE UPDATE OR DELETE ON ledger_entries
    FOR EACH ROW EXECUTE FUNCTION ledger_entries_append_only();

CREATE TABLE IF NOT EXISTS balance_cache (
    account_id TEXT NOT NULL REFERENCES accounts(id),
    currency VARCHAR(16) NOT NULL,
    amount BIGINT NOT NULL,
    seq BIGINT NOT NULL,
    refreshed_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    PRIMARY KEY (account_id, currency)
);
`


// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CREATE ACHIEVEMENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration003 = `
CREATE TABLE IF NOT EXISTS achievements (
    id TEXT PRIMARY KEY,
    code VARCHAR(64) NOT NULL UNIQUE,
    name VARCHAR(128) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    category VARCHAR(16) NOT NULL,
    rarity VARCHAR(16) NOT NULL DEFAULT 'COMMON',
    icon TEXT NOT NULL DEFAULT '',
    reward BIGINT NOT NULL DEFAULT 0,
    manual_only BOOLEAN NOT NULL DEFAULT FALSE,
    active BOOLEAN NOT NULL DEFAULT TRUE,
    hidden BOOLEAN NOT NULL DEFAULT FALSE,
    criteria JSONB,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_reward CHECK (reward >= 0)
);

CREATE TABLE IF NOT EXISTS achievement_progress (
    account_id TEXT NOT NULL REFERENCES accounts(id),
    achievement_id TEXT NOT NULL REFERENCES achievements(id) ON DELETE CASCADE,
    unlocked BOOLEAN NOT NULL DEFAULT FALSE,
    unlocked_at TIMESTAMP WITH TIME ZONE,
    percent INTEGER NOT NULL DEFAULT 0,
    seen BOOLEAN NOT NULL DEFAULT FALSE,
    manually_awarded BOOLEAN NOT NULL DEFAULT FALSE,
    awarded_by TEXT NOT NULL DEFAULT '',
    is_leaderboard_badge BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    PRIMARY KEY (account_id, achievement_id),

    CONSTRAINT valid_percent CHECK (percent BETWEEN 0 AND 100)
);

CREATE INDEX IF NOT EXISTS idx_progress_unseen
    ON achievement_progress(account_id) WHERE unlocked AND NOT seen;
`

