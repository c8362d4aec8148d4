package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/alem-economy/internal/domain/ledger"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEDGER ENTRY REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// EntryRepository implements ledger.Repository for PostgreSQL.
type EntryRepository struct {
	q Querier
}

// NewEntryRepository creates a new EntryRepository.
func NewEntryRepository(q Querier) *EntryRepository {
	return &EntryRepository{q: q}
}

const entryColumns = `seq, id, account_id, currency, amount, kind, source, source_id, note, created_at`

// Append stores the entry and sets e.Seq.
func (r *EntryRepository) Append(ctx context.Context, e *ledger.Entry) error {
	query := `
		INSERT INTO ledger_entries (id, account_id, currency, amount, kind, source, source_id, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING seq
	`
	err := r.q.QueryRow(ctx, query,
		e.ID,
		e.AccountID,
		string(e.Currency),
		int64(e.Amount),
		string(e.Kind),
		string(e.Source),
		e.SourceID,
		e.Note,
		e.CreatedAt,
	).Scan(&e.Seq)
	if err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return nil
}

// Sum returns the balance and the newest seq.
func (r *EntryRepository) Sum(ctx context.Context, accountID string, currency ledger.Currency) (ledger.Amount, int64, error) {
	var sum, last int64
	err := r.q.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)::BIGINT, COALESCE(MAX(seq), 0)
		FROM ledger_entries
		WHERE account_id = $1 AND currency = $2
	`, accountID, string(currency)).Scan(&sum, &last)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to sum ledger entries: %w", err)
	}
	return ledger.Amount(sum), last, nil
}

// LastSeq returns the newest seq, or 0.
func (r *EntryRepository) LastSeq(ctx context.Context, accountID string, currency ledger.Currency) (int64, error) {
	var last int64
	err := r.q.QueryRow(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM ledger_entries WHERE account_id = $1 AND currency = $2
	`, accountID, string(currency)).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("failed to read last seq: %w", err)
	}
	return last, nil
}

// History returns entries newest first.
func (r *EntryRepository) History(ctx context.Context, accountID string, currency ledger.Currency, opts ledger.HistoryOptions) ([]*ledger.Entry, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE account_id = $1 AND currency = $2 AND ($3::BIGINT = 0 OR seq < $3)
		ORDER BY seq DESC
		LIMIT $4
	`, accountID, string(currency), opts.BeforeSeq, opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	return collectEntries(rows)
}

// ListBySource returns the account's entries with the given source, oldest first.
func (r *EntryRepository) ListBySource(ctx context.Context, accountID string, source ledger.Source, sourceID string) ([]*ledger.Entry, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE account_id = $1 AND source = $2 AND source_id = $3
		ORDER BY seq
	`, accountID, string(source), sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries by source: %w", err)
	}
	return collectEntries(rows)
}

func collectEntries(rows pgx.Rows) ([]*ledger.Entry, error) {
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*ledger.Entry, error) {
		var (
			e                      ledger.Entry
			currency, kind, source string
			amount                 int64
		)
		if err := row.Scan(&e.Seq, &e.ID, &e.AccountID, &currency, &amount, &kind, &source,
			&e.SourceID, &e.Note, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Currency = ledger.Currency(currency)
		e.Amount = ledger.Amount(amount)
		e.Kind = ledger.Kind(kind)
		e.Source = ledger.Source(source)
		return &e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan ledger entries: %w", err)
	}
	return entries, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// BALANCE CACHE
// ══════════════════════════════════════════════════════════════════════════════

// BalanceCache implements ledger.BalanceCache in the balance_cache table.
type BalanceCache struct {
	q Querier
}

// NewBalanceCache creates a new BalanceCache.
func NewBalanceCache(q Querier) *BalanceCache {
	return &BalanceCache{q: q}
}

// Get returns the cached snapshot.
func (c *BalanceCache) Get(ctx context.Context, accountID string, currency ledger.Currency) (ledger.Snapshot, bool, error) {
	snap := ledger.Snapshot{AccountID: accountID, Currency: currency}
	var amount int64
	err := c.q.QueryRow(ctx, `
		SELECT amount, seq, refreshed_at FROM balance_cache WHERE account_id = $1 AND currency = $2
	`, accountID, string(currency)).Scan(&amount, &snap.Seq, &snap.RefreshedAt)
	if err != nil {
		if notFound(err) {
			return ledger.Snapshot{}, false, nil
		}
		return ledger.Snapshot{}, false, fmt.Errorf("failed to read balance cache: %w", err)
	}
	snap.Amount = ledger.Amount(amount)
	return snap, true, nil
}

// Put stores the snapshot.
func (c *BalanceCache) Put(ctx context.Context, snap ledger.Snapshot) error {
	_, err := c.q.Exec(ctx, `
		INSERT INTO balance_cache (account_id, currency, amount, seq, refreshed_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (account_id, currency) DO UPDATE SET
			amount = EXCLUDED.amount,
			seq = EXCLUDED.seq,
			refreshed_at = EXCLUDED.refreshed_at
	`, snap.AccountID, string(snap.Currency), int64(snap.Amount), snap.Seq, snap.RefreshedAt)
	if err != nil {
		return fmt.Errorf("failed to write balance cache: %w", err)
	}
	return nil
}
