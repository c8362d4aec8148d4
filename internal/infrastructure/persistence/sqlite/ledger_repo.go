package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/alem-hub/alem-economy/internal/domain/ledger"
)

// EntryRepository implements ledger.Repository for SQLite.
type EntryRepository struct {
	q Querier
}

// NewEntryRepository creates a new EntryRepository.
func NewEntryRepository(q Querier) *EntryRepository {
	return &EntryRepository{q: q}
}

const entryColumns = `seq, id, account_id, currency, amount, kind, source, source_id, note, created_at`

// Append stores the entry and sets e.Seq from the row id.
func (r *EntryRepository) Append(ctx context.Context, e *ledger.Entry) error {
	res, err := r.q.ExecContext(ctx, `
		INSERT INTO ledger_entries (id, account_id, currency, amount, kind, source, source_id, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		e.AccountID,
		string(e.Currency),
		int64(e.Amount),
		string(e.Kind),
		string(e.Source),
		e.SourceID,
		e.Note,
		toNanos(e.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read ledger seq: %w", err)
	}
	e.Seq = seq
	return nil
}

// Sum returns the balance and the newest seq.
func (r *EntryRepository) Sum(ctx context.Context, accountID string, currency ledger.Currency) (ledger.Amount, int64, error) {
	var sum, last int64
	err := r.q.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0), COALESCE(MAX(seq), 0)
		FROM ledger_entries
		WHERE account_id = ? AND currency = ?`,
		accountID, string(currency)).Scan(&sum, &last)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to sum ledger entries: %w", err)
	}
	return ledger.Amount(sum), last, nil
}

// LastSeq returns the newest seq, or 0.
func (r *EntryRepository) LastSeq(ctx context.Context, accountID string, currency ledger.Currency) (int64, error) {
	var last int64
	err := r.q.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM ledger_entries WHERE account_id = ? AND currency = ?`,
		accountID, string(currency)).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("failed to read last seq: %w", err)
	}
	return last, nil
}

// History returns entries newest first.
func (r *EntryRepository) History(ctx context.Context, accountID string, currency ledger.Currency, opts ledger.HistoryOptions) ([]*ledger.Entry, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE account_id = ? AND currency = ? AND (? = 0 OR seq < ?)
		ORDER BY seq DESC
		LIMIT ?`,
		accountID, string(currency), opts.BeforeSeq, opts.BeforeSeq, opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	return collectEntries(rows)
}

// ListBySource returns the account's entries with the given source, oldest first.
func (r *EntryRepository) ListBySource(ctx context.Context, accountID string, source ledger.Source, sourceID string) ([]*ledger.Entry, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE account_id = ? AND source = ? AND source_id = ?
		ORDER BY seq`,
		accountID, string(source), sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries by source: %w", err)
	}
	return collectEntries(rows)
}

func collectEntries(rows *sql.Rows) ([]*ledger.Entry, error) {
	defer rows.Close()

	var entries []*ledger.Entry
	for rows.Next() {
		var (
			e                      ledger.Entry
			currency, kind, source string
			amount, createdAt      int64
		)
		if err := rows.Scan(&e.Seq, &e.ID, &e.AccountID, &currency, &amount, &kind, &source,
			&e.SourceID, &e.Note, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		e.Currency = ledger.Currency(currency)
		e.Amount = ledger.Amount(amount)
		e.Kind = ledger.Kind(kind)
		e.Source = ledger.Source(source)
		e.CreatedAt = fromNanos(createdAt)
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ledger entries: %w", err)
	}
	return entries, nil
}

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
	var amount, refreshedAt int64
	err := c.q.QueryRowContext(ctx, `
		SELECT amount, seq, refreshed_at FROM balance_cache WHERE account_id = ? AND currency = ?`,
		accountID, string(currency)).Scan(&amount, &snap.Seq, &refreshedAt)
	if err != nil {
		if notFound(err) {
			return ledger.Snapshot{}, false, nil
		}
		return ledger.Snapshot{}, false, fmt.Errorf("failed to read balance cache: %w", err)
	}
	snap.Amount = ledger.Amount(amount)
	snap.RefreshedAt = fromNanos(refreshedAt)
	return snap, true, nil
}

// Put stores the snapshot.
func (c *BalanceCache) Put(ctx context.Context, snap ledger.Snapshot) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO balance_cache (account_id, currency, amount, seq, refreshed_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (account_id, currency) DO UPDATE SET
			amount = excluded.amount,
			seq = excluded.seq,
			refreshed_at = excluded.refreshed_at`,
		snap.AccountID, string(snap.Currency), int64(snap.Amount), snap.Seq, toNanos(snap.RefreshedAt))
	if err != nil {
		return fmt.Errorf("failed to write balance cache: %w", err)
	}
	return nil
}
