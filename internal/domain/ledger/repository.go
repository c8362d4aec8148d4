package ledger

import (
	"context"
	"time"
)

// Repository is the append-only entry store. Implementations must never
// update or delete entries.
type Repository interface {
	// Append stores a new entry and assigns e.Seq. Seq values grow monotonically.
	Append(ctx context.Context, e *Entry) error

	// Sum returns the sum of all entries of the account in the currency and the
	// Seq of the newest one (0 when there are none).
	Sum(ctx context.Context, accountID string, currency Currency) (Amount, int64, error)

	// LastSeq returns the Seq of the newest entry, or 0.
	LastSeq(ctx context.Context, accountID string, currency Currency) (int64, error)

	// History returns entries newest first. BeforeSeq > 0 restricts to older entries.
	History(ctx context.Context, accountID string, currency Currency, opts HistoryOptions) ([]*Entry, error)

	// ListBySource returns all entries of the account with the given source, oldest first.
	ListBySource(ctx context.Context, accountID string, source Source, sourceID string) ([]*Entry, error)
}

// Snapshot is a cached balance. It is trusted only while Seq equals the Seq of
// the newest entry for the same account and currency.
type Snapshot struct {
	AccountID   string
	Currency    Currency
	Amount      Amount
	Seq         int64
	RefreshedAt time.Time
}

// BalanceCache stores derived balances.
type BalanceCache interface {
	// Get returns the cached snapshot. ok is false when nothing is cached.
	Get(ctx context.Context, accountID string, currency Currency) (snap Snapshot, ok bool, err error)

	// Put stores the snapshot, replacing any previous one.
	Put(ctx context.Context, snap Snapshot) error
}

// HistoryOptions controls history paging.
type HistoryOptions struct {
	Limit     int
	BeforeSeq int64
}

// HistoryPage is one page of history. NextCursor is the BeforeSeq value for the
// next page, or 0 when there are no more entries.
type HistoryPage struct {
	Entries    []*Entry
	NextCursor int64
}
