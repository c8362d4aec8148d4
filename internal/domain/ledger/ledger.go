package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alem-hub/alem-economy/internal/domain/shared"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// IDGenerator returns a new unique entry ID.
type IDGenerator func() string

// Ledger records entries and maintains the balance cache. A Ledger is bound to
// the repositories of one transaction; callers serialize access per account.
// Lock state is checked by callers, the ledger does not know about it.
type Ledger struct {
	entries Repository
	cache   BalanceCache
	newID   IDGenerator
	now     func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// New creates a ledger over the given stores.
func New(entries Repository, cache BalanceCache, newID IDGenerator, opts ...Option) *Ledger {
	l := &Ledger{
		entries: entries,
		cache:   cache,
		newID:   newID,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ═══════════════════════════════════════════════════════════════════════════
// Recording
// ═══════════════════════════════════════════════════════════════════════════

// RecordEarn credits a positive amount of primary currency.
func (l *Ledger) RecordEarn(ctx context.Context, accountID string, amount Amount, source Source, sourceID, note string) (*Entry, error) {
	return l.record(ctx, "RecordEarn", &Entry{
		AccountID: accountID, Currency: Primary, Amount: amount,
		Kind: KindEarn, Source: source, SourceID: sourceID, Note: note,
	})
}

// RecordSpend debits a positive amount of primary currency. It fails with
// ErrInsufficientFunds, recording nothing, when the balance is too low.
func (l *Ledger) RecordSpend(ctx context.Context, accountID string, amount Amount, source Source, sourceID, note string) (*Entry, error) {
	if amount <= 0 {
		return nil, shared.NewDomainError("ledger", "RecordSpend", shared.ErrInvalidAmount,
			fmt.Sprintf("spend amount must be positive, got %d", amount))
	}
	balance, err := l.Balance(ctx, accountID, Primary)
	if err != nil {
		return nil, err
	}
	if amount > balance {
		return nil, shared.NewDomainError("ledger", "RecordSpend", shared.ErrInsufficientFunds,
			fmt.Sprintf("balance %s is less than %s", Primary.Format(balance), Primary.Format(amount)))
	}
	return l.record(ctx, "RecordSpend", &Entry{
		AccountID: accountID, Currency: Primary, Amount: -amount,
		Kind: KindSpend, Source: source, SourceID: sourceID, Note: note,
	})
}

// RecordRefund credits back a positive amount of primary currency.
func (l *Ledger) RecordRefund(ctx context.Context, accountID string, amount Amount, source Source, sourceID, note string) (*Entry, error) {
	return l.record(ctx, "RecordRefund", &Entry{
		AccountID: accountID, Currency: Primary, Amount: amount,
		Kind: KindRefund, Source: source, SourceID: sourceID, Note: note,
	})
}

// RecordAdjust records a signed correction. Adjustments may take a balance
// below zero.
func (l *Ledger) RecordAdjust(ctx context.Context, accountID string, currency Currency, delta Amount, source Source, sourceID, note string) (*Entry, error) {
	return l.record(ctx, "RecordAdjust", &Entry{
		AccountID: accountID, Currency: currency, Amount: delta,
		Kind: KindAdjust, Source: source, SourceID: sourceID, Note: note,
	})
}

// RecordGrant credits legacy points.
func (l *Ledger) RecordGrant(ctx context.Context, accountID string, amount Amount, source Source, sourceID, note string) (*Entry, error) {
	return l.record(ctx, "RecordGrant", &Entry{
		AccountID: accountID, Currency: Legacy, Amount: amount,
		Kind: KindGrant, Source: source, SourceID: sourceID, Note: note,
	})
}

// Conversion is the pair of entries written by RecordConvert.
type Conversion struct {
	Debit  *Entry
	Credit *Entry
}

// RecordConvert debits rule.LegacyCost legacy points and credits
// rule.PrimaryCredit quarters. It does not check the trigger condition; see
// ConversionRule.Applies.
func (l *Ledger) RecordConvert(ctx context.Context, accountID string, rule ConversionRule) (Conversion, error) {
	if err := rule.Validate(); err != nil {
		return Conversion{}, err
	}
	legacy, err := l.Balance(ctx, accountID, Legacy)
	if err != nil {
		return Conversion{}, err
	}
	if legacy < rule.LegacyCost {
		return Conversion{}, shared.NewDomainError("ledger", "RecordConvert", shared.ErrInsufficientFunds,
			fmt.Sprintf("legacy balance %d is less than %d", legacy, rule.LegacyCost))
	}
	sourceID := l.newID()
	debit, err := l.record(ctx, "RecordConvert", &Entry{
		AccountID: accountID, Currency: Legacy, Amount: -rule.LegacyCost,
		Kind: KindConvert, Source: SourceConvert, SourceID: sourceID, Note: "legacy conversion",
	})
	if err != nil {
		return Conversion{}, err
	}
	credit, err := l.record(ctx, "RecordConvert", &Entry{
		AccountID: accountID, Currency: Primary, Amount: rule.PrimaryCredit,
		Kind: KindConvert, Source: SourceConvert, SourceID: sourceID, Note: "legacy conversion",
	})
	if err != nil {
		return Conversion{}, err
	}
	return Conversion{Debit: debit, Credit: credit}, nil
}

func (l *Ledger) record(ctx context.Context, op string, e *Entry) (*Entry, error) {
	e.ID = l.newID()
	e.CreatedAt = l.now()
	if err := e.Validate(); err != nil {
		var de *shared.DomainError
		if errors.As(err, &de) {
			de.Op = op
		}
		return nil, err
	}

	balance, err := l.Balance(ctx, e.AccountID, e.Currency)
	if err != nil {
		return nil, err
	}
	if err := l.entries.Append(ctx, e); err != nil {
		return nil, fmt.Errorf("ledger: append entry: %w", err)
	}
	if err := l.cache.Put(ctx, Snapshot{
		AccountID:   e.AccountID,
		Currency:    e.Currency,
		Amount:      balance + e.Amount,
		Seq:         e.Seq,
		RefreshedAt: e.CreatedAt,
	}); err != nil {
		return nil, fmt.Errorf("ledger: refresh balance cache: %w", err)
	}
	return e, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Reading
// ═══════════════════════════════════════════════════════════════════════════

// Balance returns the balance of the account. The cached value is used when it
// covers the newest entry; otherwise the balance is recomputed and the cache
// refreshed.
func (l *Ledger) Balance(ctx context.Context, accountID string, currency Currency) (Amount, error) {
	snap, ok, err := l.cache.Get(ctx, accountID, currency)
	if err != nil {
		return 0, fmt.Errorf("ledger: read balance cache: %w", err)
	}
	if ok {
		last, err := l.entries.LastSeq(ctx, accountID, currency)
		if err != nil {
			return 0, fmt.Errorf("ledger: read last seq: %w", err)
		}
		if last == snap.Seq {
			return snap.Amount, nil
		}
	}
	fresh, err := l.Refresh(ctx, accountID, currency)
	if err != nil {
		return 0, err
	}
	return fresh.Amount, nil
}

// Refresh recomputes the balance from entries and stores it in the cache.
func (l *Ledger) Refresh(ctx context.Context, accountID string, currency Currency) (Snapshot, error) {
	sum, last, err := l.entries.Sum(ctx, accountID, currency)
	if err != nil {
		return Snapshot{}, fmt.Errorf("ledger: sum entries: %w", err)
	}
	snap := Snapshot{
		AccountID:   accountID,
		Currency:    currency,
		Amount:      sum,
		Seq:         last,
		RefreshedAt: l.now(),
	}
	if err := l.cache.Put(ctx, snap); err != nil {
		return Snapshot{}, fmt.Errorf("ledger: refresh balance cache: %w", err)
	}
	return snap, nil
}

// Reconciliation compares a cached balance with the recomputed one.
type Reconciliation struct {
	AccountID string
	Currency  Currency
	Cached    Amount
	HadCache  bool
	Actual    Amount
}

// Drifted reports whether the cache disagreed with the entries.
func (r Reconciliation) Drifted() bool {
	return r.HadCache && r.Cached != r.Actual
}

// Reconcile recomputes the balance unconditionally and reports what the cache held.
func (l *Ledger) Reconcile(ctx context.Context, accountID string, currency Currency) (Reconciliation, error) {
	snap, ok, err := l.cache.Get(ctx, accountID, currency)
	if err != nil {
		return Reconciliation{}, fmt.Errorf("ledger: read balance cache: %w", err)
	}
	fresh, err := l.Refresh(ctx, accountID, currency)
	if err != nil {
		return Reconciliation{}, err
	}
	return Reconciliation{
		AccountID: accountID,
		Currency:  currency,
		Cached:    snap.Amount,
		HadCache:  ok,
		Actual:    fresh.Amount,
	}, nil
}

// History returns one page of entries, newest first.
func (l *Ledger) History(ctx context.Context, accountID string, currency Currency, opts HistoryOptions) (HistoryPage, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	entries, err := l.entries.History(ctx, accountID, currency, HistoryOptions{
		Limit:     limit + 1,
		BeforeSeq: opts.BeforeSeq,
	})
	if err != nil {
		return HistoryPage{}, fmt.Errorf("ledger: read history: %w", err)
	}

	page := HistoryPage{Entries: entries}
	if len(entries) > limit {
		page.Entries = entries[:limit]
		page.NextCursor = entries[limit-1].Seq
	}
	return page, nil
}
