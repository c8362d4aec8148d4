package uow

import (
	"context"
	"fmt"
	"time"

	"github.com/alem-hub/alem-economy/internal/domain/ledger"
	"github.com/alem-hub/alem-economy/internal/domain/shared"
)

// Session is what a command body sees inside one transaction attempt.
type Session struct {
	Tx      Tx
	Ledger  *ledger.Ledger
	Effects *Effects
	Now     time.Time

	entries []*ledger.Entry
}

// NewSession binds a ledger to the transaction's repositories.
func NewSession(tx Tx, effects *Effects, newID ledger.IDGenerator, now time.Time) *Session {
	return &Session{
		Tx:      tx,
		Ledger:  ledger.New(tx.Entries(), tx.Balances(), newID, ledger.WithClock(func() time.Time { return now })),
		Effects: effects,
		Now:     now,
	}
}

// Note registers entries written in this session and queues an
// EntryRecordedEvent for each, carrying the balance after the entry.
func (s *Session) Note(ctx context.Context, entries ...*ledger.Entry) error {
	for _, e := range entries {
		if e == nil {
			continue
		}
		balance, err := s.Ledger.Balance(ctx, e.AccountID, e.Currency)
		if err != nil {
			return fmt.Errorf("session: read balance: %w", err)
		}
		s.entries = append(s.entries, e)
		s.Effects.Emit(shared.EntryRecordedEvent{
			BaseEvent: shared.NewBaseEvent(shared.EventEntryRecorded, e.AccountID, s.Now),
			EntryID:   e.ID,
			Currency:  string(e.Currency),
			Amount:    int64(e.Amount),
			Kind:      string(e.Kind),
			Source:    string(e.Source),
			SourceID:  e.SourceID,
			Balance:   int64(balance),
		})
	}
	return nil
}

// Entries returns the entries registered with Note, in order.
func (s *Session) Entries() []*ledger.Entry {
	return s.entries
}
