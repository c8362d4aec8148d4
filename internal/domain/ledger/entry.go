package ledger

import (
	"fmt"
	"time"

	"github.com/alem-hub/alem-economy/internal/domain/shared"
)

// Kind is the type of a ledger entry.
type Kind string

const (
	KindEarn    Kind = "EARN"
	KindSpend   Kind = "SPEND"
	KindRefund  Kind = "REFUND"
	KindAdjust  Kind = "ADJUST"
	KindConvert Kind = "CONVERT"
	KindGrant   Kind = "GRANT"
)

// signAllowed reports whether a signed amount is legal for the kind.
func (k Kind) signAllowed(a Amount) bool {
	switch k {
	case KindEarn, KindRefund, KindGrant:
		return a > 0
	case KindSpend:
		return a < 0
	case KindAdjust, KindConvert:
		return a != 0
	default:
		return false
	}
}

// Source says what caused an entry.
type Source string

const (
	SourceProgress    Source = "PROGRESS"
	SourcePurchase    Source = "PURCHASE"
	SourceAchievement Source = "ACHIEVEMENT"
	SourceAdmin       Source = "ADMIN"
	SourceQuiz        Source = "QUIZ"
	SourceConvert     Source = "CONVERT"
	SourceImport      Source = "IMPORT"
	SourceBeltUp      Source = "BELT_UP"
)

// Entry is one immutable ledger record. Corrections are new entries.
type Entry struct {
	ID        string    `json:"id"`
	Seq       int64     `json:"seq"`
	AccountID string    `json:"account_id"`
	Currency  Currency  `json:"currency"`
	Amount    Amount    `json:"amount"`
	Kind      Kind      `json:"kind"`
	Source    Source    `json:"source"`
	SourceID  string    `json:"source_id,omitempty"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the entry against the currency rules.
func (e *Entry) Validate() error {
	if e.AccountID == "" {
		return shared.NewDomainError("ledger", "Validate", shared.ErrInvalidInput, "entry has no account")
	}
	if !e.Currency.IsValid() {
		return shared.NewDomainError("ledger", "Validate", shared.ErrCurrencyRule,
			fmt.Sprintf("unknown currency %q", e.Currency))
	}
	if !e.Kind.signAllowed(e.Amount) {
		return shared.NewDomainError("ledger", "Validate", shared.ErrInvalidAmount,
			fmt.Sprintf("amount %d is not valid for a %s entry", e.Amount, e.Kind))
	}
	if !e.Currency.Allows(e.Kind, e.Source) {
		return shared.NewDomainError("ledger", "Validate", shared.ErrCurrencyRule,
			fmt.Sprintf("%s entries from %s are not allowed in %s", e.Kind, e.Source, e.Currency))
	}
	return nil
}

// Display formats the amount in its currency.
func (e *Entry) Display() string {
	return e.Currency.Format(e.Amount)
}
