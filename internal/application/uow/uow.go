// Package uow defines the transactional boundary the application layer runs
// every mutation in: one per-account lock, one storage transaction, and a set
// of side effects released only after commit.
package uow

import (
	"context"
	"errors"

	"github.com/alem-hub/alem-economy/internal/domain/account"
	"github.com/alem-hub/alem-economy/internal/domain/achievement"
	"github.com/alem-hub/alem-economy/internal/domain/ledger"
	"github.com/alem-hub/alem-economy/internal/domain/shared"
)

// Tx exposes repositories bound to one storage transaction.
type Tx interface {
	Accounts() account.Repository
	Entries() ledger.Repository
	Balances() ledger.BalanceCache
	Achievements() achievement.Repository
	Progress() achievement.ProgressRepository
}

// UnitOfWork runs a function inside a storage transaction. The transaction is
// committed when fn returns nil and rolled back otherwise.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// ErrConflict is returned by a UnitOfWork when the transaction lost a
// serialization race and may be retried as a whole.
var ErrConflict = shared.WrapError("uow", "Commit", shared.ErrConcurrentModification,
	"transaction conflict", nil)

// IsConflict reports whether err means the transaction can be retried.
func IsConflict(err error) bool {
	return errors.Is(err, shared.ErrConcurrentModification)
}

// Locker serializes work per account. Lock blocks until the key is free or ctx
// is done; the returned function releases the lock and is safe to call twice.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}
