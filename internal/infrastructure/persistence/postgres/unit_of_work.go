package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/alem-economy/internal/application/uow"
	"github.com/alem-hub/alem-economy/internal/domain/account"
	"github.com/alem-hub/alem-economy/internal/domain/achievement"
	"github.com/alem-hub/alem-economy/internal/domain/ledger"
	"github.com/alem-hub/alem-economy/internal/domain/shared"
)

// UnitOfWork implements uow.UnitOfWork on top of a pgx transaction.
type UnitOfWork struct {
	conn *Connection
	opts pgx.TxOptions
}

// NewUnitOfWork creates a unit of work with read-committed transactions.
// Account rows are locked with SELECT ... FOR UPDATE.
func NewUnitOfWork(conn *Connection) *UnitOfWork {
	return &UnitOfWork{conn: conn, opts: DefaultTxOptions()}
}

// Do implements uow.UnitOfWork. Serialization failures and deadlocks are
// reported as uow.ErrConflict.
func (u *UnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, tx uow.Tx) error) error {
	err := u.conn.WithTx(ctx, u.opts, func(tx pgx.Tx) error {
		return fn(ctx, newTx(tx))
	})
	return u.mapErr(err)
}

func (u *UnitOfWork) mapErr(err error) error {
	if err != nil && IsSerializationFailure(err) {
		return shared.WrapError("postgres", "Commit", shared.ErrConcurrentModification,
			uow.ErrConflict.Message, err)
	}
	return err
}

type txRepos struct {
	accounts     *AccountRepository
	entries      *EntryRepository
	balances     *BalanceCache
	achievements *AchievementRepository
	progress     *ProgressRepository
}

func newTx(q Querier) *txRepos {
	return &txRepos{
		accounts:     NewAccountRepository(q),
		entries:      NewEntryRepository(q),
		balances:     NewBalanceCache(q),
		achievements: NewAchievementRepository(q),
		progress:     NewProgressRepository(q),
	}
}

func (t *txRepos) Accounts() account.Repository             { return t.accounts }
func (t *txRepos) Entries() ledger.Repository               { return t.entries }
func (t *txRepos) Balances() ledger.BalanceCache            { return t.balances }
func (t *txRepos) Achievements() achievement.Repository     { return t.achievements }
func (t *txRepos) Progress() achievement.ProgressRepository { return t.progress }

var _ uow.UnitOfWork = (*UnitOfWork)(nil)

func notFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
