package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/alem-hub/alem-economy/internal/application/uow"
	"github.com/alem-hub/alem-economy/internal/domain/account"
	"github.com/alem-hub/alem-economy/internal/domain/achievement"
	"github.com/alem-hub/alem-economy/internal/domain/ledger"
	"github.com/alem-hub/alem-economy/internal/domain/shared"
)

// Store implements uow.UnitOfWork over a database/sql handle.
type Store struct {
	db *sql.DB
}

// NewStore wraps an opened database. The schema must already be migrated.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping checks that the database answers.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Do implements uow.UnitOfWork. A busy or locked database is reported as
// uow.ErrConflict.
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, tx uow.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapErr(fmt.Errorf("sqlite: begin: %w", err))
	}
	defer tx.Rollback()

	if err := fn(ctx, newTx(tx)); err != nil {
		return mapErr(err)
	}
	if err := tx.Commit(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return mapErr(fmt.Errorf("sqlite: commit: %w", err))
	}
	return nil
}

func mapErr(err error) error {
	if err != nil && IsBusy(err) {
		return shared.WrapError("sqlite", "Commit", shared.ErrConcurrentModification,
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

var _ uow.UnitOfWork = (*Store)(nil)
