package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/alem-economy/internal/application/uow"
	"github.com/alem-hub/alem-economy/internal/domain/account"
	"github.com/alem-hub/alem-economy/internal/domain/achievement"
	"github.com/alem-hub/alem-economy/internal/domain/curriculum"
	"github.com/alem-hub/alem-economy/internal/domain/ledger"
	"github.com/alem-hub/alem-economy/internal/domain/shared"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "economy.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db)
}

func createAccount(t *testing.T, s *Store, id string) {
	t.Helper()
	acct, err := account.New(id, curriculum.DefaultPath, testNow)
	require.NoError(t, err)
	require.NoError(t, s.Do(context.Background(), func(ctx context.Context, tx uow.Tx) error {
		return tx.Accounts().Create(ctx, acct)
	}))
}

func TestOpen_MigrationsAreIdempotent(t *testing.T) {
	s := openTestStore(t)
	n, err := Migrate(context.Background(), s.DB())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.NoError(t, s.Ping(context.Background()))
}

func TestAccountRepository_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	createAccount(t, s, "acc-1")

	err := s.Do(ctx, func(ctx context.Context, tx uow.Tx) error {
		a, err := tx.Accounts().GetForUpdate(ctx, "acc-1")
		require.NoError(t, err)
		assert.Equal(t, curriculum.StartPosition(), a.Position)
		assert.True(t, a.CreatedAt.Equal(testNow))

		a.MoveTo(curriculum.Position{Track: curriculum.White, Stage: 1, Unit: 3})
		a.RecordLesson()
		a.NoteEarned(ledger.Units(2))
		a.AlternationFlag = true
		a.SetLocked(true)
		a.Touch(testNow.Add(time.Minute))
		return tx.Accounts().Update(ctx, a)
	})
	require.NoError(t, err)

	err = s.Do(ctx, func(ctx context.Context, tx uow.Tx) error {
		a, err := tx.Accounts().Get(ctx, "acc-1")
		require.NoError(t, err)
		assert.Equal(t, 3, a.Position.Unit)
		assert.Equal(t, int64(1), a.LessonsCompleted)
		assert.Equal(t, ledger.Units(2), a.TotalEarned)
		assert.True(t, a.AlternationFlag)
		assert.True(t, a.Locked)
		assert.True(t, a.UpdatedAt.Equal(testNow.Add(time.Minute)))
		return nil
	})
	require.NoError(t, err)
}

func TestAccountRepository_Errors(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	createAccount(t, s, "acc-1")

	dup, err := account.New("acc-1", curriculum.DefaultPath, testNow)
	require.NoError(t, err)
	err = s.Do(ctx, func(ctx context.Context, tx uow.Tx) error {
		return tx.Accounts().Create(ctx, dup)
	})
	assert.ErrorIs(t, err, shared.ErrAlreadyExists)

	err = s.Do(ctx, func(ctx context.Context, tx uow.Tx) error {
		_, err := tx.Accounts().Get(ctx, "missing")
		return err
	})
	assert.ErrorIs(t, err, shared.ErrAccountNotFound)

	ghost, err := account.New("ghost", curriculum.DefaultPath, testNow)
	require.NoError(t, err)
	err = s.Do(ctx, func(ctx context.Context, tx uow.Tx) error {
		return tx.Accounts().Update(ctx, ghost)
	})
	assert.ErrorIs(t, err, shared.ErrAccountNotFound)
}

func TestAccountRepository_ListIDs(t *testing.T) {
	s := openTestStore(t)
	for _, id := range []string{"c", "a", "d", "b"} {
		createAccount(t, s, id)
	}

	var first, second []string
	err := s.Do(context.Background(), func(ctx context.Context, tx uow.Tx) error {
		var err error
		if first, err = tx.Accounts().ListIDs(ctx, "", 3); err != nil {
			return err
		}
		second, err = tx.Accounts().ListIDs(ctx, first[len(first)-1], 3)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, first)
	assert.Equal(t, []string{"d"}, second)
}

func TestLedger_OverSQLite(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	createAccount(t, s, "acc-1")

	err := s.Do(ctx, func(ctx context.Context, tx uow.Tx) error {
		l := ledger.New(tx.Entries(), tx.Balances(), uuid.NewString, ledger.WithClock(func() time.Time { return testNow }))
		if _, err := l.RecordEarn(ctx, "acc-1", 5, ledger.SourceProgress, "WHITE-1-1", ""); err != nil {
			return err
		}
		if _, err := l.RecordEarn(ctx, "acc-1", 3, ledger.SourceQuiz, "q1/1", ""); err != nil {
			return err
		}
		_, err := l.RecordSpend(ctx, "acc-1", 4, ledger.SourcePurchase, "p-1", "sticker")
		return err
	})
	require.NoError(t, err)

	err = s.Do(ctx, func(ctx context.Context, tx uow.Tx) error {
		l := ledger.New(tx.Entries(), tx.Balances(), uuid.NewString)
		bal, err := l.Balance(ctx, "acc-1", ledger.Primary)
		require.NoError(t, err)
		assert.Equal(t, ledger.Amount(4), bal)

		rec, err := l.Reconcile(ctx, "acc-1", ledger.Primary)
		require.NoError(t, err)
		assert.False(t, rec.Drifted())

		page, err := l.History(ctx, "acc-1", ledger.Primary, ledger.HistoryOptions{Limit: 2})
		require.NoError(t, err)
		require.Len(t, page.Entries, 2)
		assert.Equal(t, ledger.KindSpend, page.Entries[0].Kind)
		assert.Equal(t, ledger.Amount(-4), page.Entries[0].Amount)
		assert.True(t, page.Entries[0].CreatedAt.Equal(testNow))
		require.NotZero(t, page.NextCursor)

		rest, err := tx.Entries().History(ctx, "acc-1", ledger.Primary, ledger.HistoryOptions{Limit: 10, BeforeSeq: page.NextCursor})
		require.NoError(t, err)
		require.Len(t, rest, 1)
		assert.Equal(t, ledger.SourceProgress, rest[0].Source)

		bySource, err := tx.Entries().ListBySource(ctx, "acc-1", ledger.SourcePurchase, "p-1")
		require.NoError(t, err)
		require.Len(t, bySource, 1)
		assert.Equal(t, "sticker", bySource[0].Note)
		return nil
	})
	require.NoError(t, err)
}

func TestLedger_EntriesAreAppendOnly(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	createAccount(t, s, "acc-1")

	require.NoError(t, s.Do(ctx, func(ctx context.Context, tx uow.Tx) error {
		l := ledger.New(tx.Entries(), tx.Balances(), uuid.NewString)
		_, err := l.RecordEarn(ctx, "acc-1", 4, ledger.SourceProgress, "x", "")
		return err
	}))

	_, err := s.DB().ExecContext(ctx, `UPDATE ledger_entries SET amount = 400`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "append-only")

	_, err = s.DB().ExecContext(ctx, `DELETE FROM ledger_entries`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "append-only")
}

func TestDo_RollsBackOnError(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	createAccount(t, s, "acc-1")

	boom := errors.New("boom")
	err := s.Do(ctx, func(ctx context.Context, tx uow.Tx) error {
		l := ledger.New(tx.Entries(), tx.Balances(), uuid.NewString)
		if _, err := l.RecordEarn(ctx, "acc-1", 8, ledger.SourceProgress, "x", ""); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	err = s.Do(ctx, func(ctx context.Context, tx uow.Tx) error {
		sum, last, err := tx.Entries().Sum(ctx, "acc-1", ledger.Primary)
		assert.Zero(t, sum)
		assert.Zero(t, last)
		_, ok, cacheErr := tx.Balances().Get(ctx, "acc-1", ledger.Primary)
		assert.False(t, ok)
		return errors.Join(err, cacheErr)
	})
	require.NoError(t, err)
}

func TestAchievementRepository(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first := &achievement.Achievement{
		ID: "ach-1", Code: "first-lesson", Name: "First Lesson", Category: achievement.CategoryProgress,
		Rarity: achievement.RarityCommon, Reward: ledger.Units(1), Active: true,
		Criteria:  achievement.LessonsCompleted{Threshold: 1},
		CreatedAt: testNow, UpdatedAt: testNow,
	}
	manual := &achievement.Achievement{
		ID: "ach-2", Code: "champion", Name: "Champion", Category: achievement.CategoryLeaderboard,
		Rarity: achievement.RarityLegendary, ManualOnly: true, Active: true,
		CreatedAt: testNow, UpdatedAt: testNow,
	}

	err := s.Do(ctx, func(ctx context.Context, tx uow.Tx) error {
		require.NoError(t, tx.Achievements().Create(ctx, first))
		require.NoError(t, tx.Achievements().Create(ctx, manual))

		dup := *first
		dup.ID = "ach-3"
		assert.ErrorIs(t, tx.Achievements().Create(ctx, &dup), shared.ErrAlreadyExists)
		return nil
	})
	require.NoError(t, err)

	err = s.Do(ctx, func(ctx context.Context, tx uow.Tx) error {
		got, err := tx.Achievements().GetByCode(ctx, "first-lesson")
		require.NoError(t, err)
		assert.Equal(t, achievement.LessonsCompleted{Threshold: 1}, got.Criteria)

		champ, err := tx.Achievements().Get(ctx, "ach-2")
		require.NoError(t, err)
		assert.Nil(t, champ.Criteria)

		auto, err := tx.Achievements().List(ctx, achievement.ListOptions{ActiveOnly: true})
		require.NoError(t, err)
		require.Len(t, auto, 1)
		assert.Equal(t, "first-lesson", auto[0].Code)

		all, err := tx.Achievements().List(ctx, achievement.ListOptions{IncludeManual: true})
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "champion", all[0].Code)

		got.Active = false
		require.NoError(t, tx.Achievements().Update(ctx, got))
		inactive, err := tx.Achievements().List(ctx, achievement.ListOptions{ActiveOnly: true})
		require.NoError(t, err)
		assert.Empty(t, inactive)

		_, err = tx.Achievements().Get(ctx, "nope")
		assert.ErrorIs(t, err, shared.ErrAchievementNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestProgressRepository(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	createAccount(t, s, "acc-1")

	err := s.Do(ctx, func(ctx context.Context, tx uow.Tx) error {
		require.NoError(t, tx.Achievements().Create(ctx, &achievement.Achievement{
			ID: "ach-1", Code: "ten-lessons", Name: "Ten Lessons", Category: achievement.CategoryProgress,
			Rarity: achievement.RarityCommon, Active: true, Criteria: achievement.LessonsCompleted{Threshold: 10},
			CreatedAt: testNow, UpdatedAt: testNow,
		}))

		p := achievement.NewProgress("acc-1", "ach-1", 40, testNow)
		require.NoError(t, tx.Progress().Upsert(ctx, p))

		got, err := tx.Progress().Get(ctx, "acc-1", "ach-1")
		require.NoError(t, err)
		assert.Equal(t, 40, got.Percent)
		assert.False(t, got.Unlocked)
		assert.True(t, got.UnlockedAt.IsZero())

		require.NoError(t, got.Unlock(testNow.Add(time.Hour)))
		require.NoError(t, tx.Progress().Upsert(ctx, got))

		list, err := tx.Progress().ListByAccount(ctx, "acc-1")
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.True(t, list[0].Unlocked)
		assert.Equal(t, 100, list[0].Percent)
		assert.True(t, list[0].UnlockedAt.Equal(testNow.Add(time.Hour)))

		require.NoError(t, tx.Progress().Delete(ctx, "acc-1", "ach-1"))
		assert.ErrorIs(t, tx.Progress().Delete(ctx, "acc-1", "ach-1"), shared.ErrNotFound)
		_, err = tx.Progress().Get(ctx, "acc-1", "ach-1")
		assert.ErrorIs(t, err, shared.ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestDo_WithMock(t *testing.T) {
	t.Run("commit", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectCommit()

		err = NewStore(db).Do(context.Background(), func(context.Context, uow.Tx) error { return nil })
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rollback", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectRollback()

		boom := errors.New("boom")
		err = NewStore(db).Do(context.Background(), func(context.Context, uow.Tx) error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.False(t, uow.IsConflict(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("begin failure", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin().WillReturnError(errors.New("disk I/O error"))

		called := false
		err = NewStore(db).Do(context.Background(), func(context.Context, uow.Tx) error {
			called = true
			return nil
		})
		require.Error(t, err)
		assert.False(t, called)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTimeEncoding(t *testing.T) {
	assert.Zero(t, toNanos(time.Time{}))
	assert.True(t, fromNanos(0).IsZero())
	assert.True(t, fromNanos(toNanos(testNow)).Equal(testNow))
}
