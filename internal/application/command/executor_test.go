package command

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/alem-economy/internal/application/uow"
	"github.com/alem-hub/alem-economy/internal/domain/shared"
	"github.com/alem-hub/alem-economy/internal/infrastructure/persistence/sqlite"
	"github.com/alem-hub/alem-economy/pkg/retry"
)

// racingUnit reports a serialization conflict for the first `lose` commits.
type racingUnit struct {
	inner uow.UnitOfWork
	lose  int
	calls int
}

func (u *racingUnit) Do(ctx context.Context, fn func(ctx context.Context, tx uow.Tx) error) error {
	u.calls++
	if err := u.inner.Do(ctx, fn); err != nil {
		return err
	}
	if u.calls <= u.lose {
		return uow.ErrConflict
	}
	return nil
}

func newRacingExecutor(t *testing.T, lose int) (*Executor, *racingUnit, *recorder) {
	t.Helper()
	db, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "economy.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	unit := &racingUnit{inner: sqlite.NewStore(db), lose: lose}
	sink := &recorder{}
	exec := NewExecutor(unit, uow.NewKeyedMutex(),
		WithNotificationSink(sink),
		WithAuditSink(sink),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithRetrier(retry.New(retry.WithMaxAttempts(3), retry.WithInitialDelay(time.Millisecond), retry.WithMaxDelay(time.Millisecond))),
	)
	return exec, unit, sink
}

func TestExecutor_RetriesConflicts(t *testing.T) {
	exec, unit, sink := newRacingExecutor(t, 2)

	runs := 0
	err := exec.Run(context.Background(), "test", "acc-1", func(_ context.Context, s *uow.Session) error {
		runs++
		s.Effects.Audit(shared.AuditRecord{Action: "TOUCH", AccountID: "acc-1"})
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, unit.calls)
	assert.Equal(t, 3, runs)
	assert.Equal(t, []string{"TOUCH"}, sink.actions(), "effects of lost attempts are discarded")
}

func TestExecutor_GivesUpOnPersistentConflict(t *testing.T) {
	exec, unit, sink := newRacingExecutor(t, 10)

	err := exec.Run(context.Background(), "test", "acc-1", func(context.Context, *uow.Session) error {
		return nil
	})
	require.Error(t, err)
	assert.True(t, uow.IsConflict(err))
	assert.False(t, retry.IsRetryable(err))
	assert.Equal(t, 3, unit.calls)
	assert.Empty(t, sink.actions())
}

func TestExecutor_DomainErrorsAreNotRetried(t *testing.T) {
	exec, unit, _ := newRacingExecutor(t, 0)

	runs := 0
	err := exec.Run(context.Background(), "test", "acc-1", func(context.Context, *uow.Session) error {
		runs++
		return shared.ErrAccountLocked
	})
	require.ErrorIs(t, err, shared.ErrAccountLocked)
	assert.False(t, retry.IsPermanent(err))
	assert.Equal(t, 1, unit.calls)
	assert.Equal(t, 1, runs)
}
