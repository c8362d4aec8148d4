// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alem-hub/alem-economy/internal/application/uow"
	"github.com/alem-hub/alem-economy/internal/domain/ledger"
	"github.com/alem-hub/alem-economy/internal/domain/shared"
	"github.com/alem-hub/alem-economy/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// EXECUTOR
// Every command runs as: account lock → transaction (retried on conflict) →
// side effects after commit. Side effect failures are logged, never returned.
// ══════════════════════════════════════════════════════════════════════════════

// Metrics receives command-level observations.
type Metrics interface {
	EntryRecorded(e *ledger.Entry)
	AchievementUnlocked(code string, manual bool)
	CommandCompleted(name string, err error, elapsed time.Duration)
}

// NopMetrics discards all observations.
type NopMetrics struct{}

func (NopMetrics) EntryRecorded(*ledger.Entry) {}

func (NopMetrics) AchievementUnlocked(string, bool) {}

func (NopMetrics) CommandCompleted(string, error, time.Duration) {}

// Executor runs command bodies inside the unit of work.
type Executor struct {
	unit     uow.UnitOfWork
	locker   uow.Locker
	retrier  *retry.Retrier
	notifier shared.NotificationSink
	audit    shared.AuditSink
	metrics  Metrics
	logger   *slog.Logger
	newID    ledger.IDGenerator
	clock    func() time.Time
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithNotificationSink sets where events go after commit.
func WithNotificationSink(sink shared.NotificationSink) ExecutorOption {
	return func(x *Executor) { x.notifier = sink }
}

// WithAuditSink sets where audit records go after commit.
func WithAuditSink(sink shared.AuditSink) ExecutorOption {
	return func(x *Executor) { x.audit = sink }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m Metrics) ExecutorOption {
	return func(x *Executor) { x.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ExecutorOption {
	return func(x *Executor) { x.logger = l }
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) ExecutorOption {
	return func(x *Executor) { x.clock = clock }
}

// WithIDGenerator overrides entry and record ID generation.
func WithIDGenerator(gen ledger.IDGenerator) ExecutorOption {
	return func(x *Executor) { x.newID = gen }
}

// WithRetrier overrides the conflict retry policy.
func WithRetrier(r *retry.Retrier) ExecutorOption {
	return func(x *Executor) { x.retrier = r }
}

// NewExecutor creates an executor.
func NewExecutor(unit uow.UnitOfWork, locker uow.Locker, opts ...ExecutorOption) *Executor {
	x := &Executor{
		unit:     unit,
		locker:   locker,
		retrier:  retry.TransactionRetrier(),
		notifier: shared.NopNotificationSink{},
		audit:    shared.NopAuditSink{},
		metrics:  NopMetrics{},
		logger:   slog.Default(),
		newID:    uuid.NewString,
		clock:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(x)
	}
	x.retrier = x.retrier.With(retry.WithOnRetry(
		func(attempt int, err error, delay time.Duration) {
			x.logger.Warn("transaction conflict, retrying",
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
				slog.String("error", err.Error()),
			)
		}))
	return x
}

// Now returns the executor's current time.
func (x *Executor) Now() time.Time {
	return x.clock()
}

// NewID returns a fresh identifier.
func (x *Executor) NewID() string {
	return x.newID()
}

// Logger returns the executor's logger.
func (x *Executor) Logger() *slog.Logger {
	return x.logger
}

// Run executes fn for one account under the account lock. Pass an empty
// accountID for catalog-wide operations that need no account lock.
func (x *Executor) Run(ctx context.Context, name, accountID string, fn func(ctx context.Context, s *uow.Session) error) error {
	started := time.Now()
	err := x.run(ctx, name, accountID, fn)
	x.metrics.CommandCompleted(name, err, time.Since(started))
	return err
}

func (x *Executor) run(ctx context.Context, name, accountID string, fn func(ctx context.Context, s *uow.Session) error) error {
	if accountID != "" {
		unlock, err := x.locker.Lock(ctx, accountID)
		if err != nil {
			return shared.WrapError("command", name, shared.ErrConcurrentModification,
				"could not acquire account lock", err)
		}
		defer unlock()
	}

	effects := &uow.Effects{}
	var session *uow.Session
	err := x.retrier.Do(ctx, func(ctx context.Context) error {
		effects.Reset()
		err := x.unit.Do(ctx, func(ctx context.Context, tx uow.Tx) error {
			session = uow.NewSession(tx, effects, x.newID, x.clock())
			return fn(ctx, session)
		})
		return classify(err)
	})
	if err != nil {
		return err
	}

	x.flush(ctx, name, session, effects)
	return nil
}

// classify marks a lost serialization race as retryable. Anything else,
// domain rejections included, is final: the transaction rolled back and a
// second attempt would see the same state.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case uow.IsConflict(err):
		return retry.Retryable(err)
	default:
		return retry.Permanent(err)
	}
}

// flush delivers side effects after commit. Delivery is detached from the
// caller's cancellation so a committed change is still announced.
func (x *Executor) flush(ctx context.Context, name string, s *uow.Session, effects *uow.Effects) {
	ctx = context.WithoutCancel(ctx)

	if s != nil {
		for _, e := range s.Entries() {
			x.metrics.EntryRecorded(e)
		}
	}
	for _, ev := range effects.Events() {
		if u, ok := ev.(shared.AchievementUnlockedEvent); ok {
			x.metrics.AchievementUnlocked(u.Code, u.Manual)
		}
		if err := x.notifier.Notify(ctx, ev); err != nil {
			x.logger.Error("notification failed",
				slog.String("command", name),
				slog.String("event", string(ev.EventType())),
				slog.String("account_id", ev.AggregateID()),
				slog.String("error", err.Error()),
			)
		}
	}
	for _, rec := range effects.Audits() {
		if err := x.audit.Record(ctx, rec); err != nil {
			x.logger.Error("audit record failed",
				slog.String("command", name),
				slog.String("action", rec.Action),
				slog.String("account_id", rec.AccountID),
				slog.String("error", err.Error()),
			)
		}
	}
}
