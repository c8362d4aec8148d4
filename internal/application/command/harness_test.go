package command

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alem-hub/alem-economy/internal/application/saga"
	"github.com/alem-hub/alem-economy/internal/application/uow"
	"github.com/alem-hub/alem-economy/internal/domain/account"
	"github.com/alem-hub/alem-economy/internal/domain/achievement"
	"github.com/alem-hub/alem-economy/internal/domain/curriculum"
	"github.com/alem-hub/alem-economy/internal/domain/ledger"
	"github.com/alem-hub/alem-economy/internal/domain/shared"
	"github.com/alem-hub/alem-economy/internal/infrastructure/persistence/sqlite"
)

var testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// recorder captures everything flushed after commit.
type recorder struct {
	mu     sync.Mutex
	events []shared.Event
	audits []shared.AuditRecord
}

func (r *recorder) Notify(_ context.Context, e shared.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) Record(_ context.Context, rec shared.AuditRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.audits = append(r.audits, rec)
	return nil
}

func (r *recorder) eventsOf(t shared.EventType) []shared.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []shared.Event
	for _, e := range r.events {
		if e.EventType() == t {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorder) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.audits))
	for _, a := range r.audits {
		out = append(out, a.Action)
	}
	return out
}

type harness struct {
	t        *testing.T
	store    *sqlite.Store
	calc     *curriculum.Calculator
	sink     *recorder
	handlers *Handlers
}

// testSchedule: every track has two stages of two lessons. White pays 1.5
// quarters per lesson, the rest 2; stage bonus 2, track bonus 8.
func testSchedule(t *testing.T) *curriculum.Schedule {
	t.Helper()
	var specs []curriculum.TrackSpec
	for _, track := range curriculum.Tracks() {
		spec := curriculum.TrackSpec{
			Track:         track,
			Path:          curriculum.DefaultPath,
			UnitsPerStage: []int{2, 2},
			PerUnit:       curriculum.QuarterRate(2),
			StageBonus:    2,
			TrackBonus:    8,
		}
		if track == curriculum.White {
			spec.PerUnit = curriculum.Rate(3)
		}
		specs = append(specs, spec)
	}
	schedule, err := curriculum.NewSchedule(curriculum.DefaultPath, specs...)
	require.NoError(t, err)
	return schedule
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "economy.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := sqlite.NewStore(db)
	calc := curriculum.NewCalculator(testSchedule(t))
	sink := &recorder{}

	exec := NewExecutor(store, uow.NewKeyedMutex(),
		WithNotificationSink(sink),
		WithAuditSink(sink),
		WithLogger(logger),
		WithClock(func() time.Time { return testNow }),
	)
	flow := saga.NewAchievementFlow(achievement.NewEvaluator(calc, logger), logger)
	handlers := NewHandlers(exec, calc, flow, Settings{
		Conversion: ledger.ConversionRule{LegacyCost: 10, LessonThreshold: 2, PrimaryCredit: ledger.Units(1)},
		QuizReward: 2,
	})
	return &harness{t: t, store: store, calc: calc, sink: sink, handlers: handlers}
}

func (h *harness) open(id string) {
	h.t.Helper()
	_, err := h.handlers.Accounts.Open(context.Background(), OpenAccountCommand{AccountID: id})
	require.NoError(h.t, err)
}

func (h *harness) define(cmd DefineAchievementCommand) *achievement.Achievement {
	h.t.Helper()
	a, err := h.handlers.Achievements.Define(context.Background(), cmd)
	require.NoError(h.t, err)
	return a
}

func (h *harness) lesson(id string) *CompleteLessonResult {
	h.t.Helper()
	res, err := h.handlers.CompleteLesson.Handle(context.Background(), CompleteLessonCommand{AccountID: id})
	require.NoError(h.t, err)
	return res
}

func (h *harness) account(id string) *account.Account {
	h.t.Helper()
	var acct *account.Account
	require.NoError(h.t, h.store.Do(context.Background(), func(ctx context.Context, tx uow.Tx) error {
		var err error
		acct, err = tx.Accounts().Get(ctx, id)
		return err
	}))
	return acct
}

func (h *harness) balance(id string, currency ledger.Currency) ledger.Amount {
	h.t.Helper()
	var bal ledger.Amount
	require.NoError(h.t, h.store.Do(context.Background(), func(ctx context.Context, tx uow.Tx) error {
		var err error
		bal, _, err = tx.Entries().Sum(ctx, id, currency)
		return err
	}))
	return bal
}

// expected is the primary balance a fresh account holds at pos.
func (h *harness) expected(pos curriculum.Position) ledger.Amount {
	h.t.Helper()
	v, err := h.calc.ExpectedBalance(curriculum.DefaultPath, pos)
	require.NoError(h.t, err)
	return ledger.Amount(v)
}

func (h *harness) entries(id string, currency ledger.Currency) []*ledger.Entry {
	h.t.Helper()
	var out []*ledger.Entry
	require.NoError(h.t, h.store.Do(context.Background(), func(ctx context.Context, tx uow.Tx) error {
		var err error
		out, err = tx.Entries().History(ctx, id, currency, ledger.HistoryOptions{Limit: 1000})
		return err
	}))
	return out
}

func (h *harness) progress(accountID string) map[string]*achievement.Progress {
	h.t.Helper()
	out := make(map[string]*achievement.Progress)
	require.NoError(h.t, h.store.Do(context.Background(), func(ctx context.Context, tx uow.Tx) error {
		rows, err := tx.Progress().ListByAccount(ctx, accountID)
		for _, p := range rows {
			out[p.AchievementID] = p
		}
		return err
	}))
	return out
}
