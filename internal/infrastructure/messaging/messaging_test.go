package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/alem-economy/internal/domain/shared"
)

func unlockedEvent() shared.AchievementUnlockedEvent {
	return shared.AchievementUnlockedEvent{
		BaseEvent:     shared.NewBaseEvent(shared.EventAchievementUnlocked, "acc-1", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		AchievementID: "ach-1",
		Code:          "first-lesson",
		Reward:        4,
	}
}

func TestEventBus_SyncDelivery(t *testing.T) {
	bus := NewEventBus(EventBusConfig{AsyncMode: false})
	defer bus.Close()

	var typed, all int
	require.NoError(t, bus.Subscribe(shared.EventAchievementUnlocked, "typed", func(context.Context, shared.Event) error {
		typed++
		return nil
	}))
	require.NoError(t, bus.SubscribeAll("all", func(context.Context, shared.Event) error {
		all++
		return nil
	}))

	require.NoError(t, bus.Notify(context.Background(), unlockedEvent()))
	require.NoError(t, bus.Notify(context.Background(), shared.AccountLockChangedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventAccountLockChanged, "acc-1", time.Now()),
	}))

	assert.Equal(t, 1, typed)
	assert.Equal(t, 2, all)
	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(2), snap.TotalPublished)
	assert.Equal(t, int64(3), snap.TotalHandlerExecs)
}

func TestEventBus_SyncErrorsAndPanics(t *testing.T) {
	bus := NewEventBus(EventBusConfig{AsyncMode: false})
	defer bus.Close()

	var ran bool
	require.NoError(t, bus.SubscribeAll("panics", func(context.Context, shared.Event) error { panic("boom") }))
	require.NoError(t, bus.SubscribeAll("fails", func(context.Context, shared.Event) error { return errors.New("down") }))
	require.NoError(t, bus.SubscribeAll("ok", func(context.Context, shared.Event) error {
		ran = true
		return nil
	}))

	err := bus.Notify(context.Background(), unlockedEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panics")
	assert.True(t, ran)
	assert.Equal(t, int64(2), bus.Metrics().Snapshot().HandlerFailures)
}

func TestEventBus_AsyncDeliveryAndClose(t *testing.T) {
	bus := NewEventBus(EventBusConfig{AsyncMode: true, WorkerPoolSize: 2})

	var count atomic.Int32
	require.NoError(t, bus.SubscribeAll("count", func(context.Context, shared.Event) error {
		count.Add(1)
		return nil
	}))
	for i := 0; i < 10; i++ {
		require.NoError(t, bus.Notify(context.Background(), unlockedEvent()))
	}
	require.NoError(t, bus.Close())
	assert.LessOrEqual(t, count.Load(), int32(10))

	assert.ErrorIs(t, bus.Notify(context.Background(), unlockedEvent()), ErrEventBusClosed)
	assert.ErrorIs(t, bus.SubscribeAll("late", func(context.Context, shared.Event) error { return nil }), ErrEventBusClosed)
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, sink.Notify(context.Background(), unlockedEvent()))
	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "event", line["msg"])
	assert.Equal(t, "achievement.unlocked", line["event_type"])
	assert.Equal(t, "first-lesson", line["code"])

	buf.Reset()
	require.NoError(t, sink.Record(context.Background(), shared.AuditRecord{
		Actor: "admin", Action: "achievement.revoke", AccountID: "acc-1",
	}))
	line = nil
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "audit", line["msg"])
	assert.Equal(t, "achievement.revoke", line["action"])
}

type fakePublisher struct {
	mu       sync.Mutex
	failures int
	types    []string
	payloads []interface{}
}

func (p *fakePublisher) Publish(_ context.Context, msgType string, payload interface{}) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failures > 0 {
		p.failures--
		return "", errors.New("unavailable")
	}
	p.types = append(p.types, msgType)
	p.payloads = append(p.payloads, payload)
	return "1-0", nil
}

func TestStreamSink_RetriesThenPublishes(t *testing.T) {
	events := &fakePublisher{failures: 1}
	audits := &fakePublisher{}
	sink := NewStreamSink(events, audits)

	require.NoError(t, sink.Notify(context.Background(), unlockedEvent()))
	require.Equal(t, []string{"achievement.unlocked"}, events.types)
	msg := events.payloads[0].(streamEvent)
	assert.Equal(t, "acc-1", msg.AccountID)
	assert.Equal(t, "first-lesson", msg.Payload["code"])

	require.NoError(t, sink.Record(context.Background(), shared.AuditRecord{Action: "balance.adjust"}))
	assert.Equal(t, []string{"balance.adjust"}, audits.types)
}

func TestStreamSink_NilPublishers(t *testing.T) {
	sink := NewStreamSink(nil, nil)
	assert.NoError(t, sink.Notify(context.Background(), unlockedEvent()))
	assert.NoError(t, sink.Record(context.Background(), shared.AuditRecord{}))
}

type failingAudit struct{}

func (failingAudit) Record(context.Context, shared.AuditRecord) error { return errors.New("down") }

func TestAuditFanout(t *testing.T) {
	audits := &fakePublisher{}
	fan := AuditFanout{failingAudit{}, NewStreamSink(nil, audits)}

	err := fan.Record(context.Background(), shared.AuditRecord{Action: "account.lock"})
	assert.Error(t, err)
	assert.Equal(t, []string{"account.lock"}, audits.types)
}
