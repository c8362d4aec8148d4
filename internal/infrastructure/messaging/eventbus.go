// Package messaging delivers committed domain events and audit records to
// their consumers: structured logs and Redis streams.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alem-hub/alem-economy/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// EVENT BUS
// ══════════════════════════════════════════════════════════════════════════════

// Handler consumes one event.
type Handler func(ctx context.Context, event shared.Event) error

// ErrEventBusClosed is returned when operations are attempted on a closed bus.
var ErrEventBusClosed = errors.New("event bus is closed")

// EventBus fans events out to subscribed handlers. It implements
// shared.NotificationSink, so the command executor can hand it every
// committed event.
type EventBus struct {
	mu          sync.RWMutex
	handlers    map[shared.EventType][]named
	allHandlers []named
	asyncMode   bool
	workerPool  chan struct{}
	logger      *slog.Logger
	metrics     *EventBusMetrics
	closed      bool
	closeCh     chan struct{}
	wg          sync.WaitGroup
}

type named struct {
	name    string
	handler Handler
}

// EventBusConfig contains configuration for EventBus.
type EventBusConfig struct {
	// AsyncMode runs handlers on a bounded worker pool; Notify returns at once.
	AsyncMode bool

	// WorkerPoolSize is the number of concurrent workers for async processing.
	WorkerPoolSize int

	// Logger for structured logging.
	Logger *slog.Logger
}

// DefaultEventBusConfig returns sensible defaults.
func DefaultEventBusConfig() EventBusConfig {
	return EventBusConfig{
		AsyncMode:      true,
		WorkerPoolSize: 10,
	}
}

// NewEventBus creates a new event bus.
func NewEventBus(config EventBusConfig) *EventBus {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.WorkerPoolSize <= 0 {
		config.WorkerPoolSize = 10
	}

	return &EventBus{
		handlers:   make(map[shared.EventType][]named),
		asyncMode:  config.AsyncMode,
		workerPool: make(chan struct{}, config.WorkerPoolSize),
		logger:     config.Logger.With(slog.String("component", "event_bus")),
		metrics:    NewEventBusMetrics(),
		closeCh:    make(chan struct{}),
	}
}

// Subscribe registers a handler for a specific event type.
func (b *EventBus) Subscribe(eventType shared.EventType, name string, handler Handler) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrEventBusClosed
	}

	b.handlers[eventType] = append(b.handlers[eventType], named{name: name, handler: handler})
	b.logger.Debug("subscribed handler", slog.String("event_type", string(eventType)), slog.String("handler", name))
	return nil
}

// SubscribeAll registers a handler for all events.
func (b *EventBus) SubscribeAll(name string, handler Handler) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrEventBusClosed
	}

	b.allHandlers = append(b.allHandlers, named{name: name, handler: handler})
	b.logger.Debug("subscribed global handler", slog.String("handler", name))
	return nil
}

// Notify implements shared.NotificationSink. In sync mode the first handler
// error is returned after all handlers ran.
func (b *EventBus) Notify(ctx context.Context, event shared.Event) error {
	if event == nil {
		return errors.New("event cannot be nil")
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrEventBusClosed
	}
	handlers := make([]named, 0, len(b.handlers[event.EventType()])+len(b.allHandlers))
	handlers = append(handlers, b.handlers[event.EventType()]...)
	handlers = append(handlers, b.allHandlers...)
	b.mu.RUnlock()

	b.metrics.RecordPublish(event.EventType())
	if len(handlers) == 0 {
		return nil
	}

	if b.asyncMode {
		for _, h := range handlers {
			b.executeAsync(ctx, event, h)
		}
		return nil
	}

	var first error
	for _, h := range handlers {
		if err := b.execute(ctx, event, h); err != nil && first == nil {
			first = fmt.Errorf("handler %s: %w", h.name, err)
		}
	}
	return first
}

// executeAsync executes a handler asynchronously using the worker pool.
func (b *EventBus) executeAsync(ctx context.Context, event shared.Event, h named) {
	b.wg.Add(1)

	go func() {
		defer b.wg.Done()

		select {
		case b.workerPool <- struct{}{}:
			defer func() { <-b.workerPool }()
		case <-b.closeCh:
			return
		}

		if err := b.execute(ctx, event, h); err != nil {
			b.logger.Error("async handler error",
				slog.String("event_type", string(event.EventType())),
				slog.String("handler", h.name),
				slog.String("account_id", event.AggregateID()),
				slog.String("error", err.Error()),
			)
		}
	}()
}

func (b *EventBus) execute(ctx context.Context, event shared.Event, h named) (err error) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler panicked: %v", p)
		}
		b.metrics.RecordHandlerExecution(time.Since(start), err == nil)
	}()
	return h.handler(ctx, event)
}

// Close stops accepting events and waits for running handlers.
func (b *EventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.closeCh)
	b.mu.Unlock()

	b.wg.Wait()
	b.logger.Info("event bus closed")
	return nil
}

// Metrics returns the bus metrics.
func (b *EventBus) Metrics() *EventBusMetrics {
	return b.metrics
}

// ══════════════════════════════════════════════════════════════════════════════
// METRICS
// ══════════════════════════════════════════════════════════════════════════════

// EventBusMetrics tracks event bus activity.
type EventBusMetrics struct {
	mu sync.RWMutex

	PublishedTotal       map[shared.EventType]int64
	HandlerExecutions    int64
	HandlerFailures      int64
	HandlerTotalDuration time.Duration
}

// NewEventBusMetrics creates new metrics tracker.
func NewEventBusMetrics() *EventBusMetrics {
	return &EventBusMetrics{PublishedTotal: make(map[shared.EventType]int64)}
}

// RecordPublish records a published event.
func (m *EventBusMetrics) RecordPublish(eventType shared.EventType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PublishedTotal[eventType]++
}

// RecordHandlerExecution records a handler execution.
func (m *EventBusMetrics) RecordHandlerExecution(duration time.Duration, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.HandlerExecutions++
	m.HandlerTotalDuration += duration
	if !success {
		m.HandlerFailures++
	}
}

// EventBusMetricsSnapshot is a point-in-time snapshot of metrics.
type EventBusMetricsSnapshot struct {
	TotalPublished     int64
	TotalHandlerExecs  int64
	HandlerFailures    int64
	HandlerSuccessRate float64
}

// Snapshot returns a copy of current metrics.
func (m *EventBusMetrics) Snapshot() EventBusMetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var total int64
	for _, v := range m.PublishedTotal {
		total += v
	}
	rate := 1.0
	if m.HandlerExecutions > 0 {
		rate = float64(m.HandlerExecutions-m.HandlerFailures) / float64(m.HandlerExecutions)
	}
	return EventBusMetricsSnapshot{
		TotalPublished:     total,
		TotalHandlerExecs:  m.HandlerExecutions,
		HandlerFailures:    m.HandlerFailures,
		HandlerSuccessRate: rate,
	}
}
