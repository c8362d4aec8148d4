package messaging

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/alem-hub/alem-economy/internal/domain/shared"
	"github.com/alem-hub/alem-economy/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// LOG SINK
// ══════════════════════════════════════════════════════════════════════════════

// LogSink writes events and audit records as structured log lines.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a log sink.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Notify implements shared.NotificationSink.
func (s *LogSink) Notify(ctx context.Context, event shared.Event) error {
	attrs := []slog.Attr{
		slog.String("event_type", string(event.EventType())),
		slog.String("account_id", event.AggregateID()),
		slog.Time("occurred_at", event.OccurredAt()),
	}
	for k, v := range event.Payload() {
		attrs = append(attrs, slog.Any(k, v))
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, "event", attrs...)
	return nil
}

// Handle adapts the sink to an EventBus handler.
func (s *LogSink) Handle(ctx context.Context, event shared.Event) error {
	return s.Notify(ctx, event)
}

// Record implements shared.AuditSink.
func (s *LogSink) Record(ctx context.Context, rec shared.AuditRecord) error {
	s.logger.LogAttrs(ctx, slog.LevelInfo, "audit",
		slog.String("actor", rec.Actor),
		slog.String("action", rec.Action),
		slog.String("account_id", rec.AccountID),
		slog.Time("at", rec.At),
		slog.Any("details", rec.Details),
	)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// STREAM SINK
// ══════════════════════════════════════════════════════════════════════════════

// Publisher appends typed messages to a stream.
type Publisher interface {
	Publish(ctx context.Context, msgType string, payload interface{}) (string, error)
}

// streamEvent is the wire form of an event.
type streamEvent struct {
	Type       string                 `json:"type"`
	AccountID  string                 `json:"account_id"`
	OccurredAt string                 `json:"occurred_at"`
	Payload    map[string]interface{} `json:"payload"`
}

// StreamSink publishes events and audit records to a stream with retries.
type StreamSink struct {
	events  Publisher
	audits  Publisher
	retrier *retry.Retrier
}

// NewStreamSink creates a stream sink. Either publisher may be nil to skip
// that kind of message.
func NewStreamSink(events, audits Publisher) *StreamSink {
	return &StreamSink{events: events, audits: audits, retrier: retry.SinkRetrier()}
}

// Notify implements shared.NotificationSink.
func (s *StreamSink) Notify(ctx context.Context, event shared.Event) error {
	if s.events == nil {
		return nil
	}
	msg := streamEvent{
		Type:       string(event.EventType()),
		AccountID:  event.AggregateID(),
		OccurredAt: event.OccurredAt().UTC().Format(time.RFC3339Nano),
		Payload:    event.Payload(),
	}
	return s.retrier.Do(ctx, func(ctx context.Context) error {
		_, err := s.events.Publish(ctx, msg.Type, msg)
		return err
	})
}

// Handle adapts the sink to an EventBus handler.
func (s *StreamSink) Handle(ctx context.Context, event shared.Event) error {
	return s.Notify(ctx, event)
}

// Record implements shared.AuditSink.
func (s *StreamSink) Record(ctx context.Context, rec shared.AuditRecord) error {
	if s.audits == nil {
		return nil
	}
	return s.retrier.Do(ctx, func(ctx context.Context) error {
		_, err := s.audits.Publish(ctx, rec.Action, rec)
		return err
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// AUDIT FANOUT
// ══════════════════════════════════════════════════════════════════════════════

// AuditFanout records to every sink and joins their errors.
type AuditFanout []shared.AuditSink

// Record implements shared.AuditSink.
func (f AuditFanout) Record(ctx context.Context, rec shared.AuditRecord) error {
	var errs []error
	for _, sink := range f {
		if err := sink.Record(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
