package shared

import (
	"context"
	"time"
)

// NotificationSink receives domain events after commit. Delivery is best
// effort: a failing sink never undoes ledger state.
type NotificationSink interface {
	Notify(ctx context.Context, event Event) error
}

// AuditRecord describes one administrative action.
type AuditRecord struct {
	Actor     string                 `json:"actor"`
	Action    string                 `json:"action"`
	AccountID string                 `json:"account_id"`
	Details   map[string]interface{} `json:"details,omitempty"`
	At        time.Time              `json:"at"`
}

// AuditSink receives audit records for admin operations after commit.
type AuditSink interface {
	Record(ctx context.Context, record AuditRecord) error
}

// NopNotificationSink discards every event.
type NopNotificationSink struct{}

// Notify implements NotificationSink.
func (NopNotificationSink) Notify(context.Context, Event) error { return nil }

// NopAuditSink discards every record.
type NopAuditSink struct{}

// Record implements AuditSink.
func (NopAuditSink) Record(context.Context, AuditRecord) error { return nil }
