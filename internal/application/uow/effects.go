package uow

import (
	"github.com/alem-hub/alem-economy/internal/domain/shared"
)

// Effects collects notifications and audit records produced inside a
// transaction. They are delivered by the caller after commit and dropped if
// the transaction rolls back.
type Effects struct {
	events []shared.Event
	audits []shared.AuditRecord
}

// Emit queues a domain event.
func (e *Effects) Emit(events ...shared.Event) {
	e.events = append(e.events, events...)
}

// Audit queues an audit record.
func (e *Effects) Audit(record shared.AuditRecord) {
	e.audits = append(e.audits, record)
}

// Events returns the queued events.
func (e *Effects) Events() []shared.Event {
	return e.events
}

// Audits returns the queued audit records.
func (e *Effects) Audits() []shared.AuditRecord {
	return e.audits
}

// Reset drops everything queued, used before a transaction is retried.
func (e *Effects) Reset() {
	e.events = nil
	e.audits = nil
}
