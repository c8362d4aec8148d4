package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. They are delivered to the notification sink after the
// transaction that produced them has committed.
const (
	// Ledger events
	EventEntryRecorded     EventType = "ledger.entry_recorded"
	EventCurrencyConverted EventType = "ledger.currency_converted"

	// Progress events
	EventPositionChanged EventType = "progress.position_changed"
	EventTrackCompleted  EventType = "progress.track_completed"

	// Achievement events
	EventAchievementUnlocked EventType = "achievement.unlocked"
	EventAchievementRevoked  EventType = "achievement.revoked"

	// Account events
	EventAccountLockChanged EventType = "account.lock_changed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the account that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string, at time.Time) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   at,
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Ledger Events
// ═══════════════════════════════════════════════════════════════════════════

// EntryRecordedEvent is emitted for every ledger entry that changes what the
// account owns, so clients can show "+1.25" style toasts.
type EntryRecordedEvent struct {
	BaseEvent
	EntryID  string `json:"entry_id"`
	Currency string `json:"currency"`
	Amount   int64  `json:"amount"`
	Kind     string `json:"kind"`
	Source   string `json:"source"`
	SourceID string `json:"source_id,omitempty"`
	Balance  int64  `json:"balance"`
}

// Payload implements Event interface.
func (e EntryRecordedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"entry_id":  e.EntryID,
		"currency":  e.Currency,
		"amount":    e.Amount,
		"kind":      e.Kind,
		"source":    e.Source,
		"source_id": e.SourceID,
		"balance":   e.Balance,
	}
}

// CurrencyConvertedEvent is emitted when legacy points were converted.
type CurrencyConvertedEvent struct {
	BaseEvent
	LegacyDebited   int64 `json:"legacy_debited"`
	PrimaryCredited int64 `json:"primary_credited"`
}

// Payload implements Event interface.
func (e CurrencyConvertedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"legacy_debited":   e.LegacyDebited,
		"primary_credited": e.PrimaryCredited,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Progress Events
// ═══════════════════════════════════════════════════════════════════════════

// PositionChangedEvent is emitted when an account moves to a new position,
// either by completing a lesson or by an admin override.
type PositionChangedEvent struct {
	BaseEvent
	From           string `json:"from"`
	To             string `json:"to"`
	StageCompleted bool   `json:"stage_completed"`
	Override       bool   `json:"override"`
}

// Payload implements Event interface.
func (e PositionChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"from":            e.From,
		"to":              e.To,
		"stage_completed": e.StageCompleted,
		"override":        e.Override,
	}
}

// TrackCompletedEvent is emitted when the last stage of a track is finished.
type TrackCompletedEvent struct {
	BaseEvent
	Track              string `json:"track"`
	NextTrack          string `json:"next_track,omitempty"`
	CurriculumComplete bool   `json:"curriculum_complete"`
}

// Payload implements Event interface.
func (e TrackCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"track":               e.Track,
		"next_track":          e.NextTrack,
		"curriculum_complete": e.CurriculumComplete,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Achievement Events
// ═══════════════════════════════════════════════════════════════════════════

// AchievementUnlockedEvent is emitted when an achievement becomes unlocked.
type AchievementUnlockedEvent struct {
	BaseEvent
	AchievementID string `json:"achievement_id"`
	Code          string `json:"code"`
	Name          string `json:"name"`
	Reward        int64  `json:"reward"`
	Manual        bool   `json:"manual"`
}

// Payload implements Event interface.
func (e AchievementUnlockedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"achievement_id": e.AchievementID,
		"code":           e.Code,
		"name":           e.Name,
		"reward":         e.Reward,
		"manual":         e.Manual,
	}
}

// AchievementRevokedEvent is emitted when an admin takes an achievement back.
type AchievementRevokedEvent struct {
	BaseEvent
	AchievementID string `json:"achievement_id"`
	Reversed      int64  `json:"reversed"`
}

// Payload implements Event interface.
func (e AchievementRevokedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"achievement_id": e.AchievementID,
		"reversed":       e.Reversed,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Account Events
// ═══════════════════════════════════════════════════════════════════════════

// AccountLockChangedEvent is emitted when an account is locked or unlocked.
type AccountLockChangedEvent struct {
	BaseEvent
	Locked bool `json:"locked"`
}

// Payload implements Event interface.
func (e AccountLockChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"locked": e.Locked,
	}
}
