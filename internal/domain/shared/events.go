// Package shared contains common domain types, errors, and events
// that are used across all domain packages.
package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types emitted by the reward pipeline.
const (
	// Ranking events
	EventSnapshotCreated   EventType = "ranking.snapshot_created"
	EventSnapshotProcessed EventType = "ranking.snapshot_processed"

	// Reward job events
	EventJobCreated   EventType = "reward.job_created"
	EventJobClaimed   EventType = "reward.job_claimed"
	EventJobCompleted EventType = "reward.job_completed"
	EventJobFailed    EventType = "reward.job_failed"

	// Reward events
	EventRewardGranted EventType = "reward.granted"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
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
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
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
// Ranking Events
// ═══════════════════════════════════════════════════════════════════════════

// SnapshotCreatedEvent is emitted when a ranking snapshot is built for a period.
type SnapshotCreatedEvent struct {
	BaseEvent
	Category   string `json:"category"`
	Month      int    `json:"month"`
	Year       int    `json:"year"`
	TotalUsers int    `json:"total_users"`
}

// Payload implements Event interface.
func (e SnapshotCreatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"category":    e.Category,
		"month":       e.Month,
		"year":        e.Year,
		"total_users": e.TotalUsers,
	}
}

// NewSnapshotCreatedEvent creates a new SnapshotCreatedEvent.
func NewSnapshotCreatedEvent(snapshotID, category string, month, year, totalUsers int) SnapshotCreatedEvent {
	return SnapshotCreatedEvent{
		BaseEvent:  NewBaseEvent(EventSnapshotCreated, snapshotID),
		Category:   category,
		Month:      month,
		Year:       year,
		TotalUsers: totalUsers,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Reward Job Events
// ═══════════════════════════════════════════════════════════════════════════

// JobCompletedEvent is emitted when a reward job finishes all batches.
type JobCompletedEvent struct {
	BaseEvent
	Category       string        `json:"category"`
	Month          int           `json:"month"`
	Year           int           `json:"year"`
	ProcessedUsers int           `json:"processed_users"`
	FailedUsers    int           `json:"failed_users"`
	Duration       time.Duration `json:"duration"`
}

// Payload implements Event interface.
func (e JobCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"category":        e.Category,
		"month":           e.Month,
		"year":            e.Year,
		"processed_users": e.ProcessedUsers,
		"failed_users":    e.FailedUsers,
		"duration":        e.Duration.String(),
	}
}

// NewJobCompletedEvent creates a new JobCompletedEvent.
func NewJobCompletedEvent(jobID, category string, month, year, processed, failed int, duration time.Duration) JobCompletedEvent {
	return JobCompletedEvent{
		BaseEvent:      NewBaseEvent(EventJobCompleted, jobID),
		Category:       category,
		Month:          month,
		Year:           year,
		ProcessedUsers: processed,
		FailedUsers:    failed,
		Duration:       duration,
	}
}

// JobFailedEvent is emitted when a reward job exhausts its retries.
type JobFailedEvent struct {
	BaseEvent
	Category   string `json:"category"`
	Month      int    `json:"month"`
	Year       int    `json:"year"`
	RetryCount int    `json:"retry_count"`
	LastError  string `json:"last_error,omitempty"`
}

// Payload implements Event interface.
func (e JobFailedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"category":    e.Category,
		"month":       e.Month,
		"year":        e.Year,
		"retry_count": e.RetryCount,
		"last_error":  e.LastError,
	}
}

// NewJobFailedEvent creates a new JobFailedEvent.
func NewJobFailedEvent(jobID, category string, month, year, retryCount int, lastError string) JobFailedEvent {
	return JobFailedEvent{
		BaseEvent:  NewBaseEvent(EventJobFailed, jobID),
		Category:   category,
		Month:      month,
		Year:       year,
		RetryCount: retryCount,
		LastError:  lastError,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Reward Events
// ═══════════════════════════════════════════════════════════════════════════

// RewardGrantedEvent is emitted once per user per period when a reward
// is credited. Duplicate award attempts do not re-emit it.
type RewardGrantedEvent struct {
	BaseEvent
	UserID   int64  `json:"user_id"`
	Category string `json:"category"`
	Month    int    `json:"month"`
	Year     int    `json:"year"`
	Rank     int    `json:"rank"`
	Tier     string `json:"tier"`
	Coins    int    `json:"coins"`
	XP       int    `json:"xp"`
	Badge    string `json:"badge,omitempty"`
}

// Payload implements Event interface.
func (e RewardGrantedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":  e.UserID,
		"category": e.Category,
		"month":    e.Month,
		"year":     e.Year,
		"rank":     e.Rank,
		"tier":     e.Tier,
		"coins":    e.Coins,
		"xp":       e.XP,
		"badge":    e.Badge,
	}
}

// NewRewardGrantedEvent creates a new RewardGrantedEvent.
func NewRewardGrantedEvent(recordID string, userID int64, category string, month, year, rank int, tier string, coins, xp int, badge string) RewardGrantedEvent {
	return RewardGrantedEvent{
		BaseEvent: NewBaseEvent(EventRewardGranted, recordID),
		UserID:    userID,
		Category:  category,
		Month:     month,
		Year:      year,
		Rank:      rank,
		Tier:      tier,
		Coins:     coins,
		XP:        xp,
		Badge:     badge,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Bus Interfaces
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
