package counting

import (
	"time"

	"github.com/cyclecount/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event type constants for the counting domain
const (
	EventTypePlanCreated      = "counting.plan.created"
	EventTypePlanActivated    = "counting.plan.activated"
	EventTypeSessionScheduled = "counting.session.scheduled"
	EventTypeSessionStarted   = "counting.session.started"
	EventTypeSessionCompleted = "counting.session.completed"
	EventTypeSessionCancelled = "counting.session.cancelled"
	EventTypeItemCounted      = "counting.item.counted"
	EventTypeItemAdjusted     = "counting.item.adjusted"
)

// PlanCreatedEvent is published when a counting plan is created
type PlanCreatedEvent struct {
	shared.BaseDomainEvent
	Code      string    `json:"code"`
	PlanType  PlanType  `json:"plan_type"`
	Frequency Frequency `json:"frequency"`
}

// NewPlanCreatedEvent creates a PlanCreatedEvent
func NewPlanCreatedEvent(p *CountingPlan) *PlanCreatedEvent {
	return &PlanCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePlanCreated, p.ID, "CountingPlan"),
		Code:            p.Code,
		PlanType:        p.Type,
		Frequency:       p.Frequency,
	}
}

// PlanActivatedEvent is published when a plan becomes eligible for scheduling
type PlanActivatedEvent struct {
	shared.BaseDomainEvent
	Code          string     `json:"code"`
	NextExecution *time.Time `json:"next_execution,omitempty"`
}

// NewPlanActivatedEvent creates a PlanActivatedEvent
func NewPlanActivatedEvent(p *CountingPlan) *PlanActivatedEvent {
	return &PlanActivatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePlanActivated, p.ID, "CountingPlan"),
		Code:            p.Code,
		NextExecution:   p.NextExecution,
	}
}

// SessionScheduledEvent is published when a session is materialized
type SessionScheduledEvent struct {
	shared.BaseDomainEvent
	Code          string    `json:"code"`
	PlanID        uuid.UUID `json:"plan_id"`
	ScheduledDate time.Time `json:"scheduled_date"`
}

// NewSessionScheduledEvent creates a SessionScheduledEvent
func NewSessionScheduledEvent(s *CountingSession) *SessionScheduledEvent {
	return &SessionScheduledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSessionScheduled, s.ID, "CountingSession"),
		Code:            s.Code,
		PlanID:          s.PlanID,
		ScheduledDate:   s.ScheduledDate,
	}
}

// SessionStartedEvent is published when counting begins
type SessionStartedEvent struct {
	shared.BaseDomainEvent
	Code   string    `json:"code"`
	PlanID uuid.UUID `json:"plan_id"`
}

// NewSessionStartedEvent creates a SessionStartedEvent
func NewSessionStartedEvent(s *CountingSession) *SessionStartedEvent {
	return &SessionStartedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSessionStarted, s.ID, "CountingSession"),
		Code:            s.Code,
		PlanID:          s.PlanID,
	}
}

// SessionCompletedEvent is published when a session completes, carrying the
// frozen accuracy
type SessionCompletedEvent struct {
	shared.BaseDomainEvent
	Code            string          `json:"code"`
	PlanID          uuid.UUID       `json:"plan_id"`
	AccuracyPercent decimal.Decimal `json:"accuracy_percent"`
	ItemsWithDiff   int             `json:"items_with_diff"`
}

// NewSessionCompletedEvent creates a SessionCompletedEvent
func NewSessionCompletedEvent(s *CountingSession) *SessionCompletedEvent {
	return &SessionCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSessionCompleted, s.ID, "CountingSession"),
		Code:            s.Code,
		PlanID:          s.PlanID,
		AccuracyPercent: s.AccuracyPercent,
		ItemsWithDiff:   s.ItemsWithDiff,
	}
}

// SessionCancelledEvent is published when a session is cancelled
type SessionCancelledEvent struct {
	shared.BaseDomainEvent
	Code   string    `json:"code"`
	PlanID uuid.UUID `json:"plan_id"`
}

// NewSessionCancelledEvent creates a SessionCancelledEvent
func NewSessionCancelledEvent(s *CountingSession) *SessionCancelledEvent {
	return &SessionCancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSessionCancelled, s.ID, "CountingSession"),
		Code:            s.Code,
		PlanID:          s.PlanID,
	}
}

// ItemCountedEvent is published when a count is recorded for an item
type ItemCountedEvent struct {
	shared.BaseDomainEvent
	SessionID     uuid.UUID       `json:"session_id"`
	ProductID     uuid.UUID       `json:"product_id"`
	Difference    decimal.Decimal `json:"difference"`
	HasDifference bool            `json:"has_difference"`
}

// NewItemCountedEvent creates an ItemCountedEvent
func NewItemCountedEvent(i *CountingItem) *ItemCountedEvent {
	return &ItemCountedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeItemCounted, i.ID, "CountingItem"),
		SessionID:       i.SessionID,
		ProductID:       i.ProductID,
		Difference:      i.Difference,
		HasDifference:   i.HasDifference,
	}
}

// ItemAdjustedEvent is published when an item is settled
type ItemAdjustedEvent struct {
	shared.BaseDomainEvent
	SessionID  uuid.UUID       `json:"session_id"`
	ProductID  uuid.UUID       `json:"product_id"`
	Difference decimal.Decimal `json:"difference"`
}

// NewItemAdjustedEvent creates an ItemAdjustedEvent
func NewItemAdjustedEvent(i *CountingItem) *ItemAdjustedEvent {
	return &ItemAdjustedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeItemAdjusted, i.ID, "CountingItem"),
		SessionID:       i.SessionID,
		ProductID:       i.ProductID,
		Difference:      i.Difference,
	}
}
