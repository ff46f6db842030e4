package counting

import (
	"fmt"
	"time"

	"github.com/cyclecount/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SessionStatus represents the lifecycle state of a counting session
type SessionStatus string

const (
	SessionStatusScheduled  SessionStatus = "SCHEDULED"
	SessionStatusInProgress SessionStatus = "IN_PROGRESS"
	SessionStatusCompleted  SessionStatus = "COMPLETED"
	SessionStatusCancelled  SessionStatus = "CANCELLED"
)

// String returns the string representation of SessionStatus
func (s SessionStatus) String() string {
	return string(s)
}

// IsTerminal reports whether the status admits no further transitions
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusCancelled
}

// CanTransitionTo checks if the status can transition to the target status
func (s SessionStatus) CanTransitionTo(target SessionStatus) bool {
	switch s {
	case SessionStatusScheduled:
		return target == SessionStatusInProgress || target == SessionStatusCancelled
	case SessionStatusInProgress:
		return target == SessionStatusCompleted || target == SessionStatusCancelled
	case SessionStatusCompleted, SessionStatusCancelled:
		return false
	}
	return false
}

// CountingSession is one bounded physical counting exercise spawned from a
// plan. Aggregate root; its items are independently persisted entities and the
// aggregate counters below are a materialized view recomputed from an item
// scan, never written from outside.
type CountingSession struct {
	shared.BaseAggregateRoot
	Code            string
	PlanID          uuid.UUID
	Status          SessionStatus
	ScheduledDate   time.Time
	AssigneeID      *uuid.UUID
	StartedAt       *time.Time
	CompletedAt     *time.Time
	CompletedByID   *uuid.UUID
	TotalItems      int
	CountedItems    int
	ItemsWithDiff   int
	AccuracyPercent decimal.Decimal
	CreatedByID     uuid.UUID
}

// NewCountingSession creates a session in SCHEDULED status
func NewCountingSession(planID uuid.UUID, code string, scheduledDate time.Time, assigneeID *uuid.UUID, createdByID uuid.UUID) (*CountingSession, error) {
	if planID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Plan ID cannot be empty")
	}
	if code == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Session code cannot be empty")
	}

	s := &CountingSession{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Code:              code,
		PlanID:            planID,
		Status:            SessionStatusScheduled,
		ScheduledDate:     scheduledDate,
		AssigneeID:        assigneeID,
		AccuracyPercent:   decimal.Zero,
		CreatedByID:       createdByID,
	}

	s.AddDomainEvent(NewSessionScheduledEvent(s))

	return s, nil
}

// Start transitions the session to IN_PROGRESS and stamps StartedAt
func (s *CountingSession) Start() error {
	if !s.Status.CanTransitionTo(SessionStatusInProgress) {
		return shared.NewDomainError("INVALID_TRANSITION", fmt.Sprintf("Cannot transition session from %s to IN_PROGRESS", s.Status))
	}

	now := time.Now()
	s.Status = SessionStatusInProgress
	s.StartedAt = &now
	s.UpdatedAt = now
	s.IncrementVersion()

	s.AddDomainEvent(NewSessionStartedEvent(s))

	return nil
}

// Complete transitions the session to COMPLETED, freezing the accuracy held
// in the aggregates. Callers must recompute aggregates from a consistent item
// scan first; enforcement of no-pending-items lives in the application layer
// because it needs the item set.
func (s *CountingSession) Complete(completedByID uuid.UUID) error {
	if !s.Status.CanTransitionTo(SessionStatusCompleted) {
		return shared.NewDomainError("INVALID_TRANSITION", fmt.Sprintf("Cannot transition session from %s to COMPLETED", s.Status))
	}

	now := time.Now()
	s.Status = SessionStatusCompleted
	s.CompletedAt = &now
	s.CompletedByID = &completedByID
	s.UpdatedAt = now
	s.IncrementVersion()

	s.AddDomainEvent(NewSessionCompletedEvent(s))

	return nil
}

// Cancel transitions the session to CANCELLED. Item cascade happens in the
// application layer.
func (s *CountingSession) Cancel() error {
	if !s.Status.CanTransitionTo(SessionStatusCancelled) {
		return shared.NewDomainError("INVALID_TRANSITION", fmt.Sprintf("Cannot transition session from %s to CANCELLED", s.Status))
	}

	s.Status = SessionStatusCancelled
	s.UpdatedAt = time.Now()
	s.IncrementVersion()

	s.AddDomainEvent(NewSessionCancelledEvent(s))

	return nil
}

// RecomputeAggregates rebuilds the materialized counters from a consistent
// scan of the session's items. CountedItems covers COUNTED, RECOUNTED and
// ADJUSTED items; ItemsWithDiff counts divergent items among those. Accuracy
// is (counted - diff) / counted * 100, and 0 when nothing has been counted.
func (s *CountingSession) RecomputeAggregates(items []CountingItem) {
	total := len(items)
	counted := 0
	withDiff := 0
	for i := range items {
		switch items[i].Status {
		case ItemStatusCounted, ItemStatusRecounted, ItemStatusAdjusted:
			counted++
			if items[i].HasDifference {
				withDiff++
			}
		}
	}

	s.TotalItems = total
	s.CountedItems = counted
	s.ItemsWithDiff = withDiff
	if counted == 0 {
		s.AccuracyPercent = decimal.Zero
	} else {
		s.AccuracyPercent = decimal.NewFromInt(int64(counted - withDiff)).
			Div(decimal.NewFromInt(int64(counted))).
			Mul(hundred)
	}
	s.UpdatedAt = time.Now()
}

// RefreshProgress recomputes the aggregates as a versioned update. It is the
// entry point for item activity that moves the counters without a session
// transition; transitions already bump the version themselves and call
// RecomputeAggregates directly.
func (s *CountingSession) RefreshProgress(items []CountingItem) {
	s.RecomputeAggregates(items)
	s.IncrementVersion()
}

// Progress returns the counted share of items as a percentage
func (s *CountingSession) Progress() float64 {
	if s.TotalItems == 0 {
		return 0
	}
	return float64(s.CountedItems) / float64(s.TotalItems) * 100
}
