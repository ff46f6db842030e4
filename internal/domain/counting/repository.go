package counting

import (
	"context"
	"time"

	"github.com/cyclecount/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// PlanFilter narrows plan list queries
type PlanFilter struct {
	shared.Filter
	Status    *PlanStatus
	Type      *PlanType
	Frequency *Frequency
}

// SessionFilter narrows session list queries
type SessionFilter struct {
	shared.Filter
	Status     *SessionStatus
	PlanID     *uuid.UUID
	AssigneeID *uuid.UUID
	StartDate  *time.Time
	EndDate    *time.Time
}

// ItemFilter narrows item list queries
type ItemFilter struct {
	shared.Filter
	SessionID     *uuid.UUID
	Status        *ItemStatus
	HasDifference *bool
	ProductID     *uuid.UUID
}

// CountingPlanRepository defines persistence for counting plans
type CountingPlanRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*CountingPlan, error)
	FindByCode(ctx context.Context, code string) (*CountingPlan, error)
	FindAll(ctx context.Context, filter PlanFilter) ([]CountingPlan, error)
	Count(ctx context.Context, filter PlanFilter) (int64, error)

	// FindDue returns ACTIVE recurring plans whose next execution is at or
	// before now
	FindDue(ctx context.Context, now time.Time) ([]CountingPlan, error)

	Save(ctx context.Context, plan *CountingPlan) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// CountingSessionRepository defines persistence for counting sessions
type CountingSessionRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*CountingSession, error)
	FindByCode(ctx context.Context, code string) (*CountingSession, error)
	FindAll(ctx context.Context, filter SessionFilter) ([]CountingSession, error)
	Count(ctx context.Context, filter SessionFilter) (int64, error)
	FindByPlan(ctx context.Context, planID uuid.UUID, filter SessionFilter) ([]CountingSession, error)

	// CountActiveByPlan counts SCHEDULED and IN_PROGRESS sessions owned by the
	// plan; backs the plan-deletion guard
	CountActiveByPlan(ctx context.Context, planID uuid.UUID) (int64, error)

	Save(ctx context.Context, session *CountingSession) error

	// SaveWithVersion saves using optimistic locking on the session version
	SaveWithVersion(ctx context.Context, session *CountingSession) error

	// CreateWithItems persists a session and its item snapshot in one
	// transaction. A duplicate (plan, scheduled date) pair yields
	// shared.ErrAlreadyExists so scheduler retries can treat it as a no-op.
	CreateWithItems(ctx context.Context, session *CountingSession, items []CountingItem) error

	// GenerateCode allocates the next session code for the given date
	GenerateCode(ctx context.Context, date time.Time) (string, error)
}

// CountingItemRepository defines persistence for counting items
type CountingItemRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*CountingItem, error)
	FindBySession(ctx context.Context, sessionID uuid.UUID) ([]CountingItem, error)
	FindAll(ctx context.Context, filter ItemFilter) ([]CountingItem, error)
	Count(ctx context.Context, filter ItemFilter) (int64, error)

	Save(ctx context.Context, item *CountingItem) error

	// SaveWithVersion applies the item's state under compare-and-swap on its
	// version; a lost race yields a CONCURRENT_MODIFICATION domain error
	SaveWithVersion(ctx context.Context, item *CountingItem) error
}
