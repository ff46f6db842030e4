package counting

import (
	"fmt"
	"time"

	"github.com/cyclecount/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PlanType classifies the counting exercise a plan spawns
type PlanType string

const (
	PlanTypeCyclic        PlanType = "CYCLIC"
	PlanTypeSpot          PlanType = "SPOT"
	PlanTypeFullInventory PlanType = "FULL_INVENTORY"
	PlanTypeBlind         PlanType = "BLIND"
)

// IsValid checks if the type is a valid PlanType
func (t PlanType) IsValid() bool {
	switch t {
	case PlanTypeCyclic, PlanTypeSpot, PlanTypeFullInventory, PlanTypeBlind:
		return true
	}
	return false
}

// Frequency is the scheduling cadence of a plan
type Frequency string

const (
	FrequencyDaily      Frequency = "DAILY"
	FrequencyWeekly     Frequency = "WEEKLY"
	FrequencyBiweekly   Frequency = "BIWEEKLY"
	FrequencyMonthly    Frequency = "MONTHLY"
	FrequencyQuarterly  Frequency = "QUARTERLY"
	FrequencySemiannual Frequency = "SEMIANNUAL"
	FrequencyAnnual     Frequency = "ANNUAL"
	FrequencyOnDemand   Frequency = "ON_DEMAND"
)

// IsValid checks if the frequency is a known Frequency
func (f Frequency) IsValid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyBiweekly, FrequencyMonthly,
		FrequencyQuarterly, FrequencySemiannual, FrequencyAnnual, FrequencyOnDemand:
		return true
	}
	return false
}

// IsRecurring reports whether the frequency auto-schedules sessions
func (f Frequency) IsRecurring() bool {
	return f.IsValid() && f != FrequencyOnDemand
}

// Next returns the execution timestamp one frequency step after t.
// Month-based cadences step by calendar months.
func (f Frequency) Next(t time.Time) time.Time {
	switch f {
	case FrequencyDaily:
		return t.AddDate(0, 0, 1)
	case FrequencyWeekly:
		return t.AddDate(0, 0, 7)
	case FrequencyBiweekly:
		return t.AddDate(0, 0, 14)
	case FrequencyMonthly:
		return t.AddDate(0, 1, 0)
	case FrequencyQuarterly:
		return t.AddDate(0, 3, 0)
	case FrequencySemiannual:
		return t.AddDate(0, 6, 0)
	case FrequencyAnnual:
		return t.AddDate(1, 0, 0)
	}
	return t
}

// PlanStatus represents the lifecycle state of a counting plan
type PlanStatus string

const (
	PlanStatusDraft     PlanStatus = "DRAFT"
	PlanStatusActive    PlanStatus = "ACTIVE"
	PlanStatusPaused    PlanStatus = "PAUSED"
	PlanStatusCompleted PlanStatus = "COMPLETED"
	PlanStatusCancelled PlanStatus = "CANCELLED"
)

// String returns the string representation of PlanStatus
func (s PlanStatus) String() string {
	return string(s)
}

// IsTerminal reports whether the status admits no further transitions
func (s PlanStatus) IsTerminal() bool {
	return s == PlanStatusCompleted || s == PlanStatusCancelled
}

// CanTransitionTo checks if the status can transition to the target status
func (s PlanStatus) CanTransitionTo(target PlanStatus) bool {
	switch s {
	case PlanStatusDraft:
		return target == PlanStatusActive || target == PlanStatusCancelled
	case PlanStatusActive:
		return target == PlanStatusPaused || target == PlanStatusCompleted || target == PlanStatusCancelled
	case PlanStatusPaused:
		return target == PlanStatusActive || target == PlanStatusCompleted || target == PlanStatusCancelled
	case PlanStatusCompleted, PlanStatusCancelled:
		return false
	}
	return false
}

// CountingPlan is the template that spawns counting sessions: what to count,
// how often, and under which tolerance and recount rules. Aggregate root.
type CountingPlan struct {
	shared.BaseAggregateRoot
	Code             string
	Name             string
	Description      string
	Type             PlanType
	Frequency        Frequency
	Criteria         Criteria
	LocationID       *uuid.UUID
	AllowBlindCount  bool
	RequireRecount   bool
	TolerancePercent *decimal.Decimal
	ToleranceQty     *decimal.Decimal
	Status           PlanStatus
	StartDate        time.Time
	NextExecution    *time.Time
	CreatedByID      uuid.UUID
}

// NewCountingPlan creates a counting plan in DRAFT status
func NewCountingPlan(code, name string, planType PlanType, frequency Frequency, criteria Criteria, startDate time.Time, createdByID uuid.UUID) (*CountingPlan, error) {
	if code == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Plan code cannot be empty")
	}
	if name == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Plan name cannot be empty")
	}
	if !planType.IsValid() {
		return nil, shared.NewDomainError("INVALID_INPUT", "Unknown plan type: "+string(planType))
	}
	if !frequency.IsValid() {
		return nil, shared.NewDomainError("INVALID_INPUT", "Unknown frequency: "+string(frequency))
	}
	if err := criteria.Validate(); err != nil {
		return nil, err
	}
	if createdByID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Creator ID cannot be empty")
	}

	p := &CountingPlan{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Code:              code,
		Name:              name,
		Type:              planType,
		Frequency:         frequency,
		Criteria:          criteria,
		Status:            PlanStatusDraft,
		StartDate:         startDate,
		CreatedByID:       createdByID,
	}

	p.AddDomainEvent(NewPlanCreatedEvent(p))

	return p, nil
}

// SetTolerances configures the divergence thresholds. Either bound may be nil;
// negative bounds are rejected.
func (p *CountingPlan) SetTolerances(tolerancePercent, toleranceQty *decimal.Decimal) error {
	if tolerancePercent != nil && tolerancePercent.IsNegative() {
		return shared.NewDomainError("INVALID_INPUT", "Tolerance percent cannot be negative")
	}
	if toleranceQty != nil && toleranceQty.IsNegative() {
		return shared.NewDomainError("INVALID_INPUT", "Tolerance quantity cannot be negative")
	}
	p.TolerancePercent = tolerancePercent
	p.ToleranceQty = toleranceQty
	p.UpdatedAt = time.Now()
	return nil
}

// Activate transitions the plan to ACTIVE and, for recurring plans, computes
// the initial next execution from the start date. ON_DEMAND plans never
// auto-schedule so NextExecution stays nil.
func (p *CountingPlan) Activate(now time.Time) error {
	if !p.Status.CanTransitionTo(PlanStatusActive) {
		return shared.NewDomainError("INVALID_TRANSITION", fmt.Sprintf("Cannot transition plan from %s to ACTIVE", p.Status))
	}

	p.Status = PlanStatusActive
	if p.Frequency.IsRecurring() {
		next := p.StartDate
		if next.Before(now) {
			next = now
		}
		p.NextExecution = &next
	} else {
		p.NextExecution = nil
	}
	p.UpdatedAt = now
	p.IncrementVersion()

	p.AddDomainEvent(NewPlanActivatedEvent(p))

	return nil
}

// Pause transitions the plan to PAUSED and clears the next execution; it is
// recomputed on the next Activate.
func (p *CountingPlan) Pause() error {
	if !p.Status.CanTransitionTo(PlanStatusPaused) {
		return shared.NewDomainError("INVALID_TRANSITION", fmt.Sprintf("Cannot transition plan from %s to PAUSED", p.Status))
	}

	p.Status = PlanStatusPaused
	p.NextExecution = nil
	p.UpdatedAt = time.Now()
	p.IncrementVersion()

	return nil
}

// Complete transitions the plan to COMPLETED
func (p *CountingPlan) Complete() error {
	if !p.Status.CanTransitionTo(PlanStatusCompleted) {
		return shared.NewDomainError("INVALID_TRANSITION", fmt.Sprintf("Cannot transition plan from %s to COMPLETED", p.Status))
	}

	p.Status = PlanStatusCompleted
	p.NextExecution = nil
	p.UpdatedAt = time.Now()
	p.IncrementVersion()

	return nil
}

// Cancel transitions the plan to CANCELLED from any non-terminal state.
// Cancelling an already cancelled plan is a no-op.
func (p *CountingPlan) Cancel() error {
	if p.Status == PlanStatusCancelled {
		return nil
	}
	if p.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_TRANSITION", fmt.Sprintf("Cannot transition plan from %s to CANCELLED", p.Status))
	}

	p.Status = PlanStatusCancelled
	p.NextExecution = nil
	p.UpdatedAt = time.Now()
	p.IncrementVersion()

	return nil
}

// IsDue reports whether the scheduler should materialize a session now
func (p *CountingPlan) IsDue(now time.Time) bool {
	return p.Status == PlanStatusActive &&
		p.Frequency.IsRecurring() &&
		p.NextExecution != nil &&
		!p.NextExecution.After(now)
}

// AdvanceNextExecution steps the next execution one frequency interval past
// the current one
func (p *CountingPlan) AdvanceNextExecution() {
	if p.NextExecution == nil || !p.Frequency.IsRecurring() {
		return
	}
	next := p.Frequency.Next(*p.NextExecution)
	p.NextExecution = &next
	p.UpdatedAt = time.Now()
	p.IncrementVersion()
}

// CanEditScope reports whether criteria and frequency may still be changed
func (p *CountingPlan) CanEditScope() bool {
	return p.Status == PlanStatusDraft || p.Status == PlanStatusPaused
}
