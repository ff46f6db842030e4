package counting

import (
	"fmt"
	"time"

	"github.com/cyclecount/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ItemStatus represents the lifecycle state of a counting item
type ItemStatus string

const (
	ItemStatusPending   ItemStatus = "PENDING"
	ItemStatusCounted   ItemStatus = "COUNTED"
	ItemStatusRecounted ItemStatus = "RECOUNTED"
	ItemStatusAdjusted  ItemStatus = "ADJUSTED"
	ItemStatusCancelled ItemStatus = "CANCELLED"
)

// String returns the string representation of ItemStatus
func (s ItemStatus) String() string {
	return string(s)
}

// IsTerminal reports whether the status admits no further transitions
func (s ItemStatus) IsTerminal() bool {
	return s == ItemStatusAdjusted || s == ItemStatusCancelled
}

// CountingItem is the atomic unit of counting work: one product (optionally
// one location) within one session. SystemQty is frozen at creation from the
// stock ledger and never recomputed; concurrent stock movements during an open
// session surface as apparent divergence instead of being silently corrected.
//
// Items are persisted independently of their session so concurrent counters
// can submit against different items without contention; Version backs the
// per-item compare-and-swap.
type CountingItem struct {
	shared.BaseAggregateRoot
	SessionID         uuid.UUID
	ProductID         uuid.UUID
	LocationID        *uuid.UUID
	ProductName       string
	ProductCode       string
	Unit              string
	SystemQty         decimal.Decimal
	CountedQty        *decimal.Decimal
	RecountQty        *decimal.Decimal
	FinalQty          *decimal.Decimal
	Difference        decimal.Decimal
	DifferencePercent decimal.Decimal
	HasDifference     bool
	Status            ItemStatus
	CountedByID       *uuid.UUID
	CountedAt         *time.Time
	RecountedByID     *uuid.UUID
	RecountedAt       *time.Time
	Notes             string
	CancelReason      string
}

// NewCountingItem creates a pending item with the system quantity snapshotted
// from the ledger
func NewCountingItem(sessionID uuid.UUID, product ProductRef, locationID *uuid.UUID, systemQty decimal.Decimal) (*CountingItem, error) {
	if sessionID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Session ID cannot be empty")
	}
	if product.ID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Product ID cannot be empty")
	}

	return &CountingItem{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		SessionID:         sessionID,
		ProductID:         product.ID,
		LocationID:        locationID,
		ProductName:       product.Name,
		ProductCode:       product.Code,
		Unit:              product.Unit,
		SystemQty:         systemQty,
		Difference:        decimal.Zero,
		DifferencePercent: decimal.Zero,
		Status:            ItemStatusPending,
	}, nil
}

// RecordCount records the first physical count and classifies it against the
// plan's tolerances
func (i *CountingItem) RecordCount(countedQty decimal.Decimal, countedByID uuid.UUID, notes string, plan *CountingPlan) error {
	if countedQty.IsNegative() {
		return shared.NewDomainError("INVALID_QUANTITY", "Counted quantity cannot be negative")
	}
	if i.Status != ItemStatusPending {
		return shared.NewDomainError("INVALID_TRANSITION", fmt.Sprintf("Cannot count item in %s status", i.Status))
	}

	eval := Evaluate(i.SystemQty, countedQty, plan.TolerancePercent, plan.ToleranceQty)

	now := time.Now()
	i.CountedQty = &countedQty
	i.Difference = eval.Difference
	i.DifferencePercent = eval.DifferencePercent
	i.HasDifference = eval.HasDifference
	i.Status = ItemStatusCounted
	i.CountedByID = &countedByID
	i.CountedAt = &now
	i.Notes = notes
	i.UpdatedAt = now
	i.IncrementVersion()

	i.AddDomainEvent(NewItemCountedEvent(i))

	return nil
}

// RecordRecount records the second count for a divergent item under a plan
// that requires recounts. The recounted quantity becomes the candidate for
// settlement regardless of whether it still diverges.
func (i *CountingItem) RecordRecount(recountQty decimal.Decimal, recountedByID uuid.UUID, notes string, plan *CountingPlan) error {
	if recountQty.IsNegative() {
		return shared.NewDomainError("INVALID_QUANTITY", "Recounted quantity cannot be negative")
	}
	if i.Status != ItemStatusCounted {
		return shared.NewDomainError("INVALID_TRANSITION", fmt.Sprintf("Cannot recount item in %s status", i.Status))
	}
	if !plan.RequireRecount || !i.HasDifference {
		return shared.NewDomainError("INVALID_TRANSITION", "Recount is only allowed for divergent items under a recount-requiring plan")
	}

	eval := Evaluate(i.SystemQty, recountQty, plan.TolerancePercent, plan.ToleranceQty)

	now := time.Now()
	i.RecountQty = &recountQty
	i.Difference = eval.Difference
	i.DifferencePercent = eval.DifferencePercent
	i.HasDifference = eval.HasDifference
	i.Status = ItemStatusRecounted
	i.RecountedByID = &recountedByID
	i.RecountedAt = &now
	if notes != "" {
		i.Notes = notes
	}
	i.UpdatedAt = now
	i.IncrementVersion()

	return nil
}

// AwaitingRecount reports whether settlement must skip this item because the
// plan demands a recount that has not happened yet
func (i *CountingItem) AwaitingRecount(plan *CountingPlan) bool {
	return i.Status == ItemStatusCounted && plan.RequireRecount && i.HasDifference
}

// TrustedQty returns the quantity settlement should trust: the recount when
// one was taken, otherwise the first count
func (i *CountingItem) TrustedQty() (decimal.Decimal, bool) {
	if i.RecountQty != nil {
		return *i.RecountQty, true
	}
	if i.CountedQty != nil {
		return *i.CountedQty, true
	}
	return decimal.Decimal{}, false
}

// MarkAdjusted settles the item: FinalQty is fixed exactly once and the item
// becomes terminal. The ledger write, when needed, happens in the same
// transaction in the reconciliation service.
func (i *CountingItem) MarkAdjusted() error {
	if i.Status != ItemStatusCounted && i.Status != ItemStatusRecounted {
		return shared.NewDomainError("INVALID_TRANSITION", fmt.Sprintf("Cannot settle item in %s status", i.Status))
	}
	if i.FinalQty != nil {
		return shared.NewDomainError("INVALID_TRANSITION", "Final quantity is already set")
	}

	finalQty, ok := i.TrustedQty()
	if !ok {
		return shared.NewDomainError("INVALID_TRANSITION", "Item has no recorded count to settle")
	}

	i.FinalQty = &finalQty
	i.Difference = finalQty.Sub(i.SystemQty)
	i.Status = ItemStatusAdjusted
	i.UpdatedAt = time.Now()
	i.IncrementVersion()

	i.AddDomainEvent(NewItemAdjustedEvent(i))

	return nil
}

// CancelWithReason cancels a counted item whose divergence is explained by a
// non-inventory cause; no ledger adjustment occurs and FinalQty stays unset
func (i *CountingItem) CancelWithReason(reason string) error {
	if i.Status != ItemStatusCounted && i.Status != ItemStatusRecounted {
		return shared.NewDomainError("INVALID_TRANSITION", fmt.Sprintf("Cannot cancel item in %s status", i.Status))
	}
	if reason == "" {
		return shared.NewDomainError("INVALID_INPUT", "Cancellation reason is required")
	}

	i.Status = ItemStatusCancelled
	i.CancelReason = reason
	i.UpdatedAt = time.Now()
	i.IncrementVersion()

	return nil
}

// CancelCascade cancels any non-terminal item when the owning session is
// cancelled
func (i *CountingItem) CancelCascade(reason string) {
	if i.Status.IsTerminal() {
		return
	}
	i.Status = ItemStatusCancelled
	i.CancelReason = reason
	i.UpdatedAt = time.Now()
	i.IncrementVersion()
}
