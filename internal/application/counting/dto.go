package counting

import (
	"time"

	"github.com/cyclecount/backend/internal/domain/counting"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ===================== Request DTOs =====================

// CreatePlanRequest represents a request to create a counting plan
type CreatePlanRequest struct {
	Code             string            `json:"code" binding:"required,max=50"`
	Name             string            `json:"name" binding:"required,max=200"`
	Description      string            `json:"description" binding:"max=500"`
	Type             string            `json:"type" binding:"required"`
	Frequency        string            `json:"frequency" binding:"required"`
	Criteria         counting.Criteria `json:"criteria" binding:"required"`
	LocationID       *uuid.UUID        `json:"location_id"`
	AllowBlindCount  bool              `json:"allow_blind_count"`
	RequireRecount   bool              `json:"require_recount"`
	TolerancePercent *decimal.Decimal  `json:"tolerance_percent"`
	ToleranceQty     *decimal.Decimal  `json:"tolerance_qty"`
	StartDate        *time.Time        `json:"start_date"` // Optional, defaults to now
}

// UpdatePlanRequest represents a partial update to a counting plan
type UpdatePlanRequest struct {
	Name             *string            `json:"name" binding:"omitempty,max=200"`
	Description      *string            `json:"description" binding:"omitempty,max=500"`
	Criteria         *counting.Criteria `json:"criteria"`
	Frequency        *string            `json:"frequency"`
	AllowBlindCount  *bool              `json:"allow_blind_count"`
	RequireRecount   *bool              `json:"require_recount"`
	TolerancePercent *decimal.Decimal   `json:"tolerance_percent"`
	ToleranceQty     *decimal.Decimal   `json:"tolerance_qty"`
	ClearTolerances  bool               `json:"clear_tolerances"`
}

// PlanListFilter narrows plan listings
type PlanListFilter struct {
	Page      int    `form:"page"`
	PageSize  int    `form:"page_size"`
	OrderBy   string `form:"order_by"`
	OrderDir  string `form:"order_dir"`
	Search    string `form:"search"`
	Status    string `form:"status"`
	Type      string `form:"type"`
	Frequency string `form:"frequency"`
}

// CreateSessionRequest represents a manual / on-demand session creation
type CreateSessionRequest struct {
	PlanID        uuid.UUID  `json:"plan_id" binding:"required"`
	ScheduledDate *time.Time `json:"scheduled_date"` // Optional, defaults to now
	AssigneeID    *uuid.UUID `json:"assignee_id"`
}

// SessionListFilter narrows session listings
type SessionListFilter struct {
	Page       int        `form:"page"`
	PageSize   int        `form:"page_size"`
	OrderBy    string     `form:"order_by"`
	OrderDir   string     `form:"order_dir"`
	Search     string     `form:"search"`
	Status     string     `form:"status"`
	PlanID     *uuid.UUID `form:"plan_id"`
	AssigneeID *uuid.UUID `form:"assignee_id"`
	StartDate  *time.Time `form:"start_date" time_format:"2006-01-02"`
	EndDate    *time.Time `form:"end_date" time_format:"2006-01-02"`
}

// CompleteSessionRequest carries the completion override flag
type CompleteSessionRequest struct {
	// Force completes the session even with uncounted items; remaining
	// PENDING items are cancelled, not silently ignored
	Force bool `json:"force"`
}

// RecordCountRequest represents a count submission for an item
type RecordCountRequest struct {
	CountedQty decimal.Decimal `json:"counted_qty" binding:"required"`
	Notes      string          `json:"notes" binding:"max=500"`
}

// RecordRecountRequest represents a recount submission for an item
type RecordRecountRequest struct {
	RecountQty decimal.Decimal `json:"recount_qty" binding:"required"`
	Notes      string          `json:"notes" binding:"max=500"`
}

// CancelItemRequest carries the non-inventory explanation for dropping an item
type CancelItemRequest struct {
	Reason string `json:"reason" binding:"required,min=1,max=500"`
}

// ItemListFilter narrows item listings
type ItemListFilter struct {
	Page          int        `form:"page"`
	PageSize      int        `form:"page_size"`
	SessionID     *uuid.UUID `form:"session_id"`
	Status        string     `form:"status"`
	HasDifference *bool      `form:"has_difference"`
	ProductID     *uuid.UUID `form:"product_id"`
}

// ===================== Response DTOs =====================

// PlanResponse represents a counting plan in API responses
type PlanResponse struct {
	ID               uuid.UUID         `json:"id"`
	Code             string            `json:"code"`
	Name             string            `json:"name"`
	Description      string            `json:"description,omitempty"`
	Type             string            `json:"type"`
	Frequency        string            `json:"frequency"`
	Criteria         counting.Criteria `json:"criteria"`
	LocationID       *uuid.UUID        `json:"location_id,omitempty"`
	AllowBlindCount  bool              `json:"allow_blind_count"`
	RequireRecount   bool              `json:"require_recount"`
	TolerancePercent *decimal.Decimal  `json:"tolerance_percent,omitempty"`
	ToleranceQty     *decimal.Decimal  `json:"tolerance_qty,omitempty"`
	Status           string            `json:"status"`
	StartDate        time.Time         `json:"start_date"`
	NextExecution    *time.Time        `json:"next_execution,omitempty"`
	CreatedByID      uuid.UUID         `json:"created_by_id"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
	Version          int               `json:"version"`
}

// ToPlanResponse converts a domain plan to its response form
func ToPlanResponse(p *counting.CountingPlan) PlanResponse {
	return PlanResponse{
		ID:               p.ID,
		Code:             p.Code,
		Name:             p.Name,
		Description:      p.Description,
		Type:             string(p.Type),
		Frequency:        string(p.Frequency),
		Criteria:         p.Criteria,
		LocationID:       p.LocationID,
		AllowBlindCount:  p.AllowBlindCount,
		RequireRecount:   p.RequireRecount,
		TolerancePercent: p.TolerancePercent,
		ToleranceQty:     p.ToleranceQty,
		Status:           string(p.Status),
		StartDate:        p.StartDate,
		NextExecution:    p.NextExecution,
		CreatedByID:      p.CreatedByID,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
		Version:          p.Version,
	}
}

// ToPlanResponses converts a slice of plans
func ToPlanResponses(plans []counting.CountingPlan) []PlanResponse {
	out := make([]PlanResponse, len(plans))
	for i := range plans {
		out[i] = ToPlanResponse(&plans[i])
	}
	return out
}

// SessionResponse represents a counting session in API responses
type SessionResponse struct {
	ID              uuid.UUID       `json:"id"`
	Code            string          `json:"code"`
	PlanID          uuid.UUID       `json:"plan_id"`
	Status          string          `json:"status"`
	ScheduledDate   time.Time       `json:"scheduled_date"`
	AssigneeID      *uuid.UUID      `json:"assignee_id,omitempty"`
	StartedAt       *time.Time      `json:"started_at,omitempty"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
	CompletedByID   *uuid.UUID      `json:"completed_by_id,omitempty"`
	TotalItems      int             `json:"total_items"`
	CountedItems    int             `json:"counted_items"`
	ItemsWithDiff   int             `json:"items_with_diff"`
	AccuracyPercent decimal.Decimal `json:"accuracy_percent"`
	Progress        float64         `json:"progress"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Version         int             `json:"version"`
}

// SessionProgressResponse is the lightweight progress view of a session
type SessionProgressResponse struct {
	SessionID     uuid.UUID `json:"session_id"`
	Status        string    `json:"status"`
	TotalItems    int       `json:"total_items"`
	CountedItems  int       `json:"counted_items"`
	PendingItems  int       `json:"pending_items"`
	ItemsWithDiff int       `json:"items_with_diff"`
	Progress      float64   `json:"progress"`
}

// ToSessionResponse converts a domain session to its response form
func ToSessionResponse(s *counting.CountingSession) SessionResponse {
	return SessionResponse{
		ID:              s.ID,
		Code:            s.Code,
		PlanID:          s.PlanID,
		Status:          string(s.Status),
		ScheduledDate:   s.ScheduledDate,
		AssigneeID:      s.AssigneeID,
		StartedAt:       s.StartedAt,
		CompletedAt:     s.CompletedAt,
		CompletedByID:   s.CompletedByID,
		TotalItems:      s.TotalItems,
		CountedItems:    s.CountedItems,
		ItemsWithDiff:   s.ItemsWithDiff,
		AccuracyPercent: s.AccuracyPercent,
		Progress:        s.Progress(),
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
		Version:         s.Version,
	}
}

// ToSessionResponses converts a slice of sessions
func ToSessionResponses(sessions []counting.CountingSession) []SessionResponse {
	out := make([]SessionResponse, len(sessions))
	for i := range sessions {
		out[i] = ToSessionResponse(&sessions[i])
	}
	return out
}

// ItemResponse represents a counting item in API responses. When the plan is
// a blind-count plan the system quantity and derived fields are withheld until
// the item has been counted.
type ItemResponse struct {
	ID                uuid.UUID        `json:"id"`
	SessionID         uuid.UUID        `json:"session_id"`
	ProductID         uuid.UUID        `json:"product_id"`
	LocationID        *uuid.UUID       `json:"location_id,omitempty"`
	ProductName       string           `json:"product_name"`
	ProductCode       string           `json:"product_code"`
	Unit              string           `json:"unit"`
	SystemQty         *decimal.Decimal `json:"system_qty,omitempty"`
	CountedQty        *decimal.Decimal `json:"counted_qty,omitempty"`
	RecountQty        *decimal.Decimal `json:"recount_qty,omitempty"`
	FinalQty          *decimal.Decimal `json:"final_qty,omitempty"`
	Difference        *decimal.Decimal `json:"difference,omitempty"`
	DifferencePercent *decimal.Decimal `json:"difference_percent,omitempty"`
	HasDifference     bool             `json:"has_difference"`
	Status            string           `json:"status"`
	CountedByID       *uuid.UUID       `json:"counted_by_id,omitempty"`
	CountedAt         *time.Time       `json:"counted_at,omitempty"`
	RecountedByID     *uuid.UUID       `json:"recounted_by_id,omitempty"`
	RecountedAt       *time.Time       `json:"recounted_at,omitempty"`
	Notes             string           `json:"notes,omitempty"`
	CancelReason      string           `json:"cancel_reason,omitempty"`
	Version           int              `json:"version"`
}

// ToItemResponse converts a domain item; blind hides the system quantity for
// items still awaiting their first count
func ToItemResponse(i *counting.CountingItem, blind bool) ItemResponse {
	resp := ItemResponse{
		ID:            i.ID,
		SessionID:     i.SessionID,
		ProductID:     i.ProductID,
		LocationID:    i.LocationID,
		ProductName:   i.ProductName,
		ProductCode:   i.ProductCode,
		Unit:          i.Unit,
		CountedQty:    i.CountedQty,
		RecountQty:    i.RecountQty,
		FinalQty:      i.FinalQty,
		HasDifference: i.HasDifference,
		Status:        string(i.Status),
		CountedByID:   i.CountedByID,
		CountedAt:     i.CountedAt,
		RecountedByID: i.RecountedByID,
		RecountedAt:   i.RecountedAt,
		Notes:         i.Notes,
		CancelReason:  i.CancelReason,
		Version:       i.Version,
	}
	if !blind || i.Status != counting.ItemStatusPending {
		systemQty := i.SystemQty
		difference := i.Difference
		pct := i.DifferencePercent
		resp.SystemQty = &systemQty
		resp.Difference = &difference
		resp.DifferencePercent = &pct
	}
	return resp
}

// ToItemResponses converts a slice of items
func ToItemResponses(items []counting.CountingItem, blind bool) []ItemResponse {
	out := make([]ItemResponse, len(items))
	for i := range items {
		out[i] = ToItemResponse(&items[i], blind)
	}
	return out
}

// SettlementItemResult reports the per-item outcome of a settlement run
type SettlementItemResult struct {
	ItemID     uuid.UUID  `json:"item_id"`
	ProductID  uuid.UUID  `json:"product_id"`
	Outcome    string     `json:"outcome"` // adjusted, skipped_recount_pending, skipped_already_adjusted, failed
	MovementID *uuid.UUID `json:"movement_id,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// Settlement outcome constants
const (
	SettlementOutcomeAdjusted        = "adjusted"
	SettlementOutcomeRecountPending  = "skipped_recount_pending"
	SettlementOutcomeAlreadyAdjusted = "skipped_already_adjusted"
	SettlementOutcomeFailed          = "failed"
)

// SettlementResponse summarizes one settlement invocation
type SettlementResponse struct {
	SessionID uuid.UUID              `json:"session_id"`
	Adjusted  int                    `json:"adjusted"`
	Skipped   int                    `json:"skipped"`
	Failed    int                    `json:"failed"`
	Items     []SettlementItemResult `json:"items"`
}

// DivergenceLine is one divergent item in a session report
type DivergenceLine struct {
	ProductID       uuid.UUID       `json:"product_id"`
	ProductCode     string          `json:"product_code"`
	ProductName     string          `json:"product_name"`
	Unit            string          `json:"unit"`
	SystemQty       decimal.Decimal `json:"system_qty"`
	FinalQty        decimal.Decimal `json:"final_qty"`
	Difference      decimal.Decimal `json:"difference"`
	DifferenceValue decimal.Decimal `json:"difference_value"`
}

// SessionReport is the session-level divergence and accuracy summary
type SessionReport struct {
	SessionID            uuid.UUID        `json:"session_id"`
	SessionCode          string           `json:"session_code"`
	PlanID               uuid.UUID        `json:"plan_id"`
	Status               string           `json:"status"`
	TotalItems           int              `json:"total_items"`
	CountedItems         int              `json:"counted_items"`
	ItemsWithDiff        int              `json:"items_with_diff"`
	AccuracyPercent      decimal.Decimal  `json:"accuracy_percent"`
	Shortages            []DivergenceLine `json:"shortages"`
	Surpluses            []DivergenceLine `json:"surpluses"`
	TotalDifferenceValue decimal.Decimal  `json:"total_difference_value"`
	GeneratedAt          time.Time        `json:"generated_at"`
}

// PlanAccuracyPoint is one completed session in a plan accuracy trend
type PlanAccuracyPoint struct {
	SessionID       uuid.UUID       `json:"session_id"`
	SessionCode     string          `json:"session_code"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
	TotalItems      int             `json:"total_items"`
	ItemsWithDiff   int             `json:"items_with_diff"`
	AccuracyPercent decimal.Decimal `json:"accuracy_percent"`
}

// PlanAccuracyReport aggregates accuracy across a plan's completed sessions
type PlanAccuracyReport struct {
	PlanID          uuid.UUID           `json:"plan_id"`
	PlanCode        string              `json:"plan_code"`
	Sessions        []PlanAccuracyPoint `json:"sessions"`
	AverageAccuracy decimal.Decimal     `json:"average_accuracy"`
	GeneratedAt     time.Time           `json:"generated_at"`
}

// ProcessDueResult summarizes one scheduler tick
type ProcessDueResult struct {
	PlansDue        int      `json:"plans_due"`
	SessionsCreated int      `json:"sessions_created"`
	Duplicates      int      `json:"duplicates"`
	EmptySessions   int      `json:"empty_sessions"`
	Errors          []string `json:"errors,omitempty"`
}
