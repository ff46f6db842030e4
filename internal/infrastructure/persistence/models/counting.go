package models

import (
	"encoding/json"
	"time"

	"github.com/cyclecount/backend/internal/domain/counting"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CountingPlanModel is the persistence model for the CountingPlan aggregate root.
type CountingPlanModel struct {
	AggregateModel
	Code             string           `gorm:"type:varchar(50);not null;uniqueIndex"`
	Name             string           `gorm:"type:varchar(200);not null"`
	Description      string           `gorm:"type:varchar(500)"`
	Type             string           `gorm:"type:varchar(20);not null"`
	Frequency        string           `gorm:"type:varchar(20);not null"`
	Criteria         string           `gorm:"type:jsonb;not null"`
	LocationID       *uuid.UUID       `gorm:"type:uuid;index"`
	AllowBlindCount  bool             `gorm:"not null;default:false"`
	RequireRecount   bool             `gorm:"not null;default:false"`
	TolerancePercent *decimal.Decimal `gorm:"type:decimal(18,4)"`
	ToleranceQty     *decimal.Decimal `gorm:"type:decimal(18,4)"`
	Status           string           `gorm:"type:varchar(20);not null;index"`
	StartDate        time.Time        `gorm:"not null"`
	NextExecution    *time.Time       `gorm:"index"`
	CreatedByID      uuid.UUID        `gorm:"type:uuid;not null"`
}

// TableName returns the table name for GORM
func (CountingPlanModel) TableName() string {
	return "counting_plans"
}

// ToDomain converts the persistence model to a domain CountingPlan.
func (m *CountingPlanModel) ToDomain() *counting.CountingPlan {
	var criteria counting.Criteria
	_ = json.Unmarshal([]byte(m.Criteria), &criteria)

	return &counting.CountingPlan{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Code:              m.Code,
		Name:              m.Name,
		Description:       m.Description,
		Type:              counting.PlanType(m.Type),
		Frequency:         counting.Frequency(m.Frequency),
		Criteria:          criteria,
		LocationID:        m.LocationID,
		AllowBlindCount:   m.AllowBlindCount,
		RequireRecount:    m.RequireRecount,
		TolerancePercent:  m.TolerancePercent,
		ToleranceQty:      m.ToleranceQty,
		Status:            counting.PlanStatus(m.Status),
		StartDate:         m.StartDate,
		NextExecution:     m.NextExecution,
		CreatedByID:       m.CreatedByID,
	}
}

// FromDomain populates the persistence model from a domain CountingPlan.
func (m *CountingPlanModel) FromDomain(p *counting.CountingPlan) {
	m.FromDomainAggregateRoot(p.BaseAggregateRoot)
	criteria, _ := json.Marshal(p.Criteria)
	m.Code = p.Code
	m.Name = p.Name
	m.Description = p.Description
	m.Type = string(p.Type)
	m.Frequency = string(p.Frequency)
	m.Criteria = string(criteria)
	m.LocationID = p.LocationID
	m.AllowBlindCount = p.AllowBlindCount
	m.RequireRecount = p.RequireRecount
	m.TolerancePercent = p.TolerancePercent
	m.ToleranceQty = p.ToleranceQty
	m.Status = string(p.Status)
	m.StartDate = p.StartDate
	m.NextExecution = p.NextExecution
	m.CreatedByID = p.CreatedByID
}

// CountingPlanModelFromDomain creates a persistence model from a domain CountingPlan.
func CountingPlanModelFromDomain(p *counting.CountingPlan) *CountingPlanModel {
	m := &CountingPlanModel{}
	m.FromDomain(p)
	return m
}

// CountingSessionModel is the persistence model for the CountingSession
// aggregate root. The unique index on (plan_id, scheduled_date) is what makes
// scheduler retries and concurrent instances idempotent.
type CountingSessionModel struct {
	AggregateModel
	Code            string          `gorm:"type:varchar(50);not null;uniqueIndex"`
	PlanID          uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_counting_sessions_plan_date,priority:1"`
	Status          string          `gorm:"type:varchar(20);not null;index"`
	ScheduledDate   time.Time       `gorm:"not null;uniqueIndex:idx_counting_sessions_plan_date,priority:2"`
	AssigneeID      *uuid.UUID      `gorm:"type:uuid;index"`
	StartedAt       *time.Time
	CompletedAt     *time.Time
	CompletedByID   *uuid.UUID      `gorm:"type:uuid"`
	TotalItems      int             `gorm:"not null;default:0"`
	CountedItems    int             `gorm:"not null;default:0"`
	ItemsWithDiff   int             `gorm:"not null;default:0"`
	AccuracyPercent decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	CreatedByID     uuid.UUID       `gorm:"type:uuid;not null"`
}

// TableName returns the table name for GORM
func (CountingSessionModel) TableName() string {
	return "counting_sessions"
}

// ToDomain converts the persistence model to a domain CountingSession.
func (m *CountingSessionModel) ToDomain() *counting.CountingSession {
	return &counting.CountingSession{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Code:              m.Code,
		PlanID:            m.PlanID,
		Status:            counting.SessionStatus(m.Status),
		ScheduledDate:     m.ScheduledDate,
		AssigneeID:        m.AssigneeID,
		StartedAt:         m.StartedAt,
		CompletedAt:       m.CompletedAt,
		CompletedByID:     m.CompletedByID,
		TotalItems:        m.TotalItems,
		CountedItems:      m.CountedItems,
		ItemsWithDiff:     m.ItemsWithDiff,
		AccuracyPercent:   m.AccuracyPercent,
		CreatedByID:       m.CreatedByID,
	}
}

// FromDomain populates the persistence model from a domain CountingSession.
func (m *CountingSessionModel) FromDomain(s *counting.CountingSession) {
	m.FromDomainAggregateRoot(s.BaseAggregateRoot)
	m.Code = s.Code
	m.PlanID = s.PlanID
	m.Status = string(s.Status)
	m.ScheduledDate = s.ScheduledDate
	m.AssigneeID = s.AssigneeID
	m.StartedAt = s.StartedAt
	m.CompletedAt = s.CompletedAt
	m.CompletedByID = s.CompletedByID
	m.TotalItems = s.TotalItems
	m.CountedItems = s.CountedItems
	m.ItemsWithDiff = s.ItemsWithDiff
	m.AccuracyPercent = s.AccuracyPercent
	m.CreatedByID = s.CreatedByID
}

// CountingSessionModelFromDomain creates a persistence model from a domain CountingSession.
func CountingSessionModelFromDomain(s *counting.CountingSession) *CountingSessionModel {
	m := &CountingSessionModel{}
	m.FromDomain(s)
	return m
}

// CountingItemModel is the persistence model for the CountingItem aggregate
// root. Items are stored independently of their session so per-item writes
// can race without touching sibling rows.
type CountingItemModel struct {
	AggregateModel
	SessionID         uuid.UUID        `gorm:"type:uuid;not null;index;uniqueIndex:idx_counting_items_session_product,priority:1"`
	ProductID         uuid.UUID        `gorm:"type:uuid;not null;index;uniqueIndex:idx_counting_items_session_product,priority:2"`
	LocationID        *uuid.UUID       `gorm:"type:uuid;uniqueIndex:idx_counting_items_session_product,priority:3"`
	ProductName       string           `gorm:"type:varchar(200);not null"`
	ProductCode       string           `gorm:"type:varchar(50);not null"`
	Unit              string           `gorm:"type:varchar(20);not null"`
	SystemQty         decimal.Decimal  `gorm:"type:decimal(18,4);not null"`
	CountedQty        *decimal.Decimal `gorm:"type:decimal(18,4)"`
	RecountQty        *decimal.Decimal `gorm:"type:decimal(18,4)"`
	FinalQty          *decimal.Decimal `gorm:"type:decimal(18,4)"`
	Difference        decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0"`
	DifferencePercent decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0"`
	HasDifference     bool             `gorm:"not null;default:false;index"`
	Status            string           `gorm:"type:varchar(20);not null;index"`
	CountedByID       *uuid.UUID       `gorm:"type:uuid"`
	CountedAt         *time.Time
	RecountedByID     *uuid.UUID       `gorm:"type:uuid"`
	RecountedAt       *time.Time
	Notes             string           `gorm:"type:varchar(500)"`
	CancelReason      string           `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (CountingItemModel) TableName() string {
	return "counting_items"
}

// ToDomain converts the persistence model to a domain CountingItem.
func (m *CountingItemModel) ToDomain() *counting.CountingItem {
	return &counting.CountingItem{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		SessionID:         m.SessionID,
		ProductID:         m.ProductID,
		LocationID:        m.LocationID,
		ProductName:       m.ProductName,
		ProductCode:       m.ProductCode,
		Unit:              m.Unit,
		SystemQty:         m.SystemQty,
		CountedQty:        m.CountedQty,
		RecountQty:        m.RecountQty,
		FinalQty:          m.FinalQty,
		Difference:        m.Difference,
		DifferencePercent: m.DifferencePercent,
		HasDifference:     m.HasDifference,
		Status:            counting.ItemStatus(m.Status),
		CountedByID:       m.CountedByID,
		CountedAt:         m.CountedAt,
		RecountedByID:     m.RecountedByID,
		RecountedAt:       m.RecountedAt,
		Notes:             m.Notes,
		CancelReason:      m.CancelReason,
	}
}

// FromDomain populates the persistence model from a domain CountingItem.
func (m *CountingItemModel) FromDomain(i *counting.CountingItem) {
	m.FromDomainAggregateRoot(i.BaseAggregateRoot)
	m.SessionID = i.SessionID
	m.ProductID = i.ProductID
	m.LocationID = i.LocationID
	m.ProductName = i.ProductName
	m.ProductCode = i.ProductCode
	m.Unit = i.Unit
	m.SystemQty = i.SystemQty
	m.CountedQty = i.CountedQty
	m.RecountQty = i.RecountQty
	m.FinalQty = i.FinalQty
	m.Difference = i.Difference
	m.DifferencePercent = i.DifferencePercent
	m.HasDifference = i.HasDifference
	m.Status = string(i.Status)
	m.CountedByID = i.CountedByID
	m.CountedAt = i.CountedAt
	m.RecountedByID = i.RecountedByID
	m.RecountedAt = i.RecountedAt
	m.Notes = i.Notes
	m.CancelReason = i.CancelReason
}

// CountingItemModelFromDomain creates a persistence model from a domain CountingItem.
func CountingItemModelFromDomain(i *counting.CountingItem) *CountingItemModel {
	m := &CountingItemModel{}
	m.FromDomain(i)
	return m
}
