package counting

import (
	"context"
	"time"

	"github.com/cyclecount/backend/internal/domain/counting"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockPlanRepository is a mock implementation of CountingPlanRepository
type MockPlanRepository struct {
	mock.Mock
}

func (m *MockPlanRepository) FindByID(ctx context.Context, id uuid.UUID) (*counting.CountingPlan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*counting.CountingPlan), args.Error(1)
}

func (m *MockPlanRepository) FindByCode(ctx context.Context, code string) (*counting.CountingPlan, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*counting.CountingPlan), args.Error(1)
}

func (m *MockPlanRepository) FindAll(ctx context.Context, filter counting.PlanFilter) ([]counting.CountingPlan, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]counting.CountingPlan), args.Error(1)
}

func (m *MockPlanRepository) Count(ctx context.Context, filter counting.PlanFilter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockPlanRepository) FindDue(ctx context.Context, now time.Time) ([]counting.CountingPlan, error) {
	args := m.Called(ctx, now)
	return args.Get(0).([]counting.CountingPlan), args.Error(1)
}

func (m *MockPlanRepository) Save(ctx context.Context, plan *counting.CountingPlan) error {
	args := m.Called(ctx, plan)
	return args.Error(0)
}

func (m *MockPlanRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockSessionRepository is a mock implementation of CountingSessionRepository
type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) FindByID(ctx context.Context, id uuid.UUID) (*counting.CountingSession, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*counting.CountingSession), args.Error(1)
}

func (m *MockSessionRepository) FindByCode(ctx context.Context, code string) (*counting.CountingSession, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*counting.CountingSession), args.Error(1)
}

func (m *MockSessionRepository) FindAll(ctx context.Context, filter counting.SessionFilter) ([]counting.CountingSession, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]counting.CountingSession), args.Error(1)
}

func (m *MockSessionRepository) Count(ctx context.Context, filter counting.SessionFilter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockSessionRepository) FindByPlan(ctx context.Context, planID uuid.UUID, filter counting.SessionFilter) ([]counting.CountingSession, error) {
	args := m.Called(ctx, planID, filter)
	return args.Get(0).([]counting.CountingSession), args.Error(1)
}

func (m *MockSessionRepository) CountActiveByPlan(ctx context.Context, planID uuid.UUID) (int64, error) {
	args := m.Called(ctx, planID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockSessionRepository) Save(ctx context.Context, session *counting.CountingSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockSessionRepository) SaveWithVersion(ctx context.Context, session *counting.CountingSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockSessionRepository) CreateWithItems(ctx context.Context, session *counting.CountingSession, items []counting.CountingItem) error {
	args := m.Called(ctx, session, items)
	return args.Error(0)
}

func (m *MockSessionRepository) GenerateCode(ctx context.Context, date time.Time) (string, error) {
	args := m.Called(ctx, date)
	return args.String(0), args.Error(1)
}

// MockItemRepository is a mock implementation of CountingItemRepository
type MockItemRepository struct {
	mock.Mock
}

func (m *MockItemRepository) FindByID(ctx context.Context, id uuid.UUID) (*counting.CountingItem, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*counting.CountingItem), args.Error(1)
}

func (m *MockItemRepository) FindBySession(ctx context.Context, sessionID uuid.UUID) ([]counting.CountingItem, error) {
	args := m.Called(ctx, sessionID)
	return args.Get(0).([]counting.CountingItem), args.Error(1)
}

func (m *MockItemRepository) FindAll(ctx context.Context, filter counting.ItemFilter) ([]counting.CountingItem, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]counting.CountingItem), args.Error(1)
}

func (m *MockItemRepository) Count(ctx context.Context, filter counting.ItemFilter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockItemRepository) Save(ctx context.Context, item *counting.CountingItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *MockItemRepository) SaveWithVersion(ctx context.Context, item *counting.CountingItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

// MockProductCatalog is a mock implementation of ProductCatalog
type MockProductCatalog struct {
	mock.Mock
}

func (m *MockProductCatalog) Resolve(ctx context.Context, criteria counting.Criteria) ([]counting.ProductRef, error) {
	args := m.Called(ctx, criteria)
	return args.Get(0).([]counting.ProductRef), args.Error(1)
}

func (m *MockProductCatalog) Get(ctx context.Context, id uuid.UUID) (*counting.ProductInfo, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*counting.ProductInfo), args.Error(1)
}

// MockStockLedger is a mock implementation of StockLedger
type MockStockLedger struct {
	mock.Mock
}

func (m *MockStockLedger) CurrentQuantity(ctx context.Context, productID uuid.UUID, locationID *uuid.UUID) (decimal.Decimal, error) {
	args := m.Called(ctx, productID, locationID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockStockLedger) PostAdjustment(ctx context.Context, productID uuid.UUID, locationID *uuid.UUID, delta decimal.Decimal, reference string) (uuid.UUID, error) {
	args := m.Called(ctx, productID, locationID, delta, reference)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

// newTestScope wires the mocks into a NoOpTransactionScope
func newTestScope(sessions *MockSessionRepository, items *MockItemRepository, ledger *MockStockLedger) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		SessionRepo: sessions,
		ItemRepo:    items,
		LedgerPort:  ledger,
	}
}

// newActivePlan builds an activated weekly plan with a 2% tolerance
func newActivePlan() *counting.CountingPlan {
	pct := decimal.NewFromInt(2)
	plan, err := counting.NewCountingPlan(
		"CP-TEST-001",
		"Test cycle plan",
		counting.PlanTypeCyclic,
		counting.FrequencyWeekly,
		counting.Criteria{Kind: counting.CriteriaAllProducts},
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		uuid.New(),
	)
	if err != nil {
		panic(err)
	}
	if err := plan.SetTolerances(&pct, nil); err != nil {
		panic(err)
	}
	if err := plan.Activate(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)); err != nil {
		panic(err)
	}
	plan.ClearDomainEvents()
	return plan
}

// newInProgressSession builds a started session owned by the plan
func newInProgressSession(plan *counting.CountingPlan) *counting.CountingSession {
	session, err := counting.NewCountingSession(plan.ID, "CS-20260115-0001", time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), nil, plan.CreatedByID)
	if err != nil {
		panic(err)
	}
	if err := session.Start(); err != nil {
		panic(err)
	}
	session.ClearDomainEvents()
	return session
}

// newSnapshotItem builds a pending item with the given system quantity
func newSnapshotItem(sessionID uuid.UUID, systemQty float64) *counting.CountingItem {
	item, err := counting.NewCountingItem(sessionID, counting.ProductRef{
		ID:   uuid.New(),
		Code: "PRD-001",
		Name: "Widget",
		Unit: "EA",
	}, nil, decimal.NewFromFloat(systemQty))
	if err != nil {
		panic(err)
	}
	return item
}
