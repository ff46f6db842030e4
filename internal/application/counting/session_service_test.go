package counting

import (
	"context"
	"testing"
	"time"

	"github.com/cyclecount/backend/internal/domain/counting"
	"github.com/cyclecount/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type sessionServiceFixture struct {
	planRepo    *MockPlanRepository
	sessionRepo *MockSessionRepository
	itemRepo    *MockItemRepository
	catalog     *MockProductCatalog
	ledger      *MockStockLedger
	service     *SessionService
}

func newSessionServiceFixture() *sessionServiceFixture {
	f := &sessionServiceFixture{
		planRepo:    new(MockPlanRepository),
		sessionRepo: new(MockSessionRepository),
		itemRepo:    new(MockItemRepository),
		catalog:     new(MockProductCatalog),
		ledger:      new(MockStockLedger),
	}
	scope := newTestScope(f.sessionRepo, f.itemRepo, f.ledger)
	f.service = NewSessionService(f.planRepo, f.sessionRepo, f.itemRepo, f.catalog, f.ledger, scope, shared.NoOpEventBus{}, zap.NewNop())
	return f
}

func TestSessionService_CreateSession(t *testing.T) {
	ctx := context.Background()
	creator := uuid.New()

	t.Run("creates an on-demand session for an active plan", func(t *testing.T) {
		f := newSessionServiceFixture()
		plan := newActivePlan()
		products := []counting.ProductRef{{ID: uuid.New(), Code: "PRD-001", Name: "Widget", Unit: "EA"}}

		f.planRepo.On("FindByID", ctx, plan.ID).Return(plan, nil)
		f.sessionRepo.On("GenerateCode", ctx, mock.AnythingOfType("time.Time")).Return("CS-20260115-0001", nil)
		f.catalog.On("Resolve", ctx, plan.Criteria).Return(products, nil)
		f.ledger.On("CurrentQuantity", ctx, products[0].ID, plan.LocationID).Return(decimal.NewFromInt(12), nil)
		f.sessionRepo.On("CreateWithItems", ctx, mock.AnythingOfType("*counting.CountingSession"), mock.AnythingOfType("[]counting.CountingItem")).Return(nil)

		resp, err := f.service.CreateSession(ctx, CreateSessionRequest{PlanID: plan.ID}, creator)
		require.NoError(t, err)
		assert.Equal(t, "CS-20260115-0001", resp.Code)
		assert.Equal(t, string(counting.SessionStatusScheduled), resp.Status)
		assert.Equal(t, 1, resp.TotalItems)
	})

	t.Run("rejects plans that are not active", func(t *testing.T) {
		f := newSessionServiceFixture()
		plan := newActivePlan()
		require.NoError(t, plan.Pause())

		f.planRepo.On("FindByID", ctx, plan.ID).Return(plan, nil)

		_, err := f.service.CreateSession(ctx, CreateSessionRequest{PlanID: plan.ID}, creator)
		require.Error(t, err)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "PLAN_NOT_ACTIVE", domainErr.Code)
	})

	t.Run("propagates the duplicate date conflict", func(t *testing.T) {
		f := newSessionServiceFixture()
		plan := newActivePlan()

		f.planRepo.On("FindByID", ctx, plan.ID).Return(plan, nil)
		f.sessionRepo.On("GenerateCode", ctx, mock.AnythingOfType("time.Time")).Return("CS-20260115-0002", nil)
		f.catalog.On("Resolve", ctx, plan.Criteria).Return([]counting.ProductRef{}, nil)
		f.sessionRepo.On("CreateWithItems", ctx, mock.Anything, mock.Anything).Return(shared.ErrAlreadyExists)

		date := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
		_, err := f.service.CreateSession(ctx, CreateSessionRequest{PlanID: plan.ID, ScheduledDate: &date}, creator)
		require.ErrorIs(t, err, shared.ErrAlreadyExists)
	})
}

func TestSessionService_CompleteSession(t *testing.T) {
	ctx := context.Background()
	completer := uuid.New()

	t.Run("completes and freezes accuracy", func(t *testing.T) {
		f := newSessionServiceFixture()
		plan := newActivePlan()
		session := newInProgressSession(plan)

		counted := newSnapshotItem(session.ID, 100)
		require.NoError(t, counted.RecordCount(decimal.NewFromInt(100), completer, "", plan))
		divergent := newSnapshotItem(session.ID, 50)
		require.NoError(t, divergent.RecordCount(decimal.NewFromInt(40), completer, "", plan))

		f.sessionRepo.On("FindByID", ctx, session.ID).Return(session, nil)
		f.itemRepo.On("FindBySession", ctx, session.ID).Return([]counting.CountingItem{*counted, *divergent}, nil)
		f.sessionRepo.On("SaveWithVersion", ctx, mock.AnythingOfType("*counting.CountingSession")).Return(nil)

		resp, err := f.service.CompleteSession(ctx, session.ID, CompleteSessionRequest{}, completer)
		require.NoError(t, err)
		assert.Equal(t, string(counting.SessionStatusCompleted), resp.Status)
		assert.Equal(t, 2, resp.CountedItems)
		assert.Equal(t, 1, resp.ItemsWithDiff)
		assert.True(t, resp.AccuracyPercent.Equal(decimal.NewFromInt(50)))
		assert.NotNil(t, resp.CompletedAt)
	})

	t.Run("fails with pending items unless forced", func(t *testing.T) {
		f := newSessionServiceFixture()
		plan := newActivePlan()
		session := newInProgressSession(plan)
		pending := newSnapshotItem(session.ID, 10)

		f.sessionRepo.On("FindByID", ctx, session.ID).Return(session, nil)
		f.itemRepo.On("FindBySession", ctx, session.ID).Return([]counting.CountingItem{*pending}, nil)

		_, err := f.service.CompleteSession(ctx, session.ID, CompleteSessionRequest{}, completer)
		require.Error(t, err)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INCOMPLETE_ITEMS", domainErr.Code)
	})

	t.Run("force completion cancels pending items instead of skipping them", func(t *testing.T) {
		f := newSessionServiceFixture()
		plan := newActivePlan()
		session := newInProgressSession(plan)
		counted := newSnapshotItem(session.ID, 100)
		require.NoError(t, counted.RecordCount(decimal.NewFromInt(100), completer, "", plan))
		pending := newSnapshotItem(session.ID, 10)

		f.sessionRepo.On("FindByID", ctx, session.ID).Return(session, nil)
		f.itemRepo.On("FindBySession", ctx, session.ID).Return([]counting.CountingItem{*counted, *pending}, nil)
		f.itemRepo.On("SaveWithVersion", ctx, mock.MatchedBy(func(i *counting.CountingItem) bool {
			return i.ID == pending.ID && i.Status == counting.ItemStatusCancelled
		})).Return(nil)
		f.sessionRepo.On("SaveWithVersion", ctx, mock.Anything).Return(nil)

		resp, err := f.service.CompleteSession(ctx, session.ID, CompleteSessionRequest{Force: true}, completer)
		require.NoError(t, err)
		assert.Equal(t, string(counting.SessionStatusCompleted), resp.Status)
		f.itemRepo.AssertExpectations(t)
	})

	t.Run("rejects sessions that are not in progress", func(t *testing.T) {
		f := newSessionServiceFixture()
		plan := newActivePlan()
		session, err := counting.NewCountingSession(plan.ID, "CS-20260115-0005", time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), nil, plan.CreatedByID)
		require.NoError(t, err)

		f.sessionRepo.On("FindByID", ctx, session.ID).Return(session, nil)

		_, err = f.service.CompleteSession(ctx, session.ID, CompleteSessionRequest{}, completer)
		require.Error(t, err)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INVALID_TRANSITION", domainErr.Code)
	})
}

func TestSessionService_CancelSession(t *testing.T) {
	ctx := context.Background()

	t.Run("cancels the session and its open items", func(t *testing.T) {
		f := newSessionServiceFixture()
		plan := newActivePlan()
		session := newInProgressSession(plan)
		open := newSnapshotItem(session.ID, 10)
		adjusted := newSnapshotItem(session.ID, 20)
		require.NoError(t, adjusted.RecordCount(decimal.NewFromInt(20), uuid.New(), "", plan))
		require.NoError(t, adjusted.MarkAdjusted())

		f.sessionRepo.On("FindByID", ctx, session.ID).Return(session, nil)
		f.itemRepo.On("FindBySession", ctx, session.ID).Return([]counting.CountingItem{*open, *adjusted}, nil)
		f.itemRepo.On("SaveWithVersion", ctx, mock.MatchedBy(func(i *counting.CountingItem) bool {
			return i.ID == open.ID && i.Status == counting.ItemStatusCancelled
		})).Return(nil)
		f.sessionRepo.On("SaveWithVersion", ctx, mock.Anything).Return(nil)

		resp, err := f.service.CancelSession(ctx, session.ID)
		require.NoError(t, err)
		assert.Equal(t, string(counting.SessionStatusCancelled), resp.Status)
		// the adjusted item keeps its terminal status
		f.itemRepo.AssertNumberOfCalls(t, "SaveWithVersion", 1)
	})
}
