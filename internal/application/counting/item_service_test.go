package counting

import (
	"context"
	"testing"

	"github.com/cyclecount/backend/internal/domain/counting"
	"github.com/cyclecount/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type itemServiceFixture struct {
	planRepo    *MockPlanRepository
	sessionRepo *MockSessionRepository
	itemRepo    *MockItemRepository
	ledger      *MockStockLedger
	service     *ItemService
}

func newItemServiceFixture() *itemServiceFixture {
	f := &itemServiceFixture{
		planRepo:    new(MockPlanRepository),
		sessionRepo: new(MockSessionRepository),
		itemRepo:    new(MockItemRepository),
		ledger:      new(MockStockLedger),
	}
	scope := newTestScope(f.sessionRepo, f.itemRepo, f.ledger)
	f.service = NewItemService(f.planRepo, f.sessionRepo, f.itemRepo, scope, shared.NoOpEventBus{}, zap.NewNop())
	return f
}

func TestItemService_RecordCount(t *testing.T) {
	ctx := context.Background()
	counter := uuid.New()

	t.Run("records a count and refreshes the session aggregates", func(t *testing.T) {
		f := newItemServiceFixture()
		plan := newActivePlan()
		session := newInProgressSession(plan)
		item := newSnapshotItem(session.ID, 100)

		// FindBySession reflects the state after the item write lands
		countedState := *item
		require.NoError(t, countedState.RecordCount(decimal.NewFromInt(90), counter, "", plan))

		f.itemRepo.On("FindByID", ctx, item.ID).Return(item, nil)
		f.sessionRepo.On("FindByID", ctx, session.ID).Return(session, nil)
		f.planRepo.On("FindByID", ctx, plan.ID).Return(plan, nil)
		f.itemRepo.On("SaveWithVersion", ctx, item).Return(nil)
		f.itemRepo.On("FindBySession", ctx, session.ID).Return([]counting.CountingItem{countedState}, nil)
		f.sessionRepo.On("SaveWithVersion", ctx, mock.MatchedBy(func(s *counting.CountingSession) bool {
			return s.CountedItems == 1 && s.ItemsWithDiff == 1
		})).Return(nil)

		resp, err := f.service.RecordCount(ctx, item.ID, RecordCountRequest{CountedQty: decimal.NewFromInt(90)}, counter)
		require.NoError(t, err)
		assert.Equal(t, string(counting.ItemStatusCounted), resp.Status)
		assert.True(t, resp.HasDifference)
		require.NotNil(t, resp.Difference)
		assert.True(t, resp.Difference.Equal(decimal.NewFromInt(-10)))
		f.sessionRepo.AssertExpectations(t)
	})

	t.Run("rejects counts on sessions that are not in progress", func(t *testing.T) {
		f := newItemServiceFixture()
		plan := newActivePlan()
		session := newInProgressSession(plan)
		require.NoError(t, session.Cancel())
		item := newSnapshotItem(session.ID, 100)

		f.itemRepo.On("FindByID", ctx, item.ID).Return(item, nil)
		f.sessionRepo.On("FindByID", ctx, session.ID).Return(session, nil)

		_, err := f.service.RecordCount(ctx, item.ID, RecordCountRequest{CountedQty: decimal.NewFromInt(90)}, counter)
		require.Error(t, err)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "SESSION_NOT_ACTIVE", domainErr.Code)
	})

	t.Run("loser of an item race sees the conflict", func(t *testing.T) {
		f := newItemServiceFixture()
		plan := newActivePlan()
		session := newInProgressSession(plan)
		item := newSnapshotItem(session.ID, 100)

		f.itemRepo.On("FindByID", ctx, item.ID).Return(item, nil)
		f.sessionRepo.On("FindByID", ctx, session.ID).Return(session, nil)
		f.planRepo.On("FindByID", ctx, plan.ID).Return(plan, nil)
		f.itemRepo.On("SaveWithVersion", ctx, item).Return(shared.ErrConcurrencyConflict)

		_, err := f.service.RecordCount(ctx, item.ID, RecordCountRequest{CountedQty: decimal.NewFromInt(90)}, counter)
		require.ErrorIs(t, err, shared.ErrConcurrencyConflict)
		// the session row must not be touched when the item write lost
		f.sessionRepo.AssertNotCalled(t, "SaveWithVersion", mock.Anything, mock.Anything)
	})

	t.Run("session aggregate clash is retried with a fresh read", func(t *testing.T) {
		f := newItemServiceFixture()
		plan := newActivePlan()
		session := newInProgressSession(plan)
		item := newSnapshotItem(session.ID, 100)

		f.itemRepo.On("FindByID", ctx, item.ID).Return(item, nil)
		f.sessionRepo.On("FindByID", ctx, session.ID).Return(session, nil)
		f.planRepo.On("FindByID", ctx, plan.ID).Return(plan, nil)
		f.itemRepo.On("SaveWithVersion", ctx, item).Return(nil)
		f.itemRepo.On("FindBySession", ctx, session.ID).Return([]counting.CountingItem{*item}, nil)
		f.sessionRepo.On("SaveWithVersion", ctx, mock.Anything).Return(shared.ErrConcurrencyConflict).Once()
		f.sessionRepo.On("SaveWithVersion", ctx, mock.Anything).Return(nil).Once()

		_, err := f.service.RecordCount(ctx, item.ID, RecordCountRequest{CountedQty: decimal.NewFromInt(90)}, counter)
		require.NoError(t, err)
		f.sessionRepo.AssertNumberOfCalls(t, "SaveWithVersion", 2)
	})
}

func TestItemService_RecordRecount(t *testing.T) {
	ctx := context.Background()
	counter := uuid.New()

	t.Run("records a recount for a divergent item", func(t *testing.T) {
		f := newItemServiceFixture()
		plan := newActivePlan()
		plan.RequireRecount = true
		session := newInProgressSession(plan)
		item := newSnapshotItem(session.ID, 100)
		require.NoError(t, item.RecordCount(decimal.NewFromInt(80), counter, "", plan))

		f.itemRepo.On("FindByID", ctx, item.ID).Return(item, nil)
		f.sessionRepo.On("FindByID", ctx, session.ID).Return(session, nil)
		f.planRepo.On("FindByID", ctx, plan.ID).Return(plan, nil)
		f.itemRepo.On("SaveWithVersion", ctx, item).Return(nil)
		f.itemRepo.On("FindBySession", ctx, session.ID).Return([]counting.CountingItem{*item}, nil)
		f.sessionRepo.On("SaveWithVersion", ctx, mock.Anything).Return(nil)

		resp, err := f.service.RecordRecount(ctx, item.ID, RecordRecountRequest{RecountQty: decimal.NewFromInt(99)}, counter)
		require.NoError(t, err)
		assert.Equal(t, string(counting.ItemStatusRecounted), resp.Status)
		require.NotNil(t, resp.RecountQty)
		assert.True(t, resp.RecountQty.Equal(decimal.NewFromInt(99)))
		// a recount landing inside tolerance clears the divergence
		assert.False(t, resp.HasDifference)
	})

	t.Run("rejects recounts when the plan does not require them", func(t *testing.T) {
		f := newItemServiceFixture()
		plan := newActivePlan()
		session := newInProgressSession(plan)
		item := newSnapshotItem(session.ID, 100)
		require.NoError(t, item.RecordCount(decimal.NewFromInt(80), counter, "", plan))

		f.itemRepo.On("FindByID", ctx, item.ID).Return(item, nil)
		f.sessionRepo.On("FindByID", ctx, session.ID).Return(session, nil)
		f.planRepo.On("FindByID", ctx, plan.ID).Return(plan, nil)

		_, err := f.service.RecordRecount(ctx, item.ID, RecordRecountRequest{RecountQty: decimal.NewFromInt(99)}, counter)
		require.Error(t, err)
	})
}

func TestItemService_CancelItem(t *testing.T) {
	ctx := context.Background()

	t.Run("cancels a pending item with a reason", func(t *testing.T) {
		f := newItemServiceFixture()
		plan := newActivePlan()
		session := newInProgressSession(plan)
		item := newSnapshotItem(session.ID, 100)

		f.itemRepo.On("FindByID", ctx, item.ID).Return(item, nil)
		f.sessionRepo.On("FindByID", ctx, session.ID).Return(session, nil)
		f.itemRepo.On("SaveWithVersion", ctx, item).Return(nil)
		f.itemRepo.On("FindBySession", ctx, session.ID).Return([]counting.CountingItem{*item}, nil)
		f.sessionRepo.On("SaveWithVersion", ctx, mock.Anything).Return(nil)

		resp, err := f.service.CancelItem(ctx, item.ID, CancelItemRequest{Reason: "product not locatable"})
		require.NoError(t, err)
		assert.Equal(t, string(counting.ItemStatusCancelled), resp.Status)
		assert.Equal(t, "product not locatable", resp.CancelReason)
		assert.Nil(t, resp.FinalQty)
	})

	t.Run("requires a reason", func(t *testing.T) {
		f := newItemServiceFixture()
		plan := newActivePlan()
		session := newInProgressSession(plan)
		item := newSnapshotItem(session.ID, 100)

		f.itemRepo.On("FindByID", ctx, item.ID).Return(item, nil)
		f.sessionRepo.On("FindByID", ctx, session.ID).Return(session, nil)

		_, err := f.service.CancelItem(ctx, item.ID, CancelItemRequest{})
		require.Error(t, err)
	})
}

func TestItemService_Blinding(t *testing.T) {
	ctx := context.Background()

	t.Run("blind plans withhold the system quantity until counted", func(t *testing.T) {
		f := newItemServiceFixture()
		plan := newActivePlan()
		plan.AllowBlindCount = true
		session := newInProgressSession(plan)
		pending := newSnapshotItem(session.ID, 100)
		counted := newSnapshotItem(session.ID, 50)
		require.NoError(t, counted.RecordCount(decimal.NewFromInt(50), uuid.New(), "", plan))

		f.sessionRepo.On("FindByID", ctx, session.ID).Return(session, nil)
		f.planRepo.On("FindByID", ctx, plan.ID).Return(plan, nil)
		f.itemRepo.On("FindBySession", ctx, session.ID).Return([]counting.CountingItem{*pending, *counted}, nil)

		items, err := f.service.ListSessionItems(ctx, session.ID)
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Nil(t, items[0].SystemQty)
		require.NotNil(t, items[1].SystemQty)
		assert.True(t, items[1].SystemQty.Equal(decimal.NewFromInt(50)))
	})
}
