package counting

import (
	"context"
	"testing"
	"time"

	"github.com/cyclecount/backend/internal/domain/counting"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type reportServiceFixture struct {
	planRepo    *MockPlanRepository
	sessionRepo *MockSessionRepository
	itemRepo    *MockItemRepository
	catalog     *MockProductCatalog
	service     *ReportService
}

func newReportServiceFixture() *reportServiceFixture {
	f := &reportServiceFixture{
		planRepo:    new(MockPlanRepository),
		sessionRepo: new(MockSessionRepository),
		itemRepo:    new(MockItemRepository),
		catalog:     new(MockProductCatalog),
	}
	f.service = NewReportService(f.planRepo, f.sessionRepo, f.itemRepo, f.catalog, nil, 0, zap.NewNop())
	return f
}

// countedItem builds an item counted at the given quantity under the plan
func countedItem(t *testing.T, sessionID uuid.UUID, systemQty, countedQty float64, plan *counting.CountingPlan) *counting.CountingItem {
	t.Helper()
	item := newSnapshotItem(sessionID, systemQty)
	require.NoError(t, item.RecordCount(decimal.NewFromFloat(countedQty), uuid.New(), "", plan))
	return item
}

func TestReportService_SessionReport(t *testing.T) {
	ctx := context.Background()

	t.Run("partitions divergent items into shortages and surpluses", func(t *testing.T) {
		f := newReportServiceFixture()
		plan := newActivePlan()
		session := newInProgressSession(plan)
		short := countedItem(t, session.ID, 100, 95, plan)
		over := countedItem(t, session.ID, 100, 105, plan)

		cost := decimal.NewFromInt(10)
		f.sessionRepo.On("FindByID", ctx, session.ID).Return(session, nil)
		f.itemRepo.On("FindBySession", ctx, session.ID).Return([]counting.CountingItem{*short, *over}, nil)
		f.catalog.On("Get", ctx, short.ProductID).Return(&counting.ProductInfo{ID: short.ProductID, StandardCost: cost}, nil)
		f.catalog.On("Get", ctx, over.ProductID).Return(&counting.ProductInfo{ID: over.ProductID, StandardCost: cost}, nil)

		report, err := f.service.SessionReport(ctx, session.ID)
		require.NoError(t, err)

		require.Len(t, report.Shortages, 1)
		require.Len(t, report.Surpluses, 1)
		assert.True(t, report.Shortages[0].Difference.Equal(decimal.NewFromInt(-5)))
		assert.True(t, report.Shortages[0].DifferenceValue.Equal(decimal.NewFromInt(-50)))
		assert.True(t, report.Surpluses[0].Difference.Equal(decimal.NewFromInt(5)))
		assert.True(t, report.Surpluses[0].DifferenceValue.Equal(decimal.NewFromInt(50)))
	})

	t.Run("total difference value sums absolute values", func(t *testing.T) {
		// an offsetting shortage and surplus must not net the total to zero
		f := newReportServiceFixture()
		plan := newActivePlan()
		session := newInProgressSession(plan)
		short := countedItem(t, session.ID, 100, 95, plan)
		over := countedItem(t, session.ID, 100, 105, plan)

		cost := decimal.NewFromInt(10)
		f.sessionRepo.On("FindByID", ctx, session.ID).Return(session, nil)
		f.itemRepo.On("FindBySession", ctx, session.ID).Return([]counting.CountingItem{*short, *over}, nil)
		f.catalog.On("Get", ctx, mock.AnythingOfType("uuid.UUID")).Return(&counting.ProductInfo{StandardCost: cost}, nil)

		report, err := f.service.SessionReport(ctx, session.ID)
		require.NoError(t, err)
		assert.True(t, report.TotalDifferenceValue.Equal(decimal.NewFromInt(100)),
			"expected 100, got %s", report.TotalDifferenceValue)
	})

	t.Run("excludes cancelled and within-tolerance items", func(t *testing.T) {
		f := newReportServiceFixture()
		plan := newActivePlan()
		session := newInProgressSession(plan)

		cancelled := countedItem(t, session.ID, 100, 80, plan)
		require.NoError(t, cancelled.CancelWithReason("damaged during count"))
		clean := countedItem(t, session.ID, 100, 101, plan)
		require.False(t, clean.HasDifference)
		divergent := countedItem(t, session.ID, 100, 90, plan)

		cost := decimal.NewFromInt(10)
		f.sessionRepo.On("FindByID", ctx, session.ID).Return(session, nil)
		f.itemRepo.On("FindBySession", ctx, session.ID).Return([]counting.CountingItem{*cancelled, *clean, *divergent}, nil)
		f.catalog.On("Get", ctx, divergent.ProductID).Return(&counting.ProductInfo{ID: divergent.ProductID, StandardCost: cost}, nil)

		report, err := f.service.SessionReport(ctx, session.ID)
		require.NoError(t, err)

		require.Len(t, report.Shortages, 1)
		assert.Equal(t, divergent.ProductID, report.Shortages[0].ProductID)
		assert.Empty(t, report.Surpluses)
		assert.True(t, report.TotalDifferenceValue.Equal(decimal.NewFromInt(100)))
		f.catalog.AssertNotCalled(t, "Get", ctx, cancelled.ProductID)
	})

	t.Run("failed product lookup leaves the line unvalued", func(t *testing.T) {
		f := newReportServiceFixture()
		plan := newActivePlan()
		session := newInProgressSession(plan)
		short := countedItem(t, session.ID, 100, 95, plan)

		f.sessionRepo.On("FindByID", ctx, session.ID).Return(session, nil)
		f.itemRepo.On("FindBySession", ctx, session.ID).Return([]counting.CountingItem{*short}, nil)
		f.catalog.On("Get", ctx, short.ProductID).Return(nil, assert.AnError)

		report, err := f.service.SessionReport(ctx, session.ID)
		require.NoError(t, err)

		require.Len(t, report.Shortages, 1)
		assert.True(t, report.Shortages[0].DifferenceValue.IsZero())
		assert.True(t, report.TotalDifferenceValue.IsZero())
	})
}

func TestReportService_PlanAccuracyReport(t *testing.T) {
	ctx := context.Background()

	completedSession := func(plan *counting.CountingPlan, code string, accuracy int64) counting.CountingSession {
		session := newInProgressSession(plan)
		session.Code = code
		session.Status = counting.SessionStatusCompleted
		completedAt := time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC)
		session.CompletedAt = &completedAt
		session.AccuracyPercent = decimal.NewFromInt(accuracy)
		return *session
	}

	t.Run("averages accuracy across completed sessions", func(t *testing.T) {
		f := newReportServiceFixture()
		plan := newActivePlan()
		sessions := []counting.CountingSession{
			completedSession(plan, "CS-20260120-0001", 90),
			completedSession(plan, "CS-20260127-0001", 100),
		}

		f.planRepo.On("FindByID", ctx, plan.ID).Return(plan, nil)
		f.sessionRepo.On("FindByPlan", ctx, plan.ID, mock.AnythingOfType("counting.SessionFilter")).Return(sessions, nil)

		report, err := f.service.PlanAccuracyReport(ctx, plan.ID)
		require.NoError(t, err)

		assert.Equal(t, plan.Code, report.PlanCode)
		require.Len(t, report.Sessions, 2)
		assert.Equal(t, "CS-20260120-0001", report.Sessions[0].SessionCode)
		assert.True(t, report.AverageAccuracy.Equal(decimal.NewFromInt(95)))
	})

	t.Run("plan without completed sessions reports zero average", func(t *testing.T) {
		f := newReportServiceFixture()
		plan := newActivePlan()

		f.planRepo.On("FindByID", ctx, plan.ID).Return(plan, nil)
		f.sessionRepo.On("FindByPlan", ctx, plan.ID, mock.AnythingOfType("counting.SessionFilter")).Return([]counting.CountingSession{}, nil)

		report, err := f.service.PlanAccuracyReport(ctx, plan.ID)
		require.NoError(t, err)

		assert.Empty(t, report.Sessions)
		assert.True(t, report.AverageAccuracy.IsZero())
	})
}
