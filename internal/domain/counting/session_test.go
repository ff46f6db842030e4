package counting

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestSession(t *testing.T) *CountingSession {
	t.Helper()
	session, err := NewCountingSession(uuid.New(), "CS-20260830-0001", time.Now(), nil, uuid.New())
	require.NoError(t, err)
	return session
}

func newItemInStatus(t *testing.T, sessionID uuid.UUID, status ItemStatus, hasDiff bool) CountingItem {
	t.Helper()
	item, err := NewCountingItem(sessionID, ProductRef{ID: uuid.New(), Code: "P", Name: "Product", Unit: "pcs"}, nil, decimal.NewFromInt(10))
	require.NoError(t, err)
	item.Status = status
	item.HasDifference = hasDiff
	return *item
}

func TestNewCountingSession(t *testing.T) {
	t.Run("creates scheduled session", func(t *testing.T) {
		planID := uuid.New()
		session, err := NewCountingSession(planID, "CS-20260830-0001", time.Now(), nil, uuid.New())

		require.NoError(t, err)
		assert.Equal(t, SessionStatusScheduled, session.Status)
		assert.Equal(t, planID, session.PlanID)
		assert.Equal(t, 0, session.TotalItems)
		assert.True(t, session.AccuracyPercent.IsZero())
		assert.Len(t, session.GetDomainEvents(), 1)
	})

	t.Run("fails with empty plan ID", func(t *testing.T) {
		_, err := NewCountingSession(uuid.Nil, "CS-20260830-0001", time.Now(), nil, uuid.New())
		require.Error(t, err)
	})

	t.Run("fails with empty code", func(t *testing.T) {
		_, err := NewCountingSession(uuid.New(), "", time.Now(), nil, uuid.New())
		require.Error(t, err)
	})
}

func TestCountingSession_Start(t *testing.T) {
	t.Run("starts scheduled session", func(t *testing.T) {
		session := createTestSession(t)

		err := session.Start()

		require.NoError(t, err)
		assert.Equal(t, SessionStatusInProgress, session.Status)
		assert.NotNil(t, session.StartedAt)
	})

	t.Run("fails when already in progress", func(t *testing.T) {
		session := createTestSession(t)
		require.NoError(t, session.Start())

		err := session.Start()

		require.Error(t, err)
		assert.Contains(t, err.Error(), "IN_PROGRESS")
	})
}

func TestCountingSession_Complete(t *testing.T) {
	t.Run("completes in-progress session", func(t *testing.T) {
		session := createTestSession(t)
		require.NoError(t, session.Start())
		completedBy := uuid.New()

		err := session.Complete(completedBy)

		require.NoError(t, err)
		assert.Equal(t, SessionStatusCompleted, session.Status)
		assert.NotNil(t, session.CompletedAt)
		require.NotNil(t, session.CompletedByID)
		assert.Equal(t, completedBy, *session.CompletedByID)
	})

	t.Run("empty session completes with zero accuracy", func(t *testing.T) {
		session := createTestSession(t)
		require.NoError(t, session.Start())
		session.RecomputeAggregates(nil)

		err := session.Complete(uuid.New())

		require.NoError(t, err)
		assert.Equal(t, 0, session.TotalItems)
		assert.True(t, session.AccuracyPercent.IsZero())
	})

	t.Run("fails from scheduled", func(t *testing.T) {
		session := createTestSession(t)

		err := session.Complete(uuid.New())

		require.Error(t, err)
	})
}

func TestCountingSession_RecomputeAggregates(t *testing.T) {
	session := createTestSession(t)

	t.Run("counts counted, recounted and adjusted items", func(t *testing.T) {
		items := []CountingItem{
			newItemInStatus(t, session.ID, ItemStatusPending, false),
			newItemInStatus(t, session.ID, ItemStatusCounted, false),
			newItemInStatus(t, session.ID, ItemStatusRecounted, true),
			newItemInStatus(t, session.ID, ItemStatusAdjusted, true),
			newItemInStatus(t, session.ID, ItemStatusCancelled, false),
		}

		session.RecomputeAggregates(items)

		assert.Equal(t, 5, session.TotalItems)
		assert.Equal(t, 3, session.CountedItems)
		assert.Equal(t, 2, session.ItemsWithDiff)
		// (3 - 2) / 3 * 100
		expected := decimal.NewFromInt(1).Div(decimal.NewFromInt(3)).Mul(decimal.NewFromInt(100))
		assert.True(t, session.AccuracyPercent.Equal(expected))
	})

	t.Run("zero counted items yields zero accuracy", func(t *testing.T) {
		items := []CountingItem{
			newItemInStatus(t, session.ID, ItemStatusPending, false),
		}

		session.RecomputeAggregates(items)

		assert.Equal(t, 1, session.TotalItems)
		assert.Equal(t, 0, session.CountedItems)
		assert.True(t, session.AccuracyPercent.IsZero())
	})
}

func TestCountingSession_RefreshProgress(t *testing.T) {
	session := createTestSession(t)
	before := session.Version

	session.RefreshProgress([]CountingItem{
		newItemInStatus(t, session.ID, ItemStatusCounted, false),
	})

	assert.Equal(t, 1, session.TotalItems)
	assert.Equal(t, 1, session.CountedItems)
	assert.Equal(t, before+1, session.Version)
}

func TestCountingSession_Cancel(t *testing.T) {
	t.Run("cancels scheduled session", func(t *testing.T) {
		session := createTestSession(t)

		require.NoError(t, session.Cancel())
		assert.Equal(t, SessionStatusCancelled, session.Status)
	})

	t.Run("fails once completed", func(t *testing.T) {
		session := createTestSession(t)
		require.NoError(t, session.Start())
		require.NoError(t, session.Complete(uuid.New()))

		err := session.Cancel()

		require.Error(t, err)
	})
}
