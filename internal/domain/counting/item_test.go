package counting

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestItem(t *testing.T, systemQty decimal.Decimal) *CountingItem {
	t.Helper()
	item, err := NewCountingItem(
		uuid.New(),
		ProductRef{ID: uuid.New(), Code: "WIDGET-001", Name: "Widget A", Unit: "pcs"},
		nil,
		systemQty,
	)
	require.NoError(t, err)
	return item
}

func planWithPolicy(t *testing.T, requireRecount bool, tolerancePercent *decimal.Decimal) *CountingPlan {
	t.Helper()
	plan := createTestPlan(t)
	plan.RequireRecount = requireRecount
	plan.TolerancePercent = tolerancePercent
	return plan
}

func TestCountingItem_RecordCount(t *testing.T) {
	counterID := uuid.New()

	t.Run("records count within tolerance", func(t *testing.T) {
		item := createTestItem(t, dec(100))
		plan := planWithPolicy(t, false, decPtr(2))

		err := item.RecordCount(dec(102), counterID, "", plan)

		require.NoError(t, err)
		assert.Equal(t, ItemStatusCounted, item.Status)
		require.NotNil(t, item.CountedQty)
		assert.True(t, item.CountedQty.Equal(dec(102)))
		assert.True(t, item.Difference.Equal(dec(2)))
		assert.False(t, item.HasDifference)
		require.NotNil(t, item.CountedByID)
		assert.Equal(t, counterID, *item.CountedByID)
		assert.NotNil(t, item.CountedAt)
	})

	t.Run("flags divergent count", func(t *testing.T) {
		item := createTestItem(t, dec(100))
		plan := planWithPolicy(t, false, decPtr(2))

		err := item.RecordCount(dec(80), counterID, "shelf half empty", plan)

		require.NoError(t, err)
		assert.True(t, item.HasDifference)
		assert.True(t, item.Difference.Equal(dec(-20)))
		assert.Equal(t, "shelf half empty", item.Notes)
	})

	t.Run("rejects negative quantity", func(t *testing.T) {
		item := createTestItem(t, dec(100))
		plan := planWithPolicy(t, false, nil)

		err := item.RecordCount(dec(-1), counterID, "", plan)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "negative")
		assert.Equal(t, ItemStatusPending, item.Status)
	})

	t.Run("rejects double count", func(t *testing.T) {
		item := createTestItem(t, dec(100))
		plan := planWithPolicy(t, false, nil)
		require.NoError(t, item.RecordCount(dec(100), counterID, "", plan))

		err := item.RecordCount(dec(99), counterID, "", plan)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "COUNTED")
	})
}

func TestCountingItem_RecordRecount(t *testing.T) {
	counterID := uuid.New()

	t.Run("records recount for divergent item", func(t *testing.T) {
		item := createTestItem(t, dec(100))
		plan := planWithPolicy(t, true, decPtr(2))
		require.NoError(t, item.RecordCount(dec(80), counterID, "", plan))

		err := item.RecordRecount(dec(99), counterID, "", plan)

		require.NoError(t, err)
		assert.Equal(t, ItemStatusRecounted, item.Status)
		require.NotNil(t, item.RecountQty)
		assert.True(t, item.RecountQty.Equal(dec(99)))
		assert.True(t, item.Difference.Equal(dec(-1)))
		assert.False(t, item.HasDifference)
		assert.Nil(t, item.FinalQty)
	})

	t.Run("recount may still diverge", func(t *testing.T) {
		item := createTestItem(t, dec(100))
		plan := planWithPolicy(t, true, decPtr(2))
		require.NoError(t, item.RecordCount(dec(80), counterID, "", plan))

		err := item.RecordRecount(dec(82), counterID, "", plan)

		require.NoError(t, err)
		assert.Equal(t, ItemStatusRecounted, item.Status)
		assert.True(t, item.HasDifference)
	})

	t.Run("rejects recount when plan does not require it", func(t *testing.T) {
		item := createTestItem(t, dec(100))
		plan := planWithPolicy(t, false, decPtr(2))
		require.NoError(t, item.RecordCount(dec(80), counterID, "", plan))

		err := item.RecordRecount(dec(99), counterID, "", plan)

		require.Error(t, err)
	})

	t.Run("rejects recount of within-tolerance item", func(t *testing.T) {
		item := createTestItem(t, dec(100))
		plan := planWithPolicy(t, true, decPtr(2))
		require.NoError(t, item.RecordCount(dec(101), counterID, "", plan))

		err := item.RecordRecount(dec(99), counterID, "", plan)

		require.Error(t, err)
	})
}

func TestCountingItem_AwaitingRecount(t *testing.T) {
	counterID := uuid.New()

	t.Run("divergent counted item under recount policy awaits recount", func(t *testing.T) {
		item := createTestItem(t, dec(100))
		plan := planWithPolicy(t, true, decPtr(2))
		require.NoError(t, item.RecordCount(dec(80), counterID, "", plan))

		assert.True(t, item.AwaitingRecount(plan))
	})

	t.Run("within-tolerance item does not await recount", func(t *testing.T) {
		item := createTestItem(t, dec(100))
		plan := planWithPolicy(t, true, decPtr(2))
		require.NoError(t, item.RecordCount(dec(100), counterID, "", plan))

		assert.False(t, item.AwaitingRecount(plan))
	})
}

func TestCountingItem_MarkAdjusted(t *testing.T) {
	counterID := uuid.New()

	t.Run("settles counted item trusting first count", func(t *testing.T) {
		item := createTestItem(t, dec(100))
		plan := planWithPolicy(t, false, decPtr(2))
		require.NoError(t, item.RecordCount(dec(95), counterID, "", plan))

		err := item.MarkAdjusted()

		require.NoError(t, err)
		assert.Equal(t, ItemStatusAdjusted, item.Status)
		require.NotNil(t, item.FinalQty)
		assert.True(t, item.FinalQty.Equal(dec(95)))
		assert.True(t, item.Difference.Equal(dec(-5)))
	})

	t.Run("settles recounted item trusting the recount", func(t *testing.T) {
		item := createTestItem(t, dec(100))
		plan := planWithPolicy(t, true, decPtr(2))
		require.NoError(t, item.RecordCount(dec(80), counterID, "", plan))
		require.NoError(t, item.RecordRecount(dec(85), counterID, "", plan))

		err := item.MarkAdjusted()

		require.NoError(t, err)
		require.NotNil(t, item.FinalQty)
		assert.True(t, item.FinalQty.Equal(dec(85)))
		assert.True(t, item.Difference.Equal(dec(-15)))
	})

	t.Run("final quantity is set exactly once", func(t *testing.T) {
		item := createTestItem(t, dec(100))
		plan := planWithPolicy(t, false, nil)
		require.NoError(t, item.RecordCount(dec(100), counterID, "", plan))
		require.NoError(t, item.MarkAdjusted())

		err := item.MarkAdjusted()

		require.Error(t, err)
	})

	t.Run("rejects settlement of pending item", func(t *testing.T) {
		item := createTestItem(t, dec(100))

		err := item.MarkAdjusted()

		require.Error(t, err)
	})
}

func TestCountingItem_Cancel(t *testing.T) {
	counterID := uuid.New()

	t.Run("cancels counted item with reason, final quantity stays unset", func(t *testing.T) {
		item := createTestItem(t, dec(100))
		plan := planWithPolicy(t, false, decPtr(2))
		require.NoError(t, item.RecordCount(dec(80), counterID, "", plan))

		err := item.CancelWithReason("goods receipt posted to wrong product")

		require.NoError(t, err)
		assert.Equal(t, ItemStatusCancelled, item.Status)
		assert.Nil(t, item.FinalQty)
		assert.Equal(t, "goods receipt posted to wrong product", item.CancelReason)
	})

	t.Run("requires a reason", func(t *testing.T) {
		item := createTestItem(t, dec(100))
		plan := planWithPolicy(t, false, nil)
		require.NoError(t, item.RecordCount(dec(80), counterID, "", plan))

		err := item.CancelWithReason("")

		require.Error(t, err)
	})

	t.Run("cascade cancel skips terminal items", func(t *testing.T) {
		item := createTestItem(t, dec(100))
		plan := planWithPolicy(t, false, nil)
		require.NoError(t, item.RecordCount(dec(100), counterID, "", plan))
		require.NoError(t, item.MarkAdjusted())
		updatedAt := item.UpdatedAt

		time.Sleep(time.Millisecond)
		item.CancelCascade("session cancelled")

		assert.Equal(t, ItemStatusAdjusted, item.Status)
		assert.Equal(t, updatedAt, item.UpdatedAt)
	})

	t.Run("cascade cancel takes pending items", func(t *testing.T) {
		item := createTestItem(t, dec(100))

		item.CancelCascade("session cancelled")

		assert.Equal(t, ItemStatusCancelled, item.Status)
	})
}
