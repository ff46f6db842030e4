package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/cyclecount/backend/internal/domain/counting"
	"github.com/cyclecount/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// newMockDB creates a GORM connection over a mocked SQL connection
func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	require.NoError(t, err)

	return gormDB, mock, mockDB
}

func planRows(planID uuid.UUID, code string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "version", "code", "name", "type", "frequency", "criteria",
		"status", "start_date", "created_by_id",
	}).AddRow(
		planID, 1, code, "Weekly warehouse count", "CYCLIC", "WEEKLY",
		`{"kind":"ALL_PRODUCTS"}`, "ACTIVE",
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), uuid.New(),
	)
}

func TestGormPlanRepository_FindByID(t *testing.T) {
	t.Run("finds existing plan", func(t *testing.T) {
		gormDB, mock, mockDB := newMockDB(t)
		defer mockDB.Close()
		repo := NewGormPlanRepository(gormDB)

		planID := uuid.New()
		mock.ExpectQuery(`SELECT \* FROM "counting_plans" WHERE id = \$1 ORDER BY .* LIMIT .*`).
			WithArgs(planID, 1).
			WillReturnRows(planRows(planID, "CC-001"))

		plan, err := repo.FindByID(context.Background(), planID)

		assert.NoError(t, err)
		require.NotNil(t, plan)
		assert.Equal(t, planID, plan.ID)
		assert.Equal(t, "CC-001", plan.Code)
		assert.Equal(t, counting.PlanStatusActive, plan.Status)
		assert.Equal(t, counting.CriteriaAllProducts, plan.Criteria.Kind)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found for missing plan", func(t *testing.T) {
		gormDB, mock, mockDB := newMockDB(t)
		defer mockDB.Close()
		repo := NewGormPlanRepository(gormDB)

		planID := uuid.New()
		mock.ExpectQuery(`SELECT \* FROM "counting_plans" WHERE id = \$1 ORDER BY .* LIMIT .*`).
			WithArgs(planID, 1).
			WillReturnError(gorm.ErrRecordNotFound)

		plan, err := repo.FindByID(context.Background(), planID)

		assert.Error(t, err)
		assert.Nil(t, plan)
		assert.ErrorIs(t, err, shared.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormPlanRepository_FindByCode(t *testing.T) {
	t.Run("finds plan by code", func(t *testing.T) {
		gormDB, mock, mockDB := newMockDB(t)
		defer mockDB.Close()
		repo := NewGormPlanRepository(gormDB)

		planID := uuid.New()
		mock.ExpectQuery(`SELECT \* FROM "counting_plans" WHERE code = \$1 ORDER BY .* LIMIT .*`).
			WithArgs("CC-001", 1).
			WillReturnRows(planRows(planID, "CC-001"))

		plan, err := repo.FindByCode(context.Background(), "CC-001")

		assert.NoError(t, err)
		require.NotNil(t, plan)
		assert.Equal(t, "CC-001", plan.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormPlanRepository_FindDue(t *testing.T) {
	t.Run("returns only active plans at or past their next execution", func(t *testing.T) {
		gormDB, mock, mockDB := newMockDB(t)
		defer mockDB.Close()
		repo := NewGormPlanRepository(gormDB)

		now := time.Date(2026, 1, 15, 8, 0, 0, 0, time.UTC)
		mock.ExpectQuery(`SELECT \* FROM "counting_plans" WHERE status = \$1 AND next_execution IS NOT NULL AND next_execution <= \$2 ORDER BY next_execution asc`).
			WithArgs(string(counting.PlanStatusActive), now).
			WillReturnRows(planRows(uuid.New(), "CC-001"))

		plans, err := repo.FindDue(context.Background(), now)

		assert.NoError(t, err)
		assert.Len(t, plans, 1)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormSessionRepository_SaveWithVersion(t *testing.T) {
	t.Run("returns concurrency conflict when version moved", func(t *testing.T) {
		gormDB, mock, mockDB := newMockDB(t)
		defer mockDB.Close()
		repo := NewGormSessionRepository(gormDB)

		session, err := counting.NewCountingSession(uuid.New(), "CS-20260115-0001",
			time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), nil, uuid.New())
		require.NoError(t, err)

		mock.ExpectExec(`UPDATE "counting_sessions" SET .* WHERE id = \$\d+ AND version = \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err = repo.SaveWithVersion(context.Background(), session)

		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormSessionRepository_GenerateCode(t *testing.T) {
	t.Run("allocates next sequence for the date", func(t *testing.T) {
		gormDB, mock, mockDB := newMockDB(t)
		defer mockDB.Close()
		repo := NewGormSessionRepository(gormDB)

		mock.ExpectQuery(`SELECT count\(\*\) FROM "counting_sessions" WHERE code LIKE \$1`).
			WithArgs("CS-20260115-%").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

		code, err := repo.GenerateCode(context.Background(), time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC))

		assert.NoError(t, err)
		assert.Equal(t, "CS-20260115-0004", code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormStockLedger_CurrentQuantity(t *testing.T) {
	t.Run("missing stock level row reads as zero", func(t *testing.T) {
		gormDB, mock, mockDB := newMockDB(t)
		defer mockDB.Close()
		ledger := NewGormStockLedger(gormDB)

		productID := uuid.New()
		mock.ExpectQuery(`SELECT \* FROM "stock_levels" WHERE product_id = \$1 AND location_id IS NULL ORDER BY .* LIMIT .*`).
			WithArgs(productID, 1).
			WillReturnError(gorm.ErrRecordNotFound)

		qty, err := ledger.CurrentQuantity(context.Background(), productID, nil)

		assert.NoError(t, err)
		assert.True(t, qty.IsZero())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
