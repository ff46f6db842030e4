package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cyclecount/backend/internal/domain/counting"
	"github.com/cyclecount/backend/internal/domain/shared"
	"github.com/cyclecount/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormPlanRepository implements CountingPlanRepository using GORM
type GormPlanRepository struct {
	db *gorm.DB
}

// NewGormPlanRepository creates a new GormPlanRepository
func NewGormPlanRepository(db *gorm.DB) *GormPlanRepository {
	return &GormPlanRepository{db: db}
}

// FindByID finds a counting plan by its ID
func (r *GormPlanRepository) FindByID(ctx context.Context, id uuid.UUID) (*counting.CountingPlan, error) {
	var model models.CountingPlanModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByCode finds a counting plan by its business code
func (r *GormPlanRepository) FindByCode(ctx context.Context, code string) (*counting.CountingPlan, error) {
	var model models.CountingPlanModel
	if err := r.db.WithContext(ctx).First(&model, "code = ?", code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll finds counting plans matching the filter
func (r *GormPlanRepository) FindAll(ctx context.Context, filter counting.PlanFilter) ([]counting.CountingPlan, error) {
	var planModels []models.CountingPlanModel
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.CountingPlanModel{}), filter, true)
	if err := query.Find(&planModels).Error; err != nil {
		return nil, err
	}
	plans := make([]counting.CountingPlan, len(planModels))
	for i := range planModels {
		plans[i] = *planModels[i].ToDomain()
	}
	return plans, nil
}

// Count counts counting plans matching the filter
func (r *GormPlanRepository) Count(ctx context.Context, filter counting.PlanFilter) (int64, error) {
	var count int64
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.CountingPlanModel{}), filter, false)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// FindDue finds ACTIVE plans whose next execution has arrived
func (r *GormPlanRepository) FindDue(ctx context.Context, now time.Time) ([]counting.CountingPlan, error) {
	var planModels []models.CountingPlanModel
	if err := r.db.WithContext(ctx).
		Where("status = ? AND next_execution IS NOT NULL AND next_execution <= ?", counting.PlanStatusActive, now).
		Order("next_execution asc").
		Find(&planModels).Error; err != nil {
		return nil, err
	}
	plans := make([]counting.CountingPlan, len(planModels))
	for i := range planModels {
		plans[i] = *planModels[i].ToDomain()
	}
	return plans, nil
}

// Save creates or updates a counting plan
func (r *GormPlanRepository) Save(ctx context.Context, plan *counting.CountingPlan) error {
	model := models.CountingPlanModelFromDomain(plan)
	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// Delete deletes a counting plan
func (r *GormPlanRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.CountingPlanModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *GormPlanRepository) applyFilter(query *gorm.DB, filter counting.PlanFilter, paginate bool) *gorm.DB {
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}
	if filter.Frequency != nil {
		query = query.Where("frequency = ?", *filter.Frequency)
	}
	if filter.Search != "" {
		searchPattern := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(code) LIKE ? OR LOWER(name) LIKE ?", searchPattern, searchPattern)
	}

	if !paginate {
		return query
	}

	if filter.Page > 0 && filter.PageSize > 0 {
		query = query.Offset((filter.Page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	orderBy := "created_at"
	if filter.OrderBy != "" {
		// whitelist to prevent SQL injection through order columns
		validFields := map[string]bool{
			"code":           true,
			"name":           true,
			"status":         true,
			"next_execution": true,
			"created_at":     true,
			"updated_at":     true,
		}
		if validFields[filter.OrderBy] {
			orderBy = filter.OrderBy
		}
	}
	orderDir := "desc"
	if strings.EqualFold(filter.OrderDir, "asc") {
		orderDir = "asc"
	}
	return query.Order(orderBy + " " + orderDir)
}
