package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cyclecount/backend/internal/domain/counting"
	"github.com/cyclecount/backend/internal/domain/shared"
	"github.com/cyclecount/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormSessionRepository implements CountingSessionRepository using GORM
type GormSessionRepository struct {
	db *gorm.DB
}

// NewGormSessionRepository creates a new GormSessionRepository
func NewGormSessionRepository(db *gorm.DB) *GormSessionRepository {
	return &GormSessionRepository{db: db}
}

// FindByID finds a counting session by its ID
func (r *GormSessionRepository) FindByID(ctx context.Context, id uuid.UUID) (*counting.CountingSession, error) {
	var model models.CountingSessionModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByCode finds a counting session by its business code
func (r *GormSessionRepository) FindByCode(ctx context.Context, code string) (*counting.CountingSession, error) {
	var model models.CountingSessionModel
	if err := r.db.WithContext(ctx).First(&model, "code = ?", code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll finds counting sessions matching the filter
func (r *GormSessionRepository) FindAll(ctx context.Context, filter counting.SessionFilter) ([]counting.CountingSession, error) {
	var sessionModels []models.CountingSessionModel
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.CountingSessionModel{}), filter, true)
	if err := query.Find(&sessionModels).Error; err != nil {
		return nil, err
	}
	return toDomainSessions(sessionModels), nil
}

// Count counts counting sessions matching the filter
func (r *GormSessionRepository) Count(ctx context.Context, filter counting.SessionFilter) (int64, error) {
	var count int64
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.CountingSessionModel{}), filter, false)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// FindByPlan finds sessions belonging to a plan
func (r *GormSessionRepository) FindByPlan(ctx context.Context, planID uuid.UUID, filter counting.SessionFilter) ([]counting.CountingSession, error) {
	filter.PlanID = &planID
	return r.FindAll(ctx, filter)
}

// CountActiveByPlan counts SCHEDULED and IN_PROGRESS sessions owned by the plan
func (r *GormSessionRepository) CountActiveByPlan(ctx context.Context, planID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.CountingSessionModel{}).
		Where("plan_id = ? AND status IN ?", planID,
			[]string{string(counting.SessionStatusScheduled), string(counting.SessionStatusInProgress)}).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Save creates or updates a counting session
func (r *GormSessionRepository) Save(ctx context.Context, session *counting.CountingSession) error {
	model := models.CountingSessionModelFromDomain(session)
	return r.db.WithContext(ctx).Save(model).Error
}

// SaveWithVersion saves the session under optimistic locking. The domain
// mutators have already bumped Version, so the compare targets the version the
// session was loaded at; callers retry on CONCURRENT_MODIFICATION with a
// fresh read.
func (r *GormSessionRepository) SaveWithVersion(ctx context.Context, session *counting.CountingSession) error {
	model := models.CountingSessionModelFromDomain(session)
	result := r.db.WithContext(ctx).
		Model(&models.CountingSessionModel{}).
		Where("id = ? AND version = ?", session.ID, session.Version-1).
		Updates(map[string]interface{}{
			"status":           model.Status,
			"started_at":       model.StartedAt,
			"completed_at":     model.CompletedAt,
			"completed_by_id":  model.CompletedByID,
			"assignee_id":      model.AssigneeID,
			"total_items":      model.TotalItems,
			"counted_items":    model.CountedItems,
			"items_with_diff":  model.ItemsWithDiff,
			"accuracy_percent": model.AccuracyPercent,
			"version":          model.Version,
			"updated_at":       model.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// CreateWithItems persists a session and its item snapshot in one
// transaction. The unique (plan_id, scheduled_date) index turns a concurrent
// duplicate into shared.ErrAlreadyExists instead of a second session.
func (r *GormSessionRepository) CreateWithItems(ctx context.Context, session *counting.CountingSession, items []counting.CountingItem) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(models.CountingSessionModelFromDomain(session)).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}
		itemModels := make([]models.CountingItemModel, len(items))
		for i := range items {
			itemModels[i] = *models.CountingItemModelFromDomain(&items[i])
		}
		return tx.CreateInBatches(itemModels, 500).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// GenerateCode allocates the next session code for the given date, in the
// form CS-YYYYMMDD-NNNN
func (r *GormSessionRepository) GenerateCode(ctx context.Context, date time.Time) (string, error) {
	prefix := fmt.Sprintf("CS-%s-", date.Format("20060102"))
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.CountingSessionModel{}).
		Where("code LIKE ?", prefix+"%").
		Count(&count).Error; err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%04d", prefix, count+1), nil
}

func (r *GormSessionRepository) applyFilter(query *gorm.DB, filter counting.SessionFilter, paginate bool) *gorm.DB {
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.PlanID != nil {
		query = query.Where("plan_id = ?", *filter.PlanID)
	}
	if filter.AssigneeID != nil {
		query = query.Where("assignee_id = ?", *filter.AssigneeID)
	}
	if filter.StartDate != nil {
		query = query.Where("scheduled_date >= ?", *filter.StartDate)
	}
	if filter.EndDate != nil {
		query = query.Where("scheduled_date <= ?", *filter.EndDate)
	}
	if filter.Search != "" {
		query = query.Where("LOWER(code) LIKE ?", "%"+strings.ToLower(filter.Search)+"%")
	}

	if !paginate {
		return query
	}

	if filter.Page > 0 && filter.PageSize > 0 {
		query = query.Offset((filter.Page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	orderBy := "scheduled_date"
	if filter.OrderBy != "" {
		validFields := map[string]bool{
			"code":           true,
			"status":         true,
			"scheduled_date": true,
			"completed_at":   true,
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

func toDomainSessions(sessionModels []models.CountingSessionModel) []counting.CountingSession {
	sessions := make([]counting.CountingSession, len(sessionModels))
	for i := range sessionModels {
		sessions[i] = *sessionModels[i].ToDomain()
	}
	return sessions
}
