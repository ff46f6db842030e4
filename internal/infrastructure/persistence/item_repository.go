package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/cyclecount/backend/internal/domain/counting"
	"github.com/cyclecount/backend/internal/domain/shared"
	"github.com/cyclecount/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormItemRepository implements CountingItemRepository using GORM
type GormItemRepository struct {
	db *gorm.DB
}

// NewGormItemRepository creates a new GormItemRepository
func NewGormItemRepository(db *gorm.DB) *GormItemRepository {
	return &GormItemRepository{db: db}
}

// FindByID finds a counting item by its ID
func (r *GormItemRepository) FindByID(ctx context.Context, id uuid.UUID) (*counting.CountingItem, error) {
	var model models.CountingItemModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindBySession returns all items of a session in stable order
func (r *GormItemRepository) FindBySession(ctx context.Context, sessionID uuid.UUID) ([]counting.CountingItem, error) {
	var itemModels []models.CountingItemModel
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("product_code asc").
		Find(&itemModels).Error; err != nil {
		return nil, err
	}
	return toDomainItems(itemModels), nil
}

// FindAll finds counting items matching the filter
func (r *GormItemRepository) FindAll(ctx context.Context, filter counting.ItemFilter) ([]counting.CountingItem, error) {
	var itemModels []models.CountingItemModel
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.CountingItemModel{}), filter, true)
	if err := query.Find(&itemModels).Error; err != nil {
		return nil, err
	}
	return toDomainItems(itemModels), nil
}

// Count counts counting items matching the filter
func (r *GormItemRepository) Count(ctx context.Context, filter counting.ItemFilter) (int64, error) {
	var count int64
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.CountingItemModel{}), filter, false)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Save creates or updates a counting item
func (r *GormItemRepository) Save(ctx context.Context, item *counting.CountingItem) error {
	model := models.CountingItemModelFromDomain(item)
	return r.db.WithContext(ctx).Save(model).Error
}

// SaveWithVersion applies the item's state under compare-and-swap on its
// version. The domain mutators bump Version before the save, so the compare
// targets the version the item was loaded at. Two counters submitting against
// the same item race here; the loser gets CONCURRENT_MODIFICATION and must
// re-read before resubmitting.
func (r *GormItemRepository) SaveWithVersion(ctx context.Context, item *counting.CountingItem) error {
	model := models.CountingItemModelFromDomain(item)
	result := r.db.WithContext(ctx).
		Model(&models.CountingItemModel{}).
		Where("id = ? AND version = ?", item.ID, item.Version-1).
		Updates(map[string]interface{}{
			"counted_qty":        model.CountedQty,
			"recount_qty":        model.RecountQty,
			"final_qty":          model.FinalQty,
			"difference":         model.Difference,
			"difference_percent": model.DifferencePercent,
			"has_difference":     model.HasDifference,
			"status":             model.Status,
			"counted_by_id":      model.CountedByID,
			"counted_at":         model.CountedAt,
			"recounted_by_id":    model.RecountedByID,
			"recounted_at":       model.RecountedAt,
			"notes":              model.Notes,
			"cancel_reason":      model.CancelReason,
			"version":            model.Version,
			"updated_at":         model.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

func (r *GormItemRepository) applyFilter(query *gorm.DB, filter counting.ItemFilter, paginate bool) *gorm.DB {
	if filter.SessionID != nil {
		query = query.Where("session_id = ?", *filter.SessionID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.HasDifference != nil {
		query = query.Where("has_difference = ?", *filter.HasDifference)
	}
	if filter.ProductID != nil {
		query = query.Where("product_id = ?", *filter.ProductID)
	}
	if filter.Search != "" {
		search := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(product_code) LIKE ? OR LOWER(product_name) LIKE ?", search, search)
	}

	if !paginate {
		return query
	}

	if filter.Page > 0 && filter.PageSize > 0 {
		query = query.Offset((filter.Page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	orderBy := "product_code"
	if filter.OrderBy != "" {
		validFields := map[string]bool{
			"product_code": true,
			"product_name": true,
			"status":       true,
			"difference":   true,
			"counted_at":   true,
			"created_at":   true,
		}
		if validFields[filter.OrderBy] {
			orderBy = filter.OrderBy
		}
	}
	orderDir := "asc"
	if strings.EqualFold(filter.OrderDir, "desc") {
		orderDir = "desc"
	}
	return query.Order(orderBy + " " + orderDir)
}

func toDomainItems(itemModels []models.CountingItemModel) []counting.CountingItem {
	items := make([]counting.CountingItem, len(itemModels))
	for i := range itemModels {
		items[i] = *itemModels[i].ToDomain()
	}
	return items
}
