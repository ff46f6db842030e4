package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/cyclecount/backend/internal/domain/counting"
	"github.com/cyclecount/backend/internal/domain/shared"
	"github.com/cyclecount/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormProductCatalog implements the ProductCatalog port against the shared
// products table. Only active products are ever returned.
type GormProductCatalog struct {
	db *gorm.DB
}

// NewGormProductCatalog creates a new GormProductCatalog
func NewGormProductCatalog(db *gorm.DB) *GormProductCatalog {
	return &GormProductCatalog{db: db}
}

// Resolve evaluates plan criteria against the catalog
func (c *GormProductCatalog) Resolve(ctx context.Context, criteria counting.Criteria) ([]counting.ProductRef, error) {
	query := c.db.WithContext(ctx).Model(&models.ProductModel{}).Where("active = ?", true)

	switch criteria.Kind {
	case counting.CriteriaAllProducts:
		// no further predicate
	case counting.CriteriaProductType:
		query = query.Where("type = ?", criteria.ProductType)
	case counting.CriteriaMinValue:
		query = query.Where("standard_cost >= ?", *criteria.MinValue)
	case counting.CriteriaProductList:
		query = query.Where("id IN ?", criteria.ProductIDs)
	case counting.CriteriaLowTurnover:
		cutoff := time.Now().AddDate(0, 0, -criteria.MaxTurnoverDays)
		query = query.Where("last_movement_date IS NULL OR last_movement_date < ?", cutoff)
	case counting.CriteriaPerishable:
		query = query.Where("perishable = ?", true)
	default:
		return nil, shared.NewDomainError("INVALID_INPUT", "Unknown criteria kind: "+string(criteria.Kind))
	}

	var productModels []models.ProductModel
	if err := query.Order("code asc").Find(&productModels).Error; err != nil {
		return nil, err
	}

	refs := make([]counting.ProductRef, len(productModels))
	for i, m := range productModels {
		refs[i] = counting.ProductRef{
			ID:   m.ID,
			Code: m.Code,
			Name: m.Name,
			Unit: m.Unit,
		}
	}
	return refs, nil
}

// Get returns catalog attributes for a single product
func (c *GormProductCatalog) Get(ctx context.Context, productID uuid.UUID) (*counting.ProductInfo, error) {
	var model models.ProductModel
	if err := c.db.WithContext(ctx).First(&model, "id = ?", productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &counting.ProductInfo{
		ID:           model.ID,
		Code:         model.Code,
		Name:         model.Name,
		Unit:         model.Unit,
		StandardCost: model.StandardCost,
	}, nil
}
