package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/cyclecount/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const movementTypeAdjustment = "ADJUSTMENT"

// GormStockLedger implements the StockLedger port against the stock_levels
// and stock_movements tables.
type GormStockLedger struct {
	db *gorm.DB
}

// NewGormStockLedger creates a new GormStockLedger
func NewGormStockLedger(db *gorm.DB) *GormStockLedger {
	return &GormStockLedger{db: db}
}

// CurrentQuantity returns the on-hand quantity for the product. A product
// with no stock level row counts as zero on hand, not as an error.
func (l *GormStockLedger) CurrentQuantity(ctx context.Context, productID uuid.UUID, locationID *uuid.UUID) (decimal.Decimal, error) {
	var level models.StockLevelModel
	query := l.db.WithContext(ctx).Where("product_id = ?", productID)
	if locationID != nil {
		query = query.Where("location_id = ?", *locationID)
	} else {
		query = query.Where("location_id IS NULL")
	}
	if err := query.First(&level).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	return level.Quantity, nil
}

// PostAdjustment appends one movement and applies the delta to the stock
// level in a single transaction. When called inside a surrounding GORM
// transaction the inner one joins it, so the movement and the item state
// commit or roll back together.
func (l *GormStockLedger) PostAdjustment(ctx context.Context, productID uuid.UUID, locationID *uuid.UUID, delta decimal.Decimal, reference string) (uuid.UUID, error) {
	movement := models.StockMovementModel{
		ProductID:  productID,
		LocationID: locationID,
		Type:       movementTypeAdjustment,
		Quantity:   delta,
		Reference:  reference,
		OccurredAt: time.Now(),
	}
	movement.ID = uuid.New()

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&movement).Error; err != nil {
			return err
		}

		levelQuery := tx.Model(&models.StockLevelModel{}).Where("product_id = ?", productID)
		if locationID != nil {
			levelQuery = levelQuery.Where("location_id = ?", *locationID)
		} else {
			levelQuery = levelQuery.Where("location_id IS NULL")
		}
		result := levelQuery.Update("quantity", gorm.Expr("quantity + ?", delta))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			level := models.StockLevelModel{
				ProductID:  productID,
				LocationID: locationID,
				Quantity:   delta,
			}
			level.ID = uuid.New()
			return tx.Create(&level).Error
		}
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	return movement.ID, nil
}
