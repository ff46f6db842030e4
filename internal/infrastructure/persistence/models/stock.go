package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductModel backs the product catalog queries. Products are owned by the
// wider ERP; the counting service reads them and never writes.
type ProductModel struct {
	BaseModel
	Code             string          `gorm:"type:varchar(50);not null;uniqueIndex"`
	Name             string          `gorm:"type:varchar(200);not null"`
	Type             string          `gorm:"type:varchar(50);not null;index"`
	Unit             string          `gorm:"type:varchar(20);not null"`
	StandardCost     decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Perishable       bool            `gorm:"not null;default:false"`
	LastMovementDate *time.Time      `gorm:"index"`
	Active           bool            `gorm:"not null;default:true;index"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// StockLevelModel holds the current on-hand quantity per product and
// location. A NULL location row is the aggregate across all locations.
type StockLevelModel struct {
	BaseModel
	ProductID  uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_stock_levels_product_location,priority:1"`
	LocationID *uuid.UUID      `gorm:"type:uuid;uniqueIndex:idx_stock_levels_product_location,priority:2"`
	Quantity   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (StockLevelModel) TableName() string {
	return "stock_levels"
}

// StockMovementModel is the append-only ledger of stock changes. Counting
// settlements write movements of type ADJUSTMENT referencing the session.
type StockMovementModel struct {
	BaseModel
	ProductID  uuid.UUID       `gorm:"type:uuid;not null;index"`
	LocationID *uuid.UUID      `gorm:"type:uuid"`
	Type       string          `gorm:"type:varchar(20);not null;index"`
	Quantity   decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Reference  string          `gorm:"type:varchar(100);not null;index"`
	OccurredAt time.Time       `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (StockMovementModel) TableName() string {
	return "stock_movements"
}
