package counting

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductRef is the catalog identity of a product included in a session
type ProductRef struct {
	ID   uuid.UUID
	Code string
	Name string
	Unit string
}

// ProductInfo carries the catalog attributes needed for valuation
type ProductInfo struct {
	ID           uuid.UUID
	Code         string
	Name         string
	Unit         string
	StandardCost decimal.Decimal
}

// ProductCatalog is the read-side contract to the product master data.
// Resolution happens at session-creation time; the plan never stores a
// materialized product list.
type ProductCatalog interface {
	// Resolve evaluates the plan criteria and returns the matching products
	Resolve(ctx context.Context, criteria Criteria) ([]ProductRef, error)

	// Get returns catalog attributes for a single product
	Get(ctx context.Context, productID uuid.UUID) (*ProductInfo, error)
}

// StockLedger is the contract to the authoritative stock ledger. The counting
// engine reads balances when snapshotting items and appends adjustment entries
// during settlement; it never owns ledger state.
type StockLedger interface {
	// CurrentQuantity returns the on-hand quantity for a product, optionally
	// scoped to a location
	CurrentQuantity(ctx context.Context, productID uuid.UUID, locationID *uuid.UUID) (decimal.Decimal, error)

	// PostAdjustment atomically appends one adjustment entry of the given
	// signed delta and returns a durable movement reference for audit
	PostAdjustment(ctx context.Context, productID uuid.UUID, locationID *uuid.UUID, delta decimal.Decimal, reference string) (uuid.UUID, error)
}
