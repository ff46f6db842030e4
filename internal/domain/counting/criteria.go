package counting

import (
	"github.com/cyclecount/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CriteriaKind identifies how a plan selects the products a session will count
type CriteriaKind string

const (
	CriteriaAllProducts CriteriaKind = "ALL_PRODUCTS"
	CriteriaProductType CriteriaKind = "PRODUCT_TYPE"
	CriteriaMinValue    CriteriaKind = "MIN_VALUE"
	CriteriaProductList CriteriaKind = "PRODUCT_LIST"
	CriteriaLowTurnover CriteriaKind = "LOW_TURNOVER"
	CriteriaPerishable  CriteriaKind = "PERISHABLE"
)

// IsValid checks if the kind is a known CriteriaKind
func (k CriteriaKind) IsValid() bool {
	switch k {
	case CriteriaAllProducts, CriteriaProductType, CriteriaMinValue,
		CriteriaProductList, CriteriaLowTurnover, CriteriaPerishable:
		return true
	}
	return false
}

// Criteria is the plan-level predicate resolved against the product catalog
// at session-creation time. It is a tagged variant: Kind selects which of the
// remaining fields are meaningful.
type Criteria struct {
	Kind            CriteriaKind     `json:"kind"`
	ProductType     string           `json:"product_type,omitempty"`
	MinValue        *decimal.Decimal `json:"min_value,omitempty"`
	ProductIDs      []uuid.UUID      `json:"product_ids,omitempty"`
	MaxTurnoverDays int              `json:"max_turnover_days,omitempty"`
}

// Validate checks that the criteria carries the fields its kind requires
func (c Criteria) Validate() error {
	if !c.Kind.IsValid() {
		return shared.NewDomainError("INVALID_INPUT", "Unknown criteria kind: "+string(c.Kind))
	}
	switch c.Kind {
	case CriteriaProductType:
		if c.ProductType == "" {
			return shared.NewDomainError("INVALID_INPUT", "Criteria of kind PRODUCT_TYPE requires a product type")
		}
	case CriteriaMinValue:
		if c.MinValue == nil || c.MinValue.IsNegative() {
			return shared.NewDomainError("INVALID_INPUT", "Criteria of kind MIN_VALUE requires a non-negative minimum value")
		}
	case CriteriaProductList:
		if len(c.ProductIDs) == 0 {
			return shared.NewDomainError("INVALID_INPUT", "Criteria of kind PRODUCT_LIST requires at least one product")
		}
	case CriteriaLowTurnover:
		if c.MaxTurnoverDays <= 0 {
			return shared.NewDomainError("INVALID_INPUT", "Criteria of kind LOW_TURNOVER requires a positive turnover window")
		}
	}
	return nil
}
