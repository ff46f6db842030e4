package counting

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Evaluation is the result of comparing a candidate count against the frozen
// system quantity.
type Evaluation struct {
	Difference        decimal.Decimal
	DifferencePercent decimal.Decimal
	HasDifference     bool
}

// Evaluate compares candidateQty against systemQty under the configured
// tolerance bounds. A count is within tolerance when it satisfies at least one
// configured bound (inclusive). With no bounds configured, any non-zero
// difference is divergent.
//
// When systemQty is zero the percent deviation is defined as 100 for any
// non-zero difference and 0 otherwise, so a surprise count against an empty
// balance is always flagged without dividing by zero.
func Evaluate(systemQty, candidateQty decimal.Decimal, tolerancePercent, toleranceQty *decimal.Decimal) Evaluation {
	diff := candidateQty.Sub(systemQty)

	var pct decimal.Decimal
	if systemQty.IsZero() {
		if !diff.IsZero() {
			pct = hundred
		}
	} else {
		pct = diff.Div(systemQty).Mul(hundred)
	}

	withinTolerance := false
	if tolerancePercent != nil && pct.Abs().LessThanOrEqual(*tolerancePercent) {
		withinTolerance = true
	}
	if toleranceQty != nil && diff.Abs().LessThanOrEqual(*toleranceQty) {
		withinTolerance = true
	}
	if tolerancePercent == nil && toleranceQty == nil {
		withinTolerance = diff.IsZero()
	}

	return Evaluation{
		Difference:        diff,
		DifferencePercent: pct,
		HasDifference:     !withinTolerance,
	}
}
