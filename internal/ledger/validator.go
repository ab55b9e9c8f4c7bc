package ledger

import (
	"fmt"
	"math"

	"github.com/stockroom-erp/stockroom/internal/platform/httpx"
)

// Validator checks a proposed delta against the product's locked stock before
// anything is written. It has no side effects.
type Validator struct {
	// AllowBackorder permits decrements below zero.
	AllowBackorder bool
}

const qtyEpsilon = 1e-9

// Check validates one delta. exists reports whether the product row was found
// and currentStock is its locked value.
func (v Validator) Check(delta Delta, exists bool, currentStock float64) error {
	if delta.ProductID <= 0 {
		return fmt.Errorf("%w: product_id is required", httpx.ErrValidation)
	}
	if math.Abs(delta.Qty) < qtyEpsilon {
		return fmt.Errorf("%w: quantity must be non-zero", httpx.ErrValidation)
	}
	if !exists {
		return fmt.Errorf("%w (product %d)", ErrProductMissing, delta.ProductID)
	}
	if delta.Qty < 0 && !v.AllowBackorder {
		if currentStock+delta.Qty < -qtyEpsilon {
			return fmt.Errorf("%w (product %d: have %g, need %g)", ErrInsufficientStock, delta.ProductID, currentStock, -delta.Qty)
		}
	}
	return nil
}
