// Package stock implements inventory reconciliation: validating an order's
// line items against current stock levels, computing the post-decrement
// quantities, and classifying each result to drive seller alerts.
//
// The planning here is pure; the fulfillment store runs it inside the one
// transaction that also locks the stock rows and flips the order status, so
// two concurrent confirmations can never both pass the availability check.
package stock

import (
	"fmt"

	"github.com/google/uuid"
)

// DefaultLowThreshold is the remaining quantity at or below which a product
// is reported as running low. Overridable via configuration.
const DefaultLowThreshold = int32(10)

// Classification buckets the stock level left after a decrement.
type Classification int

const (
	Sufficient Classification = iota
	Low
	Exhausted
)

func (c Classification) String() string {
	switch c {
	case Low:
		return "low"
	case Exhausted:
		return "exhausted"
	default:
		return "sufficient"
	}
}

// Classify buckets a post-decrement quantity against the low threshold.
func Classify(remaining, lowThreshold int32) Classification {
	switch {
	case remaining == 0:
		return Exhausted
	case remaining <= lowThreshold:
		return Low
	default:
		return Sufficient
	}
}

// LineItem is one requested position of an order, as seen by stock planning.
type LineItem struct {
	ProductID   uuid.UUID
	VariantID   *uuid.UUID
	Quantity    int32
	ProductName string
}

// Level is the current, locked stock row for one sellable unit: a variant,
// or the product itself when it has no variants.
type Level struct {
	ProductID   uuid.UUID
	VariantID   *uuid.UUID
	HasVariants bool
	Available   int32
	ProductName string
	VariantName string
}

// Decrement is one planned stock write plus its classification.
type Decrement struct {
	ProductID   uuid.UUID
	VariantID   *uuid.UUID
	Requested   int32
	Remaining   int32
	Class       Classification
	ProductName string
	VariantName string
	// MarkUnavailable is set when a non-variant product runs out and its
	// availability flag must be flipped together with the quantity.
	MarkUnavailable bool
}

// Reconciler turns line items plus locked stock levels into a decrement
// plan. Any failing item fails the whole plan: the caller commits either
// every decrement or none.
type Reconciler struct {
	lowThreshold int32
}

// NewReconciler creates a Reconciler. A non-positive threshold falls back
// to DefaultLowThreshold.
func NewReconciler(lowThreshold int32) *Reconciler {
	if lowThreshold <= 0 {
		lowThreshold = DefaultLowThreshold
	}
	return &Reconciler{lowThreshold: lowThreshold}
}

// Plan validates every item against its level and computes the decrement
// set. Levels are keyed by the sellable unit (product id, or product id +
// variant id). A missing level means the referenced record disappeared
// between checkout and confirmation.
//
// Items are evaluated in order and the first failure aborts the plan, so an
// order with an unavailable item never produces partial writes.
func (r *Reconciler) Plan(items []LineItem, levels []Level) ([]Decrement, error) {
	byKey := make(map[levelKey]Level, len(levels))
	for _, lv := range levels {
		byKey[keyOf(lv.ProductID, lv.VariantID)] = lv
	}

	// Aggregate repeated lines for the same unit so the availability check
	// sees the combined demand.
	requested := make(map[levelKey]int32, len(items))

	plan := make([]Decrement, 0, len(items))
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("product %s: %w", item.ProductID, ErrInvalidQuantity)
		}
		lv, ok := byKey[keyOf(item.ProductID, item.VariantID)]
		if !ok {
			if item.VariantID != nil {
				return nil, fmt.Errorf("product %q variant %s: %w", item.ProductName, item.VariantID, ErrVariantNotFound)
			}
			return nil, fmt.Errorf("product %q: %w", item.ProductName, ErrProductNotFound)
		}

		key := keyOf(item.ProductID, item.VariantID)
		requested[key] += item.Quantity
		if requested[key] > lv.Available {
			return nil, fmt.Errorf("product %q: available %d, requested %d: %w",
				lv.ProductName, lv.Available, requested[key], ErrInsufficientStock)
		}

		remaining := lv.Available - requested[key]
		plan = append(plan, Decrement{
			ProductID:       lv.ProductID,
			VariantID:       lv.VariantID,
			Requested:       item.Quantity,
			Remaining:       remaining,
			Class:           Classify(remaining, r.lowThreshold),
			ProductName:     lv.ProductName,
			VariantName:     lv.VariantName,
			MarkUnavailable: remaining == 0 && !lv.HasVariants,
		})
	}

	return plan, nil
}

type levelKey struct {
	productID uuid.UUID
	variantID uuid.UUID
}

func keyOf(productID uuid.UUID, variantID *uuid.UUID) levelKey {
	k := levelKey{productID: productID}
	if variantID != nil {
		k.variantID = *variantID
	}
	return k
}
