// Package cart keeps buyer cart quantities in step with live stock.
// Enforcement here is advisory; the authoritative check happens when the
// seller confirms the order.
package cart

import (
	"context"

	"github.com/google/uuid"
)

// Line is one product (or variant) a buyer holds in their cart.
type Line struct {
	ID        uuid.UUID
	BuyerID   uuid.UUID
	ProductID uuid.UUID
	VariantID *uuid.UUID
	Quantity  int32
}

// LineStore persists cart lines.
type LineStore interface {
	// FindByID returns the line or ErrLineNotFound.
	FindByID(ctx context.Context, id uuid.UUID) (*Line, error)

	// Increment raises the quantity by one iff the result does not exceed
	// the live stock level, both checks in a single statement. On refusal
	// it returns a *StockLimitError carrying the current ceiling.
	Increment(ctx context.Context, id uuid.UUID) (*Line, error)

	// Decrement lowers the quantity by one. At quantity one the line is
	// deleted instead and the returned line has Quantity zero.
	Decrement(ctx context.Context, id uuid.UUID) (*Line, error)
}
