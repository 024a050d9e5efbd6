// Package store contract for order fulfillment.
package fulfillment

import (
	"context"

	"github.com/google/uuid"
	"github.com/vendora/marketplace/internal/stock"
)

// PlanFunc builds the stock decrement plan from the levels the store
// loaded and locked. Returning an error aborts the whole confirmation;
// nothing is written.
type PlanFunc func(levels []stock.Level) ([]stock.Decrement, error)

// OrderStore is an interface for order storage operations.
// It abstracts the underlying data store, allowing for different implementations (e.g., in-memory, database).
type OrderStore interface {
	// FindByID retrieves a single order with its items.
	// Returns ErrOrderNotFound if no order exists with the given ID.
	FindByID(ctx context.Context, id uuid.UUID) (*Order, []OrderItem, error)

	// FindByUser returns orders where the user is buyer or seller,
	// newest first. Returns an empty slice if none exist.
	FindByUser(ctx context.Context, userID uuid.UUID, offset, limit int32) ([]Order, error)

	// Confirm atomically transitions a pending order to confirmed and
	// applies the stock decrements computed by plan, all in one
	// transaction over locked stock rows. A non-pending order yields
	// ErrInvalidTransition; a plan error aborts with nothing written;
	// detected contention yields ErrConcurrencyConflict.
	Confirm(ctx context.Context, id uuid.UUID, plan PlanFunc) (*Order, []stock.Decrement, error)

	// Transition conditionally moves an order from one status to another,
	// stamping the transition timestamp. tracking is stored when moving to
	// shipped. The move fails with ErrInvalidTransition when the order is
	// not in the expected status, or ErrOrderNotFound when it is missing.
	Transition(ctx context.Context, id uuid.UUID, from, to Status, tracking string) (*Order, error)
}
