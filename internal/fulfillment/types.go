// Package fulfillment drives an order through its lifecycle:
// pending -> confirmed -> shipped -> delivered, with cancellation possible
// only while pending. Stock is decremented exactly once, on confirmation,
// inside the same transaction that flips the status.
package fulfillment

import (
	"time"

	"github.com/google/uuid"
)

// Status is the order lifecycle state.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusShipped   Status = "SHIPPED"
	StatusDelivered Status = "DELIVERED"
	StatusCancelled Status = "CANCELLED"
)

// transitions maps each status to the commands valid in it and the status
// each command produces. Transitions are strictly forward; nothing is
// reversible.
var transitions = map[Status]map[command]Status{
	StatusPending: {
		commandConfirm: StatusConfirmed,
		commandCancel:  StatusCancelled,
	},
	StatusConfirmed: {
		commandShip: StatusShipped,
	},
	StatusShipped: {
		commandReceive: StatusDelivered,
	},
}

type command string

const (
	commandConfirm command = "confirm"
	commandShip    command = "ship"
	commandReceive command = "receive"
	commandCancel  command = "cancel"
)

// Order is the persisted order record. Timestamps are stamped once, on the
// transition that produces them, and never change afterwards.
type Order struct {
	ID             uuid.UUID
	SellerID       uuid.UUID
	BuyerID        uuid.UUID
	ConversationID uuid.UUID
	Status         Status
	TotalPrice     int64
	TrackingRef    string
	CreatedAt      time.Time
	ConfirmedAt    *time.Time
	ShippedAt      *time.Time
	DeliveredAt    *time.Time
	CancelledAt    *time.Time
}

// OrderItem is one line of an order. VariantID is nil for products sold
// without variants.
type OrderItem struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	ProductID   uuid.UUID
	VariantID   *uuid.UUID
	ShopID      uuid.UUID
	ProductName string
	VariantName string
	Quantity    int32
	UnitPrice   int64
	Price       int64
}
