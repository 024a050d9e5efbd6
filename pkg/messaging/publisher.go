// Package messaging defines the event contract between the marketplace core
// and its outbound channels (push notifications, buyer conversations).
package messaging

import (
	"context"
)

// Subjects for the marketplace event streams.
const (
	NotificationsSubject = "notifications.push"
	ChatMessagesSubject  = "chat.messages"
	OrderStatusSubject   = "orders.status"
)

type Event interface {
	Subject() string
	Payload() ([]byte, error)
}

// Publisher delivers events to their subject. Delivery is fire-and-forget
// from the caller's perspective; a failed publish must never roll back the
// state transition that produced the event.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}
