// Package events contains the concrete event types published by the
// marketplace core.
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/vendora/marketplace/pkg/messaging"
)

// Recipient roles for notifications.
const (
	RoleBuyer  = "buyer"
	RoleSeller = "seller"
)

// NotificationEvent is a push notification addressed to one user.
type NotificationEvent struct {
	RecipientID uuid.UUID  `json:"recipient_id"`
	Role        string     `json:"role"`
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	OrderID     *uuid.UUID `json:"order_id,omitempty"`
	ProductID   *uuid.UUID `json:"product_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (e NotificationEvent) Subject() string {
	return messaging.NotificationsSubject
}

func (e NotificationEvent) Payload() ([]byte, error) {
	return json.Marshal(e)
}
