package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/vendora/marketplace/pkg/messaging"
)

// OrderStatusChangedEvent is emitted after every successful order status
// transition for downstream consumers (analytics, mail digests).
type OrderStatusChangedEvent struct {
	OrderID   uuid.UUID `json:"order_id"`
	SellerID  uuid.UUID `json:"seller_id"`
	BuyerID   uuid.UUID `json:"buyer_id"`
	OldStatus string    `json:"old_status"`
	NewStatus string    `json:"new_status"`
	ChangedAt time.Time `json:"changed_at"`
}

func (e OrderStatusChangedEvent) Subject() string {
	return messaging.OrderStatusSubject
}

func (e OrderStatusChangedEvent) Payload() ([]byte, error) {
	return json.Marshal(e)
}
