// Package service layer for order fulfillment commands.
package fulfillment

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vendora/marketplace/internal/stock"
	"github.com/vendora/marketplace/pkg/messaging"
	"github.com/vendora/marketplace/pkg/messaging/events"
)

// OrderService defines the fulfillment commands and order reads.
// Every command takes the acting user explicitly; there is no ambient
// session state.
type OrderService interface {
	// FindByID retrieves an order visible to the actor (buyer or seller).
	FindByID(ctx context.Context, actorID, id uuid.UUID) (*OrderDto, error)

	// FindByUser lists the actor's orders, newest first.
	FindByUser(ctx context.Context, actorID uuid.UUID, offset, limit int32) ([]OrderDto, error)

	// Confirm reconciles stock for every line item and moves the order
	// from pending to confirmed, atomically. On any reconciliation
	// failure the order stays pending and nothing is decremented.
	Confirm(ctx context.Context, actorID, id uuid.UUID) (*OrderDto, error)

	// Ship moves a confirmed order to shipped with a tracking reference.
	Ship(ctx context.Context, actorID, id uuid.UUID, tracking string) (*OrderDto, error)

	// Receive is the buyer confirming delivery of a shipped order.
	Receive(ctx context.Context, actorID, id uuid.UUID) (*OrderDto, error)

	// Cancel aborts a pending order. No stock has been decremented at
	// that point, so this is a pure status write.
	Cancel(ctx context.Context, actorID, id uuid.UUID) (*OrderDto, error)
}

// Service implements OrderService.
type Service struct {
	orders     OrderStore
	reconciler *stock.Reconciler
	publisher  messaging.Publisher
	logger     *slog.Logger
}

// NewService creates a new fulfillment service.
func NewService(orders OrderStore, reconciler *stock.Reconciler, publisher messaging.Publisher, logger *slog.Logger) *Service {
	return &Service{
		orders:     orders,
		reconciler: reconciler,
		publisher:  publisher,
		logger:     logger.With("component", "fulfillment"),
	}
}

// OrderDto represents the data transfer object for an order.
type OrderDto struct {
	ID          uuid.UUID      `json:"id"`
	SellerID    uuid.UUID      `json:"seller_id"`
	BuyerID     uuid.UUID      `json:"buyer_id"`
	Status      string         `json:"status"`
	TotalPrice  int64          `json:"total_price"`
	TrackingRef string         `json:"tracking_ref,omitempty"`
	CreatedAt   string         `json:"created_at"`
	ConfirmedAt string         `json:"confirmed_at,omitempty"`
	ShippedAt   string         `json:"shipped_at,omitempty"`
	DeliveredAt string         `json:"delivered_at,omitempty"`
	CancelledAt string         `json:"cancelled_at,omitempty"`
	Items       []OrderItemDto `json:"items,omitempty"`
}

type OrderItemDto struct {
	ID          uuid.UUID  `json:"id"`
	ProductID   uuid.UUID  `json:"product_id"`
	VariantID   *uuid.UUID `json:"variant_id,omitempty"`
	ProductName string     `json:"product_name"`
	VariantName string     `json:"variant_name,omitempty"`
	Quantity    int32      `json:"quantity"`
	UnitPrice   int64      `json:"unit_price"`
	Price       int64      `json:"price"`
}

// FindByID retrieves an order by its ID and returns it as an OrderDto.
// Returns ErrOrderNotFound if no order exists with the given ID, or
// ErrAccessDenied when the actor is neither buyer nor seller.
func (s *Service) FindByID(ctx context.Context, actorID, id uuid.UUID) (*OrderDto, error) {
	order, items, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != actorID && order.SellerID != actorID {
		return nil, ErrAccessDenied
	}
	return toDto(order, items), nil
}

// FindByUser retrieves the actor's orders and returns them as OrderDtos.
func (s *Service) FindByUser(ctx context.Context, actorID uuid.UUID, offset, limit int32) ([]OrderDto, error) {
	orders, err := s.orders.FindByUser(ctx, actorID, offset, limit)
	if err != nil {
		return nil, err
	}
	dtos := make([]OrderDto, len(orders))
	for i := range orders {
		dtos[i] = *toDto(&orders[i], nil)
	}
	return dtos, nil
}

// Confirm runs stock reconciliation and the pending->confirmed transition
// as one atomic step, then notifies the buyer and emits seller stock
// alerts for exhausted and low classifications.
func (s *Service) Confirm(ctx context.Context, actorID, id uuid.UUID) (*OrderDto, error) {
	order, items, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.SellerID != actorID {
		return nil, ErrAccessDenied
	}
	if _, ok := transitions[order.Status][commandConfirm]; !ok {
		return nil, fmt.Errorf("order is %s: %w", order.Status, ErrInvalidTransition)
	}

	confirmed, decrements, err := s.orders.Confirm(ctx, id, func(levels []stock.Level) ([]stock.Decrement, error) {
		return s.reconciler.Plan(toLineItems(items), levels)
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, events.NotificationEvent{
		RecipientID: confirmed.BuyerID,
		Role:        events.RoleBuyer,
		Title:       "Order confirmed",
		Body:        "The seller confirmed your order.",
		OrderID:     &confirmed.ID,
		CreatedAt:   time.Now(),
	})
	s.emitStockAlerts(ctx, confirmed.SellerID, decrements)
	s.emitStatusChange(ctx, order.Status, confirmed)

	return toDto(confirmed, items), nil
}

// Ship moves a confirmed order to shipped. The tracking reference is
// required; each line item additionally produces a seller-originated
// message in the buyer's conversation.
func (s *Service) Ship(ctx context.Context, actorID, id uuid.UUID, tracking string) (*OrderDto, error) {
	tracking = strings.TrimSpace(tracking)
	if tracking == "" {
		return nil, ErrEmptyTracking
	}

	order, items, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.SellerID != actorID {
		return nil, ErrAccessDenied
	}

	shipped, err := s.orders.Transition(ctx, id, StatusConfirmed, StatusShipped, tracking)
	if err != nil {
		return nil, err
	}

	s.notify(ctx, events.NotificationEvent{
		RecipientID: shipped.BuyerID,
		Role:        events.RoleBuyer,
		Title:       "Order shipped",
		Body:        fmt.Sprintf("Your order is on its way. Tracking: %s", tracking),
		OrderID:     &shipped.ID,
		CreatedAt:   time.Now(),
	})
	for _, item := range items {
		s.postMessage(ctx, events.ChatMessageEvent{
			ConversationID: shipped.ConversationID,
			SenderID:       shipped.SellerID,
			Text:           fmt.Sprintf("%s has been shipped. Tracking: %s", itemLabel(item), tracking),
			CreatedAt:      time.Now(),
		})
	}
	s.emitStatusChange(ctx, order.Status, shipped)

	return toDto(shipped, items), nil
}

// Receive is the buyer confirming delivery. Irreversible.
func (s *Service) Receive(ctx context.Context, actorID, id uuid.UUID) (*OrderDto, error) {
	order, items, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != actorID {
		return nil, ErrAccessDenied
	}

	delivered, err := s.orders.Transition(ctx, id, StatusShipped, StatusDelivered, "")
	if err != nil {
		return nil, err
	}

	s.notify(ctx, events.NotificationEvent{
		RecipientID: delivered.SellerID,
		Role:        events.RoleSeller,
		Title:       "Order delivered",
		Body:        "The buyer confirmed delivery of the order.",
		OrderID:     &delivered.ID,
		CreatedAt:   time.Now(),
	})
	s.emitStatusChange(ctx, order.Status, delivered)

	return toDto(delivered, items), nil
}

// Cancel aborts a pending order. Stock has not been touched yet, so only
// the status changes.
func (s *Service) Cancel(ctx context.Context, actorID, id uuid.UUID) (*OrderDto, error) {
	order, items, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != actorID && order.SellerID != actorID {
		return nil, ErrAccessDenied
	}

	cancelled, err := s.orders.Transition(ctx, id, StatusPending, StatusCancelled, "")
	if err != nil {
		return nil, err
	}

	s.notify(ctx, events.NotificationEvent{
		RecipientID: cancelled.SellerID,
		Role:        events.RoleSeller,
		Title:       "Order cancelled",
		Body:        "A pending order was cancelled.",
		OrderID:     &cancelled.ID,
		CreatedAt:   time.Now(),
	})
	s.emitStatusChange(ctx, order.Status, cancelled)

	return toDto(cancelled, items), nil
}

// emitStockAlerts sends the seller one notification per exhausted or low
// unit, naming the product and variant.
func (s *Service) emitStockAlerts(ctx context.Context, sellerID uuid.UUID, decrements []stock.Decrement) {
	for _, d := range decrements {
		var title, body string
		switch d.Class {
		case stock.Exhausted:
			title = "Out of stock"
			body = fmt.Sprintf("%s is now out of stock.", unitLabel(d))
		case stock.Low:
			title = "Low stock"
			body = fmt.Sprintf("%s is running low: %d left.", unitLabel(d), d.Remaining)
		default:
			continue
		}
		productID := d.ProductID
		s.notify(ctx, events.NotificationEvent{
			RecipientID: sellerID,
			Role:        events.RoleSeller,
			Title:       title,
			Body:        body,
			ProductID:   &productID,
			CreatedAt:   time.Now(),
		})
	}
}

// notify publishes best-effort: a failed send is logged and never rolls
// back the transition that produced it.
func (s *Service) notify(ctx context.Context, event events.NotificationEvent) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish notification", "title", event.Title, "error", err)
	}
}

func (s *Service) postMessage(ctx context.Context, event events.ChatMessageEvent) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish chat message", "conversation_id", event.ConversationID, "error", err)
	}
}

func (s *Service) emitStatusChange(ctx context.Context, old Status, order *Order) {
	event := events.OrderStatusChangedEvent{
		OrderID:   order.ID,
		SellerID:  order.SellerID,
		BuyerID:   order.BuyerID,
		OldStatus: string(old),
		NewStatus: string(order.Status),
		ChangedAt: time.Now(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish status change", "order_id", order.ID, "error", err)
	}
}

func toLineItems(items []OrderItem) []stock.LineItem {
	out := make([]stock.LineItem, len(items))
	for i, it := range items {
		out[i] = stock.LineItem{
			ProductID:   it.ProductID,
			VariantID:   it.VariantID,
			Quantity:    it.Quantity,
			ProductName: it.ProductName,
		}
	}
	return out
}

func itemLabel(it OrderItem) string {
	if it.VariantName != "" {
		return fmt.Sprintf("%s (%s)", it.ProductName, it.VariantName)
	}
	return it.ProductName
}

func unitLabel(d stock.Decrement) string {
	if d.VariantName != "" {
		return fmt.Sprintf("%s (%s)", d.ProductName, d.VariantName)
	}
	return d.ProductName
}

// toDto converts an Order to an OrderDto.
func toDto(order *Order, items []OrderItem) *OrderDto {
	if order == nil {
		return nil
	}

	var itemsDto []OrderItemDto
	if items != nil {
		itemsDto = make([]OrderItemDto, 0, len(items))
		for _, item := range items {
			itemsDto = append(itemsDto, OrderItemDto{
				ID:          item.ID,
				ProductID:   item.ProductID,
				VariantID:   item.VariantID,
				ProductName: item.ProductName,
				VariantName: item.VariantName,
				Quantity:    item.Quantity,
				UnitPrice:   item.UnitPrice,
				Price:       item.Price,
			})
		}
	}

	return &OrderDto{
		ID:          order.ID,
		SellerID:    order.SellerID,
		BuyerID:     order.BuyerID,
		Status:      string(order.Status),
		TotalPrice:  order.TotalPrice,
		TrackingRef: order.TrackingRef,
		CreatedAt:   order.CreatedAt.Format(time.RFC3339),
		ConfirmedAt: formatTime(order.ConfirmedAt),
		ShippedAt:   formatTime(order.ShippedAt),
		DeliveredAt: formatTime(order.DeliveredAt),
		CancelledAt: formatTime(order.CancelledAt),
		Items:       itemsDto,
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
