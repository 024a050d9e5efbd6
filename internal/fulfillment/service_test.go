package fulfillment

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendora/marketplace/internal/stock"
	"github.com/vendora/marketplace/pkg/messaging"
	"github.com/vendora/marketplace/pkg/messaging/events"
)

// mockOrderStore implements OrderStore for unit tests.
type mockOrderStore struct {
	order *Order
	items []OrderItem

	findErr       error
	transitionErr error
	confirmErr    error

	decrements []stock.Decrement
	levels     []stock.Level

	transitionFrom Status
	transitionTo   Status
	tracking       string
	confirmCalled  bool
}

func (m *mockOrderStore) FindByID(_ context.Context, _ uuid.UUID) (*Order, []OrderItem, error) {
	if m.findErr != nil {
		return nil, nil, m.findErr
	}
	cp := *m.order
	return &cp, m.items, nil
}

func (m *mockOrderStore) FindByUser(_ context.Context, _ uuid.UUID, _, _ int32) ([]Order, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	return []Order{*m.order}, nil
}

func (m *mockOrderStore) Confirm(_ context.Context, _ uuid.UUID, plan PlanFunc) (*Order, []stock.Decrement, error) {
	m.confirmCalled = true
	if m.confirmErr != nil {
		return nil, nil, m.confirmErr
	}
	decrements, err := plan(m.levels)
	if err != nil {
		return nil, nil, err
	}
	m.decrements = decrements
	cp := *m.order
	cp.Status = StatusConfirmed
	now := time.Now()
	cp.ConfirmedAt = &now
	return &cp, decrements, nil
}

func (m *mockOrderStore) Transition(_ context.Context, _ uuid.UUID, from, to Status, tracking string) (*Order, error) {
	m.transitionFrom, m.transitionTo, m.tracking = from, to, tracking
	if m.transitionErr != nil {
		return nil, m.transitionErr
	}
	if m.order.Status != from {
		return nil, ErrInvalidTransition
	}
	cp := *m.order
	cp.Status = to
	if tracking != "" {
		cp.TrackingRef = tracking
	}
	return &cp, nil
}

// capturePublisher records every published event.
type capturePublisher struct {
	events []messaging.Event
	err    error
}

func (p *capturePublisher) Publish(_ context.Context, event messaging.Event) error {
	p.events = append(p.events, event)
	return p.err
}

func (p *capturePublisher) notifications() []events.NotificationEvent {
	var out []events.NotificationEvent
	for _, e := range p.events {
		if n, ok := e.(events.NotificationEvent); ok {
			out = append(out, n)
		}
	}
	return out
}

func (p *capturePublisher) chatMessages() []events.ChatMessageEvent {
	var out []events.ChatMessageEvent
	for _, e := range p.events {
		if c, ok := e.(events.ChatMessageEvent); ok {
			out = append(out, c)
		}
	}
	return out
}

func (p *capturePublisher) statusChanges() []events.OrderStatusChangedEvent {
	var out []events.OrderStatusChangedEvent
	for _, e := range p.events {
		if c, ok := e.(events.OrderStatusChangedEvent); ok {
			out = append(out, c)
		}
	}
	return out
}

var (
	sellerID = uuid.New()
	buyerID  = uuid.New()
)

func testOrder(status Status) *Order {
	return &Order{
		ID:             uuid.New(),
		SellerID:       sellerID,
		BuyerID:        buyerID,
		ConversationID: uuid.New(),
		Status:         status,
		TotalPrice:     3000,
		CreatedAt:      time.Now(),
	}
}

func testItems(order *Order, productID uuid.UUID) []OrderItem {
	return []OrderItem{{
		ID:          uuid.New(),
		OrderID:     order.ID,
		ProductID:   productID,
		ShopID:      uuid.New(),
		ProductName: "Mug",
		Quantity:    3,
		UnitPrice:   1000,
		Price:       3000,
	}}
}

func newTestService(store OrderStore, publisher messaging.Publisher) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(store, stock.NewReconciler(stock.DefaultLowThreshold), publisher, logger)
}

func TestService_Confirm(t *testing.T) {
	productID := uuid.New()

	tests := []struct {
		name        string
		actor       uuid.UUID
		status      Status
		available   int32
		expectedErr error
	}{
		{name: "seller confirms pending order", actor: sellerID, status: StatusPending, available: 50},
		{name: "buyer cannot confirm", actor: buyerID, status: StatusPending, available: 50, expectedErr: ErrAccessDenied},
		{name: "already confirmed", actor: sellerID, status: StatusConfirmed, available: 50, expectedErr: ErrInvalidTransition},
		{name: "insufficient stock", actor: sellerID, status: StatusPending, available: 2, expectedErr: stock.ErrInsufficientStock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// given
			order := testOrder(tt.status)
			store := &mockOrderStore{
				order: order,
				items: testItems(order, productID),
				levels: []stock.Level{{
					ProductID:   productID,
					Available:   tt.available,
					ProductName: "Mug",
				}},
			}
			publisher := &capturePublisher{}
			svc := newTestService(store, publisher)

			// when
			dto, err := svc.Confirm(context.Background(), tt.actor, order.ID)

			// then
			if tt.expectedErr != nil {
				require.ErrorIs(t, err, tt.expectedErr)
				assert.Nil(t, dto)
				assert.Empty(t, publisher.events)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, string(StatusConfirmed), dto.Status)
			require.Len(t, publisher.notifications(), 1)
			assert.Equal(t, events.RoleBuyer, publisher.notifications()[0].Role)
			require.Len(t, publisher.statusChanges(), 1)
			assert.Equal(t, string(StatusPending), publisher.statusChanges()[0].OldStatus)
			assert.Equal(t, string(StatusConfirmed), publisher.statusChanges()[0].NewStatus)
		})
	}
}

func TestService_Confirm_fastFailSkipsStore(t *testing.T) {
	// given
	order := testOrder(StatusShipped)
	store := &mockOrderStore{order: order}
	svc := newTestService(store, &capturePublisher{})

	// when
	_, err := svc.Confirm(context.Background(), sellerID, order.ID)

	// then
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.False(t, store.confirmCalled)
}

func TestService_Confirm_stockAlerts(t *testing.T) {
	tests := []struct {
		name          string
		available     int32
		alertTitle    string
		expectedAlert bool
	}{
		{name: "plenty left, no alert", available: 50, expectedAlert: false},
		{name: "low stock alert", available: 12, alertTitle: "Low stock", expectedAlert: true},
		{name: "out of stock alert", available: 3, alertTitle: "Out of stock", expectedAlert: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// given
			productID := uuid.New()
			order := testOrder(StatusPending)
			store := &mockOrderStore{
				order: order,
				items: testItems(order, productID),
				levels: []stock.Level{{
					ProductID:   productID,
					Available:   tt.available,
					ProductName: "Mug",
				}},
			}
			publisher := &capturePublisher{}
			svc := newTestService(store, publisher)

			// when
			_, err := svc.Confirm(context.Background(), sellerID, order.ID)

			// then
			require.NoError(t, err)
			var sellerAlerts []events.NotificationEvent
			for _, n := range publisher.notifications() {
				if n.Role == events.RoleSeller {
					sellerAlerts = append(sellerAlerts, n)
				}
			}
			if !tt.expectedAlert {
				assert.Empty(t, sellerAlerts)
				return
			}
			require.Len(t, sellerAlerts, 1)
			assert.Equal(t, tt.alertTitle, sellerAlerts[0].Title)
			assert.Equal(t, productID, *sellerAlerts[0].ProductID)
		})
	}
}

func TestService_Confirm_publishFailureDoesNotFail(t *testing.T) {
	// given
	productID := uuid.New()
	order := testOrder(StatusPending)
	store := &mockOrderStore{
		order:  order,
		items:  testItems(order, productID),
		levels: []stock.Level{{ProductID: productID, Available: 50, ProductName: "Mug"}},
	}
	publisher := &capturePublisher{err: errors.New("nats unavailable")}
	svc := newTestService(store, publisher)

	// when
	dto, err := svc.Confirm(context.Background(), sellerID, order.ID)

	// then
	require.NoError(t, err)
	assert.Equal(t, string(StatusConfirmed), dto.Status)
}

func TestService_Ship(t *testing.T) {
	tests := []struct {
		name        string
		actor       uuid.UUID
		status      Status
		tracking    string
		expectedErr error
	}{
		{name: "seller ships confirmed order", actor: sellerID, status: StatusConfirmed, tracking: "TRACK-42"},
		{name: "tracking is trimmed", actor: sellerID, status: StatusConfirmed, tracking: "  TRACK-42  "},
		{name: "empty tracking rejected", actor: sellerID, status: StatusConfirmed, tracking: "   ", expectedErr: ErrEmptyTracking},
		{name: "buyer cannot ship", actor: buyerID, status: StatusConfirmed, tracking: "TRACK-42", expectedErr: ErrAccessDenied},
		{name: "pending order cannot ship", actor: sellerID, status: StatusPending, tracking: "TRACK-42", expectedErr: ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// given
			order := testOrder(tt.status)
			store := &mockOrderStore{order: order, items: testItems(order, uuid.New())}
			publisher := &capturePublisher{}
			svc := newTestService(store, publisher)

			// when
			dto, err := svc.Ship(context.Background(), tt.actor, order.ID, tt.tracking)

			// then
			if tt.expectedErr != nil {
				require.ErrorIs(t, err, tt.expectedErr)
				assert.Nil(t, dto)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, string(StatusShipped), dto.Status)
			assert.Equal(t, "TRACK-42", dto.TrackingRef)
			assert.Equal(t, "TRACK-42", store.tracking)

			// one chat message per line item, sent by the seller
			msgs := publisher.chatMessages()
			require.Len(t, msgs, 1)
			assert.Equal(t, order.ConversationID, msgs[0].ConversationID)
			assert.Equal(t, sellerID, msgs[0].SenderID)
			assert.Contains(t, msgs[0].Text, "TRACK-42")
		})
	}
}

func TestService_Receive(t *testing.T) {
	tests := []struct {
		name        string
		actor       uuid.UUID
		status      Status
		expectedErr error
	}{
		{name: "buyer receives shipped order", actor: buyerID, status: StatusShipped},
		{name: "seller cannot receive", actor: sellerID, status: StatusShipped, expectedErr: ErrAccessDenied},
		{name: "confirmed order cannot be received", actor: buyerID, status: StatusConfirmed, expectedErr: ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// given
			order := testOrder(tt.status)
			store := &mockOrderStore{order: order}
			publisher := &capturePublisher{}
			svc := newTestService(store, publisher)

			// when
			dto, err := svc.Receive(context.Background(), tt.actor, order.ID)

			// then
			if tt.expectedErr != nil {
				require.ErrorIs(t, err, tt.expectedErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, string(StatusDelivered), dto.Status)
			require.Len(t, publisher.notifications(), 1)
			assert.Equal(t, sellerID, publisher.notifications()[0].RecipientID)
		})
	}
}

func TestService_Cancel(t *testing.T) {
	tests := []struct {
		name        string
		actor       uuid.UUID
		status      Status
		expectedErr error
	}{
		{name: "buyer cancels pending order", actor: buyerID, status: StatusPending},
		{name: "seller cancels pending order", actor: sellerID, status: StatusPending},
		{name: "stranger cannot cancel", actor: uuid.New(), status: StatusPending, expectedErr: ErrAccessDenied},
		{name: "confirmed order cannot be cancelled", actor: buyerID, status: StatusConfirmed, expectedErr: ErrInvalidTransition},
		{name: "delivered order cannot be cancelled", actor: buyerID, status: StatusDelivered, expectedErr: ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// given
			order := testOrder(tt.status)
			store := &mockOrderStore{order: order}
			svc := newTestService(store, &capturePublisher{})

			// when
			dto, err := svc.Cancel(context.Background(), tt.actor, order.ID)

			// then
			if tt.expectedErr != nil {
				require.ErrorIs(t, err, tt.expectedErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, string(StatusCancelled), dto.Status)
		})
	}
}

func TestService_FindByID(t *testing.T) {
	tests := []struct {
		name        string
		actor       uuid.UUID
		findErr     error
		expectedErr error
	}{
		{name: "buyer sees order", actor: buyerID},
		{name: "seller sees order", actor: sellerID},
		{name: "stranger denied", actor: uuid.New(), expectedErr: ErrAccessDenied},
		{name: "not found propagated", actor: buyerID, findErr: ErrOrderNotFound, expectedErr: ErrOrderNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// given
			order := testOrder(StatusPending)
			store := &mockOrderStore{order: order, items: testItems(order, uuid.New()), findErr: tt.findErr}
			svc := newTestService(store, &capturePublisher{})

			// when
			dto, err := svc.FindByID(context.Background(), tt.actor, order.ID)

			// then
			if tt.expectedErr != nil {
				require.ErrorIs(t, err, tt.expectedErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, order.ID, dto.ID)
			require.Len(t, dto.Items, 1)
			assert.Equal(t, "Mug", dto.Items[0].ProductName)
		})
	}
}
