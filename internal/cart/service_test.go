package cart

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLineStore implements LineStore for unit tests.
type mockLineStore struct {
	line    *Line
	findErr error
	opErr   error
}

func (m *mockLineStore) FindByID(_ context.Context, _ uuid.UUID) (*Line, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	cp := *m.line
	return &cp, nil
}

func (m *mockLineStore) Increment(_ context.Context, _ uuid.UUID) (*Line, error) {
	if m.opErr != nil {
		return nil, m.opErr
	}
	cp := *m.line
	cp.Quantity++
	return &cp, nil
}

func (m *mockLineStore) Decrement(_ context.Context, _ uuid.UUID) (*Line, error) {
	if m.opErr != nil {
		return nil, m.opErr
	}
	cp := *m.line
	cp.Quantity--
	return &cp, nil
}

func newTestService(store LineStore) *Service {
	return NewService(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestService_Increment(t *testing.T) {
	ownerID := uuid.New()

	tests := []struct {
		name        string
		actor       uuid.UUID
		quantity    int32
		findErr     error
		opErr       error
		expectedErr error
		expectedQty int32
	}{
		{name: "happy path", actor: ownerID, quantity: 2, expectedQty: 3},
		{name: "stock ceiling hit", actor: ownerID, quantity: 5, opErr: &StockLimitError{Available: 5}},
		{name: "foreign cart line", actor: uuid.New(), quantity: 2, expectedErr: ErrAccessDenied},
		{name: "line not found", actor: ownerID, findErr: ErrLineNotFound, expectedErr: ErrLineNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// given
			store := &mockLineStore{
				line:    &Line{ID: uuid.New(), BuyerID: ownerID, ProductID: uuid.New(), Quantity: tt.quantity},
				findErr: tt.findErr,
				opErr:   tt.opErr,
			}
			svc := newTestService(store)

			// when
			dto, err := svc.Increment(context.Background(), tt.actor, store.line.ID)

			// then
			if tt.expectedErr != nil {
				require.ErrorIs(t, err, tt.expectedErr)
				assert.Nil(t, dto)
				return
			}
			if tt.opErr != nil {
				var limitErr *StockLimitError
				require.ErrorAs(t, err, &limitErr)
				assert.Equal(t, int32(5), limitErr.Available)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedQty, dto.Quantity)
			assert.False(t, dto.Removed)
		})
	}
}

func TestService_Decrement(t *testing.T) {
	ownerID := uuid.New()

	tests := []struct {
		name            string
		actor           uuid.UUID
		quantity        int32
		expectedErr     error
		expectedQty     int32
		expectedRemoved bool
	}{
		{name: "happy path", actor: ownerID, quantity: 3, expectedQty: 2},
		{name: "quantity one removes the line", actor: ownerID, quantity: 1, expectedQty: 0, expectedRemoved: true},
		{name: "foreign cart line", actor: uuid.New(), quantity: 3, expectedErr: ErrAccessDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// given
			store := &mockLineStore{
				line: &Line{ID: uuid.New(), BuyerID: ownerID, ProductID: uuid.New(), Quantity: tt.quantity},
			}
			svc := newTestService(store)

			// when
			dto, err := svc.Decrement(context.Background(), tt.actor, store.line.ID)

			// then
			if tt.expectedErr != nil {
				require.ErrorIs(t, err, tt.expectedErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedQty, dto.Quantity)
			assert.Equal(t, tt.expectedRemoved, dto.Removed)
		})
	}
}
