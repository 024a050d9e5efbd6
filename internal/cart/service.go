package cart

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// CartService adjusts cart line quantities.
type CartService interface {
	// Increment raises the line quantity by one, capped at the live stock
	// level. On a cap hit the caller receives *StockLimitError with the
	// current ceiling.
	Increment(ctx context.Context, actorID, lineID uuid.UUID) (*LineDto, error)

	// Decrement lowers the line quantity by one; a line at quantity one is
	// removed and the returned dto reports quantity zero.
	Decrement(ctx context.Context, actorID, lineID uuid.UUID) (*LineDto, error)
}

// Service implements CartService.
type Service struct {
	lines  LineStore
	logger *slog.Logger
}

// NewService creates a new cart service.
func NewService(lines LineStore, logger *slog.Logger) *Service {
	return &Service{lines: lines, logger: logger.With("component", "cart")}
}

// LineDto represents the data transfer object for a cart line.
type LineDto struct {
	ID        uuid.UUID  `json:"id"`
	ProductID uuid.UUID  `json:"product_id"`
	VariantID *uuid.UUID `json:"variant_id,omitempty"`
	Quantity  int32      `json:"quantity"`
	Removed   bool       `json:"removed,omitempty"`
}

func (s *Service) Increment(ctx context.Context, actorID, lineID uuid.UUID) (*LineDto, error) {
	if err := s.authorize(ctx, actorID, lineID); err != nil {
		return nil, err
	}
	line, err := s.lines.Increment(ctx, lineID)
	if err != nil {
		return nil, err
	}
	return toLineDto(line), nil
}

func (s *Service) Decrement(ctx context.Context, actorID, lineID uuid.UUID) (*LineDto, error) {
	if err := s.authorize(ctx, actorID, lineID); err != nil {
		return nil, err
	}
	line, err := s.lines.Decrement(ctx, lineID)
	if err != nil {
		return nil, err
	}
	return toLineDto(line), nil
}

// authorize confirms the line belongs to the actor's cart.
func (s *Service) authorize(ctx context.Context, actorID, lineID uuid.UUID) error {
	line, err := s.lines.FindByID(ctx, lineID)
	if err != nil {
		return err
	}
	if line.BuyerID != actorID {
		return ErrAccessDenied
	}
	return nil
}

func toLineDto(line *Line) *LineDto {
	return &LineDto{
		ID:        line.ID,
		ProductID: line.ProductID,
		VariantID: line.VariantID,
		Quantity:  line.Quantity,
		Removed:   line.Quantity == 0,
	}
}
