package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/vendora/marketplace/internal/cart"
	"github.com/vendora/marketplace/pkg/web"
)

// CartHandler exposes cart quantity adjustments over HTTP.
type CartHandler struct {
	service cart.CartService
	logger  *slog.Logger
}

// NewCartHandler creates a new instance of CartHandler with the provided service.
func NewCartHandler(service cart.CartService, logger *slog.Logger) *CartHandler {
	return &CartHandler{
		service: service,
		logger:  logger.With("component", "rest"),
	}
}

// RegisterRoutes registers the HTTP routes for cart adjustments.
func (h *CartHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/cart/{id}", func(r chi.Router) {
		r.Post("/increment", h.Increment)
		r.Post("/decrement", h.Decrement)
	})
}

type cartOp func(ctx context.Context, actorID, lineID uuid.UUID) (*cart.LineDto, error)

// Increment raises a cart line quantity by one, capped at live stock.
func (h *CartHandler) Increment(w http.ResponseWriter, r *http.Request) {
	h.adjust(w, r, h.service.Increment)
}

// Decrement lowers a cart line quantity by one, removing the line at zero.
func (h *CartHandler) Decrement(w http.ResponseWriter, r *http.Request) {
	h.adjust(w, r, h.service.Decrement)
}

func (h *CartHandler) adjust(w http.ResponseWriter, r *http.Request, op cartOp) {
	mLogger := h.loggerWithReqID(r)
	id, ok := web.ParseID(w, r, mLogger)
	if !ok {
		return
	}
	userID, ok := web.GetUserID(w, r, mLogger)
	if !ok {
		return
	}

	line, err := op(r.Context(), userID, id)
	if err != nil {
		var limitErr *cart.StockLimitError
		switch {
		case errors.As(err, &limitErr):
			// Conflict rather than a validation failure: the quantity was
			// fine when the buyer clicked, the stock moved underneath.
			web.RespondJSON(w, mLogger, http.StatusConflict, map[string]any{
				"error":     limitErr.Error(),
				"available": limitErr.Available,
			})
		case errors.Is(err, cart.ErrLineNotFound):
			mLogger.WarnContext(r.Context(), "Cart line not found", "ID", id)
			web.RespondError(w, mLogger, http.StatusNotFound, fmt.Sprintf("Cart line with ID %s not found", id))
		case errors.Is(err, cart.ErrAccessDenied):
			mLogger.WarnContext(r.Context(), "Access denied to cart line", "ID", id)
			web.RespondError(w, mLogger, http.StatusForbidden, "Access denied")
		default:
			mLogger.ErrorContext(r.Context(), "Error adjusting cart line", "ID", id, "error", err)
			web.RespondError(w, mLogger, http.StatusInternalServerError, "Failed to adjust cart line")
		}
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, line)
}

// loggerWithReqID creates a logger with the request ID from the context.
func (h *CartHandler) loggerWithReqID(r *http.Request) *slog.Logger {
	reqID := middleware.GetReqID(r.Context())
	return h.logger.With("request_id", reqID)
}
