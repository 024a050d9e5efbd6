// Package rest provides the HTTP command surface of the marketplace.
package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/vendora/marketplace/internal/fulfillment"
	"github.com/vendora/marketplace/internal/stock"
	"github.com/vendora/marketplace/pkg/web"
)

// OrderHandler exposes the fulfillment commands over HTTP.
type OrderHandler struct {
	service  fulfillment.OrderService
	validate *validator.Validate
	logger   *slog.Logger
}

// NewOrderHandler creates a new instance of OrderHandler with the provided service.
func NewOrderHandler(service fulfillment.OrderService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{
		service:  service,
		validate: validator.New(),
		logger:   logger.With("component", "rest"),
	}
}

// RegisterRoutes registers the HTTP routes for order fulfillment.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/orders", func(r chi.Router) {
		r.Get("/", h.FindByUser)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.FindByID)
			r.Post("/confirm", h.Confirm)
			r.Post("/ship", h.Ship)
			r.Post("/receive", h.Receive)
			r.Post("/cancel", h.Cancel)
		})
	})
}

// FindByID retrieves an order by its ID.
func (h *OrderHandler) FindByID(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	id, ok := web.ParseID(w, r, mLogger)
	if !ok {
		return
	}
	userID, ok := web.GetUserID(w, r, mLogger)
	if !ok {
		return
	}

	found, err := h.service.FindByID(r.Context(), userID, id)
	if err != nil {
		h.respondOrderError(w, r, mLogger, err, id.String())
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, found)
}

// FindByUser retrieves the caller's orders.
func (h *OrderHandler) FindByUser(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	limit, ok := web.ParseValidateGt(r, w, mLogger, "limit", 0)
	if !ok {
		return
	}
	offset, ok := web.ParseValidateGte(r, w, mLogger, "offset", 0)
	if !ok {
		return
	}
	userID, ok := web.GetUserID(w, r, mLogger)
	if !ok {
		return
	}

	list, err := h.service.FindByUser(r.Context(), userID, offset, limit)
	if err != nil {
		mLogger.ErrorContext(r.Context(), "Error retrieving order list", "error", err)
		web.RespondError(w, mLogger, http.StatusInternalServerError, "Failed to fetch orders")
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, list)
}

// Confirm moves a pending order to confirmed, decrementing stock.
func (h *OrderHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	id, ok := web.ParseID(w, r, mLogger)
	if !ok {
		return
	}
	userID, ok := web.GetUserID(w, r, mLogger)
	if !ok {
		return
	}

	mLogger.DebugContext(r.Context(), "Received request to confirm order", "ID", id)
	confirmed, err := h.service.Confirm(r.Context(), userID, id)
	if err != nil {
		h.respondOrderError(w, r, mLogger, err, id.String())
		return
	}
	mLogger.InfoContext(r.Context(), "Order confirmed", slog.String("ID", id.String()))
	web.RespondJSON(w, mLogger, http.StatusOK, confirmed)
}

// OrderShipDto carries the dispatch details.
type OrderShipDto struct {
	TrackingRef string `json:"tracking_ref" validate:"required,max=100"`
}

// Ship moves a confirmed order to shipped.
func (h *OrderHandler) Ship(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	id, ok := web.ParseID(w, r, mLogger)
	if !ok {
		return
	}
	userID, ok := web.GetUserID(w, r, mLogger)
	if !ok {
		return
	}

	var dto OrderShipDto
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		mLogger.ErrorContext(r.Context(), "Error decoding request body", "error", err)
		web.RespondError(w, mLogger, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !h.validateStruct(w, r, mLogger, dto) {
		return
	}

	mLogger.DebugContext(r.Context(), "Received request to ship order", "ID", id)
	shipped, err := h.service.Ship(r.Context(), userID, id, dto.TrackingRef)
	if err != nil {
		h.respondOrderError(w, r, mLogger, err, id.String())
		return
	}
	mLogger.InfoContext(r.Context(), "Order shipped", slog.String("ID", id.String()))
	web.RespondJSON(w, mLogger, http.StatusOK, shipped)
}

// Receive is the buyer confirming delivery.
func (h *OrderHandler) Receive(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	id, ok := web.ParseID(w, r, mLogger)
	if !ok {
		return
	}
	userID, ok := web.GetUserID(w, r, mLogger)
	if !ok {
		return
	}

	delivered, err := h.service.Receive(r.Context(), userID, id)
	if err != nil {
		h.respondOrderError(w, r, mLogger, err, id.String())
		return
	}
	mLogger.InfoContext(r.Context(), "Order delivered", slog.String("ID", id.String()))
	web.RespondJSON(w, mLogger, http.StatusOK, delivered)
}

// Cancel aborts a pending order.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	id, ok := web.ParseID(w, r, mLogger)
	if !ok {
		return
	}
	userID, ok := web.GetUserID(w, r, mLogger)
	if !ok {
		return
	}

	cancelled, err := h.service.Cancel(r.Context(), userID, id)
	if err != nil {
		h.respondOrderError(w, r, mLogger, err, id.String())
		return
	}
	mLogger.InfoContext(r.Context(), "Order cancelled", slog.String("ID", id.String()))
	web.RespondJSON(w, mLogger, http.StatusOK, cancelled)
}

// respondOrderError maps fulfillment errors to HTTP statuses.
func (h *OrderHandler) respondOrderError(w http.ResponseWriter, r *http.Request, mLogger *slog.Logger, err error, id string) {
	switch {
	case errors.Is(err, fulfillment.ErrOrderNotFound):
		mLogger.WarnContext(r.Context(), "Order not found", "ID", id)
		web.RespondError(w, mLogger, http.StatusNotFound, fmt.Sprintf("Order with ID %s not found", id))
	case errors.Is(err, fulfillment.ErrAccessDenied):
		mLogger.WarnContext(r.Context(), "Access denied to order", "ID", id)
		web.RespondError(w, mLogger, http.StatusForbidden, fmt.Sprintf("Access denied to order with ID %s", id))
	case errors.Is(err, fulfillment.ErrInvalidTransition):
		mLogger.WarnContext(r.Context(), "Invalid order transition", "ID", id, "error", err)
		web.RespondError(w, mLogger, http.StatusConflict, err.Error())
	case errors.Is(err, fulfillment.ErrConcurrencyConflict):
		mLogger.WarnContext(r.Context(), "Concurrent order update", "ID", id)
		web.RespondError(w, mLogger, http.StatusConflict, "Order was updated concurrently, retry the request")
	case errors.Is(err, fulfillment.ErrEmptyTracking):
		web.RespondError(w, mLogger, http.StatusBadRequest, "Tracking reference must not be empty")
	case errors.Is(err, stock.ErrInsufficientStock),
		errors.Is(err, stock.ErrProductNotFound),
		errors.Is(err, stock.ErrVariantNotFound),
		errors.Is(err, stock.ErrInvalidQuantity):
		mLogger.WarnContext(r.Context(), "Stock reconciliation rejected", "ID", id, "error", err)
		web.RespondError(w, mLogger, http.StatusBadRequest, err.Error())
	default:
		mLogger.ErrorContext(r.Context(), "Error processing order command", "ID", id, "error", err)
		web.RespondError(w, mLogger, http.StatusInternalServerError, fmt.Sprintf("Failed to process order with ID %s", id))
	}
}

// validateStruct runs the DTO validator and writes the field errors on failure.
func (h *OrderHandler) validateStruct(w http.ResponseWriter, r *http.Request, mLogger *slog.Logger, dto any) bool {
	if err := h.validate.Struct(dto); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			errorResponse := make(map[string]string)
			for _, fieldErr := range validationErrors {
				errorResponse[fieldErr.Field()] = "failed on rule: " + fieldErr.Tag()
			}
			mLogger.WarnContext(r.Context(), "Validation errors occurred", "errors", errorResponse)
			web.RespondJSON(w, mLogger, http.StatusBadRequest, map[string]any{"validation_errors": errorResponse})
			return false
		}
		mLogger.ErrorContext(r.Context(), "Error validating request body", "error", err)
		web.RespondError(w, mLogger, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// loggerWithReqID creates a logger with the request ID from the context.
func (h *OrderHandler) loggerWithReqID(r *http.Request) *slog.Logger {
	reqID := middleware.GetReqID(r.Context())
	return h.logger.With("request_id", reqID)
}
