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

	"github.com/vendora/marketplace/internal/catalog"
	"github.com/vendora/marketplace/internal/catalog/persist"
	"github.com/vendora/marketplace/pkg/web"
)

// ProductHandler exposes product authoring over HTTP.
type ProductHandler struct {
	service  persist.ProductService
	validate *validator.Validate
	logger   *slog.Logger
}

// NewProductHandler creates a new instance of ProductHandler with the provided service.
func NewProductHandler(service persist.ProductService, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{
		service:  service,
		validate: validator.New(),
		logger:   logger.With("component", "rest"),
	}
}

// RegisterRoutes registers the HTTP routes for product authoring.
func (h *ProductHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/products", func(r chi.Router) {
		r.Post("/", h.Save)
		r.Get("/{id}", h.FindByID)
	})
}

// FindByID retrieves a product by its ID.
func (h *ProductHandler) FindByID(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	id, ok := web.ParseID(w, r, mLogger)
	if !ok {
		return
	}

	found, err := h.service.FindByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, persist.ErrProductNotFound) {
			mLogger.WarnContext(r.Context(), "Product not found", "ID", id)
			web.RespondError(w, mLogger, http.StatusNotFound, fmt.Sprintf("Product with ID %s not found", id))
			return
		}
		mLogger.ErrorContext(r.Context(), "Error retrieving product", "ID", id, "error", err)
		web.RespondError(w, mLogger, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve product with ID %s", id))
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, found)
}

// Save persists the authored product state, creating the product if needed.
func (h *ProductHandler) Save(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	userID, ok := web.GetUserID(w, r, mLogger)
	if !ok {
		return
	}

	var dto persist.ProductSaveDto
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		mLogger.ErrorContext(r.Context(), "Error decoding request body", "error", err)
		web.RespondError(w, mLogger, http.StatusBadRequest, "Invalid request body")
		return
	}

	mLogger.DebugContext(r.Context(), "Received request to save product", "name", dto.Name, "variants", len(dto.Variants))
	if err := h.validate.Struct(dto); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			errorResponse := make(map[string]string)
			for _, fieldErr := range validationErrors {
				errorResponse[fieldErr.Field()] = "failed on rule: " + fieldErr.Tag()
			}
			mLogger.WarnContext(r.Context(), "Validation errors occurred", "errors", errorResponse)
			web.RespondJSON(w, mLogger, http.StatusBadRequest, map[string]any{"validation_errors": errorResponse})
			return
		}
		mLogger.ErrorContext(r.Context(), "Error validating request body", "error", err)
		web.RespondError(w, mLogger, http.StatusBadRequest, "Invalid request body")
		return
	}

	saved, err := h.service.Save(r.Context(), userID, dto)
	if err != nil {
		h.respondSaveError(w, r, mLogger, err)
		return
	}
	status := http.StatusOK
	if dto.ID == nil {
		status = http.StatusCreated
	}
	mLogger.InfoContext(r.Context(), "Product saved", slog.String("ID", saved.ID.String()))
	web.RespondJSON(w, mLogger, status, saved)
}

// respondSaveError maps authoring and persistence errors to HTTP statuses.
func (h *ProductHandler) respondSaveError(w http.ResponseWriter, r *http.Request, mLogger *slog.Logger, err error) {
	switch {
	case errors.Is(err, persist.ErrProductNotFound):
		web.RespondError(w, mLogger, http.StatusNotFound, "Product not found")
	case errors.Is(err, persist.ErrAccessDenied):
		mLogger.WarnContext(r.Context(), "Access denied to product save")
		web.RespondError(w, mLogger, http.StatusForbidden, "Access denied")
	case errors.Is(err, persist.ErrUploadFailure):
		mLogger.ErrorContext(r.Context(), "Image upload failed during save", "error", err)
		web.RespondError(w, mLogger, http.StatusBadGateway, err.Error())
	case errors.Is(err, catalog.ErrDuplicateCombination),
		errors.Is(err, catalog.ErrDuplicateCategory),
		errors.Is(err, catalog.ErrEmptyCategory),
		errors.Is(err, catalog.ErrIncompleteSelection),
		errors.Is(err, catalog.ErrUnknownValue),
		errors.Is(err, catalog.ErrInvalidVariantPrice):
		mLogger.WarnContext(r.Context(), "Rejected invalid product state", "error", err)
		web.RespondError(w, mLogger, http.StatusBadRequest, err.Error())
	default:
		mLogger.ErrorContext(r.Context(), "Error saving product", "error", err)
		web.RespondError(w, mLogger, http.StatusInternalServerError, "Failed to save product")
	}
}

// loggerWithReqID creates a logger with the request ID from the context.
func (h *ProductHandler) loggerWithReqID(r *http.Request) *slog.Logger {
	reqID := middleware.GetReqID(r.Context())
	return h.logger.With("request_id", reqID)
}
