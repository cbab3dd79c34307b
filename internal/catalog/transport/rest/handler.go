// Package rest provides HTTP handlers for product catalog operations.
package rest

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	perrors "github.com/abgdnv/productcatalog/internal/catalog/errors"
	"github.com/abgdnv/productcatalog/internal/catalog/service"
	"github.com/abgdnv/productcatalog/pkg/web"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// StockUpdatedMessage is returned after a batch stock adjustment.
const StockUpdatedMessage = "The products were updated successfully"

// maxBatchSize bounds the number of entries in a batch request.
const maxBatchSize = 1000

type Handler struct {
	service  service.ProductService
	validate *validator.Validate
	logger   *slog.Logger
}

// reservationRequest is the body of a single-product reservation.
type reservationRequest struct {
	Quantity int32 `json:"quantity" validate:"gt=0"`
}

// lookupResponse is the body returned by the name lookup.
type lookupResponse struct {
	ID int64 `json:"id"`
}

// NewHandler creates a new instance of Handler with the provided service.
func NewHandler(service service.ProductService, logger *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		validate: validator.New(),
		logger:   logger.With("component", "rest"),
	}
}

// RegisterRoutes registers the HTTP routes for the catalog service.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/products", func(r chi.Router) {
		r.Get("/", h.FindAll)
		r.Post("/", h.Create)
		r.Get("/lookup", h.FindIDByName)
		r.Put("/availability", h.CheckAvailability)
		r.Put("/reserve", h.ApplyDeltas)
		r.Put("/reservations", h.ReserveMany)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.FindByID)
			r.Put("/", h.Update)
			r.Delete("/", h.DeleteByID)
			r.Put("/reservation", h.ReserveOne)
		})
	})

	r.Get("/healthz", h.HealthCheck)
}

// FindAll retrieves a summary of all products.
func (h *Handler) FindAll(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.FindAll(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err, "Failed to fetch products")
		return
	}
	h.logger.DebugContext(r.Context(), "Successfully retrieved product list", "count", len(list))
	web.RespondJSON(w, h.logger, http.StatusOK, list)
}

// FindByID retrieves a product by its ID.
func (h *Handler) FindByID(w http.ResponseWriter, r *http.Request) {
	id, ok := web.ParseID(w, r, h.logger)
	if !ok {
		return
	}
	found, err := h.service.FindByID(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err, fmt.Sprintf("Failed to retrieve product with ID %d", id))
		return
	}
	web.RespondJSON(w, h.logger, http.StatusOK, found)
}

// FindIDByName resolves ?name= to a product ID.
func (h *Handler) FindIDByName(w http.ResponseWriter, r *http.Request) {
	name, ok := web.RequiredQuery(r, w, h.logger, "name")
	if !ok {
		return
	}
	id, err := h.service.FindIDByName(r.Context(), name)
	if err != nil {
		h.respondServiceError(w, r, err, "Failed to look up product")
		return
	}
	web.RespondJSON(w, h.logger, http.StatusOK, lookupResponse{ID: id})
}

// Create handles the creation of a new product.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var productCreateDto service.ProductCreateDto
	if !web.DecodeJSON(w, r, h.logger, &productCreateDto) {
		return
	}
	if !h.validateStruct(w, r, productCreateDto) {
		return
	}

	newProduct, err := h.service.Create(r.Context(), productCreateDto)
	if err != nil {
		h.respondServiceError(w, r, err, "Failed to create product")
		return
	}
	h.logger.InfoContext(r.Context(), "Product created successfully", "ID", newProduct.ID, "Name", newProduct.Name)
	web.RespondJSON(w, h.logger, http.StatusCreated, newProduct)
}

// Update applies a partial update to a product.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := web.ParseID(w, r, h.logger)
	if !ok {
		return
	}
	var patch service.ProductPatchDto
	if !web.DecodeJSON(w, r, h.logger, &patch) {
		return
	}
	if !h.validateStruct(w, r, patch) {
		return
	}

	updated, err := h.service.Update(r.Context(), id, patch)
	if err != nil {
		h.respondServiceError(w, r, err, fmt.Sprintf("Failed to update product with ID %d", id))
		return
	}
	h.logger.InfoContext(r.Context(), "Product updated successfully", "ID", updated.ID, "Name", updated.Name)
	web.RespondJSON(w, h.logger, http.StatusOK, updated)
}

// DeleteByID deletes a product by its ID.
func (h *Handler) DeleteByID(w http.ResponseWriter, r *http.Request) {
	id, ok := web.ParseID(w, r, h.logger)
	if !ok {
		return
	}
	msg, err := h.service.DeleteByID(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err, fmt.Sprintf("Failed to delete product with ID %d", id))
		return
	}
	h.logger.InfoContext(r.Context(), "Product deleted successfully", "ID", id)
	web.RespondMessage(w, h.logger, http.StatusOK, msg)
}

// CheckAvailability reports the stock of every requested product that exists.
func (h *Handler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	requests, ok := h.decodeBatch(w, r)
	if !ok {
		return
	}
	available, err := h.service.CheckAvailability(r.Context(), requests)
	if err != nil {
		h.respondServiceError(w, r, err, "Failed to check availability")
		return
	}
	web.RespondJSON(w, h.logger, http.StatusOK, available)
}

// ApplyDeltas adjusts the stock of each requested product by its signed quantity.
func (h *Handler) ApplyDeltas(w http.ResponseWriter, r *http.Request) {
	requests, ok := h.decodeBatch(w, r)
	if !ok {
		return
	}
	if err := h.service.ApplyDeltas(r.Context(), requests); err != nil {
		h.respondServiceError(w, r, err, "Failed to update stock")
		return
	}
	web.RespondMessage(w, h.logger, http.StatusOK, StockUpdatedMessage)
}

// ReserveOne reserves stock of a single product.
func (h *Handler) ReserveOne(w http.ResponseWriter, r *http.Request) {
	id, ok := web.ParseID(w, r, h.logger)
	if !ok {
		return
	}
	var req reservationRequest
	if !web.DecodeJSON(w, r, h.logger, &req) {
		return
	}
	if !h.validateStruct(w, r, req) {
		return
	}
	reservation, err := h.service.ReserveOne(r.Context(), id, req.Quantity)
	if err != nil {
		h.respondServiceError(w, r, err, fmt.Sprintf("Failed to reserve product with ID %d", id))
		return
	}
	if reservation == nil {
		web.RespondError(w, h.logger, http.StatusNotFound, fmt.Sprintf("Product with ID %d not found", id))
		return
	}
	web.RespondJSON(w, h.logger, http.StatusOK, reservation)
}

// ReserveMany reserves stock for each request; unresolved entries are null.
func (h *Handler) ReserveMany(w http.ResponseWriter, r *http.Request) {
	requests, ok := h.decodeBatch(w, r)
	if !ok {
		return
	}
	reservations, err := h.service.ReserveMany(r.Context(), requests)
	if err != nil {
		h.respondServiceError(w, r, err, "Failed to reserve products")
		return
	}
	web.RespondJSON(w, h.logger, http.StatusOK, reservations)
}

// HealthCheck is a simple health check endpoint.
func (h *Handler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) decodeBatch(w http.ResponseWriter, r *http.Request) ([]service.StockRequestDto, bool) {
	var requests []service.StockRequestDto
	if !web.DecodeJSON(w, r, h.logger, &requests) {
		return nil, false
	}
	if err := h.validate.Var(requests, fmt.Sprintf("max=%d", maxBatchSize)); err != nil {
		h.respondValidationError(w, r, err)
		return nil, false
	}
	if requests == nil {
		requests = []service.StockRequestDto{}
	}
	return requests, true
}

// validateStruct runs the validator tags of dto and writes a 400 response on failure.
func (h *Handler) validateStruct(w http.ResponseWriter, r *http.Request, dto any) bool {
	if err := h.validate.Struct(dto); err != nil {
		h.respondValidationError(w, r, err)
		return false
	}
	return true
}

func (h *Handler) respondValidationError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		errorResponse := make(map[string]string)
		for _, fieldErr := range validationErrors {
			field := fieldErr.Field()
			if field == "" {
				field = "body"
			}
			errorResponse[field] = "failed on rule: " + fieldErr.Tag()
		}
		h.logger.WarnContext(r.Context(), "Validation errors occurred", "errors", errorResponse)
		web.RespondJSON(w, h.logger, http.StatusBadRequest, map[string]any{"validation_errors": errorResponse})
		return
	}
	h.logger.ErrorContext(r.Context(), "Error validating request body", "error", err)
	web.RespondError(w, h.logger, http.StatusBadRequest, "Invalid request body")
}

// respondServiceError maps domain errors to HTTP statuses. Unknown errors are logged and
// answered with 500 and the fallback message.
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := http.StatusInternalServerError
	var domainErr error
	switch {
	case errors.Is(err, perrors.ErrProductNotFound):
		status, domainErr = http.StatusNotFound, perrors.ErrProductNotFound
	case errors.Is(err, perrors.ErrNameConflict):
		status, domainErr = http.StatusConflict, perrors.ErrNameConflict
	case errors.Is(err, perrors.ErrInvalidName):
		status, domainErr = http.StatusBadRequest, perrors.ErrInvalidName
	case errors.Is(err, perrors.ErrInvalidPrice):
		status, domainErr = http.StatusBadRequest, perrors.ErrInvalidPrice
	case errors.Is(err, perrors.ErrInvalidStock):
		status, domainErr = http.StatusBadRequest, perrors.ErrInvalidStock
	case errors.Is(err, perrors.ErrInvalidQuantity):
		status, domainErr = http.StatusBadRequest, perrors.ErrInvalidQuantity
	case errors.Is(err, perrors.ErrInsufficientStock):
		status, domainErr = http.StatusNotAcceptable, perrors.ErrInsufficientStock
	}
	if domainErr == nil {
		h.logger.ErrorContext(r.Context(), fallback, "error", err)
		web.RespondError(w, h.logger, status, fallback)
		return
	}
	h.logger.WarnContext(r.Context(), "Request rejected", "status", status, "error", err)
	web.RespondError(w, h.logger, status, domainErr.Error())
}
