// Package service provides the implementation of product catalog business logic.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	perrors "github.com/abgdnv/productcatalog/internal/catalog/errors"
	"github.com/abgdnv/productcatalog/internal/catalog/store"
	"github.com/abgdnv/productcatalog/pkg/messaging"
	"github.com/abgdnv/productcatalog/pkg/messaging/events"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
)

// DeletedMessage is returned by DeleteByID on success.
const DeletedMessage = "Product deleted!"

// ProductCatalog defines the methods for managing the product catalog.
type ProductCatalog interface {
	// FindAll returns a summary of every product ordered by ID.
	// Returns an empty slice if no products exist.
	FindAll(ctx context.Context) ([]ProductSummaryDto, error)

	// FindByID retrieves the full record of a single product.
	// Returns ErrProductNotFound if no product exists with the given ID.
	FindByID(ctx context.Context, id int64) (*ProductDto, error)

	// FindIDByName resolves a product name to its ID.
	// Returns ErrProductNotFound if no product has the given name.
	FindIDByName(ctx context.Context, name string) (int64, error)

	// Create validates and persists a new product.
	// Returns ErrNameConflict, ErrInvalidName, ErrInvalidPrice or ErrInvalidStock.
	Create(ctx context.Context, product ProductCreateDto) (*ProductDto, error)

	// Update applies the non-nil fields of patch to an existing product.
	// Returns ErrProductNotFound, ErrNameConflict, ErrInvalidName, ErrInvalidPrice or ErrInvalidStock.
	Update(ctx context.Context, id int64, patch ProductPatchDto) (*ProductSummaryDto, error)

	// DeleteByID removes a product and returns a confirmation message.
	// Returns ErrProductNotFound if no product exists with the given ID.
	DeleteByID(ctx context.Context, id int64) (string, error)
}

// ProductService combines catalog management with stock reservation.
type ProductService interface {
	ProductCatalog
	StockReservation
}

// Service implements ProductService on top of a ProductStore.
type Service struct {
	repository store.ProductStore
	publisher  messaging.Publisher
	logger     *slog.Logger

	productsCounter     metric.Int64UpDownCounter
	reservationsCounter metric.Int64Counter
	adjustmentsCounter  metric.Int64Counter
}

// NewService creates a new instance of ProductService.
// A nil publisher disables event publishing.
func NewService(repo store.ProductStore, publisher messaging.Publisher, logger *slog.Logger) *Service {
	if publisher == nil {
		publisher = messaging.NoopPublisher{}
	}
	meter := otel.Meter("catalog-service")
	productsCounter, err := meter.Int64UpDownCounter("catalog_products", metric.WithDescription("Number of products created minus deleted"))
	if err != nil {
		panic(fmt.Sprintf("failed to create catalog_products counter: %v", err))
	}
	reservationsCounter, err := meter.Int64Counter("catalog_reservations", metric.WithDescription("Reservation requests by outcome"))
	if err != nil {
		panic(fmt.Sprintf("failed to create catalog_reservations counter: %v", err))
	}
	adjustmentsCounter, err := meter.Int64Counter("catalog_stock_adjustments", metric.WithDescription("Stock adjustments by outcome"))
	if err != nil {
		panic(fmt.Sprintf("failed to create catalog_stock_adjustments counter: %v", err))
	}
	return &Service{
		repository:          repo,
		publisher:           publisher,
		logger:              logger.With("component", "service"),
		productsCounter:     productsCounter,
		reservationsCounter: reservationsCounter,
		adjustmentsCounter:  adjustmentsCounter,
	}
}

// ProductCreateDto represents the data transfer object for creating a new product.
// Absent price and stock default to 0.
type ProductCreateDto struct {
	Name        string           `json:"name"        validate:"max=100"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int32           `json:"stock"`
}

// ProductPatchDto carries a partial update; nil fields are left unchanged.
type ProductPatchDto struct {
	Name        *string          `json:"name"        validate:"omitnil,max=100"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int32           `json:"stock"`
}

// ProductDto represents the full record of a product.
type ProductDto struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description *string         `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int32           `json:"stock"`
}

// ProductSummaryDto represents a product in listings.
type ProductSummaryDto struct {
	ID    int64           `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Stock int32           `json:"stock"`
}

// FindAll retrieves a summary of all products.
func (s *Service) FindAll(ctx context.Context) ([]ProductSummaryDto, error) {
	products, err := s.repository.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch products: %w", err)
	}
	summaries := make([]ProductSummaryDto, len(products))
	for i := range products {
		summaries[i] = *toSummaryDto(&products[i])
	}
	return summaries, nil
}

// FindByID retrieves a product by its ID and returns it as a ProductDto.
// Returns ErrProductNotFound if no product exists with the given ID.
func (s *Service) FindByID(ctx context.Context, id int64) (*ProductDto, error) {
	product, err := s.repository.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch product by ID %d: %w", id, err)
	}
	return toDto(product), nil
}

// FindIDByName returns the ID of the product with the given name.
// Returns ErrProductNotFound if no product has the given name.
func (s *Service) FindIDByName(ctx context.Context, name string) (int64, error) {
	product, err := s.repository.FindByName(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch product by name %q: %w", name, err)
	}
	return product.ID, nil
}

// Create validates the new product and persists it.
func (s *Service) Create(ctx context.Context, product ProductCreateDto) (*ProductDto, error) {
	if err := s.validateName(ctx, &product.Name); err != nil {
		return nil, err
	}
	if err := validatePrice(product.Price); err != nil {
		return nil, err
	}
	if err := validateStock(product.Stock); err != nil {
		return nil, err
	}

	params := store.CreateParams{
		Name:        product.Name,
		Description: product.Description,
	}
	if product.Price != nil {
		params.Price = *product.Price
	}
	if product.Stock != nil {
		params.Stock = *product.Stock
	}

	created, err := s.repository.Create(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	s.productsCounter.Add(ctx, 1)
	s.publish(ctx, events.ProductCreatedEvent{
		Carrier:   carrier(ctx),
		EventID:   uuid.New(),
		ProductID: created.ID,
		Name:      created.Name,
		Price:     created.Price,
		Stock:     created.Stock,
		CreatedAt: created.CreatedAt,
	})

	return toDto(created), nil
}

// Update validates the provided fields and overwrites them on the stored product.
// A description that is absent or blank keeps the stored description.
func (s *Service) Update(ctx context.Context, id int64, patch ProductPatchDto) (*ProductSummaryDto, error) {
	if err := validatePrice(patch.Price); err != nil {
		return nil, err
	}
	if err := validateStock(patch.Stock); err != nil {
		return nil, err
	}

	current, err := s.repository.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch product by ID %d: %w", id, err)
	}
	if patch.Name != nil && *patch.Name != current.Name {
		if err := s.validateName(ctx, patch.Name); err != nil {
			return nil, err
		}
	}

	// The patch is applied to the locked row, so fields the patch leaves out keep their latest values.
	var previousStock int32
	updated, err := s.repository.UpdateFunc(ctx, id, func(locked store.Product) (store.Product, error) {
		previousStock = locked.Stock
		applyPatch(&locked, patch)
		return locked, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update product with ID %d: %w", id, err)
	}
	if updated.Stock != previousStock {
		s.publishStockChanged(ctx, updated, previousStock, events.ReasonUpdate)
	}

	return toSummaryDto(updated), nil
}

func applyPatch(p *store.Product, patch ProductPatchDto) {
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Description != nil && strings.TrimSpace(*patch.Description) != "" {
		p.Description = patch.Description
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.Stock != nil {
		p.Stock = *patch.Stock
	}
}

// DeleteByID deletes a product by its ID.
// Returns ErrProductNotFound if no product exists with the given ID.
func (s *Service) DeleteByID(ctx context.Context, id int64) (string, error) {
	exists, err := s.repository.ExistsByID(ctx, id)
	if err != nil {
		return "", fmt.Errorf("failed to check product with ID %d: %w", id, err)
	}
	if !exists {
		return "", perrors.ErrProductNotFound
	}
	if err := s.repository.DeleteByID(ctx, id); err != nil {
		return "", fmt.Errorf("failed to delete product with ID %d: %w", id, err)
	}
	s.productsCounter.Add(ctx, -1)
	s.publish(ctx, events.ProductDeletedEvent{
		Carrier:   carrier(ctx),
		EventID:   uuid.New(),
		ProductID: id,
		DeletedAt: time.Now().UTC(),
	})
	return DeletedMessage, nil
}

// publish sends the event after the change is committed. Failures are logged only.
func (s *Service) publish(ctx context.Context, event messaging.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish event", "subject", event.Subject(), "error", err)
	}
}

func (s *Service) publishStockChanged(ctx context.Context, product *store.Product, previous int32, reason events.StockChangeReason) {
	s.publish(ctx, events.StockChangedEvent{
		Carrier:   carrier(ctx),
		EventID:   uuid.New(),
		ProductID: product.ID,
		Previous:  previous,
		Current:   product.Stock,
		Reason:    reason,
		ChangedAt: product.UpdatedAt,
	})
}

func carrier(ctx context.Context) propagation.MapCarrier {
	c := make(propagation.MapCarrier)
	otel.GetTextMapPropagator().Inject(ctx, c)
	return c
}

func outcome(result string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("outcome", result))
}

// isNotFound reports whether err means the product does not exist.
func isNotFound(err error) bool {
	return errors.Is(err, perrors.ErrProductNotFound)
}

// toDto converts a store.Product to a ProductDto.
func toDto(product *store.Product) *ProductDto {
	return &ProductDto{
		ID:          product.ID,
		Name:        product.Name,
		Description: product.Description,
		Price:       product.Price,
		Stock:       product.Stock,
	}
}

func toSummaryDto(product *store.Product) *ProductSummaryDto {
	return &ProductSummaryDto{
		ID:    product.ID,
		Name:  product.Name,
		Price: product.Price,
		Stock: product.Stock,
	}
}
