// Package store provides an interface for product storage operations.
package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a product row in the store.
type Product struct {
	ID          int64
	Name        string
	Description *string
	Price       decimal.Decimal
	Stock       int32
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreateParams holds the values of a new product. The ID is assigned by the store.
type CreateParams struct {
	Name        string
	Description *string
	Price       decimal.Decimal
	Stock       int32
}

// StockFunc decides the new stock of a product whose row is locked for the duration of the call.
// Returning write=false leaves the row untouched; a non-nil error aborts the transaction.
type StockFunc func(current Product) (stock int32, write bool, err error)

// ProductFunc returns the new state of a product whose row is locked for the duration of the call.
// Only name, description, price and stock of the result are persisted; a non-nil error aborts the transaction.
type ProductFunc func(current Product) (Product, error)

// ProductStore is an interface for product storage operations.
// It abstracts the underlying data store, allowing for different implementations (e.g., in-memory, database).
type ProductStore interface {
	// FindByID retrieves a single product by its unique identifier.
	// Returns ErrProductNotFound if no product exists with the given ID.
	FindByID(ctx context.Context, id int64) (*Product, error)

	// FindByName retrieves a single product by its unique name.
	// Returns ErrProductNotFound if no product exists with the given name.
	FindByName(ctx context.Context, name string) (*Product, error)

	// ExistsByID reports whether a product with the given ID exists.
	ExistsByID(ctx context.Context, id int64) (bool, error)

	// ExistsByName reports whether a product with the given name exists.
	ExistsByName(ctx context.Context, name string) (bool, error)

	// FindAll returns all available products ordered by ID.
	// Returns an empty slice if no products exist.
	FindAll(ctx context.Context) ([]Product, error)

	// Create adds a new product to the system.
	// Returns ErrNameConflict if the name is already taken.
	Create(ctx context.Context, params CreateParams) (*Product, error)

	// UpdateFunc locks the product row, passes it to fn and persists name, description,
	// price and stock of the product fn returns, all within one transaction.
	// Returns ErrProductNotFound if no product exists with the given ID.
	UpdateFunc(ctx context.Context, id int64, fn ProductFunc) (*Product, error)

	// UpdateStockFunc locks the product row, passes it to fn and persists the stock fn returns,
	// all within one transaction. Returns ErrProductNotFound if no product exists with the given ID.
	UpdateStockFunc(ctx context.Context, id int64, fn StockFunc) (*Product, error)

	// DeleteByID removes a product by its ID.
	// Returns ErrProductNotFound if no product exists with the given ID.
	DeleteByID(ctx context.Context, id int64) error
}
