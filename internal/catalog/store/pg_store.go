package store

import (
	"context"
	"errors"
	"fmt"

	perrors "github.com/abgdnv/productcatalog/internal/catalog/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by both the pool and a transaction.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var _ ProductStore = (*PgStore)(nil)

// PgStore implements ProductStore using PostgreSQL as the data store.
type PgStore struct {
	db *pgxpool.Pool
}

// NewPgStore creates a new instance of ProductStore using a PostgreSQL connection pool.
func NewPgStore(dbp *pgxpool.Pool) *PgStore {
	return &PgStore{
		db: dbp,
	}
}

// FindByID retrieves a product by its unique identifier.
// Returns ErrProductNotFound if no product exists with the given ID.
func (p *PgStore) FindByID(ctx context.Context, id int64) (*Product, error) {
	product, err := scanProduct(p.db.QueryRow(ctx, queryFindByID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, perrors.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}
	return product, nil
}

// FindByName retrieves a product by its name.
// Returns ErrProductNotFound if no product exists with the given name.
func (p *PgStore) FindByName(ctx context.Context, name string) (*Product, error) {
	product, err := scanProduct(p.db.QueryRow(ctx, queryFindByName, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, perrors.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by name: %w", err)
	}
	return product, nil
}

func (p *PgStore) ExistsByID(ctx context.Context, id int64) (bool, error) {
	var exists bool
	if err := p.db.QueryRow(ctx, queryExistsByID, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check product existence by ID: %w", err)
	}
	return exists, nil
}

func (p *PgStore) ExistsByName(ctx context.Context, name string) (bool, error) {
	var exists bool
	if err := p.db.QueryRow(ctx, queryExistsByName, name).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check product existence by name: %w", err)
	}
	return exists, nil
}

// FindAll retrieves all available products.
// It returns a slice of products, which may be empty if no products exist.
func (p *PgStore) FindAll(ctx context.Context) ([]Product, error) {
	rows, err := p.db.Query(ctx, queryFindAll)
	if err != nil {
		return nil, fmt.Errorf("failed to find all products: %w", err)
	}
	defer rows.Close()

	products := make([]Product, 0)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, *product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to find all products: %w", err)
	}
	return products, nil
}

// Create adds a new product to the system.
// Returns ErrNameConflict if a product with the same name already exists.
func (p *PgStore) Create(ctx context.Context, params CreateParams) (*Product, error) {
	product, err := scanProduct(p.db.QueryRow(ctx, queryCreate,
		params.Name,
		params.Description,
		params.Price.String(),
		params.Stock,
	))
	if err != nil {
		if mapped := mapConstraintError(err); mapped != nil {
			return nil, mapped
		}
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	return product, nil
}

// UpdateFunc locks the product row with SELECT ... FOR UPDATE and writes the product fn
// returns in the same transaction, so it never overwrites a concurrent stock mutation.
func (p *PgStore) UpdateFunc(ctx context.Context, id int64, fn ProductFunc) (*Product, error) {
	var result *Product

	txErr := p.withTransaction(ctx, func(q querier) error {
		current, err := scanProduct(q.QueryRow(ctx, queryFindByIDForUpdate, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return perrors.ErrProductNotFound
			}
			return fmt.Errorf("failed to lock product: %w", err)
		}
		next, err := fn(*current)
		if err != nil {
			return err
		}
		updated, err := scanProduct(q.QueryRow(ctx, queryUpdate,
			id,
			next.Name,
			next.Description,
			next.Price.String(),
			next.Stock,
		))
		if err != nil {
			if mapped := mapConstraintError(err); mapped != nil {
				return mapped
			}
			return fmt.Errorf("failed to update product: %w", err)
		}
		result = updated
		return nil
	})

	if txErr != nil {
		return nil, txErr
	}

	return result, nil
}

// UpdateStockFunc locks the product row with SELECT ... FOR UPDATE, so concurrent
// stock mutations of the same product are serialized by the database.
func (p *PgStore) UpdateStockFunc(ctx context.Context, id int64, fn StockFunc) (*Product, error) {
	var result *Product

	txErr := p.withTransaction(ctx, func(q querier) error {
		current, err := scanProduct(q.QueryRow(ctx, queryFindByIDForUpdate, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return perrors.ErrProductNotFound
			}
			return fmt.Errorf("failed to lock product: %w", err)
		}
		stock, write, err := fn(*current)
		if err != nil {
			return err
		}
		if !write {
			result = current
			return nil
		}
		updated, err := scanProduct(q.QueryRow(ctx, queryUpdateStock, id, stock))
		if err != nil {
			if errors.Is(mapConstraintError(err), perrors.ErrInvalidStock) {
				return perrors.ErrInsufficientStock
			}
			return fmt.Errorf("failed to update product stock: %w", err)
		}
		result = updated
		return nil
	})

	if txErr != nil {
		return nil, txErr
	}

	return result, nil
}

// DeleteByID removes a product by its unique identifier.
// Returns ErrProductNotFound if no product exists with the given ID.
func (p *PgStore) DeleteByID(ctx context.Context, id int64) error {
	tag, err := p.db.Exec(ctx, queryDelete, id)
	if err != nil {
		return fmt.Errorf("failed to delete product by ID: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return perrors.ErrProductNotFound
	}
	return nil
}

func (p *PgStore) withTransaction(ctx context.Context, fn func(q querier) error) error {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", perrors.ErrTransactionBegin, err)
	}

	err = fn(tx)
	if err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return fmt.Errorf("%w: %w", perrors.ErrTransactionRollback, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %w", perrors.ErrTransactionCommit, err)
	}

	return nil
}

// mapConstraintError translates constraint violations into domain errors.
// It returns nil when err is not a known constraint violation.
func mapConstraintError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return nil
	}
	switch {
	case pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == constraintNameUnique:
		return perrors.ErrNameConflict
	case pgErr.Code == pgCheckViolation && pgErr.ConstraintName == constraintStockCheck:
		return perrors.ErrInvalidStock
	case pgErr.Code == pgCheckViolation && pgErr.ConstraintName == constraintPriceCheck:
		return perrors.ErrInvalidPrice
	case pgErr.Code == pgNumericOutOfRange:
		// price is the only NUMERIC column
		return perrors.ErrInvalidPrice
	}
	return nil
}
