package store

import (
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Constraint names as declared in migrations/000001_create_products_table.up.sql.
const (
	constraintNameUnique = "products_name_key"
	constraintStockCheck = "products_stock_check"
	constraintPriceCheck = "products_price_check"

	pgUniqueViolation   = "23505"
	pgCheckViolation    = "23514"
	pgNumericOutOfRange = "22003"
)

// price is selected as text so it can be parsed without precision loss.
const productColumns = "id, name, description, price::text, stock, created_at, updated_at"

const (
	queryFindByID          = "SELECT " + productColumns + " FROM products WHERE id = $1"
	queryFindByIDForUpdate = queryFindByID + " FOR UPDATE"
	queryFindByName        = "SELECT " + productColumns + " FROM products WHERE name = $1"
	queryFindAll           = "SELECT " + productColumns + " FROM products ORDER BY id"
	queryExistsByID        = "SELECT EXISTS(SELECT 1 FROM products WHERE id = $1)"
	queryExistsByName      = "SELECT EXISTS(SELECT 1 FROM products WHERE name = $1)"
	queryDelete            = "DELETE FROM products WHERE id = $1"
)

const queryCreate = `INSERT INTO products (name, description, price, stock)
VALUES ($1, $2, $3::numeric, $4)
RETURNING ` + productColumns

const queryUpdate = `UPDATE products
SET name = $2, description = $3, price = $4::numeric, stock = $5, updated_at = now()
WHERE id = $1
RETURNING ` + productColumns

const queryUpdateStock = `UPDATE products
SET stock = $2, updated_at = now()
WHERE id = $1
RETURNING ` + productColumns

// scanProduct reads a row selected with productColumns.
func scanProduct(row pgx.Row) (*Product, error) {
	var (
		p     Product
		price string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &price, &p.Stock, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	parsed, err := decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("failed to parse price %q: %w", price, err)
	}
	p.Price = parsed
	return &p, nil
}
