// Package errors provides custom error types for product-related operations.
package errors

import "errors"

var ErrProductNotFound = errors.New("product not found")
var ErrNameConflict = errors.New("product already exists")

var ErrInvalidName = errors.New("invalid product name")
var ErrInvalidPrice = errors.New("price must be positive or 0")
var ErrInvalidStock = errors.New("stock must be positive or 0")
var ErrInvalidQuantity = errors.New("quantity must be greater than 0")

var ErrInsufficientStock = errors.New("not enough stock")

var ErrTransactionBegin = errors.New("failed to begin transaction")
var ErrTransactionCommit = errors.New("failed to commit transaction")
var ErrTransactionRollback = errors.New("failed to rollback transaction")
