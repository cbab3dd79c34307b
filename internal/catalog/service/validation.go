package service

import (
	"context"
	"fmt"
	"strings"

	perrors "github.com/abgdnv/productcatalog/internal/catalog/errors"
	"github.com/shopspring/decimal"
)

// Prices are stored as NUMERIC(12,2).
const priceScale = 2

var maxPrice = decimal.New(1, 10)

// validateName checks a name in this order: nil is ErrInvalidName, a name already taken
// is ErrNameConflict, and a blank name is ErrInvalidName.
func (s *Service) validateName(ctx context.Context, name *string) error {
	if name == nil {
		return perrors.ErrInvalidName
	}
	exists, err := s.repository.ExistsByName(ctx, *name)
	if err != nil {
		return fmt.Errorf("failed to check product name: %w", err)
	}
	if exists {
		return perrors.ErrNameConflict
	}
	if strings.TrimSpace(*name) == "" {
		return perrors.ErrInvalidName
	}
	return nil
}

// validatePrice accepts nil or a value in [0, 1e10) with at most two decimal places.
func validatePrice(price *decimal.Decimal) error {
	if price == nil {
		return nil
	}
	if price.IsNegative() || price.GreaterThanOrEqual(maxPrice) || !price.Equal(price.Round(priceScale)) {
		return perrors.ErrInvalidPrice
	}
	return nil
}

// validateStock accepts nil or a value >= 0.
func validateStock(stock *int32) error {
	if stock != nil && *stock < 0 {
		return perrors.ErrInvalidStock
	}
	return nil
}
