package service

import (
	"context"
	"fmt"
	"math"

	perrors "github.com/abgdnv/productcatalog/internal/catalog/errors"
	"github.com/abgdnv/productcatalog/internal/catalog/store"
	"github.com/abgdnv/productcatalog/pkg/messaging/events"
	"github.com/shopspring/decimal"
)

// StockReservation defines stock checks, reservations and adjustments.
type StockReservation interface {
	// CheckAvailability returns the current stock of every requested product that exists.
	// Unknown IDs are omitted from the result.
	CheckAvailability(ctx context.Context, requests []StockRequestDto) (map[int64]int32, error)

	// ReserveOne decrements the stock by quantity if enough is available.
	// Returns a nil outcome and no error if the product does not exist.
	ReserveOne(ctx context.Context, id int64, quantity int32) (*ReservationDto, error)

	// ReserveMany calls ReserveOne for each request, keeping request order.
	// Entries that could not be resolved are nil.
	ReserveMany(ctx context.Context, requests []StockRequestDto) ([]*ReservationDto, error)

	// ApplyDelta adds a signed delta to the stock of a product.
	// Returns ErrProductNotFound, or ErrInsufficientStock if the result would be negative.
	ApplyDelta(ctx context.Context, id int64, delta int32) (*ProductSummaryDto, error)

	// ApplyDeltas applies each request independently. Failed entries are logged and skipped.
	ApplyDeltas(ctx context.Context, requests []StockRequestDto) error
}

// StockRequestDto pairs a product with a quantity. Reservations require a positive quantity,
// adjustments accept a signed delta.
type StockRequestDto struct {
	ID       int64 `json:"id"`
	Quantity int32 `json:"quantity"`
}

// ReservationDto reports the result of a reservation.
// Price is set only when the full quantity was granted.
type ReservationDto struct {
	ID       int64            `json:"id"`
	Name     string           `json:"name"`
	Price    *decimal.Decimal `json:"price"`
	Quantity int32            `json:"quantity"`
	Stock    int32            `json:"stock"`
}

// CheckAvailability looks up each requested product and reports its stock.
func (s *Service) CheckAvailability(ctx context.Context, requests []StockRequestDto) (map[int64]int32, error) {
	available := make(map[int64]int32, len(requests))
	for _, req := range requests {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		product, err := s.repository.FindByID(ctx, req.ID)
		if err != nil {
			if !isNotFound(err) {
				s.logger.WarnContext(ctx, "Failed to check availability", "product_id", req.ID, "error", err)
			}
			continue
		}
		available[product.ID] = product.Stock
	}
	return available, nil
}

// ReserveOne grants the whole quantity or nothing. The stock check and decrement
// run under the store's row lock.
func (s *Service) ReserveOne(ctx context.Context, id int64, quantity int32) (*ReservationDto, error) {
	if quantity <= 0 {
		return nil, perrors.ErrInvalidQuantity
	}

	var previous int32
	var granted bool
	product, err := s.repository.UpdateStockFunc(ctx, id, func(current store.Product) (int32, bool, error) {
		previous = current.Stock
		granted = current.Stock >= quantity
		if !granted {
			return current.Stock, false, nil
		}
		return current.Stock - quantity, true, nil
	})
	if err != nil {
		if isNotFound(err) {
			s.reservationsCounter.Add(ctx, 1, outcome("missing"))
			s.logger.WarnContext(ctx, "Reservation for unknown product", "product_id", id)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to reserve product with ID %d: %w", id, err)
	}

	reservation := &ReservationDto{
		ID:       product.ID,
		Name:     product.Name,
		Quantity: quantity,
		Stock:    product.Stock,
	}
	if !granted {
		s.reservationsCounter.Add(ctx, 1, outcome("rejected"))
		s.logger.InfoContext(ctx, "Not enough stock to reserve", "product_id", id, "requested", quantity, "available", product.Stock)
		return reservation, nil
	}

	price := product.Price
	reservation.Price = &price
	s.reservationsCounter.Add(ctx, 1, outcome("granted"))
	s.publishStockChanged(ctx, product, previous, events.ReasonReservation)
	return reservation, nil
}

// ReserveMany reserves each request independently.
func (s *Service) ReserveMany(ctx context.Context, requests []StockRequestDto) ([]*ReservationDto, error) {
	reservations := make([]*ReservationDto, len(requests))
	for i, req := range requests {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		reservation, err := s.ReserveOne(ctx, req.ID, req.Quantity)
		if err != nil {
			s.logger.WarnContext(ctx, "Failed to reserve product", "product_id", req.ID, "quantity", req.Quantity, "error", err)
			continue
		}
		reservations[i] = reservation
	}
	return reservations, nil
}

// ApplyDelta adjusts the stock by delta under the store's row lock.
func (s *Service) ApplyDelta(ctx context.Context, id int64, delta int32) (*ProductSummaryDto, error) {
	var previous int32
	product, err := s.repository.UpdateStockFunc(ctx, id, func(current store.Product) (int32, bool, error) {
		previous = current.Stock
		next := int64(current.Stock) + int64(delta)
		if next < 0 {
			return 0, false, perrors.ErrInsufficientStock
		}
		if next > math.MaxInt32 {
			return 0, false, perrors.ErrInvalidStock
		}
		return int32(next), true, nil
	})
	if err != nil {
		s.adjustmentsCounter.Add(ctx, 1, outcome("rejected"))
		return nil, fmt.Errorf("failed to adjust stock of product with ID %d: %w", id, err)
	}

	s.adjustmentsCounter.Add(ctx, 1, outcome("applied"))
	if product.Stock != previous {
		s.publishStockChanged(ctx, product, previous, events.ReasonAdjustment)
	}
	return toSummaryDto(product), nil
}

// ApplyDeltas applies every request on its own. Only a done context stops the batch.
func (s *Service) ApplyDeltas(ctx context.Context, requests []StockRequestDto) error {
	for _, req := range requests {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := s.ApplyDelta(ctx, req.ID, req.Quantity); err != nil {
			s.logger.WarnContext(ctx, "Skipping stock adjustment", "product_id", req.ID, "delta", req.Quantity, "error", err)
		}
	}
	return nil
}
