package events

import (
	"encoding/json"
	"time"

	"github.com/abgdnv/productcatalog/pkg/messaging"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/propagation"
)

type ProductCreatedEvent struct {
	Carrier   propagation.MapCarrier `json:"carrier,omitempty"`
	EventID   uuid.UUID              `json:"event_id"`
	ProductID int64                  `json:"product_id"`
	Name      string                 `json:"name"`
	Price     decimal.Decimal        `json:"price"`
	Stock     int32                  `json:"stock"`
	CreatedAt time.Time              `json:"created_at"`
}

func (e ProductCreatedEvent) Subject() string {
	return messaging.ProductsCreatedSubject
}

func (e ProductCreatedEvent) Payload() ([]byte, error) {
	return json.Marshal(e)
}

type ProductDeletedEvent struct {
	Carrier   propagation.MapCarrier `json:"carrier,omitempty"`
	EventID   uuid.UUID              `json:"event_id"`
	ProductID int64                  `json:"product_id"`
	DeletedAt time.Time              `json:"deleted_at"`
}

func (e ProductDeletedEvent) Subject() string {
	return messaging.ProductsDeletedSubject
}

func (e ProductDeletedEvent) Payload() ([]byte, error) {
	return json.Marshal(e)
}

// StockChangeReason tells consumers which operation moved the stock.
type StockChangeReason string

const (
	ReasonReservation StockChangeReason = "reservation"
	ReasonAdjustment  StockChangeReason = "adjustment"
	ReasonUpdate      StockChangeReason = "update"
)

type StockChangedEvent struct {
	Carrier   propagation.MapCarrier `json:"carrier,omitempty"`
	EventID   uuid.UUID              `json:"event_id"`
	ProductID int64                  `json:"product_id"`
	Previous  int32                  `json:"previous"`
	Current   int32                  `json:"current"`
	Reason    StockChangeReason      `json:"reason"`
	ChangedAt time.Time              `json:"changed_at"`
}

func (e StockChangedEvent) Subject() string {
	return messaging.ProductsStockChangedSubject
}

func (e StockChangedEvent) Payload() ([]byte, error) {
	return json.Marshal(e)
}
