package messaging

import (
	"context"
)

const (
	ProductsStream              = "PRODUCTS"
	ProductsSubjects            = "products.>"
	ProductsCreatedSubject      = "products.created"
	ProductsDeletedSubject      = "products.deleted"
	ProductsStockChangedSubject = "products.stock.changed"
)

type Event interface {
	Subject() string
	Payload() ([]byte, error)
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NoopPublisher drops every event. It is used when messaging is disabled.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error {
	return nil
}
