package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/abgdnv/productcatalog/pkg/messaging"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventSubjects(t *testing.T) {
	testCases := []struct {
		name    string
		event   messaging.Event
		subject string
	}{
		{name: "created", event: ProductCreatedEvent{}, subject: messaging.ProductsCreatedSubject},
		{name: "deleted", event: ProductDeletedEvent{}, subject: messaging.ProductsDeletedSubject},
		{name: "stock changed", event: StockChangedEvent{}, subject: messaging.ProductsStockChangedSubject},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.subject, tc.event.Subject())
		})
	}
}

func TestProductCreatedEvent_Payload(t *testing.T) {
	// given
	id := uuid.New()
	at := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	event := ProductCreatedEvent{
		Carrier:   map[string]string{"traceparent": "00-abc-def-01"},
		EventID:   id,
		ProductID: 7,
		Name:      "Keyboard",
		Price:     decimal.RequireFromString("129.90"),
		Stock:     3,
		CreatedAt: at,
	}

	// when
	payload, err := event.Payload()

	// then
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"carrier": {"traceparent": "00-abc-def-01"},
		"event_id": "`+id.String()+`",
		"product_id": 7,
		"name": "Keyboard",
		"price": "129.9",
		"stock": 3,
		"created_at": "2025-07-01T12:00:00Z"
	}`, string(payload))
}

func TestStockChangedEvent_Payload(t *testing.T) {
	// given
	event := StockChangedEvent{ProductID: 1, Previous: 5, Current: 2, Reason: ReasonReservation}

	// when
	payload, err := event.Payload()

	// then
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, "reservation", decoded["reason"])
	assert.Equal(t, float64(5), decoded["previous"])
	assert.Equal(t, float64(2), decoded["current"])
	assert.NotContains(t, decoded, "carrier")
}
