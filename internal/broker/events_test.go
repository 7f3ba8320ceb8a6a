package broker

import (
	"context"
	"encoding/json"
	"testing"

	"storefront-service/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleMessageDispatchesOrderShipped(t *testing.T) {
	eh := NewEventHandler()

	var got *models.OrderShippedEvent
	eh.OnOrderShipped(func(ctx context.Context, e *models.OrderShippedEvent) error {
		got = e
		return nil
	})

	payload, err := json.Marshal(models.OrderShippedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   "evt-1",
			EventType: models.EventTypeOrderShipped,
		},
		OrderID:        42,
		OrderNumber:    "OB-0042",
		Email:          "customer@example.com",
		TrackingNumber: "9400100000000000000000",
		Carrier:        "USPS",
	})
	require.NoError(t, err)

	err = eh.HandleMessage(context.Background(), kafka.Message{Value: payload})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(42), got.OrderID)
	assert.Equal(t, "USPS", got.Carrier)
}

func TestHandleMessageIgnoresUnregisteredTypes(t *testing.T) {
	eh := NewEventHandler()

	payload, err := json.Marshal(models.BaseEvent{
		EventID:   "evt-2",
		EventType: models.EventTypeReferralCompleted,
	})
	require.NoError(t, err)

	assert.NoError(t, eh.HandleMessage(context.Background(), kafka.Message{Value: payload}))
}

func TestHandleMessageRejectsMalformedPayload(t *testing.T) {
	eh := NewEventHandler()
	err := eh.HandleMessage(context.Background(), kafka.Message{Value: []byte("{not json")})
	assert.Error(t, err)
}
