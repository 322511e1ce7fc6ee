package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/inbound-service/internal/domain"
	"github.com/wms-platform/inbound-service/pkg/cloudevents"
	"github.com/wms-platform/inbound-service/pkg/kafka"
	"github.com/wms-platform/inbound-service/pkg/logging"
)

func TestToOutboxRoutesByEventType(t *testing.T) {
	m := NewMapper(cloudevents.NewEventFactory(cloudevents.SourceInbound))
	ctx := logging.ContextWithCorrelationID(context.Background(), "corr-1")
	now := time.Now().UTC()

	events := []domain.DomainEvent{
		&domain.ReceiptStatusChangedEvent{ReceiptID: "r-1", From: domain.ReceiptStatusDraft, To: domain.ReceiptStatusConfirmed, OccurredAt_: now},
		&domain.TaskCreatedEvent{TaskID: "t-1", ReceiptID: "r-1", OccurredAt_: now},
		&domain.PalletMovedEvent{PalletID: "p-1", ReceiptID: "r-1", OccurredAt_: now},
	}

	out, err := m.ToOutbox(ctx, "r-1", events)
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.Equal(t, kafka.Topics.ReceiptEvents, out[0].Topic)
	assert.Equal(t, AggregateReceipt, out[0].AggregateType)
	assert.Equal(t, cloudevents.ReceiptStatusChanged, out[0].EventType)

	assert.Equal(t, kafka.Topics.TaskEvents, out[1].Topic)
	assert.Equal(t, kafka.Topics.InventoryEvents, out[2].Topic)

	ce, err := out[2].ToCloudEvent()
	require.NoError(t, err)
	assert.Equal(t, "pallet/p-1", ce.Subject)
	assert.Equal(t, "r-1", ce.ReceiptID)
	assert.Equal(t, "corr-1", ce.CorrelationID)
	assert.Equal(t, cloudevents.SourceInbound, ce.Source)
}
