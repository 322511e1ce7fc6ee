package events

import (
	"context"
	"fmt"

	"github.com/wms-platform/inbound-service/internal/domain"
	"github.com/wms-platform/inbound-service/pkg/cloudevents"
	"github.com/wms-platform/inbound-service/pkg/kafka"
	"github.com/wms-platform/inbound-service/pkg/outbox"
)

// Aggregate type names stored on outbox events
const (
	AggregateReceipt     = "Receipt"
	AggregateTask        = "Task"
	AggregateScan        = "Scan"
	AggregateDiscrepancy = "Discrepancy"
	AggregatePallet      = "Pallet"
)

// Mapper converts domain events into outbox events carrying CloudEvents
type Mapper struct {
	factory *cloudevents.EventFactory
}

// NewMapper creates a mapper for the given event factory
func NewMapper(factory *cloudevents.EventFactory) *Mapper {
	return &Mapper{factory: factory}
}

// ToOutbox maps events of one aggregate. Unknown event types are skipped.
func (m *Mapper) ToOutbox(ctx context.Context, aggregateID string, events []domain.DomainEvent) ([]*outbox.OutboxEvent, error) {
	out := make([]*outbox.OutboxEvent, 0, len(events))

	for _, event := range events {
		var aggregateType, subject, topic string
		switch e := event.(type) {
		case *domain.ReceiptCreatedEvent:
			aggregateType, subject, topic = AggregateReceipt, "receipt/"+e.ReceiptID, kafka.Topics.ReceiptEvents
		case *domain.ReceiptStatusChangedEvent:
			aggregateType, subject, topic = AggregateReceipt, "receipt/"+e.ReceiptID, kafka.Topics.ReceiptEvents
		case *domain.TaskCreatedEvent:
			aggregateType, subject, topic = AggregateTask, "task/"+e.TaskID, kafka.Topics.TaskEvents
		case *domain.TaskStatusChangedEvent:
			aggregateType, subject, topic = AggregateTask, "task/"+e.TaskID, kafka.Topics.TaskEvents
		case *domain.ScanRecordedEvent:
			aggregateType, subject, topic = AggregateScan, "task/"+e.TaskID, kafka.Topics.TaskEvents
		case *domain.DiscrepancyDetectedEvent:
			aggregateType, subject, topic = AggregateDiscrepancy, "discrepancy/"+e.DiscrepancyID, kafka.Topics.TaskEvents
		case *domain.DiscrepancyResolvedEvent:
			aggregateType, subject, topic = AggregateDiscrepancy, "discrepancy/"+e.DiscrepancyID, kafka.Topics.TaskEvents
		case *domain.PalletMovedEvent:
			aggregateType, subject, topic = AggregatePallet, "pallet/"+e.PalletID, kafka.Topics.InventoryEvents
		default:
			continue
		}

		cloudEvent := m.factory.CreateEvent(ctx, event.EventType(), subject, event.ReceiptRef(), event)
		outboxEvent, err := outbox.NewOutboxEventFromCloudEvent(aggregateID, aggregateType, topic, cloudEvent)
		if err != nil {
			return nil, fmt.Errorf("failed to create outbox event: %w", err)
		}
		out = append(out, outboxEvent)
	}

	return out, nil
}
