package cloudevents

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/wms-platform/inbound-service/pkg/logging"
	"github.com/wms-platform/inbound-service/pkg/tracing"
)

// Event types published by the inbound service
const (
	ReceiptCreated       = "wms.inbound.receipt-created"
	ReceiptStatusChanged = "wms.inbound.receipt-status-changed"
	TaskCreated          = "wms.inbound.task-created"
	TaskStatusChanged    = "wms.inbound.task-status-changed"
	ScanRecorded         = "wms.inbound.scan-recorded"
	DiscrepancyDetected  = "wms.inbound.discrepancy-detected"
	DiscrepancyResolved  = "wms.inbound.discrepancy-resolved"
	PalletMoved          = "wms.inventory.pallet-moved"
)

// SourceInbound is the CloudEvents source of this service
const SourceInbound = "/wms/inbound-service"

// WMSCloudEvent represents a CloudEvents v1.0 compliant event
type WMSCloudEvent struct {
	SpecVersion     string      `json:"specversion"`
	Type            string      `json:"type"`
	Source          string      `json:"source"`
	Subject         string      `json:"subject,omitempty"`
	ID              string      `json:"id"`
	Time            time.Time   `json:"time"`
	DataContentType string      `json:"datacontenttype"`
	Data            interface{} `json:"data"`

	// WMS extensions
	CorrelationID string `json:"wmscorrelationid,omitempty"`
	ReceiptID     string `json:"wmsreceiptid,omitempty"`
	TraceParent   string `json:"traceparent,omitempty"`
}

// EventFactory creates CloudEvents for a fixed source
type EventFactory struct {
	source string
}

// NewEventFactory creates a new EventFactory for a specific source
func NewEventFactory(source string) *EventFactory {
	return &EventFactory{source: source}
}

// CreateEvent builds an event, copying correlation and trace context from ctx
func (f *EventFactory) CreateEvent(ctx context.Context, eventType, subject, receiptID string, data interface{}) *WMSCloudEvent {
	event := &WMSCloudEvent{
		SpecVersion:     "1.0",
		Type:            eventType,
		Source:          f.source,
		Subject:         subject,
		ID:              uuid.New().String(),
		Time:            time.Now().UTC(),
		DataContentType: "application/json",
		Data:            data,
		ReceiptID:       receiptID,
	}

	if v, ok := ctx.Value(logging.CorrelationIDKey).(string); ok {
		event.CorrelationID = v
	}

	carrier := tracing.MapCarrier{}
	tracing.InjectTraceContext(ctx, carrier)
	event.TraceParent = carrier.Get("traceparent")

	return event
}
