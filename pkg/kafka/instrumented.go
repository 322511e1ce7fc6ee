package kafka

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/wms-platform/inbound-service/pkg/cloudevents"
	"github.com/wms-platform/inbound-service/pkg/logging"
	"github.com/wms-platform/inbound-service/pkg/metrics"
	"github.com/wms-platform/inbound-service/pkg/resilience"
	"github.com/wms-platform/inbound-service/pkg/tracing"
)

// EventPublisher is the publishing contract used by the outbox
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic string, event *cloudevents.WMSCloudEvent) error
}

// InstrumentedProducer wraps an EventPublisher with a circuit breaker, metrics and tracing
type InstrumentedProducer struct {
	producer EventPublisher
	breaker  *resilience.CircuitBreaker
	metrics  *metrics.Metrics
	logger   *logging.Logger
	tracer   trace.Tracer
}

// NewInstrumentedProducer creates a new instrumented producer
func NewInstrumentedProducer(producer EventPublisher, m *metrics.Metrics, logger *logging.Logger) *InstrumentedProducer {
	cbConfig := resilience.DefaultCircuitBreakerConfig("kafka-producer")
	cbConfig.OnStateChange = func(name string, _, to gobreaker.State) {
		m.SetCircuitBreakerState(name, int(to))
	}

	return &InstrumentedProducer{
		producer: producer,
		breaker:  resilience.NewCircuitBreaker(cbConfig, logger.Logger),
		metrics:  m,
		logger:   logger,
		tracer:   otel.Tracer("kafka-producer"),
	}
}

// PublishEvent publishes through the breaker and records the outcome
func (p *InstrumentedProducer) PublishEvent(ctx context.Context, topic string, event *cloudevents.WMSCloudEvent) error {
	start := time.Now()

	ctx, span := p.tracer.Start(ctx, "kafka.publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			semconv.MessagingSystemKey.String("kafka"),
			semconv.MessagingDestinationNameKey.String(topic),
			semconv.MessagingOperationKey.String("publish"),
			attribute.String("messaging.kafka.event_type", event.Type),
			attribute.String("messaging.message_id", event.ID),
		),
	)
	defer span.End()

	if event.ReceiptID != "" {
		span.SetAttributes(attribute.String("wms.receipt_id", event.ReceiptID))
	}

	_, err := p.breaker.Execute(ctx, func() (interface{}, error) {
		return nil, p.producer.PublishEvent(ctx, topic, event)
	})
	duration := time.Since(start)

	p.metrics.RecordKafkaPublish(topic, event.Type, err == nil, duration)
	p.logger.KafkaPublish(ctx, topic, event.Type, err == nil, duration)
	tracing.RecordError(span, err)

	return err
}
