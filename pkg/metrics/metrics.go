package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the service.
// All recording methods are safe on a nil receiver.
type Metrics struct {
	serviceName string
	registry    *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Kafka metrics
	KafkaEventsPublished *prometheus.CounterVec
	KafkaPublishDuration *prometheus.HistogramVec

	// MongoDB metrics
	MongoDBOperations        *prometheus.CounterVec
	MongoDBOperationDuration *prometheus.HistogramVec

	// Outbox metrics
	OutboxPending   prometheus.Gauge
	OutboxPublished *prometheus.CounterVec
	OutboxRetries   *prometheus.CounterVec
	OutboxPurged    prometheus.Counter

	// Circuit breaker metrics
	CircuitBreakerState *prometheus.GaugeVec

	// Workflow metrics
	ScansRecorded            *prometheus.CounterVec
	OptimisticRetries        *prometheus.CounterVec
	ConflictsExhausted       *prometheus.CounterVec
	DiscrepanciesDetected    *prometheus.CounterVec
	ReceiptTransitions       *prometheus.CounterVec
	PutawayFailures          *prometheus.CounterVec
	WaveActions              *prometheus.CounterVec
	LocationCapacityBreaches *prometheus.CounterVec
}

// Config holds metrics configuration
type Config struct {
	ServiceName string
	Namespace   string
}

// DefaultConfig returns default metrics configuration
func DefaultConfig(serviceName string) *Config {
	return &Config{
		ServiceName: serviceName,
		Namespace:   "wms",
	}
}

// New creates a new Metrics instance backed by its own registry
func New(config *Config) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	ns := config.Namespace
	constLabels := prometheus.Labels{"service": config.ServiceName}

	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: name, Help: help, ConstLabels: constLabels,
		}, labels)
	}

	m := &Metrics{
		serviceName: config.ServiceName,
		registry:    registry,

		HTTPRequestsTotal: counter("http_requests_total", "Total number of HTTP requests", "method", "path", "status"),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   ns,
			Name:        "http_request_duration_seconds",
			Help:        "HTTP request duration in seconds",
			ConstLabels: constLabels,
			Buckets:     []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"method", "path"}),
		HTTPRequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Name: "http_requests_in_flight",
			Help:        "Number of HTTP requests currently being processed",
			ConstLabels: constLabels,
		}),

		KafkaEventsPublished: counter("kafka_events_published_total", "Total number of Kafka events published", "topic", "event_type", "status"),
		KafkaPublishDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   ns,
			Name:        "kafka_publish_duration_seconds",
			Help:        "Kafka publish duration in seconds",
			ConstLabels: constLabels,
			Buckets:     []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"topic"}),

		MongoDBOperations: counter("mongodb_operations_total", "Total number of MongoDB commands", "database", "command", "status"),
		MongoDBOperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   ns,
			Name:        "mongodb_operation_duration_seconds",
			Help:        "MongoDB command duration in seconds",
			ConstLabels: constLabels,
			Buckets:     []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"database", "command"}),

		OutboxPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Name: "outbox_pending_events",
			Help:        "Unpublished events seen by the last outbox poll",
			ConstLabels: constLabels,
		}),
		OutboxPublished: counter("outbox_events_published_total", "Outbox events handed to Kafka", "event_type", "status"),
		OutboxRetries:   counter("outbox_event_retries_total", "Outbox publish retries", "event_type"),
		OutboxPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "outbox_events_purged_total",
			Help:        "Published outbox events removed by the purge job",
			ConstLabels: constLabels,
		}),

		CircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns, Name: "circuit_breaker_state",
			Help:        "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			ConstLabels: constLabels,
		}, []string{"name"}),

		ScansRecorded:            counter("scans_recorded_total", "Scans processed by task type and outcome", "task_type", "outcome"),
		OptimisticRetries:        counter("optimistic_retries_total", "Attempts repeated after a version conflict", "operation"),
		ConflictsExhausted:       counter("optimistic_conflicts_exhausted_total", "Operations that ran out of optimistic retries", "operation"),
		DiscrepanciesDetected:    counter("discrepancies_detected_total", "Discrepancies recorded by type", "type"),
		ReceiptTransitions:       counter("receipt_transitions_total", "Receipt status transitions", "from", "to"),
		PutawayFailures:          counter("putaway_failures_total", "Pallets for which no putaway location was found", "reason"),
		WaveActions:              counter("shipping_wave_receipts_total", "Per-receipt results of shipping wave actions", "action", "result"),
		LocationCapacityBreaches: counter("location_capacity_breaches_total", "Placements that pushed a location over its pallet capacity", "zone"),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal, m.HTTPRequestDuration, m.HTTPRequestsInFlight,
		m.KafkaEventsPublished, m.KafkaPublishDuration,
		m.MongoDBOperations, m.MongoDBOperationDuration,
		m.OutboxPending, m.OutboxPublished, m.OutboxRetries, m.OutboxPurged,
		m.CircuitBreakerState,
		m.ScansRecorded, m.OptimisticRetries, m.ConflictsExhausted, m.DiscrepanciesDetected,
		m.ReceiptTransitions, m.PutawayFailures, m.WaveActions, m.LocationCapacityBreaches,
	)

	return m
}

// Handler returns the HTTP handler exposing the registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records a completed HTTP request
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// IncrementHTTPRequestsInFlight increments the in-flight gauge
func (m *Metrics) IncrementHTTPRequestsInFlight() {
	if m == nil {
		return
	}
	m.HTTPRequestsInFlight.Inc()
}

// DecrementHTTPRequestsInFlight decrements the in-flight gauge
func (m *Metrics) DecrementHTTPRequestsInFlight() {
	if m == nil {
		return
	}
	m.HTTPRequestsInFlight.Dec()
}

// RecordKafkaPublish records a Kafka publish attempt
func (m *Metrics) RecordKafkaPublish(topic, eventType string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.KafkaEventsPublished.WithLabelValues(topic, eventType, statusLabel(success)).Inc()
	m.KafkaPublishDuration.WithLabelValues(topic).Observe(duration.Seconds())
}

// RecordMongoDBOperation records a MongoDB command
func (m *Metrics) RecordMongoDBOperation(database, command string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.MongoDBOperations.WithLabelValues(database, command, statusLabel(success)).Inc()
	m.MongoDBOperationDuration.WithLabelValues(database, command).Observe(duration.Seconds())
}

// SetOutboxPending sets the number of pending outbox events
func (m *Metrics) SetOutboxPending(count int) {
	if m == nil {
		return
	}
	m.OutboxPending.Set(float64(count))
}

// RecordOutboxPublish records an outbox publish attempt
func (m *Metrics) RecordOutboxPublish(eventType string, success bool) {
	if m == nil {
		return
	}
	m.OutboxPublished.WithLabelValues(eventType, statusLabel(success)).Inc()
}

// RecordOutboxRetry records an outbox retry
func (m *Metrics) RecordOutboxRetry(eventType string) {
	if m == nil {
		return
	}
	m.OutboxRetries.WithLabelValues(eventType).Inc()
}

// RecordOutboxPurged records purged outbox events
func (m *Metrics) RecordOutboxPurged(count int64) {
	if m == nil || count <= 0 {
		return
	}
	m.OutboxPurged.Add(float64(count))
}

// SetCircuitBreakerState records the state of a breaker
func (m *Metrics) SetCircuitBreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordScan records a processed scan. outcome is applied, duplicate or rejected.
func (m *Metrics) RecordScan(taskType, outcome string) {
	if m == nil {
		return
	}
	m.ScansRecorded.WithLabelValues(taskType, outcome).Inc()
}

// RecordOptimisticRetry records a retried attempt after a version conflict
func (m *Metrics) RecordOptimisticRetry(operation string) {
	if m == nil {
		return
	}
	m.OptimisticRetries.WithLabelValues(operation).Inc()
}

// RecordConflictExhausted records an operation that gave up on conflicts
func (m *Metrics) RecordConflictExhausted(operation string) {
	if m == nil {
		return
	}
	m.ConflictsExhausted.WithLabelValues(operation).Inc()
}

// RecordDiscrepancy records a detected discrepancy
func (m *Metrics) RecordDiscrepancy(discrepancyType string) {
	if m == nil {
		return
	}
	m.DiscrepanciesDetected.WithLabelValues(discrepancyType).Inc()
}

// RecordReceiptTransition records a receipt status change
func (m *Metrics) RecordReceiptTransition(from, to string) {
	if m == nil {
		return
	}
	m.ReceiptTransitions.WithLabelValues(from, to).Inc()
}

// RecordPutawayFailure records a pallet without a putaway destination
func (m *Metrics) RecordPutawayFailure(reason string) {
	if m == nil {
		return
	}
	m.PutawayFailures.WithLabelValues(reason).Inc()
}

// RecordWaveAction records the per-receipt result of a wave action
func (m *Metrics) RecordWaveAction(action, result string) {
	if m == nil {
		return
	}
	m.WaveActions.WithLabelValues(action, result).Inc()
}

// RecordLocationCapacityBreach records a placement beyond location capacity
func (m *Metrics) RecordLocationCapacityBreach(zone string) {
	if m == nil {
		return
	}
	m.LocationCapacityBreaches.WithLabelValues(zone).Inc()
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
