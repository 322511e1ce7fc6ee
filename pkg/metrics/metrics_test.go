package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordWorkflowCounters(t *testing.T) {
	m := New(DefaultConfig("inbound-service"))

	m.RecordScan("RECEIVING", "applied")
	m.RecordScan("RECEIVING", "applied")
	m.RecordScan("RECEIVING", "duplicate")
	m.RecordReceiptTransition("IN_PROGRESS", "ACCEPTED")
	m.RecordDiscrepancy("OVER")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ScansRecorded.WithLabelValues("RECEIVING", "applied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ScansRecorded.WithLabelValues("RECEIVING", "duplicate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReceiptTransitions.WithLabelValues("IN_PROGRESS", "ACCEPTED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DiscrepanciesDetected.WithLabelValues("OVER")))
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordScan("SHIPPING", "applied")
		m.RecordHTTPRequest("GET", "/health", 200, time.Millisecond)
		m.RecordOutboxPurged(3)
	})
}
