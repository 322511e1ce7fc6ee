package kafka

import (
	"time"
)

// Config holds Kafka producer configuration
type Config struct {
	Brokers      []string
	ClientID     string
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int // 0: no ack, 1: leader ack, -1: all replicas ack
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Brokers:      []string{"localhost:9092"},
		ClientID:     "inbound-service",
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: -1,
	}
}

// Topics contains the Kafka topics written by the inbound service
var Topics = struct {
	ReceiptEvents   string
	TaskEvents      string
	InventoryEvents string
}{
	ReceiptEvents:   "wms.inbound.receipts",
	TaskEvents:      "wms.inbound.tasks",
	InventoryEvents: "wms.inbound.inventory",
}
