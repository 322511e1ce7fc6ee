// Package importer validates and decodes receipt import messages.
package importer

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed receipt.schema.json
var receiptSchema []byte

const schemaURL = "urn:inbound:receipt-import"

// ErrInvalidPayload is returned for messages that are not JSON or fail the schema
var ErrInvalidPayload = errors.New("invalid import payload")

// Message is a decoded receipt import
type Message struct {
	MessageID   string    `json:"messageId"`
	DocNo       string    `json:"docNo"`
	DocDate     time.Time `json:"-"`
	Supplier    string    `json:"supplier"`
	CrossDock   bool      `json:"crossDock"`
	OutboundRef string    `json:"outboundRef"`
	Lines       []Line    `json:"lines"`
}

// Line is one expected line of an import message
type Line struct {
	LineNo      int        `json:"lineNo"`
	SKU         string     `json:"sku"`
	Name        string     `json:"name"`
	UOM         string     `json:"uom"`
	QtyExpected int        `json:"qtyExpected"`
	Packaging   string     `json:"packaging"`
	SSCC        string     `json:"sscc"`
	Lot         string     `json:"lot"`
	Expiry      *time.Time `json:"-"`
}

type wireMessage struct {
	Message
	DocDate string     `json:"docDate"`
	Lines   []wireLine `json:"lines"`
}

type wireLine struct {
	Line
	Expiry string `json:"expiry"`
}

// Decoder checks import messages against the embedded JSON Schema
type Decoder struct {
	schema *jsonschema.Schema
}

// NewDecoder compiles the embedded schema
func NewDecoder() (*Decoder, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(receiptSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to parse import schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, doc); err != nil {
		return nil, fmt.Errorf("failed to add import schema: %w", err)
	}
	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("failed to compile import schema: %w", err)
	}
	return &Decoder{schema: schema}, nil
}

// Decode validates data and returns the message it carries
func (d *Decoder) Decode(data []byte) (*Message, error) {
	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := d.schema.Validate(instance); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	var wire wireMessage
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	msg := wire.Message
	if msg.DocDate, err = parseDate(wire.DocDate); err != nil {
		return nil, fmt.Errorf("%w: docDate: %v", ErrInvalidPayload, err)
	}

	msg.Lines = make([]Line, 0, len(wire.Lines))
	for _, wl := range wire.Lines {
		line := wl.Line
		if wl.Expiry != "" {
			expiry, err := parseDate(wl.Expiry)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d expiry: %v", ErrInvalidPayload, line.LineNo, err)
			}
			line.Expiry = &expiry
		}
		msg.Lines = append(msg.Lines, line)
	}
	return &msg, nil
}

// parseDate accepts a plain date or an RFC 3339 timestamp
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is neither a date nor an RFC 3339 time", s)
	}
	return t.UTC(), nil
}
