package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestLines() []ReceiptLine {
	return []ReceiptLine{
		{LineNo: 1, SKU: "SKU-001", UOM: "EA", QtyExpected: 10},
		{LineNo: 2, SKU: "SKU-002", UOM: "EA", QtyExpected: 4},
	}
}

func newTestReceipt(t *testing.T, crossDock bool) *Receipt {
	t.Helper()
	ref := ""
	if crossDock {
		ref = "OUT-1"
	}
	r, err := NewReceipt("DOC-1", time.Now(), "ACME", crossDock, ref, ReceiptSourceManual, "", createTestLines())
	require.NoError(t, err)
	return r
}

var allReceiptStatuses = []ReceiptStatus{
	ReceiptStatusDraft, ReceiptStatusConfirmed, ReceiptStatusInProgress, ReceiptStatusPendingResolution,
	ReceiptStatusAccepted, ReceiptStatusReadyForShipment, ReceiptStatusPlacing, ReceiptStatusStocked,
	ReceiptStatusShippingInProgress, ReceiptStatusShipped, ReceiptStatusCancelled,
}

func TestReceiptStatusTransitionTable(t *testing.T) {
	allowed := map[ReceiptStatus][]ReceiptStatus{
		ReceiptStatusDraft:              {ReceiptStatusConfirmed, ReceiptStatusCancelled},
		ReceiptStatusConfirmed:          {ReceiptStatusInProgress, ReceiptStatusCancelled},
		ReceiptStatusInProgress:         {ReceiptStatusPendingResolution, ReceiptStatusAccepted, ReceiptStatusReadyForShipment, ReceiptStatusCancelled},
		ReceiptStatusPendingResolution:  {ReceiptStatusInProgress, ReceiptStatusCancelled},
		ReceiptStatusAccepted:           {ReceiptStatusPlacing, ReceiptStatusCancelled},
		ReceiptStatusReadyForShipment:   {ReceiptStatusShippingInProgress, ReceiptStatusCancelled},
		ReceiptStatusPlacing:            {ReceiptStatusStocked, ReceiptStatusCancelled},
		ReceiptStatusShippingInProgress: {ReceiptStatusShipped, ReceiptStatusCancelled},
	}

	for _, from := range allReceiptStatuses {
		for _, to := range allReceiptStatuses {
			want := false
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}

	assert.False(t, ReceiptStatus("BOGUS").IsValid())
	assert.True(t, ReceiptStatusStocked.IsTerminal())
	assert.True(t, ReceiptStatusShipped.IsTerminal())
	assert.True(t, ReceiptStatusCancelled.IsTerminal())
	assert.False(t, ReceiptStatusPlacing.IsTerminal())
}

func TestNewReceipt(t *testing.T) {
	tests := []struct {
		name        string
		crossDock   bool
		outboundRef string
		lines       []ReceiptLine
		expectError error
	}{
		{name: "Valid standard receipt", lines: createTestLines()},
		{name: "Valid cross-dock receipt", crossDock: true, outboundRef: "OUT-1", lines: createTestLines()},
		{name: "Cross-dock without outbound ref", crossDock: true, outboundRef: "  ", lines: createTestLines(), expectError: ErrOutboundRefRequired},
		{name: "Line without sku", lines: []ReceiptLine{{LineNo: 1, QtyExpected: 3}}, expectError: ErrInvalidLine},
		{name: "Duplicate line number", lines: []ReceiptLine{
			{LineNo: 1, SKU: "A", QtyExpected: 1},
			{LineNo: 1, SKU: "B", QtyExpected: 1},
		}, expectError: ErrDuplicateLineNo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewReceipt("DOC-1", time.Now(), "ACME", tt.crossDock, tt.outboundRef, ReceiptSourceManual, "", tt.lines)
			if tt.expectError != nil {
				assert.ErrorIs(t, err, tt.expectError)
				assert.Nil(t, r)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, ReceiptStatusDraft, r.Status)
			assert.Len(t, r.Lines, len(tt.lines))
			for _, l := range r.Lines {
				assert.NotEmpty(t, l.ID)
			}

			events := r.GetDomainEvents()
			require.Len(t, events, 1)
			created, ok := events[0].(*ReceiptCreatedEvent)
			require.True(t, ok)
			assert.Equal(t, r.ID, created.ReceiptID)
			assert.Equal(t, len(tt.lines), created.LineCount)
		})
	}
}

func TestReceiptLinesEditableOnlyInDraft(t *testing.T) {
	r := newTestReceipt(t, false)

	line, err := r.UpsertLine(ReceiptLine{LineNo: 1, SKU: "SKU-001", UOM: "EA", QtyExpected: 12})
	require.NoError(t, err)
	assert.Equal(t, 12, line.QtyExpected)
	assert.Len(t, r.Lines, 2)

	added, err := r.UpsertLine(ReceiptLine{LineNo: 3, SKU: "SKU-003", UOM: "EA", QtyExpected: 1})
	require.NoError(t, err)
	assert.Len(t, r.Lines, 3)

	require.NoError(t, r.RemoveLine(added.ID))
	assert.Len(t, r.Lines, 2)
	assert.ErrorIs(t, r.RemoveLine("missing"), ErrLineNotFound)

	require.NoError(t, r.Confirm())
	_, err = r.UpsertLine(ReceiptLine{LineNo: 4, SKU: "X", QtyExpected: 1})
	assert.ErrorIs(t, err, ErrReceiptNotEditable)
	assert.ErrorIs(t, r.RemoveLine(r.Lines[0].ID), ErrReceiptNotEditable)
}

func TestReceiptConfirm(t *testing.T) {
	r := newTestReceipt(t, false)
	require.NoError(t, r.Confirm())
	assert.Equal(t, ReceiptStatusConfirmed, r.Status)

	assert.ErrorIs(t, r.Confirm(), ErrInvalidReceiptTransition)

	empty, err := NewReceipt("DOC-2", time.Now(), "ACME", false, "", ReceiptSourceManual, "", nil)
	require.NoError(t, err)
	assert.ErrorIs(t, empty.Confirm(), ErrNoLines)
	assert.Equal(t, ReceiptStatusDraft, empty.Status)
}

func TestReceiptReceivingOutcome(t *testing.T) {
	tests := []struct {
		name         string
		crossDock    bool
		unresolved   bool
		expectStatus ReceiptStatus
	}{
		{name: "Standard receipt is accepted", expectStatus: ReceiptStatusAccepted},
		{name: "Cross-dock receipt is ready for shipment", crossDock: true, expectStatus: ReceiptStatusReadyForShipment},
		{name: "Unresolved discrepancies block", unresolved: true, expectStatus: ReceiptStatusPendingResolution},
		{name: "Unresolved discrepancies block cross-dock too", crossDock: true, unresolved: true, expectStatus: ReceiptStatusPendingResolution},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestReceipt(t, tt.crossDock)
			require.NoError(t, r.Confirm())
			require.NoError(t, r.StartReceiving())
			require.NoError(t, r.FinishReceiving(tt.unresolved))
			assert.Equal(t, tt.expectStatus, r.Status)
		})
	}
}

func TestReceiptFullLifecycleEvents(t *testing.T) {
	r := newTestReceipt(t, false)
	r.ClearDomainEvents()

	require.NoError(t, r.Confirm())
	require.NoError(t, r.StartReceiving())
	require.NoError(t, r.StartReceiving(), "start receiving is re-entrant")
	require.NoError(t, r.FinishReceiving(true))
	require.NoError(t, r.ResolveAndContinue())
	require.NoError(t, r.FinishReceiving(false))
	require.NoError(t, r.StartPlacement())
	require.NoError(t, r.StartPlacement(), "start placement is re-entrant")
	require.NoError(t, r.CompletePlacement())
	assert.Equal(t, ReceiptStatusStocked, r.Status)

	var path []ReceiptStatus
	for _, e := range r.GetDomainEvents() {
		changed, ok := e.(*ReceiptStatusChangedEvent)
		require.True(t, ok)
		path = append(path, changed.To)
	}
	assert.Equal(t, []ReceiptStatus{
		ReceiptStatusConfirmed, ReceiptStatusInProgress, ReceiptStatusPendingResolution,
		ReceiptStatusInProgress, ReceiptStatusAccepted, ReceiptStatusPlacing, ReceiptStatusStocked,
	}, path)
}

func TestReceiptCrossDockBranch(t *testing.T) {
	r := newTestReceipt(t, true)
	require.NoError(t, r.Confirm())
	require.NoError(t, r.StartReceiving())
	require.NoError(t, r.FinishReceiving(false))

	assert.ErrorIs(t, r.StartPlacement(), ErrInvalidReceiptTransition)
	require.NoError(t, r.StartShipping())
	assert.ErrorIs(t, r.StartShipping(), ErrInvalidReceiptTransition)
	require.NoError(t, r.CompleteShipping())
	assert.Equal(t, ReceiptStatusShipped, r.Status)
}

func TestReceiptCancel(t *testing.T) {
	r := newTestReceipt(t, false)
	require.NoError(t, r.Confirm())

	changed, err := r.Cancel()
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, ReceiptStatusCancelled, r.Status)

	changed, err = r.Cancel()
	require.NoError(t, err)
	assert.False(t, changed, "cancel is idempotent")

	stocked := newTestReceipt(t, false)
	stocked.Status = ReceiptStatusStocked
	_, err = stocked.Cancel()
	assert.ErrorIs(t, err, ErrReceiptTerminal)
	assert.Equal(t, ReceiptStatusStocked, stocked.Status)
}

func TestReceiptInvalidOperationsLeaveStateUnchanged(t *testing.T) {
	r := newTestReceipt(t, false)
	r.ClearDomainEvents()

	assert.ErrorIs(t, r.StartReceiving(), ErrInvalidReceiptTransition)
	assert.ErrorIs(t, r.FinishReceiving(false), ErrInvalidReceiptTransition)
	assert.ErrorIs(t, r.ResolveAndContinue(), ErrInvalidReceiptTransition)
	assert.ErrorIs(t, r.CompletePlacement(), ErrInvalidReceiptTransition)
	assert.ErrorIs(t, r.CompleteShipping(), ErrInvalidReceiptTransition)

	assert.Equal(t, ReceiptStatusDraft, r.Status)
	assert.Empty(t, r.GetDomainEvents())
}
