package application

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/wms-platform/inbound-service/internal/domain"
	apperrors "github.com/wms-platform/inbound-service/pkg/errors"
)

// racingTasks bumps the stored version of a task behind the caller's back on selected reads,
// so the caller's later save loses the version check
type racingTasks struct {
	domain.TaskRepository
	armed atomic.Bool
	reads atomic.Int32
	bumpOn func(read int32) bool
}

func (r *racingTasks) FindByID(ctx context.Context, id string) (*domain.Task, error) {
	task, err := r.TaskRepository.FindByID(ctx, id)
	if err != nil || task == nil || !r.armed.Load() {
		return task, err
	}
	if r.bumpOn(r.reads.Add(1)) {
		winner, err := r.TaskRepository.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		winner.Priority++
		if err := r.TaskRepository.Save(ctx, winner); err != nil {
			return nil, err
		}
	}
	return task, nil
}

func TestRecordScanIsIdempotentPerRequestID(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r := f.confirmedReceipt(t, "DOC-I", false, "", line(1, "SKU-001", 10))
	task := f.receiving(t, r.ID)[0]

	first := f.scan(t, task.ID, "req-1", "P-1", 4)
	assert.False(t, first.Duplicate)
	assert.Equal(t, 4, first.Task.QtyDone)
	require.NotNil(t, first.Pallet)
	assert.Equal(t, domain.PalletStatusReceived, first.Pallet.Status)
	assert.Equal(t, f.locs["DOCK-01"].ID, first.Pallet.LocationID)
	assert.Equal(t, "DOCK-01", first.Scan.LocationCode)

	second := f.scan(t, task.ID, "req-1", "P-1", 4)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.Scan.ID, second.Scan.ID)
	assert.Equal(t, 4, second.Task.QtyDone)

	scans, err := f.svc.Tasks.ListScans(ctx, task.ID)
	require.NoError(t, err)
	assert.Len(t, scans, 1)

	pallet, err := f.stores.Pallets.FindByCode(ctx, "P-1")
	require.NoError(t, err)
	assert.Equal(t, 4, pallet.Quantity)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ScansRecorded.WithLabelValues("RECEIVING", "applied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ScansRecorded.WithLabelValues("RECEIVING", "duplicate")))
}

func TestConcurrentScansSumExactly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r := f.confirmedReceipt(t, "DOC-CC", false, "", line(1, "SKU-001", 10))
	task := f.receiving(t, r.ID)[0]

	var g errgroup.Group
	for i := 0; i < 10; i++ {
		i := i
		g.Go(func() error {
			_, err := f.svc.Scans.RecordScan(ctx, RecordScanCommand{
				TaskID:     task.ID,
				RequestID:  fmt.Sprintf("req-%d", i),
				PalletCode: fmt.Sprintf("P-%d", i),
				Quantity:   1,
				ScannedBy:  "op-1",
			})
			return err
		})
	}
	require.NoError(t, g.Wait())

	done, err := f.svc.Tasks.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, done.QtyDone)
	assert.Equal(t, domain.TaskStatusCompleted, done.Status)

	scans, err := f.svc.Tasks.ListScans(ctx, task.ID)
	require.NoError(t, err)
	assert.Len(t, scans, 10)

	assert.Equal(t, domain.ReceiptStatusAccepted, f.receipt(t, r.ID).Status)
	assert.Equal(t, 1, f.transitionsTo(t, r.ID, domain.ReceiptStatusAccepted))
}

func TestRecordScanRetriesAfterVersionConflict(t *testing.T) {
	ctx := context.Background()
	racing := &racingTasks{bumpOn: func(read int32) bool { return read == 2 }}
	f := newFixture(t, func(s *Stores) {
		racing.TaskRepository = s.Tasks
		s.Tasks = racing
	})
	r := f.confirmedReceipt(t, "DOC-V", false, "", line(1, "SKU-001", 10))
	task := f.receiving(t, r.ID)[0]

	// Read 1 is the routing lookup, read 2 the first attempt.
	racing.armed.Store(true)
	res := f.scan(t, task.ID, "req-1", "P-1", 3)
	racing.armed.Store(false)

	assert.False(t, res.Duplicate)
	assert.Equal(t, 3, res.Task.QtyDone)
	assert.Equal(t, 1, res.Task.Priority)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.OptimisticRetries.WithLabelValues("record_scan")))

	scans, err := f.svc.Tasks.ListScans(ctx, task.ID)
	require.NoError(t, err)
	assert.Len(t, scans, 1)
	movements, err := f.stores.Movements.FindByPalletID(ctx, res.Pallet.ID)
	require.NoError(t, err)
	assert.Len(t, movements, 1)
}

func TestRecordScanGivesUpAfterRepeatedConflicts(t *testing.T) {
	ctx := context.Background()
	racing := &racingTasks{bumpOn: func(read int32) bool { return read >= 2 }}
	f := newFixtureWithOptions(t, DefaultOptions(), func(s *Stores) {
		racing.TaskRepository = s.Tasks
		s.Tasks = racing
	})
	r := f.confirmedReceipt(t, "DOC-X", false, "", line(1, "SKU-001", 10))
	task := f.receiving(t, r.ID)[0]

	racing.armed.Store(true)
	_, err := f.svc.Scans.RecordScan(ctx, RecordScanCommand{
		TaskID:     task.ID,
		RequestID:  "req-1",
		PalletCode: "P-1",
		Quantity:   3,
	})
	racing.armed.Store(false)

	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConcurrentModification))
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, 409, appErr.HTTPStatus)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ConflictsExhausted.WithLabelValues("record_scan")))

	// One routing lookup, then three attempts with two retries between them.
	assert.Equal(t, 3, DefaultOptions().Retry.MaxAttempts)
	assert.ErrorContains(t, err, "3 attempts")
	assert.Equal(t, int32(4), racing.reads.Load())
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.OptimisticRetries.WithLabelValues("record_scan")))

	// Nothing of the failed attempts survived.
	scans, err := f.svc.Tasks.ListScans(ctx, task.ID)
	require.NoError(t, err)
	assert.Empty(t, scans)
	current, err := f.svc.Tasks.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, current.QtyDone)
	pallet, err := f.stores.Pallets.FindByCode(ctx, "P-1")
	require.NoError(t, err)
	assert.Nil(t, pallet)
}

func TestRecordScanValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r := f.confirmedReceipt(t, "DOC-E", false, "", line(1, "SKU-001", 10))
	task := f.receiving(t, r.ID)[0]

	tests := []struct {
		name string
		cmd  RecordScanCommand
		code string
	}{
		{"missing request id", RecordScanCommand{TaskID: task.ID, PalletCode: "P-1", Quantity: 1}, apperrors.CodeValidationError},
		{"missing pallet code", RecordScanCommand{TaskID: task.ID, RequestID: "r", Quantity: 1}, apperrors.CodeValidationError},
		{"zero quantity", RecordScanCommand{TaskID: task.ID, RequestID: "r", PalletCode: "P-1"}, apperrors.CodeValidationError},
		{"unknown location", RecordScanCommand{TaskID: task.ID, RequestID: "r", PalletCode: "P-1", Quantity: 1, LocationCode: "NOPE"}, apperrors.CodeNotFound},
		{"unknown task", RecordScanCommand{TaskID: "missing", RequestID: "r", PalletCode: "P-1", Quantity: 1}, apperrors.CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Scans.RecordScan(ctx, tt.cmd)
			assert.True(t, apperrors.HasCode(err, tt.code), "got %v", err)
		})
	}

	scans, err := f.svc.Tasks.ListScans(ctx, task.ID)
	require.NoError(t, err)
	assert.Empty(t, scans)
}

func TestRecordScanNeedsAssignedTask(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r := f.confirmedReceipt(t, "DOC-N", false, "", line(1, "SKU-001", 10))
	res, err := f.svc.Receipts.StartReceiving(ctx, r.ID)
	require.NoError(t, err)

	_, err = f.svc.Scans.RecordScan(ctx, RecordScanCommand{
		TaskID:     res.Tasks[0].ID,
		RequestID:  "req-1",
		PalletCode: "P-1",
		Quantity:   1,
	})
	assert.True(t, apperrors.HasCode(err, apperrors.CodePreconditionFailed))
}

func TestReceivingScanDiscrepancies(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	l := line(1, "SKU-001", 10)
	l.ExpectedSSCC = "003000000000000001"
	l.ExpectedLot = "LOT-A"
	r := f.confirmedReceipt(t, "DOC-D", false, "", l)
	task := f.receiving(t, r.ID)[0]

	res, err := f.svc.Scans.RecordScan(ctx, RecordScanCommand{
		TaskID:     task.ID,
		RequestID:  "req-1",
		PalletCode: "P-1",
		Quantity:   2,
		SSCC:       "003000000000000099",
		Lot:        "LOT-A",
		ScannedBy:  "op-1",
	})
	require.NoError(t, err)
	require.Len(t, res.Discrepancies, 1)
	assert.Equal(t, domain.DiscrepancySSCCMismatch, res.Discrepancies[0].Type)
	assert.True(t, res.Scan.Discrepancy)

	res, err = f.svc.Scans.RecordScan(ctx, RecordScanCommand{
		TaskID:     task.ID,
		RequestID:  "req-2",
		PalletCode: "P-2",
		Quantity:   1,
		Lot:        "LOT-B",
		Damaged:    true,
		DamageType: "CRUSHED",
		ScannedBy:  "op-1",
	})
	require.NoError(t, err)
	require.Len(t, res.Discrepancies, 2)
	assert.Equal(t, domain.DiscrepancyLotMismatch, res.Discrepancies[0].Type)
	assert.Equal(t, domain.DiscrepancyDamage, res.Discrepancies[1].Type)
	assert.Equal(t, 1, res.Discrepancies[1].QtyActual)
	assert.Equal(t, domain.PalletStatusDamaged, res.Pallet.Status)

	list, err := f.svc.Discrepancies.ListDiscrepancies(ctx, ListDiscrepanciesQuery{ReceiptID: r.ID})
	require.NoError(t, err)
	assert.Len(t, list, 3)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.DiscrepanciesDetected.WithLabelValues("DAMAGE")))
}

func TestPlacementScanChecksTargetLocation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r := f.confirmedReceipt(t, "DOC-P", false, "", line(1, "SKU-001", 5))
	task := f.receiving(t, r.ID)[0]
	f.scan(t, task.ID, "req-1", "P-1", 5)
	require.Equal(t, domain.ReceiptStatusAccepted, f.receipt(t, r.ID).Status)

	placement, err := f.svc.Receipts.StartPlacement(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, placement.Tasks, 1)
	pt := placement.Tasks[0]
	assert.Equal(t, f.locs["A-01"].ID, pt.TargetLocationID)

	_, err = f.svc.Tasks.AssignTask(ctx, AssignTaskCommand{TaskID: pt.ID, AssigneeID: "op-1", AssignedBy: "op-1"})
	require.NoError(t, err)

	_, err = f.svc.Scans.RecordScan(ctx, RecordScanCommand{
		TaskID: pt.ID, RequestID: "place-1", PalletCode: "P-1", LocationCode: "A-02",
	})
	assert.True(t, apperrors.HasCode(err, apperrors.CodePreconditionFailed))

	_, err = f.svc.Scans.RecordScan(ctx, RecordScanCommand{
		TaskID: pt.ID, RequestID: "place-2", PalletCode: "P-404", LocationCode: "A-01",
	})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	res, err := f.svc.Scans.RecordScan(ctx, RecordScanCommand{
		TaskID: pt.ID, RequestID: "place-3", PalletCode: "P-1", LocationCode: "A-01",
	})
	require.NoError(t, err)
	assert.True(t, res.TaskCompleted)
	assert.Equal(t, 5, res.Task.QtyDone)
	assert.Equal(t, domain.PalletStatusPlaced, res.Pallet.Status)
	assert.Equal(t, f.locs["A-01"].ID, res.Pallet.LocationID)

	loc, err := f.svc.MasterData.GetLocation(ctx, f.locs["A-01"].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LocationStatusOccupied, loc.Status)

	assert.Equal(t, domain.ReceiptStatusStocked, f.receipt(t, r.ID).Status)
}

func TestShippingScanQuantityBounds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r := f.confirmedReceipt(t, "DOC-S", true, "OUT-9", line(1, "SKU-001", 10))
	task := f.receiving(t, r.ID)[0]
	f.scan(t, task.ID, "req-1", "P-1", 10)
	require.Equal(t, domain.ReceiptStatusReadyForShipment, f.receipt(t, r.ID).Status)

	shipping, err := f.svc.Receipts.StartShipping(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, shipping.Tasks, 1)
	st := shipping.Tasks[0]
	assert.Equal(t, 10, st.QtyAssigned)
	_, err = f.svc.Tasks.AssignTask(ctx, AssignTaskCommand{TaskID: st.ID, AssigneeID: "op-1", AssignedBy: "op-1"})
	require.NoError(t, err)

	for _, qty := range []int{0, -1, 11} {
		_, err := f.svc.Scans.RecordScan(ctx, RecordScanCommand{
			TaskID: st.ID, RequestID: fmt.Sprintf("bad-%d", qty), PalletCode: "P-1", Quantity: qty,
		})
		assert.True(t, apperrors.HasCode(err, apperrors.CodePreconditionFailed), "qty %d", qty)
	}

	res := f.scan(t, st.ID, "pick-1", "P-1", 4)
	assert.Equal(t, 6, res.Pallet.Quantity)
	assert.Equal(t, domain.PalletStatusPicking, res.Pallet.Status)
	assert.False(t, res.TaskCompleted)

	res = f.scan(t, st.ID, "pick-2", "P-1", 6)
	assert.True(t, res.TaskCompleted)
	assert.Equal(t, 0, res.Pallet.Quantity)
	assert.Equal(t, domain.PalletStatusShipped, res.Pallet.Status)
	assert.Empty(t, res.Pallet.LocationID)

	// Shipping completion is never automatic.
	assert.Equal(t, domain.ReceiptStatusShippingInProgress, f.receipt(t, r.ID).Status)
	shipped, err := f.svc.Receipts.CompleteShipping(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReceiptStatusShipped, shipped.Status)
}
