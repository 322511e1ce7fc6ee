package application

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/inbound-service/internal/domain"
	apperrors "github.com/wms-platform/inbound-service/pkg/errors"
)

func TestReceiptFromDockToStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	r := f.confirmedReceipt(t, "DOC-1", false, "", line(1, "SKU-001", 10), line(2, "SKU-002", 4))
	tasks := f.receiving(t, r.ID)
	require.Len(t, tasks, 2)
	assert.Equal(t, domain.ReceiptStatusInProgress, f.receipt(t, r.ID).Status)

	f.scan(t, tasks[0].ID, "s-1", "PAL-001", 6)
	f.scan(t, tasks[0].ID, "s-2", "PAL-001", 4)
	assert.Equal(t, domain.ReceiptStatusInProgress, f.receipt(t, r.ID).Status)
	f.scan(t, tasks[1].ID, "s-3", "PAL-002", 4)
	assert.Equal(t, domain.ReceiptStatusAccepted, f.receipt(t, r.ID).Status)

	pal1, err := f.stores.Pallets.FindByCode(ctx, "PAL-001")
	require.NoError(t, err)
	assert.Equal(t, 10, pal1.Quantity)
	assert.Equal(t, "SKU-001", pal1.SKU)

	placement, err := f.svc.Receipts.StartPlacement(ctx, r.ID)
	require.NoError(t, err)
	require.Equal(t, 2, placement.TasksCreated)
	assert.Empty(t, placement.Failures)

	locByID := map[string]string{f.locs["A-01"].ID: "A-01", f.locs["A-02"].ID: "A-02"}
	palletByID := map[string]string{pal1.ID: "PAL-001"}
	pal2, err := f.stores.Pallets.FindByCode(ctx, "PAL-002")
	require.NoError(t, err)
	palletByID[pal2.ID] = "PAL-002"

	for i, pt := range placement.Tasks {
		assert.Equal(t, f.locs["DOCK-01"].ID, pt.SourceLocationID)
		_, err := f.svc.Tasks.AssignTask(ctx, AssignTaskCommand{TaskID: pt.ID, AssigneeID: "op-2", AssignedBy: "sup-1"})
		require.NoError(t, err)

		res, err := f.svc.Scans.RecordScan(ctx, RecordScanCommand{
			TaskID:       pt.ID,
			RequestID:    "place",
			PalletCode:   palletByID[pt.PalletID],
			LocationCode: locByID[pt.TargetLocationID],
			ScannedBy:    "op-2",
		})
		require.NoError(t, err)
		assert.True(t, res.TaskCompleted)

		want := domain.ReceiptStatusPlacing
		if i == len(placement.Tasks)-1 {
			want = domain.ReceiptStatusStocked
		}
		assert.Equal(t, want, f.receipt(t, r.ID).Status)
	}

	for _, code := range []string{"A-01", "A-02"} {
		loc, err := f.svc.MasterData.GetLocation(ctx, f.locs[code].ID)
		require.NoError(t, err)
		assert.Equal(t, domain.LocationStatusOccupied, loc.Status, code)
	}

	movements, err := f.stores.Movements.FindByPalletID(ctx, pal1.ID)
	require.NoError(t, err)
	require.Len(t, movements, 3)
	assert.Equal(t, domain.MovementPlace, movements[2].Type)

	for _, status := range []domain.ReceiptStatus{
		domain.ReceiptStatusConfirmed,
		domain.ReceiptStatusInProgress,
		domain.ReceiptStatusAccepted,
		domain.ReceiptStatusPlacing,
		domain.ReceiptStatusStocked,
	} {
		assert.Equal(t, 1, f.transitionsTo(t, r.ID, status), status)
	}

	_, err = f.svc.Receipts.Cancel(ctx, r.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodePreconditionFailed), "a stocked receipt is final")
}

func TestOverReceiptScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r := f.confirmedReceipt(t, "DOC-OVER", false, "", line(1, "SKU-001", 10))
	task := f.receiving(t, r.ID)[0]

	first := f.scan(t, task.ID, "s-1", "PAL-OV", 6)
	assert.False(t, first.Scan.Discrepancy)
	assert.Empty(t, first.Discrepancies)
	assert.False(t, first.TaskCompleted)
	assert.Equal(t, 6, first.Task.QtyDone)
	assert.Equal(t, domain.ReceiptStatusInProgress, f.receipt(t, r.ID).Status)

	second := f.scan(t, task.ID, "s-2", "PAL-OV", 6)
	assert.True(t, second.Scan.Discrepancy)
	assert.True(t, second.TaskCompleted)
	assert.Equal(t, 12, second.Task.QtyDone)
	require.Len(t, second.Discrepancies, 1)
	over := second.Discrepancies[0]
	assert.Equal(t, domain.DiscrepancyOver, over.Type)
	assert.Equal(t, 10, over.QtyExpected)
	assert.Equal(t, 12, over.QtyActual)
	assert.Equal(t, task.ID, over.TaskID)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.DiscrepanciesDetected.WithLabelValues(string(domain.DiscrepancyOver))))

	pallet, err := f.stores.Pallets.FindByCode(ctx, "PAL-OV")
	require.NoError(t, err)
	assert.Equal(t, 12, pallet.Quantity)
	assert.Equal(t, domain.ReceiptStatusPendingResolution, f.receipt(t, r.ID).Status)

	_, err = f.svc.Discrepancies.Resolve(ctx, ResolveDiscrepancyCommand{DiscrepancyID: over.ID, Note: "supplier credit", ResolvedBy: "sup-1"})
	require.NoError(t, err)
	back, err := f.svc.Receipts.ResolveAndContinue(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReceiptStatusAccepted, back.Status)
}

func TestOutboundWave(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	a := f.confirmedReceipt(t, "XD-A", true, "OUT-1", line(1, "SKU-001", 5))
	b := f.confirmedReceipt(t, "XD-B", true, "OUT-1", line(1, "SKU-002", 3))
	c := f.confirmedReceipt(t, "XD-C", true, "OUT-1", line(1, "SKU-003", 2))
	f.confirmedReceipt(t, "XD-Z", true, "OUT-2", line(1, "SKU-004", 1))

	for _, rc := range []struct {
		id, pallet string
		qty        int
	}{{a.ID, "XA-1", 5}, {b.ID, "XB-1", 3}} {
		task := f.receiving(t, rc.id)[0]
		f.scan(t, task.ID, "recv", rc.pallet, rc.qty)
		require.Equal(t, domain.ReceiptStatusReadyForShipment, f.receipt(t, rc.id).Status)
	}

	waves, err := f.svc.Waves.ListWaves(ctx)
	require.NoError(t, err)
	require.Len(t, waves, 2)
	assert.Equal(t, "OUT-1", waves[0].OutboundRef)
	assert.Equal(t, WaveStatusMixed, waves[0].Status)
	assert.Equal(t, 2, waves[0].StatusCounts[domain.ReceiptStatusReadyForShipment])
	assert.Equal(t, 1, waves[0].StatusCounts[domain.ReceiptStatusConfirmed])

	started, err := f.svc.Waves.StartWave(ctx, "OUT-1")
	require.NoError(t, err)
	assert.Equal(t, 3, started.TargetedReceipts)
	assert.Equal(t, 2, started.AffectedReceipts)
	assert.Equal(t, 2, started.TasksCreated)
	assert.Equal(t, []string{c.ID}, started.BlockedReceiptIDs)
	assert.Contains(t, started.BlockedReasons[c.ID], "CONFIRMED")

	// Finish the picks of receipt A only.
	shipA, err := f.svc.Tasks.ListTasks(ctx, ListTasksQuery{ReceiptID: a.ID, Type: "SHIPPING"})
	require.NoError(t, err)
	require.Len(t, shipA, 1)
	_, err = f.svc.Tasks.AssignTask(ctx, AssignTaskCommand{TaskID: shipA[0].ID, AssigneeID: "op-1", AssignedBy: "op-1"})
	require.NoError(t, err)
	f.scan(t, shipA[0].ID, "pick", "XA-1", 5)

	completed, err := f.svc.Waves.CompleteWave(ctx, "OUT-1")
	require.NoError(t, err)
	assert.Equal(t, 1, completed.AffectedReceipts)
	assert.ElementsMatch(t, []string{b.ID, c.ID}, completed.BlockedReceiptIDs)
	assert.Contains(t, completed.BlockedReasons[b.ID], "shipping tasks")

	assert.Equal(t, domain.ReceiptStatusShipped, f.receipt(t, a.ID).Status)
	assert.Equal(t, domain.ReceiptStatusShippingInProgress, f.receipt(t, b.ID).Status)
	assert.Equal(t, domain.ReceiptStatusConfirmed, f.receipt(t, c.ID).Status)

	other, err := f.svc.Waves.GetWave(ctx, "OUT-2")
	require.NoError(t, err)
	assert.Equal(t, string(domain.ReceiptStatusConfirmed), other.Status)

	_, err = f.svc.Waves.GetWave(ctx, "OUT-404")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
	_, err = f.svc.Waves.StartWave(ctx, "OUT-404")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.WaveActions.WithLabelValues("start", "affected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.WaveActions.WithLabelValues("complete", "failed")))
}
