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

func TestReceiptDraftEditing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	r, err := f.svc.Receipts.CreateReceipt(ctx, CreateReceiptCommand{DocNo: "DOC-E", Supplier: "ACME"})
	require.NoError(t, err)
	assert.Equal(t, domain.ReceiptStatusDraft, r.Status)
	assert.Equal(t, domain.ReceiptSourceManual, r.Source)

	_, err = f.svc.Receipts.Confirm(ctx, r.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodePreconditionFailed), "a receipt without lines cannot be confirmed")

	r, err = f.svc.Receipts.UpsertLine(ctx, UpsertLineCommand{ReceiptID: r.ID, LineInput: line(1, "SKU-001", 5)})
	require.NoError(t, err)
	r, err = f.svc.Receipts.UpsertLine(ctx, UpsertLineCommand{ReceiptID: r.ID, LineInput: line(1, "SKU-001", 8)})
	require.NoError(t, err)
	r, err = f.svc.Receipts.UpsertLine(ctx, UpsertLineCommand{ReceiptID: r.ID, LineInput: line(2, "SKU-002", 1)})
	require.NoError(t, err)
	require.Len(t, r.Lines, 2)
	assert.Equal(t, 8, r.Lines[0].QtyExpected)

	r, err = f.svc.Receipts.RemoveLine(ctx, r.ID, r.Lines[1].ID)
	require.NoError(t, err)
	require.Len(t, r.Lines, 1)

	_, err = f.svc.Receipts.RemoveLine(ctx, r.ID, "missing")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	r, err = f.svc.Receipts.Confirm(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReceiptStatusConfirmed, r.Status)

	_, err = f.svc.Receipts.UpsertLine(ctx, UpsertLineCommand{ReceiptID: r.ID, LineInput: line(3, "SKU-003", 1)})
	assert.True(t, apperrors.HasCode(err, apperrors.CodePreconditionFailed))

	err = f.svc.Receipts.DeleteReceipt(ctx, r.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodePreconditionFailed))

	_, err = f.svc.Receipts.Cancel(ctx, r.ID)
	require.NoError(t, err)
	require.NoError(t, f.svc.Receipts.DeleteReceipt(ctx, r.ID))

	_, err = f.svc.Receipts.GetReceipt(ctx, r.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestCrossDockReceiptNeedsOutboundRef(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Receipts.CreateReceipt(context.Background(), CreateReceiptCommand{
		DocNo:     "DOC-X",
		Supplier:  "ACME",
		CrossDock: true,
		Lines:     []LineInput{line(1, "SKU-001", 1)},
	})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationError))
}

func TestStartReceivingFillsMissingTasksOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r := f.confirmedReceipt(t, "DOC-S", false, "", line(1, "SKU-001", 5), line(2, "SKU-002", 3))

	first, err := f.svc.Receipts.StartReceiving(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, first.TasksCreated)
	assert.Equal(t, domain.ReceiptStatusInProgress, first.Receipt.Status)

	again, err := f.svc.Receipts.StartReceiving(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, again.TasksCreated)

	_, err = f.svc.Tasks.CancelTask(ctx, first.Tasks[1].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReceiptStatusInProgress, f.receipt(t, r.ID).Status)

	refill, err := f.svc.Receipts.StartReceiving(ctx, r.ID)
	require.NoError(t, err)
	require.Equal(t, 1, refill.TasksCreated)
	assert.Equal(t, first.Tasks[1].LineID, refill.Tasks[0].LineID)
	assert.Equal(t, 3, refill.Tasks[0].QtyAssigned)

	assert.Equal(t, 1, f.transitionsTo(t, r.ID, domain.ReceiptStatusInProgress))
}

func TestParallelTaskCompletionAdvancesReceiptOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	lines := make([]LineInput, 0, 6)
	for i := 1; i <= 6; i++ {
		lines = append(lines, line(i, fmt.Sprintf("SKU-%03d", i), 2))
	}
	r := f.confirmedReceipt(t, "DOC-PAR", false, "", lines...)
	tasks := f.receiving(t, r.ID)
	require.Len(t, tasks, 6)

	var g errgroup.Group
	for i, task := range tasks {
		i, task := i, task
		g.Go(func() error {
			_, err := f.svc.Scans.RecordScan(ctx, RecordScanCommand{
				TaskID:     task.ID,
				RequestID:  "req",
				PalletCode: fmt.Sprintf("PAR-%d", i),
				Quantity:   2,
			})
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, domain.ReceiptStatusAccepted, f.receipt(t, r.ID).Status)
	assert.Equal(t, 1, f.transitionsTo(t, r.ID, domain.ReceiptStatusAccepted))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ReceiptTransitions.WithLabelValues("IN_PROGRESS", "ACCEPTED")))

	// A late check finds nothing to do.
	advanced, err := f.svc.Receipts.CheckPhaseCompletion(ctx, r.ID)
	require.NoError(t, err)
	assert.False(t, advanced)
}

func TestCancelReceiptCascadesToTasks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r := f.confirmedReceipt(t, "DOC-CX", false, "", line(1, "SKU-001", 5), line(2, "SKU-002", 5))
	tasks := f.receiving(t, r.ID)
	f.scan(t, tasks[0].ID, "req-1", "P-1", 1)

	cancelled, err := f.svc.Receipts.Cancel(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReceiptStatusCancelled, cancelled.Status)

	list, err := f.svc.Tasks.ListTasks(ctx, ListTasksQuery{ReceiptID: r.ID})
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, task := range list {
		assert.Equal(t, domain.TaskStatusCancelled, task.Status)
	}

	again, err := f.svc.Receipts.Cancel(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReceiptStatusCancelled, again.Status)
	assert.Equal(t, 1, f.transitionsTo(t, r.ID, domain.ReceiptStatusCancelled))

	_, err = f.svc.Scans.RecordScan(ctx, RecordScanCommand{TaskID: tasks[1].ID, RequestID: "late", PalletCode: "P-2", Quantity: 1})
	assert.True(t, apperrors.HasCode(err, apperrors.CodePreconditionFailed))
}

func TestPendingResolutionRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r := f.confirmedReceipt(t, "DOC-OV", false, "", line(1, "SKU-001", 10))
	task := f.receiving(t, r.ID)[0]

	res := f.scan(t, task.ID, "req-1", "P-1", 12)
	assert.True(t, res.TaskCompleted)
	require.Len(t, res.Discrepancies, 1)
	over := res.Discrepancies[0]
	assert.Equal(t, domain.DiscrepancyOver, over.Type)
	assert.Equal(t, 10, over.QtyExpected)
	assert.Equal(t, 12, over.QtyActual)
	assert.Equal(t, domain.ReceiptStatusPendingResolution, f.receipt(t, r.ID).Status)

	_, err := f.svc.Receipts.ResolveAndContinue(ctx, r.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodePreconditionFailed))

	resolved, err := f.svc.Discrepancies.Resolve(ctx, ResolveDiscrepancyCommand{DiscrepancyID: over.ID, Note: "accepted", ResolvedBy: "sup-1"})
	require.NoError(t, err)
	assert.True(t, resolved.Resolved)
	_, err = f.svc.Discrepancies.Resolve(ctx, ResolveDiscrepancyCommand{DiscrepancyID: over.ID, ResolvedBy: "sup-1"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodePreconditionFailed))

	// Every receiving task is already completed, so the receipt moves on without a manual step.
	back, err := f.svc.Receipts.ResolveAndContinue(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReceiptStatusAccepted, back.Status)
	assert.Equal(t, domain.ReceiptStatusAccepted, f.receipt(t, r.ID).Status)
	assert.Equal(t, 2, f.transitionsTo(t, r.ID, domain.ReceiptStatusInProgress))
	assert.Equal(t, 1, f.transitionsTo(t, r.ID, domain.ReceiptStatusAccepted))

	_, err = f.svc.Receipts.CompleteReceiving(ctx, r.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodePreconditionFailed))
}

func TestCompleteReceivingNeedsFinishedTasks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r := f.confirmedReceipt(t, "DOC-CR", false, "", line(1, "SKU-001", 10))
	f.receiving(t, r.ID)

	_, err := f.svc.Receipts.CompleteReceiving(ctx, r.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodePreconditionFailed))
	assert.Equal(t, domain.ReceiptStatusInProgress, f.receipt(t, r.ID).Status)
}

func TestStartPlacementReportsUnplaceablePallets(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	r := f.confirmedReceipt(t, "DOC-PL", false, "", line(1, "SKU-001", 3))
	task := f.receiving(t, r.ID)[0]
	f.scan(t, task.ID, "req-1", "PL-1", 1)
	f.scan(t, task.ID, "req-2", "PL-2", 1)
	f.scan(t, task.ID, "req-3", "PL-3", 1)
	require.Equal(t, domain.ReceiptStatusAccepted, f.receipt(t, r.ID).Status)

	res, err := f.svc.Receipts.StartPlacement(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReceiptStatusPlacing, res.Receipt.Status)
	assert.Equal(t, 2, res.TasksCreated)
	require.Len(t, res.Failures, 1)

	targets := map[string]bool{}
	for _, pt := range res.Tasks {
		targets[pt.TargetLocationID] = true
	}
	assert.True(t, targets[f.locs["A-01"].ID])
	assert.True(t, targets[f.locs["A-02"].ID])

	// Re-entering PLACING plans nothing new while the slots are taken, and is not an error.
	again, err := f.svc.Receipts.StartPlacement(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, again.TasksCreated)
	assert.Len(t, again.Failures, 1)

	_, err = f.svc.Receipts.CompletePlacement(ctx, r.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodePreconditionFailed))

	// A second receipt finds every slot reserved by the open placement tasks.
	other := f.confirmedReceipt(t, "DOC-PL2", false, "", line(1, "SKU-009", 1))
	otherTask := f.receiving(t, other.ID)[0]
	f.scan(t, otherTask.ID, "req-1", "PL-9", 1)

	_, err = f.svc.Receipts.StartPlacement(ctx, other.ID)
	require.Error(t, err)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodePutawayExhausted, appErr.Code)
	assert.Equal(t, 422, appErr.HTTPStatus)
	assert.Contains(t, appErr.Details, "PL-9")
	assert.Equal(t, domain.ReceiptStatusAccepted, f.receipt(t, other.ID).Status)
	assert.Equal(t, 3.0, testutil.ToFloat64(f.metrics.PutawayFailures.WithLabelValues("no_location")))
}

// interleavedPlanning runs a competing call once, right after the armed caller has read a
// receipt's tasks and before it writes anything
type interleavedPlanning struct {
	domain.TaskRepository
	armed      atomic.Bool
	competitor func()
}

func (r *interleavedPlanning) FindByReceiptID(ctx context.Context, receiptID string) ([]*domain.Task, error) {
	tasks, err := r.TaskRepository.FindByReceiptID(ctx, receiptID)
	if err == nil && r.armed.CompareAndSwap(true, false) {
		r.competitor()
	}
	return tasks, err
}

func TestConcurrentStartPlacementPlansPalletOnce(t *testing.T) {
	ctx := context.Background()
	interleaved := &interleavedPlanning{}
	f := newFixture(t, func(s *Stores) {
		interleaved.TaskRepository = s.Tasks
		s.Tasks = interleaved
	})

	r := f.confirmedReceipt(t, "DOC-CP", false, "", line(1, "SKU-001", 10))
	task := f.receiving(t, r.ID)[0]
	f.scan(t, task.ID, "req-1", "PL-C", 10)
	first, err := f.svc.Receipts.StartPlacement(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, first.Tasks, 1)
	_, err = f.svc.Tasks.CancelTask(ctx, first.Tasks[0].ID)
	require.NoError(t, err)
	require.Equal(t, domain.ReceiptStatusPlacing, f.receipt(t, r.ID).Status)

	var competing *PlacementResult
	interleaved.competitor = func() {
		res, err := f.svc.Receipts.StartPlacement(ctx, r.ID)
		require.NoError(t, err)
		competing = res
	}
	interleaved.armed.Store(true)

	res, err := f.svc.Receipts.StartPlacement(ctx, r.ID)
	require.NoError(t, err)
	require.NotNil(t, competing)
	assert.Equal(t, 1, competing.TasksCreated)
	assert.Equal(t, 0, res.TasksCreated, "the stale attempt re-plans from fresh reads")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.OptimisticRetries.WithLabelValues("start_placement")))

	tasks, err := f.stores.Tasks.FindByReceiptID(ctx, r.ID)
	require.NoError(t, err)
	active := 0
	for _, pt := range tasks {
		if pt.Type == domain.TaskTypePlacement && pt.Status.IsActive() {
			active++
		}
	}
	assert.Equal(t, 1, active)
}

func TestStartPlacementRequiresAcceptedReceipt(t *testing.T) {
	f := newFixture(t)
	r := f.confirmedReceipt(t, "DOC-NA", false, "", line(1, "SKU-001", 1))

	_, err := f.svc.Receipts.StartPlacement(context.Background(), r.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodePreconditionFailed))
}

func TestCompleteShippingWithoutTasks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r := f.confirmedReceipt(t, "DOC-DMG", true, "OUT-D", line(1, "SKU-001", 2))
	task := f.receiving(t, r.ID)[0]

	res, err := f.svc.Scans.RecordScan(ctx, RecordScanCommand{
		TaskID: task.ID, RequestID: "req-1", PalletCode: "DMG-1", Quantity: 2, Damaged: true,
	})
	require.NoError(t, err)
	require.Len(t, res.Discrepancies, 1)
	require.Equal(t, domain.ReceiptStatusPendingResolution, f.receipt(t, r.ID).Status)

	_, err = f.svc.Discrepancies.Resolve(ctx, ResolveDiscrepancyCommand{DiscrepancyID: res.Discrepancies[0].ID, ResolvedBy: "sup-1"})
	require.NoError(t, err)
	_, err = f.svc.Receipts.ResolveAndContinue(ctx, r.ID)
	require.NoError(t, err)
	ready, err := f.svc.Receipts.CompleteReceiving(ctx, r.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ReceiptStatusReadyForShipment, ready.Status)

	// The only pallet is damaged, so nothing is staged and shipping can close right away.
	shipping, err := f.svc.Receipts.StartShipping(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, shipping.TasksCreated)

	shipped, err := f.svc.Receipts.CompleteShipping(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReceiptStatusShipped, shipped.Status)
}
