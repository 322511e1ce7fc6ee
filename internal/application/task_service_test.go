package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/inbound-service/internal/domain"
	apperrors "github.com/wms-platform/inbound-service/pkg/errors"
)

func TestReleaseResetsProgressAndRemovesScans(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r := f.confirmedReceipt(t, "DOC-R", false, "", line(1, "SKU-001", 10))
	task := f.receiving(t, r.ID)[0]

	f.scan(t, task.ID, "req-1", "P-1", 3)
	f.scan(t, task.ID, "req-2", "P-1", 2)

	current, err := f.svc.Tasks.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusInProgress, current.Status)
	assert.Equal(t, 5, current.QtyDone)

	res, err := f.svc.Tasks.ReleaseTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.ScansDeleted)
	assert.Equal(t, domain.TaskStatusNew, res.Task.Status)
	assert.Equal(t, 0, res.Task.QtyDone)
	assert.Empty(t, res.Task.AssigneeID)

	scans, err := f.svc.Tasks.ListScans(ctx, task.ID)
	require.NoError(t, err)
	assert.Empty(t, scans)

	// The request ids are free again once the scans are gone.
	_, err = f.svc.Tasks.AssignTask(ctx, AssignTaskCommand{TaskID: task.ID, AssigneeID: "op-2", AssignedBy: "sup-1"})
	require.NoError(t, err)
	again := f.scan(t, task.ID, "req-1", "P-1", 4)
	assert.False(t, again.Duplicate)
	assert.Equal(t, 4, again.Task.QtyDone)
}

func TestTaskTransitions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r := f.confirmedReceipt(t, "DOC-T", false, "", line(1, "SKU-001", 5))
	_, err := f.svc.Receipts.StartReceiving(ctx, r.ID)
	require.NoError(t, err)

	task, err := f.svc.Tasks.CreateTask(ctx, CreateTaskCommand{ReceiptID: r.ID, Type: "SHIPPING", QtyAssigned: 1})
	require.NoError(t, err)

	t.Run("start needs an assignee", func(t *testing.T) {
		_, err := f.svc.Tasks.StartTask(ctx, task.ID)
		assert.True(t, apperrors.HasCode(err, apperrors.CodePreconditionFailed))
	})

	t.Run("assign, reassign and start", func(t *testing.T) {
		_, err := f.svc.Tasks.AssignTask(ctx, AssignTaskCommand{TaskID: task.ID, AssigneeID: "op-1", AssignedBy: "sup-1"})
		require.NoError(t, err)
		reassigned, err := f.svc.Tasks.AssignTask(ctx, AssignTaskCommand{TaskID: task.ID, AssigneeID: "op-2", AssignedBy: "sup-1"})
		require.NoError(t, err)
		assert.Equal(t, "op-2", reassigned.AssigneeID)

		started, err := f.svc.Tasks.StartTask(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusInProgress, started.Status)
		assert.NotNil(t, started.StartedAt)
	})

	t.Run("no reassignment once in progress", func(t *testing.T) {
		_, err := f.svc.Tasks.AssignTask(ctx, AssignTaskCommand{TaskID: task.ID, AssigneeID: "op-3", AssignedBy: "sup-1"})
		assert.True(t, apperrors.HasCode(err, apperrors.CodePreconditionFailed))
	})

	t.Run("priority changes until terminal", func(t *testing.T) {
		updated, err := f.svc.Tasks.SetPriority(ctx, SetPriorityCommand{TaskID: task.ID, Priority: 7})
		require.NoError(t, err)
		assert.Equal(t, 7, updated.Priority)

		_, err = f.svc.Tasks.CancelTask(ctx, task.ID)
		require.NoError(t, err)

		_, err = f.svc.Tasks.SetPriority(ctx, SetPriorityCommand{TaskID: task.ID, Priority: 1})
		assert.True(t, apperrors.HasCode(err, apperrors.CodePreconditionFailed))
		_, err = f.svc.Tasks.CancelTask(ctx, task.ID)
		assert.True(t, apperrors.HasCode(err, apperrors.CodePreconditionFailed))
	})

	t.Run("unknown task", func(t *testing.T) {
		_, err := f.svc.Tasks.GetTask(ctx, "missing")
		assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
	})
}

func TestSelfAssignmentNeedsNewTask(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r := f.confirmedReceipt(t, "DOC-SA", false, "", line(1, "SKU-001", 5))
	res, err := f.svc.Receipts.StartReceiving(ctx, r.ID)
	require.NoError(t, err)
	task := res.Tasks[0]

	taken, err := f.svc.Tasks.AssignTask(ctx, AssignTaskCommand{TaskID: task.ID, AssigneeID: "op-1", AssignedBy: "op-1", RequireNew: true})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusAssigned, taken.Status)

	// A second operator who saw the task as NEW earlier cannot take it over.
	_, err = f.svc.Tasks.AssignTask(ctx, AssignTaskCommand{TaskID: task.ID, AssigneeID: "op-2", AssignedBy: "op-2", RequireNew: true})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	current, err := f.svc.Tasks.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "op-1", current.AssigneeID)

	reassigned, err := f.svc.Tasks.AssignTask(ctx, AssignTaskCommand{TaskID: task.ID, AssigneeID: "op-2", AssignedBy: "sup-1"})
	require.NoError(t, err)
	assert.Equal(t, "op-2", reassigned.AssigneeID)
}

func TestCreateTaskChecksReferences(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r := f.confirmedReceipt(t, "DOC-C", false, "", line(1, "SKU-001", 5))

	_, err := f.svc.Tasks.CreateTask(ctx, CreateTaskCommand{ReceiptID: "missing", Type: "RECEIVING"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	_, err = f.svc.Tasks.CreateTask(ctx, CreateTaskCommand{ReceiptID: r.ID, Type: "RECEIVING", LineID: "nope"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	_, err = f.svc.Tasks.CreateTask(ctx, CreateTaskCommand{ReceiptID: r.ID, Type: "PLACEMENT", PalletID: "nope"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	_, err = f.svc.Receipts.Cancel(ctx, r.ID)
	require.NoError(t, err)
	_, err = f.svc.Tasks.CreateTask(ctx, CreateTaskCommand{ReceiptID: r.ID, Type: "RECEIVING"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodePreconditionFailed))
}

func TestCompletingShortRecordsUnder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r := f.confirmedReceipt(t, "DOC-U", false, "", line(1, "SKU-001", 10))
	task := f.receiving(t, r.ID)[0]

	f.scan(t, task.ID, "req-1", "P-1", 6)

	completed, err := f.svc.Tasks.CompleteTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, completed.Status)

	unresolved := false
	list, err := f.svc.Discrepancies.ListDiscrepancies(ctx, ListDiscrepanciesQuery{ReceiptID: r.ID, Resolved: &unresolved})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, domain.DiscrepancyUnder, list[0].Type)
	assert.Equal(t, 10, list[0].QtyExpected)
	assert.Equal(t, 6, list[0].QtyActual)

	// The phase check ran after the completion and found the discrepancy.
	assert.Equal(t, domain.ReceiptStatusPendingResolution, f.receipt(t, r.ID).Status)
}

func TestListTasksFilters(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r := f.confirmedReceipt(t, "DOC-L", false, "", line(1, "SKU-001", 5), line(2, "SKU-002", 5))
	tasks := f.receiving(t, r.ID)
	require.Len(t, tasks, 2)

	list, err := f.svc.Tasks.ListTasks(ctx, ListTasksQuery{ReceiptID: r.ID, Type: "RECEIVING", AssigneeID: "op-1"})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = f.svc.Tasks.ListTasks(ctx, ListTasksQuery{Status: "COMPLETED"})
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = f.svc.Tasks.ListTasks(ctx, ListTasksQuery{Status: "DONE"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationError))
}
