package mongodb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/inbound-service/internal/domain"
	"github.com/wms-platform/inbound-service/internal/infrastructure/events"
	"github.com/wms-platform/inbound-service/pkg/cloudevents"
	pkgmongo "github.com/wms-platform/inbound-service/pkg/mongodb"
	testinfra "github.com/wms-platform/inbound-service/pkg/testing"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping MongoDB integration test in short mode")
	}

	ctx := context.Background()
	container, err := testinfra.NewMongoDBContainer(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close(context.Background()) })

	config := pkgmongo.DefaultConfig()
	config.URI = container.URI
	config.Database = "inbound_test"
	client, err := pkgmongo.NewClient(ctx, config, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close(context.Background()) })

	store, err := NewStore(ctx, client, events.NewMapper(cloudevents.NewEventFactory(cloudevents.SourceInbound)))
	require.NoError(t, err)
	return store
}

func TestMongoStore(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	t.Run("receipt save is compare-and-set and writes the outbox", func(t *testing.T) {
		r, err := domain.NewReceipt("DOC-M1", time.Now().UTC(), "ACME", false, "", domain.ReceiptSourceImport, "msg-m1",
			[]domain.ReceiptLine{{LineNo: 1, SKU: "SKU-001", UOM: "EA", QtyExpected: 10}})
		require.NoError(t, err)
		require.NoError(t, store.Receipts().Save(ctx, r))
		assert.Equal(t, int64(1), r.Version)

		stale, err := store.Receipts().FindByID(ctx, r.ID)
		require.NoError(t, err)
		require.NotNil(t, stale)
		assert.Len(t, stale.Lines, 1)

		require.NoError(t, r.Confirm())
		require.NoError(t, store.Receipts().Save(ctx, r))

		stale.Supplier = "OTHER"
		assert.ErrorIs(t, store.Receipts().Save(ctx, stale), domain.ErrVersionConflict)

		byMessage, err := store.Receipts().FindByMessageID(ctx, "msg-m1")
		require.NoError(t, err)
		require.NotNil(t, byMessage)
		assert.Equal(t, domain.ReceiptStatusConfirmed, byMessage.Status)

		dup, err := domain.NewReceipt("DOC-M2", time.Now().UTC(), "ACME", false, "", domain.ReceiptSourceImport, "msg-m1",
			[]domain.ReceiptLine{{LineNo: 1, SKU: "SKU-001", UOM: "EA", QtyExpected: 1}})
		require.NoError(t, err)
		assert.ErrorIs(t, store.Receipts().Save(ctx, dup), domain.ErrDuplicateKey)

		evts, err := store.outbox.FindByAggregateID(ctx, r.ID)
		require.NoError(t, err)
		assert.Len(t, evts, 2)
	})

	t.Run("a failed unit of work leaves nothing behind", func(t *testing.T) {
		task, err := domain.NewTask(domain.TaskSpec{ReceiptID: "r-tx", Type: domain.TaskTypeReceiving, QtyAssigned: 5})
		require.NoError(t, err)
		boom := errors.New("boom")

		err = store.WithinTransaction(ctx, func(ctx context.Context) error {
			if err := store.Tasks().Save(ctx, task); err != nil {
				return err
			}
			if err := store.Scans().Append(ctx, domain.NewScan(domain.Scan{TaskID: task.ID, RequestID: "req-1", Quantity: 1})); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		found, err := store.Tasks().FindByID(ctx, task.ID)
		require.NoError(t, err)
		assert.Nil(t, found)

		scans, err := store.Scans().FindByTaskID(ctx, task.ID)
		require.NoError(t, err)
		assert.Empty(t, scans)
	})

	t.Run("scan key is unique per task", func(t *testing.T) {
		require.NoError(t, store.Scans().Append(ctx, domain.NewScan(domain.Scan{TaskID: "t-dup", RequestID: "req-1", Quantity: 1})))
		err := store.Scans().Append(ctx, domain.NewScan(domain.Scan{TaskID: "t-dup", RequestID: "req-1", Quantity: 1}))
		assert.ErrorIs(t, err, domain.ErrDuplicateScan)

		deleted, err := store.Scans().DeleteByTaskID(ctx, "t-dup")
		require.NoError(t, err)
		assert.Equal(t, 1, deleted)
	})

	t.Run("occupancy queries", func(t *testing.T) {
		loc, err := domain.NewLocation("M-A-01", "A", domain.LocationTypeStorage, 2, 1)
		require.NoError(t, err)
		require.NoError(t, store.Locations().Save(ctx, loc))

		line := &domain.ReceiptLine{ID: "l-1", SKU: "SKU-M", UOM: "EA"}
		pallet := domain.NewReceivingPallet("P-M-1", "r-m", line)
		require.NoError(t, pallet.Receive("r-m", line, 4, loc.ID, "", nil, false))
		require.NoError(t, store.Pallets().Save(ctx, pallet))

		task, err := domain.NewTask(domain.TaskSpec{ReceiptID: "r-m", Type: domain.TaskTypePlacement, TargetLocationID: loc.ID, QtyAssigned: 4})
		require.NoError(t, err)
		require.NoError(t, store.Tasks().Save(ctx, task))

		n, err := store.Pallets().CountAtLocation(ctx, loc.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		n, err = store.Tasks().CountActivePlacementsTo(ctx, loc.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		ids, err := store.Pallets().LocationsHoldingSKU(ctx, "SKU-M")
		require.NoError(t, err)
		assert.Equal(t, []string{loc.ID}, ids)

		available, err := store.Locations().FindAll(ctx, domain.LocationFilter{
			Zones:    []string{"A"},
			Type:     domain.LocationTypeStorage,
			Statuses: []domain.LocationStatus{domain.LocationStatusAvailable},
		})
		require.NoError(t, err)
		require.Len(t, available, 1)
		assert.Equal(t, "M-A-01", available[0].Code)
	})
}
