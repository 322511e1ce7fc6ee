package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wms-platform/inbound-service/internal/domain"
	"github.com/wms-platform/inbound-service/internal/infrastructure/events"
	"github.com/wms-platform/inbound-service/internal/infrastructure/memory"
	"github.com/wms-platform/inbound-service/pkg/cloudevents"
	"github.com/wms-platform/inbound-service/pkg/logging"
	"github.com/wms-platform/inbound-service/pkg/metrics"
)

var docDate = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

type fixture struct {
	store   *memory.Store
	stores  Stores
	svc     *Services
	metrics *metrics.Metrics
	locs    map[string]*domain.Location
}

// newFixture builds the services over a memory store seeded with a dock, two single-pallet
// storage slots in zone A, a shipping lane and one closest-available rule. Retries are generous
// and fast so concurrency tests do not exhaust them.
// wrap, when given, may replace repositories before the services are wired.
func newFixture(t *testing.T, wrap ...func(*Stores)) *fixture {
	t.Helper()
	opts := DefaultOptions()
	opts.Retry.MaxAttempts = 12
	opts.Retry.InitialDelay = time.Millisecond
	opts.Retry.MaxDelay = 5 * time.Millisecond
	return newFixtureWithOptions(t, opts, wrap...)
}

func newFixtureWithOptions(t *testing.T, opts Options, wrap ...func(*Stores)) *fixture {
	t.Helper()
	ctx := context.Background()

	store := memory.NewStore(events.NewMapper(cloudevents.NewEventFactory(cloudevents.SourceInbound)))
	stores := StoresFrom(store)
	for _, w := range wrap {
		w(&stores)
	}

	f := &fixture{
		store:   store,
		stores:  stores,
		metrics: metrics.New(metrics.DefaultConfig("inbound-test")),
		locs:    make(map[string]*domain.Location),
	}

	for _, l := range []struct {
		code string
		zone string
		typ  domain.LocationType
		max  int
		seq  int
	}{
		{"DOCK-01", "D", domain.LocationTypeReceiving, 100, 0},
		{"A-01", "A", domain.LocationTypeStorage, 1, 1},
		{"A-02", "A", domain.LocationTypeStorage, 1, 2},
		{"SHIP-01", "S", domain.LocationTypeShipping, 50, 90},
	} {
		loc, err := domain.NewLocation(l.code, l.zone, l.typ, l.max, l.seq)
		require.NoError(t, err)
		require.NoError(t, store.Locations().Save(ctx, loc))
		f.locs[l.code] = loc
	}

	rule, err := domain.NewPutawayRule("closest storage", 10, "", "", "", domain.StrategyClosestAvailable, domain.LocationTypeStorage)
	require.NoError(t, err)
	require.NoError(t, store.PutawayRules().Save(ctx, rule))

	svc, err := NewServices(stores, opts, logging.NewNop(), f.metrics)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func line(no int, sku string, qty int) LineInput {
	return LineInput{LineNo: no, SKU: sku, UOM: "EA", QtyExpected: qty}
}

// confirmedReceipt creates and confirms a receipt with the given lines
func (f *fixture) confirmedReceipt(t *testing.T, docNo string, crossDock bool, outboundRef string, lines ...LineInput) *domain.Receipt {
	t.Helper()
	ctx := context.Background()
	r, err := f.svc.Receipts.CreateReceipt(ctx, CreateReceiptCommand{
		DocNo:       docNo,
		DocDate:     docDate,
		Supplier:    "ACME",
		CrossDock:   crossDock,
		OutboundRef: outboundRef,
		Lines:       lines,
	})
	require.NoError(t, err)
	r, err = f.svc.Receipts.Confirm(ctx, r.ID)
	require.NoError(t, err)
	return r
}

// receiving starts receiving and returns the created tasks, assigned to op-1
func (f *fixture) receiving(t *testing.T, receiptID string) []*domain.Task {
	t.Helper()
	ctx := context.Background()
	res, err := f.svc.Receipts.StartReceiving(ctx, receiptID)
	require.NoError(t, err)

	tasks := make([]*domain.Task, 0, len(res.Tasks))
	for _, task := range res.Tasks {
		assigned, err := f.svc.Tasks.AssignTask(ctx, AssignTaskCommand{TaskID: task.ID, AssigneeID: "op-1", AssignedBy: "op-1"})
		require.NoError(t, err)
		tasks = append(tasks, assigned)
	}
	return tasks
}

func (f *fixture) scan(t *testing.T, taskID, requestID, palletCode string, qty int) *ScanResult {
	t.Helper()
	res, err := f.svc.Scans.RecordScan(context.Background(), RecordScanCommand{
		TaskID:     taskID,
		RequestID:  requestID,
		PalletCode: palletCode,
		Quantity:   qty,
		ScannedBy:  "op-1",
	})
	require.NoError(t, err)
	return res
}

func (f *fixture) receipt(t *testing.T, id string) *domain.Receipt {
	t.Helper()
	r, err := f.svc.Receipts.GetReceipt(context.Background(), id)
	require.NoError(t, err)
	return r
}

// transitionsTo counts outbox receipt status events of a receipt that end in status
func (f *fixture) transitionsTo(t *testing.T, receiptID string, status domain.ReceiptStatus) int {
	t.Helper()
	evts, err := f.store.Outbox().FindUnpublished(context.Background(), 10000)
	require.NoError(t, err)

	n := 0
	for _, e := range evts {
		if e.EventType != cloudevents.ReceiptStatusChanged || e.AggregateID != receiptID {
			continue
		}
		ce, err := e.ToCloudEvent()
		require.NoError(t, err)
		data, ok := ce.Data.(map[string]interface{})
		require.True(t, ok)
		if data["to"] == string(status) {
			n++
		}
	}
	return n
}
