package application

import (
	"github.com/wms-platform/inbound-service/internal/domain"
	"github.com/wms-platform/inbound-service/internal/importer"
	"github.com/wms-platform/inbound-service/pkg/logging"
	"github.com/wms-platform/inbound-service/pkg/metrics"
)

// Stores bundles the repositories and the unit of work shared by the services
type Stores struct {
	Receipts      domain.ReceiptRepository
	Tasks         domain.TaskRepository
	Pallets       domain.PalletRepository
	Movements     domain.MovementRepository
	Scans         domain.ScanRepository
	Discrepancies domain.DiscrepancyRepository
	Locations     domain.LocationRepository
	Rules         domain.PutawayRuleRepository
	SkuConfigs    domain.SkuStorageConfigRepository
	UnitOfWork    domain.UnitOfWork
}

// Backend is a store exposing every repository and the unit of work
type Backend interface {
	domain.UnitOfWork
	Receipts() domain.ReceiptRepository
	Tasks() domain.TaskRepository
	Pallets() domain.PalletRepository
	Movements() domain.MovementRepository
	Scans() domain.ScanRepository
	Discrepancies() domain.DiscrepancyRepository
	Locations() domain.LocationRepository
	PutawayRules() domain.PutawayRuleRepository
	SkuConfigs() domain.SkuStorageConfigRepository
}

// StoresFrom collects the repositories of a backend
func StoresFrom(b Backend) Stores {
	return Stores{
		Receipts:      b.Receipts(),
		Tasks:         b.Tasks(),
		Pallets:       b.Pallets(),
		Movements:     b.Movements(),
		Scans:         b.Scans(),
		Discrepancies: b.Discrepancies(),
		Locations:     b.Locations(),
		Rules:         b.PutawayRules(),
		SkuConfigs:    b.SkuConfigs(),
		UnitOfWork:    b,
	}
}

// Options tunes the services
type Options struct {
	Retry RetryPolicy
	// DefaultReceivingLocation is used by receiving scans that carry no location code
	DefaultReceivingLocation string
}

// DefaultOptions returns the default retry policy and the DOCK-01 receiving location
func DefaultOptions() Options {
	return Options{
		Retry:                    DefaultRetryPolicy(),
		DefaultReceivingLocation: "DOCK-01",
	}
}

// Services is the wired set of application services
type Services struct {
	Receipts      *ReceiptWorkflow
	Tasks         *TaskService
	Scans         *ScanService
	Waves         *ShippingWaveCoordinator
	Discrepancies *DiscrepancyService
	Imports       *ImportService
	MasterData    *MasterDataService
}

// NewServices wires every application service over one set of stores
func NewServices(stores Stores, opts Options, logger *logging.Logger, m *metrics.Metrics) (*Services, error) {
	decoder, err := importer.NewDecoder()
	if err != nil {
		return nil, err
	}

	planner := NewPutawayPlanner(stores, logger, m)
	workflow := NewReceiptWorkflow(stores, planner, opts.Retry, logger, m)

	return &Services{
		Receipts:      workflow,
		Tasks:         NewTaskService(stores, workflow, opts.Retry, logger, m),
		Scans:         NewScanService(stores, workflow, opts, logger, m),
		Waves:         NewShippingWaveCoordinator(stores.Receipts, workflow, logger, m),
		Discrepancies: NewDiscrepancyService(stores.Discrepancies, opts.Retry, logger, m),
		Imports:       NewImportService(stores.Receipts, decoder, logger),
		MasterData:    NewMasterDataService(stores, logger),
	}, nil
}
