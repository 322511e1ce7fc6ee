package mongodb

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wms-platform/inbound-service/internal/domain"
)

var activeStatuses = bson.A{domain.TaskStatusNew, domain.TaskStatusAssigned, domain.TaskStatusInProgress}

// Receipts returns the receipt repository
func (s *Store) Receipts() domain.ReceiptRepository {
	return &ReceiptRepository{store: s, collection: s.db.Collection(ReceiptsCollection)}
}

// Tasks returns the task repository
func (s *Store) Tasks() domain.TaskRepository {
	return &TaskRepository{store: s, collection: s.db.Collection(TasksCollection)}
}

// Pallets returns the pallet repository
func (s *Store) Pallets() domain.PalletRepository {
	return &PalletRepository{collection: s.db.Collection(PalletsCollection)}
}

// Movements returns the movement log
func (s *Store) Movements() domain.MovementRepository {
	return &MovementRepository{store: s, collection: s.db.Collection(MovementsCollection)}
}

// Scans returns the scan log
func (s *Store) Scans() domain.ScanRepository {
	return &ScanRepository{store: s, collection: s.db.Collection(ScansCollection)}
}

// Discrepancies returns the discrepancy repository
func (s *Store) Discrepancies() domain.DiscrepancyRepository {
	return &DiscrepancyRepository{store: s, collection: s.db.Collection(DiscrepanciesCollection)}
}

// Locations returns the location repository
func (s *Store) Locations() domain.LocationRepository {
	return &LocationRepository{collection: s.db.Collection(LocationsCollection)}
}

// PutawayRules returns the putaway rule repository
func (s *Store) PutawayRules() domain.PutawayRuleRepository {
	return &PutawayRuleRepository{collection: s.db.Collection(RulesCollection)}
}

// SkuConfigs returns the SKU storage config repository
func (s *Store) SkuConfigs() domain.SkuStorageConfigRepository {
	return &SkuConfigRepository{collection: s.db.Collection(SkuConfigsCollection)}
}

// ReceiptRepository implements domain.ReceiptRepository
type ReceiptRepository struct {
	store      *Store
	collection *mongo.Collection
}

// Save persists the receipt and its pending events in one transaction
func (r *ReceiptRepository) Save(ctx context.Context, receipt *domain.Receipt) error {
	return r.store.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := saveVersioned(ctx, r.collection, receipt.ID, &receipt.Version, receipt); err != nil {
			return fmt.Errorf("failed to save receipt: %w", err)
		}
		if err := r.store.stage(ctx, receipt.ID, receipt.GetDomainEvents()); err != nil {
			return fmt.Errorf("failed to save outbox events: %w", err)
		}
		receipt.ClearDomainEvents()
		return nil
	})
}

func (r *ReceiptRepository) FindByID(ctx context.Context, id string) (*domain.Receipt, error) {
	return findOne[domain.Receipt](ctx, r.collection, bson.M{"_id": id})
}

func (r *ReceiptRepository) FindByMessageID(ctx context.Context, messageID string) (*domain.Receipt, error) {
	return findOne[domain.Receipt](ctx, r.collection, bson.M{"messageId": messageID})
}

func (r *ReceiptRepository) FindAll(ctx context.Context, filter domain.ReceiptFilter) ([]*domain.Receipt, error) {
	query := bson.M{}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.CrossDock != nil {
		query["crossDock"] = *filter.CrossDock
	}
	if filter.OutboundRef != "" {
		query["outboundRef"] = filter.OutboundRef
	} else if filter.WithOutboundRef {
		query["outboundRef"] = bson.M{"$exists": true, "$ne": ""}
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}
	return findMany[domain.Receipt](ctx, r.collection, query, opts)
}

func (r *ReceiptRepository) Delete(ctx context.Context, id string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// TaskRepository implements domain.TaskRepository
type TaskRepository struct {
	store      *Store
	collection *mongo.Collection
}

func (r *TaskRepository) Save(ctx context.Context, task *domain.Task) error {
	return r.store.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := saveVersioned(ctx, r.collection, task.ID, &task.Version, task); err != nil {
			return fmt.Errorf("failed to save task: %w", err)
		}
		if err := r.store.stage(ctx, task.ID, task.GetDomainEvents()); err != nil {
			return fmt.Errorf("failed to save outbox events: %w", err)
		}
		task.ClearDomainEvents()
		return nil
	})
}

func (r *TaskRepository) FindByID(ctx context.Context, id string) (*domain.Task, error) {
	return findOne[domain.Task](ctx, r.collection, bson.M{"_id": id})
}

func (r *TaskRepository) FindByReceiptID(ctx context.Context, receiptID string) ([]*domain.Task, error) {
	return r.FindAll(ctx, domain.TaskFilter{ReceiptID: receiptID})
}

func (r *TaskRepository) FindAll(ctx context.Context, filter domain.TaskFilter) ([]*domain.Task, error) {
	query := bson.M{}
	if filter.ReceiptID != "" {
		query["receiptId"] = filter.ReceiptID
	}
	if filter.Type != "" {
		query["type"] = filter.Type
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.AssigneeID != "" {
		query["assigneeId"] = filter.AssigneeID
	}
	if filter.CreatedFrom != nil || filter.CreatedTo != nil {
		created := bson.M{}
		if filter.CreatedFrom != nil {
			created["$gte"] = *filter.CreatedFrom
		}
		if filter.CreatedTo != nil {
			created["$lte"] = *filter.CreatedTo
		}
		query["createdAt"] = created
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}
	return findMany[domain.Task](ctx, r.collection, query, opts)
}

func (r *TaskRepository) CountActivePlacementsTo(ctx context.Context, locationID string) (int, error) {
	return count(ctx, r.collection, bson.M{
		"type":             domain.TaskTypePlacement,
		"targetLocationId": locationID,
		"status":           bson.M{"$in": activeStatuses},
	})
}

// PalletRepository implements domain.PalletRepository
type PalletRepository struct {
	collection *mongo.Collection
}

func (r *PalletRepository) Save(ctx context.Context, pallet *domain.Pallet) error {
	if err := saveVersioned(ctx, r.collection, pallet.ID, &pallet.Version, pallet); err != nil {
		return fmt.Errorf("failed to save pallet: %w", err)
	}
	return nil
}

func (r *PalletRepository) FindByID(ctx context.Context, id string) (*domain.Pallet, error) {
	return findOne[domain.Pallet](ctx, r.collection, bson.M{"_id": id})
}

func (r *PalletRepository) FindByCode(ctx context.Context, code string) (*domain.Pallet, error) {
	return findOne[domain.Pallet](ctx, r.collection, bson.M{"code": code})
}

func (r *PalletRepository) FindByReceiptID(ctx context.Context, receiptID string) ([]*domain.Pallet, error) {
	opts := options.Find().SetSort(bson.D{{Key: "code", Value: 1}})
	return findMany[domain.Pallet](ctx, r.collection, bson.M{"receiptId": receiptID}, opts)
}

func (r *PalletRepository) CountAtLocation(ctx context.Context, locationID string) (int, error) {
	return count(ctx, r.collection, bson.M{"locationId": locationID})
}

func (r *PalletRepository) LocationsHoldingSKU(ctx context.Context, sku string) ([]string, error) {
	values, err := r.collection.Distinct(ctx, "locationId", bson.M{
		"sku":        sku,
		"quantity":   bson.M{"$gt": 0},
		"locationId": bson.M{"$exists": true, "$ne": ""},
	})
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(values))
	for _, v := range values {
		if id, ok := v.(string); ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// MovementRepository implements domain.MovementRepository
type MovementRepository struct {
	store      *Store
	collection *mongo.Collection
}

func (r *MovementRepository) Append(ctx context.Context, movement *domain.PalletMovement) error {
	return r.store.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := r.collection.InsertOne(ctx, movement); err != nil {
			return fmt.Errorf("failed to append movement: %w", err)
		}
		return r.store.stage(ctx, movement.PalletID, []domain.DomainEvent{movement.Event()})
	})
}

func (r *MovementRepository) FindByPalletID(ctx context.Context, palletID string) ([]*domain.PalletMovement, error) {
	opts := options.Find().SetSort(bson.D{{Key: "occurredAt", Value: 1}})
	return findMany[domain.PalletMovement](ctx, r.collection, bson.M{"palletId": palletID}, opts)
}

// ScanRepository implements domain.ScanRepository
type ScanRepository struct {
	store      *Store
	collection *mongo.Collection
}

func (r *ScanRepository) Append(ctx context.Context, scan *domain.Scan) error {
	return r.store.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := r.collection.InsertOne(ctx, scan); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return domain.ErrDuplicateScan
			}
			return fmt.Errorf("failed to append scan: %w", err)
		}
		return r.store.stage(ctx, scan.TaskID, []domain.DomainEvent{scan.Event()})
	})
}

func (r *ScanRepository) FindByTaskAndRequestID(ctx context.Context, taskID, requestID string) (*domain.Scan, error) {
	return findOne[domain.Scan](ctx, r.collection, bson.M{"taskId": taskID, "requestId": requestID})
}

func (r *ScanRepository) FindByTaskID(ctx context.Context, taskID string) ([]*domain.Scan, error) {
	opts := options.Find().SetSort(bson.D{{Key: "scannedAt", Value: 1}})
	return findMany[domain.Scan](ctx, r.collection, bson.M{"taskId": taskID}, opts)
}

func (r *ScanRepository) DeleteByTaskID(ctx context.Context, taskID string) (int, error) {
	result, err := r.collection.DeleteMany(ctx, bson.M{"taskId": taskID})
	if err != nil {
		return 0, fmt.Errorf("failed to delete scans: %w", err)
	}
	return int(result.DeletedCount), nil
}

// DiscrepancyRepository implements domain.DiscrepancyRepository
type DiscrepancyRepository struct {
	store      *Store
	collection *mongo.Collection
}

func (r *DiscrepancyRepository) Save(ctx context.Context, d *domain.Discrepancy) error {
	return r.store.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := saveVersioned(ctx, r.collection, d.ID, &d.Version, d); err != nil {
			return fmt.Errorf("failed to save discrepancy: %w", err)
		}
		if err := r.store.stage(ctx, d.ID, d.GetDomainEvents()); err != nil {
			return fmt.Errorf("failed to save outbox events: %w", err)
		}
		d.ClearDomainEvents()
		return nil
	})
}

func (r *DiscrepancyRepository) FindByID(ctx context.Context, id string) (*domain.Discrepancy, error) {
	return findOne[domain.Discrepancy](ctx, r.collection, bson.M{"_id": id})
}

func (r *DiscrepancyRepository) FindAll(ctx context.Context, filter domain.DiscrepancyFilter) ([]*domain.Discrepancy, error) {
	query := bson.M{}
	if filter.ReceiptID != "" {
		query["receiptId"] = filter.ReceiptID
	}
	if filter.Type != "" {
		query["type"] = filter.Type
	}
	if filter.Resolved != nil {
		query["resolved"] = *filter.Resolved
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	return findMany[domain.Discrepancy](ctx, r.collection, query, opts)
}

func (r *DiscrepancyRepository) CountUnresolved(ctx context.Context, receiptID string) (int, error) {
	return count(ctx, r.collection, bson.M{"receiptId": receiptID, "resolved": false})
}

// LocationRepository implements domain.LocationRepository
type LocationRepository struct {
	collection *mongo.Collection
}

func (r *LocationRepository) Save(ctx context.Context, location *domain.Location) error {
	if err := saveVersioned(ctx, r.collection, location.ID, &location.Version, location); err != nil {
		return fmt.Errorf("failed to save location: %w", err)
	}
	return nil
}

func (r *LocationRepository) FindByID(ctx context.Context, id string) (*domain.Location, error) {
	return findOne[domain.Location](ctx, r.collection, bson.M{"_id": id})
}

func (r *LocationRepository) FindByCode(ctx context.Context, code string) (*domain.Location, error) {
	return findOne[domain.Location](ctx, r.collection, bson.M{"code": code})
}

func (r *LocationRepository) FindAll(ctx context.Context, filter domain.LocationFilter) ([]*domain.Location, error) {
	query := bson.M{}
	if filter.Type != "" {
		query["type"] = filter.Type
	}
	if len(filter.Zones) > 0 {
		query["zone"] = bson.M{"$in": filter.Zones}
	}
	if len(filter.IDs) > 0 {
		query["_id"] = bson.M{"$in": filter.IDs}
	}
	if len(filter.Statuses) > 0 {
		query["status"] = bson.M{"$in": filter.Statuses}
	}
	opts := options.Find().SetSort(bson.D{{Key: "code", Value: 1}})
	return findMany[domain.Location](ctx, r.collection, query, opts)
}

// PutawayRuleRepository implements domain.PutawayRuleRepository
type PutawayRuleRepository struct {
	collection *mongo.Collection
}

func (r *PutawayRuleRepository) Save(ctx context.Context, rule *domain.PutawayRule) error {
	opts := options.Replace().SetUpsert(true)
	if _, err := r.collection.ReplaceOne(ctx, bson.M{"_id": rule.ID}, rule, opts); err != nil {
		return fmt.Errorf("failed to save putaway rule: %w", err)
	}
	return nil
}

func (r *PutawayRuleRepository) FindByID(ctx context.Context, id string) (*domain.PutawayRule, error) {
	return findOne[domain.PutawayRule](ctx, r.collection, bson.M{"_id": id})
}

func (r *PutawayRuleRepository) FindAll(ctx context.Context) ([]*domain.PutawayRule, error) {
	opts := options.Find().SetSort(bson.D{{Key: "priority", Value: 1}, {Key: "createdAt", Value: 1}})
	return findMany[domain.PutawayRule](ctx, r.collection, bson.M{}, opts)
}

func (r *PutawayRuleRepository) Delete(ctx context.Context, id string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (r *PutawayRuleRepository) Count(ctx context.Context) (int, error) {
	return count(ctx, r.collection, bson.M{})
}

// SkuConfigRepository implements domain.SkuStorageConfigRepository
type SkuConfigRepository struct {
	collection *mongo.Collection
}

func (r *SkuConfigRepository) Save(ctx context.Context, config *domain.SkuStorageConfig) error {
	config.UpdatedAt = time.Now().UTC()
	opts := options.Replace().SetUpsert(true)
	if _, err := r.collection.ReplaceOne(ctx, bson.M{"_id": config.SKU}, config, opts); err != nil {
		return fmt.Errorf("failed to save sku storage config: %w", err)
	}
	return nil
}

func (r *SkuConfigRepository) FindBySKU(ctx context.Context, sku string) (*domain.SkuStorageConfig, error) {
	return findOne[domain.SkuStorageConfig](ctx, r.collection, bson.M{"_id": sku})
}
