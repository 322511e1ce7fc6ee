package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wms-platform/inbound-service/internal/domain"
	"github.com/wms-platform/inbound-service/internal/infrastructure/events"
	pkgmongo "github.com/wms-platform/inbound-service/pkg/mongodb"
	"github.com/wms-platform/inbound-service/pkg/outbox"
	outboxmongo "github.com/wms-platform/inbound-service/pkg/outbox/mongodb"
)

// Collection names
const (
	ReceiptsCollection      = "receipts"
	TasksCollection         = "tasks"
	PalletsCollection       = "pallets"
	MovementsCollection     = "pallet_movements"
	ScansCollection         = "scans"
	DiscrepanciesCollection = "discrepancies"
	LocationsCollection     = "locations"
	RulesCollection         = "putaway_rules"
	SkuConfigsCollection    = "sku_storage_configs"
)

// Store groups the MongoDB repositories. Aggregate writes and their outbox events share a transaction.
type Store struct {
	client *pkgmongo.Client
	db     *mongo.Database
	outbox *outboxmongo.OutboxRepository
	mapper *events.Mapper
}

// NewStore creates the store and its indexes
func NewStore(ctx context.Context, client *pkgmongo.Client, mapper *events.Mapper) (*Store, error) {
	db := client.Database()
	s := &Store{
		client: client,
		db:     db,
		outbox: outboxmongo.NewOutboxRepository(db),
		mapper: mapper,
	}
	if err := s.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		ReceiptsCollection: {
			{Keys: bson.D{{Key: "messageId", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
			{Keys: bson.D{{Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "outboundRef", Value: 1}}},
			{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		},
		TasksCollection: {
			{Keys: bson.D{{Key: "receiptId", Value: 1}, {Key: "type", Value: 1}}},
			{Keys: bson.D{{Key: "assigneeId", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "targetLocationId", Value: 1}, {Key: "type", Value: 1}, {Key: "status", Value: 1}}},
		},
		PalletsCollection: {
			{Keys: bson.D{{Key: "code", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "receiptId", Value: 1}}},
			{Keys: bson.D{{Key: "locationId", Value: 1}}},
			{Keys: bson.D{{Key: "sku", Value: 1}}},
		},
		MovementsCollection: {
			{Keys: bson.D{{Key: "palletId", Value: 1}, {Key: "occurredAt", Value: 1}}},
		},
		ScansCollection: {
			{Keys: bson.D{{Key: "taskId", Value: 1}, {Key: "requestId", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		DiscrepanciesCollection: {
			{Keys: bson.D{{Key: "receiptId", Value: 1}, {Key: "resolved", Value: 1}}},
		},
		LocationsCollection: {
			{Keys: bson.D{{Key: "code", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "type", Value: 1}, {Key: "zone", Value: 1}, {Key: "status", Value: 1}}},
		},
	}

	for name, models := range indexes {
		if _, err := s.db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create %s indexes: %w", name, err)
		}
	}
	return s.outbox.EnsureIndexes(ctx)
}

// WithinTransaction runs fn in a MongoDB transaction, or joins the one already on ctx
func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}
	return s.client.WithTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		return fn(sessCtx)
	})
}

// Outbox returns the outbox repository
func (s *Store) Outbox() outbox.Repository {
	return s.outbox
}

// HealthCheck pings the primary
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.client.HealthCheck(ctx)
}

func (s *Store) stage(ctx context.Context, aggregateID string, pending []domain.DomainEvent) error {
	if len(pending) == 0 || s.mapper == nil {
		return nil
	}
	mapped, err := s.mapper.ToOutbox(ctx, aggregateID, pending)
	if err != nil {
		return err
	}
	return s.outbox.SaveAll(ctx, mapped)
}

// saveVersioned inserts at version 0 and otherwise replaces the document only when the stored
// version still matches. The caller's version advances on success.
func saveVersioned(ctx context.Context, coll *mongo.Collection, id string, version *int64, doc interface{}) error {
	expected := *version
	*version = expected + 1

	var err error
	if expected == 0 {
		_, err = coll.InsertOne(ctx, doc)
	} else {
		var result *mongo.UpdateResult
		result, err = coll.ReplaceOne(ctx, bson.M{"_id": id, "version": expected}, doc)
		if err == nil && result.MatchedCount == 0 {
			err = domain.ErrVersionConflict
		}
	}

	if err != nil {
		*version = expected
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %v", domain.ErrDuplicateKey, err)
		}
		return err
	}
	return nil
}

func findOne[T any](ctx context.Context, coll *mongo.Collection, filter interface{}) (*T, error) {
	var v T
	err := coll.FindOne(ctx, filter).Decode(&v)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func findMany[T any](ctx context.Context, coll *mongo.Collection, filter interface{}, opts ...*options.FindOptions) ([]*T, error) {
	cursor, err := coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []*T
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func count(ctx context.Context, coll *mongo.Collection, filter interface{}) (int, error) {
	n, err := coll.CountDocuments(ctx, filter)
	return int(n), err
}
