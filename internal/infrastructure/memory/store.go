// Package memory is an in-process store implementing every repository port,
// the unit of work and the outbox. It backs local runs and the application tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wms-platform/inbound-service/internal/domain"
	"github.com/wms-platform/inbound-service/internal/infrastructure/events"
	"github.com/wms-platform/inbound-service/pkg/outbox"
)

type txKey struct{}

// journal collects the undo steps and outbox events of one unit of work
type journal struct {
	undo   []func()
	outbox []*outbox.OutboxEvent
}

func journalFrom(ctx context.Context) *journal {
	j, _ := ctx.Value(txKey{}).(*journal)
	return j
}

// Store holds all entities in maps. mu guards the maps; txMu serialises units of work.
// Writes apply immediately and are undone in reverse order when the unit of work fails.
type Store struct {
	mu   sync.RWMutex
	txMu sync.Mutex

	mapper *events.Mapper

	receipts      map[string]*domain.Receipt
	tasks         map[string]*domain.Task
	pallets       map[string]*domain.Pallet
	movements     []*domain.PalletMovement
	scans         map[string]*domain.Scan
	scanKeys      map[string]string
	discrepancies map[string]*domain.Discrepancy
	locations     map[string]*domain.Location
	rules         map[string]*domain.PutawayRule
	skuConfigs    map[string]*domain.SkuStorageConfig
	outboxEvents  []*outbox.OutboxEvent
}

// NewStore creates an empty store
func NewStore(mapper *events.Mapper) *Store {
	return &Store{
		mapper:        mapper,
		receipts:      make(map[string]*domain.Receipt),
		tasks:         make(map[string]*domain.Task),
		pallets:       make(map[string]*domain.Pallet),
		scans:         make(map[string]*domain.Scan),
		scanKeys:      make(map[string]string),
		discrepancies: make(map[string]*domain.Discrepancy),
		locations:     make(map[string]*domain.Location),
		rules:         make(map[string]*domain.PutawayRule),
		skuConfigs:    make(map[string]*domain.SkuStorageConfig),
	}
}

// WithinTransaction runs fn as one unit of work. Nested calls join the outer unit.
func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if journalFrom(ctx) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	j := &journal{}
	if err := fn(context.WithValue(ctx, txKey{}, j)); err != nil {
		s.mu.Lock()
		for i := len(j.undo) - 1; i >= 0; i-- {
			j.undo[i]()
		}
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.outboxEvents = append(s.outboxEvents, j.outbox...)
	s.mu.Unlock()
	return nil
}

// write runs fn under the write lock, inside the caller's unit of work or a new one
func (s *Store) write(ctx context.Context, fn func(ctx context.Context, j *journal) error) error {
	j := journalFrom(ctx)
	if j == nil {
		return s.WithinTransaction(ctx, func(ctx context.Context) error {
			return s.write(ctx, fn)
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(ctx, j)
}

func (s *Store) stage(ctx context.Context, j *journal, aggregateID string, pending []domain.DomainEvent) error {
	if len(pending) == 0 || s.mapper == nil {
		return nil
	}
	mapped, err := s.mapper.ToOutbox(ctx, aggregateID, pending)
	if err != nil {
		return err
	}
	j.outbox = append(j.outbox, mapped...)
	return nil
}

func checkVersion(exists bool, stored, expected int64) error {
	if expected == 0 {
		if exists {
			return fmt.Errorf("%w: entity already exists", domain.ErrVersionConflict)
		}
		return nil
	}
	if !exists || stored != expected {
		return domain.ErrVersionConflict
	}
	return nil
}

// bump advances the caller's version and restores it on rollback
func bump(j *journal, version *int64) {
	expected := *version
	*version = expected + 1
	j.undo = append(j.undo, func() { *version = expected })
}

func put[T any](j *journal, m map[string]*T, id string, value *T) {
	prev, existed := m[id]
	m[id] = value
	j.undo = append(j.undo, func() {
		if existed {
			m[id] = prev
		} else {
			delete(m, id)
		}
	})
}

func remove[T any](j *journal, m map[string]*T, id string) bool {
	prev, existed := m[id]
	if !existed {
		return false
	}
	delete(m, id)
	j.undo = append(j.undo, func() { m[id] = prev })
	return true
}

func limit[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}

// Outbox returns the outbox repository view of the store
func (s *Store) Outbox() outbox.Repository {
	return &outboxRepository{s: s}
}

type outboxRepository struct {
	s *Store
}

func (r *outboxRepository) SaveAll(ctx context.Context, evts []*outbox.OutboxEvent) error {
	return r.s.write(ctx, func(_ context.Context, j *journal) error {
		j.outbox = append(j.outbox, evts...)
		return nil
	})
}

func (r *outboxRepository) FindUnpublished(_ context.Context, n int) ([]*outbox.OutboxEvent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*outbox.OutboxEvent
	for _, e := range r.s.outboxEvents {
		if e.ShouldRetry() {
			c := *e
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, k int) bool { return out[i].CreatedAt.Before(out[k].CreatedAt) })
	return limit(out, n), nil
}

func (r *outboxRepository) MarkPublished(_ context.Context, eventID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, e := range r.s.outboxEvents {
		if e.ID == eventID {
			now := time.Now().UTC()
			e.PublishedAt = &now
			return nil
		}
	}
	return fmt.Errorf("outbox event %s not found", eventID)
}

func (r *outboxRepository) IncrementRetry(_ context.Context, eventID string, errorMsg string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, e := range r.s.outboxEvents {
		if e.ID == eventID {
			e.RetryCount++
			e.LastError = errorMsg
			return nil
		}
	}
	return fmt.Errorf("outbox event %s not found", eventID)
}

func (r *outboxRepository) DeletePublished(_ context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	kept := r.s.outboxEvents[:0]
	var removed int64
	for _, e := range r.s.outboxEvents {
		if e.PublishedAt != nil && e.PublishedAt.Before(before) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	r.s.outboxEvents = kept
	return removed, nil
}
