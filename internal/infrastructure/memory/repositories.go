package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/wms-platform/inbound-service/internal/domain"
)

// Receipts returns the receipt repository view of the store
func (s *Store) Receipts() domain.ReceiptRepository { return &receiptRepository{s: s} }

// Tasks returns the task repository view of the store
func (s *Store) Tasks() domain.TaskRepository { return &taskRepository{s: s} }

// Pallets returns the pallet repository view of the store
func (s *Store) Pallets() domain.PalletRepository { return &palletRepository{s: s} }

// Movements returns the movement log view of the store
func (s *Store) Movements() domain.MovementRepository { return &movementRepository{s: s} }

// Scans returns the scan log view of the store
func (s *Store) Scans() domain.ScanRepository { return &scanRepository{s: s} }

// Discrepancies returns the discrepancy repository view of the store
func (s *Store) Discrepancies() domain.DiscrepancyRepository { return &discrepancyRepository{s: s} }

// Locations returns the location repository view of the store
func (s *Store) Locations() domain.LocationRepository { return &locationRepository{s: s} }

// PutawayRules returns the putaway rule repository view of the store
func (s *Store) PutawayRules() domain.PutawayRuleRepository { return &ruleRepository{s: s} }

// SkuConfigs returns the SKU storage config repository view of the store
func (s *Store) SkuConfigs() domain.SkuStorageConfigRepository { return &skuConfigRepository{s: s} }

func cloneReceipt(r *domain.Receipt) *domain.Receipt {
	c := *r
	c.Lines = append([]domain.ReceiptLine(nil), r.Lines...)
	c.ClearDomainEvents()
	return &c
}

func cloneTask(t *domain.Task) *domain.Task {
	c := *t
	c.ClearDomainEvents()
	return &c
}

func cloneDiscrepancy(d *domain.Discrepancy) *domain.Discrepancy {
	c := *d
	c.ClearDomainEvents()
	return &c
}

func clone[T any](v *T) *T {
	c := *v
	return &c
}

// receipts

type receiptRepository struct{ s *Store }

func (r *receiptRepository) Save(ctx context.Context, receipt *domain.Receipt) error {
	return r.s.write(ctx, func(ctx context.Context, j *journal) error {
		prev, ok := r.s.receipts[receipt.ID]
		var stored int64
		if ok {
			stored = prev.Version
		}
		if err := checkVersion(ok, stored, receipt.Version); err != nil {
			return err
		}
		if receipt.MessageID != "" {
			for _, other := range r.s.receipts {
				if other.ID != receipt.ID && other.MessageID == receipt.MessageID {
					return fmt.Errorf("%w: messageId %s", domain.ErrDuplicateKey, receipt.MessageID)
				}
			}
		}
		if err := r.s.stage(ctx, j, receipt.ID, receipt.GetDomainEvents()); err != nil {
			return err
		}

		bump(j, &receipt.Version)
		put(j, r.s.receipts, receipt.ID, cloneReceipt(receipt))
		receipt.ClearDomainEvents()
		return nil
	})
}

func (r *receiptRepository) FindByID(_ context.Context, id string) (*domain.Receipt, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if receipt, ok := r.s.receipts[id]; ok {
		return cloneReceipt(receipt), nil
	}
	return nil, nil
}

func (r *receiptRepository) FindByMessageID(_ context.Context, messageID string) (*domain.Receipt, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, receipt := range r.s.receipts {
		if receipt.MessageID == messageID {
			return cloneReceipt(receipt), nil
		}
	}
	return nil, nil
}

func (r *receiptRepository) FindAll(_ context.Context, filter domain.ReceiptFilter) ([]*domain.Receipt, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*domain.Receipt
	for _, receipt := range r.s.receipts {
		if filter.Status != "" && receipt.Status != filter.Status {
			continue
		}
		if filter.CrossDock != nil && receipt.CrossDock != *filter.CrossDock {
			continue
		}
		if filter.OutboundRef != "" && receipt.OutboundRef != filter.OutboundRef {
			continue
		}
		if filter.WithOutboundRef && receipt.OutboundRef == "" {
			continue
		}
		out = append(out, cloneReceipt(receipt))
	}
	sort.Slice(out, func(i, k int) bool {
		if !out[i].CreatedAt.Equal(out[k].CreatedAt) {
			return out[i].CreatedAt.After(out[k].CreatedAt)
		}
		return out[i].ID < out[k].ID
	})
	return limit(out, filter.Limit), nil
}

func (r *receiptRepository) Delete(ctx context.Context, id string) error {
	return r.s.write(ctx, func(_ context.Context, j *journal) error {
		remove(j, r.s.receipts, id)
		return nil
	})
}

// tasks

type taskRepository struct{ s *Store }

func (r *taskRepository) Save(ctx context.Context, task *domain.Task) error {
	return r.s.write(ctx, func(ctx context.Context, j *journal) error {
		prev, ok := r.s.tasks[task.ID]
		var stored int64
		if ok {
			stored = prev.Version
		}
		if err := checkVersion(ok, stored, task.Version); err != nil {
			return err
		}
		if err := r.s.stage(ctx, j, task.ID, task.GetDomainEvents()); err != nil {
			return err
		}

		bump(j, &task.Version)
		put(j, r.s.tasks, task.ID, cloneTask(task))
		task.ClearDomainEvents()
		return nil
	})
}

func (r *taskRepository) FindByID(_ context.Context, id string) (*domain.Task, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if task, ok := r.s.tasks[id]; ok {
		return cloneTask(task), nil
	}
	return nil, nil
}

func (r *taskRepository) FindByReceiptID(ctx context.Context, receiptID string) ([]*domain.Task, error) {
	return r.FindAll(ctx, domain.TaskFilter{ReceiptID: receiptID})
}

func (r *taskRepository) FindAll(_ context.Context, filter domain.TaskFilter) ([]*domain.Task, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*domain.Task
	for _, task := range r.s.tasks {
		if !matchesTask(task, filter) {
			continue
		}
		out = append(out, cloneTask(task))
	}
	sort.Slice(out, func(i, k int) bool {
		if !out[i].CreatedAt.Equal(out[k].CreatedAt) {
			return out[i].CreatedAt.Before(out[k].CreatedAt)
		}
		return out[i].ID < out[k].ID
	})
	return limit(out, filter.Limit), nil
}

func matchesTask(task *domain.Task, f domain.TaskFilter) bool {
	switch {
	case f.ReceiptID != "" && task.ReceiptID != f.ReceiptID:
		return false
	case f.Type != "" && task.Type != f.Type:
		return false
	case f.Status != "" && task.Status != f.Status:
		return false
	case f.AssigneeID != "" && task.AssigneeID != f.AssigneeID:
		return false
	case f.CreatedFrom != nil && task.CreatedAt.Before(*f.CreatedFrom):
		return false
	case f.CreatedTo != nil && task.CreatedAt.After(*f.CreatedTo):
		return false
	}
	return true
}

func (r *taskRepository) CountActivePlacementsTo(_ context.Context, locationID string) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	n := 0
	for _, task := range r.s.tasks {
		if task.Type == domain.TaskTypePlacement && task.Status.IsActive() && task.TargetLocationID == locationID {
			n++
		}
	}
	return n, nil
}

// pallets

type palletRepository struct{ s *Store }

func (r *palletRepository) Save(ctx context.Context, pallet *domain.Pallet) error {
	return r.s.write(ctx, func(_ context.Context, j *journal) error {
		prev, ok := r.s.pallets[pallet.ID]
		var stored int64
		if ok {
			stored = prev.Version
		}
		if err := checkVersion(ok, stored, pallet.Version); err != nil {
			return err
		}
		for _, other := range r.s.pallets {
			if other.ID != pallet.ID && other.Code == pallet.Code {
				return fmt.Errorf("%w: pallet code %s", domain.ErrDuplicateKey, pallet.Code)
			}
		}

		bump(j, &pallet.Version)
		put(j, r.s.pallets, pallet.ID, clone(pallet))
		return nil
	})
}

func (r *palletRepository) FindByID(_ context.Context, id string) (*domain.Pallet, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if pallet, ok := r.s.pallets[id]; ok {
		return clone(pallet), nil
	}
	return nil, nil
}

func (r *palletRepository) FindByCode(_ context.Context, code string) (*domain.Pallet, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, pallet := range r.s.pallets {
		if pallet.Code == code {
			return clone(pallet), nil
		}
	}
	return nil, nil
}

func (r *palletRepository) FindByReceiptID(_ context.Context, receiptID string) ([]*domain.Pallet, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*domain.Pallet
	for _, pallet := range r.s.pallets {
		if pallet.ReceiptID == receiptID {
			out = append(out, clone(pallet))
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Code < out[k].Code })
	return out, nil
}

func (r *palletRepository) CountAtLocation(_ context.Context, locationID string) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	n := 0
	for _, pallet := range r.s.pallets {
		if pallet.LocationID == locationID {
			n++
		}
	}
	return n, nil
}

func (r *palletRepository) LocationsHoldingSKU(_ context.Context, sku string) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	seen := make(map[string]bool)
	var out []string
	for _, pallet := range r.s.pallets {
		if pallet.SKU != sku || pallet.Quantity <= 0 || pallet.LocationID == "" || seen[pallet.LocationID] {
			continue
		}
		seen[pallet.LocationID] = true
		out = append(out, pallet.LocationID)
	}
	sort.Strings(out)
	return out, nil
}

// movements

type movementRepository struct{ s *Store }

func (r *movementRepository) Append(ctx context.Context, movement *domain.PalletMovement) error {
	return r.s.write(ctx, func(ctx context.Context, j *journal) error {
		if err := r.s.stage(ctx, j, movement.PalletID, []domain.DomainEvent{movement.Event()}); err != nil {
			return err
		}
		n := len(r.s.movements)
		r.s.movements = append(r.s.movements, clone(movement))
		j.undo = append(j.undo, func() { r.s.movements = r.s.movements[:n] })
		return nil
	})
}

func (r *movementRepository) FindByPalletID(_ context.Context, palletID string) ([]*domain.PalletMovement, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*domain.PalletMovement
	for _, m := range r.s.movements {
		if m.PalletID == palletID {
			out = append(out, clone(m))
		}
	}
	return out, nil
}

// scans

type scanRepository struct{ s *Store }

func scanKey(taskID, requestID string) string {
	return taskID + "|" + requestID
}

func (r *scanRepository) Append(ctx context.Context, scan *domain.Scan) error {
	return r.s.write(ctx, func(ctx context.Context, j *journal) error {
		key := scanKey(scan.TaskID, scan.RequestID)
		if _, exists := r.s.scanKeys[key]; exists {
			return domain.ErrDuplicateScan
		}
		if err := r.s.stage(ctx, j, scan.TaskID, []domain.DomainEvent{scan.Event()}); err != nil {
			return err
		}

		put(j, r.s.scans, scan.ID, clone(scan))
		r.s.scanKeys[key] = scan.ID
		j.undo = append(j.undo, func() { delete(r.s.scanKeys, key) })
		return nil
	})
}

func (r *scanRepository) FindByTaskAndRequestID(_ context.Context, taskID, requestID string) (*domain.Scan, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if id, ok := r.s.scanKeys[scanKey(taskID, requestID)]; ok {
		return clone(r.s.scans[id]), nil
	}
	return nil, nil
}

func (r *scanRepository) FindByTaskID(_ context.Context, taskID string) ([]*domain.Scan, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*domain.Scan
	for _, scan := range r.s.scans {
		if scan.TaskID == taskID {
			out = append(out, clone(scan))
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ScannedAt.Before(out[k].ScannedAt) })
	return out, nil
}

func (r *scanRepository) DeleteByTaskID(ctx context.Context, taskID string) (int, error) {
	deleted := 0
	err := r.s.write(ctx, func(_ context.Context, j *journal) error {
		for id, scan := range r.s.scans {
			if scan.TaskID != taskID {
				continue
			}
			key := scanKey(scan.TaskID, scan.RequestID)
			remove(j, r.s.scans, id)
			delete(r.s.scanKeys, key)
			j.undo = append(j.undo, func() { r.s.scanKeys[key] = id })
			deleted++
		}
		return nil
	})
	return deleted, err
}

// discrepancies

type discrepancyRepository struct{ s *Store }

func (r *discrepancyRepository) Save(ctx context.Context, d *domain.Discrepancy) error {
	return r.s.write(ctx, func(ctx context.Context, j *journal) error {
		prev, ok := r.s.discrepancies[d.ID]
		var stored int64
		if ok {
			stored = prev.Version
		}
		if err := checkVersion(ok, stored, d.Version); err != nil {
			return err
		}
		if err := r.s.stage(ctx, j, d.ID, d.GetDomainEvents()); err != nil {
			return err
		}

		bump(j, &d.Version)
		put(j, r.s.discrepancies, d.ID, cloneDiscrepancy(d))
		d.ClearDomainEvents()
		return nil
	})
}

func (r *discrepancyRepository) FindByID(_ context.Context, id string) (*domain.Discrepancy, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if d, ok := r.s.discrepancies[id]; ok {
		return cloneDiscrepancy(d), nil
	}
	return nil, nil
}

func (r *discrepancyRepository) FindAll(_ context.Context, filter domain.DiscrepancyFilter) ([]*domain.Discrepancy, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*domain.Discrepancy
	for _, d := range r.s.discrepancies {
		if filter.ReceiptID != "" && d.ReceiptID != filter.ReceiptID {
			continue
		}
		if filter.Type != "" && d.Type != filter.Type {
			continue
		}
		if filter.Resolved != nil && d.Resolved != *filter.Resolved {
			continue
		}
		out = append(out, cloneDiscrepancy(d))
	}
	sort.Slice(out, func(i, k int) bool {
		if !out[i].CreatedAt.Equal(out[k].CreatedAt) {
			return out[i].CreatedAt.Before(out[k].CreatedAt)
		}
		return out[i].ID < out[k].ID
	})
	return out, nil
}

func (r *discrepancyRepository) CountUnresolved(_ context.Context, receiptID string) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	n := 0
	for _, d := range r.s.discrepancies {
		if d.ReceiptID == receiptID && !d.Resolved {
			n++
		}
	}
	return n, nil
}

// locations

type locationRepository struct{ s *Store }

func (r *locationRepository) Save(ctx context.Context, location *domain.Location) error {
	return r.s.write(ctx, func(_ context.Context, j *journal) error {
		prev, ok := r.s.locations[location.ID]
		var stored int64
		if ok {
			stored = prev.Version
		}
		if err := checkVersion(ok, stored, location.Version); err != nil {
			return err
		}
		for _, other := range r.s.locations {
			if other.ID != location.ID && other.Code == location.Code {
				return fmt.Errorf("%w: location code %s", domain.ErrDuplicateKey, location.Code)
			}
		}

		bump(j, &location.Version)
		put(j, r.s.locations, location.ID, clone(location))
		return nil
	})
}

func (r *locationRepository) FindByID(_ context.Context, id string) (*domain.Location, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if location, ok := r.s.locations[id]; ok {
		return clone(location), nil
	}
	return nil, nil
}

func (r *locationRepository) FindByCode(_ context.Context, code string) (*domain.Location, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, location := range r.s.locations {
		if location.Code == code {
			return clone(location), nil
		}
	}
	return nil, nil
}

func (r *locationRepository) FindAll(_ context.Context, filter domain.LocationFilter) ([]*domain.Location, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*domain.Location
	for _, location := range r.s.locations {
		if !matchesLocation(location, filter) {
			continue
		}
		out = append(out, clone(location))
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Code < out[k].Code })
	return out, nil
}

func matchesLocation(l *domain.Location, f domain.LocationFilter) bool {
	if f.Type != "" && l.Type != f.Type {
		return false
	}
	if len(f.Zones) > 0 && !containsString(f.Zones, l.Zone) {
		return false
	}
	if len(f.IDs) > 0 && !containsString(f.IDs, l.ID) {
		return false
	}
	if len(f.Statuses) > 0 {
		for _, status := range f.Statuses {
			if l.Status == status {
				return true
			}
		}
		return false
	}
	return true
}

func containsString(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

// putaway rules

type ruleRepository struct{ s *Store }

func (r *ruleRepository) Save(ctx context.Context, rule *domain.PutawayRule) error {
	return r.s.write(ctx, func(_ context.Context, j *journal) error {
		put(j, r.s.rules, rule.ID, clone(rule))
		return nil
	})
}

func (r *ruleRepository) FindByID(_ context.Context, id string) (*domain.PutawayRule, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if rule, ok := r.s.rules[id]; ok {
		return clone(rule), nil
	}
	return nil, nil
}

func (r *ruleRepository) FindAll(_ context.Context) ([]*domain.PutawayRule, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*domain.PutawayRule, 0, len(r.s.rules))
	for _, rule := range r.s.rules {
		out = append(out, clone(rule))
	}
	sort.Slice(out, func(i, k int) bool {
		if out[i].Priority != out[k].Priority {
			return out[i].Priority < out[k].Priority
		}
		return out[i].ID < out[k].ID
	})
	return out, nil
}

func (r *ruleRepository) Delete(ctx context.Context, id string) error {
	return r.s.write(ctx, func(_ context.Context, j *journal) error {
		remove(j, r.s.rules, id)
		return nil
	})
}

func (r *ruleRepository) Count(_ context.Context) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return len(r.s.rules), nil
}

// sku configs

type skuConfigRepository struct{ s *Store }

func (r *skuConfigRepository) Save(ctx context.Context, config *domain.SkuStorageConfig) error {
	return r.s.write(ctx, func(_ context.Context, j *journal) error {
		config.UpdatedAt = time.Now().UTC()
		put(j, r.s.skuConfigs, config.SKU, clone(config))
		return nil
	})
}

func (r *skuConfigRepository) FindBySKU(_ context.Context, sku string) (*domain.SkuStorageConfig, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if config, ok := r.s.skuConfigs[sku]; ok {
		return clone(config), nil
	}
	return nil, nil
}
