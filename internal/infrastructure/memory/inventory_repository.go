package memory

import (
	"context"
	"sync"

	domain "github.com/shoplite/checkout-engine/internal/domain/inventory"
)

// InventoryRepository keeps one versioned record per product. Each record is
// guarded by the repository mutex only for map access; conflicting writers are
// detected through the record version, so contention on one product never
// blocks a save on another beyond the map lookup.
type InventoryRepository struct {
	mu      sync.RWMutex
	records map[string]*domain.Record
}

func NewInventoryRepository() *InventoryRepository {
	return &InventoryRepository{
		records: make(map[string]*domain.Record),
	}
}

// Seed installs the starting stock for a product, resetting any prior record.
func (r *InventoryRepository) Seed(productID string, available int) {
	rec, err := domain.NewRecord(productID, available)
	if err != nil {
		return
	}
	r.mu.Lock()
	r.records[productID] = rec
	r.mu.Unlock()
}

func (r *InventoryRepository) Get(ctx context.Context, productID string) (*domain.Record, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[productID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneRecord(rec), nil
}

// Save applies an optimistic write: the caller's record must carry the version
// it was read at, otherwise ErrVersionConflict is returned and nothing changes.
func (r *InventoryRepository) Save(ctx context.Context, record *domain.Record) error {
	_ = ctx
	if record == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.records[record.ProductID]
	if !ok {
		return domain.ErrNotFound
	}
	if current.Version != record.Version {
		return domain.ErrVersionConflict
	}

	stored := cloneRecord(record)
	stored.Version++
	r.records[record.ProductID] = stored
	return nil
}

func cloneRecord(rec *domain.Record) *domain.Record {
	if rec == nil {
		return nil
	}
	clone := *rec
	return &clone
}
