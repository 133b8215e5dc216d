package inventory

import "context"

// Repository persists per-product stock records with optimistic versioning.
// Save must reject a record whose Version does not match the stored one with
// ErrVersionConflict; on success the stored version is advanced. Unrelated
// products must never serialize against each other.
type Repository interface {
	Get(ctx context.Context, productID string) (*Record, error)
	Save(ctx context.Context, record *Record) error
}
