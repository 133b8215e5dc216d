package order

import "context"

// Repository is the durable store for order aggregates. Insert fails with
// ErrConflict when the id or the idempotency key is already taken.
type Repository interface {
	Insert(ctx context.Context, order *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	Update(ctx context.Context, order *Order) error
	FindByIdempotency(ctx context.Context, customerID, key string) (*Order, error)
	ListPendingLabels(ctx context.Context) ([]*Order, error)
}
