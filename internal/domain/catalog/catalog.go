package catalog

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("catalog: product not found")

// Product is the authoritative snapshot served by the catalog at validation
// time. Price is in minor currency units; WeightGrams may be zero when the
// merchant never recorded a weight.
type Product struct {
	ID          string
	Price       int64
	WeightGrams int
	Stock       int
	Active      bool
}

// Gateway is the read-only port to the product catalog.
type Gateway interface {
	GetProduct(ctx context.Context, id string) (*Product, error)
}
