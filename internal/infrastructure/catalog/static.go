package catalog

import (
	"context"
	"sync"

	domain "github.com/shoplite/checkout-engine/internal/domain/catalog"
)

// StaticGateway serves product snapshots from a seeded in-memory table. It
// stands in for the real catalog service behind the same read-only port.
type StaticGateway struct {
	mu       sync.RWMutex
	products map[string]*domain.Product
}

func NewStaticGateway(products ...domain.Product) *StaticGateway {
	g := &StaticGateway{products: make(map[string]*domain.Product, len(products))}
	for _, p := range products {
		copied := p
		g.products[p.ID] = &copied
	}
	return g
}

func (g *StaticGateway) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	_ = ctx

	g.mu.RLock()
	defer g.mu.RUnlock()

	product, ok := g.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *product
	return &clone, nil
}

// Upsert replaces a product snapshot, used by seeding and tests.
func (g *StaticGateway) Upsert(p domain.Product) {
	g.mu.Lock()
	copied := p
	g.products[p.ID] = &copied
	g.mu.Unlock()
}
