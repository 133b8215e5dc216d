package memory

import (
	"context"
	"sync"

	domain "github.com/shoplite/checkout-engine/internal/domain/shipping"
)

type LabelStore struct {
	mu     sync.RWMutex
	labels map[string]*domain.Label
}

func NewLabelStore() *LabelStore {
	return &LabelStore{labels: make(map[string]*domain.Label)}
}

func (s *LabelStore) Get(ctx context.Context, orderID string) (*domain.Label, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	label, ok := s.labels[orderID]
	if !ok {
		return nil, domain.ErrLabelNotFound
	}
	return cloneLabel(label), nil
}

// Put is first-write-wins: a second label for the same order is rejected so an
// order can never end up with two tracking numbers.
func (s *LabelStore) Put(ctx context.Context, label *domain.Label) error {
	_ = ctx
	if label == nil || label.OrderID == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.labels[label.OrderID]; exists {
		return domain.ErrLabelExists
	}
	s.labels[label.OrderID] = cloneLabel(label)
	return nil
}

func cloneLabel(label *domain.Label) *domain.Label {
	if label == nil {
		return nil
	}
	clone := *label
	return &clone
}
