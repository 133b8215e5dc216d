package payment

import (
	"sync"

	dompay "github.com/shoplite/checkout-engine/internal/domain/payment"
)

// Registry maps a payment method identifier to its processor. Processors are
// registered once in the composition root; lookups never have side effects, so
// an unsupported method is rejected before anything is reserved.
type Registry struct {
	mu         sync.RWMutex
	processors map[string]dompay.Processor
}

func NewRegistry(processors ...dompay.Processor) *Registry {
	r := &Registry{processors: make(map[string]dompay.Processor, len(processors))}
	for _, p := range processors {
		r.Register(p)
	}
	return r
}

func (r *Registry) Register(p dompay.Processor) {
	if p == nil {
		return
	}
	r.mu.Lock()
	r.processors[p.Method()] = p
	r.mu.Unlock()
}

func (r *Registry) Lookup(method string) (dompay.Processor, error) {
	r.mu.RLock()
	p, ok := r.processors[method]
	r.mu.RUnlock()
	if !ok {
		return nil, dompay.ErrUnsupportedMethod
	}
	return p, nil
}

// Methods lists the registered method identifiers.
func (r *Registry) Methods() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.processors))
	for m := range r.processors {
		out = append(out, m)
	}
	return out
}
