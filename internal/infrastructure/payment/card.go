package payment

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	domain "github.com/shoplite/checkout-engine/internal/domain/payment"
)

const cardMethod = "card"

// CardProcessor simulates a synchronous-capture provider: Process blocks until
// the funds are captured or declined and never reports pending on its own. The
// only pending outcome is a capture timeout, which must not be treated as
// failed because the provider may still have charged.
type CardProcessor struct {
	mu          sync.Mutex
	random      *rand.Rand
	successRate float64
	captures    map[string]domain.Result // idempotency key -> prior outcome
}

func NewCardProcessor() *CardProcessor {
	return &CardProcessor{
		random:      rand.New(rand.NewSource(time.Now().UnixNano())),
		successRate: 0.95,
		captures:    make(map[string]domain.Result),
	}
}

func (p *CardProcessor) Method() string { return cardMethod }

func (p *CardProcessor) Process(ctx context.Context, attempt domain.Attempt) (domain.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// Same idempotency key, same charge: replays must not capture twice.
	if attempt.IdempotencyKey != "" {
		if prior, ok := p.captures[attempt.IdempotencyKey]; ok {
			return prior, nil
		}
	}

	ref := "ch_" + uuid.NewString()

	// A timed-out capture is pending, not failed; Verify resolves it later.
	if err := ctx.Err(); err != nil {
		result := domain.Result{
			Status:      domain.StatusPending,
			ProviderRef: ref,
			Reason:      "capture timed out",
		}
		p.remember(attempt.IdempotencyKey, result)
		return result, nil
	}

	result := domain.Result{Status: domain.StatusSucceeded, ProviderRef: ref}
	if p.random.Float64() > p.successRate {
		result = domain.Result{
			Status: domain.StatusFailed,
			Reason: "card was declined",
		}
	}
	p.remember(attempt.IdempotencyKey, result)
	return result, nil
}

func (p *CardProcessor) Verify(ctx context.Context, providerRef string) (bool, error) {
	_ = ctx

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, result := range p.captures {
		if result.ProviderRef == providerRef {
			return result.Status == domain.StatusSucceeded, nil
		}
	}
	return false, domain.ErrUnknownReference
}

func (p *CardProcessor) remember(key string, result domain.Result) {
	if key != "" {
		p.captures[key] = result
	}
}

// SetSuccessRate adjusts the simulated capture outcome, primarily for tests.
func (p *CardProcessor) SetSuccessRate(rate float64) {
	p.mu.Lock()
	if rate < 0 {
		rate = 0
	}
	if rate > 1 {
		rate = 1
	}
	p.successRate = rate
	p.mu.Unlock()
}
