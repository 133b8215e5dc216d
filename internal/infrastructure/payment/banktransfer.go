package payment

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	domain "github.com/shoplite/checkout-engine/internal/domain/payment"
)

const bankTransferMethod = "banktransfer"

// BankTransferProcessor simulates a manual/deferred provider. Process hands
// out a human-readable payment reference and the attempt stays pending; Verify
// reports false until an operator reconciles the transfer out of band. This
// processor never resolves on its own.
type BankTransferProcessor struct {
	mu    sync.Mutex
	refs  map[string]struct{}
	byKey map[string]domain.Result
}

func NewBankTransferProcessor() *BankTransferProcessor {
	return &BankTransferProcessor{
		refs:  make(map[string]struct{}),
		byKey: make(map[string]domain.Result),
	}
}

func (p *BankTransferProcessor) Method() string { return bankTransferMethod }

func (p *BankTransferProcessor) Process(ctx context.Context, attempt domain.Attempt) (domain.Result, error) {
	if err := ctx.Err(); err != nil {
		return domain.Result{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if attempt.IdempotencyKey != "" {
		if prior, ok := p.byKey[attempt.IdempotencyKey]; ok {
			return prior, nil
		}
	}

	ref := "BT-" + strings.ToUpper(uuid.NewString()[:8])
	p.refs[ref] = struct{}{}

	result := domain.Result{
		Status:      domain.StatusPending,
		ProviderRef: ref,
		Reason:      "awaiting bank transfer " + ref,
	}
	if attempt.IdempotencyKey != "" {
		p.byKey[attempt.IdempotencyKey] = result
	}
	return result, nil
}

func (p *BankTransferProcessor) Verify(ctx context.Context, providerRef string) (bool, error) {
	_ = ctx

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.refs[providerRef]; !ok {
		return false, domain.ErrUnknownReference
	}
	return false, nil
}
