package payment

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	domain "github.com/shoplite/checkout-engine/internal/domain/payment"
)

const walletMethod = "wallet"

type walletSessionState string

const (
	walletSessionPending   walletSessionState = "pending"
	walletSessionConfirmed walletSessionState = "confirmed"
	walletSessionFailed    walletSessionState = "failed"
)

// WalletProcessor simulates a redirect/push provider: Process opens a hosted
// session and returns pending with the redirect target; the final outcome is
// only known once the customer approves or abandons the session, which the
// caller learns through Verify.
type WalletProcessor struct {
	mu       sync.Mutex
	sessions map[string]walletSessionState // provider ref -> state
	byKey    map[string]domain.Result      // idempotency key -> prior session
}

func NewWalletProcessor() *WalletProcessor {
	return &WalletProcessor{
		sessions: make(map[string]walletSessionState),
		byKey:    make(map[string]domain.Result),
	}
}

func (p *WalletProcessor) Method() string { return walletMethod }

func (p *WalletProcessor) Process(ctx context.Context, attempt domain.Attempt) (domain.Result, error) {
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

	ref := "ws_" + uuid.NewString()
	p.sessions[ref] = walletSessionPending

	result := domain.Result{
		Status:         domain.StatusPending,
		ProviderRef:    ref,
		RedirectTarget: fmt.Sprintf("https://pay.wallet.example/session/%s", ref),
	}
	if attempt.IdempotencyKey != "" {
		p.byKey[attempt.IdempotencyKey] = result
	}
	return result, nil
}

func (p *WalletProcessor) Verify(ctx context.Context, providerRef string) (bool, error) {
	_ = ctx

	p.mu.Lock()
	defer p.mu.Unlock()

	state, ok := p.sessions[providerRef]
	if !ok {
		return false, domain.ErrUnknownReference
	}
	switch state {
	case walletSessionConfirmed:
		return true, nil
	case walletSessionFailed:
		return false, domain.ErrDeclined
	default:
		return false, nil
	}
}

// ConfirmSession marks a hosted session as approved, as the provider webhook
// would.
func (p *WalletProcessor) ConfirmSession(providerRef string) error {
	return p.resolve(providerRef, walletSessionConfirmed)
}

// FailSession marks a hosted session as abandoned or rejected.
func (p *WalletProcessor) FailSession(providerRef string) error {
	return p.resolve(providerRef, walletSessionFailed)
}

func (p *WalletProcessor) resolve(providerRef string, state walletSessionState) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.sessions[providerRef]; !ok {
		return domain.ErrUnknownReference
	}
	p.sessions[providerRef] = state
	return nil
}
