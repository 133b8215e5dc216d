package payment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	domain "github.com/shoplite/checkout-engine/internal/domain/payment"
)

func TestCardProcessReplaysByIdempotencyKey(t *testing.T) {
	p := NewCardProcessor()
	p.SetSuccessRate(1)

	attempt := domain.Attempt{IdempotencyKey: "key-1", Method: "card", Amount: 1000, Currency: "EUR"}

	first, err := p.Process(context.Background(), attempt)
	require.NoError(t, err)
	require.Equal(t, domain.StatusSucceeded, first.Status)
	require.NotEmpty(t, first.ProviderRef)

	second, err := p.Process(context.Background(), attempt)
	require.NoError(t, err)
	require.Equal(t, first.ProviderRef, second.ProviderRef)
}

func TestCardProcessDecline(t *testing.T) {
	p := NewCardProcessor()
	p.SetSuccessRate(0)

	result, err := p.Process(context.Background(), domain.Attempt{IdempotencyKey: "key-1"})
	require.NoError(t, err)
	require.Equal(t, domain.StatusFailed, result.Status)
	require.NotEmpty(t, result.Reason)
}

func TestCardTimeoutMapsToPending(t *testing.T) {
	p := NewCardProcessor()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := p.Process(ctx, domain.Attempt{IdempotencyKey: "key-1"})
	require.NoError(t, err)
	require.Equal(t, domain.StatusPending, result.Status)
	require.NotEmpty(t, result.ProviderRef)
}

func TestCardVerify(t *testing.T) {
	p := NewCardProcessor()
	p.SetSuccessRate(1)

	result, err := p.Process(context.Background(), domain.Attempt{IdempotencyKey: "key-1"})
	require.NoError(t, err)

	ok, err := p.Verify(context.Background(), result.ProviderRef)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = p.Verify(context.Background(), "ch_unknown")
	require.ErrorIs(t, err, domain.ErrUnknownReference)
}

func TestWalletOpensPendingSession(t *testing.T) {
	p := NewWalletProcessor()

	result, err := p.Process(context.Background(), domain.Attempt{IdempotencyKey: "key-1"})
	require.NoError(t, err)
	require.Equal(t, domain.StatusPending, result.Status)
	require.NotEmpty(t, result.ProviderRef)
	require.Contains(t, result.RedirectTarget, result.ProviderRef)

	// Same key, same session.
	replay, err := p.Process(context.Background(), domain.Attempt{IdempotencyKey: "key-1"})
	require.NoError(t, err)
	require.Equal(t, result.ProviderRef, replay.ProviderRef)
}

func TestWalletVerifyFollowsSession(t *testing.T) {
	p := NewWalletProcessor()

	result, err := p.Process(context.Background(), domain.Attempt{IdempotencyKey: "key-1"})
	require.NoError(t, err)

	ok, err := p.Verify(context.Background(), result.ProviderRef)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, p.ConfirmSession(result.ProviderRef))
	ok, err = p.Verify(context.Background(), result.ProviderRef)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestWalletVerifyFailedSession(t *testing.T) {
	p := NewWalletProcessor()

	result, err := p.Process(context.Background(), domain.Attempt{IdempotencyKey: "key-1"})
	require.NoError(t, err)
	require.NoError(t, p.FailSession(result.ProviderRef))

	ok, err := p.Verify(context.Background(), result.ProviderRef)
	require.ErrorIs(t, err, domain.ErrDeclined)
	require.False(t, ok)

	_, err = p.Verify(context.Background(), "ws_unknown")
	require.ErrorIs(t, err, domain.ErrUnknownReference)
}

func TestBankTransferStaysPending(t *testing.T) {
	p := NewBankTransferProcessor()

	result, err := p.Process(context.Background(), domain.Attempt{IdempotencyKey: "key-1"})
	require.NoError(t, err)
	require.Equal(t, domain.StatusPending, result.Status)
	require.NotEmpty(t, result.ProviderRef)

	// Settlement is manual; Verify never confirms on its own.
	ok, verr := p.Verify(context.Background(), result.ProviderRef)
	require.NoError(t, verr)
	require.False(t, ok)

	_, verr = p.Verify(context.Background(), "BT-UNKNOWN")
	require.ErrorIs(t, verr, domain.ErrUnknownReference)
}
