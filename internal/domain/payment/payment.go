package payment

import (
	"context"
	"errors"
)

var (
	ErrUnsupportedMethod = errors.New("payment: unsupported payment method")
	ErrDeclined          = errors.New("payment: declined by provider")
	ErrUnknownReference  = errors.New("payment: unknown provider reference")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Attempt describes one payment capture request. The idempotency key is
// derived from the order-creation request and is never regenerated on retry,
// so a replayed Process call maps to the same provider-side charge.
type Attempt struct {
	IdempotencyKey string
	Method         string
	Amount         int64
	Currency       string
	Status         Status
	ProviderRef    string
}

// Result is the provider outcome of a Process call. RedirectTarget is set only
// by redirect/push style processors while the attempt is pending.
type Result struct {
	Status         Status
	ProviderRef    string
	RedirectTarget string
	Reason         string
}

// Processor is the common capability shared by all payment variants.
// Process must never be retried automatically; a timeout during capture maps
// to a pending result resolved later through Verify.
type Processor interface {
	Method() string
	Process(ctx context.Context, attempt Attempt) (Result, error)
	Verify(ctx context.Context, providerRef string) (bool, error)
}
