package checkout

import (
	"context"

	dominv "github.com/shoplite/checkout-engine/internal/domain/inventory"
	domorder "github.com/shoplite/checkout-engine/internal/domain/order"
	dompay "github.com/shoplite/checkout-engine/internal/domain/payment"
	domship "github.com/shoplite/checkout-engine/internal/domain/shipping"
)

type IDGenerator interface {
	NewID() string
}

// StockReserver is the slice of the inventory ledger the orchestrator needs.
type StockReserver interface {
	Reserve(ctx context.Context, lines []dominv.ReservationLine) (*dominv.Reservation, error)
	Confirm(ctx context.Context, token string) error
	Release(ctx context.Context, token string) error
}

// ProcessorRegistry resolves a payment method to its processor.
type ProcessorRegistry interface {
	Lookup(method string) (dompay.Processor, error)
}

// LabelIssuer produces the shipping label for a persisted order, idempotently
// per order id.
type LabelIssuer interface {
	Generate(ctx context.Context, o *domorder.Order) (*domship.Label, error)
}
