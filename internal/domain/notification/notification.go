package notification

import (
	"context"

	"github.com/shoplite/checkout-engine/internal/domain/order"
)

// Gateway delivers the order confirmation to the customer. Calls are
// fire-and-forget from the checkout path: failures are logged, never
// propagated.
type Gateway interface {
	SendOrderConfirmation(ctx context.Context, o *order.Order) error
}
