package notification

import (
	"context"

	"github.com/shoplite/checkout-engine/internal/domain/order"
	"github.com/shoplite/checkout-engine/internal/observability"
	"github.com/shoplite/checkout-engine/internal/observability/logctx"
)

// LogGateway is a notification sender that only logs. It stands in for
// an email or push provider; swap it out behind notification.Gateway.
type LogGateway struct {
	log observability.Logger
}

func NewLogGateway(logger observability.Logger) *LogGateway {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &LogGateway{log: logger.With(observability.F("component", "notification"))}
}

func (g *LogGateway) SendOrderConfirmation(ctx context.Context, o *order.Order) error {
	logctx.FromOr(ctx, g.log).Info("order_confirmation_sent",
		observability.F("order_id", o.ID),
		observability.F("customer_id", o.CustomerID),
		observability.F("total", o.Total),
		observability.F("currency", o.Currency),
	)
	return nil
}
