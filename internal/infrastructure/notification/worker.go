package notification

import (
	"context"
	"fmt"

	domnotif "github.com/shoplite/checkout-engine/internal/domain/notification"
	domorder "github.com/shoplite/checkout-engine/internal/domain/order"
	domoutbox "github.com/shoplite/checkout-engine/internal/domain/outbox"
	"github.com/shoplite/checkout-engine/internal/observability"
)

// Worker sends customer notifications in response to order lifecycle events.
// Delivery is fire-and-forget; a failed send never affects the order.
type Worker struct {
	repo       domorder.Repository
	gateway    domnotif.Gateway
	subscriber domoutbox.Subscriber
	log        observability.Logger
}

func NewWorker(repo domorder.Repository, gateway domnotif.Gateway, subscriber domoutbox.Subscriber, logger observability.Logger) *Worker {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Worker{
		repo:       repo,
		gateway:    gateway,
		subscriber: subscriber,
		log:        logger.With(observability.F("component", "notification_worker")),
	}
}

func (w *Worker) Start() {
	if w.subscriber == nil || w.repo == nil || w.gateway == nil {
		return
	}
	w.subscriber.Subscribe(domorder.OrderConfirmedEvent{}.EventName(), w.handleOrderConfirmed)
	w.subscriber.Subscribe(domorder.OrderCancelledEvent{}.EventName(), w.handleOrderCancelled)
}

func (w *Worker) handleOrderConfirmed(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domorder.OrderConfirmedEvent)
	if !ok {
		return nil
	}

	o, err := w.repo.Get(ctx, evt.OrderID)
	if err != nil {
		w.log.Error("order_load_failed",
			observability.F("order_id", evt.OrderID),
			observability.F("error", err),
		)
		return fmt.Errorf("notification worker: find order: %w", err)
	}

	if err := w.gateway.SendOrderConfirmation(ctx, o); err != nil {
		w.log.Warn("order_confirmation_send_failed",
			observability.F("order_id", o.ID),
			observability.F("error", err),
		)
		return nil
	}

	w.log.Info("order_confirmation_dispatched",
		observability.F("order_id", o.ID),
	)
	return nil
}

func (w *Worker) handleOrderCancelled(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domorder.OrderCancelledEvent)
	if !ok {
		return nil
	}
	// Cancellation notices are informational only.
	w.log.Info("order_cancellation_noted",
		observability.F("order_id", evt.OrderID),
		observability.F("reason", evt.Reason),
	)
	return nil
}
