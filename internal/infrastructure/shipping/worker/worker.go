package worker

import (
	"context"
	"fmt"
	"time"

	domorder "github.com/shoplite/checkout-engine/internal/domain/order"
	domoutbox "github.com/shoplite/checkout-engine/internal/domain/outbox"
	domship "github.com/shoplite/checkout-engine/internal/domain/shipping"
	"github.com/shoplite/checkout-engine/internal/observability"
)

// LabelIssuer is the slice of the issuance use case the worker needs.
type LabelIssuer interface {
	Generate(ctx context.Context, o *domorder.Order) (*domship.Label, error)
}

// Worker retries label issuance for orders whose inline issuance failed.
// It reacts to label-pending events and additionally sweeps the repository
// on an interval so pending orders survive a process restart.
type Worker struct {
	repo       domorder.Repository
	issuer     LabelIssuer
	subscriber domoutbox.Subscriber
	log        observability.Logger

	sweepEvery time.Duration
}

func New(repo domorder.Repository, issuer LabelIssuer, subscriber domoutbox.Subscriber, logger observability.Logger) *Worker {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Worker{
		repo:       repo,
		issuer:     issuer,
		subscriber: subscriber,
		log:        logger.With(observability.F("component", "shipping_worker")),
		sweepEvery: time.Minute,
	}
}

func (w *Worker) Start(ctx context.Context) {
	if w.repo == nil || w.issuer == nil {
		return
	}
	if w.subscriber != nil {
		w.subscriber.Subscribe(domship.LabelPendingEvent{}.EventName(), w.handleLabelPending)
	}
	go w.sweepLoop(ctx)
}

func (w *Worker) handleLabelPending(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domship.LabelPendingEvent)
	if !ok {
		return nil
	}

	o, err := w.repo.Get(ctx, evt.OrderID)
	if err != nil {
		w.log.Error("order_load_failed",
			observability.F("order_id", evt.OrderID),
			observability.F("error", err),
		)
		return fmt.Errorf("shipping worker: find order: %w", err)
	}

	return w.issue(ctx, o)
}

func (w *Worker) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(w.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep retries issuance for every order still waiting on a label.
func (w *Worker) Sweep(ctx context.Context) {
	pending, err := w.repo.ListPendingLabels(ctx)
	if err != nil {
		w.log.Error("pending_label_sweep_failed", observability.F("error", err))
		return
	}
	for _, o := range pending {
		if err := w.issue(ctx, o); err != nil {
			w.log.Warn("label_retry_failed",
				observability.F("order_id", o.ID),
				observability.F("error", err),
			)
		}
	}
}

func (w *Worker) issue(ctx context.Context, o *domorder.Order) error {
	if !o.LabelPending {
		return nil
	}

	label, err := w.issuer.Generate(ctx, o)
	if err != nil {
		return fmt.Errorf("shipping worker: generate label: %w", err)
	}

	if err := o.LabelIssued(label.TrackingNumber); err != nil {
		w.log.Error("order_state_transition_failed",
			observability.F("order_id", o.ID),
			observability.F("error", err),
		)
		return fmt.Errorf("shipping worker: label issued transition: %w", err)
	}

	if err := w.repo.Update(ctx, o); err != nil {
		w.log.Error("order_update_failed",
			observability.F("order_id", o.ID),
			observability.F("error", err),
		)
		return fmt.Errorf("shipping worker: update order: %w", err)
	}

	w.log.Info("label_issued_after_retry",
		observability.F("order_id", o.ID),
		observability.F("tracking_number", label.TrackingNumber),
	)
	return nil
}
