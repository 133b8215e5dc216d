package checkout

import (
	"context"
	"errors"
	"time"

	dominv "github.com/shoplite/checkout-engine/internal/domain/inventory"
	domorder "github.com/shoplite/checkout-engine/internal/domain/order"
	dompay "github.com/shoplite/checkout-engine/internal/domain/payment"
	"github.com/shoplite/checkout-engine/internal/observability"
	"github.com/shoplite/checkout-engine/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	useCaseReconcile = "checkout.reconcile_payment"

	// Verify is idempotent, so a small bounded retry is safe. Process never
	// gets the same treatment.
	verifyAttempts = 3
	verifyBackoff  = 200 * time.Millisecond
)

// ReconcilePendingPayment resolves a provider-pending order by asking the
// processor to verify the capture. On confirmation the order advances to
// confirmed, the stock hold becomes permanent and the label is issued (at most
// once, issuance being idempotent per order id). On a provider-reported
// decline the order is cancelled and the hold released. A still-undecided
// payment leaves everything untouched.
func (o *Orchestrator) ReconcilePendingPayment(ctx context.Context, orderID string) (err error) {
	logger := logctx.FromOr(ctx, o.log).With(
		observability.F("use_case", useCaseReconcile),
		observability.F("order_id", orderID),
	)

	ctx, span := o.tel.Tracer().Start(ctx, spanPrefix+"ReconcilePayment",
		attribute.String("use_case", useCaseReconcile),
		attribute.String("order.id", orderID),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"

	defer func() {
		lat := time.Since(start).Seconds()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, statusText)
		} else {
			span.SetStatus(codes.Ok, statusText)
		}
		span.End()

		o.reqCtr.Add(1,
			observability.L("use_case", useCaseReconcile),
			observability.L("outcome", outcome),
		)
		o.durHist.Observe(lat,
			observability.L("use_case", useCaseReconcile),
		)

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", statusText),
			observability.F("latency_seconds", lat),
		}
		if err != nil {
			fields = append(fields, observability.F("error", err.Error()))
		}
		logger.Info("use_case_done", fields...)
	}()

	entity, err := o.orders.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, domorder.ErrNotFound) {
			outcome, statusText = "error", "ORDER_NOT_FOUND"
			return newError(CodeNotFound, "order not found", err)
		}
		outcome, statusText = "error", "ORDER_LOAD_FAILED"
		return newError(CodeInternal, "order lookup failed", err)
	}

	if entity.Status != domorder.StatusPending {
		// Already resolved; reconciliation is a no-op replay.
		statusText = "ALREADY_RESOLVED"
		return nil
	}

	processor, err := o.processors.Lookup(entity.PaymentMethod)
	if err != nil {
		outcome, statusText = "error", "UNSUPPORTED_METHOD"
		return newError(CodeUnsupportedMethod, "payment method no longer registered", err)
	}

	confirmed, verr := o.verifyWithRetry(ctx, processor, entity.PaymentID)
	switch {
	case errors.Is(verr, dompay.ErrDeclined):
		statusText = "PAYMENT_FAILED"
		return o.cancelPendingOrder(ctx, logger, entity, "payment failed at provider")
	case verr != nil:
		outcome, statusText = "error", "VERIFY_FAILED"
		return newError(CodeInternal, "payment verification failed", verr)
	case !confirmed:
		// Undecided, e.g. a bank transfer awaiting manual reconciliation.
		// Nothing transitions; the next background run asks again.
		statusText = "STILL_PENDING"
		logger.Debug("payment_still_pending",
			observability.F("method", entity.PaymentMethod),
		)
		return nil
	}

	if terr := entity.PaymentConfirmed(); terr != nil {
		outcome, statusText = "error", "STATE_TRANSITION_FAILED"
		return newError(CodeInternal, "order state transition failed", terr)
	}

	o.confirmHeldStock(ctx, logger, entity)
	entity.ReservationToken = ""

	if uerr := o.orders.Update(ctx, entity); uerr != nil {
		outcome, statusText = "error", "ORDER_UPDATE_FAILED"
		return newError(CodePersistence, "order update failed", uerr)
	}

	o.publish(ctx, logger, domorder.NewOrderConfirmedEvent(entity))
	o.issueLabel(ctx, logger, entity)

	span.AddEvent("order.reconciled",
		trace.WithAttributes(attribute.String("order.id", entity.ID)),
	)
	return nil
}

// confirmHeldStock turns the pending hold into a permanent decrement. When the
// hold already expired, the items are re-reserved best effort; the order is
// confirmed either way because the money has been captured.
func (o *Orchestrator) confirmHeldStock(ctx context.Context, logger observability.Logger, entity *domorder.Order) {
	token := entity.ReservationToken
	if token == "" {
		return
	}
	err := o.stock.Confirm(ctx, token)
	if err == nil {
		return
	}
	if errors.Is(err, dominv.ErrAlreadyReleased) || errors.Is(err, dominv.ErrTokenNotFound) {
		lines := make([]dominv.ReservationLine, len(entity.Items))
		for i, item := range entity.Items {
			lines[i] = dominv.ReservationLine{ProductID: item.ProductID, Quantity: item.Quantity}
		}
		res, rerr := o.stock.Reserve(ctx, lines)
		if rerr == nil {
			if cerr := o.stock.Confirm(ctx, res.Token); cerr == nil {
				return
			}
		}
		logger.Error("expired_hold_reconfirm_failed",
			observability.F("order_id", entity.ID),
			observability.F("error", errString(rerr)),
		)
		return
	}
	logger.Error("reservation_confirm_failed",
		observability.F("order_id", entity.ID),
		observability.F("token", token),
		observability.F("error", err.Error()),
	)
}

func (o *Orchestrator) cancelPendingOrder(ctx context.Context, logger observability.Logger, entity *domorder.Order, reason string) error {
	if entity.ReservationToken != "" {
		if rerr := o.stock.Release(ctx, entity.ReservationToken); rerr != nil && !errors.Is(rerr, dominv.ErrTokenNotFound) {
			logger.Error("reservation_release_failed",
				observability.F("order_id", entity.ID),
				observability.F("error", rerr.Error()),
			)
		}
	}
	if terr := entity.Cancelled(reason); terr != nil {
		return newError(CodeInternal, "order state transition failed", terr)
	}
	entity.ReservationToken = ""
	if uerr := o.orders.Update(ctx, entity); uerr != nil {
		return newError(CodePersistence, "order update failed", uerr)
	}
	o.publish(ctx, logger, domorder.NewOrderCancelledEvent(entity, reason))
	return nil
}

func (o *Orchestrator) verifyWithRetry(ctx context.Context, processor dompay.Processor, providerRef string) (bool, error) {
	var lastErr error
	for attempt := 0; attempt < verifyAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(verifyBackoff * time.Duration(attempt)):
			}
		}
		ok, err := processor.Verify(ctx, providerRef)
		if err == nil {
			return ok, nil
		}
		if errors.Is(err, dompay.ErrDeclined) || errors.Is(err, dompay.ErrUnknownReference) {
			return false, err
		}
		lastErr = err
	}
	return false, lastErr
}
