package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	domcart "github.com/shoplite/checkout-engine/internal/domain/cart"
	domcatalog "github.com/shoplite/checkout-engine/internal/domain/catalog"
	dominv "github.com/shoplite/checkout-engine/internal/domain/inventory"
	domorder "github.com/shoplite/checkout-engine/internal/domain/order"
	domoutbox "github.com/shoplite/checkout-engine/internal/domain/outbox"
	dompay "github.com/shoplite/checkout-engine/internal/domain/payment"
	domship "github.com/shoplite/checkout-engine/internal/domain/shipping"
	"github.com/shoplite/checkout-engine/internal/observability"
	"github.com/shoplite/checkout-engine/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	checkoutService     = "checkout-orchestrator"
	useCaseCreateOrder  = "checkout.create_order"
	spanPrefix          = "UC."
	publishTimeout      = 300 * time.Millisecond
	defaultProcTimeout  = 10 * time.Second
	defaultTaxRateBps   = 2500
	defaultCurrency     = "EUR"
	compReleaseStock    = "release_reservation"
)

// Config carries the pricing and timeout knobs the orchestrator needs.
type Config struct {
	TaxRateBps     int64
	Currency       string
	ProcessTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.TaxRateBps <= 0 {
		c.TaxRateBps = defaultTaxRateBps
	}
	if c.Currency == "" {
		c.Currency = defaultCurrency
	}
	if c.ProcessTimeout <= 0 {
		c.ProcessTimeout = defaultProcTimeout
	}
	return c
}

// Orchestrator runs the checkout saga: validate, reserve, pay, persist, label.
// Each committed step pushes its compensation; on failure the stack is unwound
// in reverse order. Steps after payment capture are never compensated by
// reversing the capture itself.
type Orchestrator struct {
	orders     domorder.Repository
	catalog    domcatalog.Gateway
	stock      StockReserver
	processors ProcessorRegistry
	issuer     LabelIssuer
	publisher  domoutbox.Publisher
	idGen      IDGenerator
	cfg        Config

	tel     observability.Observability
	log     observability.Logger
	reqCtr  observability.Counter
	durHist observability.Histogram
	compCtr observability.Counter
}

func NewOrchestrator(
	orders domorder.Repository,
	catalogGw domcatalog.Gateway,
	stock StockReserver,
	processors ProcessorRegistry,
	issuer LabelIssuer,
	publisher domoutbox.Publisher,
	idGen IDGenerator,
	tel observability.Observability,
	cfg Config,
) *Orchestrator {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Orchestrator{
		orders:     orders,
		catalog:    catalogGw,
		stock:      stock,
		processors: processors,
		issuer:     issuer,
		publisher:  publisher,
		idGen:      idGen,
		cfg:        cfg.withDefaults(),
		tel:        tel,
		log:        tel.Logger().With(observability.F("service", checkoutService)),
		reqCtr:     tel.Metrics().Counter(observability.MUsecaseRequests),
		durHist:    tel.Metrics().Histogram(observability.MUsecaseDuration),
		compCtr:    tel.Metrics().Counter(observability.MCompensations),
	}
}

type CreateOrderInput struct {
	IdempotencyKey string
	CustomerID     string
	Cart           domcart.Snapshot
	PaymentMethod  string
	ShippingOption ShippingOption
}

// OrderConfirmation is the caller-facing result. TrackingNumber is empty while
// the label is pending; RedirectTarget is set only for redirect-style payments.
type OrderConfirmation struct {
	OrderID        string
	Status         domorder.Status
	TrackingNumber string
	RedirectTarget string
}

// CreateOrder executes the checkout saga for one validated cart.
func (o *Orchestrator) CreateOrder(ctx context.Context, cmd CreateOrderInput) (_ *OrderConfirmation, err error) {
	logger := logctx.FromOr(ctx, o.log).With(
		observability.F("use_case", useCaseCreateOrder),
		observability.F("customer_id", cmd.CustomerID),
	)

	ctx, span := o.tel.Tracer().Start(ctx, spanPrefix+"CreateOrder",
		attribute.String("use_case", useCaseCreateOrder),
		attribute.String("order.customer_id", cmd.CustomerID),
		attribute.String("payment.method", cmd.PaymentMethod),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	var orderID string

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
			observability.L("use_case", useCaseCreateOrder),
			observability.L("outcome", outcome),
		)
		o.durHist.Observe(lat,
			observability.L("use_case", useCaseCreateOrder),
		)

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", statusText),
			observability.F("latency_seconds", lat),
		}
		if orderID != "" {
			fields = append(fields, observability.F("order_id", orderID))
		}
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			fields = append(fields,
				observability.F("trace_id", sc.TraceID().String()),
				observability.F("span_id", sc.SpanID().String()),
			)
		}
		if err != nil {
			fields = append(fields, observability.F("error", err.Error()))
		}
		logger.Info("use_case_done", fields...)
	}()

	if cmd.CustomerID == "" {
		outcome, statusText = "error", "CUSTOMER_ID_REQUIRED"
		return nil, newError(CodeValidation, "customer id is required", nil)
	}
	if len(cmd.Cart.Lines()) == 0 {
		outcome, statusText = "error", "CART_EMPTY"
		return nil, newError(CodeValidation, "cart is empty", domcart.ErrEmpty)
	}

	// Idempotent replay: a retried request with the same key returns the
	// already-created order without touching inventory or payments again.
	if cmd.IdempotencyKey != "" {
		existing, repoErr := o.orders.FindByIdempotency(ctx, cmd.CustomerID, cmd.IdempotencyKey)
		switch {
		case repoErr == nil:
			orderID = existing.ID
			statusText = "IDEMPOTENT_REPLAY"
			span.AddEvent("order.idempotent_replay",
				trace.WithAttributes(attribute.String("order.id", orderID)),
			)
			return confirmationFor(existing), nil
		case errors.Is(repoErr, domorder.ErrNotFound):
			// continue
		default:
			outcome, statusText = "error", "IDEMPOTENCY_LOOKUP_FAILED"
			return nil, newError(CodePersistence, "order lookup failed", repoErr)
		}
	}

	// Method resolution happens before anything is reserved, so an unknown
	// method has zero side effects.
	processor, err := o.processors.Lookup(cmd.PaymentMethod)
	if err != nil {
		outcome, statusText = "error", "UNSUPPORTED_METHOD"
		return nil, newError(CodeUnsupportedMethod,
			fmt.Sprintf("payment method %q is not supported", cmd.PaymentMethod), err)
	}

	// Validating
	if verr := o.validateCart(ctx, cmd.Cart); verr != nil {
		outcome, statusText = "error", "CART_VALIDATION_FAILED"
		return nil, verr
	}

	totals := ComputeTotals(cmd.Cart.Subtotal(), o.cfg.TaxRateBps, cmd.ShippingOption)
	span.SetAttributes(attribute.Int64("order.total", totals.Total))

	var undo undoStack

	// Reserving
	if err := ctx.Err(); err != nil {
		outcome, statusText = "error", "ABORTED"
		return nil, newError(CodeAborted, "checkout aborted", err)
	}
	reservation, err := o.stock.Reserve(ctx, reservationLines(cmd.Cart))
	if err != nil {
		switch {
		case errors.Is(err, dominv.ErrInsufficientStock):
			outcome, statusText = "error", "INSUFFICIENT_STOCK"
			return nil, newError(CodeInsufficientStock, "not enough stock for one or more items", err)
		case errors.Is(err, dominv.ErrContention):
			outcome, statusText = "error", "INVENTORY_CONTENTION"
			return nil, newError(CodeContention, "inventory is busy, please retry", err)
		default:
			outcome, statusText = "error", "RESERVE_FAILED"
			return nil, newError(CodeInternal, "stock reservation failed", err)
		}
	}
	undo.push(compReleaseStock, func(ctx context.Context) error {
		return o.stock.Release(ctx, reservation.Token)
	})
	span.AddEvent("stock.reserved",
		trace.WithAttributes(attribute.String("reservation.token", reservation.Token)),
	)

	// Paying. An abort is honored up to here; once Process is invoked there is
	// no cancellation path, a timeout inside the processor maps to pending.
	if err := ctx.Err(); err != nil {
		outcome, statusText = "error", "ABORTED"
		undo.unwind(contextWithoutCancel(ctx), logger, o.compCtr)
		return nil, newError(CodeAborted, "checkout aborted", err)
	}

	attempt := dompay.Attempt{
		IdempotencyKey: cmd.IdempotencyKey,
		Method:         cmd.PaymentMethod,
		Amount:         totals.Total,
		Currency:       o.cfg.Currency,
		Status:         dompay.StatusPending,
	}
	payCtx, cancelPay := context.WithTimeout(ctx, o.cfg.ProcessTimeout)
	payResult, payErr := processor.Process(payCtx, attempt)
	cancelPay()

	if payErr != nil || payResult.Status == dompay.StatusFailed {
		outcome, statusText = "error", "PAYMENT_DECLINED"
		undo.unwind(contextWithoutCancel(ctx), logger, o.compCtr)
		reason := payResult.Reason
		if reason == "" {
			reason = "payment was declined"
		}
		// Provider detail stays in logs; the caller gets the sanitized reason.
		logger.Warn("payment_declined",
			observability.F("method", cmd.PaymentMethod),
			observability.F("provider_ref", payResult.ProviderRef),
			observability.F("error", errString(payErr)),
		)
		return nil, newError(CodePaymentDeclined, reason, dompay.ErrDeclined)
	}

	// Persisting. The order is created only for a captured or provider-pending
	// payment, never for a declined one.
	status := domorder.StatusConfirmed
	if payResult.Status == dompay.StatusPending {
		status = domorder.StatusPending
	}

	orderID = o.idGen.NewID()
	entity, derr := domorder.New(orderID, cmd.CustomerID, cmd.IdempotencyKey,
		orderItems(cmd.Cart), totals.Subtotal, totals.Tax, totals.Shipping, o.cfg.Currency, status)
	if derr != nil {
		outcome, statusText = "error", "DOMAIN_CONSTRUCTION_FAILED"
		undo.unwind(contextWithoutCancel(ctx), logger, o.compCtr)
		logger.Error("captured_payment_without_order",
			observability.F("provider_ref", payResult.ProviderRef),
			observability.F("error", derr.Error()),
		)
		return nil, newError(CodePersistence, "order could not be created", derr)
	}
	entity.PaymentID = payResult.ProviderRef
	entity.PaymentMethod = cmd.PaymentMethod
	if status == domorder.StatusPending {
		entity.ReservationToken = reservation.Token
	}

	if err := o.orders.Insert(ctx, entity); err != nil {
		if errors.Is(err, domorder.ErrConflict) && cmd.IdempotencyKey != "" {
			if existing, lookupErr := o.orders.FindByIdempotency(ctx, cmd.CustomerID, cmd.IdempotencyKey); lookupErr == nil {
				orderID = existing.ID
				statusText = "IDEMPOTENT_REPLAY"
				undo.unwind(contextWithoutCancel(ctx), logger, o.compCtr)
				return confirmationFor(existing), nil
			}
		}
		outcome, statusText = "error", "REPO_INSERT_FAILED"
		undo.unwind(contextWithoutCancel(ctx), logger, o.compCtr)
		// The capture is not reversed here; reconciliation owns refunds.
		logger.Error("captured_payment_without_order",
			observability.F("provider_ref", payResult.ProviderRef),
			observability.F("error", err.Error()),
		)
		return nil, newError(CodePersistence, "order could not be persisted", err)
	}

	if status == domorder.StatusPending {
		// Stock stays held under the reservation TTL until reconciliation
		// resolves the payment one way or the other.
		span.AddEvent("order.pending_payment",
			trace.WithAttributes(attribute.String("order.id", orderID)),
		)
		return &OrderConfirmation{
			OrderID:        entity.ID,
			Status:         entity.Status,
			RedirectTarget: payResult.RedirectTarget,
		}, nil
	}

	// Payment captured and order durable: the hold becomes a permanent
	// decrement. Failure here never fails the checkout; the expiry sweep and
	// the idempotent Confirm cover the retry.
	if err := o.stock.Confirm(ctx, reservation.Token); err != nil {
		logger.Error("reservation_confirm_failed",
			observability.F("order_id", entity.ID),
			observability.F("token", reservation.Token),
			observability.F("error", err.Error()),
		)
	}

	o.publish(ctx, logger, domorder.NewOrderConfirmedEvent(entity))

	// LabelIssuing
	tracking := o.issueLabel(ctx, logger, entity)

	span.SetAttributes(attribute.String("order.status", string(entity.Status)))
	span.AddEvent("order.created",
		trace.WithAttributes(attribute.String("order.id", orderID)),
	)

	return &OrderConfirmation{
		OrderID:        entity.ID,
		Status:         entity.Status,
		TrackingNumber: tracking,
	}, nil
}

// validateCart checks every line against the live catalog: the product must be
// active, the displayed price must still match, and the snapshot stock must
// cover the quantity. The first violation is returned.
func (o *Orchestrator) validateCart(ctx context.Context, snapshot domcart.Snapshot) error {
	for _, line := range snapshot.Lines() {
		product, err := o.catalog.GetProduct(ctx, line.ProductID)
		if err != nil {
			if errors.Is(err, domcatalog.ErrNotFound) {
				return newError(CodeValidation,
					fmt.Sprintf("product %s is no longer available", line.ProductID), err)
			}
			return newError(CodeInternal, "catalog lookup failed", err)
		}
		if !product.Active {
			return newError(CodeValidation,
				fmt.Sprintf("product %s is no longer available", line.ProductID), nil)
		}
		if product.Price != line.UnitPrice {
			return newError(CodeValidation,
				fmt.Sprintf("price of product %s changed, please review your cart", line.ProductID), nil)
		}
		if product.Stock < line.Quantity {
			return newError(CodeValidation,
				fmt.Sprintf("product %s does not have enough stock", line.ProductID), nil)
		}
	}
	return nil
}

// issueLabel tries inline label issuance. On failure the order is flagged for
// background retry; the payment and the order always stand.
func (o *Orchestrator) issueLabel(ctx context.Context, logger observability.Logger, entity *domorder.Order) string {
	label, err := o.issuer.Generate(ctx, entity)
	if err != nil {
		logger.Warn("label_issuance_failed",
			observability.F("order_id", entity.ID),
			observability.F("error", err.Error()),
		)
		entity.MarkLabelPending()
		if uerr := o.orders.Update(ctx, entity); uerr != nil {
			logger.Error("label_pending_flag_failed",
				observability.F("order_id", entity.ID),
				observability.F("error", uerr.Error()),
			)
		}
		o.publish(ctx, logger, domship.NewLabelPendingEvent(entity.ID, err.Error()))
		return ""
	}

	if err := entity.LabelIssued(label.TrackingNumber); err != nil {
		logger.Error("label_state_transition_failed",
			observability.F("order_id", entity.ID),
			observability.F("error", err.Error()),
		)
		return label.TrackingNumber
	}
	if err := o.orders.Update(ctx, entity); err != nil {
		logger.Error("tracking_number_update_failed",
			observability.F("order_id", entity.ID),
			observability.F("error", err.Error()),
		)
	}
	return label.TrackingNumber
}

func (o *Orchestrator) publish(ctx context.Context, logger observability.Logger, e domoutbox.Event) {
	if o.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(contextWithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := o.publisher.Publish(pubCtx, e); err != nil {
		logger.Warn("event_publish_failed",
			observability.F("event", e.EventName()),
			observability.F("error", err.Error()),
		)
	}
}

// GetOrder loads one order for the caller-facing lookup endpoint.
func (o *Orchestrator) GetOrder(ctx context.Context, id string) (*domorder.Order, error) {
	if id == "" {
		return nil, newError(CodeValidation, "order id is required", nil)
	}
	entity, err := o.orders.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domorder.ErrNotFound) {
			return nil, newError(CodeNotFound, "order not found", err)
		}
		return nil, newError(CodeInternal, "order lookup failed", err)
	}
	return entity, nil
}

func reservationLines(snapshot domcart.Snapshot) []dominv.ReservationLine {
	lines := snapshot.Lines()
	out := make([]dominv.ReservationLine, len(lines))
	for i, l := range lines {
		out[i] = dominv.ReservationLine{ProductID: l.ProductID, Quantity: l.Quantity}
	}
	return out
}

func orderItems(snapshot domcart.Snapshot) []domorder.Item {
	lines := snapshot.Lines()
	out := make([]domorder.Item, len(lines))
	for i, l := range lines {
		out[i] = domorder.Item{ProductID: l.ProductID, Quantity: l.Quantity, UnitPrice: l.UnitPrice}
	}
	return out
}

func confirmationFor(o *domorder.Order) *OrderConfirmation {
	return &OrderConfirmation{
		OrderID:        o.ID,
		Status:         o.Status,
		TrackingNumber: o.TrackingNumber,
	}
}

// contextWithoutCancel keeps values (trace, logger) while detaching from the
// caller's cancellation so compensations still run after an abort.
func contextWithoutCancel(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
