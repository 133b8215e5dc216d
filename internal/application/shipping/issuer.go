package shipping

import (
	"context"
	"errors"
	"fmt"
	"time"

	domcatalog "github.com/shoplite/checkout-engine/internal/domain/catalog"
	domorder "github.com/shoplite/checkout-engine/internal/domain/order"
	domship "github.com/shoplite/checkout-engine/internal/domain/shipping"
	"github.com/shoplite/checkout-engine/internal/observability"
	"github.com/shoplite/checkout-engine/internal/observability/logctx"
)

const (
	issuerService = "shipping-label-issuer"
	carrierPeer   = "carrier"
	carrierOp     = "purchase_label"

	// Per-item estimate used when the catalog has no weight on record.
	fallbackItemWeightGrams = 500

	purchaseAttempts = 3
	purchaseBackoff  = 250 * time.Millisecond
)

// Issuer turns a persisted order into a shipping label. Generation is
// idempotent per order id: an existing label is returned unchanged and a
// second tracking number is never purchased.
type Issuer struct {
	store   domship.Store
	carrier domship.CarrierGateway
	catalog domcatalog.Gateway

	log     observability.Logger
	extCtr  observability.Counter
	extHist observability.Histogram
}

func NewIssuer(store domship.Store, carrier domship.CarrierGateway, catalogGw domcatalog.Gateway, tel observability.Observability) *Issuer {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Issuer{
		store:   store,
		carrier: carrier,
		catalog: catalogGw,
		log:     tel.Logger().With(observability.F("service", issuerService)),
		extCtr:  tel.Metrics().Counter(observability.MExternalRequests),
		extHist: tel.Metrics().Histogram(observability.MExternalRequestDuration),
	}
}

func (i *Issuer) Generate(ctx context.Context, o *domorder.Order) (*domship.Label, error) {
	logger := logctx.FromOr(ctx, i.log).With(observability.F("order_id", o.ID))

	existing, err := i.store.Get(ctx, o.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domship.ErrLabelNotFound) {
		return nil, fmt.Errorf("shipping: label lookup: %w", err)
	}

	shipment := domship.Shipment{
		OrderID:     o.ID,
		WeightGrams: i.packageWeight(ctx, o),
		ItemCount:   itemCount(o),
	}

	result, err := i.purchaseWithRetry(ctx, shipment)
	if err != nil {
		return nil, err
	}

	label := &domship.Label{
		OrderID:        o.ID,
		TrackingNumber: result.TrackingNumber,
		CarrierCode:    result.CarrierCode,
		LabelPDFRef:    result.LabelPDFRef,
		BarcodePayload: fmt.Sprintf("%s|%s|%s", result.CarrierCode, result.TrackingNumber, o.ID),
		QRPayload:      fmt.Sprintf("https://track.shoplite.example/%s", result.TrackingNumber),
		IssuedAt:       time.Now().UTC(),
	}

	if err := i.store.Put(ctx, label); err != nil {
		if errors.Is(err, domship.ErrLabelExists) {
			// A concurrent issuance won the race; its tracking number wins so
			// the order keeps a single one. The extra purchase is logged for
			// carrier-side reconciliation.
			logger.Warn("duplicate_label_purchase",
				observability.F("discarded_tracking", result.TrackingNumber),
			)
			return i.store.Get(ctx, o.ID)
		}
		return nil, fmt.Errorf("shipping: store label: %w", err)
	}

	logger.Info("label_issued",
		observability.F("tracking_number", label.TrackingNumber),
		observability.F("carrier", label.CarrierCode),
		observability.F("weight_grams", shipment.WeightGrams),
	)
	return label, nil
}

// packageWeight sums catalog weights per line, falling back to a fixed
// per-item estimate when the catalog has none.
func (i *Issuer) packageWeight(ctx context.Context, o *domorder.Order) int {
	var total int
	for _, item := range o.Items {
		grams := fallbackItemWeightGrams
		if product, err := i.catalog.GetProduct(ctx, item.ProductID); err == nil && product.WeightGrams > 0 {
			grams = product.WeightGrams
		}
		total += grams * item.Quantity
	}
	return total
}

// purchaseWithRetry retries transient carrier failures with a bounded backoff.
// An explicit rejection is surfaced immediately, never retried.
func (i *Issuer) purchaseWithRetry(ctx context.Context, shipment domship.Shipment) (*domship.PurchaseResult, error) {
	var lastErr error
	for attempt := 0; attempt < purchaseAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(purchaseBackoff * time.Duration(attempt)):
			}
		}

		start := time.Now()
		result, err := i.carrier.PurchaseLabel(ctx, shipment)
		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		i.extCtr.Add(1,
			observability.L("peer", carrierPeer),
			observability.L("endpoint", carrierOp),
			observability.L("outcome", outcome),
		)
		i.extHist.Observe(time.Since(start).Seconds(),
			observability.L("peer", carrierPeer),
			observability.L("endpoint", carrierOp),
		)

		if err == nil {
			return result, nil
		}
		if errors.Is(err, domship.ErrCarrierRejected) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("shipping: carrier unavailable: %w", lastErr)
}

func itemCount(o *domorder.Order) int {
	var n int
	for _, item := range o.Items {
		n += item.Quantity
	}
	return n
}
