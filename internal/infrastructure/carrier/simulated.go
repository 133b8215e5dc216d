package carrier

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	domain "github.com/shoplite/checkout-engine/internal/domain/shipping"
)

const defaultCarrierCode = "SLX"

// SimulatedGateway stands in for the carrier API. Failure injection mirrors
// the provider behaviors the issuer has to survive: transient outages and
// explicit rejections.
type SimulatedGateway struct {
	mu          sync.Mutex
	carrierCode string
	failNext    int
	rejectNext  bool
	purchases   int
}

func NewSimulatedGateway() *SimulatedGateway {
	return &SimulatedGateway{carrierCode: defaultCarrierCode}
}

func (g *SimulatedGateway) PurchaseLabel(ctx context.Context, shipment domain.Shipment) (*domain.PurchaseResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if shipment.OrderID == "" || shipment.WeightGrams <= 0 {
		return nil, domain.ErrCarrierRejected
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.rejectNext {
		g.rejectNext = false
		return nil, domain.ErrCarrierRejected
	}
	if g.failNext > 0 {
		g.failNext--
		return nil, domain.ErrCarrierTimeout
	}

	g.purchases++
	tracking := fmt.Sprintf("%s-%s", g.carrierCode,
		strings.ToUpper(strings.ReplaceAll(uuid.NewString()[:18], "-", "")))
	return &domain.PurchaseResult{
		TrackingNumber: tracking,
		CarrierCode:    g.carrierCode,
		LabelPDFRef:    fmt.Sprintf("labels/%s.pdf", tracking),
	}, nil
}

// FailNext makes the next n purchases fail with a transient error.
func (g *SimulatedGateway) FailNext(n int) {
	g.mu.Lock()
	g.failNext = n
	g.mu.Unlock()
}

// RejectNext makes the next purchase fail with an explicit rejection.
func (g *SimulatedGateway) RejectNext() {
	g.mu.Lock()
	g.rejectNext = true
	g.mu.Unlock()
}

// Purchases reports how many labels were actually bought.
func (g *SimulatedGateway) Purchases() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.purchases
}
