package shipping

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domcatalog "github.com/shoplite/checkout-engine/internal/domain/catalog"
	domorder "github.com/shoplite/checkout-engine/internal/domain/order"
	domship "github.com/shoplite/checkout-engine/internal/domain/shipping"
	"github.com/shoplite/checkout-engine/internal/infrastructure/carrier"
	staticcatalog "github.com/shoplite/checkout-engine/internal/infrastructure/catalog"
	"github.com/shoplite/checkout-engine/internal/infrastructure/memory"
)

func newTestIssuer(t *testing.T) (*Issuer, *carrier.SimulatedGateway, *memory.LabelStore) {
	t.Helper()
	gw := carrier.NewSimulatedGateway()
	store := memory.NewLabelStore()
	catalogGw := staticcatalog.NewStaticGateway(
		domcatalog.Product{ID: "p1", Price: 15000, WeightGrams: 800, Stock: 10, Active: true},
	)
	return NewIssuer(store, gw, catalogGw, nil), gw, store
}

func testOrder(t *testing.T) *domorder.Order {
	t.Helper()
	items := []domorder.Item{{ProductID: "p1", Quantity: 2, UnitPrice: 15000}}
	o, err := domorder.New("ord-1", "cust-1", "key-1", items, 30000, 7500, 4900, "EUR", domorder.StatusConfirmed)
	require.NoError(t, err)
	return o
}

func TestGenerateLabel(t *testing.T) {
	issuer, gw, _ := newTestIssuer(t)
	o := testOrder(t)

	label, err := issuer.Generate(context.Background(), o)
	require.NoError(t, err)
	require.Equal(t, "ord-1", label.OrderID)
	require.NotEmpty(t, label.TrackingNumber)
	require.Equal(t, "SLX", label.CarrierCode)
	require.Contains(t, label.BarcodePayload, label.TrackingNumber)
	require.Contains(t, label.BarcodePayload, "ord-1")
	require.Contains(t, label.QRPayload, label.TrackingNumber)
	require.WithinDuration(t, time.Now(), label.IssuedAt, time.Minute)
	require.Equal(t, 1, gw.Purchases())
}

func TestGenerateIsIdempotentPerOrder(t *testing.T) {
	issuer, gw, _ := newTestIssuer(t)
	o := testOrder(t)

	first, err := issuer.Generate(context.Background(), o)
	require.NoError(t, err)

	second, err := issuer.Generate(context.Background(), o)
	require.NoError(t, err)
	require.Equal(t, first.TrackingNumber, second.TrackingNumber)
	require.Equal(t, 1, gw.Purchases())
}

func TestGenerateRetriesTransientFailures(t *testing.T) {
	issuer, gw, _ := newTestIssuer(t)
	gw.FailNext(2)

	label, err := issuer.Generate(context.Background(), testOrder(t))
	require.NoError(t, err)
	require.NotEmpty(t, label.TrackingNumber)
	require.Equal(t, 1, gw.Purchases())
}

func TestGenerateGivesUpAfterRepeatedTimeouts(t *testing.T) {
	issuer, gw, _ := newTestIssuer(t)
	gw.FailNext(10)

	_, err := issuer.Generate(context.Background(), testOrder(t))
	require.ErrorIs(t, err, domship.ErrCarrierTimeout)
}

func TestGenerateNeverRetriesRejection(t *testing.T) {
	issuer, gw, _ := newTestIssuer(t)
	gw.RejectNext()

	_, err := issuer.Generate(context.Background(), testOrder(t))
	require.ErrorIs(t, err, domship.ErrCarrierRejected)
	require.Zero(t, gw.Purchases())
}

func TestGenerateUsesFallbackWeight(t *testing.T) {
	gw := carrier.NewSimulatedGateway()
	store := memory.NewLabelStore()
	// Catalog without the product: the per-item estimate keeps shipping viable.
	issuer := NewIssuer(store, gw, staticcatalog.NewStaticGateway(), nil)

	items := []domorder.Item{{ProductID: "ghost", Quantity: 3, UnitPrice: 100}}
	o, err := domorder.New("ord-2", "cust-1", "key-2", items, 300, 75, 0, "EUR", domorder.StatusConfirmed)
	require.NoError(t, err)

	label, gerr := issuer.Generate(context.Background(), o)
	require.NoError(t, gerr)
	require.NotEmpty(t, label.TrackingNumber)
}
