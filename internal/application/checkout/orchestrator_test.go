package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	appinventory "github.com/shoplite/checkout-engine/internal/application/inventory"
	apppayment "github.com/shoplite/checkout-engine/internal/application/payment"
	appshipping "github.com/shoplite/checkout-engine/internal/application/shipping"
	domcart "github.com/shoplite/checkout-engine/internal/domain/cart"
	domcatalog "github.com/shoplite/checkout-engine/internal/domain/catalog"
	domorder "github.com/shoplite/checkout-engine/internal/domain/order"
	domoutbox "github.com/shoplite/checkout-engine/internal/domain/outbox"
	"github.com/shoplite/checkout-engine/internal/infrastructure/carrier"
	staticcatalog "github.com/shoplite/checkout-engine/internal/infrastructure/catalog"
	"github.com/shoplite/checkout-engine/internal/infrastructure/memory"
	infrapayment "github.com/shoplite/checkout-engine/internal/infrastructure/payment"
)

type seqIDGen struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDGen) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("id-%d", g.n)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domoutbox.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e domoutbox.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventName())
	}
	return out
}

type checkoutEnv struct {
	orch    *Orchestrator
	orders  *memory.OrderRepository
	invRepo *memory.InventoryRepository
	ledger  *appinventory.Ledger
	catalog *staticcatalog.StaticGateway
	card    *infrapayment.CardProcessor
	wallet  *infrapayment.WalletProcessor
	carrier *carrier.SimulatedGateway
	labels  *memory.LabelStore
	events  *recordingPublisher
}

func newCheckoutEnv(t *testing.T) *checkoutEnv {
	t.Helper()

	env := &checkoutEnv{
		orders:  memory.NewOrderRepository(),
		invRepo: memory.NewInventoryRepository(),
		catalog: staticcatalog.NewStaticGateway(
			domcatalog.Product{ID: "p1", Price: 15000, WeightGrams: 800, Stock: 10, Active: true},
			domcatalog.Product{ID: "p2", Price: 4500, WeightGrams: 250, Stock: 100, Active: true},
			domcatalog.Product{ID: "inactive", Price: 1000, Stock: 10, Active: false},
		),
		card:    infrapayment.NewCardProcessor(),
		wallet:  infrapayment.NewWalletProcessor(),
		carrier: carrier.NewSimulatedGateway(),
		labels:  memory.NewLabelStore(),
		events:  &recordingPublisher{},
	}
	env.invRepo.Seed("p1", 10)
	env.invRepo.Seed("p2", 100)
	env.card.SetSuccessRate(1)

	ids := &seqIDGen{}
	env.ledger = appinventory.NewLedger(env.invRepo, ids, nil)
	issuer := appshipping.NewIssuer(env.labels, env.carrier, env.catalog, nil)
	processors := apppayment.NewRegistry(env.card, env.wallet, infrapayment.NewBankTransferProcessor())

	env.orch = NewOrchestrator(
		env.orders, env.catalog, env.ledger, processors, issuer, env.events, ids, nil, Config{},
	)
	return env
}

func (e *checkoutEnv) stockLevels(t *testing.T, productID string) (available, reserved int) {
	t.Helper()
	rec, err := e.invRepo.Get(context.Background(), productID)
	require.NoError(t, err)
	return rec.Available, rec.Reserved
}

func mustCart(t *testing.T, lines ...domcart.Line) domcart.Snapshot {
	t.Helper()
	snapshot, err := domcart.NewSnapshot(lines)
	require.NoError(t, err)
	return snapshot
}

func standardInput(t *testing.T) CreateOrderInput {
	return CreateOrderInput{
		IdempotencyKey: "key-1",
		CustomerID:     "cust-1",
		Cart:           mustCart(t, domcart.Line{ProductID: "p1", Quantity: 3, UnitPrice: 15000}),
		PaymentMethod:  "card",
		ShippingOption: ShippingOption{Code: "standard", Cost: 4900},
	}
}

func TestCreateOrderSuccess(t *testing.T) {
	env := newCheckoutEnv(t)

	result, err := env.orch.CreateOrder(context.Background(), standardInput(t))
	require.NoError(t, err)
	require.Equal(t, domorder.StatusConfirmed, result.Status)
	require.NotEmpty(t, result.OrderID)
	require.NotEmpty(t, result.TrackingNumber)
	require.Empty(t, result.RedirectTarget)

	entity, err := env.orders.Get(context.Background(), result.OrderID)
	require.NoError(t, err)
	require.Equal(t, int64(45000), entity.Subtotal)
	require.Equal(t, int64(11250), entity.Tax)
	require.Equal(t, int64(4900), entity.ShippingCost)
	require.Equal(t, int64(61150), entity.Total)
	require.Equal(t, "EUR", entity.Currency)
	require.Equal(t, result.TrackingNumber, entity.TrackingNumber)
	require.False(t, entity.LabelPending)
	require.NotEmpty(t, entity.PaymentID)
	require.Empty(t, entity.ReservationToken)

	available, reserved := env.stockLevels(t, "p1")
	require.Equal(t, 7, available)
	require.Equal(t, 0, reserved)

	require.Contains(t, env.events.names(), domorder.OrderConfirmedEvent{}.EventName())
	require.Equal(t, 1, env.carrier.Purchases())
}

func TestCreateOrderPaymentDeclined(t *testing.T) {
	env := newCheckoutEnv(t)
	env.card.SetSuccessRate(0)

	_, err := env.orch.CreateOrder(context.Background(), standardInput(t))
	ce, ok := AsError(err)
	require.True(t, ok)
	require.Equal(t, CodePaymentDeclined, ce.Code)

	// No order exists and the hold was released.
	_, err = env.orders.FindByIdempotency(context.Background(), "cust-1", "key-1")
	require.ErrorIs(t, err, domorder.ErrNotFound)

	available, reserved := env.stockLevels(t, "p1")
	require.Equal(t, 10, available)
	require.Equal(t, 0, reserved)

	require.Empty(t, env.events.names())
	require.Zero(t, env.carrier.Purchases())
}

func TestCreateOrderInsufficientStock(t *testing.T) {
	env := newCheckoutEnv(t)
	// The catalog snapshot still advertises stock, but the ledger is drained.
	env.invRepo.Seed("p1", 2)

	_, err := env.orch.CreateOrder(context.Background(), standardInput(t))
	ce, ok := AsError(err)
	require.True(t, ok)
	require.Equal(t, CodeInsufficientStock, ce.Code)

	available, reserved := env.stockLevels(t, "p1")
	require.Equal(t, 2, available)
	require.Equal(t, 0, reserved)
}

func TestCreateOrderPriceDrift(t *testing.T) {
	env := newCheckoutEnv(t)

	input := standardInput(t)
	input.Cart = mustCart(t, domcart.Line{ProductID: "p1", Quantity: 1, UnitPrice: 13000})

	_, err := env.orch.CreateOrder(context.Background(), input)
	ce, ok := AsError(err)
	require.True(t, ok)
	require.Equal(t, CodeValidation, ce.Code)

	available, reserved := env.stockLevels(t, "p1")
	require.Equal(t, 10, available)
	require.Equal(t, 0, reserved)
}

func TestCreateOrderInactiveProduct(t *testing.T) {
	env := newCheckoutEnv(t)

	input := standardInput(t)
	input.Cart = mustCart(t, domcart.Line{ProductID: "inactive", Quantity: 1, UnitPrice: 1000})

	_, err := env.orch.CreateOrder(context.Background(), input)
	ce, ok := AsError(err)
	require.True(t, ok)
	require.Equal(t, CodeValidation, ce.Code)
}

func TestCreateOrderUnsupportedMethod(t *testing.T) {
	env := newCheckoutEnv(t)

	input := standardInput(t)
	input.PaymentMethod = "crypto"

	_, err := env.orch.CreateOrder(context.Background(), input)
	ce, ok := AsError(err)
	require.True(t, ok)
	require.Equal(t, CodeUnsupportedMethod, ce.Code)

	// Resolution happens before reservation, so nothing was held.
	available, reserved := env.stockLevels(t, "p1")
	require.Equal(t, 10, available)
	require.Equal(t, 0, reserved)
}

func TestCreateOrderMissingCustomer(t *testing.T) {
	env := newCheckoutEnv(t)

	input := standardInput(t)
	input.CustomerID = ""

	_, err := env.orch.CreateOrder(context.Background(), input)
	ce, ok := AsError(err)
	require.True(t, ok)
	require.Equal(t, CodeValidation, ce.Code)
}

func TestCreateOrderIdempotentReplay(t *testing.T) {
	env := newCheckoutEnv(t)

	first, err := env.orch.CreateOrder(context.Background(), standardInput(t))
	require.NoError(t, err)

	second, err := env.orch.CreateOrder(context.Background(), standardInput(t))
	require.NoError(t, err)
	require.Equal(t, first.OrderID, second.OrderID)

	// One reservation, one capture, one label.
	available, reserved := env.stockLevels(t, "p1")
	require.Equal(t, 7, available)
	require.Equal(t, 0, reserved)
	require.Equal(t, 1, env.carrier.Purchases())
}

func TestCreateOrderAborted(t *testing.T) {
	env := newCheckoutEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := env.orch.CreateOrder(ctx, standardInput(t))
	ce, ok := AsError(err)
	require.True(t, ok)
	require.Equal(t, CodeAborted, ce.Code)

	available, reserved := env.stockLevels(t, "p1")
	require.Equal(t, 10, available)
	require.Equal(t, 0, reserved)
}

type insertFailRepo struct {
	domorder.Repository
}

func (insertFailRepo) Insert(context.Context, *domorder.Order) error {
	return errors.New("storage unavailable")
}

func TestCreateOrderPersistFailureReleasesStock(t *testing.T) {
	env := newCheckoutEnv(t)
	env.orch.orders = insertFailRepo{Repository: env.orders}

	_, err := env.orch.CreateOrder(context.Background(), standardInput(t))
	ce, ok := AsError(err)
	require.True(t, ok)
	require.Equal(t, CodePersistence, ce.Code)

	// The hold is compensated; the capture itself is never auto-refunded.
	available, reserved := env.stockLevels(t, "p1")
	require.Equal(t, 10, available)
	require.Equal(t, 0, reserved)
}

func TestCreateOrderLabelFailureKeepsOrderConfirmed(t *testing.T) {
	env := newCheckoutEnv(t)
	env.carrier.RejectNext()

	result, err := env.orch.CreateOrder(context.Background(), standardInput(t))
	require.NoError(t, err)
	require.Equal(t, domorder.StatusConfirmed, result.Status)
	require.Empty(t, result.TrackingNumber)

	entity, err := env.orders.Get(context.Background(), result.OrderID)
	require.NoError(t, err)
	require.True(t, entity.LabelPending)
	require.Contains(t, env.events.names(), "shipping.label_pending")

	// Stock was still committed; only the label is outstanding.
	available, reserved := env.stockLevels(t, "p1")
	require.Equal(t, 7, available)
	require.Equal(t, 0, reserved)
}

func TestCreateOrderWalletIsPending(t *testing.T) {
	env := newCheckoutEnv(t)

	input := standardInput(t)
	input.PaymentMethod = "wallet"

	result, err := env.orch.CreateOrder(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, domorder.StatusPending, result.Status)
	require.NotEmpty(t, result.RedirectTarget)
	require.Empty(t, result.TrackingNumber)

	entity, err := env.orders.Get(context.Background(), result.OrderID)
	require.NoError(t, err)
	require.Equal(t, domorder.StatusPending, entity.Status)
	require.NotEmpty(t, entity.ReservationToken)

	// The hold stays in place until reconciliation resolves the payment.
	available, reserved := env.stockLevels(t, "p1")
	require.Equal(t, 7, available)
	require.Equal(t, 3, reserved)

	require.NotContains(t, env.events.names(), domorder.OrderConfirmedEvent{}.EventName())
	require.Zero(t, env.carrier.Purchases())
}

func TestGetOrder(t *testing.T) {
	env := newCheckoutEnv(t)

	result, err := env.orch.CreateOrder(context.Background(), standardInput(t))
	require.NoError(t, err)

	entity, err := env.orch.GetOrder(context.Background(), result.OrderID)
	require.NoError(t, err)
	require.Equal(t, result.OrderID, entity.ID)

	_, err = env.orch.GetOrder(context.Background(), "missing")
	ce, ok := AsError(err)
	require.True(t, ok)
	require.Equal(t, CodeNotFound, ce.Code)
}
