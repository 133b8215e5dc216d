package checkout

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	domorder "github.com/shoplite/checkout-engine/internal/domain/order"
)

func pendingWalletOrder(t *testing.T, env *checkoutEnv) *domorder.Order {
	t.Helper()

	input := standardInput(t)
	input.PaymentMethod = "wallet"

	result, err := env.orch.CreateOrder(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, domorder.StatusPending, result.Status)

	entity, err := env.orders.Get(context.Background(), result.OrderID)
	require.NoError(t, err)
	return entity
}

func TestReconcileConfirmsApprovedWalletPayment(t *testing.T) {
	env := newCheckoutEnv(t)
	entity := pendingWalletOrder(t, env)

	require.NoError(t, env.wallet.ConfirmSession(entity.PaymentID))
	require.NoError(t, env.orch.ReconcilePendingPayment(context.Background(), entity.ID))

	updated, err := env.orders.Get(context.Background(), entity.ID)
	require.NoError(t, err)
	require.Equal(t, domorder.StatusConfirmed, updated.Status)
	require.NotEmpty(t, updated.TrackingNumber)
	require.Empty(t, updated.ReservationToken)

	available, reserved := env.stockLevels(t, "p1")
	require.Equal(t, 7, available)
	require.Equal(t, 0, reserved)

	require.Contains(t, env.events.names(), domorder.OrderConfirmedEvent{}.EventName())
	require.Equal(t, 1, env.carrier.Purchases())
}

func TestReconcileIsIdempotent(t *testing.T) {
	env := newCheckoutEnv(t)
	entity := pendingWalletOrder(t, env)

	require.NoError(t, env.wallet.ConfirmSession(entity.PaymentID))
	require.NoError(t, env.orch.ReconcilePendingPayment(context.Background(), entity.ID))
	require.NoError(t, env.orch.ReconcilePendingPayment(context.Background(), entity.ID))

	// The replay resolves without buying a second label or touching stock.
	available, reserved := env.stockLevels(t, "p1")
	require.Equal(t, 7, available)
	require.Equal(t, 0, reserved)
	require.Equal(t, 1, env.carrier.Purchases())
}

func TestReconcileCancelsFailedWalletPayment(t *testing.T) {
	env := newCheckoutEnv(t)
	entity := pendingWalletOrder(t, env)

	require.NoError(t, env.wallet.FailSession(entity.PaymentID))
	require.NoError(t, env.orch.ReconcilePendingPayment(context.Background(), entity.ID))

	updated, err := env.orders.Get(context.Background(), entity.ID)
	require.NoError(t, err)
	require.Equal(t, domorder.StatusCancelled, updated.Status)
	require.NotEmpty(t, updated.FailureReason)
	require.Empty(t, updated.ReservationToken)

	available, reserved := env.stockLevels(t, "p1")
	require.Equal(t, 10, available)
	require.Equal(t, 0, reserved)

	require.Contains(t, env.events.names(), domorder.OrderCancelledEvent{}.EventName())
	require.Zero(t, env.carrier.Purchases())
}

func TestReconcileLeavesUndecidedPaymentAlone(t *testing.T) {
	env := newCheckoutEnv(t)

	input := standardInput(t)
	input.PaymentMethod = "banktransfer"

	result, err := env.orch.CreateOrder(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, domorder.StatusPending, result.Status)

	require.NoError(t, env.orch.ReconcilePendingPayment(context.Background(), result.OrderID))

	updated, err := env.orders.Get(context.Background(), result.OrderID)
	require.NoError(t, err)
	require.Equal(t, domorder.StatusPending, updated.Status)

	// The hold is untouched until the transfer settles or expires.
	available, reserved := env.stockLevels(t, "p1")
	require.Equal(t, 7, available)
	require.Equal(t, 3, reserved)
}

func TestReconcileUnknownOrder(t *testing.T) {
	env := newCheckoutEnv(t)

	err := env.orch.ReconcilePendingPayment(context.Background(), "missing")
	ce, ok := AsError(err)
	require.True(t, ok)
	require.Equal(t, CodeNotFound, ce.Code)
}

func TestReconcileRecoversExpiredHold(t *testing.T) {
	env := newCheckoutEnv(t)
	entity := pendingWalletOrder(t, env)

	// The TTL sweep returned the hold before the customer approved the session.
	require.NoError(t, env.ledger.Release(context.Background(), entity.ReservationToken))
	available, reserved := env.stockLevels(t, "p1")
	require.Equal(t, 10, available)
	require.Equal(t, 0, reserved)

	require.NoError(t, env.wallet.ConfirmSession(entity.PaymentID))
	require.NoError(t, env.orch.ReconcilePendingPayment(context.Background(), entity.ID))

	updated, err := env.orders.Get(context.Background(), entity.ID)
	require.NoError(t, err)
	require.Equal(t, domorder.StatusConfirmed, updated.Status)

	// The items were re-reserved and committed; the capture stood either way.
	available, reserved = env.stockLevels(t, "p1")
	require.Equal(t, 7, available)
	require.Equal(t, 0, reserved)
}
