package outbox

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domoutbox "github.com/shoplite/checkout-engine/internal/domain/outbox"
)

type testEvent struct {
	name string
	id   string
}

func (e testEvent) EventName() string { return e.name }

func TestBusDeliversToSubscribers(t *testing.T) {
	bus := NewBus(nil)
	bus.Start(context.Background())
	defer bus.Stop(context.Background())

	var mu sync.Mutex
	var got []string
	done := make(chan struct{})

	bus.Subscribe("order.confirmed", func(_ context.Context, e domoutbox.Event) error {
		evt := e.(testEvent)
		mu.Lock()
		got = append(got, evt.id)
		mu.Unlock()
		close(done)
		return nil
	})

	require.NoError(t, bus.Publish(context.Background(), testEvent{name: "order.confirmed", id: "ord-1"}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"ord-1"}, got)
}

func TestBusFansOutToAllHandlers(t *testing.T) {
	bus := NewBus(nil)
	bus.Start(context.Background())
	defer bus.Stop(context.Background())

	var wg sync.WaitGroup
	wg.Add(2)
	for i := 0; i < 2; i++ {
		bus.Subscribe("order.confirmed", func(context.Context, domoutbox.Event) error {
			wg.Done()
			return nil
		})
	}

	require.NoError(t, bus.Publish(context.Background(), testEvent{name: "order.confirmed"}))

	waitDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
	case <-time.After(2 * time.Second):
		t.Fatal("not every handler ran")
	}
}

func TestBusSurvivesPanickingHandler(t *testing.T) {
	bus := NewBus(nil)
	bus.Start(context.Background())
	defer bus.Stop(context.Background())

	delivered := make(chan struct{})
	bus.Subscribe("order.confirmed", func(context.Context, domoutbox.Event) error {
		panic("handler exploded")
	})
	bus.Subscribe("order.confirmed", func(context.Context, domoutbox.Event) error {
		close(delivered)
		return nil
	})

	require.NoError(t, bus.Publish(context.Background(), testEvent{name: "order.confirmed"}))

	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatal("panic in one handler starved the others")
	}

	// The bus still dispatches after the panic.
	second := make(chan struct{})
	bus.Subscribe("order.cancelled", func(context.Context, domoutbox.Event) error {
		close(second)
		return nil
	})
	require.NoError(t, bus.Publish(context.Background(), testEvent{name: "order.cancelled"}))
	select {
	case <-second:
	case <-time.After(2 * time.Second):
		t.Fatal("bus stopped dispatching after a panic")
	}
}

func TestBusDropsEventsWithoutSubscribers(t *testing.T) {
	bus := NewBus(nil)
	bus.Start(context.Background())
	defer bus.Stop(context.Background())

	require.NoError(t, bus.Publish(context.Background(), testEvent{name: "nobody.listens"}))
}
