package eventbus_test

import (
	"sync"
	"testing"

	"github.com/pflow-xyz/go-presale/eventbus"
	"github.com/pflow-xyz/go-presale/presale"
)

func TestSubscribeAndEmitSync(t *testing.T) {
	bus := eventbus.NewBus("test", 0)

	var got []string
	bus.Subscribe("sub-1", presale.EventTokensPurchased, func(evt presale.Event) {
		got = append(got, evt.Type)
	})

	bus.EmitSync(presale.Event{Type: presale.EventTokensPurchased})
	bus.EmitSync(presale.Event{Type: presale.EventTokensClaimed}) // no subscriber

	if len(got) != 1 || got[0] != presale.EventTokensPurchased {
		t.Errorf("expected one purchase delivery, got %v", got)
	}
}

func TestWildcardSubscription(t *testing.T) {
	bus := eventbus.NewBus("test", 0)

	count := 0
	bus.Subscribe("audit", "", func(presale.Event) { count++ })

	bus.EmitSync(presale.Event{Type: presale.EventTokensPurchased})
	bus.EmitSync(presale.Event{Type: presale.EventRefundIssued})
	bus.EmitSync(presale.Event{Type: presale.EventPresaleFinalized})

	if count != 3 {
		t.Errorf("wildcard subscriber saw %d events, want 3", count)
	}
}

func TestSubscriptionFilter(t *testing.T) {
	bus := eventbus.NewBus("test", 0)

	var seen []uint64
	bus.SubscribeWithFilter("big-buys", presale.EventTokensPurchased,
		func(evt presale.Event) {
			seen = append(seen, evt.Data.(presale.TokensPurchased).Amount)
		},
		func(evt presale.Event) bool {
			return evt.Data.(presale.TokensPurchased).Amount >= 1_000
		},
	)

	bus.EmitSync(presale.Event{Type: presale.EventTokensPurchased, Data: presale.TokensPurchased{Amount: 500}})
	bus.EmitSync(presale.Event{Type: presale.EventTokensPurchased, Data: presale.TokensPurchased{Amount: 5_000}})

	if len(seen) != 1 || seen[0] != 5_000 {
		t.Errorf("filter passed %v, want [5000]", seen)
	}
}

func TestPriorityOrdering(t *testing.T) {
	bus := eventbus.NewBus("test", 0)

	var order []string
	bus.SubscribeWithPriority("low", presale.EventPresaleFinalized, func(presale.Event) {
		order = append(order, "low")
	}, 1)
	bus.SubscribeWithPriority("high", presale.EventPresaleFinalized, func(presale.Event) {
		order = append(order, "high")
	}, 10)

	bus.EmitSync(presale.Event{Type: presale.EventPresaleFinalized})

	if len(order) != 2 || order[0] != "high" || order[1] != "low" {
		t.Errorf("handler order = %v, want [high low]", order)
	}
}

func TestMiddlewareCanDrop(t *testing.T) {
	bus := eventbus.NewBus("test", 0)
	bus.Use(eventbus.FilterMiddleware(func(evt presale.Event) bool {
		return evt.Type != presale.EventKycVerified
	}))

	count := 0
	bus.Subscribe("all", "", func(presale.Event) { count++ })

	bus.EmitSync(presale.Event{Type: presale.EventKycVerified})
	bus.EmitSync(presale.Event{Type: presale.EventWhitelistUpdated})

	if count != 1 {
		t.Errorf("middleware let %d events through, want 1", count)
	}
}

func TestUnsubscribe(t *testing.T) {
	bus := eventbus.NewBus("test", 0)

	count := 0
	bus.Subscribe("sub-1", presale.EventTokensClaimed, func(presale.Event) { count++ })

	bus.EmitSync(presale.Event{Type: presale.EventTokensClaimed})
	bus.Unsubscribe("sub-1", presale.EventTokensClaimed)
	bus.EmitSync(presale.Event{Type: presale.EventTokensClaimed})

	if count != 1 {
		t.Errorf("subscriber saw %d events after unsubscribe, want 1", count)
	}
}

func TestAsyncDeliveryDrainsOnStop(t *testing.T) {
	bus := eventbus.NewBus("test", 64)

	var mu sync.Mutex
	count := 0
	bus.Subscribe("counter", "", func(presale.Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	bus.Start()
	for i := 0; i < 10; i++ {
		bus.Emit(presale.Event{Type: presale.EventTokensPurchased})
	}
	bus.Stop()

	mu.Lock()
	defer mu.Unlock()
	if count != 10 {
		t.Errorf("delivered %d events, want 10", count)
	}
}

func TestBusAsEngineSink(t *testing.T) {
	bus := eventbus.NewBus("engine", 0)
	rec := eventbus.NewRecorder()
	bus.Subscribe("recorder", "", rec.Emit)

	engine := presale.NewEngine(presale.WithSink(bus))
	now := int64(1_700_000_000)
	if err := engine.Initialize("auth", "HYPE", 1_000_000, 2_000_000, [3]string{}, now); err != nil {
		t.Fatal(err)
	}
	if err := engine.SetWhitelist("buyer-1", true); err != nil {
		t.Fatal(err)
	}
	if err := engine.Buy("buyer-1", presale.MethodUsdc, 1_500_000, now+60); err != nil {
		t.Fatal(err)
	}

	types := []string{}
	for _, evt := range rec.Events() {
		types = append(types, evt.Type)
	}
	want := []string{presale.EventWhitelistUpdated, presale.EventSoftCapReached, presale.EventTokensPurchased}
	if len(types) != len(want) {
		t.Fatalf("event types = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, types[i], want[i])
		}
	}

	purchases := rec.OfType(presale.EventTokensPurchased)
	if len(purchases) != 1 {
		t.Fatalf("recorded %d purchases, want 1", len(purchases))
	}
	data := purchases[0].Data.(presale.TokensPurchased)
	if data.Buyer != "buyer-1" {
		t.Errorf("purchase buyer = %s", data.Buyer)
	}
}
