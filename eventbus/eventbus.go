// Package eventbus routes presale events to interested subscribers.
//
// The bus implements presale.Sink, so it plugs directly into the engine:
// the engine emits fire-and-forget, the bus fans out to handlers by event
// type. Delivery is either asynchronous through a buffered queue (Start)
// or synchronous in the emitter's goroutine (EmitSync).
package eventbus

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/pflow-xyz/go-presale/presale"
)

// Handler processes one delivered event.
type Handler func(presale.Event)

// Middleware can observe, filter, or transform events before dispatch.
// Call next to pass the event on; return without calling it to drop.
type Middleware func(evt presale.Event, next func(presale.Event))

// Subscription is one subscriber's interest in an event type.
type Subscription struct {
	ID        string
	EventType string // "" matches every event
	Handler   Handler
	Filter    func(presale.Event) bool
	Priority  int // higher runs first
}

// Bus is a typed publish/subscribe bus for presale events.
type Bus struct {
	name          string
	subscriptions map[string][]*Subscription
	queue         chan presale.Event
	middleware    []Middleware

	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	done    chan struct{}

	eventCount   int64
	droppedCount int64
}

// NewBus creates a bus with the given queue capacity for async delivery.
func NewBus(name string, queueSize int) *Bus {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Bus{
		name:          name,
		subscriptions: make(map[string][]*Subscription),
		queue:         make(chan presale.Event, queueSize),
	}
}

// Name returns the bus name.
func (b *Bus) Name() string {
	return b.name
}

// Subscribe registers a handler for one event type ("" for all events).
func (b *Bus) Subscribe(id, eventType string, handler Handler) *Bus {
	return b.add(&Subscription{ID: id, EventType: eventType, Handler: handler})
}

// SubscribeWithFilter registers a handler gated by a predicate.
func (b *Bus) SubscribeWithFilter(id, eventType string, handler Handler, filter func(presale.Event) bool) *Bus {
	return b.add(&Subscription{ID: id, EventType: eventType, Handler: handler, Filter: filter})
}

// SubscribeWithPriority registers a handler with an ordering priority.
func (b *Bus) SubscribeWithPriority(id, eventType string, handler Handler, priority int) *Bus {
	return b.add(&Subscription{ID: id, EventType: eventType, Handler: handler, Priority: priority})
}

func (b *Bus) add(sub *Subscription) *Bus {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := append(b.subscriptions[sub.EventType], sub)
	sort.SliceStable(subs, func(i, j int) bool {
		return subs[i].Priority > subs[j].Priority
	})
	b.subscriptions[sub.EventType] = subs
	return b
}

// Unsubscribe removes a subscriber's registration for one event type.
func (b *Bus) Unsubscribe(id, eventType string) *Bus {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscriptions[eventType]
	filtered := subs[:0]
	for _, sub := range subs {
		if sub.ID != id {
			filtered = append(filtered, sub)
		}
	}
	b.subscriptions[eventType] = filtered
	return b
}

// UnsubscribeAll removes every registration for a subscriber.
func (b *Bus) UnsubscribeAll(id string) *Bus {
	b.mu.Lock()
	defer b.mu.Unlock()

	for eventType, subs := range b.subscriptions {
		filtered := subs[:0]
		for _, sub := range subs {
			if sub.ID != id {
				filtered = append(filtered, sub)
			}
		}
		b.subscriptions[eventType] = filtered
	}
	return b
}

// Use appends middleware. Middleware runs in registration order.
func (b *Bus) Use(mw Middleware) *Bus {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.middleware = append(b.middleware, mw)
	return b
}

// Emit implements presale.Sink. With the process loop running the event
// is queued; a full queue drops the event rather than block the engine.
// Without the loop, delivery happens inline.
func (b *Bus) Emit(evt presale.Event) {
	b.mu.RLock()
	running := b.running
	b.mu.RUnlock()

	if !running {
		b.EmitSync(evt)
		return
	}

	b.applyMiddleware(evt, func(e presale.Event) {
		select {
		case b.queue <- e:
			atomic.AddInt64(&b.eventCount, 1)
		default:
			atomic.AddInt64(&b.droppedCount, 1)
		}
	})
}

// EmitSync delivers an event to all matching handlers before returning.
func (b *Bus) EmitSync(evt presale.Event) {
	b.applyMiddleware(evt, func(e presale.Event) {
		atomic.AddInt64(&b.eventCount, 1)
		b.dispatch(e)
	})
}

func (b *Bus) applyMiddleware(evt presale.Event, final func(presale.Event)) {
	b.mu.RLock()
	middleware := make([]Middleware, len(b.middleware))
	copy(middleware, b.middleware)
	b.mu.RUnlock()

	chain := final
	for i := len(middleware) - 1; i >= 0; i-- {
		mw := middleware[i]
		next := chain
		chain = func(e presale.Event) {
			mw(e, next)
		}
	}
	chain(evt)
}

func (b *Bus) dispatch(evt presale.Event) {
	b.mu.RLock()
	subs := make([]*Subscription, 0, len(b.subscriptions[evt.Type])+len(b.subscriptions[""]))
	subs = append(subs, b.subscriptions[evt.Type]...)
	subs = append(subs, b.subscriptions[""]...)
	b.mu.RUnlock()

	for _, sub := range subs {
		if sub.Filter != nil && !sub.Filter(evt) {
			continue
		}
		sub.Handler(evt)
	}
}

// Start launches the async delivery loop.
func (b *Bus) Start() {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return
	}
	b.running = true
	b.stopCh = make(chan struct{})
	b.done = make(chan struct{})
	b.mu.Unlock()

	go b.processLoop()
}

// Stop halts the delivery loop after draining queued events.
func (b *Bus) Stop() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	b.running = false
	close(b.stopCh)
	done := b.done
	b.mu.Unlock()

	<-done
}

func (b *Bus) processLoop() {
	defer close(b.done)
	for {
		select {
		case evt := <-b.queue:
			b.dispatch(evt)
		case <-b.stopCh:
			for {
				select {
				case evt := <-b.queue:
					b.dispatch(evt)
				default:
					return
				}
			}
		}
	}
}

// Stats reports bus counters.
func (b *Bus) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := 0
	for _, subs := range b.subscriptions {
		count += len(subs)
	}
	return Stats{
		EventCount:        atomic.LoadInt64(&b.eventCount),
		DroppedCount:      atomic.LoadInt64(&b.droppedCount),
		SubscriptionCount: count,
		QueueSize:         len(b.queue),
	}
}

// Stats contains bus counters.
type Stats struct {
	EventCount        int64
	DroppedCount      int64
	SubscriptionCount int
	QueueSize         int
}

// FilterMiddleware drops events failing the predicate.
func FilterMiddleware(predicate func(presale.Event) bool) Middleware {
	return func(evt presale.Event, next func(presale.Event)) {
		if predicate(evt) {
			next(evt)
		}
	}
}

// LoggingMiddleware reports every event type passing through the bus.
func LoggingMiddleware(logf func(string, ...any)) Middleware {
	return func(evt presale.Event, next func(presale.Event)) {
		logf("event: type=%s", evt.Type)
		next(evt)
	}
}

var _ presale.Sink = (*Bus)(nil)
