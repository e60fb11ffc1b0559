package event

import (
	"reflect"
)

// Event is an immutable, typed record published by the simulation.
type Event interface {
	Kind() Kind
}

type subscription struct {
	id  uint64
	typ reflect.Type // nil = every kind
	fn  func(Event)
}

// Bus delivers events synchronously, in emission order, to every current
// subscriber in registration order. An event emitted from inside a handler is
// queued and delivered after the event being dispatched has reached all of its
// subscribers, so every subscriber observes the same global order.
// One Bus belongs to one simulation; it is accessed only from the tick goroutine.
type Bus struct {
	subs    []subscription
	nextID  uint64
	depth   int
	pending []Event
}

func NewBus() *Bus {
	return &Bus{}
}

// Unsubscribe removes a subscription. Calling it more than once is harmless.
type Unsubscribe func()

// Subscribe registers a typed handler for events of type T.
func Subscribe[T Event](b *Bus, fn func(T)) Unsubscribe {
	t := reflect.TypeOf((*T)(nil)).Elem()
	return b.add(t, func(ev Event) { fn(ev.(T)) })
}

// SubscribeAll registers a handler receiving every event.
func (b *Bus) SubscribeAll(fn func(Event)) Unsubscribe {
	return b.add(nil, fn)
}

func (b *Bus) add(t reflect.Type, fn func(Event)) Unsubscribe {
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, typ: t, fn: fn})
	return func() {
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers ev to all matching subscribers before returning, unless
// called from inside a handler, in which case ev is delivered once the
// outermost Publish finishes its current event.
func (b *Bus) Publish(ev Event) {
	if b.depth > 0 {
		b.pending = append(b.pending, ev)
		return
	}
	b.depth++
	defer func() { b.depth-- }()

	b.dispatch(ev)
	for len(b.pending) > 0 {
		next := b.pending[0]
		b.pending = b.pending[1:]
		b.dispatch(next)
	}
}

func (b *Bus) dispatch(ev Event) {
	t := reflect.TypeOf(ev)
	subs := b.subs // snapshot; subscriptions changed mid-dispatch apply to the next event
	for _, s := range subs {
		if s.typ == nil || s.typ == t {
			s.fn(ev)
		}
	}
}

// Dispatching reports whether the bus is currently inside a handler.
func (b *Bus) Dispatching() bool {
	return b.depth > 0
}

// Subscribers returns the number of registered subscriptions.
func (b *Bus) Subscribers() int {
	return len(b.subs)
}
