package event

import (
	"reflect"
	"sync"
)

// Bus is a double-buffered event bus. Events emitted in frame N are
// delivered in frame N+1: SwapBuffers then DispatchAll run at the start of
// every frame (scene Input pass).
//
// Emit may be called from any goroutine; SwapBuffers and DispatchAll are
// called only by the goroutine that owns the bus.
type Bus struct {
	mu       sync.Mutex // protects back and handler registration
	front    map[reflect.Type]queue
	back     map[reflect.Type]queue
	handlers map[reflect.Type][]func(any)
	order    []reflect.Type // dispatch order: first emission of each type
}

type queue []any

func NewBus() *Bus {
	return &Bus{
		front:    make(map[reflect.Type]queue),
		back:     make(map[reflect.Type]queue),
		handlers: make(map[reflect.Type][]func(any)),
	}
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Emit queues an event into the back buffer (delivered next frame).
func Emit[T any](b *Bus, ev T) {
	t := typeOf[T]()
	b.mu.Lock()
	if _, seen := b.back[t]; !seen {
		if _, known := b.front[t]; !known {
			b.order = append(b.order, t)
		}
	}
	b.back[t] = append(b.back[t], ev)
	b.mu.Unlock()
}

// Subscribe registers a typed handler for events of type T.
func Subscribe[T any](b *Bus, fn func(T)) {
	t := typeOf[T]()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[t] = append(b.handlers[t], func(ev any) { fn(ev.(T)) })
}

// SwapBuffers rotates back→front and clears the new back buffer.
func (b *Bus) SwapBuffers() {
	b.mu.Lock()
	b.front, b.back = b.back, b.front
	for k := range b.back {
		b.back[k] = b.back[k][:0]
	}
	b.mu.Unlock()
}

// DispatchAll delivers all front-buffer events to their handlers, grouped by
// event type in order of first emission, each group in emission order.
func (b *Bus) DispatchAll() {
	b.mu.Lock()
	order := b.order
	handlers := make(map[reflect.Type][]func(any), len(b.handlers))
	for t, hs := range b.handlers {
		handlers[t] = hs
	}
	b.mu.Unlock()

	for _, t := range order {
		events := b.front[t]
		for _, ev := range events {
			for _, h := range handlers[t] {
				h(ev)
			}
		}
	}
}

// Pending returns how many events of type T wait in the back buffer.
func Pending[T any](b *Bus) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.back[typeOf[T]()])
}
