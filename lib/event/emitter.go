// Package event provides the small synchronous pub/sub primitive shared
// by the entity store and the client. It carries no business logic:
// named events with a typed payload, nothing more.
package event

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Handler consumes an emitted payload.
type Handler[P any] func(P)

// Subscription identifies a registered handler so it can be removed.
// The zero Subscription is inert.
type Subscription struct {
	name string
	id   string
}

// Emitter dispatches typed payloads to handlers registered by event
// name. Safe for concurrent use. Handlers run synchronously on the
// emitting goroutine, in registration order.
type Emitter[P any] struct {
	mu       sync.RWMutex
	handlers map[string]map[string]Handler[P]
	order    map[string][]string
}

// New creates an empty emitter.
func New[P any]() *Emitter[P] {
	return &Emitter[P]{
		handlers: make(map[string]map[string]Handler[P]),
		order:    make(map[string][]string),
	}
}

// On registers a handler for the named event and returns its
// subscription handle.
func (e *Emitter[P]) On(name string, h Handler[P]) Subscription {
	if h == nil {
		return Subscription{}
	}
	id := uuid.NewString()
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.handlers[name] == nil {
		e.handlers[name] = make(map[string]Handler[P])
	}
	e.handlers[name][id] = h
	e.order[name] = append(e.order[name], id)
	return Subscription{name: name, id: id}
}

// Off removes a previously registered handler. Unknown subscriptions are
// ignored.
func (e *Emitter[P]) Off(sub Subscription) {
	if sub.id == "" {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.handlers[sub.name], sub.id)
	ids := e.order[sub.name]
	for i, id := range ids {
		if id == sub.id {
			e.order[sub.name] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
}

// Emit calls every handler registered for the named event with the
// payload. Handlers registered or removed during delivery take effect on
// the next emit.
func (e *Emitter[P]) Emit(name string, payload P) {
	e.mu.RLock()
	ids := append([]string(nil), e.order[name]...)
	registered := e.handlers[name]
	snapshot := make([]Handler[P], 0, len(ids))
	for _, id := range ids {
		if h, ok := registered[id]; ok {
			snapshot = append(snapshot, h)
		}
	}
	e.mu.RUnlock()
	for _, h := range snapshot {
		h(payload)
	}
}

// Listeners reports the number of handlers registered for the named
// event.
func (e *Emitter[P]) Listeners(name string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.handlers[name])
}

// Names returns every event name with at least one handler, sorted.
func (e *Emitter[P]) Names() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.handlers))
	for name, hs := range e.handlers {
		if len(hs) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
