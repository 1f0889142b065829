package netclient

import (
	"encoding/json"
	"sync"
)

// Handler receives the raw payload of one published event.
type Handler func(data json.RawMessage)

// Bus is a small subscribe/publish hub that decouples the sync modules from
// the transport's concrete wire event names. It is safe for concurrent use,
// and it works without any connection at all, which is what makes the
// modules testable in isolation.
type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]Handler
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[int]Handler)}
}

// Subscribe registers fn for an event name and returns a token for
// Unsubscribe.
func (b *Bus) Subscribe(event string, fn Handler) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	if b.subs[event] == nil {
		b.subs[event] = make(map[int]Handler)
	}
	b.subs[event][b.nextID] = fn
	return b.nextID
}

func (b *Bus) Unsubscribe(event string, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs[event], id)
}

// Publish fans data out to every subscriber of the event. Handlers run on
// the caller's goroutine, outside the bus lock.
func (b *Bus) Publish(event string, data json.RawMessage) {
	b.mu.Lock()
	handlers := make([]Handler, 0, len(b.subs[event]))
	for _, fn := range b.subs[event] {
		handlers = append(handlers, fn)
	}
	b.mu.Unlock()

	for _, fn := range handlers {
		fn(data)
	}
}
