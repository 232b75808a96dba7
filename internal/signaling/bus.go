package signaling

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Bus is an in-memory Channel for tests and single-process runs. Every
// subscriber sees every broadcast, including the sender's own, which matches
// the wire convention of filtering by payload identity rather than by
// transport.
type Bus struct {
	mu       sync.Mutex
	ready    bool
	closed   bool
	nextID   int
	handlers map[string]map[int]Handler
}

// NewBus returns a ready in-memory channel.
func NewBus() *Bus {
	return &Bus{
		ready:    true,
		handlers: make(map[string]map[int]Handler),
	}
}

// SetReady toggles readiness, letting tests exercise the not-ready gate.
func (b *Bus) SetReady(ready bool) {
	b.mu.Lock()
	b.ready = ready
	b.mu.Unlock()
}

// Broadcast delivers payload synchronously to every current subscriber.
func (b *Bus) Broadcast(event string, payload any) error {
	b.mu.Lock()
	if !b.ready || b.closed {
		b.mu.Unlock()
		return ErrNotReady
	}
	data, err := json.Marshal(payload)
	if err != nil {
		b.mu.Unlock()
		return fmt.Errorf("marshal %s payload: %w", event, err)
	}
	var targets []Handler
	for _, h := range b.handlers[event] {
		targets = append(targets, h)
	}
	b.mu.Unlock()

	for _, h := range targets {
		h(data)
	}
	return nil
}

// Subscribe registers h for event broadcasts.
func (b *Bus) Subscribe(event string, h Handler) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrNotReady
	}
	if b.handlers[event] == nil {
		b.handlers[event] = make(map[int]Handler)
	}
	id := b.nextID
	b.nextID++
	b.handlers[event][id] = h

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers[event], id)
	}, nil
}

// Ready reports whether broadcasting is possible.
func (b *Bus) Ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ready && !b.closed
}

// Close drops all subscriptions.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.handlers = make(map[string]map[int]Handler)
}
