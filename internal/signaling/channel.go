// Package signaling provides the topic-scoped, at-most-once broadcast
// transport that keeps two debate clients in sync. Delivery is
// fire-and-forget: no acknowledgment, no ordering guarantee across reconnects
// of the channel itself, FIFO within one unbroken connection. Senders are not
// filtered out by the transport; by convention every subscriber ignores
// messages whose payload identity matches its own.
package signaling

import "errors"

// ErrNotReady is returned when a broadcast is attempted before the channel is
// connected. Callers surface it as a retryable condition, never a fatal one.
var ErrNotReady = errors.New("signaling channel not ready")

// Handler receives the raw payload of one broadcast.
type Handler func(data []byte)

// Channel is the signaling transport for one debate room.
type Channel interface {
	// Broadcast publishes payload (JSON-marshaled) under the given event
	// name to every live subscriber. Returns ErrNotReady before the channel
	// is connected.
	Broadcast(event string, payload any) error

	// Subscribe delivers every broadcast matching event to h. The returned
	// function cancels the subscription.
	Subscribe(event string, h Handler) (unsubscribe func(), err error)

	// Ready reports whether broadcasting is currently possible. User-facing
	// actions that depend on broadcasting must be gated on this.
	Ready() bool

	// Close tears the channel down and drops all subscriptions.
	Close()
}
