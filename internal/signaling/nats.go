package signaling

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// NATSConfig holds connection settings for the NATS-backed channel.
type NATSConfig struct {
	URL           string
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultNATSConfig returns the default NATS channel configuration.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// NATSChannel is a Channel scoped to one room over core NATS pub/sub. Core
// NATS is deliberately used instead of JetStream: the signaling contract is
// at-most-once with no replay, and a durable stream would change those
// semantics.
type NATSChannel struct {
	roomID uuid.UUID
	nc     *nats.Conn

	mu   sync.Mutex
	subs []*nats.Subscription
}

// NewNATSChannel connects to NATS and returns a channel scoped to roomID.
func NewNATSChannel(cfg NATSConfig, roomID uuid.UUID) (*NATSChannel, error) {
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Str("room_id", roomID.String()).Msg("signaling disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Str("room_id", roomID.String()).Msg("signaling reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("signaling error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect signaling: %w", err)
	}

	return &NATSChannel{roomID: roomID, nc: nc}, nil
}

// subject builds the room-scoped subject for an event name.
func (c *NATSChannel) subject(event string) string {
	return fmt.Sprintf("debate.room.%s.%s", c.roomID, event)
}

// Broadcast publishes payload under event. Fire-and-forget: a successful
// return means the message was handed to the connection, not that any peer
// received it.
func (c *NATSChannel) Broadcast(event string, payload any) error {
	if !c.Ready() {
		return ErrNotReady
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", event, err)
	}
	if err := c.nc.Publish(c.subject(event), data); err != nil {
		return fmt.Errorf("broadcast %s: %w", event, err)
	}
	return nil
}

// Subscribe registers h for every broadcast of event in this room.
func (c *NATSChannel) Subscribe(event string, h Handler) (func(), error) {
	sub, err := c.nc.Subscribe(c.subject(event), func(msg *nats.Msg) {
		h(msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", event, err)
	}

	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()

	return func() {
		if err := sub.Unsubscribe(); err != nil {
			log.Error().Err(err).Str("event", event).Msg("unsubscribe failed")
		}
	}, nil
}

// Ready reports whether the underlying connection can publish right now.
func (c *NATSChannel) Ready() bool {
	return c.nc != nil && c.nc.Status() == nats.CONNECTED
}

// Close drains subscriptions and closes the connection.
func (c *NATSChannel) Close() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for _, sub := range subs {
		_ = sub.Unsubscribe()
	}
	if c.nc != nil {
		c.nc.Close()
	}
	log.Info().Str("room_id", c.roomID.String()).Msg("signaling channel closed")
}
