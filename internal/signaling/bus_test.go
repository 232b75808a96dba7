package signaling

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoPayload struct {
	UserID string `json:"userId"`
	Text   string `json:"text"`
}

func TestBusDeliversToAllSubscribersIncludingSender(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var first, second []echoPayload
	_, err := bus.Subscribe("transcript", func(data []byte) {
		var p echoPayload
		require.NoError(t, json.Unmarshal(data, &p))
		first = append(first, p)
	})
	require.NoError(t, err)
	_, err = bus.Subscribe("transcript", func(data []byte) {
		var p echoPayload
		require.NoError(t, json.Unmarshal(data, &p))
		second = append(second, p)
	})
	require.NoError(t, err)

	require.NoError(t, bus.Broadcast("transcript", echoPayload{UserID: "u1", Text: "hello"}))

	// Loopback delivery is intentional: receivers filter by payload identity.
	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, "u1", first[0].UserID)
	assert.Equal(t, "hello", second[0].Text)
}

func TestBusEventIsolation(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var got int
	_, err := bus.Subscribe("phase_change", func([]byte) { got++ })
	require.NoError(t, err)

	require.NoError(t, bus.Broadcast("transcript", echoPayload{}))
	assert.Zero(t, got, "subscribers only see their own event")

	require.NoError(t, bus.Broadcast("phase_change", echoPayload{}))
	assert.Equal(t, 1, got)
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var got int
	unsub, err := bus.Subscribe("transcript", func([]byte) { got++ })
	require.NoError(t, err)

	require.NoError(t, bus.Broadcast("transcript", echoPayload{}))
	unsub()
	require.NoError(t, bus.Broadcast("transcript", echoPayload{}))

	assert.Equal(t, 1, got)
}

func TestBusNotReadyGate(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	bus.SetReady(false)
	assert.False(t, bus.Ready())
	assert.ErrorIs(t, bus.Broadcast("transcript", echoPayload{}), ErrNotReady)

	bus.SetReady(true)
	assert.True(t, bus.Ready())
	assert.NoError(t, bus.Broadcast("transcript", echoPayload{}))
}

func TestBusClosedRejectsEverything(t *testing.T) {
	bus := NewBus()
	bus.Close()

	assert.False(t, bus.Ready())
	assert.ErrorIs(t, bus.Broadcast("transcript", echoPayload{}), ErrNotReady)
	_, err := bus.Subscribe("transcript", func([]byte) {})
	assert.ErrorIs(t, err, ErrNotReady)
}
