package netclient

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBus_PublishReachesAllSubscribers(t *testing.T) {
	bus := NewBus()

	var a, b int
	bus.Subscribe("ping", func(json.RawMessage) { a++ })
	bus.Subscribe("ping", func(json.RawMessage) { b++ })
	bus.Subscribe("other", func(json.RawMessage) { t.Fatal("wrong event delivered") })

	bus.Publish("ping", nil)
	bus.Publish("ping", nil)

	require.Equal(t, 2, a)
	require.Equal(t, 2, b)
}

func TestBus_UnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus()

	var n int
	id := bus.Subscribe("ping", func(json.RawMessage) { n++ })
	bus.Publish("ping", nil)
	bus.Unsubscribe("ping", id)
	bus.Publish("ping", nil)

	require.Equal(t, 1, n)
}

func TestBus_PublishWithoutSubscribersIsHarmless(t *testing.T) {
	bus := NewBus()
	bus.Publish("nobody-home", json.RawMessage(`{"x":1}`))
}

func TestBus_HandlerMaySubscribeDuringPublish(t *testing.T) {
	bus := NewBus()

	var late bool
	bus.Subscribe("ping", func(json.RawMessage) {
		bus.Subscribe("ping", func(json.RawMessage) { late = true })
	})

	bus.Publish("ping", nil)
	require.False(t, late, "new subscriber must not see the publish that added it")
	bus.Publish("ping", nil)
	require.True(t, late)
}
