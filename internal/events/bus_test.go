package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeMultipleTopics(t *testing.T) {
	bus := NewBus()
	ch, unsub := bus.Subscribe(4, EventOrderAccepted, EventOrderRejected)
	defer unsub()

	bus.Publish(EventOrderAccepted, "a")
	bus.Publish(EventSignalGenerated, "ignored")
	bus.Publish(EventOrderRejected, "r")

	require.Len(t, ch, 2)
	assert.Equal(t, Message{Event: EventOrderAccepted, Payload: "a"}, <-ch)
	assert.Equal(t, Message{Event: EventOrderRejected, Payload: "r"}, <-ch)
}

func TestPublishDropsWhenFull(t *testing.T) {
	bus := NewBus()
	ch, unsub := bus.Subscribe(1, EventSignalGenerated)
	defer unsub()

	bus.Publish(EventSignalGenerated, 1)
	bus.Publish(EventSignalGenerated, 2)

	assert.Len(t, ch, 1)
	assert.Equal(t, 1, (<-ch).Payload)
}

func TestUnsubscribeClosesOnce(t *testing.T) {
	bus := NewBus()
	ch, unsub := bus.Subscribe(1, EventOrderAccepted, EventOrderRejected)
	unsub()
	unsub()

	_, open := <-ch
	assert.False(t, open)
	assert.NotPanics(t, func() { bus.Publish(EventOrderAccepted, "late") })
}

func TestNilBusPublish(t *testing.T) {
	var bus *Bus
	assert.NotPanics(t, func() { bus.Publish(EventOrderAccepted, nil) })
}
