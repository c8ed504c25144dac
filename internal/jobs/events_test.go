package jobs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestEventBusSince verifies incremental event reads by sequence.
func TestEventBusSince(t *testing.T) {
	bus := NewEventBus(3)
	bus.Publish(Event{Type: EventTypeStatus, Message: "1"})
	bus.Publish(Event{Type: EventTypeProgress, Progress: 0.5})
	bus.Publish(Event{Type: EventTypeResult, Message: "3"})

	events := bus.Since(1)
	require.Len(t, events, 2)
	assert.Equal(t, int64(2), events[0].Seq)
	assert.Equal(t, int64(3), events[1].Seq)
	assert.Equal(t, int64(3), bus.LastSeq())
	assert.False(t, events[0].Timestamp.IsZero())
}

// TestEventBusCapsHistory verifies buffer limit trimming behavior.
func TestEventBusCapsHistory(t *testing.T) {
	bus := NewEventBus(2)
	bus.Publish(Event{Message: "1"})
	bus.Publish(Event{Message: "2"})
	bus.Publish(Event{Message: "3"})

	events := bus.Since(0)
	require.Len(t, events, 2)
	assert.Equal(t, "2", events[0].Message)
	assert.Equal(t, "3", events[1].Message)
}

func TestEventBusEmpty(t *testing.T) {
	bus := NewEventBus(0)
	assert.Nil(t, bus.Since(0))
	assert.Equal(t, int64(0), bus.LastSeq())
}

func TestEventBusListenReceivesPublished(t *testing.T) {
	bus := NewEventBus(10)
	var got []Event
	bus.Listen(func(e Event) {
		got = append(got, e)
		// Listeners run outside the lock and may read history.
		assert.Equal(t, e.Seq, bus.LastSeq())
	})

	bus.Publish(Event{Type: EventTypeEngine, Message: "ready"})
	bus.Listen(nil)
	bus.Publish(Event{Type: EventTypeStatus})

	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].Seq)
	assert.Equal(t, "ready", got[0].Message)
}
