package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := New()
	ch, unsubscribe := bus.Subscribe("sess-1")
	defer unsubscribe()

	bus.Publish(Event{Type: "phase_started", SessionID: "sess-1", Timestamp: time.Unix(0, 0)})

	select {
	case evt := <-ch:
		assert.Equal(t, "phase_started", evt.Type)
	case <-time.After(time.Second):
		t.Fatal("expected event was not delivered")
	}
}

func TestBus_IgnoresOtherSessions(t *testing.T) {
	bus := New()
	ch, unsubscribe := bus.Subscribe("sess-1")
	defer unsubscribe()

	bus.Publish(Event{Type: "phase_started", SessionID: "sess-2"})

	select {
	case evt := <-ch:
		t.Fatalf("unexpected event delivered: %+v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBus_DropOldestOnOverflow(t *testing.T) {
	bus := New().WithQueueSize(2)
	ch, unsubscribe := bus.Subscribe("sess-1")
	defer unsubscribe()

	bus.Publish(Event{Type: "first", SessionID: "sess-1"})
	bus.Publish(Event{Type: "second", SessionID: "sess-1"})
	bus.Publish(Event{Type: "third", SessionID: "sess-1"})

	var seen []string
	for i := 0; i < 2; i++ {
		select {
		case evt := <-ch:
			seen = append(seen, evt.Type)
		case <-time.After(time.Second):
			t.Fatal("expected an event")
		}
	}
	require.Contains(t, seen, "events_dropped")
	require.Contains(t, seen, "third")
	assert.NotContains(t, seen, "first")
}

func TestBus_Close_ClosesSubscriberChannels(t *testing.T) {
	bus := New()
	ch, _ := bus.Subscribe("sess-1")

	bus.Close("sess-1")

	_, open := <-ch
	assert.False(t, open)
}

func TestBus_MultipleSubscribersReceiveIndependently(t *testing.T) {
	bus := New()
	chA, unsubA := bus.Subscribe("sess-1")
	defer unsubA()
	chB, unsubB := bus.Subscribe("sess-1")
	defer unsubB()

	bus.Publish(Event{Type: "phase_started", SessionID: "sess-1"})

	for _, ch := range []<-chan Event{chA, chB} {
		select {
		case evt := <-ch:
			assert.Equal(t, "phase_started", evt.Type)
		case <-time.After(time.Second):
			t.Fatal("expected event was not delivered to one subscriber")
		}
	}
}
