package stream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, b *Bridge, timeout time.Duration) []Event {
	t.Helper()
	var events []Event
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-b.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-deadline:
			t.Fatalf("timed out waiting for events, got %d so far", len(events))
		}
	}
}

func TestBridgeDeliversInFIFOOrder(t *testing.T) {
	b := NewBridge(4, time.Minute)

	go func() {
		b.Emit(Event{Type: EventThinkingStart})
		b.Emit(Event{Type: EventThinkingUpdate, Payload: "route"})
		b.Emit(Event{Type: EventThinkingUpdate, Payload: "retrieval"})
		b.Emit(Event{Type: EventAnswerChunk, Payload: "hello"})
		b.Finish(Event{Type: EventDone})
	}()

	events := collect(t, b, time.Second)
	require.Len(t, events, 5)
	assert.Equal(t, EventThinkingStart, events[0].Type)
	assert.Equal(t, "route", events[1].Payload)
	assert.Equal(t, "retrieval", events[2].Payload)
	assert.Equal(t, EventAnswerChunk, events[3].Type)
	assert.Equal(t, EventDone, events[4].Type)
}

func TestBridgeExactlyOneTerminalEvent(t *testing.T) {
	b := NewBridge(4, time.Minute)

	go func() {
		b.Emit(Event{Type: EventThinkingStart})
		b.Finish(Event{Type: EventDone})
		b.Finish(Event{Type: EventError}) // second Finish must be a no-op
	}()

	events := collect(t, b, time.Second)

	terminals := 0
	for _, ev := range events {
		if ev.IsTerminal() {
			terminals++
		}
	}
	assert.Equal(t, 1, terminals)
	assert.True(t, events[len(events)-1].IsTerminal(), "terminal event must be last")
}

func TestBridgeProducerBlocksOnFullBuffer(t *testing.T) {
	b := NewBridge(1, time.Minute)

	progressed := make(chan struct{})
	go func() {
		b.Emit(Event{Type: EventAnswerChunk, Payload: 1})
		b.Emit(Event{Type: EventAnswerChunk, Payload: 2})
		b.Emit(Event{Type: EventAnswerChunk, Payload: 3})
		close(progressed)
		b.Finish(Event{Type: EventDone})
	}()

	// With a buffer of one and no consumer, the producer cannot have
	// finished all three emits yet.
	select {
	case <-progressed:
		t.Fatal("producer should block while the consumer buffer is full")
	case <-time.After(50 * time.Millisecond):
	}

	events := collect(t, b, time.Second)
	require.Len(t, events, 4)
	assert.Equal(t, 1, events[0].Payload)
	assert.Equal(t, 2, events[1].Payload)
	assert.Equal(t, 3, events[2].Payload)
}

func TestBridgeConsumerDisconnectDoesNotBlockProducer(t *testing.T) {
	b := NewBridge(1, time.Minute)

	finished := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Emit(Event{Type: EventAnswerChunk, Payload: i})
		}
		b.Finish(Event{Type: EventDone})
		close(finished)
	}()

	// Read one event, then walk away mid-stream.
	<-b.Events()
	b.Close()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("producer must run to completion after the consumer disconnects")
	}

	// The consumer channel is closed; remaining events were discarded.
	for range b.Events() {
	}
}

func TestBridgeKeepaliveWhenIdle(t *testing.T) {
	b := NewBridge(4, 20*time.Millisecond)
	defer b.Close()

	select {
	case ev := <-b.Events():
		assert.Equal(t, EventKeepalive, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("expected a keepalive on an idle stream")
	}
}

func TestBridgeNoKeepaliveWhileActive(t *testing.T) {
	b := NewBridge(16, 40*time.Millisecond)

	go func() {
		for i := 0; i < 10; i++ {
			b.Emit(Event{Type: EventAnswerChunk, Payload: i})
			time.Sleep(10 * time.Millisecond)
		}
		b.Finish(Event{Type: EventDone})
	}()

	events := collect(t, b, 2*time.Second)
	for _, ev := range events {
		assert.NotEqual(t, EventKeepalive, ev.Type, "an active stream needs no keepalive")
	}
}

func TestBridgeCloseIsIdempotent(t *testing.T) {
	b := NewBridge(4, time.Minute)
	go b.Finish(Event{Type: EventDone})
	b.Close()
	b.Close()
}
