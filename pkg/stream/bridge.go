package stream

import (
	"sync"
	"time"
)

// Bridge delivers events from a worker-goroutine pipeline execution to an
// independent consumer, in FIFO causal order, over a bounded channel.
//
// Back-pressure: a slow consumer makes the producer block rather than lose
// events, since the events are the user-visible thinking trace. If the
// consumer disconnects (Close), further emission becomes a no-op so the
// pipeline can still run to completion and keep its history and cache side
// effects.
type Bridge struct {
	in   chan Event // producer side, unbuffered
	out  chan Event // consumer side, bounded
	done chan struct{}

	idle time.Duration

	closeOnce  sync.Once
	finishOnce sync.Once
}

// NewBridge creates a bridge with the given consumer buffer size and idle
// keepalive interval, and starts its dispatch loop.
func NewBridge(buffer int, idle time.Duration) *Bridge {
	if buffer <= 0 {
		buffer = 16
	}
	if idle <= 0 {
		idle = 15 * time.Second
	}
	b := &Bridge{
		in:   make(chan Event),
		out:  make(chan Event, buffer),
		done: make(chan struct{}),
		idle: idle,
	}
	go b.dispatch()
	return b
}

// Events returns the consumer-facing channel. It is closed after the
// terminal event has been delivered, or after the consumer disconnects.
func (b *Bridge) Events() <-chan Event {
	return b.out
}

// Emit delivers one event in FIFO order. It blocks while the consumer buffer
// is full and becomes a no-op once the consumer has disconnected. Must not be
// called after Finish.
func (b *Bridge) Emit(ev Event) {
	select {
	case b.in <- ev:
	case <-b.done:
	}
}

// Finish emits the terminal event and closes the producer side. Safe to call
// more than once; only the first terminal event is delivered.
func (b *Bridge) Finish(ev Event) {
	b.finishOnce.Do(func() {
		b.Emit(ev)
		close(b.in)
	})
}

// Close marks the consumer as disconnected. The producer keeps running; its
// remaining events are discarded.
func (b *Bridge) Close() {
	b.closeOnce.Do(func() {
		close(b.done)
	})
}

// dispatch moves events from the producer to the consumer, injecting a
// keepalive when the stream has been idle long enough that a transport with
// an idle timeout might close it.
func (b *Bridge) dispatch() {
	ticker := time.NewTicker(b.idle)
	defer ticker.Stop()

	lastEvent := time.Now()

	for {
		select {
		case ev, ok := <-b.in:
			if !ok {
				close(b.out)
				return
			}
			if !b.deliver(ev) {
				b.drain()
				return
			}
			lastEvent = time.Now()

		case <-ticker.C:
			if time.Since(lastEvent) < b.idle {
				continue
			}
			// Keepalives are droppable: a full buffer already proves liveness
			select {
			case b.out <- Event{Type: EventKeepalive}:
			default:
			}

		case <-b.done:
			b.drain()
			return
		}
	}
}

// deliver blocks until the consumer accepts the event or disconnects.
func (b *Bridge) deliver(ev Event) bool {
	select {
	case b.out <- ev:
		return true
	case <-b.done:
		return false
	}
}

// drain keeps receiving producer events after a disconnect so the producer
// never blocks on an abandoned stream.
func (b *Bridge) drain() {
	close(b.out)
	for range b.in {
	}
}
