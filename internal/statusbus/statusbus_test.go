package statusbus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestBroker_Subscribe mirrors logging's own usage: a log entry publishes
// as CreatedEvent and a subscriber (a future live-tail listener) receives
// it with a populated Timestamp.
func TestBroker_Subscribe(t *testing.T) {
	broker := NewBroker[string]()
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := broker.Subscribe(ctx)

	broker.Publish(CreatedEvent, "kanata-focusd starting")

	select {
	case event := <-ch:
		require.Equal(t, "kanata-focusd starting", event.Payload)
		require.Equal(t, CreatedEvent, event.Type)
		require.False(t, event.Timestamp.IsZero())
	case <-time.After(100 * time.Millisecond):
		require.Fail(t, "timeout waiting for event")
	}
}

// TestBroker_MultipleSubscribers mirrors controlbus: one status change
// must reach every subscriber (history recording plus any future listener)
// from a single Publish call.
func TestBroker_MultipleSubscribers(t *testing.T) {
	broker := NewBroker[int]()
	defer broker.Close()

	ctx := context.Background()

	ch1 := broker.Subscribe(ctx)
	ch2 := broker.Subscribe(ctx)
	ch3 := broker.Subscribe(ctx)

	require.Equal(t, 3, broker.SubscriberCount())

	broker.Publish(UpdatedEvent, 42)

	for i, ch := range []<-chan Event[int]{ch1, ch2, ch3} {
		select {
		case event := <-ch:
			require.Equal(t, 42, event.Payload, "subscriber %d", i)
			require.Equal(t, UpdatedEvent, event.Type, "subscriber %d", i)
		case <-time.After(100 * time.Millisecond):
			require.Fail(t, "timeout waiting for event", "subscriber %d", i)
		}
	}
}

// TestBroker_ContextCancellation guards the shutdown idiom both of this
// module's feeds rely on: cancel the daemon's root context once, and every
// subscriber cleans itself up without an explicit Unsubscribe call.
func TestBroker_ContextCancellation(t *testing.T) {
	broker := NewBroker[string]()
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())

	ch := broker.Subscribe(ctx)
	require.Equal(t, 1, broker.SubscriberCount())

	cancel()
	time.Sleep(20 * time.Millisecond)

	require.Equal(t, 0, broker.SubscriberCount())

	_, ok := <-ch
	require.False(t, ok, "channel should be closed")
}

// TestBroker_NonBlocking guards the one invariant that actually matters in
// this module: Publish must never block the caller, because both
// producers (the supervisor's single reducer goroutine, logging's mutex
// holder) would otherwise stall on a slow subscriber.
func TestBroker_NonBlocking(t *testing.T) {
	broker := NewBroker[int]()
	defer broker.Close()

	ch := broker.Subscribe(context.Background())

	done := make(chan bool)
	go func() {
		for i := 0; i < defaultBufferSize+8; i++ {
			broker.Publish(UpdatedEvent, i)
		}
		done <- true
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		require.Fail(t, "Publish blocked once the subscriber's buffer filled")
	}

	event := <-ch
	require.Equal(t, 0, event.Payload)
}

func TestBroker_Close(t *testing.T) {
	broker := NewBroker[string]()

	ctx := context.Background()

	ch1 := broker.Subscribe(ctx)
	ch2 := broker.Subscribe(ctx)

	require.Equal(t, 2, broker.SubscriberCount())

	broker.Close()

	_, ok1 := <-ch1
	_, ok2 := <-ch2

	require.False(t, ok1, "ch1 should be closed")
	require.False(t, ok2, "ch2 should be closed")
	require.Equal(t, 0, broker.SubscriberCount())

	ch3 := broker.Subscribe(ctx)
	_, ok3 := <-ch3
	require.False(t, ok3, "ch3 should be closed immediately")

	broker.Publish(UpdatedEvent, "test") // no panic after Close
}

func TestBroker_CloseIdempotent(t *testing.T) {
	broker := NewBroker[string]()

	ctx := context.Background()
	ch := broker.Subscribe(ctx)

	broker.Close()
	broker.Close()
	broker.Close()

	_, ok := <-ch
	require.False(t, ok, "channel should be closed")
}
