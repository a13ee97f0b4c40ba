package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airvol/airvol/pkg/types"
)

func TestBrokerPublishSubscribe(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	b.Publish(&Event{Type: EventLogLine, Message: "hello"})

	select {
	case ev := <-sub:
		assert.Equal(t, EventLogLine, ev.Type)
		assert.Equal(t, "hello", ev.Message)
		assert.NotEmpty(t, ev.ID)
		assert.False(t, ev.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestBrokerPublishState(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	b.PublishState(types.ConnectionState{Kind: types.StateConnecting, Endpoint: "ws://10.0.0.5:81/ws"})

	select {
	case ev := <-sub:
		assert.Equal(t, EventStateChanged, ev.Type)
		require.NotNil(t, ev.State)
		assert.Equal(t, types.StateConnecting, ev.State.Kind)
		assert.Equal(t, "ws://10.0.0.5:81/ws", ev.State.Endpoint)
	case <-time.After(time.Second):
		t.Fatal("state event not delivered")
	}
}

func TestBrokerSlowSubscriberDoesNotBlock(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	// Never drained; its buffer fills and further events are skipped.
	_ = b.Subscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 500; i++ {
			b.PublishLog("line")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked on slow subscriber")
	}
}

func TestBrokerUnsubscribe(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	assert.Equal(t, 1, b.SubscriberCount())

	b.Unsubscribe(sub)
	assert.Equal(t, 0, b.SubscriberCount())

	// Double unsubscribe must not panic on a closed channel.
	b.Unsubscribe(sub)
}

func TestBrokerStopIdempotent(t *testing.T) {
	b := NewBroker()
	b.Start()
	b.Stop()
	b.Stop()
}
