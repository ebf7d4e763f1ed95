package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishSubscribe(t *testing.T) {
	broker := NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	broker.Publish(&Event{
		Type:    EventRateLimitViolation,
		Message: "rate limit exceeded",
		Metadata: map[string]string{
			"identifier": "203.0.113.9",
			"tier":       "anonymous",
		},
	})

	select {
	case ev := <-sub:
		require.NotNil(t, ev)
		assert.Equal(t, EventRateLimitViolation, ev.Type)
		assert.NotEmpty(t, ev.ID)
		assert.False(t, ev.Timestamp.IsZero())
		assert.Equal(t, "anonymous", ev.Metadata["tier"])
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestPublishNeverBlocks(t *testing.T) {
	// Without Start nothing drains the queue; publishing past its
	// capacity must drop events instead of blocking the caller.
	broker := NewBroker()
	for i := 0; i < 200; i++ {
		broker.Publish(&Event{Type: EventRateLimitViolation})
	}
}

func TestNilBrokerPublishIsNoop(t *testing.T) {
	var broker *Broker
	assert.NotPanics(t, func() {
		broker.Publish(&Event{Type: EventKeyExpired})
	})
}

func TestSubscriberCount(t *testing.T) {
	broker := NewBroker()
	broker.Start()
	defer broker.Stop()

	assert.Equal(t, 0, broker.SubscriberCount())

	a := broker.Subscribe()
	b := broker.Subscribe()
	assert.Equal(t, 2, broker.SubscriberCount())

	broker.Unsubscribe(a)
	assert.Equal(t, 1, broker.SubscriberCount())
	broker.Unsubscribe(b)
	assert.Equal(t, 0, broker.SubscriberCount())
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	broker := NewBroker()
	broker.Start()
	defer broker.Stop()

	// Never drained; its buffer fills and later events are skipped.
	_ = broker.Subscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			broker.Publish(&Event{Type: EventCacheCleared})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on slow subscriber")
	}
}
