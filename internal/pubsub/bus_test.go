package pubsub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBus_PublishSubscribe(t *testing.T) {
	b := NewBus()

	ch, cancel := b.Subscribe()
	defer cancel()

	evt := CheckInEvent{TeamCode: "TEAM-AB12CD", CheckInTime: time.Now()}
	b.Publish(evt)

	select {
	case got := <-ch:
		assert.Equal(t, "TEAM-AB12CD", got.TeamCode)
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
}

func TestBus_SlowSubscriberDropsEvents(t *testing.T) {
	b := NewBus()

	ch, cancel := b.Subscribe()
	defer cancel()

	// Overflow the buffer; Publish must not block.
	for i := 0; i < 100; i++ {
		b.Publish(CheckInEvent{TeamCode: "TEAM-AB12CD"})
	}

	drained := 0
	for {
		select {
		case <-ch:
			drained++
		default:
			assert.Equal(t, 16, drained)
			return
		}
	}
}

func TestBus_CancelStopsDelivery(t *testing.T) {
	b := NewBus()

	ch, cancel := b.Subscribe()
	cancel()
	// Idempotent.
	cancel()

	b.Publish(CheckInEvent{TeamCode: "TEAM-AB12CD"})

	_, open := <-ch
	assert.False(t, open)
}
