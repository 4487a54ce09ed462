package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcaster_PublishAndSubscribe(t *testing.T) {
	b := NewBroadcaster()
	defer b.Close()

	ch, cancel := b.Subscribe()
	defer cancel()

	b.Publish(Update{Status: "running", Completed: 1, Total: 3, Message: "Scoring 1 of 3..."})

	got := <-ch
	assert.Equal(t, 1, got.Completed)
	assert.Equal(t, 3, got.Total)
}

func TestBroadcaster_LateSubscriberGetsSnapshot(t *testing.T) {
	b := NewBroadcaster()
	defer b.Close()

	b.Publish(Update{Status: "running", Completed: 2, Total: 3})

	ch, cancel := b.Subscribe()
	defer cancel()

	got := <-ch
	assert.Equal(t, 2, got.Completed)
}

func TestBroadcaster_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	b := NewBroadcaster()
	defer b.Close()

	_, cancel := b.Subscribe()
	defer cancel()

	// Publish far more events than the subscriber buffer without reading.
	// Publish must never block.
	for i := 0; i < subscriberBuffer*4; i++ {
		b.Publish(Update{Status: "running", Completed: i, Total: 100})
	}

	snap := b.Snapshot()
	assert.Equal(t, subscriberBuffer*4-1, snap.Completed)
}

func TestBroadcaster_UnsubscribeIsIdempotentAndSafe(t *testing.T) {
	b := NewBroadcaster()
	defer b.Close()

	ch, cancel := b.Subscribe()
	cancel()
	cancel() // second call is a no-op

	b.Publish(Update{Status: "running", Completed: 1, Total: 1})

	_, open := <-ch
	assert.False(t, open)
}

func TestBroadcaster_CloseEndsSubscribers(t *testing.T) {
	b := NewBroadcaster()
	ch, cancel := b.Subscribe()
	defer cancel()

	b.Close()

	_, open := <-ch
	assert.False(t, open)

	// Subscribing after close yields a closed channel.
	ch2, cancel2 := b.Subscribe()
	defer cancel2()
	_, open = <-ch2
	assert.False(t, open)
}

func TestBroadcaster_SnapshotReflectsLatest(t *testing.T) {
	b := NewBroadcaster()
	defer b.Close()

	require.Equal(t, Update{}, b.Snapshot())

	b.Publish(Update{Status: "running", Completed: 1, Total: 2})
	b.Publish(Update{Status: "completed", Completed: 2, Total: 2, Message: "scored 2/2 submissions"})

	snap := b.Snapshot()
	assert.Equal(t, "completed", snap.Status)
	assert.Equal(t, 2, snap.Completed)
}
