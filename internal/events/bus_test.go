package events

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus() *Bus {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return NewBus(log)
}

func TestBusDeliversInOrder(t *testing.T) {
	bus := newTestBus()
	videoID := uuid.New()
	sub := bus.Subscribe(videoID, 16)
	defer sub.Close()

	for i := 1; i <= 5; i++ {
		bus.Publish(Event{VideoID: videoID, Kind: KindVideo, Progress: i * 10})
	}

	for i := 1; i <= 5; i++ {
		select {
		case ev := <-sub.C:
			assert.Equal(t, i*10, ev.Progress)
			assert.False(t, ev.Timestamp.IsZero())
		case <-time.After(time.Second):
			t.Fatalf("missing event %d", i)
		}
	}
}

func TestBusIsolatesVideos(t *testing.T) {
	bus := newTestBus()
	a, b := uuid.New(), uuid.New()
	subA := bus.Subscribe(a, 16)
	defer subA.Close()
	subB := bus.Subscribe(b, 16)
	defer subB.Close()

	bus.Publish(Event{VideoID: a, Kind: KindVideo, Progress: 50})

	select {
	case ev := <-subA.C:
		assert.Equal(t, a, ev.VideoID)
	case <-time.After(time.Second):
		t.Fatal("subscriber A received nothing")
	}
	select {
	case <-subB.C:
		t.Fatal("subscriber B received an event for another video")
	default:
	}
}

func TestBusDropsSlowSubscriber(t *testing.T) {
	bus := newTestBus()
	videoID := uuid.New()
	sub := bus.Subscribe(videoID, 2)

	// Overflow the buffer without draining.
	for i := 0; i < 5; i++ {
		bus.Publish(Event{VideoID: videoID, Kind: KindVideo, Progress: i})
	}

	assert.Equal(t, 0, bus.SubscriberCount(videoID))

	// The channel is closed after the buffered events.
	received := 0
	for range sub.C {
		received++
	}
	assert.Equal(t, 2, received)

	// Close after disconnect must not panic.
	sub.Close()
}

func TestBusCloseRemovesSubscriber(t *testing.T) {
	bus := newTestBus()
	videoID := uuid.New()
	sub := bus.Subscribe(videoID, 4)
	require.Equal(t, 1, bus.SubscriberCount(videoID))

	sub.Close()
	assert.Equal(t, 0, bus.SubscriberCount(videoID))

	_, ok := <-sub.C
	assert.False(t, ok)

	sub.Close()
}
