package eventbus

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tejashwikalptaru/tunelib/internal/domain"
	"github.com/tejashwikalptaru/tunelib/internal/logger"
	"github.com/tejashwikalptaru/tunelib/internal/testutil"
)

func newTestBus(t *testing.T) *SyncEventBus {
	t.Helper()
	bus := NewSyncEventBus(logger.NewTestLogger())
	t.Cleanup(func() { _ = bus.Close() })
	return bus
}

func trackChanged(id int64) domain.Event {
	return domain.NewTrackChangedEvent(domain.Track{ID: id, Title: "Test Track"}, 0)
}

func TestNewSyncEventBus(t *testing.T) {
	bus := NewSyncEventBus(nil)

	assert.Zero(t, bus.SubscriberCount())
	assert.False(t, bus.HasSubscribers(domain.EventTrackChanged))
	assert.NoError(t, bus.Close())
}

func TestPublishSubscribe(t *testing.T) {
	bus := newTestBus(t)

	var received []domain.Event
	subID := bus.Subscribe(domain.EventTrackChanged, func(event domain.Event) {
		received = append(received, event)
	})
	require.NotEmpty(t, subID)

	bus.Publish(trackChanged(42))

	require.Len(t, received, 1)
	assert.Equal(t, domain.EventTrackChanged, received[0].Type())

	changed, ok := received[0].(domain.TrackChangedEvent)
	require.True(t, ok)
	assert.Equal(t, int64(42), changed.Track.ID)
	assert.Equal(t, uint64(1), bus.Published())
}

func TestPublish_OnlyMatchingType(t *testing.T) {
	bus := newTestBus(t)

	var calls int
	bus.Subscribe(domain.EventVolumeChanged, func(domain.Event) { calls++ })

	bus.Publish(trackChanged(1))
	assert.Zero(t, calls)

	bus.Publish(domain.NewVolumeChangedEvent(0.5))
	assert.Equal(t, 1, calls)
}

func TestPublish_DeliveryOrder(t *testing.T) {
	bus := newTestBus(t)

	var order []string
	bus.SubscribeAll(func(domain.Event) { order = append(order, "all") })
	bus.Subscribe(domain.EventTrackChanged, func(domain.Event) { order = append(order, "first") })
	bus.Subscribe(domain.EventTrackChanged, func(domain.Event) { order = append(order, "second") })

	bus.Publish(trackChanged(1))

	assert.Equal(t, []string{"first", "second", "all"}, order)
}

func TestUnsubscribe(t *testing.T) {
	bus := newTestBus(t)

	var first, second int
	id := bus.Subscribe(domain.EventTrackChanged, func(domain.Event) { first++ })
	bus.Subscribe(domain.EventTrackChanged, func(domain.Event) { second++ })

	bus.Publish(trackChanged(1))
	bus.Unsubscribe(id)
	bus.Publish(trackChanged(1))

	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)
	assert.Equal(t, 1, bus.SubscriberCount())

	// Unknown and repeated ids are ignored
	bus.Unsubscribe(id)
	bus.Unsubscribe("sub-unknown")
	assert.Equal(t, 1, bus.SubscriberCount())
}

func TestSubscribeAll(t *testing.T) {
	bus := newTestBus(t)

	var types []domain.EventType
	id := bus.SubscribeAll(func(event domain.Event) { types = append(types, event.Type()) })

	assert.True(t, bus.HasSubscribers(domain.EventImportStarted))

	bus.Publish(trackChanged(1))
	bus.Publish(domain.NewPlayRecordedEvent(1))

	assert.Equal(t, []domain.EventType{domain.EventTrackChanged, domain.EventPlayRecorded}, types)

	bus.Unsubscribe(id)
	assert.False(t, bus.HasSubscribers(domain.EventImportStarted))
}

func TestPublish_HandlerPanicIsContained(t *testing.T) {
	bus := newTestBus(t)

	var after int
	bus.Subscribe(domain.EventTrackChanged, func(domain.Event) { panic("boom") })
	bus.Subscribe(domain.EventTrackChanged, func(domain.Event) { after++ })

	assert.NotPanics(t, func() { bus.Publish(trackChanged(1)) })
	assert.Equal(t, 1, after)
}

func TestPublish_NilEvent(t *testing.T) {
	bus := newTestBus(t)

	var calls int
	bus.SubscribeAll(func(domain.Event) { calls++ })
	bus.Publish(nil)

	assert.Zero(t, calls)
	assert.Zero(t, bus.Published())
}

func TestPublish_SubscribeFromHandler(t *testing.T) {
	bus := newTestBus(t)

	var late int
	bus.Subscribe(domain.EventTrackChanged, func(domain.Event) {
		bus.Subscribe(domain.EventTrackChanged, func(domain.Event) { late++ })
	})

	// The subscription made during delivery only sees later events
	bus.Publish(trackChanged(1))
	assert.Zero(t, late)

	bus.Publish(trackChanged(2))
	assert.Equal(t, 1, late)
}

func TestClose(t *testing.T) {
	bus := NewSyncEventBus(logger.NewTestLogger())

	var calls int
	bus.Subscribe(domain.EventTrackChanged, func(domain.Event) { calls++ })

	require.NoError(t, bus.Close())
	assert.ErrorIs(t, bus.Close(), ErrBusClosed)

	bus.Publish(trackChanged(1))
	assert.Zero(t, calls)
	assert.Zero(t, bus.SubscriberCount())

	assert.Panics(t, func() { bus.Subscribe(domain.EventTrackChanged, func(domain.Event) {}) })
}

func TestSubscribe_NilHandlerPanics(t *testing.T) {
	bus := newTestBus(t)

	assert.Panics(t, func() { bus.Subscribe(domain.EventTrackChanged, nil) })
	assert.Panics(t, func() { bus.SubscribeAll(nil) })
}

func TestConcurrentPublishSubscribe(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	bus := newTestBus(t)

	var received atomic.Int64
	bus.Subscribe(domain.EventEnginePosition, func(domain.Event) { received.Add(1) })

	const publishers, perPublisher = 8, 100

	var wg sync.WaitGroup
	for range publishers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perPublisher {
				bus.Publish(domain.NewEnginePositionEvent(int64(i)))
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for range 50 {
			id := bus.Subscribe(domain.EventVolumeChanged, func(domain.Event) {})
			bus.Unsubscribe(id)
		}
	}()

	wg.Wait()

	assert.Equal(t, int64(publishers*perPublisher), received.Load())
}
