// Package eventbus provides the in-process event bus that carries queue,
// library and import notifications from services to observers.
package eventbus

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/tejashwikalptaru/tunelib/internal/domain"
	"github.com/tejashwikalptaru/tunelib/internal/ports"
)

// ErrBusClosed is returned by Close on a bus that is already closed.
var ErrBusClosed = errors.New("event bus already closed")

// wildcard keys subscriptions made through SubscribeAll.
const wildcard domain.EventType = "*"

// SyncEventBus delivers events synchronously on the publishing goroutine.
// Typed subscribers run first, in subscription order, then wildcard subscribers.
//
// Thread-safety: safe for concurrent Publish/Subscribe/Unsubscribe. Handlers may
// publish or subscribe from inside a delivery; they see the subscription set as
// it was when the outer Publish started.
type SyncEventBus struct {
	logger *slog.Logger

	mu     sync.RWMutex
	subs   map[domain.EventType][]subscription
	closed bool

	nextID    atomic.Uint64
	published atomic.Uint64
}

type subscription struct {
	id      domain.SubscriptionID
	handler domain.EventHandler
}

// NewSyncEventBus creates an event bus. A nil logger discards bus diagnostics.
func NewSyncEventBus(logger *slog.Logger) *SyncEventBus {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SyncEventBus{
		logger: logger.With(slog.String("component", "eventbus")),
		subs:   make(map[domain.EventType][]subscription),
	}
}

// Publish delivers event to its typed subscribers and then to wildcard subscribers.
// A panicking handler is logged and does not stop delivery to the others.
// Publishing on a closed bus or publishing nil does nothing.
func (bus *SyncEventBus) Publish(event domain.Event) {
	if event == nil {
		return
	}

	bus.mu.RLock()
	if bus.closed {
		bus.mu.RUnlock()
		return
	}
	targets := make([]subscription, 0, len(bus.subs[event.Type()])+len(bus.subs[wildcard]))
	targets = append(targets, bus.subs[event.Type()]...)
	targets = append(targets, bus.subs[wildcard]...)
	bus.mu.RUnlock()

	bus.published.Add(1)
	if len(targets) == 0 {
		return
	}

	bus.logger.Debug("event published",
		slog.String("event_type", string(event.Type())),
		slog.Int("subscribers", len(targets)))

	for _, sub := range targets {
		bus.deliver(sub, event)
	}
}

func (bus *SyncEventBus) deliver(sub subscription, event domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			bus.logger.Error("event handler panicked",
				slog.Any("panic", r),
				slog.String("subscription", string(sub.id)),
				slog.String("event_type", string(event.Type())))
		}
	}()
	sub.handler(event)
}

// Subscribe registers handler for events of eventType.
// Subscribing on a closed bus or with a nil handler panics.
func (bus *SyncEventBus) Subscribe(eventType domain.EventType, handler domain.EventHandler) domain.SubscriptionID {
	return bus.add(eventType, "sub", handler)
}

// SubscribeAll registers handler for every event.
func (bus *SyncEventBus) SubscribeAll(handler domain.EventHandler) domain.SubscriptionID {
	return bus.add(wildcard, "sub-all", handler)
}

func (bus *SyncEventBus) add(key domain.EventType, prefix string, handler domain.EventHandler) domain.SubscriptionID {
	if handler == nil {
		panic("event handler cannot be nil")
	}

	bus.mu.Lock()
	defer bus.mu.Unlock()

	if bus.closed {
		panic("cannot subscribe to closed event bus")
	}

	id := domain.SubscriptionID(fmt.Sprintf("%s-%d", prefix, bus.nextID.Add(1)))

	// Copy on write so in-flight deliveries keep their snapshot
	bus.subs[key] = append(slices.Clip(bus.subs[key]), subscription{id: id, handler: handler})
	return id
}

// Unsubscribe removes a subscription. Unknown ids are ignored.
// Relative order of the remaining subscribers is preserved.
func (bus *SyncEventBus) Unsubscribe(id domain.SubscriptionID) {
	bus.mu.Lock()
	defer bus.mu.Unlock()

	for key, subs := range bus.subs {
		i := slices.IndexFunc(subs, func(s subscription) bool { return s.id == id })
		if i < 0 {
			continue
		}
		remaining := slices.Delete(slices.Clone(subs), i, i+1)
		if len(remaining) == 0 {
			delete(bus.subs, key)
		} else {
			bus.subs[key] = remaining
		}
		return
	}
}

// HasSubscribers reports whether publishing eventType would reach any handler.
func (bus *SyncEventBus) HasSubscribers(eventType domain.EventType) bool {
	bus.mu.RLock()
	defer bus.mu.RUnlock()

	return len(bus.subs[eventType]) > 0 || len(bus.subs[wildcard]) > 0
}

// Close drops every subscription. Later publishes are ignored.
func (bus *SyncEventBus) Close() error {
	bus.mu.Lock()
	defer bus.mu.Unlock()

	if bus.closed {
		return ErrBusClosed
	}
	bus.closed = true
	bus.subs = make(map[domain.EventType][]subscription)
	return nil
}

// SubscriberCount returns the number of live subscriptions, wildcard included.
func (bus *SyncEventBus) SubscriberCount() int {
	bus.mu.RLock()
	defer bus.mu.RUnlock()

	count := 0
	for _, subs := range bus.subs {
		count += len(subs)
	}
	return count
}

// Published returns how many events have been published since creation.
func (bus *SyncEventBus) Published() uint64 {
	return bus.published.Load()
}

var _ ports.EventBus = (*SyncEventBus)(nil)
