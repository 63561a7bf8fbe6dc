package events

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Bus fans events out to in-process subscribers. Publishing never blocks:
// a subscriber whose buffer is full misses the event.
type Bus struct {
	mu   sync.RWMutex
	subs map[uint64]*Subscription
	next uint64
	log  zerolog.Logger
}

// Subscription receives events accepted by its filter
type Subscription struct {
	id      uint64
	ch      chan Event
	filter  func(Event) bool
	bus     *Bus
	dropped atomic.Int64
	once    sync.Once
}

// NewBus creates an empty bus
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		subs: make(map[uint64]*Subscription),
		log:  log.With().Str("service", "event_bus").Logger(),
	}
}

// Subscribe registers a subscriber. A nil filter accepts every event.
func (b *Bus) Subscribe(buffer int, filter func(Event) bool) *Subscription {
	if buffer < 1 {
		buffer = 1
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.next++
	sub := &Subscription{
		id:     b.next,
		ch:     make(chan Event, buffer),
		filter: filter,
		bus:    b,
	}
	b.subs[sub.id] = sub
	return sub
}

// Publish delivers e to every matching subscriber
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		if sub.filter != nil && !sub.filter(e) {
			continue
		}
		select {
		case sub.ch <- e:
		default:
			sub.dropped.Add(1)
			b.log.Debug().
				Uint64("subscriber", sub.id).
				Str("event_type", string(e.Type)).
				Msg("Subscriber buffer full, event dropped")
		}
	}
}

// SubscriberCount returns the number of active subscriptions
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// C returns the delivery channel. It is closed by Close.
func (s *Subscription) C() <-chan Event {
	return s.ch
}

// Dropped returns how many events this subscriber missed
func (s *Subscription) Dropped() int64 {
	return s.dropped.Load()
}

// Close unregisters the subscription and closes its channel
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s.id)
		s.bus.mu.Unlock()
		close(s.ch)
	})
}

// ForUser returns a filter accepting events for userID
func ForUser(userID string) func(Event) bool {
	return func(e Event) bool {
		return e.UserID == userID
	}
}
