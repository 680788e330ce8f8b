// Package events carries scenario output to renderers: state changes,
// appended notifications and position updates. Delivery never blocks the
// publisher; a subscriber that falls behind loses events.
package events

import (
	"sync"
	"time"

	"github.com/oshokin/tourist-safety/internal/domain/safety"
)

// Event is one scenario output.
type Event interface {
	// ScenarioName returns the scenario that produced the event.
	ScenarioName() string
	// OccurredAt returns the timeline time of the event.
	OccurredAt() time.Time
}

// StateChanged is published on every applied transition.
type StateChanged struct {
	Scenario  string
	From      string
	To        string
	Trigger   string
	Actor     *safety.Actor
	Timestamp time.Time
}

// NotificationAdded is published on every notification append.
type NotificationAdded struct {
	Scenario string
	Entry    safety.Notification
}

// PositionChanged is published when a displayed position moves.
type PositionChanged struct {
	Scenario  string
	Position  safety.Position
	Timestamp time.Time
}

// ScenarioName implements Event.
func (e StateChanged) ScenarioName() string { return e.Scenario }

// OccurredAt implements Event.
func (e StateChanged) OccurredAt() time.Time { return e.Timestamp }

// ScenarioName implements Event.
func (e NotificationAdded) ScenarioName() string { return e.Scenario }

// OccurredAt implements Event.
func (e NotificationAdded) OccurredAt() time.Time { return e.Entry.Timestamp }

// ScenarioName implements Event.
func (e PositionChanged) ScenarioName() string { return e.Scenario }

// OccurredAt implements Event.
func (e PositionChanged) OccurredAt() time.Time { return e.Timestamp }

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 64

// Bus fans events out to subscribers.
type Bus struct {
	mu     sync.Mutex
	buffer int
	nextID uint64
	subs   map[uint64]*Subscription
	onDrop func(Event)
	closed bool
}

// Option configures a Bus.
type Option func(*Bus)

// WithBuffer sets the per-subscriber channel capacity.
func WithBuffer(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.buffer = n
		}
	}
}

// WithDropHandler registers fn for every event a subscriber could not take.
func WithDropHandler(fn func(Event)) Option {
	return func(b *Bus) {
		b.onDrop = fn
	}
}

// NewBus creates an empty bus.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		buffer: DefaultBuffer,
		subs:   make(map[uint64]*Subscription),
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Subscription receives the events of one scenario, or of all when the filter is empty.
type Subscription struct {
	bus      *Bus
	id       uint64
	scenario string
	ch       chan Event
}

// Subscribe registers a subscriber. Subscribing to a closed bus returns a
// subscription whose channel is already closed.
func (b *Bus) Subscribe(scenario string) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := &Subscription{
		bus:      b,
		scenario: scenario,
		ch:       make(chan Event, b.buffer),
	}

	if b.closed {
		close(s.ch)

		return s
	}

	b.nextID++
	s.id = b.nextID
	b.subs[s.id] = s

	return s
}

// Publish offers e to every matching subscriber without blocking and returns
// how many took it.
func (b *Bus) Publish(e Event) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	delivered := 0

	for _, s := range b.subs {
		if s.scenario != "" && s.scenario != e.ScenarioName() {
			continue
		}

		select {
		case s.ch <- e:
			delivered++
		default:
			if b.onDrop != nil {
				b.onDrop(e)
			}
		}
	}

	return delivered
}

// Subscribers returns the number of live subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.subs)
}

// Close closes every subscription. Later publishes are dropped silently.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.closed = true

	for id, s := range b.subs {
		delete(b.subs, id)
		close(s.ch)
	}
}

// Events returns the delivery channel. It is closed by Close.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Close unregisters the subscription. Closing twice is safe.
func (s *Subscription) Close() {
	b := s.bus

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[s.id]; !ok {
		return
	}

	delete(b.subs, s.id)
	close(s.ch)
}
