package simulator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oshokin/tourist-safety/internal/clock"
	"github.com/oshokin/tourist-safety/internal/config"
	"github.com/oshokin/tourist-safety/internal/domain/safety"
	"github.com/oshokin/tourist-safety/internal/events"
	"github.com/oshokin/tourist-safety/internal/logger"
	"github.com/oshokin/tourist-safety/internal/machine"
	"github.com/oshokin/tourist-safety/internal/observability"
	"github.com/oshokin/tourist-safety/internal/scenario"
	"github.com/oshokin/tourist-safety/internal/scheduler"
)

// Session owns one timeline.
type Session struct {
	id        string
	clock     clock.Clock
	collector *observability.Collector
	bus       *events.Bus

	// mu serializes triggers, snapshots and queue firings.
	mu        sync.Mutex
	queue     *scheduler.Queue
	scenarios *scenario.Set
}

// Option configures a Session.
type Option func(*Session)

// WithClock replaces the wall clock, e.g. with a clock.Manual for Advance.
func WithClock(c clock.Clock) Option {
	return func(s *Session) {
		s.clock = c
	}
}

// WithCollector records metrics into c.
func WithCollector(c *observability.Collector) Option {
	return func(s *Session) {
		s.collector = c
	}
}

// New creates a session with every scenario in its initial state.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Session, error) {
	s := &Session{
		id:    uuid.NewString(),
		clock: clock.System{},
	}

	for _, opt := range opts {
		opt(s)
	}

	ctx = logger.WithKV(ctx, "session", s.id)

	var (
		queueOpts []scheduler.Option
		busOpts   []events.Option
		recorder  machine.Recorder
	)

	if s.collector != nil {
		queueOpts = append(queueOpts, scheduler.WithObserver(s.collector))
		busOpts = append(busOpts, events.WithDropHandler(s.collector.EventDropped))
		recorder = s.collector
	}

	s.queue = scheduler.New(s.clock, queueOpts...)
	s.bus = events.NewBus(busOpts...)

	scenarios, err := scenario.NewSet(ctx, cfg, s.queue, scenario.Listeners{
		OnTransition:   s.publishTransition,
		OnNotification: s.publishNotification,
		OnPosition:     s.publishPosition,
		Recorder:       recorder,
	})
	if err != nil {
		return nil, fmt.Errorf("create scenarios: %w", err)
	}

	s.scenarios = scenarios

	logger.InfoKV(ctx, "Session created", "scenarios", scenario.Names())

	return s, nil
}

// ID returns the session ID.
func (s *Session) ID() string {
	return s.id
}

// Now returns the session time.
func (s *Session) Now() time.Time {
	return s.queue.Now()
}

// Fire offers trigger to the named scenario on behalf of actor.
// Only an unknown scenario is an error; ignored triggers are reported in the result.
func (s *Session) Fire(ctx context.Context, name, trigger string, actor *safety.Actor) (machine.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc, err := s.scenarios.Get(name)
	if err != nil {
		return machine.Result{}, err
	}

	result := sc.Fire(machine.Trigger(trigger), actor)

	logger.DebugKV(ctx, "Trigger handled",
		"scenario", name, "trigger", trigger, "actor", actor.String(), "result", result.String())

	return result, nil
}

// Snapshot returns a view of the named scenario.
func (s *Session) Snapshot(_ context.Context, name string) (scenario.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc, err := s.scenarios.Get(name)
	if err != nil {
		return scenario.Snapshot{}, err
	}

	return sc.Snapshot(), nil
}

// Snapshots returns a view of every scenario in display order.
func (s *Session) Snapshots(ctx context.Context) []scenario.Snapshot {
	result := make([]scenario.Snapshot, 0, len(scenario.Names()))

	for _, name := range scenario.Names() {
		snapshot, err := s.Snapshot(ctx, name)
		if err != nil {
			continue
		}

		result = append(result, snapshot)
	}

	return result
}

// Subscribe streams the events of the named scenario, or of all scenarios
// when name is empty. The caller must close the subscription.
func (s *Session) Subscribe(name string) (*events.Subscription, error) {
	if name != "" {
		if _, err := s.scenarios.Get(name); err != nil {
			return nil, err
		}
	}

	return s.bus.Subscribe(name), nil
}

// Run fires scheduled actions in real time until ctx is done.
func (s *Session) Run(ctx context.Context) {
	logger.DebugKV(ctx, "Session timeline started", "session", s.id)
	s.queue.Run(ctx, &s.mu)
	logger.DebugKV(ctx, "Session timeline stopped", "session", s.id)
}

// Advance moves a manual session clock forward by d, firing due actions.
func (s *Session) Advance(d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.queue.Advance(d); err != nil {
		return fmt.Errorf("advance session: %w", err)
	}

	return nil
}

// Close ends every subscription.
func (s *Session) Close() {
	s.bus.Close()
}

func (s *Session) publishTransition(t machine.Transition) {
	s.bus.Publish(events.StateChanged{
		Scenario:  t.Machine,
		From:      string(t.From),
		To:        string(t.To),
		Trigger:   string(t.Trigger),
		Actor:     t.Actor.Clone(),
		Timestamp: t.At,
	})
}

func (s *Session) publishNotification(name string, n safety.Notification) {
	s.bus.Publish(events.NotificationAdded{Scenario: name, Entry: n})
}

func (s *Session) publishPosition(name string, p safety.Position) {
	s.bus.Publish(events.PositionChanged{Scenario: name, Position: p, Timestamp: s.queue.Now()})
}
