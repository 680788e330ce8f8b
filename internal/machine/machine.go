package machine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/oshokin/tourist-safety/internal/cascade"
	"github.com/oshokin/tourist-safety/internal/domain/safety"
	"github.com/oshokin/tourist-safety/internal/logger"
	"github.com/oshokin/tourist-safety/internal/scheduler"
)

// Transition describes an applied state change.
type Transition struct {
	Machine string
	From    State
	To      State
	Trigger Trigger
	// Actor is the operator who sent the trigger; nil for automatic transitions.
	Actor *safety.Actor
	At    time.Time
}

// Hook is called after every applied transition, in registration order.
type Hook func(Transition)

// Recorder receives per-trigger outcomes, e.g. for metrics.
type Recorder interface {
	TriggerApplied(machine, trigger, state string)
	TriggerIgnored(machine, trigger, reason string)
}

// Machine runs one scenario table on a scheduler queue.
type Machine struct {
	id      string
	table   Table
	edges   map[edgeKey]Edge
	targets map[Trigger]map[State]struct{}

	queue   *scheduler.Queue
	cascade *cascade.Cascade

	current    State
	generation uint64
	owner      scheduler.Owner

	hooks       []Hook
	onNotify    []func(safety.Notification)
	recorder    Recorder
	logger      *zap.SugaredLogger
	preferredID string
}

// Option configures a Machine.
type Option func(*Machine)

// WithHook registers a hook called after every applied transition.
func WithHook(h Hook) Option {
	return func(m *Machine) {
		m.hooks = append(m.hooks, h)
	}
}

// WithNotificationListener registers a listener for every appended notification.
func WithNotificationListener(fn func(safety.Notification)) Option {
	return func(m *Machine) {
		m.onNotify = append(m.onNotify, fn)
	}
}

// WithRecorder attaches a trigger outcome recorder.
func WithRecorder(r Recorder) Option {
	return func(m *Machine) {
		m.recorder = r
	}
}

// WithID overrides the random instance ID.
func WithID(id string) Option {
	return func(m *Machine) {
		m.preferredID = id
	}
}

// New validates table and creates a machine in its initial state.
func New(ctx context.Context, table Table, queue *scheduler.Queue, opts ...Option) (*Machine, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}

	m := &Machine{
		table:   table,
		edges:   make(map[edgeKey]Edge, len(table.Edges)),
		targets: make(map[Trigger]map[State]struct{}),
		queue:   queue,
		current: table.Initial,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.id = m.preferredID
	if m.id == "" {
		m.id = uuid.NewString()
	}

	for _, e := range table.Edges {
		m.edges[edgeKey{from: e.From, trigger: e.Trigger}] = e

		if m.targets[e.Trigger] == nil {
			m.targets[e.Trigger] = make(map[State]struct{})
		}

		m.targets[e.Trigger][e.To] = struct{}{}
	}

	ctx = logger.WithKV(logger.WithName(ctx, table.Name), "machine_id", m.id)
	m.logger = logger.FromContext(ctx)
	m.cascade = cascade.New(queue, m.logger, m.notify)
	m.owner = m.ownerTag()

	return m, nil
}

// ID returns the instance ID.
func (m *Machine) ID() string {
	return m.id
}

// Name returns the scenario name of the table.
func (m *Machine) Name() string {
	return m.table.Name
}

// Table returns the transition table.
func (m *Machine) Table() Table {
	return m.table
}

// Current returns the current state.
func (m *Machine) Current() State {
	return m.current
}

// Owner returns the owner tag of the current generation.
func (m *Machine) Owner() scheduler.Owner {
	return m.owner
}

// Pending returns how many scheduled actions of the current generation have not fired.
func (m *Machine) Pending() int {
	return m.queue.Pending(m.owner)
}

// Notifications returns a copy of the notification log.
func (m *Machine) Notifications() []safety.Notification {
	return m.cascade.Entries()
}

// Fire offers trigger to the machine on behalf of nobody.
func (m *Machine) Fire(trigger Trigger) Result {
	return m.FireAs(trigger, nil)
}

// FireAs offers trigger to the machine on behalf of actor.
func (m *Machine) FireAs(trigger Trigger, actor *safety.Actor) Result {
	if trigger == Reset {
		return m.reset(actor)
	}

	if m.queue.Pending(m.owner) > 0 {
		return m.ignore(trigger, AlreadyInState)
	}

	edge, ok := m.edges[edgeKey{from: m.current, trigger: trigger}]
	if !ok {
		if _, leadsHere := m.targets[trigger][m.current]; leadsHere {
			return m.ignore(trigger, AlreadyInState)
		}

		return m.ignore(trigger, NoSuchTransition)
	}

	m.apply(edge.To, trigger, actor)

	if len(edge.Cascade) > 0 {
		m.cascade.Emit(m.owner, edge.Cascade)
	}

	if edge.Then != "" {
		m.scheduleCompletion(edge)
	}

	m.record(trigger, ReasonNone)

	return applied(edge.To)
}

// reset cancels the current generation, opens a new one and enters the initial state.
func (m *Machine) reset(actor *safety.Actor) Result {
	cancelled := m.cascade.Clear(m.owner)

	m.generation++
	m.owner = m.ownerTag()

	m.logger.Debugw("Machine reset", "cancelled_actions", cancelled, "owner", m.owner)
	m.apply(m.table.Initial, Reset, actor)
	m.record(Reset, ReasonNone)

	return applied(m.table.Initial)
}

// scheduleCompletion queues the automatic transition that follows the last cascade step.
// Equal due times fire in scheduling order, so it always runs after that step.
func (m *Machine) scheduleCompletion(edge Edge) {
	owner := m.owner

	_, err := m.queue.Schedule(owner, cascadeSpan(edge.Cascade), "complete:"+string(edge.Then), func() {
		if owner != m.owner || m.current != edge.To {
			return
		}

		m.apply(edge.Then, Complete, nil)
		m.record(Complete, ReasonNone)
	})
	if err != nil {
		m.logger.Debugw("Completion not scheduled", "owner", owner, "error", err)
	}
}

func (m *Machine) apply(to State, trigger Trigger, actor *safety.Actor) {
	t := Transition{
		Machine: m.table.Name,
		From:    m.current,
		To:      to,
		Trigger: trigger,
		Actor:   actor.Clone(),
		At:      m.queue.Now(),
	}

	m.current = to

	m.logger.Infow("State changed", "from", t.From, "to", t.To, "trigger", t.Trigger, "actor", t.Actor.String())

	for _, h := range m.hooks {
		h(t)
	}
}

func (m *Machine) ignore(trigger Trigger, reason Reason) Result {
	m.logger.Debugw("Trigger ignored", "state", m.current, "trigger", trigger, "reason", reason.String())
	m.record(trigger, reason)

	return ignored(m.current, reason)
}

func (m *Machine) record(trigger Trigger, reason Reason) {
	if m.recorder == nil {
		return
	}

	if reason == ReasonNone {
		m.recorder.TriggerApplied(m.table.Name, string(trigger), string(m.current))

		return
	}

	m.recorder.TriggerIgnored(m.table.Name, string(trigger), reason.String())
}

func (m *Machine) notify(n safety.Notification) {
	for _, fn := range m.onNotify {
		fn(n)
	}
}

func (m *Machine) ownerTag() scheduler.Owner {
	return scheduler.Owner(fmt.Sprintf("%s/%s#%d", m.table.Name, m.id, m.generation))
}
