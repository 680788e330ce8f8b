package scenario

import (
	"context"
	"errors"
	"fmt"

	"github.com/oshokin/tourist-safety/internal/cascade"
	"github.com/oshokin/tourist-safety/internal/config"
	"github.com/oshokin/tourist-safety/internal/domain/safety"
	"github.com/oshokin/tourist-safety/internal/machine"
	"github.com/oshokin/tourist-safety/internal/scheduler"
)

// Scenario names.
const (
	GeofenceName   = "geofence"
	EmergencyName  = "emergency"
	CredentialName = "credential"
)

// ErrUnknownScenario is returned for scenario names that do not exist.
var ErrUnknownScenario = errors.New("unknown scenario")

// Names lists every scenario in display order.
func Names() []string {
	return []string{GeofenceName, EmergencyName, CredentialName}
}

// Listeners receive scenario output. Every field is optional.
type Listeners struct {
	// OnTransition is called after every applied transition.
	OnTransition func(machine.Transition)
	// OnNotification is called for every appended notification.
	OnNotification func(scenario string, n safety.Notification)
	// OnPosition is called when a scenario's displayed position changes.
	OnPosition func(scenario string, p safety.Position)
	// Recorder receives trigger outcomes.
	Recorder machine.Recorder
}

// Snapshot is a read-only view of a scenario.
type Snapshot struct {
	Scenario      string
	State         machine.State
	Pending       int
	Triggers      []machine.Trigger
	Notifications []safety.Notification
	// Position is the displayed tourist position, nil when the scenario has none.
	Position *safety.Position
	// LastKnown is the position frozen when tracking stopped.
	LastKnown *safety.Position
	// Zone is the display status of the geofence.
	Zone string
	// Credential is the current tourist ID, nil before issue and after reset.
	Credential *safety.Credential
}

// Scenario is a running demo scenario.
type Scenario interface {
	Name() string
	Machine() *machine.Machine
	Fire(trigger machine.Trigger, actor *safety.Actor) machine.Result
	Snapshot() Snapshot
}

// Set holds one instance of every scenario on a shared queue.
type Set struct {
	byName map[string]Scenario
}

// NewSet builds every scenario from cfg.
func NewSet(ctx context.Context, cfg *config.Config, queue *scheduler.Queue, l Listeners) (*Set, error) {
	geofence, err := NewGeofence(ctx, cfg.Geofence, queue, l)
	if err != nil {
		return nil, err
	}

	emergency, err := NewEmergency(ctx, cfg.Emergency, queue, l)
	if err != nil {
		return nil, err
	}

	credential, err := NewCredential(ctx, cfg.Credential, queue, l)
	if err != nil {
		return nil, err
	}

	return &Set{
		byName: map[string]Scenario{
			GeofenceName:   geofence,
			EmergencyName:  emergency,
			CredentialName: credential,
		},
	}, nil
}

// Get returns the scenario called name.
func (s *Set) Get(name string) (Scenario, error) {
	sc, ok := s.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScenario, name)
	}

	return sc, nil
}

// Steps converts configured cascade steps. Categories are expected to be validated.
func Steps(steps []config.Step) []cascade.Step {
	result := make([]cascade.Step, 0, len(steps))

	for _, s := range steps {
		result = append(result, cascade.Step{
			Delay:    s.Delay,
			Category: safety.Category(s.Category),
			Message:  s.Message,
		})
	}

	return result
}

// base is the part every scenario shares.
type base struct {
	machine *machine.Machine
}

func newBase(ctx context.Context, table machine.Table, queue *scheduler.Queue, l Listeners, hook machine.Hook) (base, error) {
	name := table.Name

	var opts []machine.Option

	// State changes are reported before the scenario reacts to them.
	if l.OnTransition != nil {
		opts = append(opts, machine.WithHook(l.OnTransition))
	}

	opts = append(opts, machine.WithHook(hook))

	if l.OnNotification != nil {
		opts = append(opts, machine.WithNotificationListener(func(n safety.Notification) {
			l.OnNotification(name, n)
		}))
	}

	if l.Recorder != nil {
		opts = append(opts, machine.WithRecorder(l.Recorder))
	}

	m, err := machine.New(ctx, table, queue, opts...)
	if err != nil {
		return base{}, fmt.Errorf("create %s machine: %w", name, err)
	}

	return base{machine: m}, nil
}

// Name returns the scenario name.
func (b *base) Name() string {
	return b.machine.Name()
}

// Machine returns the underlying state machine.
func (b *base) Machine() *machine.Machine {
	return b.machine
}

// Fire offers trigger on behalf of actor.
func (b *base) Fire(trigger machine.Trigger, actor *safety.Actor) machine.Result {
	return b.machine.FireAs(trigger, actor)
}

// Reset returns the scenario to its initial state.
func (b *base) Reset(actor *safety.Actor) machine.Result {
	return b.machine.FireAs(machine.Reset, actor)
}

func (b *base) snapshot() Snapshot {
	table := b.machine.Table()

	return Snapshot{
		Scenario:      b.machine.Name(),
		State:         b.machine.Current(),
		Pending:       b.machine.Pending(),
		Triggers:      table.Triggers(),
		Notifications: b.machine.Notifications(),
	}
}

func positionPtr(p safety.Position) *safety.Position {
	return &p
}
