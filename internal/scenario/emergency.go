package scenario

import (
	"context"

	"github.com/oshokin/tourist-safety/internal/config"
	"github.com/oshokin/tourist-safety/internal/domain/safety"
	"github.com/oshokin/tourist-safety/internal/machine"
	"github.com/oshokin/tourist-safety/internal/motion"
	"github.com/oshokin/tourist-safety/internal/scheduler"
)

// Emergency states and triggers.
const (
	StateNormal       machine.State = "Normal"
	StateInactive     machine.State = "Inactive"
	StateLocationLost machine.State = "LocationLost"

	TriggerGoInactive machine.Trigger = "goInactive"
	TriggerLoseSignal machine.Trigger = "loseSignal"
)

// EmergencyTable returns the emergency transition table.
func EmergencyTable(cfg config.EmergencyConfig) machine.Table {
	return machine.Table{
		Name:    EmergencyName,
		Initial: StateNormal,
		Edges: []machine.Edge{
			{From: StateNormal, Trigger: TriggerGoInactive, To: StateInactive, Cascade: Steps(cfg.OnInactive)},
			{From: StateNormal, Trigger: TriggerLoseSignal, To: StateLocationLost, Cascade: Steps(cfg.OnSignalLost)},
		},
	}
}

// MotionConfig converts the configured walk.
func MotionConfig(cfg config.MotionConfig) motion.Config {
	return motion.Config{
		Start:  safety.Position{X: cfg.Start.X, Y: cfg.Start.Y},
		Min:    cfg.Min,
		Max:    cfg.Max,
		Jitter: cfg.Jitter,
		Period: cfg.Period,
		Seed:   cfg.Seed,
	}
}

// Emergency is the inactivity and signal-loss scenario. The tourist walks
// while the machine is Normal and freezes on any other state.
type Emergency struct {
	base

	walker    *motion.Walker
	lastKnown *safety.Position
}

// NewEmergency creates the emergency scenario in state Normal with motion running.
func NewEmergency(ctx context.Context, cfg config.EmergencyConfig, queue *scheduler.Queue, l Listeners) (*Emergency, error) {
	e := new(Emergency)

	var onStep func(safety.Position)
	if l.OnPosition != nil {
		onStep = func(p safety.Position) { l.OnPosition(EmergencyName, p) }
	}

	e.walker = motion.New(EmergencyName, queue, MotionConfig(cfg.Motion), onStep)

	hook := func(t machine.Transition) {
		switch {
		case t.To == StateNormal:
			e.lastKnown = nil
			e.walker.Restart()

			if onStep != nil {
				onStep(e.walker.Position())
			}
		case t.From == StateNormal:
			e.walker.Pause()
			e.lastKnown = positionPtr(e.walker.Position())
		}
	}

	b, err := newBase(ctx, EmergencyTable(cfg), queue, l, hook)
	if err != nil {
		return nil, err
	}

	e.base = b
	e.walker.Start()

	return e, nil
}

// Walker returns the simulated tourist.
func (e *Emergency) Walker() *motion.Walker {
	return e.walker
}

// Position returns the current tourist position.
func (e *Emergency) Position() safety.Position {
	return e.walker.Position()
}

// LastKnown returns the position frozen when the scenario left Normal.
func (e *Emergency) LastKnown() (safety.Position, bool) {
	if e.lastKnown == nil {
		return safety.Position{}, false
	}

	return *e.lastKnown, true
}

// Snapshot returns a read-only view of the scenario.
func (e *Emergency) Snapshot() Snapshot {
	s := e.snapshot()
	s.Position = positionPtr(e.walker.Position())

	if e.lastKnown != nil {
		s.LastKnown = positionPtr(*e.lastKnown)
	}

	return s
}
