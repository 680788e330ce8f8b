package scenario

import (
	"context"

	"github.com/oshokin/tourist-safety/internal/config"
	"github.com/oshokin/tourist-safety/internal/domain/safety"
	"github.com/oshokin/tourist-safety/internal/machine"
	"github.com/oshokin/tourist-safety/internal/scheduler"
)

// Geofence states and triggers.
const (
	StateSafe       machine.State = "Safe"
	StateDangerZone machine.State = "DangerZone"
	StateApproved   machine.State = "Approved"

	TriggerEnterDanger machine.Trigger = "enterDanger"
	TriggerApprove     machine.Trigger = "approve"
)

// Zone display statuses.
const (
	ZoneSafe     = "safe"
	ZoneDanger   = "danger"
	ZoneApproved = "approved"
)

// GeofenceTable returns the geofence transition table.
func GeofenceTable(cfg config.GeofenceConfig) machine.Table {
	return machine.Table{
		Name:    GeofenceName,
		Initial: StateSafe,
		Edges: []machine.Edge{
			{From: StateSafe, Trigger: TriggerEnterDanger, To: StateDangerZone, Cascade: Steps(cfg.OnEnterDanger)},
			{From: StateDangerZone, Trigger: TriggerApprove, To: StateApproved, Cascade: Steps(cfg.OnApprove)},
		},
	}
}

// Geofence is the danger-zone breach scenario.
type Geofence struct {
	base

	cfg config.GeofenceConfig
}

// NewGeofence creates the geofence scenario in state Safe.
func NewGeofence(ctx context.Context, cfg config.GeofenceConfig, queue *scheduler.Queue, l Listeners) (*Geofence, error) {
	g := &Geofence{cfg: cfg}

	hook := func(t machine.Transition) {
		if l.OnPosition == nil {
			return
		}

		if from, to := g.positionIn(t.From), g.positionIn(t.To); from != to {
			l.OnPosition(GeofenceName, to)
		}
	}

	b, err := newBase(ctx, GeofenceTable(cfg), queue, l, hook)
	if err != nil {
		return nil, err
	}

	g.base = b

	return g, nil
}

// Position returns the tourist marker: the first safe zone centre, or the
// danger zone centre once the tourist entered it. X is latitude, Y longitude.
func (g *Geofence) Position() safety.Position {
	return g.positionIn(g.machine.Current())
}

// Zone returns the display status of the danger zone.
func (g *Geofence) Zone() string {
	switch g.machine.Current() {
	case StateDangerZone:
		return ZoneDanger
	case StateApproved:
		return ZoneApproved
	default:
		return ZoneSafe
	}
}

// Snapshot returns a read-only view of the scenario.
func (g *Geofence) Snapshot() Snapshot {
	s := g.snapshot()
	s.Position = positionPtr(g.Position())
	s.Zone = g.Zone()

	return s
}

func (g *Geofence) positionIn(state machine.State) safety.Position {
	if state == StateDangerZone || state == StateApproved {
		return zoneCentre(g.cfg.DangerZone)
	}

	if len(g.cfg.SafeZones) == 0 {
		return safety.Position{}
	}

	return zoneCentre(g.cfg.SafeZones[0])
}

func zoneCentre(z config.Zone) safety.Position {
	return safety.Position{X: z.Lat, Y: z.Lng}
}
