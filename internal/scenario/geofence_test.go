package scenario

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/tourist-safety/internal/config"
	"github.com/oshokin/tourist-safety/internal/domain/safety"
	"github.com/oshokin/tourist-safety/internal/machine"
)

// TestGeofence_BreachCascade checks the breach notifications and the re-entry guard.
func TestGeofence_BreachCascade(t *testing.T) {
	t.Parallel()

	cfg := config.Default().Geofence
	set, queue := newTestSet(t, Listeners{})
	geofence := mustGet(t, set, GeofenceName).(*Geofence)

	require.Equal(t, ZoneSafe, geofence.Zone())
	require.Equal(t, safety.Position{X: cfg.SafeZones[0].Lat, Y: cfg.SafeZones[0].Lng}, geofence.Position())

	result := geofence.Fire(TriggerEnterDanger, nil)
	require.Equal(t, "Applied(DangerZone)", result.String())
	require.Empty(t, geofence.Snapshot().Notifications)
	require.Equal(t, ZoneDanger, geofence.Zone())
	require.Equal(t, safety.Position{X: cfg.DangerZone.Lat, Y: cfg.DangerZone.Lng}, geofence.Position())

	require.NoError(t, queue.Advance(time.Second))
	require.Len(t, geofence.Snapshot().Notifications, 1)

	// Still pending: blocked.
	require.Equal(t, machine.AlreadyInState, geofence.Fire(TriggerApprove, nil).Reason)

	require.NoError(t, queue.Advance(2*time.Second))

	entries := geofence.Snapshot().Notifications
	require.Equal(t,
		[]safety.Category{safety.CategoryAuthority, safety.CategoryContact, safety.CategoryLedger},
		categories(entries))
	require.Equal(t, cfg.OnEnterDanger[0].Message, entries[0].Message)
	require.Equal(t, testStart.Add(3*time.Second), entries[2].Timestamp)

	// A second breach while in the danger zone is ignored.
	result = geofence.Fire(TriggerEnterDanger, nil)
	require.Equal(t, "Ignored(already_in_state)", result.String())
	require.Len(t, geofence.Snapshot().Notifications, 3)

	require.True(t, geofence.Fire(TriggerApprove, nil).Applied())
	require.NoError(t, queue.Advance(0))

	snapshot := geofence.Snapshot()
	require.Equal(t, StateApproved, snapshot.State)
	require.Equal(t, ZoneApproved, snapshot.Zone)
	require.Len(t, snapshot.Notifications, 4)
	require.Equal(t, "Police approval granted - Access authorized", snapshot.Notifications[3].Message)
}

// TestGeofence_PositionEvents checks the marker moves only when the zone changes.
func TestGeofence_PositionEvents(t *testing.T) {
	t.Parallel()

	var positions []safety.Position

	set, queue := newTestSet(t, Listeners{
		OnPosition: func(scenario string, p safety.Position) {
			if scenario == GeofenceName {
				positions = append(positions, p)
			}
		},
	})
	geofence := mustGet(t, set, GeofenceName).(*Geofence)
	safe := geofence.Position()

	geofence.Fire(TriggerEnterDanger, nil)
	require.NoError(t, queue.Advance(3*time.Second))
	danger := geofence.Position()

	geofence.Fire(TriggerApprove, nil)
	require.NoError(t, queue.Advance(time.Second))
	geofence.Fire(machine.Reset, nil)

	require.Equal(t, []safety.Position{danger, safe}, positions)
}
