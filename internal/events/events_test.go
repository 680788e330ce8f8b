package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/tourist-safety/internal/domain/safety"
)

var at = time.Date(2025, time.September, 3, 10, 0, 0, 0, time.UTC)

// TestBus_Delivery checks events reach matching subscribers in order.
func TestBus_Delivery(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	all := bus.Subscribe("")
	geofence := bus.Subscribe("geofence")

	require.Equal(t, 2, bus.Publish(StateChanged{Scenario: "geofence", From: "Safe", To: "DangerZone", Timestamp: at}))
	require.Equal(t, 1, bus.Publish(PositionChanged{Scenario: "emergency", Position: safety.Position{X: 1, Y: 2}, Timestamp: at}))

	first := <-all.Events()
	require.Equal(t, "geofence", first.ScenarioName())
	require.Equal(t, at, first.OccurredAt())

	second := <-all.Events()
	require.IsType(t, PositionChanged{}, second)

	got := <-geofence.Events()
	require.Equal(t, "DangerZone", got.(StateChanged).To)
	require.Empty(t, geofence.Events())
}

// TestBus_BackpressureDrop ensures a full subscriber never blocks the publisher.
func TestBus_BackpressureDrop(t *testing.T) {
	t.Parallel()

	var dropped []Event

	bus := NewBus(WithBuffer(1), WithDropHandler(func(e Event) { dropped = append(dropped, e) }))
	sub := bus.Subscribe("")

	entry := safety.Notification{ID: 1, Category: safety.CategoryLedger, Timestamp: at}

	require.Equal(t, 1, bus.Publish(NotificationAdded{Scenario: "credential", Entry: entry}))
	require.Equal(t, 0, bus.Publish(NotificationAdded{Scenario: "credential", Entry: entry}))
	require.Len(t, dropped, 1)
	require.Equal(t, at, dropped[0].OccurredAt())
	require.Len(t, sub.Events(), 1)
}

// TestBus_Close checks closing subscriptions and the bus.
func TestBus_Close(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	sub := bus.Subscribe("")
	other := bus.Subscribe("")

	sub.Close()
	sub.Close()
	require.Equal(t, 1, bus.Subscribers())

	_, ok := <-sub.Events()
	require.False(t, ok)

	bus.Close()
	bus.Close()
	require.Zero(t, bus.Subscribers())

	_, ok = <-other.Events()
	require.False(t, ok)

	require.Zero(t, bus.Publish(StateChanged{Scenario: "geofence"}))

	late := bus.Subscribe("")
	_, ok = <-late.Events()
	require.False(t, ok)

	// Closing a subscription of a closed bus is a no-op.
	late.Close()
	other.Close()
}
