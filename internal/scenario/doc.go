// Package scenario assembles the three demo scenarios from configuration:
// the geofence breach, the emergency inactivity/signal-loss incident and the
// tourist ID credential lifecycle. Each scenario wraps one machine, keeps the
// scenario-specific state the machine does not know about (positions, the
// credential) and reports changes through Listeners.
//
// Scenarios are not safe for concurrent use; the owner serializes every call
// with the queue that drives them.
package scenario
