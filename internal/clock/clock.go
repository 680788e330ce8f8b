// Package clock abstracts the time source of a simulation timeline so the
// scheduler can run against the wall clock or against a manually advanced one.
package clock

import (
	"sync"
	"time"
)

// Clock reports the current time of a timeline.
type Clock interface {
	Now() time.Time
}

// System is the wall clock.
type System struct{}

// Now returns time.Now.
func (System) Now() time.Time {
	return time.Now()
}

// Manual is a clock that only moves when told to. It never goes backwards.
type Manual struct {
	mu  sync.RWMutex
	now time.Time
}

// NewManual creates a manual clock reading start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now returns the current manual time.
func (m *Manual) Now() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.now
}

// Set moves the clock to t. Earlier instants are ignored.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t.After(m.now) {
		m.now = t
	}
}

// Add moves the clock forward by d and returns the new time.
func (m *Manual) Add(d time.Duration) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	if d > 0 {
		m.now = m.now.Add(d)
	}

	return m.now
}
