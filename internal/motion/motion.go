// Package motion simulates a tourist walking around the demo map: a bounded
// random walk stepped on a fixed period by the scheduler queue.
package motion

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/oshokin/tourist-safety/internal/domain/safety"
	"github.com/oshokin/tourist-safety/internal/scheduler"
)

// Config parameterizes the random walk.
type Config struct {
	// Start is the initial position and the position restored by Restart.
	Start safety.Position
	// Min and Max bound both coordinates.
	Min float64
	Max float64
	// Jitter is the width of the uniform per-axis offset, centred on zero.
	Jitter float64
	// Period is the time between automatic steps.
	Period time.Duration
	// Seed makes trajectories reproducible.
	Seed uint64
}

// DefaultConfig returns the walk used by the emergency demo.
func DefaultConfig() Config {
	return Config{
		Start:  safety.Position{X: 50, Y: 60},
		Min:    10,
		Max:    90,
		Jitter: 8,
		Period: 2 * time.Second,
		Seed:   1,
	}
}

// NewRand returns the generator a walker seeded with seed uses.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) //nolint:gosec // Simulation only.
}

// Walker owns one actor position. It is not safe for concurrent use.
type Walker struct {
	cfg    Config
	queue  *scheduler.Queue
	rng    *rand.Rand
	onStep func(safety.Position)

	name       string
	generation uint64
	owner      scheduler.Owner

	position safety.Position
	active   bool
}

// New creates a paused walker at cfg.Start. onStep, if set, receives every new position.
func New(name string, queue *scheduler.Queue, cfg Config, onStep func(safety.Position)) *Walker {
	return &Walker{
		cfg:      cfg,
		queue:    queue,
		rng:      NewRand(cfg.Seed),
		onStep:   onStep,
		name:     name,
		position: cfg.Start,
	}
}

// Start resumes periodic stepping. Starting an active walker does nothing.
func (w *Walker) Start() {
	if w.active {
		return
	}

	w.active = true
	w.generation++
	w.owner = scheduler.Owner(fmt.Sprintf("%s/motion#%d", w.name, w.generation))
	w.scheduleTick()
}

// Pause stops periodic stepping and freezes the position.
func (w *Walker) Pause() {
	if !w.active {
		return
	}

	w.active = false
	w.queue.CancelAll(w.owner)
}

// Restart pauses, moves back to the start position and starts again.
func (w *Walker) Restart() {
	w.Pause()
	w.position = w.cfg.Start
	w.Start()
}

// Step moves the walker once and returns the new position.
// A paused walker keeps its last position.
func (w *Walker) Step() safety.Position {
	if !w.active {
		return w.position
	}

	w.position = safety.Position{
		X: clamp(w.position.X+w.offset(), w.cfg.Min, w.cfg.Max),
		Y: clamp(w.position.Y+w.offset(), w.cfg.Min, w.cfg.Max),
	}

	if w.onStep != nil {
		w.onStep(w.position)
	}

	return w.position
}

// Position returns the current, or last known, position.
func (w *Walker) Position() safety.Position {
	return w.position
}

// Active reports whether the walker is stepping.
func (w *Walker) Active() bool {
	return w.active
}

func (w *Walker) scheduleTick() {
	if w.cfg.Period <= 0 {
		return
	}

	_, err := w.queue.Schedule(w.owner, w.cfg.Period, "motion:step", func() {
		w.Step()

		if w.active {
			w.scheduleTick()
		}
	})
	if err != nil {
		// The owner was retired by Pause; the walker is idle.
		w.active = false
	}
}

func (w *Walker) offset() float64 {
	return (w.rng.Float64() - 0.5) * w.cfg.Jitter
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}

	if v > hi {
		return hi
	}

	return v
}
