package machine

import (
	"errors"
	"fmt"
	"time"

	"github.com/oshokin/tourist-safety/internal/cascade"
)

// State is one value of a scenario's closed state set.
type State string

// Trigger is a named input event.
type Trigger string

const (
	// Reset is defined from every state and leads to the initial state.
	Reset Trigger = "reset"
	// Complete is the internal trigger of automatic transitions taken when a cascade finishes.
	Complete Trigger = "complete"
)

// Edge is one entry of a transition table.
type Edge struct {
	From    State
	Trigger Trigger
	To      State
	// Cascade is emitted every time the edge is applied.
	Cascade []cascade.Step
	// Then, when set, is entered automatically right after the last cascade step fires.
	Then State
}

// Table is the static definition of a scenario machine.
type Table struct {
	Name    string
	Initial State
	Edges   []Edge
}

// ErrInvalidTable is returned for transition tables that cannot be executed.
var ErrInvalidTable = errors.New("invalid transition table")

// Validate checks that the table is executable.
func (t *Table) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidTable)
	}

	if t.Initial == "" {
		return fmt.Errorf("%w: %s: initial state is required", ErrInvalidTable, t.Name)
	}

	seen := make(map[edgeKey]struct{}, len(t.Edges))

	for _, e := range t.Edges {
		switch {
		case e.From == "" || e.To == "" || e.Trigger == "":
			return fmt.Errorf("%w: %s: edge %q -%s-> %q is incomplete", ErrInvalidTable, t.Name, e.From, e.Trigger, e.To)
		case e.Trigger == Reset || e.Trigger == Complete:
			return fmt.Errorf("%w: %s: trigger %q is reserved", ErrInvalidTable, t.Name, e.Trigger)
		case e.Then != "" && len(e.Cascade) == 0:
			return fmt.Errorf("%w: %s: automatic transition to %q needs a cascade", ErrInvalidTable, t.Name, e.Then)
		}

		key := edgeKey{from: e.From, trigger: e.Trigger}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: %s: duplicate edge from %q on %q", ErrInvalidTable, t.Name, e.From, e.Trigger)
		}

		seen[key] = struct{}{}
	}

	return nil
}

// States returns every state the table mentions, initial first.
func (t *Table) States() []State {
	seen := map[State]struct{}{t.Initial: {}}
	states := []State{t.Initial}

	add := func(s State) {
		if s == "" {
			return
		}

		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			states = append(states, s)
		}
	}

	for _, e := range t.Edges {
		add(e.From)
		add(e.To)
		add(e.Then)
	}

	return states
}

// Triggers returns every externally usable trigger, Reset last.
func (t *Table) Triggers() []Trigger {
	seen := make(map[Trigger]struct{})

	var triggers []Trigger

	for _, e := range t.Edges {
		if _, ok := seen[e.Trigger]; !ok {
			seen[e.Trigger] = struct{}{}
			triggers = append(triggers, e.Trigger)
		}
	}

	return append(triggers, Reset)
}

// edgeKey indexes edges by source state and trigger.
type edgeKey struct {
	from    State
	trigger Trigger
}

// cascadeSpan returns the delay of the last step of steps.
func cascadeSpan(steps []cascade.Step) time.Duration {
	var span time.Duration

	for _, s := range steps {
		span = max(span, s.Delay)
	}

	return span
}
