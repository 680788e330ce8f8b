package machine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/tourist-safety/internal/cascade"
	"github.com/oshokin/tourist-safety/internal/clock"
	"github.com/oshokin/tourist-safety/internal/domain/safety"
	"github.com/oshokin/tourist-safety/internal/scheduler"
)

// testStart is the fixed origin of the manual timeline.
var testStart = time.Date(2025, time.September, 3, 9, 0, 0, 0, time.UTC)

const (
	stateIdle    State = "idle"
	stateAlerted State = "alerted"
	stateCleared State = "cleared"
	stateBusy    State = "busy"
	stateDone    State = "done"

	triggerAlert Trigger = "alert"
	triggerClear Trigger = "clear"
	triggerWork  Trigger = "work"
)

// testTable is a small geofence-like table with one automatic transition.
func testTable() Table {
	return Table{
		Name:    "test",
		Initial: stateIdle,
		Edges: []Edge{
			{
				From: stateIdle, Trigger: triggerAlert, To: stateAlerted,
				Cascade: []cascade.Step{
					{Delay: time.Second, Category: safety.CategoryAuthority, Message: "a"},
					{Delay: 2 * time.Second, Category: safety.CategoryContact, Message: "b"},
					{Delay: 3 * time.Second, Category: safety.CategoryLedger, Message: "c"},
				},
			},
			{
				From: stateAlerted, Trigger: triggerClear, To: stateCleared,
				Cascade: []cascade.Step{{Category: safety.CategoryAuthority, Message: "cleared"}},
			},
			{
				From: stateIdle, Trigger: triggerWork, To: stateBusy, Then: stateDone,
				Cascade: []cascade.Step{
					{Delay: time.Second, Category: safety.CategoryLedger, Message: "submitted"},
					{Delay: 2 * time.Second, Category: safety.CategoryLedger, Message: "recorded"},
				},
			},
		},
	}
}

// countingRecorder tallies trigger outcomes.
type countingRecorder struct {
	applied map[string]int
	ignored map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{applied: map[string]int{}, ignored: map[string]int{}}
}

func (r *countingRecorder) TriggerApplied(_, trigger, _ string) { r.applied[trigger]++ }
func (r *countingRecorder) TriggerIgnored(_, _, reason string)  { r.ignored[reason]++ }

func newTestMachine(t *testing.T, opts ...Option) (*Machine, *scheduler.Queue) {
	t.Helper()

	q := scheduler.New(clock.NewManual(testStart))

	m, err := New(context.Background(), testTable(), q, opts...)
	require.NoError(t, err)

	return m, q
}

func messages(entries []safety.Notification) []string {
	out := make([]string, 0, len(entries))
	for _, n := range entries {
		out = append(out, n.Message)
	}

	return out
}

// TestMachine_AppliesTransitionAndCascade checks an applied trigger and its ordered cascade.
func TestMachine_AppliesTransitionAndCascade(t *testing.T) {
	t.Parallel()

	m, q := newTestMachine(t)
	require.Equal(t, stateIdle, m.Current())

	res := m.Fire(triggerAlert)
	require.True(t, res.Applied())
	require.Equal(t, stateAlerted, res.State)
	require.Equal(t, "Applied(alerted)", res.String())
	require.Equal(t, stateAlerted, m.Current())
	require.Empty(t, m.Notifications())
	require.Equal(t, 3, m.Pending())

	require.NoError(t, q.Advance(3*time.Second))
	require.Equal(t, []string{"a", "b", "c"}, messages(m.Notifications()))
	require.Zero(t, m.Pending())
}

// TestMachine_UndefinedTriggersAreNoOps fires every trigger outside the table from every state.
func TestMachine_UndefinedTriggersAreNoOps(t *testing.T) {
	t.Parallel()

	table := testTable()
	all := append(table.Triggers(), "bogus", Complete)

	// Paths that reach each state with no cascade pending.
	paths := map[State][]Trigger{
		stateIdle:    nil,
		stateAlerted: {triggerAlert},
		stateCleared: {triggerAlert, triggerClear},
		stateDone:    {triggerWork},
	}

	for state, path := range paths {
		m, q := newTestMachine(t)

		for _, trig := range path {
			require.True(t, m.Fire(trig).Applied())
			require.NoError(t, q.Advance(10*time.Second))
		}

		require.Equal(t, state, m.Current())

		for _, trig := range all {
			if trig == Reset {
				continue
			}

			if _, defined := m.edges[edgeKey{from: state, trigger: trig}]; defined {
				continue
			}

			before := m.Notifications()
			pending := q.Len()

			res := m.Fire(trig)
			require.False(t, res.Applied(), "%s from %s", trig, state)
			require.Equal(t, state, res.State)
			require.Equal(t, state, m.Current())
			require.Equal(t, before, m.Notifications())
			require.Equal(t, pending, q.Len())
		}
	}
}

// TestMachine_RepeatedTriggerIsAlreadyInState verifies the re-entry guard reason.
func TestMachine_RepeatedTriggerIsAlreadyInState(t *testing.T) {
	t.Parallel()

	m, q := newTestMachine(t)
	m.Fire(triggerAlert)
	require.NoError(t, q.Advance(5*time.Second))

	res := m.Fire(triggerAlert)
	require.Equal(t, AlreadyInState, res.Reason)
	require.Equal(t, "Ignored(already_in_state)", res.String())
	require.Len(t, m.Notifications(), 3)

	res = m.Fire("bogus")
	require.Equal(t, NoSuchTransition, res.Reason)
}

// TestMachine_PendingCascadeBlocksOtherTriggers checks the re-entrancy rule.
func TestMachine_PendingCascadeBlocksOtherTriggers(t *testing.T) {
	t.Parallel()

	rec := newCountingRecorder()
	m, q := newTestMachine(t, WithRecorder(rec))

	m.Fire(triggerAlert)
	require.NoError(t, q.Advance(1500*time.Millisecond))

	res := m.Fire(triggerClear)
	require.Equal(t, AlreadyInState, res.Reason)
	require.Equal(t, stateAlerted, m.Current())
	require.Equal(t, 2, m.Pending())

	require.NoError(t, q.Advance(2*time.Second))

	res = m.Fire(triggerClear)
	require.True(t, res.Applied())
	require.Equal(t, stateCleared, m.Current())

	require.NoError(t, q.Advance(0))
	require.Equal(t, []string{"a", "b", "c", "cleared"}, messages(m.Notifications()))

	require.Equal(t, 1, rec.applied[string(triggerAlert)])
	require.Equal(t, 1, rec.applied[string(triggerClear)])
	require.Equal(t, 1, rec.ignored[AlreadyInState.String()])
}

// TestMachine_ResetFromEveryState ensures reset always yields a clean initial machine.
func TestMachine_ResetFromEveryState(t *testing.T) {
	t.Parallel()

	paths := [][]Trigger{
		nil,
		{triggerAlert},
		{triggerAlert, triggerClear},
		{triggerWork},
	}

	for _, path := range paths {
		for _, settle := range []time.Duration{0, 1500 * time.Millisecond, 10 * time.Second} {
			m, q := newTestMachine(t)

			for _, trig := range path {
				m.Fire(trig)
				require.NoError(t, q.Advance(settle))
			}

			previous := m.Owner()

			res := m.Fire(Reset)
			require.True(t, res.Applied())
			require.Equal(t, stateIdle, res.State)
			require.Equal(t, stateIdle, m.Current())
			require.Empty(t, m.Notifications())
			require.Zero(t, m.Pending())
			require.Zero(t, q.Len())
			require.NotEqual(t, previous, m.Owner())

			// No stale step or completion may fire after the reset.
			require.NoError(t, q.Advance(time.Minute))
			require.Equal(t, stateIdle, m.Current())
			require.Empty(t, m.Notifications())
		}
	}
}

// TestMachine_AutomaticTransitionAfterCascade verifies the Then transition and its ordering.
func TestMachine_AutomaticTransitionAfterCascade(t *testing.T) {
	t.Parallel()

	var transitions []Transition

	m, q := newTestMachine(t, WithHook(func(tr Transition) {
		transitions = append(transitions, tr)
	}))

	require.Equal(t, stateBusy, m.Fire(triggerWork).State)
	require.Equal(t, AlreadyInState, m.Fire(triggerAlert).Reason)

	require.NoError(t, q.Advance(1999*time.Millisecond))
	require.Equal(t, stateBusy, m.Current())

	require.NoError(t, q.Advance(time.Millisecond))
	require.Equal(t, stateDone, m.Current())
	require.Equal(t, []string{"submitted", "recorded"}, messages(m.Notifications()))

	require.Len(t, transitions, 2)
	require.Equal(t, Complete, transitions[1].Trigger)
	require.Equal(t, testStart.Add(2*time.Second), transitions[1].At)
	require.Nil(t, transitions[1].Actor)
}

// TestMachine_HooksAndListenersSeeActor checks that hooks receive the actor and listeners every entry.
func TestMachine_HooksAndListenersSeeActor(t *testing.T) {
	t.Parallel()

	var (
		transitions []Transition
		entries     []safety.Notification
	)

	m, q := newTestMachine(t,
		WithID("fixed"),
		WithHook(func(tr Transition) { transitions = append(transitions, tr) }),
		WithNotificationListener(func(n safety.Notification) { entries = append(entries, n) }),
	)

	actor := &safety.Actor{Hostname: "desk", Username: "operator"}
	m.FireAs(triggerAlert, actor)
	require.NoError(t, q.Advance(3*time.Second))

	require.Equal(t, "fixed", m.ID())
	require.Equal(t, "test", m.Name())
	require.Len(t, transitions, 1)
	require.Equal(t, actor, transitions[0].Actor)
	require.NotSame(t, actor, transitions[0].Actor)
	require.Equal(t, stateIdle, transitions[0].From)
	require.Len(t, entries, 3)
}

// TestTable_Validate rejects tables the machine cannot run.
func TestTable_Validate(t *testing.T) {
	t.Parallel()

	valid := testTable()
	require.NoError(t, valid.Validate())
	require.Equal(t, []State{stateIdle, stateAlerted, stateCleared, stateBusy, stateDone}, valid.States())
	require.Equal(t, []Trigger{triggerAlert, triggerClear, triggerWork, Reset}, valid.Triggers())

	cases := map[string]Table{
		"no name":    {Initial: stateIdle},
		"no initial": {Name: "x"},
		"reserved": {Name: "x", Initial: stateIdle, Edges: []Edge{
			{From: stateIdle, Trigger: Reset, To: stateAlerted},
		}},
		"incomplete": {Name: "x", Initial: stateIdle, Edges: []Edge{
			{From: stateIdle, Trigger: triggerAlert},
		}},
		"then without cascade": {Name: "x", Initial: stateIdle, Edges: []Edge{
			{From: stateIdle, Trigger: triggerWork, To: stateBusy, Then: stateDone},
		}},
		"duplicate": {Name: "x", Initial: stateIdle, Edges: []Edge{
			{From: stateIdle, Trigger: triggerAlert, To: stateAlerted},
			{From: stateIdle, Trigger: triggerAlert, To: stateCleared},
		}},
	}

	for name, table := range cases {
		require.ErrorIs(t, table.Validate(), ErrInvalidTable, name)

		_, err := New(context.Background(), table, scheduler.New(clock.NewManual(testStart)))
		require.ErrorIs(t, err, ErrInvalidTable, name)
	}
}
