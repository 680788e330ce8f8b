package machine

// Reason explains why a trigger was ignored.
type Reason int

const (
	// ReasonNone means the trigger was applied.
	ReasonNone Reason = iota
	// NoSuchTransition means the trigger is undefined for the current state.
	NoSuchTransition
	// AlreadyInState means the trigger is blocked: the machine is already where
	// the trigger leads, or a cascade from an earlier transition is still pending.
	AlreadyInState
)

// String returns the reason name.
func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case NoSuchTransition:
		return "no_such_transition"
	case AlreadyInState:
		return "already_in_state"
	default:
		return "unknown"
	}
}

// Result is the outcome of Fire: Applied(newState) or Ignored(reason).
type Result struct {
	// State is the new state when applied and the unchanged current state otherwise.
	State  State
	Reason Reason
}

// Applied reports whether the trigger changed the machine.
func (r Result) Applied() bool {
	return r.Reason == ReasonNone
}

// String renders the result as Applied(state) or Ignored(reason).
func (r Result) String() string {
	if r.Applied() {
		return "Applied(" + string(r.State) + ")"
	}

	return "Ignored(" + r.Reason.String() + ")"
}

func applied(s State) Result {
	return Result{State: s, Reason: ReasonNone}
}

func ignored(current State, reason Reason) Result {
	return Result{State: current, Reason: reason}
}
