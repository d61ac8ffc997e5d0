package negotiation

// Phase is the negotiation state of one call.
type Phase int

const (
	PhaseOpening Phase = iota
	PhaseOffering
	PhaseCounterOffering
	PhaseClarifying
	PhaseAccepted
	PhaseRejected
	PhaseWalkedAway
	PhaseTimedOut
	PhaseCallDropped
)

// String returns the string representation of a Phase
func (p Phase) String() string {
	switch p {
	case PhaseOpening:
		return "OPENING"
	case PhaseOffering:
		return "OFFERING"
	case PhaseCounterOffering:
		return "COUNTER_OFFERING"
	case PhaseClarifying:
		return "CLARIFYING"
	case PhaseAccepted:
		return "ACCEPTED"
	case PhaseRejected:
		return "REJECTED"
	case PhaseWalkedAway:
		return "WALKED_AWAY"
	case PhaseTimedOut:
		return "TIMED_OUT"
	case PhaseCallDropped:
		return "CALL_DROPPED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no further events are accepted in p.
func (p Phase) Terminal() bool {
	return p >= PhaseAccepted
}

var terminalPhases = []Phase{PhaseAccepted, PhaseRejected, PhaseWalkedAway, PhaseTimedOut, PhaseCallDropped}

// validTransitions lists the phases reachable from each phase within a single
// Transition call. Self loops cover re-prompts that leave the phase unchanged.
var validTransitions = map[Phase][]Phase{
	PhaseOpening:         append([]Phase{PhaseOpening, PhaseOffering, PhaseClarifying}, terminalPhases...),
	PhaseOffering:        append([]Phase{PhaseOffering, PhaseCounterOffering, PhaseClarifying}, terminalPhases...),
	PhaseCounterOffering: append([]Phase{PhaseCounterOffering, PhaseClarifying}, terminalPhases...),
	PhaseClarifying: append([]Phase{
		PhaseClarifying, PhaseOpening, PhaseOffering, PhaseCounterOffering,
	}, terminalPhases...),
}

func transitionValid(from, to Phase) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, p := range allowed {
		if p == to {
			return true
		}
	}
	return false
}

// InvalidTransitionError represents a phase change the machine does not allow.
type InvalidTransitionError struct {
	From Phase
	To   Phase
}

func (e *InvalidTransitionError) Error() string {
	return "invalid phase transition from " + e.From.String() + " to " + e.To.String()
}
