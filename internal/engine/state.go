package engine

// State is the per-operation lifecycle state. Confirmed, Reverted and Failed
// are terminal: an operation never leaves a terminal state and never revisits
// an earlier one. Retries are modeled as brand-new operations with fresh
// identities, not re-entries.
type State string

const (
	StatePending    State = "pending"
	StateValidating State = "validating"
	StateValidated  State = "validated"
	StateSubmitting State = "submitting"
	StateConfirmed  State = "confirmed"
	StateReverted   State = "reverted"
	StateFailed     State = "failed"
)

// Terminal reports whether the state admits no further transitions.
func (s State) Terminal() bool {
	return s == StateConfirmed || s == StateReverted || s == StateFailed
}

// transitions is the closed set of legal state changes. Validation failures
// jump straight from Validating to Failed, skipping submission entirely.
var transitions = map[State][]State{
	StatePending:    {StateValidating, StateFailed},
	StateValidating: {StateValidated, StateFailed},
	StateValidated:  {StateSubmitting},
	StateSubmitting: {StateConfirmed, StateReverted, StateFailed},
}

// CanTransition reports whether moving from s to next is legal.
func (s State) CanTransition(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}

	return false
}
