package model

// ControllerState represents the lifecycle state of one task attempt's
// lifecycle controller.
type ControllerState string

const (
	ControllerStateInitialized ControllerState = "INITIALIZED"
	ControllerStateSubmitting  ControllerState = "SUBMITTING"
	ControllerStatePolling     ControllerState = "POLLING"
	ControllerStateSucceeded   ControllerState = "SUCCEEDED"
	ControllerStateFailed      ControllerState = "FAILED"
	ControllerStateKilled      ControllerState = "KILLED"
)

// String returns the string representation of the controller state.
func (s ControllerState) String() string {
	return string(s)
}

// IsTerminal returns true if no further transition is possible.
func (s ControllerState) IsTerminal() bool {
	switch s {
	case ControllerStateSucceeded, ControllerStateFailed, ControllerStateKilled:
		return true
	}
	return false
}

// ValidControllerTransitions defines the allowed controller state transitions.
// Polling -> Polling is the only self-loop.
var ValidControllerTransitions = map[ControllerState][]ControllerState{
	ControllerStateInitialized: {ControllerStateSubmitting, ControllerStateFailed, ControllerStateKilled},
	ControllerStateSubmitting:  {ControllerStatePolling, ControllerStateFailed},
	ControllerStatePolling:     {ControllerStatePolling, ControllerStateSucceeded, ControllerStateFailed, ControllerStateKilled},
}

// CanTransitionTo returns true if moving from the current state to next is valid.
func (s ControllerState) CanTransitionTo(next ControllerState) bool {
	for _, allowed := range ValidControllerTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Outcome returns the outcome a terminal state reports to the host.
// Non-terminal states report OutcomeNone.
func (s ControllerState) Outcome() Outcome {
	switch s {
	case ControllerStateSucceeded:
		return OutcomeSuccess
	case ControllerStateFailed:
		return OutcomeFailure
	case ControllerStateKilled:
		return OutcomeKilled
	}
	return OutcomeNone
}
