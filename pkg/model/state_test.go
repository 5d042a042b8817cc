package model

import "testing"

func TestControllerState_IsTerminal(t *testing.T) {
	tests := []struct {
		state    ControllerState
		terminal bool
	}{
		{ControllerStateInitialized, false},
		{ControllerStateSubmitting, false},
		{ControllerStatePolling, false},
		{ControllerStateSucceeded, true},
		{ControllerStateFailed, true},
		{ControllerStateKilled, true},
	}
	for _, tt := range tests {
		if got := tt.state.IsTerminal(); got != tt.terminal {
			t.Errorf("ControllerState(%q).IsTerminal() = %v, want %v", tt.state, got, tt.terminal)
		}
	}
}

func TestControllerState_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from  ControllerState
		to    ControllerState
		valid bool
	}{
		// Valid transitions
		{ControllerStateInitialized, ControllerStateSubmitting, true},
		{ControllerStateInitialized, ControllerStateKilled, true},
		{ControllerStateSubmitting, ControllerStatePolling, true},
		{ControllerStateSubmitting, ControllerStateFailed, true},
		{ControllerStatePolling, ControllerStatePolling, true},
		{ControllerStatePolling, ControllerStateSucceeded, true},
		{ControllerStatePolling, ControllerStateFailed, true},
		{ControllerStatePolling, ControllerStateKilled, true},

		// Invalid transitions
		{ControllerStateInitialized, ControllerStatePolling, false},
		{ControllerStateSubmitting, ControllerStateKilled, false},
		{ControllerStateSubmitting, ControllerStateSucceeded, false},
		{ControllerStateSucceeded, ControllerStateKilled, false},
		{ControllerStateKilled, ControllerStateFailed, false},
		{ControllerStateFailed, ControllerStatePolling, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.valid {
			t.Errorf("ControllerState(%q).CanTransitionTo(%q) = %v, want %v", tt.from, tt.to, got, tt.valid)
		}
	}
}

func TestControllerState_Outcome(t *testing.T) {
	tests := []struct {
		state ControllerState
		want  Outcome
	}{
		{ControllerStatePolling, OutcomeNone},
		{ControllerStateSucceeded, OutcomeSuccess},
		{ControllerStateFailed, OutcomeFailure},
		{ControllerStateKilled, OutcomeKilled},
	}
	for _, tt := range tests {
		if got := tt.state.Outcome(); got != tt.want {
			t.Errorf("ControllerState(%q).Outcome() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestOutcome_ExitCode(t *testing.T) {
	tests := []struct {
		outcome Outcome
		want    int
	}{
		{OutcomeSuccess, ExitCodeSuccess},
		{OutcomeFailure, ExitCodeFailure},
		{OutcomeKilled, ExitCodeKilled},
		{OutcomeNone, ExitCodeFailure},
	}
	for _, tt := range tests {
		if got := tt.outcome.ExitCode(); got != tt.want {
			t.Errorf("Outcome(%q).ExitCode() = %d, want %d", tt.outcome, got, tt.want)
		}
	}
}
