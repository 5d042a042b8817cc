package model

// ExecutionHandle is the opaque identifier the remote service assigns to one
// job run (for SageMaker, the pipeline execution ARN).
type ExecutionHandle string

// String returns the handle as a plain string.
func (h ExecutionHandle) String() string {
	return string(h)
}

// StatusClass is the closed three-way classification of an open-ended remote
// status vocabulary.
type StatusClass string

const (
	StatusClassRunning   StatusClass = "RUNNING"
	StatusClassSucceeded StatusClass = "SUCCEEDED"
	StatusClassFailed    StatusClass = "FAILED"
)

// ExecutionStatus is one observation of a remote execution.
type ExecutionStatus struct {
	Raw    string      `json:"raw"`
	Class  StatusClass `json:"class"`
	Reason string      `json:"reason,omitempty"`
}

// IsTerminal reports whether polling can stop.
func (s ExecutionStatus) IsTerminal() bool {
	return s.Class != StatusClassRunning
}

// Outcome is the single value a task attempt reports to the host engine.
type Outcome string

const (
	OutcomeNone    Outcome = ""
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomeFailure Outcome = "FAILURE"
	OutcomeKilled  Outcome = "KILLED"
)

// Exit codes reported to the host engine.
const (
	ExitCodeSuccess = 0
	ExitCodeFailure = 1
	ExitCodeKilled  = 137
)

// String returns the string representation of the outcome.
func (o Outcome) String() string {
	return string(o)
}

// ExitCode maps the outcome to the host engine's exit code convention.
func (o Outcome) ExitCode() int {
	switch o {
	case OutcomeSuccess:
		return ExitCodeSuccess
	case OutcomeKilled:
		return ExitCodeKilled
	}
	return ExitCodeFailure
}
