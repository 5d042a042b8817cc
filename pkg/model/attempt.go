package model

import "time"

// Attempt is the host-visible record of one task attempt managed by the
// runner. It lives in memory only.
type Attempt struct {
	ID          string          `json:"id"`
	JobName     string          `json:"job_name"`
	Service     ServiceType     `json:"service"`
	State       ControllerState `json:"state"`
	Handle      ExecutionHandle `json:"handle,omitempty"`
	LastStatus  string          `json:"last_status,omitempty"`
	Outcome     Outcome         `json:"outcome,omitempty"`
	ExitCode    *int            `json:"exit_code,omitempty"`
	ErrorKind   ErrorKind       `json:"error_kind,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	CompletedAt *time.Time      `json:"completed_at"`
}

// AttemptSummary provides an aggregate count of attempts by state.
type AttemptSummary struct {
	Total     int `json:"total"`
	Active    int `json:"active"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Killed    int `json:"killed"`
}

// ComputeAttemptSummary calculates the AttemptSummary from a slice of Attempts.
func ComputeAttemptSummary(attempts []Attempt) AttemptSummary {
	s := AttemptSummary{Total: len(attempts)}
	for _, a := range attempts {
		switch a.State {
		case ControllerStateSucceeded:
			s.Succeeded++
		case ControllerStateFailed:
			s.Failed++
		case ControllerStateKilled:
			s.Killed++
		default:
			s.Active++
		}
	}
	return s
}
