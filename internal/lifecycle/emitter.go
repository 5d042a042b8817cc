package lifecycle

import (
	"log/slog"
	"time"

	"github.com/me/remotetask/pkg/model"
)

// Transition is one step of the controller's status trace: a state change, or
// a new raw status observed while polling.
type Transition struct {
	From   model.ControllerState `json:"from"`
	To     model.ControllerState `json:"to"`
	Handle model.ExecutionHandle `json:"handle,omitempty"`
	Status model.ExecutionStatus `json:"status"`
	Err    error                 `json:"-"`
	At     time.Time             `json:"at"`
}

// Emitter receives the controller's transitions. It is the host's view of the
// attempt's progress. Emit is called from the controller's goroutine and must
// not block for long.
type Emitter interface {
	Emit(Transition)
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(Transition)

// Emit calls f(t).
func (f EmitterFunc) Emit(t Transition) { f(t) }

// LogEmitter writes each transition as a structured log record.
type LogEmitter struct {
	Logger *slog.Logger
}

// Emit logs t.
func (e LogEmitter) Emit(t Transition) {
	attrs := []any{
		"from", t.From,
		"to", t.To,
	}
	if t.Handle != "" {
		attrs = append(attrs, "handle", t.Handle)
	}
	if t.Status.Raw != "" {
		attrs = append(attrs, "status", t.Status.Raw, "class", t.Status.Class)
	}
	if t.Status.Reason != "" {
		attrs = append(attrs, "reason", t.Status.Reason)
	}
	if t.Err != nil {
		attrs = append(attrs, "error", t.Err)
	}
	e.Logger.Info("status transition", attrs...)
}

// Multi fans a transition out to several emitters in order.
type Multi []Emitter

// Emit calls Emit on every emitter.
func (m Multi) Emit(t Transition) {
	for _, e := range m {
		e.Emit(t)
	}
}
