// Package lifecycle drives one remote job from submission to a terminal
// outcome: submit once, poll until the job finishes, and honour cancellation
// by stopping the remote execution.
package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/me/remotetask/internal/config"
	"github.com/me/remotetask/internal/gateway"
	"github.com/me/remotetask/pkg/model"
)

// Controller is the state machine for a single task attempt. It owns its
// execution handle and status history; nothing is shared between attempts.
type Controller struct {
	gw      gateway.Gateway
	req     model.SubmissionRequest
	cfg     config.ControllerConfig
	emitter Emitter
	logger  *slog.Logger

	cancelOnce sync.Once
	cancelCh   chan struct{}

	// Owned by the Run goroutine.
	failures int
	stopped  bool

	mu      sync.Mutex
	state   model.ControllerState
	handle  model.ExecutionHandle
	last    model.ExecutionStatus
	retries int
	err     error
}

// New creates a controller in the Initialized state. A nil emitter discards
// transitions.
func New(gw gateway.Gateway, req model.SubmissionRequest, cfg config.ControllerConfig, emitter Emitter, logger *slog.Logger) *Controller {
	if emitter == nil {
		emitter = EmitterFunc(func(Transition) {})
	}
	return &Controller{
		gw:       gw,
		req:      req,
		cfg:      cfg,
		emitter:  emitter,
		logger:   logger.With("component", "controller"),
		cancelCh: make(chan struct{}),
		state:    model.ControllerStateInitialized,
	}
}

// Run drives the controller until it reaches a terminal state and returns the
// outcome. Cancelling ctx has the same effect as Cancel.
func (c *Controller) Run(ctx context.Context) model.Outcome {
	for {
		state := c.State()
		if state.IsTerminal() {
			return state.Outcome()
		}
		c.step(ctx, state)
	}
}

// Cancel requests cancellation. It is safe to call from any goroutine, any
// number of times; the request is observed at the top of the next poll
// iteration or during the sleep between polls.
func (c *Controller) Cancel() {
	c.cancelOnce.Do(func() {
		c.logger.Info("cancellation requested")
		close(c.cancelCh)
	})
}

// step performs the work of one state and records the transition it leads to.
func (c *Controller) step(ctx context.Context, state model.ControllerState) {
	switch state {
	case model.ControllerStateInitialized:
		if c.cancelled(ctx) {
			c.transition(model.ControllerStateKilled, model.ExecutionStatus{}, nil)
			return
		}
		c.transition(model.ControllerStateSubmitting, model.ExecutionStatus{}, nil)

	case model.ControllerStateSubmitting:
		// A started execution must always get a handle so a later cancel can
		// stop it, so submission ignores cancellation of ctx.
		handle, err := c.gw.Submit(context.WithoutCancel(ctx), c.req)
		if err != nil {
			c.transition(model.ControllerStateFailed, model.ExecutionStatus{}, asTaskError(model.KindSubmission, err))
			return
		}
		c.mu.Lock()
		c.handle = handle
		c.mu.Unlock()
		c.logger.Info("execution submitted", "handle", handle)
		c.transition(model.ControllerStatePolling, model.ExecutionStatus{}, nil)

	case model.ControllerStatePolling:
		c.poll(ctx)

	default:
		// Terminal states are handled by Run.
	}
}

func (c *Controller) poll(ctx context.Context) {
	if c.cancelled(ctx) {
		c.stop(ctx)
		c.transition(model.ControllerStateKilled, c.LastStatus(), nil)
		return
	}

	handle := c.Handle()
	st, err := c.gw.Inspect(ctx, handle)
	if err != nil {
		c.inspectFailed(ctx, err)
		return
	}
	c.failures = 0

	prev := c.LastStatus()
	c.mu.Lock()
	c.last = st
	c.mu.Unlock()

	switch st.Class {
	case model.StatusClassRunning:
		if st.Raw != prev.Raw {
			c.transition(model.ControllerStatePolling, st, nil)
		} else {
			c.logger.Debug("execution running", "handle", handle, "status", st.Raw)
		}
		c.sleep(ctx)
	case model.StatusClassSucceeded:
		c.transition(model.ControllerStateSucceeded, st, nil)
	default:
		c.transition(model.ControllerStateFailed, st, nil)
	}
}

// inspectFailed applies the retry policy to a failed inspect call.
func (c *Controller) inspectFailed(ctx context.Context, err error) {
	if c.cancelled(ctx) {
		// The next iteration stops the execution.
		return
	}
	err = asTaskError(model.KindInspection, err)
	if errors.Is(err, gateway.ErrUnknownExecution) {
		c.transition(model.ControllerStateFailed, c.LastStatus(), err)
		return
	}

	c.failures++
	if c.failures > c.cfg.MaxInspectRetries {
		c.logger.Warn("inspect retries exhausted", "handle", c.Handle(), "attempts", c.failures, "error", err)
		c.transition(model.ControllerStateFailed, c.LastStatus(), err)
		return
	}

	c.mu.Lock()
	c.retries++
	c.mu.Unlock()
	c.logger.Warn("inspect failed, retrying",
		"handle", c.Handle(),
		"attempt", c.failures,
		"max_retries", c.cfg.MaxInspectRetries,
		"error", err,
	)
	c.sleep(ctx)
}

// stop issues the single stop call of this attempt. Its result is logged but
// never changes the outcome.
func (c *Controller) stop(ctx context.Context) {
	if c.stopped {
		return
	}
	c.stopped = true

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.StopTimeout)
	defer cancel()

	handle := c.Handle()
	if err := c.gw.Stop(stopCtx, handle); err != nil {
		c.logger.Warn("stop failed", "handle", handle, "error", err)
		return
	}
	c.logger.Info("execution stopped", "handle", handle)
}

// sleep waits one poll interval or until cancellation.
func (c *Controller) sleep(ctx context.Context) {
	t := time.NewTimer(c.cfg.PollInterval)
	defer t.Stop()
	select {
	case <-t.C:
	case <-c.cancelCh:
	case <-ctx.Done():
	}
}

func (c *Controller) cancelled(ctx context.Context) bool {
	select {
	case <-c.cancelCh:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// transition moves the controller to next. Once the controller is terminal,
// later transitions are ignored so the first outcome wins.
func (c *Controller) transition(next model.ControllerState, st model.ExecutionStatus, cause error) {
	c.mu.Lock()
	from := c.state
	if from.IsTerminal() {
		c.mu.Unlock()
		return
	}
	if !from.CanTransitionTo(next) {
		id := c.handle.String()
		if id == "" {
			id = c.req.JobName
		}
		c.mu.Unlock()
		panic(&model.InvalidTransitionError{Entity: "controller", ID: id, From: string(from), To: string(next)})
	}
	c.state = next
	if cause != nil {
		c.err = cause
	}
	handle := c.handle
	c.mu.Unlock()

	tr := Transition{
		From:   from,
		To:     next,
		Handle: handle,
		Status: st,
		Err:    cause,
		At:     time.Now().UTC(),
	}
	if next.IsTerminal() {
		c.logger.Info("attempt finished",
			"state", next,
			"outcome", next.Outcome(),
			"handle", handle,
			"status", st.Raw,
			"error", cause,
		)
	} else {
		c.logger.Debug("state transition", "from", from, "to", next, "status", st.Raw)
	}
	c.emitter.Emit(tr)
}

// State returns the current state.
func (c *Controller) State() model.ControllerState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Outcome returns the terminal outcome, or OutcomeNone while running.
func (c *Controller) Outcome() model.Outcome {
	return c.State().Outcome()
}

// Handle returns the execution handle, empty before submission.
func (c *Controller) Handle() model.ExecutionHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handle
}

// LastStatus returns the most recent status observed from the service.
func (c *Controller) LastStatus() model.ExecutionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Retries returns how many inspect calls were retried after a transient
// failure.
func (c *Controller) Retries() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.retries
}

// Err returns the error that ended the attempt, if any.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// asTaskError makes sure err carries a kind, defaulting to kind.
func asTaskError(kind model.ErrorKind, err error) error {
	if model.KindOf(err) != "" {
		return err
	}
	return model.NewTaskError(kind, "", err)
}
