// Package runner manages concurrent task attempts for a long-running host.
// Each attempt runs its own task in its own goroutine; attempts share only
// the task dependencies, which are safe for concurrent use.
package runner

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/me/remotetask/internal/task"
	"github.com/me/remotetask/pkg/model"
)

// ErrShutdown is returned by Start after Shutdown has begun.
var ErrShutdown = errors.New("runner is shutting down")

// DefaultRetention is the number of finished attempts a Runner keeps.
const DefaultRetention = 1000

type entry struct {
	id        string
	task      *task.Task
	params    model.SubmissionParameters
	createdAt time.Time
	done      chan struct{}

	// Set once before done is closed.
	result      task.Result
	completedAt time.Time
}

// Runner starts and tracks task attempts in memory.
type Runner struct {
	deps   task.Deps
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.RWMutex
	closed    bool
	attempts  map[string]*entry
	finished  []string // ids of finished attempts, oldest first
	retention int
}

// New creates a Runner. Every attempt is built with deps.
func New(deps task.Deps, logger *slog.Logger) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	deps.Logger = logger
	return &Runner{
		deps:      deps,
		logger:    logger.With("component", "runner"),
		ctx:       ctx,
		cancel:    cancel,
		attempts:  make(map[string]*entry),
		retention: DefaultRetention,
	}
}

// WithRetention sets how many finished attempts are kept for Get and List.
// Older finished attempts are forgotten; running attempts are always kept.
func (r *Runner) WithRetention(n int) *Runner {
	if n < 1 {
		n = 1
	}
	r.mu.Lock()
	r.retention = n
	r.mu.Unlock()
	return r
}

// Start validates the parameter blob and launches a new attempt. The attempt
// id doubles as the idempotency key when the blob carries no attemptId.
// Malformed blobs are rejected with a validation error; all later failures
// are reported through the attempt's outcome.
func (r *Runner) Start(blob []byte) (model.Attempt, error) {
	params, err := model.ParseParameters(blob)
	if err != nil {
		return model.Attempt{}, model.NewValidationError(err.Error())
	}

	id := params.AttemptID
	if id == "" {
		id = uuid.New().String()
		params.AttemptID = id
		if blob, err = json.Marshal(params); err != nil {
			return model.Attempt{}, err
		}
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return model.Attempt{}, ErrShutdown
	}
	if _, exists := r.attempts[id]; exists {
		r.mu.Unlock()
		return model.Attempt{}, &model.APIError{
			Code:    model.ErrConflict,
			Message: "attempt '" + id + "' already exists",
		}
	}
	e := &entry{
		id:        id,
		task:      task.New(blob, r.deps),
		params:    params,
		createdAt: time.Now().UTC(),
		done:      make(chan struct{}),
	}
	r.attempts[id] = e
	r.wg.Add(1)
	r.mu.Unlock()

	go r.run(e)

	r.logger.Info("attempt started", "attempt_id", id, "job", params.JobName, "service", params.Service)
	return snapshot(e), nil
}

func (r *Runner) run(e *entry) {
	defer r.wg.Done()
	defer close(e.done)

	res := e.task.Handle(r.ctx)

	r.mu.Lock()
	e.result = res
	e.completedAt = time.Now().UTC()
	r.finished = append(r.finished, e.id)
	evicted := r.evictLocked()
	r.mu.Unlock()

	r.logger.Info("attempt finished",
		"attempt_id", e.id,
		"outcome", res.Outcome,
		"exit_code", res.ExitCode,
		"handle", res.Handle,
		"duration", e.completedAt.Sub(e.createdAt).Round(time.Millisecond),
	)
	if len(evicted) > 0 {
		r.logger.Debug("finished attempts evicted", "count", len(evicted), "oldest", evicted[0])
	}
}

// evictLocked drops the oldest finished attempts beyond the retention limit
// and returns their ids. r.mu must be held.
func (r *Runner) evictLocked() []string {
	over := len(r.finished) - r.retention
	if over <= 0 {
		return nil
	}
	evicted := r.finished[:over]
	for _, id := range evicted {
		delete(r.attempts, id)
	}
	r.finished = append([]string(nil), r.finished[over:]...)
	return evicted
}

// Get returns the attempt with the given id, or nil if none exists.
func (r *Runner) Get(id string) *model.Attempt {
	r.mu.RLock()
	e, ok := r.attempts[id]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	a := r.view(e)
	return &a
}

// List returns all attempts, newest first.
func (r *Runner) List() []model.Attempt {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.attempts))
	for _, e := range r.attempts {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	out := make([]model.Attempt, 0, len(entries))
	for _, e := range entries {
		out = append(out, r.view(e))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Cancel requests cancellation of an attempt. Cancelling a finished attempt
// is a no-op. It returns false if the attempt does not exist.
func (r *Runner) Cancel(id string) bool {
	r.mu.RLock()
	e, ok := r.attempts[id]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	e.task.Cancel()
	r.logger.Info("attempt cancel requested", "attempt_id", id)
	return true
}

// Wait blocks until the attempt finishes or ctx is done.
func (r *Runner) Wait(ctx context.Context, id string) (task.Result, error) {
	r.mu.RLock()
	e, ok := r.attempts[id]
	r.mu.RUnlock()
	if !ok {
		return task.Result{}, model.NewNotFoundError("attempt", id)
	}
	select {
	case <-e.done:
		r.mu.RLock()
		defer r.mu.RUnlock()
		return e.result, nil
	case <-ctx.Done():
		return task.Result{}, ctx.Err()
	}
}

// Shutdown stops accepting attempts, cancels the running ones and waits for
// them to reach a terminal state or for ctx to expire.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		r.logger.Info("runner stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// view builds the attempt record from the entry's live task state.
func (r *Runner) view(e *entry) model.Attempt {
	a := snapshot(e)

	select {
	case <-e.done:
		r.mu.RLock()
		res, completed := e.result, e.completedAt
		r.mu.RUnlock()
		a.State = stateFor(res.Outcome)
		a.Handle = res.Handle
		a.LastStatus = res.LastStatus.Raw
		a.Outcome = res.Outcome
		code := res.ExitCode
		a.ExitCode = &code
		a.ErrorKind = res.ErrorKind
		if res.Err != nil {
			a.Error = res.Err.Error()
		}
		a.CompletedAt = &completed
	default:
		a.State = e.task.State()
		a.Handle = e.task.ExecutionHandle()
		a.LastStatus = e.task.LastStatus().Raw
	}
	return a
}

func snapshot(e *entry) model.Attempt {
	return model.Attempt{
		ID:        e.id,
		JobName:   e.params.JobName,
		Service:   e.params.Service,
		State:     model.ControllerStateInitialized,
		CreatedAt: e.createdAt,
	}
}

func stateFor(o model.Outcome) model.ControllerState {
	switch o {
	case model.OutcomeSuccess:
		return model.ControllerStateSucceeded
	case model.OutcomeKilled:
		return model.ControllerStateKilled
	}
	return model.ControllerStateFailed
}
