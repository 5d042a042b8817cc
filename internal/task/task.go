// Package task is the host-facing unit of work: it turns a serialized
// parameter blob into one remote job run and reports a single outcome.
package task

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/me/remotetask/internal/config"
	"github.com/me/remotetask/internal/connection"
	"github.com/me/remotetask/internal/definition"
	"github.com/me/remotetask/internal/gateway"
	"github.com/me/remotetask/internal/lifecycle"
	"github.com/me/remotetask/internal/logging"
	"github.com/me/remotetask/internal/placeholder"
	"github.com/me/remotetask/internal/request"
	"github.com/me/remotetask/pkg/model"
)

// GatewayOpener opens the gateway for a resolved connection.
// *gateway.Registry implements it.
type GatewayOpener interface {
	Open(ctx context.Context, conn model.Connection) (gateway.Gateway, error)
}

// Deps are the host capabilities a task needs. Resolver and Gateways are
// shared between tasks and must be safe for concurrent use.
type Deps struct {
	Resolver   connection.Resolver
	Gateways   GatewayOpener
	Loader     *definition.Loader
	Controller config.ControllerConfig
	Emitter    lifecycle.Emitter
	Logger     *slog.Logger
}

// Result is what a finished attempt reports to the host.
type Result struct {
	Outcome    model.Outcome         `json:"outcome"`
	ExitCode   int                   `json:"exit_code"`
	Handle     model.ExecutionHandle `json:"handle,omitempty"`
	LastStatus model.ExecutionStatus `json:"last_status"`
	Retries    int                   `json:"retries"`
	ErrorKind  model.ErrorKind       `json:"error_kind,omitempty"`
	Err        error                 `json:"-"`
}

// Task is one attempt of a remote job task.
type Task struct {
	blob   []byte
	deps   Deps
	logger *slog.Logger

	initMu  sync.Mutex
	inited  bool
	initErr error

	mu         sync.Mutex
	cancelled  bool
	initCancel context.CancelFunc
	params     model.SubmissionParameters
	request    model.SubmissionRequest
	ctrl       *lifecycle.Controller
}

// New creates a task for the parameter blob. Nothing is validated until Init.
func New(blob []byte, deps Deps) *Task {
	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}
	if deps.Loader == nil {
		deps.Loader = &definition.Loader{}
	}
	return &Task{
		blob:   blob,
		deps:   deps,
		logger: deps.Logger.With("component", "task"),
	}
}

// Init validates the parameters, resolves the connection, builds the
// submission request and opens the gateway. It does not contact the remote
// execution service. Init is idempotent; later calls return the first result.
func (t *Task) Init(ctx context.Context) error {
	t.initMu.Lock()
	defer t.initMu.Unlock()
	if t.inited {
		return t.initErr
	}
	t.inited = true

	// Cancel interrupts a running Init.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	t.mu.Lock()
	t.initCancel = cancel
	if t.cancelled {
		cancel()
	}
	t.mu.Unlock()

	t.initErr = t.init(ctx)

	t.mu.Lock()
	t.initCancel = nil
	t.mu.Unlock()
	if t.initErr != nil {
		t.logger.Error("task init failed", "kind", model.KindOf(t.initErr), "error", t.initErr)
	}
	return t.initErr
}

func (t *Task) init(ctx context.Context) error {
	params, err := model.ParseParameters(t.blob)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.params = params
	t.mu.Unlock()
	attemptLogger := logging.ForAttempt(t.deps.Logger, params.AttemptID, params.JobName)
	t.logger = attemptLogger.With("component", "task")

	if t.deps.Resolver == nil || t.deps.Gateways == nil {
		return model.Errorf(model.KindInvalidConfiguration, "task dependencies are incomplete")
	}

	ref := params.Connection
	ref.Service = params.Service
	conn, err := t.deps.Resolver.Resolve(ctx, ref)
	if err != nil {
		return withKind(model.KindConnectionResolution, err)
	}

	raw, err := t.deps.Loader.Load(ctx, params)
	if err != nil {
		return withKind(model.KindInvalidDefinition, err)
	}
	doc, err := definition.Decode(raw)
	if err != nil {
		return withKind(model.KindInvalidDefinition, err)
	}
	doc, err = placeholder.New(params.Variables).ExpandDocument(ctx, doc)
	if err != nil {
		return model.NewTaskError(model.KindInvalidDefinition, "expand placeholders", err)
	}
	t.logger.Debug("definition loaded", "definition", definition.Describe(doc))

	req, err := request.BuildSubmissionRequest(params, doc)
	if err != nil {
		return err
	}
	gw, err := t.deps.Gateways.Open(ctx, conn)
	if err != nil {
		return withKind(model.KindInvalidConfiguration, err)
	}

	ctrl := lifecycle.New(gw, req, t.deps.Controller, t.deps.Emitter, attemptLogger)
	t.mu.Lock()
	t.request = req
	t.ctrl = ctrl
	if t.cancelled {
		ctrl.Cancel()
	}
	t.mu.Unlock()
	t.logger.Info("task initialized",
		"service", conn.Service,
		"connection", conn.Name,
		"display_name", req.DisplayName,
		"max_concurrent_steps", req.MaxConcurrentSteps,
		"parameters", len(req.Parameters),
	)
	return nil
}

// Handle runs the attempt to completion. It calls Init if the host has not.
// Pre-submission errors end the attempt with a Failure outcome and the
// error's kind attached.
func (t *Task) Handle(ctx context.Context) Result {
	if err := t.Init(ctx); err != nil {
		if t.isCancelled() && errors.Is(err, context.Canceled) {
			t.logger.Info("task cancelled during init")
			return Result{Outcome: model.OutcomeKilled, ExitCode: model.OutcomeKilled.ExitCode()}
		}
		return failed(err)
	}

	ctrl := t.controller()
	outcome := ctrl.Run(ctx)
	res := Result{
		Outcome:    outcome,
		ExitCode:   outcome.ExitCode(),
		Handle:     ctrl.Handle(),
		LastStatus: ctrl.LastStatus(),
		Retries:    ctrl.Retries(),
		Err:        ctrl.Err(),
	}
	res.ErrorKind = model.KindOf(res.Err)
	return res
}

// Cancel requests cancellation of the attempt. Before Init completes the
// request is remembered and applied as soon as the controller exists.
func (t *Task) Cancel() {
	t.mu.Lock()
	t.cancelled = true
	ctrl := t.ctrl
	interrupt := t.initCancel
	t.mu.Unlock()
	if interrupt != nil {
		interrupt()
	}
	if ctrl != nil {
		ctrl.Cancel()
	}
}

func (t *Task) isCancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

// State returns the controller state, or Initialized before Init succeeds.
func (t *Task) State() model.ControllerState {
	if ctrl := t.controller(); ctrl != nil {
		return ctrl.State()
	}
	return model.ControllerStateInitialized
}

// ExecutionHandle returns the execution handle once submitted.
func (t *Task) ExecutionHandle() model.ExecutionHandle {
	if ctrl := t.controller(); ctrl != nil {
		return ctrl.Handle()
	}
	return ""
}

// LastStatus returns the most recently observed remote status.
func (t *Task) LastStatus() model.ExecutionStatus {
	if ctrl := t.controller(); ctrl != nil {
		return ctrl.LastStatus()
	}
	return model.ExecutionStatus{}
}

// Params returns the decoded parameters. They are zero until Init runs.
func (t *Task) Params() model.SubmissionParameters {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.params
}

// Request returns the built submission request. It is zero until Init
// succeeds.
func (t *Task) Request() model.SubmissionRequest {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.request
}

func (t *Task) controller() *lifecycle.Controller {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ctrl
}

func failed(err error) Result {
	return Result{
		Outcome:   model.OutcomeFailure,
		ExitCode:  model.ExitCodeFailure,
		ErrorKind: model.KindOf(err),
		Err:       err,
	}
}

// withKind tags err with kind unless it already carries one.
func withKind(kind model.ErrorKind, err error) error {
	if model.KindOf(err) != "" {
		return err
	}
	return model.NewTaskError(kind, "", err)
}
