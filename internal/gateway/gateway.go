// Package gateway adapts remote execution services to three primitive calls:
// submit, inspect and stop. Gateways keep no per-execution state, never
// retry, and are safe for concurrent use by many controllers.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/me/remotetask/pkg/model"
)

// Gateway is a thin adapter over a remote execution service.
type Gateway interface {
	// Submit starts an execution. Failures are SubmissionErrors.
	Submit(ctx context.Context, req model.SubmissionRequest) (model.ExecutionHandle, error)

	// Inspect reports the current status of an execution. Failures are
	// InspectionErrors; a handle the service does not know additionally
	// matches ErrUnknownExecution.
	Inspect(ctx context.Context, handle model.ExecutionHandle) (model.ExecutionStatus, error)

	// Stop asks the service to stop an execution. Stopping an execution that
	// is already terminal succeeds without effect, and repeated calls are
	// equivalent to one.
	Stop(ctx context.Context, handle model.ExecutionHandle) error
}

// ErrUnknownExecution marks inspect and stop failures caused by a handle the
// remote service does not recognise. Such executions cannot be resurrected.
var ErrUnknownExecution = errors.New("execution unknown to remote service")

func submissionError(op string, err error) error {
	return model.NewTaskError(model.KindSubmission, op, err)
}

func inspectionError(handle model.ExecutionHandle, err error) error {
	return model.NewTaskError(model.KindInspection, "inspect "+handle.String(), err)
}

func unknownExecution(handle model.ExecutionHandle, cause error) error {
	return model.NewTaskError(model.KindInspection, "inspect "+handle.String(),
		fmt.Errorf("%w: %v", ErrUnknownExecution, cause))
}
