package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/me/remotetask/internal/rpc"
	"github.com/me/remotetask/pkg/model"
)

// AppService runs jobs on a JSON-RPC 1.1 application service
// (AppService.start_app / query_tasks / kill_task). The job id is the handle.
type AppService struct {
	caller    rpc.Caller
	workspace string
	logger    *slog.Logger
}

// NewAppService creates a gateway over caller. workspace is the output
// folder passed to start_app when the job parameters carry no output_path.
func NewAppService(caller rpc.Caller, workspace string, logger *slog.Logger) *AppService {
	return &AppService{
		caller:    caller,
		workspace: workspace,
		logger:    logger.With("component", "appservice-gateway"),
	}
}

// NewAppServiceFromConnection creates a gateway for conn: the endpoint is the
// service URL, the secret is the auth token and the principal names the
// default workspace.
func NewAppServiceFromConnection(conn model.Connection, logger *slog.Logger) *AppService {
	caller := rpc.NewHTTPCaller(rpc.Config{URL: conn.Endpoint, Token: conn.Secret}, logger)
	return NewAppService(caller, fmt.Sprintf("/%s/home/", conn.Principal), logger)
}

// Submit calls AppService.start_app and returns the job id.
func (g *AppService) Submit(ctx context.Context, req model.SubmissionRequest) (model.ExecutionHandle, error) {
	params := make(map[string]any, len(req.Parameters)+1)
	for _, p := range req.Parameters {
		params[p.Name] = p.Value
	}
	workspace, _ := params["output_path"].(string)
	if workspace == "" {
		workspace = g.workspace
	}
	if _, ok := params["output_file"]; !ok {
		params["output_file"] = req.DisplayName
	}

	g.logger.Debug("submitting job", "app_id", req.JobName, "workspace", workspace)

	result, err := g.caller.Call(ctx, "AppService.start_app", []any{req.JobName, params, workspace})
	if err != nil {
		return "", submissionError("start_app "+req.JobName, err)
	}

	// Response: [{id, status, ...}] where id may be a number or a string.
	var jobs []map[string]any
	if err := json.Unmarshal(result, &jobs); err != nil {
		return "", submissionError("parse start_app response", err)
	}
	if len(jobs) == 0 || jobs[0]["id"] == nil {
		return "", submissionError("start_app "+req.JobName, errors.New("empty result"))
	}

	jobID := fmt.Sprintf("%v", jobs[0]["id"])
	g.logger.Info("job submitted", "app_id", req.JobName, "handle", jobID, "status", jobs[0]["status"])
	return model.ExecutionHandle(jobID), nil
}

// Inspect calls AppService.query_tasks.
func (g *AppService) Inspect(ctx context.Context, handle model.ExecutionHandle) (model.ExecutionStatus, error) {
	result, err := g.caller.Call(ctx, "AppService.query_tasks", []any{[]string{handle.String()}})
	if err != nil {
		return model.ExecutionStatus{}, inspectionError(handle, err)
	}

	// Response: [{jobID: {id, status, ...}}]
	var results []map[string]struct {
		Status string `json:"status"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(result, &results); err != nil {
		return model.ExecutionStatus{}, inspectionError(handle, fmt.Errorf("parse query_tasks response: %w", err))
	}
	if len(results) == 0 {
		return model.ExecutionStatus{}, unknownExecution(handle, errors.New("query_tasks returned no result"))
	}
	info, ok := results[0][handle.String()]
	if !ok {
		return model.ExecutionStatus{}, unknownExecution(handle, errors.New("job not in query_tasks result"))
	}
	return AppServiceVocabulary.Classify(info.Status, info.Error), nil
}

// Stop calls AppService.kill_task. A rejected kill of a job that already
// finished is a no-op.
func (g *AppService) Stop(ctx context.Context, handle model.ExecutionHandle) error {
	_, err := g.caller.Call(ctx, "AppService.kill_task", []any{handle.String()})
	if err == nil {
		g.logger.Info("kill requested", "handle", handle)
		return nil
	}

	var rpcErr *rpc.Error
	if !errors.As(err, &rpcErr) {
		// Transport failure: the kill may not have reached the service.
		return fmt.Errorf("kill_task %s: %w", handle, err)
	}
	st, inspectErr := g.Inspect(ctx, handle)
	if inspectErr != nil {
		if errors.Is(inspectErr, ErrUnknownExecution) {
			return inspectErr
		}
		return fmt.Errorf("kill_task %s: %w", handle, err)
	}
	if st.IsTerminal() {
		g.logger.Debug("kill on finished job ignored", "handle", handle, "status", st.Raw)
		return nil
	}
	return fmt.Errorf("kill_task %s: %w", handle, err)
}

// Ping checks that the service accepts the connection's token by listing its
// applications. It returns the number of applications.
func (g *AppService) Ping(ctx context.Context) (int, error) {
	result, err := g.caller.Call(ctx, "AppService.enumerate_apps", []any{})
	if err != nil {
		return 0, fmt.Errorf("enumerate_apps: %w", err)
	}
	// Response: [[{id, label, ...}, ...]]
	var apps [][]json.RawMessage
	if err := json.Unmarshal(result, &apps); err != nil {
		return 0, fmt.Errorf("parse enumerate_apps response: %w", err)
	}
	if len(apps) == 0 {
		return 0, nil
	}
	return len(apps[0]), nil
}
