package task

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/me/remotetask/internal/config"
	"github.com/me/remotetask/internal/connection"
	"github.com/me/remotetask/internal/gateway"
	"github.com/me/remotetask/internal/logging"
	"github.com/me/remotetask/pkg/model"
)

const abaloneDefinition = `{
  "Version": "2020-12-01",
  "PipelineName": "AbalonePipeline",
  "PipelineExecutionDescription": "test Pipeline",
  "PipelineParameters": [
    {"Name": "ProcessingInstanceType", "Value": "${instance_type}"},
    {"Name": "TrainingInstanceCount", "Value": 1}
  ],
  "Steps": []
}`

// stubGateway answers inspects from a script and records submitted requests.
type stubGateway struct {
	mu       sync.Mutex
	requests []model.SubmissionRequest
	statuses []string
	stops    int
}

func (g *stubGateway) Submit(_ context.Context, req model.SubmissionRequest) (model.ExecutionHandle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	return "test-pipeline-arn", nil
}

func (g *stubGateway) Inspect(_ context.Context, _ model.ExecutionHandle) (model.ExecutionStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	raw := g.statuses[0]
	if len(g.statuses) > 1 {
		g.statuses = g.statuses[1:]
	}
	return gateway.SageMakerVocabulary.Classify(raw, ""), nil
}

func (g *stubGateway) Stop(_ context.Context, _ model.ExecutionHandle) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stops++
	return nil
}

// stubOpener hands out one gateway and records the connection it was given.
type stubOpener struct {
	gw   gateway.Gateway
	err  error
	conn model.Connection
}

func (o *stubOpener) Open(_ context.Context, conn model.Connection) (gateway.Gateway, error) {
	o.conn = conn
	return o.gw, o.err
}

func testDeps(opener GatewayOpener) Deps {
	return Deps{
		Resolver: connection.NewStoreResolver(nil, logging.Discard()),
		Gateways: opener,
		Controller: config.ControllerConfig{
			PollInterval:      time.Millisecond,
			MaxInspectRetries: 1,
			StopTimeout:       time.Second,
		},
		Logger: logging.Discard(),
	}
}

func blob(t *testing.T, mutate func(m map[string]any)) []byte {
	t.Helper()
	m := map[string]any{
		"definition":         abaloneDefinition,
		"jobName":            "AbalonePipeline",
		"maxConcurrentSteps": 1,
		"attemptId":          "attempt-1",
		"variables":          map[string]string{"instance_type": "ml.m4.xlarge"},
		"connection": map[string]any{
			"principal": "AKIAEXAMPLE",
			"secret":    "s3cret",
			"region":    "us-west-2",
		},
	}
	if mutate != nil {
		mutate(m)
	}
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestTask_HandleSuccess(t *testing.T) {
	gw := &stubGateway{statuses: []string{"Executing", "Succeeded"}}
	opener := &stubOpener{gw: gw}
	tk := New(blob(t, nil), testDeps(opener))

	res := tk.Handle(context.Background())
	if res.Outcome != model.OutcomeSuccess || res.ExitCode != 0 {
		t.Fatalf("result = %+v, want SUCCESS/0", res)
	}
	if res.Handle != "test-pipeline-arn" {
		t.Errorf("handle = %q", res.Handle)
	}
	if res.LastStatus.Raw != "Succeeded" {
		t.Errorf("last status = %q", res.LastStatus.Raw)
	}
	if res.Retries != 0 || res.ErrorKind != "" {
		t.Errorf("retries = %d kind = %q", res.Retries, res.ErrorKind)
	}

	if len(gw.requests) != 1 {
		t.Fatalf("submits = %d, want 1", len(gw.requests))
	}
	req := gw.requests[0]
	if req.JobName != "AbalonePipeline" || req.DisplayName != "AbalonePipeline" ||
		req.Description != "test Pipeline" || req.MaxConcurrentSteps != 1 {
		t.Errorf("request = %+v", req)
	}
	if len(req.Parameters) != 2 || req.Parameters[0].Value != "ml.m4.xlarge" || req.Parameters[1].Value != "1" {
		t.Errorf("parameters = %+v", req.Parameters)
	}
	if req.ClientToken == "" {
		t.Error("client token should be set when an attempt id is given")
	}
	if opener.conn.Service != model.ServiceSageMaker || opener.conn.Region != "us-west-2" {
		t.Errorf("connection = %+v", opener.conn)
	}
	if tk.State() != model.ControllerStateSucceeded {
		t.Errorf("state = %s", tk.State())
	}
}

func TestTask_RemoteFailure(t *testing.T) {
	gw := &stubGateway{statuses: []string{"Executing", "Failed"}}
	res := New(blob(t, nil), testDeps(&stubOpener{gw: gw})).Handle(context.Background())
	if res.Outcome != model.OutcomeFailure || res.ExitCode != model.ExitCodeFailure {
		t.Errorf("result = %+v, want FAILURE/1", res)
	}
	if res.ErrorKind != "" {
		t.Errorf("kind = %q, a failed job is not an error", res.ErrorKind)
	}
}

func TestTask_PreSubmissionErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(m map[string]any)
		kind   model.ErrorKind
	}{
		{"zero concurrency", func(m map[string]any) { m["maxConcurrentSteps"] = 0 }, model.KindInvalidConfiguration},
		{"negative concurrency", func(m map[string]any) { m["maxConcurrentSteps"] = -2 }, model.KindInvalidConfiguration},
		{"absent concurrency", func(m map[string]any) { delete(m, "maxConcurrentSteps") }, model.KindInvalidConfiguration},
		{"unknown field", func(m map[string]any) { m["maxConcurency"] = 1 }, model.KindInvalidConfiguration},
		{"name mismatch", func(m map[string]any) { m["jobName"] = "Other" }, model.KindInvalidDefinition},
		{"bad document", func(m map[string]any) { m["definition"] = "{not json" }, model.KindInvalidDefinition},
		{"undefined variable", func(m map[string]any) { m["variables"] = map[string]string{} }, model.KindInvalidDefinition},
		{"missing secret", func(m map[string]any) {
			m["connection"] = map[string]any{"principal": "AKIAEXAMPLE", "region": "us-west-2"}
		}, model.KindConnectionResolution},
		{"unknown stored connection", func(m map[string]any) {
			m["connection"] = map[string]any{"name": "prod"}
		}, model.KindConnectionResolution},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &stubGateway{statuses: []string{"Succeeded"}}
			tk := New(blob(t, tt.mutate), testDeps(&stubOpener{gw: gw}))

			res := tk.Handle(context.Background())
			if res.Outcome != model.OutcomeFailure {
				t.Errorf("outcome = %s, want FAILURE", res.Outcome)
			}
			if res.ErrorKind != tt.kind {
				t.Errorf("kind = %q, want %q (err: %v)", res.ErrorKind, tt.kind, res.Err)
			}
			if len(gw.requests) != 0 {
				t.Error("nothing should be submitted")
			}
		})
	}
}

func TestTask_GatewayOpenFails(t *testing.T) {
	opener := &stubOpener{err: errors.New("no gateway registered")}
	res := New(blob(t, nil), testDeps(opener)).Handle(context.Background())
	if res.ErrorKind != model.KindInvalidConfiguration {
		t.Errorf("kind = %q, want %q", res.ErrorKind, model.KindInvalidConfiguration)
	}
}

func TestTask_DefinitionFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	yamlDef := "PipelineName: AbalonePipeline\nParallelismConfiguration:\n  MaxParallelExecutionSteps: 2\n"
	if err := os.WriteFile(path, []byte(yamlDef), 0o644); err != nil {
		t.Fatal(err)
	}
	gw := &stubGateway{statuses: []string{"Succeeded"}}
	tk := New(blob(t, func(m map[string]any) {
		delete(m, "definition")
		delete(m, "maxConcurrentSteps")
		m["definitionUri"] = "file://" + path
	}), testDeps(&stubOpener{gw: gw}))

	if err := tk.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if got := tk.Request().MaxConcurrentSteps; got != 2 {
		t.Errorf("MaxConcurrentSteps = %d, want 2 from the document", got)
	}
	if res := tk.Handle(context.Background()); res.Outcome != model.OutcomeSuccess {
		t.Errorf("outcome = %s", res.Outcome)
	}
}

func TestTask_CancelBeforeHandle(t *testing.T) {
	gw := &stubGateway{statuses: []string{"Executing"}}
	tk := New(blob(t, nil), testDeps(&stubOpener{gw: gw}))
	tk.Cancel()

	res := tk.Handle(context.Background())
	if res.Outcome != model.OutcomeKilled || res.ExitCode != model.ExitCodeKilled {
		t.Errorf("result = %+v, want KILLED/137", res)
	}
	if len(gw.requests) != 0 {
		t.Error("a task cancelled before submission must not submit")
	}
}

func TestTask_CancelWhileRunning(t *testing.T) {
	gw := &stubGateway{statuses: []string{"Executing"}}
	deps := testDeps(&stubOpener{gw: gw})
	deps.Controller.PollInterval = time.Hour
	tk := New(blob(t, nil), deps)
	if err := tk.Init(context.Background()); err != nil {
		t.Fatal(err)
	}

	done := make(chan Result, 1)
	go func() { done <- tk.Handle(context.Background()) }()

	deadline := time.Now().Add(5 * time.Second)
	for tk.LastStatus().Raw != "Executing" {
		if time.Now().After(deadline) {
			t.Fatal("task never started polling")
		}
		time.Sleep(time.Millisecond)
	}
	tk.Cancel()

	select {
	case res := <-done:
		if res.Outcome != model.OutcomeKilled {
			t.Errorf("outcome = %s, want KILLED", res.Outcome)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("cancel not honoured")
	}
	gw.mu.Lock()
	defer gw.mu.Unlock()
	if gw.stops != 1 {
		t.Errorf("stops = %d, want 1", gw.stops)
	}
}

func TestTask_InitIdempotent(t *testing.T) {
	opener := &stubOpener{gw: &stubGateway{statuses: []string{"Succeeded"}}}
	tk := New(blob(t, func(m map[string]any) { m["maxConcurrentSteps"] = 0 }), testDeps(opener))
	first := tk.Init(context.Background())
	second := tk.Init(context.Background())
	if first == nil || first != second {
		t.Errorf("Init errors = %v, %v; want the same non-nil error", first, second)
	}
}

func TestTask_CancelInterruptsInit(t *testing.T) {
	gw := &stubGateway{statuses: []string{"Executing"}}
	tk := New(blob(t, func(m map[string]any) {
		m["definition"] = `{"PipelineName": "AbalonePipeline", "PipelineExecutionDescription": "$(function(){ for(;;){} }())"}`
	}), testDeps(&stubOpener{gw: gw}))

	done := make(chan Result, 1)
	go func() { done <- tk.Handle(context.Background()) }()

	time.Sleep(20 * time.Millisecond)
	tk.Cancel()

	select {
	case res := <-done:
		if res.Outcome != model.OutcomeKilled || res.ExitCode != model.ExitCodeKilled {
			t.Errorf("result = %+v, want KILLED/137", res)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("cancel did not interrupt Init")
	}
	if len(gw.requests) != 0 {
		t.Error("a task cancelled during Init must not submit")
	}
}
