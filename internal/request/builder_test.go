package request

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/me/remotetask/internal/definition"
	"github.com/me/remotetask/pkg/model"
)

const abaloneDefinition = `{
  "ParallelismConfiguration": {"MaxParallelExecutionSteps": 1},
  "PipelineExecutionDescription": "run pipeline using sagemaker",
  "PipelineName": "AbalonePipeline",
  "PipelineParameters": [
    {"Name": "ProcessingInstanceType", "Value": "ml.m4.xlarge"},
    {"Name": "ProcessingInstanceCount", "Value": 2}
  ]
}`

func decode(t *testing.T, s string) map[string]any {
	t.Helper()
	doc, err := definition.Decode([]byte(s))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return doc
}

func intPtr(v int) *int { return &v }

func abaloneParams() model.SubmissionParameters {
	return model.SubmissionParameters{
		JobName:            "AbalonePipeline",
		Description:        "test Pipeline",
		MaxConcurrentSteps: intPtr(1),
		AttemptID:          "att_1",
	}
}

func TestBuildSubmissionRequest_Abalone(t *testing.T) {
	req, err := BuildSubmissionRequest(abaloneParams(), decode(t, abaloneDefinition))
	if err != nil {
		t.Fatalf("BuildSubmissionRequest: %v", err)
	}
	if req.JobName != "AbalonePipeline" {
		t.Errorf("JobName = %q, want AbalonePipeline", req.JobName)
	}
	if req.DisplayName != "AbalonePipeline" {
		t.Errorf("DisplayName = %q, want AbalonePipeline", req.DisplayName)
	}
	if req.Description != "test Pipeline" {
		t.Errorf("Description = %q, want %q", req.Description, "test Pipeline")
	}
	if req.MaxConcurrentSteps != 1 {
		t.Errorf("MaxConcurrentSteps = %d, want 1", req.MaxConcurrentSteps)
	}
	want := []model.JobParameter{
		{Name: "ProcessingInstanceType", Value: "ml.m4.xlarge"},
		{Name: "ProcessingInstanceCount", Value: "2"},
	}
	if len(req.Parameters) != len(want) {
		t.Fatalf("Parameters = %+v", req.Parameters)
	}
	for i := range want {
		if req.Parameters[i] != want[i] {
			t.Errorf("Parameters[%d] = %+v, want %+v", i, req.Parameters[i], want[i])
		}
	}
	if req.ClientToken == "" {
		t.Error("expected client token for an attempt id")
	}
}

func TestBuildSubmissionRequest_Deterministic(t *testing.T) {
	var first []byte
	for i := 0; i < 5; i++ {
		req, err := BuildSubmissionRequest(abaloneParams(), decode(t, abaloneDefinition))
		if err != nil {
			t.Fatal(err)
		}
		b, err := json.Marshal(req)
		if err != nil {
			t.Fatal(err)
		}
		if first == nil {
			first = b
			continue
		}
		if !bytes.Equal(first, b) {
			t.Fatalf("request differs between builds:\n%s\n%s", first, b)
		}
	}
}

func TestBuildSubmissionRequest_ClientTokenPerAttempt(t *testing.T) {
	doc := decode(t, abaloneDefinition)
	p := abaloneParams()
	a, _ := BuildSubmissionRequest(p, doc)
	p.AttemptID = "att_2"
	b, _ := BuildSubmissionRequest(p, doc)
	if a.ClientToken == b.ClientToken {
		t.Error("different attempts should get different tokens")
	}

	p.AttemptID = ""
	c, _ := BuildSubmissionRequest(p, doc)
	if c.ClientToken != "" {
		t.Errorf("ClientToken = %q, want empty without attempt id", c.ClientToken)
	}
}

func TestBuildSubmissionRequest_ConcurrencyLimit(t *testing.T) {
	doc := decode(t, `{"PipelineName": "AbalonePipeline"}`)

	oversized := int64(math.MaxInt32) + 1
	for _, n := range []int{0, -1, -100, int(oversized), int(oversized*2 + 1)} {
		p := abaloneParams()
		p.MaxConcurrentSteps = intPtr(n)
		_, err := BuildSubmissionRequest(p, doc)
		if !errors.Is(err, model.ErrInvalidConfiguration) {
			t.Errorf("limit %d: error = %v, want InvalidConfigurationError", n, err)
		}
	}

	p := abaloneParams()
	p.MaxConcurrentSteps = intPtr(model.MaxConcurrentStepsLimit)
	req, err := BuildSubmissionRequest(p, doc)
	if err != nil {
		t.Fatalf("limit %d: %v", model.MaxConcurrentStepsLimit, err)
	}
	if req.MaxConcurrentSteps != model.MaxConcurrentStepsLimit {
		t.Errorf("MaxConcurrentSteps = %d, want %d", req.MaxConcurrentSteps, model.MaxConcurrentStepsLimit)
	}

	// Missing everywhere is rejected, not defaulted.
	p = abaloneParams()
	p.MaxConcurrentSteps = nil
	if _, err := BuildSubmissionRequest(p, doc); !errors.Is(err, model.ErrInvalidConfiguration) {
		t.Errorf("missing limit: error = %v, want InvalidConfigurationError", err)
	}

	p.MaxConcurrentSteps = intPtr(1)
	req, err = BuildSubmissionRequest(p, doc)
	if err != nil {
		t.Fatalf("limit 1: %v", err)
	}
	if req.MaxConcurrentSteps != 1 {
		t.Errorf("MaxConcurrentSteps = %d, want 1", req.MaxConcurrentSteps)
	}
}

func TestBuildSubmissionRequest_ConcurrencyFromDefinition(t *testing.T) {
	p := abaloneParams()
	p.MaxConcurrentSteps = nil

	req, err := BuildSubmissionRequest(p, decode(t, `
PipelineName: AbalonePipeline
ParallelismConfiguration:
  MaxParallelExecutionSteps: 4
`))
	if err != nil {
		t.Fatalf("BuildSubmissionRequest: %v", err)
	}
	if req.MaxConcurrentSteps != 4 {
		t.Errorf("MaxConcurrentSteps = %d, want 4", req.MaxConcurrentSteps)
	}

	for _, bad := range []string{
		`{"PipelineName":"AbalonePipeline","ParallelismConfiguration":{"MaxParallelExecutionSteps":0}}`,
		`{"PipelineName":"AbalonePipeline","ParallelismConfiguration":{"MaxParallelExecutionSteps":1.5}}`,
		`{"PipelineName":"AbalonePipeline","ParallelismConfiguration":{"MaxParallelExecutionSteps":"two"}}`,
		`{"PipelineName":"AbalonePipeline","ParallelismConfiguration":{"MaxParallelExecutionSteps":2147483648}}`,
		`{"PipelineName":"AbalonePipeline","ParallelismConfiguration":{"MaxParallelExecutionSteps":4294967297}}`,
		"PipelineName: AbalonePipeline\nParallelismConfiguration:\n  MaxParallelExecutionSteps: 4294967297\n",
	} {
		if _, err := BuildSubmissionRequest(p, decode(t, bad)); !errors.Is(err, model.ErrInvalidConfiguration) {
			t.Errorf("%s: error = %v, want InvalidConfigurationError", bad, err)
		}
	}
}

func TestBuildSubmissionRequest_OverridesWin(t *testing.T) {
	p := abaloneParams()
	p.DisplayName = "nightly-abalone"
	p.MaxConcurrentSteps = intPtr(3)

	req, err := BuildSubmissionRequest(p, decode(t, abaloneDefinition))
	if err != nil {
		t.Fatal(err)
	}
	if req.DisplayName != "nightly-abalone" {
		t.Errorf("DisplayName = %q", req.DisplayName)
	}
	if req.MaxConcurrentSteps != 3 {
		t.Errorf("MaxConcurrentSteps = %d, want 3", req.MaxConcurrentSteps)
	}
}

func TestBuildSubmissionRequest_FallsBackToDefinitionThenName(t *testing.T) {
	p := abaloneParams()
	p.Description = ""

	req, err := BuildSubmissionRequest(p, decode(t, abaloneDefinition))
	if err != nil {
		t.Fatal(err)
	}
	if req.Description != "run pipeline using sagemaker" {
		t.Errorf("Description = %q", req.Description)
	}

	req, err = BuildSubmissionRequest(p, decode(t, `{"PipelineName":"AbalonePipeline"}`))
	if err != nil {
		t.Fatal(err)
	}
	if req.Description != "AbalonePipeline" || req.DisplayName != "AbalonePipeline" {
		t.Errorf("Description = %q, DisplayName = %q", req.Description, req.DisplayName)
	}
}

func TestBuildSubmissionRequest_InvalidDefinition(t *testing.T) {
	tests := []struct {
		name    string
		jobName string
		doc     string
	}{
		{"no name", "", `{"PipelineParameters": []}`},
		{"name not string", "", `{"PipelineName": 7}`},
		{"name mismatch", "OtherPipeline", `{"PipelineName": "AbalonePipeline"}`},
		{"parameters not list", "", `{"PipelineName": "A", "PipelineParameters": {"x": 1}}`},
		{"parameter without name", "", `{"PipelineName": "A", "PipelineParameters": [{"Value": "1"}]}`},
		{"duplicate parameter", "", `{"PipelineName": "A", "PipelineParameters": [{"Name": "x"}, {"Name": "x"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := abaloneParams()
			p.JobName = tt.jobName
			_, err := BuildSubmissionRequest(p, decode(t, tt.doc))
			if !errors.Is(err, model.ErrInvalidDefinition) {
				t.Errorf("error = %v, want InvalidDefinitionError", err)
			}
		})
	}
}

func TestBuildSubmissionRequest_NameAliases(t *testing.T) {
	p := abaloneParams()
	p.JobName = ""
	req, err := BuildSubmissionRequest(p, decode(t, "name: genome-annotation\nparameters:\n  - name: genome_id\n    value: 83332.12\n"))
	if err != nil {
		t.Fatal(err)
	}
	if req.JobName != "genome-annotation" {
		t.Errorf("JobName = %q", req.JobName)
	}
	if len(req.Parameters) != 1 || req.Parameters[0].Value != "83332.12" {
		t.Errorf("Parameters = %+v", req.Parameters)
	}
}
