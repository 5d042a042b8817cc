package placeholder

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestExpand(t *testing.T) {
	e := New(map[string]string{
		"bizdate": "2024-05-01",
		"env":     "prod",
	})

	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"${bizdate}", "2024-05-01"},
		{"s3://bucket/${env}/${bizdate}/", "s3://bucket/prod/2024-05-01/"},
		{`$(vars.bizdate.replace(/-/g, ""))`, "20240501"},
		{"n=$(1 + 2)", "n=3"},
		{"$(vars.env === 'prod')", "true"},
		{`literal \${bizdate}`, "literal ${bizdate}"},
		{`literal \$(x)`, "literal $(x)"},
		{"cost $5", "cost $5"},
		{"trailing $", "trailing $"},
	}
	for _, tt := range tests {
		got, err := e.Expand(tt.in)
		if err != nil {
			t.Errorf("Expand(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Expand(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExpand_Errors(t *testing.T) {
	e := New(map[string]string{"a": "1"})
	for _, in := range []string{
		"${missing}",
		"${a",
		"$(1 +",
		"$(vars.nope)",
		"$(syntax error here)",
	} {
		if _, err := e.Expand(in); err == nil {
			t.Errorf("Expand(%q): expected error", in)
		}
	}
}

func TestExpand_Deterministic(t *testing.T) {
	e := New(nil)
	if _, err := e.Expand("$(Date.now())"); err == nil {
		t.Error("expected Date to be unavailable")
	}
	if _, err := e.Expand("$(Math.random())"); err == nil {
		t.Error("expected Math.random to be unavailable")
	}
	got, err := e.Expand("$(Math.max(2, 7))")
	if err != nil || got != "7" {
		t.Errorf("Math.max = %q, %v", got, err)
	}
}

func TestExpandDocument(t *testing.T) {
	e := New(map[string]string{"date": "2024-05-01"})
	doc := map[string]any{
		"PipelineName": "AbalonePipeline",
		"PipelineParameters": []any{
			map[string]any{"Name": "InputDate", "Value": "${date}"},
		},
		"ParallelismConfiguration": map[string]any{"MaxParallelExecutionSteps": 1},
	}

	out, err := e.ExpandDocument(context.Background(), doc)
	if err != nil {
		t.Fatalf("ExpandDocument: %v", err)
	}
	params := out["PipelineParameters"].([]any)
	if v := params[0].(map[string]any)["Value"]; v != "2024-05-01" {
		t.Errorf("Value = %v, want 2024-05-01", v)
	}
	// Non-string values pass through untouched.
	if v := out["ParallelismConfiguration"].(map[string]any)["MaxParallelExecutionSteps"]; v != 1 {
		t.Errorf("MaxParallelExecutionSteps = %v", v)
	}
	// Input document is not mutated.
	if v := doc["PipelineParameters"].([]any)[0].(map[string]any)["Value"]; v != "${date}" {
		t.Errorf("input mutated: %v", v)
	}
}

func TestExpandDocument_ErrorPath(t *testing.T) {
	e := New(nil)
	_, err := e.ExpandDocument(context.Background(), map[string]any{
		"PipelineParameters": []any{map[string]any{"Value": "${nope}"}},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "PipelineParameters[0].Value") {
		t.Errorf("error %q should name the field path", err)
	}
}

func TestExpand_Timeout(t *testing.T) {
	e := New(nil).WithTimeout(50 * time.Millisecond)

	start := time.Now()
	_, err := e.Expand("$(function(){ for(;;){} }())")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("error = %v, want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("evaluation took %s", elapsed)
	}

	// The runtime stays usable after an interrupt.
	got, err := e.Expand("$(1 + 1)")
	if err != nil || got != "2" {
		t.Errorf("Expand after timeout = %q, %v; want 2", got, err)
	}
}

func TestExpandDocument_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := New(nil).ExpandDocument(ctx, map[string]any{
		"PipelineExecutionDescription": "$(function(){ for(;;){} }())",
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}

	if _, err := New(nil).ExpandDocument(ctx, map[string]any{"Name": "$(1)"}); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled context: error = %v, want context.Canceled", err)
	}
}
