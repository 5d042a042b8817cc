package model

import (
	"errors"
	"strings"
	"testing"
)

func TestParseParameters(t *testing.T) {
	blob := []byte(`{
		"definition": "{\"PipelineName\":\"AbalonePipeline\"}",
		"jobName": "AbalonePipeline",
		"description": "test Pipeline",
		"maxConcurrentSteps": 1,
		"connection": {"principal": "lucky", "secret": "root", "region": "us-east-1"}
	}`)

	p, err := ParseParameters(blob)
	if err != nil {
		t.Fatalf("ParseParameters: %v", err)
	}
	if p.Service != ServiceSageMaker {
		t.Errorf("Service = %q, want %q", p.Service, ServiceSageMaker)
	}
	if p.MaxConcurrentSteps == nil || *p.MaxConcurrentSteps != 1 {
		t.Errorf("MaxConcurrentSteps = %v, want 1", p.MaxConcurrentSteps)
	}
	if !p.Connection.IsInline() {
		t.Error("expected inline connection")
	}
	if p.Connection.Region != "us-east-1" {
		t.Errorf("Region = %q", p.Connection.Region)
	}
}

func TestParseParameters_MissingConcurrencyStaysNil(t *testing.T) {
	p, err := ParseParameters([]byte(`{"definition":"{}","connection":{"name":"c"}}`))
	if err != nil {
		t.Fatalf("ParseParameters: %v", err)
	}
	if p.MaxConcurrentSteps != nil {
		t.Errorf("MaxConcurrentSteps = %v, want nil", *p.MaxConcurrentSteps)
	}
}

func TestParseParameters_Errors(t *testing.T) {
	tests := []struct {
		name string
		blob string
		want error
	}{
		{"malformed", `{`, ErrInvalidConfiguration},
		{"unknown field", `{"definition":"{}","bogus":1}`, ErrInvalidConfiguration},
		{"unsupported service", `{"definition":"{}","service":"lambda"}`, ErrInvalidConfiguration},
		{"no definition", `{"jobName":"x"}`, ErrInvalidDefinition},
		{"both definitions", `{"definition":"{}","definitionUri":"s3://b/k"}`, ErrInvalidDefinition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseParameters([]byte(tt.blob))
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want kind %v", err, tt.want)
			}
		})
	}
}

func TestSubmissionParameters_StringOmitsSecret(t *testing.T) {
	p := SubmissionParameters{
		JobName:    "AbalonePipeline",
		Connection: ConnectionRef{Principal: "lucky", Secret: "root"},
	}
	s := p.String()
	if strings.Contains(s, "root") {
		t.Errorf("String() leaked secret: %s", s)
	}
	if !strings.Contains(s, "steps=unset") {
		t.Errorf("String() = %s, want steps=unset", s)
	}
}
