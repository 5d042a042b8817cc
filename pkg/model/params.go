package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// DefaultMaxConcurrentSteps is the concurrency limit a host applies when it
// creates parameters without one. It is never inferred from absence.
const DefaultMaxConcurrentSteps = 1

// MaxConcurrentStepsLimit is the largest concurrency limit a request may
// carry. Remote services take the limit as a 32-bit integer.
const MaxConcurrentStepsLimit = math.MaxInt32

// ServiceType identifies the remote execution service a task targets.
type ServiceType string

const (
	ServiceSageMaker  ServiceType = "sagemaker"
	ServiceAppService ServiceType = "appservice"
)

// ConnectionRef points at the credentials used to reach the remote service,
// either by stored connection name or with inline fields.
type ConnectionRef struct {
	Name      string `json:"name,omitempty"`
	Principal string `json:"principal,omitempty"`
	Secret    string `json:"secret,omitempty"`
	Region    string `json:"region,omitempty"`
	Endpoint  string `json:"endpoint,omitempty"`

	// Service is the service the referencing task targets. The task fills
	// it in from SubmissionParameters.Service.
	Service ServiceType `json:"-"`
}

// IsInline reports whether the reference carries its own credentials
// instead of naming a stored connection.
func (r ConnectionRef) IsInline() bool {
	return r.Name == ""
}

// SubmissionParameters is the flat record a host engine hands to one task
// attempt, decoded from its serialized parameter blob.
type SubmissionParameters struct {
	Definition         string            `json:"definition,omitempty"`
	DefinitionURI      string            `json:"definitionUri,omitempty"`
	JobName            string            `json:"jobName,omitempty"`
	DisplayName        string            `json:"displayName,omitempty"`
	Description        string            `json:"description,omitempty"`
	MaxConcurrentSteps *int              `json:"maxConcurrentSteps,omitempty"`
	Service            ServiceType       `json:"service,omitempty"`
	Connection         ConnectionRef     `json:"connection"`
	AttemptID          string            `json:"attemptId,omitempty"`
	Variables          map[string]string `json:"variables,omitempty"`
}

// ParseParameters decodes a host parameter blob. Unknown fields are rejected
// so typos in task configuration surface before anything is submitted.
func ParseParameters(blob []byte) (SubmissionParameters, error) {
	var p SubmissionParameters
	dec := json.NewDecoder(bytes.NewReader(blob))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return SubmissionParameters{}, NewTaskError(KindInvalidConfiguration, "decode parameters", err)
	}
	if p.Service == "" {
		p.Service = ServiceSageMaker
	}
	switch p.Service {
	case ServiceSageMaker, ServiceAppService:
	default:
		return SubmissionParameters{}, Errorf(KindInvalidConfiguration, "unsupported service %q", p.Service)
	}
	if p.Definition == "" && p.DefinitionURI == "" {
		return SubmissionParameters{}, Errorf(KindInvalidDefinition, "one of definition or definitionUri is required")
	}
	if p.Definition != "" && p.DefinitionURI != "" {
		return SubmissionParameters{}, Errorf(KindInvalidDefinition, "definition and definitionUri are mutually exclusive")
	}
	return p, nil
}

// String renders the parameters for logs without the connection secret.
func (p SubmissionParameters) String() string {
	steps := "unset"
	if p.MaxConcurrentSteps != nil {
		steps = fmt.Sprint(*p.MaxConcurrentSteps)
	}
	return fmt.Sprintf("job=%s service=%s connection=%s steps=%s", p.JobName, p.Service, p.Connection.Name, steps)
}
