package model

import (
	"errors"
	"fmt"
)

// ErrorCode represents a structured API error code.
type ErrorCode string

const (
	ErrValidation ErrorCode = "VALIDATION_ERROR"
	ErrNotFound   ErrorCode = "NOT_FOUND"
	ErrConflict   ErrorCode = "CONFLICT"
	ErrInternal   ErrorCode = "INTERNAL_ERROR"
)

// APIError is a structured error returned by the HTTP API.
type APIError struct {
	Code    ErrorCode    `json:"code"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// FieldError describes a validation error on a specific field.
type FieldError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// NewValidationError creates an APIError with validation details.
func NewValidationError(msg string, details ...FieldError) *APIError {
	return &APIError{Code: ErrValidation, Message: msg, Details: details}
}

// NewNotFoundError creates a NOT_FOUND APIError.
func NewNotFoundError(resource, id string) *APIError {
	return &APIError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s '%s' not found", resource, id),
	}
}

// InvalidTransitionError is returned when a state transition is invalid.
type InvalidTransitionError struct {
	Entity string
	ID     string
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid %s state transition: %s → %s (entity %s)", e.Entity, e.From, e.To, e.ID)
}

// ErrorKind classifies task errors for diagnostics.
type ErrorKind string

const (
	KindConnectionResolution ErrorKind = "ConnectionResolutionError"
	KindInvalidDefinition    ErrorKind = "InvalidDefinitionError"
	KindInvalidConfiguration ErrorKind = "InvalidConfigurationError"
	KindSubmission           ErrorKind = "SubmissionError"
	KindInspection           ErrorKind = "InspectionError"
)

// Sentinels for errors.Is matching against a TaskError's kind.
var (
	ErrConnectionResolution = &TaskError{Kind: KindConnectionResolution}
	ErrInvalidDefinition    = &TaskError{Kind: KindInvalidDefinition}
	ErrInvalidConfiguration = &TaskError{Kind: KindInvalidConfiguration}
	ErrSubmission           = &TaskError{Kind: KindSubmission}
	ErrInspection           = &TaskError{Kind: KindInspection}
)

// TaskError is an error raised while preparing, submitting or tracking a
// remote execution.
type TaskError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

// NewTaskError wraps err with the given kind. msg describes the operation.
func NewTaskError(kind ErrorKind, op string, err error) *TaskError {
	return &TaskError{Kind: kind, Op: op, Err: err}
}

// Errorf builds a TaskError whose cause is a formatted message.
func Errorf(kind ErrorKind, format string, args ...any) *TaskError {
	return &TaskError{Kind: kind, Err: fmt.Errorf(format, args...)}
}

func (e *TaskError) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
	return string(e.Kind)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

// Is matches any TaskError of the same kind, so callers can write
// errors.Is(err, model.ErrSubmission).
func (e *TaskError) Is(target error) bool {
	t, ok := target.(*TaskError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first TaskError in err's chain, or "" if
// there is none.
func KindOf(err error) ErrorKind {
	var te *TaskError
	if errors.As(err, &te) {
		return te.Kind
	}
	return ""
}
