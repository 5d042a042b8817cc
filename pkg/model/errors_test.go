package model

import (
	"errors"
	"fmt"
	"testing"
)

func TestAPIError_Error(t *testing.T) {
	err := &APIError{Code: ErrNotFound, Message: "Task 'att_123' not found"}
	want := "NOT_FOUND: Task 'att_123' not found"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestNewNotFoundError(t *testing.T) {
	err := NewNotFoundError("Connection", "prod-aws")
	if err.Code != ErrNotFound {
		t.Errorf("Code = %q, want %q", err.Code, ErrNotFound)
	}
	if err.Message != "Connection 'prod-aws' not found" {
		t.Errorf("Message = %q", err.Message)
	}
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("Invalid request",
		FieldError{Field: "name", Message: "required"},
		FieldError{Field: "region", Message: "required"},
	)
	if err.Code != ErrValidation {
		t.Errorf("Code = %q, want %q", err.Code, ErrValidation)
	}
	if len(err.Details) != 2 {
		t.Errorf("Details length = %d, want 2", len(err.Details))
	}
}

func TestInvalidTransitionError(t *testing.T) {
	err := &InvalidTransitionError{
		Entity: "controller",
		ID:     "att_1",
		From:   "SUCCEEDED",
		To:     "POLLING",
	}
	want := "invalid controller state transition: SUCCEEDED → POLLING (entity att_1)"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestTaskError_IsMatchesKind(t *testing.T) {
	err := fmt.Errorf("attempt att_1: %w",
		NewTaskError(KindSubmission, "start pipeline", errors.New("throttled")))

	if !errors.Is(err, ErrSubmission) {
		t.Error("expected errors.Is(err, ErrSubmission)")
	}
	if errors.Is(err, ErrInspection) {
		t.Error("submission error should not match ErrInspection")
	}
	if got := KindOf(err); got != KindSubmission {
		t.Errorf("KindOf = %q, want %q", got, KindSubmission)
	}
}

func TestTaskError_UnwrapsCause(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := NewTaskError(KindInspection, "describe", cause)
	if !errors.Is(err, cause) {
		t.Error("expected cause to be reachable via errors.Is")
	}
	want := "InspectionError: describe: dial tcp: timeout"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestErrorf(t *testing.T) {
	err := Errorf(KindInvalidConfiguration, "maxConcurrentSteps must be >= 1, got %d", 0)
	want := "InvalidConfigurationError: maxConcurrentSteps must be >= 1, got 0"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestKindOf_NonTaskError(t *testing.T) {
	if got := KindOf(errors.New("plain")); got != "" {
		t.Errorf("KindOf(plain) = %q, want empty", got)
	}
	if got := KindOf(nil); got != "" {
		t.Errorf("KindOf(nil) = %q, want empty", got)
	}
}
