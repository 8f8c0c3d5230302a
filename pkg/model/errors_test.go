package model

import (
	"errors"
	"fmt"
	"testing"
)

func TestAPIError_Error(t *testing.T) {
	err := &APIError{Code: ErrNotFound, Message: "Run 'run_123' not found"}
	want := "NOT_FOUND: Run 'run_123' not found"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestNewNotFoundError(t *testing.T) {
	err := NewNotFoundError("Run", "run_abc")
	if err.Code != ErrNotFound {
		t.Errorf("Code = %q, want %q", err.Code, ErrNotFound)
	}
	if err.Message != "Run 'run_abc' not found" {
		t.Errorf("Message = %q, want %q", err.Message, "Run 'run_abc' not found")
	}
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("Invalid request",
		FieldError{Field: "limit", Message: "expected int"},
		FieldError{Field: "offset", Message: "expected int"},
	)
	if err.Code != ErrValidation {
		t.Errorf("Code = %q, want %q", err.Code, ErrValidation)
	}
	if len(err.Details) != 2 {
		t.Errorf("Details length = %d, want 2", len(err.Details))
	}
}

func TestKernelError_Error(t *testing.T) {
	tests := []struct {
		err  *KernelError
		want string
	}{
		{NewKernelError(ErrTableFull, NoTask, "table holds %d tasks", 8), "TABLE_FULL: table holds 8 tasks"},
		{NewKernelError(ErrStackOverflow, 3, "canary at 0x%08x", 0x20000100), "STACK_OVERFLOW: task 3: canary at 0x20000100"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}

func TestKernelError_Is(t *testing.T) {
	err := fmt.Errorf("register sampler: %w", NewKernelError(ErrPoolExhausted, NoTask, "need 512 bytes"))
	if !errors.Is(err, ErrPoolExhaustedKind) {
		t.Error("errors.Is(err, ErrPoolExhaustedKind) = false, want true")
	}
	if errors.Is(err, ErrTableFullKind) {
		t.Error("errors.Is(err, ErrTableFullKind) = true, want false")
	}
	var ke *KernelError
	if !errors.As(err, &ke) || ke.Code != ErrPoolExhausted {
		t.Errorf("errors.As did not recover the kernel error: %v", ke)
	}
}
