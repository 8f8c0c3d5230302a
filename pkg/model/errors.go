package model

import "fmt"

// ErrorCode represents a structured error code shared by the kernel and the trace API.
type ErrorCode string

const (
	ErrValidation ErrorCode = "VALIDATION_ERROR"
	ErrNotFound   ErrorCode = "NOT_FOUND"
	ErrInternal   ErrorCode = "INTERNAL_ERROR"

	// Kernel error codes.
	ErrTableFull      ErrorCode = "TABLE_FULL"
	ErrPoolExhausted  ErrorCode = "POOL_EXHAUSTED"
	ErrStackTooSmall  ErrorCode = "STACK_TOO_SMALL"
	ErrInvalidPolicy  ErrorCode = "INVALID_POLICY"
	ErrAlreadyStarted ErrorCode = "ALREADY_STARTED"
	ErrNotStarted     ErrorCode = "NOT_STARTED"
	ErrStackOverflow  ErrorCode = "STACK_OVERFLOW"
	ErrUnknownTask    ErrorCode = "UNKNOWN_TASK"
)

// APIError is a structured error returned by the trace API.
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

// KernelError is returned by task registration, the monitors and the board.
// Task is NoTask when the error is not tied to a table slot.
type KernelError struct {
	Code    ErrorCode
	Task    TaskID
	Message string
}

func (e *KernelError) Error() string {
	if e.Task == NoTask {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: task %d: %s", e.Code, e.Task, e.Message)
}

// Is matches any KernelError carrying the same code, so callers can write
// errors.Is(err, model.ErrTableFullKind).
func (e *KernelError) Is(target error) bool {
	t, ok := target.(*KernelError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewKernelError creates a KernelError for a task slot.
func NewKernelError(code ErrorCode, task TaskID, format string, args ...any) *KernelError {
	return &KernelError{Code: code, Task: task, Message: fmt.Sprintf(format, args...)}
}

// Sentinels for errors.Is matching on kernel error codes.
var (
	ErrTableFullKind      = &KernelError{Code: ErrTableFull, Task: NoTask}
	ErrPoolExhaustedKind  = &KernelError{Code: ErrPoolExhausted, Task: NoTask}
	ErrStackTooSmallKind  = &KernelError{Code: ErrStackTooSmall, Task: NoTask}
	ErrInvalidPolicyKind  = &KernelError{Code: ErrInvalidPolicy, Task: NoTask}
	ErrAlreadyStartedKind = &KernelError{Code: ErrAlreadyStarted, Task: NoTask}
	ErrNotStartedKind     = &KernelError{Code: ErrNotStarted, Task: NoTask}
	ErrStackOverflowKind  = &KernelError{Code: ErrStackOverflow, Task: NoTask}
	ErrUnknownTaskKind    = &KernelError{Code: ErrUnknownTask, Task: NoTask}
)
