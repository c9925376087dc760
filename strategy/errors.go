package strategy

import (
	"fmt"
	"time"
)

// FieldError is a single validation failure tied to one input field.
type FieldError struct {
	Field   string         `json:"field"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Context map[string]any `json:"context,omitempty"`
}

// NewFieldError builds a FieldError. Attach extra detail via the Context
// field when a message alone is not enough.
func NewFieldError(field, code, message string) *FieldError {
	return &FieldError{Field: field, Code: code, Message: message}
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("validation: %s: %s (%s)", e.Field, e.Message, e.Code)
}

// FieldWarning is an advisory validation finding. It carries the same shape
// as FieldError but never fails validation; Field and Code may be empty for
// warnings about the input as a whole.
type FieldWarning struct {
	Field   string         `json:"field,omitempty"`
	Code    string         `json:"code,omitempty"`
	Message string         `json:"message"`
	Context map[string]any `json:"context,omitempty"`
}

// NewFieldWarning builds a FieldWarning.
func NewFieldWarning(field, code, message string) *FieldWarning {
	return &FieldWarning{Field: field, Code: code, Message: message}
}

// ExecutionError wraps a failure raised by a strategy while validating or
// executing, including recovered panics. Phase is "validate" or "execute".
type ExecutionError struct {
	Strategy string
	Phase    string
	Err      error
	Stack    string
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("strategy %s: %s: %v", e.Strategy, e.Phase, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// StackTrace returns the stack captured at the failure point, if any.
// The trace package picks this up when recording the error entry.
func (e *ExecutionError) StackTrace() string { return e.Stack }

// TimeoutError reports that Execute did not finish within the configured
// timeout. The strategy goroutine may still be running; its eventual result
// is discarded.
type TimeoutError struct {
	Strategy string
	Timeout  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("strategy %s: execution exceeded timeout of %s", e.Strategy, e.Timeout)
}
