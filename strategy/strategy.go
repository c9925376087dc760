// Package strategy runs pluggable generation strategies under a uniform
// execution contract: validate first, execute under a deadline, and return
// every outcome — success, invalid input, execution failure, timeout — as a
// Result carrying the execution trace. Run never panics and never returns
// an error; inspect the Result instead.
package strategy

import "context"

// Strategy is the capability contract a generation behavior supplies. It is
// deliberately minimal: identity, synchronous validation, and execution.
// Everything else (tracing, deadlines, fail-fast) belongs to the Executor.
//
// Execute may block; it receives a context that is cancelled when the run
// times out or the caller gives up, and should return early when it can.
// The executor does not wait for a timed-out Execute to return.
type Strategy[I, O any] interface {
	// Name identifies the strategy, e.g. "decision-record".
	Name() string
	// Version is the strategy's own semantic version, independent of the
	// toolkit version.
	Version() string
	// Validate inspects the input and reports whether Execute may run.
	// It must not mutate the input and must not block.
	Validate(input I) ValidationResult
	// Execute produces the output. Returning an error (or panicking)
	// yields an execution-error result; it never crashes the runner.
	Execute(ctx context.Context, input I) (O, error)
}

// ValidationResult is the outcome of Strategy.Validate.
type ValidationResult struct {
	Valid    bool            `json:"valid"`
	Errors   []*FieldError   `json:"errors,omitempty"`
	Warnings []*FieldWarning `json:"warnings,omitempty"`
}

// OK returns a passing validation result.
func OK() ValidationResult {
	return ValidationResult{Valid: true}
}

// Invalid returns a failing validation result with the given errors.
func Invalid(errs ...*FieldError) ValidationResult {
	return ValidationResult{Valid: false, Errors: errs}
}

// AddError appends a validation error and marks the result invalid.
func (r *ValidationResult) AddError(e *FieldError) {
	r.Valid = false
	r.Errors = append(r.Errors, e)
}

// AddWarning appends an advisory warning. Warnings never fail validation
// and are never truncated by fail-fast.
func (r *ValidationResult) AddWarning(w *FieldWarning) {
	r.Warnings = append(r.Warnings, w)
}
