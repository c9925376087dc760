package strategy

import (
	"log/slog"
	"time"
)

// DefaultTimeout bounds Execute when no WithTimeout option is given.
const DefaultTimeout = 30 * time.Second

// Option configures an Executor.
type Option func(*resolvedOptions)

// resolvedOptions holds the effective execution config after applying
// defaults. Unexported — callers use the With* functions.
type resolvedOptions struct {
	traceEnabled bool
	failFast     bool
	timeout      time.Duration
	verbose      bool
	logger       *slog.Logger
}

func defaultOptions() resolvedOptions {
	return resolvedOptions{
		traceEnabled: true,
		failFast:     false,
		timeout:      DefaultTimeout,
		verbose:      false,
	}
}

// config renders the effective options for the run's start entry. Raw input
// values never appear here.
func (o resolvedOptions) config() map[string]any {
	return map[string]any{
		"trace_enabled": o.traceEnabled,
		"fail_fast":     o.failFast,
		"timeout_ms":    o.timeout.Milliseconds(),
		"verbose":       o.verbose,
	}
}

// WithTrace toggles trace entry recording (default on). Disabled runs still
// carry an execution id and duration; they just skip the entry log.
func WithTrace(enabled bool) Option {
	return func(o *resolvedOptions) { o.traceEnabled = enabled }
}

// WithFailFast stops validation reporting at the first error (default off).
// Only the error list is truncated — warnings always come through whole.
func WithFailFast(enabled bool) Option {
	return func(o *resolvedOptions) { o.failFast = enabled }
}

// WithTimeout bounds Execute (default 30s). Zero or negative disables the
// deadline entirely.
func WithTimeout(d time.Duration) Option {
	return func(o *resolvedOptions) { o.timeout = d }
}

// WithVerbose emits debug-level log lines for each run phase (default off).
func WithVerbose(enabled bool) Option {
	return func(o *resolvedOptions) { o.verbose = enabled }
}

// WithLogger sets the structured logger for the executor.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}
