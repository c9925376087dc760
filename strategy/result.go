package strategy

import "github.com/ashita-ai/shikko/trace"

// Outcome codes carried by failed Results. Wire-stable: the HTTP and MCP
// surfaces expose them verbatim.
const (
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeExecutionError   = "EXECUTION_ERROR"
	CodeTimeout          = "TIMEOUT"
	CodeCanceled         = "CANCELED"
)

// Result is the uniform outcome of Executor.Run. Exactly one of two shapes:
// OK with Output set, or not OK with Code and Err set (plus Errors when the
// failure was validation). The trace snapshot and duration are present
// either way.
type Result[O any] struct {
	OK         bool          `json:"ok"`
	Output     O             `json:"output,omitempty"`
	Code       string        `json:"code,omitempty"`
	Err        error         `json:"-"`
	Errors     []*FieldError `json:"errors,omitempty"`
	Trace      *trace.Data   `json:"trace,omitempty"`
	DurationMs int64         `json:"duration_ms"`
}

// Unwrap returns the failure as a plain error (nil on success), so callers
// can use errors.Is/As against the taxonomy types.
func (r Result[O]) Unwrap() error { return r.Err }
