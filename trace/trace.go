// Package trace records the audit trail of a single strategy execution:
// the decisions made along the way, the metrics observed, and the errors
// and warnings encountered. A Trace is safe for concurrent use and exports
// either structured Data (loss-free, JSON round-trippable) or markdown.
package trace

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MetricTotalDuration is recorded automatically by Complete.
const MetricTotalDuration = "total_duration_ms"

// Decision is one recorded decision point.
type Decision struct {
	ID          uuid.UUID      `json:"id"`
	Timestamp   time.Time      `json:"timestamp"`
	Category    string         `json:"category"`
	Description string         `json:"description"`
	Context     map[string]any `json:"context"`
}

// ErrorEntry is one recorded error. Category is the Go type name of the
// error; Stack is populated only when the error itself carries one.
type ErrorEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Category  string         `json:"category"`
	Message   string         `json:"message"`
	Stack     string         `json:"stack,omitempty"`
	Context   map[string]any `json:"context"`
}

// Warning is one recorded warning. Warnings accumulate separately from
// errors and never affect execution outcome.
type Warning struct {
	Timestamp time.Time      `json:"timestamp"`
	Message   string         `json:"message"`
	Context   map[string]any `json:"context"`
}

// Summary is the entry-count rollup included in every export.
type Summary struct {
	TotalDecisions int `json:"total_decisions"`
	TotalErrors    int `json:"total_errors"`
	TotalWarnings  int `json:"total_warnings"`
}

// Data is the structured export of a Trace. Every slice and map is a
// defensive copy — mutating a Data never mutates the Trace it came from.
type Data struct {
	ExecutionID     uuid.UUID          `json:"execution_id"`
	StrategyName    string             `json:"strategy_name"`
	StrategyVersion string             `json:"strategy_version"`
	StartedAt       time.Time          `json:"started_at"`
	CompletedAt     *time.Time         `json:"completed_at,omitempty"`
	Decisions       []Decision         `json:"decisions"`
	Metrics         map[string]float64 `json:"metrics"`
	Errors          []ErrorEntry       `json:"errors"`
	Warnings        []Warning          `json:"warnings"`
	Summary         Summary            `json:"summary"`
}

// Trace accumulates the audit record of one execution. Construct with New.
type Trace struct {
	mu          sync.Mutex
	executionID uuid.UUID
	name        string
	version     string
	startedAt   time.Time
	completedAt *time.Time
	decisions   []Decision
	metrics     map[string]float64
	errors      []ErrorEntry
	warnings    []Warning
	recording   bool
}

// Option configures a Trace at construction.
type Option func(*Trace)

// WithStartTime overrides the start instant (defaults to now).
func WithStartTime(t time.Time) Option {
	return func(tr *Trace) { tr.startedAt = t.UTC() }
}

// WithRecording toggles entry recording. A non-recording trace still has an
// execution id, a duration, and a valid (empty) snapshot; RecordDecision,
// RecordError and RecordWarning become no-ops. Metrics are always kept so
// Complete can record the total duration either way.
func WithRecording(enabled bool) Option {
	return func(tr *Trace) { tr.recording = enabled }
}

// New creates a Trace owned by the named strategy. The execution id is
// generated here and never changes.
func New(name, version string, opts ...Option) *Trace {
	t := &Trace{
		executionID: uuid.New(),
		name:        name,
		version:     version,
		startedAt:   time.Now().UTC(),
		metrics:     make(map[string]float64),
		recording:   true,
	}
	for _, fn := range opts {
		fn(t)
	}
	return t
}

// FromData rebuilds a live Trace from a structured export, e.g. one that
// crossed a process boundary inside a handoff. The rebuilt trace keeps the
// original execution id and timestamps and accepts further entries.
func FromData(d Data) *Trace {
	t := &Trace{
		executionID: d.ExecutionID,
		name:        d.StrategyName,
		version:     d.StrategyVersion,
		startedAt:   d.StartedAt.UTC(),
		decisions:   copyDecisions(d.Decisions),
		metrics:     copyMetrics(d.Metrics),
		errors:      copyErrors(d.Errors),
		warnings:    copyWarnings(d.Warnings),
		recording:   true,
	}
	if d.CompletedAt != nil {
		at := d.CompletedAt.UTC()
		t.completedAt = &at
	}
	return t
}

// ExecutionID returns the generated id for this execution.
func (t *Trace) ExecutionID() uuid.UUID { return t.executionID }

// StrategyName returns the owning strategy's name.
func (t *Trace) StrategyName() string { return t.name }

// StrategyVersion returns the owning strategy's version.
func (t *Trace) StrategyVersion() string { return t.version }

// RecordDecision appends a decision entry and returns it as stored.
// A nil context is stored as an empty map; the context is sanitized so the
// stored entry is always JSON-representable.
func (t *Trace) RecordDecision(category, description string, context map[string]any) Decision {
	d := Decision{
		ID:          uuid.New(),
		Timestamp:   time.Now().UTC(),
		Category:    category,
		Description: description,
		Context:     Sanitize(context),
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.recording {
		return d
	}
	t.decisions = append(t.decisions, d)
	return d
}

// RecordMetric sets a named metric, overwriting any previous value.
func (t *Trace) RecordMetric(name string, value float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.metrics[name] = value
}

// IncrementMetric adds delta to a named metric, initialising it from zero
// when absent. Negative deltas are legal.
func (t *Trace) IncrementMetric(name string, delta float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.metrics[name] += delta
}

// Increment is IncrementMetric with a delta of one.
func (t *Trace) Increment(name string) {
	t.IncrementMetric(name, 1)
}

// RecordError appends an error entry. The entry's category is the error's
// Go type name; a stack trace is attached when the error exposes one via a
// StackTrace() string method.
func (t *Trace) RecordError(err error, context map[string]any) {
	if err == nil {
		return
	}
	e := ErrorEntry{
		Timestamp: time.Now().UTC(),
		Category:  errorCategory(err),
		Message:   err.Error(),
		Context:   Sanitize(context),
	}
	if st, ok := err.(interface{ StackTrace() string }); ok {
		e.Stack = st.StackTrace()
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.recording {
		return
	}
	t.errors = append(t.errors, e)
}

// RecordWarning appends a warning entry.
func (t *Trace) RecordWarning(message string, context map[string]any) {
	w := Warning{
		Timestamp: time.Now().UTC(),
		Message:   message,
		Context:   Sanitize(context),
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.recording {
		return
	}
	t.warnings = append(t.warnings, w)
}

// Complete marks the trace finished and records the total_duration_ms
// metric. Complete is idempotent: the first call wins and later calls are
// no-ops, so the completion timestamp and duration never move once set.
func (t *Trace) Complete() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.completedAt != nil {
		return
	}
	now := time.Now().UTC()
	t.completedAt = &now
	t.metrics[MetricTotalDuration] = float64(now.Sub(t.startedAt).Milliseconds())
}

// Completed reports whether Complete has been called.
func (t *Trace) Completed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.completedAt != nil
}

// DurationMs returns elapsed wall time in milliseconds: up to the
// completion instant once complete, otherwise up to now. The value is
// stable after Complete.
func (t *Trace) DurationMs() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	end := time.Now().UTC()
	if t.completedAt != nil {
		end = *t.completedAt
	}
	return end.Sub(t.startedAt).Milliseconds()
}

// DecisionsByCategory returns the decisions whose category matches exactly
// (case-sensitive), in recording order.
func (t *Trace) DecisionsByCategory(category string) []Decision {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []Decision
	for _, d := range t.decisions {
		if d.Category == category {
			out = append(out, copyDecision(d))
		}
	}
	return out
}

// Summary returns the current entry counts.
func (t *Trace) Summary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.summaryLocked()
}

func (t *Trace) summaryLocked() Summary {
	return Summary{
		TotalDecisions: len(t.decisions),
		TotalErrors:    len(t.errors),
		TotalWarnings:  len(t.warnings),
	}
}

// Snapshot returns the structured export. All slices and maps are copies;
// the trace may keep recording after a snapshot is taken.
func (t *Trace) Snapshot() Data {
	t.mu.Lock()
	defer t.mu.Unlock()

	d := Data{
		ExecutionID:     t.executionID,
		StrategyName:    t.name,
		StrategyVersion: t.version,
		StartedAt:       t.startedAt,
		Decisions:       copyDecisions(t.decisions),
		Metrics:         copyMetrics(t.metrics),
		Errors:          copyErrors(t.errors),
		Warnings:        copyWarnings(t.warnings),
		Summary:         t.summaryLocked(),
	}
	if t.completedAt != nil {
		at := *t.completedAt
		d.CompletedAt = &at
	}
	return d
}

// Clone returns a deep copy of the export. Handoff packages embed clones so
// the sender's trace and the package contents can never alias each other.
func (d Data) Clone() Data {
	out := d
	if d.CompletedAt != nil {
		at := *d.CompletedAt
		out.CompletedAt = &at
	}
	out.Decisions = copyDecisions(d.Decisions)
	out.Metrics = copyMetrics(d.Metrics)
	out.Errors = copyErrors(d.Errors)
	out.Warnings = copyWarnings(d.Warnings)
	return out
}

// errorCategory derives the entry category from the error's dynamic type,
// with the pointer marker stripped ("*strategy.TimeoutError" →
// "strategy.TimeoutError").
func errorCategory(err error) string {
	name := fmt.Sprintf("%T", err)
	for len(name) > 0 && name[0] == '*' {
		name = name[1:]
	}
	return name
}

// ── Copy helpers ───────────────────────────────────────────────────────────────

func copyDecision(d Decision) Decision {
	d.Context = copyMap(d.Context)
	return d
}

func copyDecisions(in []Decision) []Decision {
	out := make([]Decision, len(in))
	for i, d := range in {
		out[i] = copyDecision(d)
	}
	return out
}

func copyErrors(in []ErrorEntry) []ErrorEntry {
	out := make([]ErrorEntry, len(in))
	for i, e := range in {
		e.Context = copyMap(e.Context)
		out[i] = e
	}
	return out
}

func copyWarnings(in []Warning) []Warning {
	out := make([]Warning, len(in))
	for i, w := range in {
		w.Context = copyMap(w.Context)
		out[i] = w
	}
	return out
}

func copyMetrics(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// copyMap deep-copies a sanitized context. Sanitized values only contain
// scalars, []any and map[string]any, so the walk is total.
func copyMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return copyMap(val)
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = copyValue(e)
		}
		return out
	default:
		return v
	}
}
