package strategy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"runtime/debug"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/ashita-ai/shikko/trace"
)

var (
	tracer   = otel.Tracer("shikko/strategy")
	runMeter = otel.GetMeterProvider().Meter("shikko/strategy")
)

// categoryExecution marks the trace entries the executor itself records.
const categoryExecution = "execution"

// Executor runs one strategy under the uniform execution contract.
// Construct with NewExecutor; the zero value is not usable.
type Executor[I, O any] struct {
	strategy Strategy[I, O]
	opts     resolvedOptions
	logger   *slog.Logger
}

// NewExecutor wraps a strategy with the execution runtime. Defaults:
// tracing on, fail-fast off, 30s timeout, verbose off.
func NewExecutor[I, O any](s Strategy[I, O], opts ...Option) *Executor[I, O] {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor[I, O]{strategy: s, opts: o, logger: logger}
}

// Strategy returns the wrapped strategy.
func (e *Executor[I, O]) Strategy() Strategy[I, O] { return e.strategy }

// Run executes one input through the full contract: a fresh trace, a start
// entry, validation (never Execute on invalid input), then Execute raced
// against the configured timeout. Every outcome comes back as a Result —
// Run never panics and never returns a Go error directly. Overlapping calls
// are independent; each gets its own trace.
func (e *Executor[I, O]) Run(ctx context.Context, input I) (res Result[O]) {
	started := time.Now()
	tr := trace.New(e.strategy.Name(), e.strategy.Version(), trace.WithRecording(e.opts.traceEnabled))

	ctx, span := tracer.Start(ctx, "strategy.run",
		oteltrace.WithAttributes(
			attribute.String("strategy.name", e.strategy.Name()),
			attribute.String("strategy.version", e.strategy.Version()),
		))
	defer span.End()

	phase := "validate"
	defer func() {
		if r := recover(); r != nil {
			err := &ExecutionError{
				Strategy: e.strategy.Name(),
				Phase:    phase,
				Err:      fmt.Errorf("panic: %v", r),
				Stack:    string(debug.Stack()),
			}
			tr.RecordError(err, map[string]any{"phase": phase})
			res = e.failure(ctx, span, tr, CodeExecutionError, err, nil)
		}
	}()

	startCtx := map[string]any{
		"strategy": e.strategy.Name(),
		"version":  e.strategy.Version(),
		"config":   e.opts.config(),
	}
	addShape(startCtx, "input", input)
	tr.RecordDecision(categoryExecution, "run started", startCtx)

	if e.opts.verbose {
		e.logger.Debug("strategy run started",
			"strategy", e.strategy.Name(),
			"execution_id", tr.ExecutionID(),
		)
	}

	// ── Validation ─────────────────────────────────────────────────────────────

	vr := e.strategy.Validate(input)

	for _, w := range vr.Warnings {
		tr.RecordWarning(w.Message, warningContext(w))
	}

	if !vr.Valid {
		errs := vr.Errors
		// Fail-fast truncates errors to the first; warnings are already
		// recorded in full above.
		if e.opts.failFast && len(errs) > 1 {
			errs = errs[:1]
		}
		for _, fe := range errs {
			tr.RecordError(fe, fe.Context)
		}
		if e.opts.verbose {
			e.logger.Debug("validation failed",
				"strategy", e.strategy.Name(),
				"errors", len(errs),
				"warnings", len(vr.Warnings),
			)
		}
		return e.failure(ctx, span, tr, CodeValidationFailed, validationError(e.strategy.Name(), errs), errs)
	}

	if e.opts.verbose {
		e.logger.Debug("validation passed",
			"strategy", e.strategy.Name(),
			"warnings", len(vr.Warnings),
		)
	}

	// ── Execution ──────────────────────────────────────────────────────────────

	phase = "execute"
	execCtx := ctx
	var cancel context.CancelFunc
	if e.opts.timeout > 0 {
		execCtx, cancel = context.WithTimeout(ctx, e.opts.timeout)
	} else {
		execCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	type outcome struct {
		output O
		err    error
	}
	// Buffered so a strategy that finishes after the deadline can still
	// send its result and exit instead of leaking.
	ch := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: &ExecutionError{
					Strategy: e.strategy.Name(),
					Phase:    "execute",
					Err:      fmt.Errorf("panic: %v", r),
					Stack:    string(debug.Stack()),
				}}
			}
		}()
		out, err := e.strategy.Execute(trace.NewContext(execCtx, tr), input)
		ch <- outcome{output: out, err: err}
	}()

	select {
	case oc := <-ch:
		if oc.err != nil {
			return e.executeFailure(ctx, span, tr, oc.err)
		}
		succCtx := map[string]any{"elapsed_ms": time.Since(started).Milliseconds()}
		addShape(succCtx, "output", oc.output)
		tr.RecordDecision(categoryExecution, "run succeeded", succCtx)
		if e.opts.verbose {
			e.logger.Debug("strategy run succeeded",
				"strategy", e.strategy.Name(),
				"execution_id", tr.ExecutionID(),
			)
		}
		snap, ms := e.finish(ctx, span, tr, "")
		return Result[O]{OK: true, Output: oc.output, Trace: &snap, DurationMs: ms}

	case <-execCtx.Done():
		if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
			return e.timeoutFailure(ctx, span, tr)
		}
		return e.canceledFailure(ctx, span, tr, execCtx.Err())
	}
}

// executeFailure classifies a non-nil error returned by Execute. A strategy
// that cooperatively honoured the deadline reports the same outcome as one
// the select caught mid-flight.
func (e *Executor[I, O]) executeFailure(ctx context.Context, span oteltrace.Span, tr *trace.Trace, err error) Result[O] {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return e.timeoutFailure(ctx, span, tr)
	case errors.Is(err, context.Canceled):
		return e.canceledFailure(ctx, span, tr, err)
	}

	var ee *ExecutionError
	if !errors.As(err, &ee) {
		err = &ExecutionError{Strategy: e.strategy.Name(), Phase: "execute", Err: err}
	}
	tr.RecordError(err, map[string]any{"phase": "execute"})
	return e.failure(ctx, span, tr, CodeExecutionError, err, nil)
}

func (e *Executor[I, O]) timeoutFailure(ctx context.Context, span oteltrace.Span, tr *trace.Trace) Result[O] {
	terr := &TimeoutError{Strategy: e.strategy.Name(), Timeout: e.opts.timeout}
	tr.RecordError(terr, map[string]any{
		"phase":      "execute",
		"timeout_ms": e.opts.timeout.Milliseconds(),
	})
	return e.failure(ctx, span, tr, CodeTimeout, terr, nil)
}

func (e *Executor[I, O]) canceledFailure(ctx context.Context, span oteltrace.Span, tr *trace.Trace, cause error) Result[O] {
	err := fmt.Errorf("strategy %s: run canceled: %w", e.strategy.Name(), cause)
	tr.RecordError(err, map[string]any{"phase": "execute"})
	return e.failure(ctx, span, tr, CodeCanceled, err, nil)
}

func (e *Executor[I, O]) failure(ctx context.Context, span oteltrace.Span, tr *trace.Trace, code string, err error, fieldErrs []*FieldError) Result[O] {
	if e.opts.verbose {
		e.logger.Debug("strategy run failed",
			"strategy", e.strategy.Name(),
			"code", code,
			"error", err,
		)
	}
	snap, ms := e.finish(ctx, span, tr, code)
	return Result[O]{OK: false, Code: code, Err: err, Errors: fieldErrs, Trace: &snap, DurationMs: ms}
}

// finish completes the trace and emits the run telemetry. Every exit path
// funnels through here, so the timer is recorded exactly once per Run.
func (e *Executor[I, O]) finish(ctx context.Context, span oteltrace.Span, tr *trace.Trace, code string) (trace.Data, int64) {
	tr.Complete()
	snap := tr.Snapshot()
	ms := tr.DurationMs()

	outcome := code
	if outcome == "" {
		outcome = "success"
	}
	span.SetAttributes(attribute.String("strategy.outcome", outcome))

	attrs := otelmetric.WithAttributes(
		attribute.String("strategy", e.strategy.Name()),
		attribute.String("outcome", outcome),
	)
	if counter, err := runMeter.Int64Counter("shikko.runs"); err == nil {
		counter.Add(ctx, 1, attrs)
	}
	if hist, err := runMeter.Float64Histogram("shikko.run.duration",
		otelmetric.WithUnit("ms")); err == nil {
		hist.Record(ctx, float64(ms), attrs)
	}

	return snap, ms
}

// warningContext folds a warning's field and code into its trace context.
// Returns nil when the warning carries nothing beyond its message.
func warningContext(w *FieldWarning) map[string]any {
	ctx := make(map[string]any, len(w.Context)+2)
	for k, v := range w.Context {
		ctx[k] = v
	}
	if w.Field != "" {
		ctx["field"] = w.Field
	}
	if w.Code != "" {
		ctx["code"] = w.Code
	}
	if len(ctx) == 0 {
		return nil
	}
	return ctx
}

func validationError(name string, errs []*FieldError) error {
	if len(errs) == 0 {
		return fmt.Errorf("strategy %s: validation failed", name)
	}
	joined := make([]error, len(errs))
	for i, fe := range errs {
		joined[i] = fe
	}
	return fmt.Errorf("strategy %s: validation failed: %w", name, errors.Join(joined...))
}

// addShape records the shallow shape of a value under either key+"_keys"
// (maps and structs) or key+"_type" (everything else). Raw values never
// enter the trace through here.
func addShape(dst map[string]any, key string, v any) {
	keys, label := shapeOf(v)
	if label != "" {
		dst[key+"_type"] = label
		return
	}
	dst[key+"_keys"] = keys
}

func shapeOf(v any) (keys []string, typeLabel string) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, fmt.Sprintf("%T", v)
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		keys = make([]string, 0, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			keys = append(keys, fmt.Sprintf("%v", iter.Key().Interface()))
		}
		sort.Strings(keys)
		return keys, ""
	case reflect.Struct:
		t := rv.Type()
		keys = make([]string, 0, t.NumField())
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			name := f.Name
			if tag, ok := f.Tag.Lookup("json"); ok {
				tagName, _, _ := strings.Cut(tag, ",")
				if tagName == "-" {
					continue
				}
				if tagName != "" {
					name = tagName
				}
			}
			keys = append(keys, name)
		}
		return keys, ""
	default:
		if !rv.IsValid() {
			return nil, "nil"
		}
		return nil, rv.Type().String()
	}
}
