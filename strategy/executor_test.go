package strategy_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/shikko/strategy"
	"github.com/ashita-ai/shikko/trace"
)

// stubStrategy lets each test script validation and execution behavior.
type stubStrategy struct {
	name     string
	version  string
	validate func(in map[string]any) strategy.ValidationResult
	execute  func(ctx context.Context, in map[string]any) (map[string]any, error)
}

func (s *stubStrategy) Name() string {
	if s.name == "" {
		return "stub"
	}
	return s.name
}

func (s *stubStrategy) Version() string {
	if s.version == "" {
		return "1.0.0"
	}
	return s.version
}

func (s *stubStrategy) Validate(in map[string]any) strategy.ValidationResult {
	if s.validate == nil {
		return strategy.OK()
	}
	return s.validate(in)
}

func (s *stubStrategy) Execute(ctx context.Context, in map[string]any) (map[string]any, error) {
	if s.execute == nil {
		return map[string]any{"done": true}, nil
	}
	return s.execute(ctx, in)
}

func TestRun_Success(t *testing.T) {
	e := strategy.NewExecutor[map[string]any, map[string]any](&stubStrategy{
		execute: func(ctx context.Context, in map[string]any) (map[string]any, error) {
			return map[string]any{"body": "generated"}, nil
		},
	})

	res := e.Run(context.Background(), map[string]any{"title": "x"})

	require.True(t, res.OK)
	assert.Equal(t, "generated", res.Output["body"])
	assert.Empty(t, res.Code)
	assert.NoError(t, res.Unwrap())
	assert.GreaterOrEqual(t, res.DurationMs, int64(0))

	require.NotNil(t, res.Trace)
	assert.NotNil(t, res.Trace.CompletedAt)
	require.Len(t, res.Trace.Decisions, 2)
	assert.Equal(t, "execution", res.Trace.Decisions[0].Category)
	assert.Equal(t, "run started", res.Trace.Decisions[0].Description)
	assert.Equal(t, "run succeeded", res.Trace.Decisions[1].Description)
}

func TestRun_FreshTracePerCall(t *testing.T) {
	e := strategy.NewExecutor[map[string]any, map[string]any](&stubStrategy{})

	first := e.Run(context.Background(), nil)
	second := e.Run(context.Background(), nil)

	require.NotNil(t, first.Trace)
	require.NotNil(t, second.Trace)
	assert.NotEqual(t, first.Trace.ExecutionID, second.Trace.ExecutionID)
	assert.Len(t, second.Trace.Decisions, 2, "entries never accumulate across runs")
}

func TestRun_StartEntryRecordsShapeNotValues(t *testing.T) {
	e := strategy.NewExecutor[map[string]any, map[string]any](&stubStrategy{})

	res := e.Run(context.Background(), map[string]any{
		"title":  "public",
		"secret": "hunter2",
	})

	require.True(t, res.OK)
	start := res.Trace.Decisions[0]
	assert.Equal(t, []any{"secret", "title"}, start.Context["input_keys"])

	raw, err := json.Marshal(start.Context)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "hunter2")

	// Config travels with the start entry.
	cfg, ok := start.Context["config"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, cfg["trace_enabled"])
	assert.Equal(t, false, cfg["fail_fast"])
	assert.Equal(t, float64(30000), cfg["timeout_ms"])
}

func TestRun_NonMapInputRecordsTypeLabel(t *testing.T) {
	e := strategy.NewExecutor[string, string](stringStrategy{})

	res := e.Run(context.Background(), "plain input")

	require.True(t, res.OK)
	start := res.Trace.Decisions[0]
	assert.Equal(t, "string", start.Context["input_type"])
	assert.NotContains(t, start.Context, "input_keys")
}

// stringStrategy exercises the executor with non-struct input/output.
type stringStrategy struct{}

func (stringStrategy) Name() string    { return "echo" }
func (stringStrategy) Version() string { return "1.0.0" }
func (stringStrategy) Validate(in string) strategy.ValidationResult {
	if in == "" {
		return strategy.Invalid(strategy.NewFieldError("input", "required", "input must not be empty"))
	}
	return strategy.OK()
}
func (stringStrategy) Execute(ctx context.Context, in string) (string, error) { return in, nil }

func TestRun_InvalidInputNeverExecutes(t *testing.T) {
	executed := false
	e := strategy.NewExecutor[map[string]any, map[string]any](&stubStrategy{
		validate: func(in map[string]any) strategy.ValidationResult {
			return strategy.Invalid(
				strategy.NewFieldError("title", "required", "title must not be empty"),
				strategy.NewFieldError("status", "invalid_enum", "status must be draft or final"),
			)
		},
		execute: func(ctx context.Context, in map[string]any) (map[string]any, error) {
			executed = true
			return nil, nil
		},
	})

	res := e.Run(context.Background(), map[string]any{})

	assert.False(t, executed, "execute must not run on invalid input")
	require.False(t, res.OK)
	assert.Equal(t, strategy.CodeValidationFailed, res.Code)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, "title", res.Errors[0].Field)

	// Each validation error lands in the trace.
	require.NotNil(t, res.Trace)
	assert.Equal(t, 2, res.Trace.Summary.TotalErrors)

	// The failure is inspectable through the taxonomy.
	var fe *strategy.FieldError
	require.ErrorAs(t, res.Unwrap(), &fe)
}

func TestRun_FailFastTruncatesErrorsNotWarnings(t *testing.T) {
	validate := func(in map[string]any) strategy.ValidationResult {
		res := strategy.Invalid(
			strategy.NewFieldError("a", "required", "a is required"),
			strategy.NewFieldError("b", "required", "b is required"),
		)
		res.AddWarning(strategy.NewFieldWarning("", "", "w1"))
		res.AddWarning(strategy.NewFieldWarning("", "", "w2"))
		return res
	}

	fast := strategy.NewExecutor[map[string]any, map[string]any](
		&stubStrategy{validate: validate}, strategy.WithFailFast(true))
	res := fast.Run(context.Background(), nil)

	require.False(t, res.OK)
	assert.Len(t, res.Errors, 1)
	assert.Equal(t, "a", res.Errors[0].Field)
	assert.Equal(t, 1, res.Trace.Summary.TotalErrors)
	assert.Equal(t, 2, res.Trace.Summary.TotalWarnings, "warnings are never truncated")

	slow := strategy.NewExecutor[map[string]any, map[string]any](
		&stubStrategy{validate: validate})
	res = slow.Run(context.Background(), nil)

	assert.Len(t, res.Errors, 2)
	assert.Equal(t, 2, res.Trace.Summary.TotalErrors)
	assert.Equal(t, 2, res.Trace.Summary.TotalWarnings)
}

func TestRun_WarningsRecordedOnValidRuns(t *testing.T) {
	e := strategy.NewExecutor[map[string]any, map[string]any](&stubStrategy{
		validate: func(in map[string]any) strategy.ValidationResult {
			res := strategy.OK()
			res.AddWarning(strategy.NewFieldWarning("input", "short", "input shorter than recommended"))
			return res
		},
	})

	res := e.Run(context.Background(), nil)

	require.True(t, res.OK)
	require.Len(t, res.Trace.Warnings, 1)
	assert.Equal(t, "input shorter than recommended", res.Trace.Warnings[0].Message)
	assert.Equal(t, "input", res.Trace.Warnings[0].Context["field"])
	assert.Equal(t, "short", res.Trace.Warnings[0].Context["code"])
}

func TestRun_ExecuteErrorBecomesResult(t *testing.T) {
	e := strategy.NewExecutor[map[string]any, map[string]any](&stubStrategy{
		execute: func(ctx context.Context, in map[string]any) (map[string]any, error) {
			return nil, errors.New("rendering failed")
		},
	})

	res := e.Run(context.Background(), nil)

	require.False(t, res.OK)
	assert.Equal(t, strategy.CodeExecutionError, res.Code)

	var ee *strategy.ExecutionError
	require.ErrorAs(t, res.Unwrap(), &ee)
	assert.Equal(t, "execute", ee.Phase)
	assert.Equal(t, "stub", ee.Strategy)

	require.NotNil(t, res.Trace)
	require.Len(t, res.Trace.Errors, 1)
	assert.Equal(t, "execute", res.Trace.Errors[0].Context["phase"])
}

func TestRun_ExecutePanicRecovered(t *testing.T) {
	e := strategy.NewExecutor[map[string]any, map[string]any](&stubStrategy{
		execute: func(ctx context.Context, in map[string]any) (map[string]any, error) {
			panic("template exploded")
		},
	})

	var res strategy.Result[map[string]any]
	require.NotPanics(t, func() {
		res = e.Run(context.Background(), nil)
	})

	require.False(t, res.OK)
	assert.Equal(t, strategy.CodeExecutionError, res.Code)

	var ee *strategy.ExecutionError
	require.ErrorAs(t, res.Unwrap(), &ee)
	assert.Contains(t, ee.Err.Error(), "template exploded")
	assert.NotEmpty(t, ee.Stack)

	require.Len(t, res.Trace.Errors, 1)
	assert.NotEmpty(t, res.Trace.Errors[0].Stack)
}

func TestRun_ValidatePanicRecovered(t *testing.T) {
	e := strategy.NewExecutor[map[string]any, map[string]any](&stubStrategy{
		validate: func(in map[string]any) strategy.ValidationResult {
			panic("validator bug")
		},
	})

	var res strategy.Result[map[string]any]
	require.NotPanics(t, func() {
		res = e.Run(context.Background(), nil)
	})

	require.False(t, res.OK)
	assert.Equal(t, strategy.CodeExecutionError, res.Code)

	var ee *strategy.ExecutionError
	require.ErrorAs(t, res.Unwrap(), &ee)
	assert.Equal(t, "validate", ee.Phase)
}

func TestRun_TimeoutBeatsSlowExecute(t *testing.T) {
	e := strategy.NewExecutor[map[string]any, map[string]any](&stubStrategy{
		execute: func(ctx context.Context, in map[string]any) (map[string]any, error) {
			time.Sleep(2 * time.Second)
			return map[string]any{"late": true}, nil
		},
	}, strategy.WithTimeout(50*time.Millisecond))

	started := time.Now()
	res := e.Run(context.Background(), nil)

	assert.Less(t, time.Since(started), time.Second, "run must not wait out the slow execute")
	require.False(t, res.OK)
	assert.Equal(t, strategy.CodeTimeout, res.Code)

	var te *strategy.TimeoutError
	require.ErrorAs(t, res.Unwrap(), &te)
	assert.Equal(t, 50*time.Millisecond, te.Timeout)

	require.Len(t, res.Trace.Errors, 1)
	assert.Equal(t, float64(50), res.Trace.Errors[0].Context["timeout_ms"])
}

func TestRun_CooperativeDeadlineReportsTimeout(t *testing.T) {
	e := strategy.NewExecutor[map[string]any, map[string]any](&stubStrategy{
		execute: func(ctx context.Context, in map[string]any) (map[string]any, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}, strategy.WithTimeout(30*time.Millisecond))

	res := e.Run(context.Background(), nil)

	require.False(t, res.OK)
	assert.Equal(t, strategy.CodeTimeout, res.Code)
}

func TestRun_ZeroTimeoutDisablesDeadline(t *testing.T) {
	e := strategy.NewExecutor[map[string]any, map[string]any](&stubStrategy{},
		strategy.WithTimeout(0))

	res := e.Run(context.Background(), nil)

	require.True(t, res.OK)
	cfg := res.Trace.Decisions[0].Context["config"].(map[string]any)
	assert.Equal(t, float64(0), cfg["timeout_ms"])
}

func TestRun_ParentCancelReportsCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	e := strategy.NewExecutor[map[string]any, map[string]any](&stubStrategy{
		execute: func(ctx context.Context, in map[string]any) (map[string]any, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	})

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	res := e.Run(ctx, nil)

	require.False(t, res.OK)
	assert.Equal(t, strategy.CodeCanceled, res.Code)
	assert.ErrorIs(t, res.Unwrap(), context.Canceled)
}

func TestRun_AmbientTraceReachesStrategy(t *testing.T) {
	e := strategy.NewExecutor[map[string]any, map[string]any](&stubStrategy{
		execute: func(ctx context.Context, in map[string]any) (map[string]any, error) {
			tr := trace.FromContext(ctx)
			tr.RecordDecision("planning", "outline chosen", nil)
			tr.IncrementMetric("sections", 3)
			return map[string]any{}, nil
		},
	})

	res := e.Run(context.Background(), nil)

	require.True(t, res.OK)
	categories := make([]string, 0, len(res.Trace.Decisions))
	for _, d := range res.Trace.Decisions {
		categories = append(categories, d.Category)
	}
	assert.Contains(t, categories, "planning")
	assert.Equal(t, float64(3), res.Trace.Metrics["sections"])
}

func TestRun_TraceDisabledStillReportsDuration(t *testing.T) {
	e := strategy.NewExecutor[map[string]any, map[string]any](&stubStrategy{},
		strategy.WithTrace(false))

	res := e.Run(context.Background(), nil)

	require.True(t, res.OK)
	require.NotNil(t, res.Trace)
	assert.Empty(t, res.Trace.Decisions)
	assert.Contains(t, res.Trace.Metrics, trace.MetricTotalDuration)
	assert.GreaterOrEqual(t, res.DurationMs, int64(0))
}

func TestValidationResult_Builders(t *testing.T) {
	res := strategy.OK()
	assert.True(t, res.Valid)

	res.AddWarning(strategy.NewFieldWarning("", "", "advisory only"))
	assert.True(t, res.Valid, "warnings do not invalidate")

	res.AddError(strategy.NewFieldError("f", "bad", "broken"))
	assert.False(t, res.Valid, "AddError forces invalid")

	inv := strategy.Invalid(strategy.NewFieldError("g", "bad", "broken"))
	assert.False(t, inv.Valid)
	assert.Len(t, inv.Errors, 1)
}
