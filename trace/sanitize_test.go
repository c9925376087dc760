package trace_test

import (
	"encoding/json"
	"errors"
	"math"
	"math/big"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/shikko/trace"
)

func TestSanitize_PassThroughValues(t *testing.T) {
	got := trace.Sanitize(map[string]any{
		"string": "hello",
		"int":    42,
		"float":  3.14,
		"bool":   true,
		"nil":    nil,
		"nested": map[string]any{"inner": []any{"a", "b"}},
	})

	assert.Equal(t, "hello", got["string"])
	assert.Equal(t, float64(42), got["int"])
	assert.Equal(t, 3.14, got["float"])
	assert.Equal(t, true, got["bool"])
	assert.Nil(t, got["nil"])
	assert.Equal(t, map[string]any{"inner": []any{"a", "b"}}, got["nested"])
}

func TestSanitize_NilMapGivesEmptyMap(t *testing.T) {
	got := trace.Sanitize(nil)
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestSanitize_FunctionBecomesTypeString(t *testing.T) {
	got := trace.Sanitize(map[string]any{
		"callback": func(int) string { return "" },
		"channel":  make(chan int),
	})

	assert.Equal(t, "func(int) string", got["callback"])
	assert.Equal(t, "chan int", got["channel"])
}

func TestSanitize_TimeBecomesRFC3339(t *testing.T) {
	at := time.Date(2026, 8, 23, 10, 30, 0, 0, time.UTC)
	got := trace.Sanitize(map[string]any{
		"at":  at,
		"ptr": &at,
	})

	assert.Equal(t, "2026-08-23T10:30:00Z", got["at"])
	assert.Equal(t, "2026-08-23T10:30:00Z", got["ptr"])
}

func TestSanitize_BigIntBecomesDecimalString(t *testing.T) {
	huge, ok := new(big.Int).SetString("123456789012345678901234567890", 10)
	require.True(t, ok)

	got := trace.Sanitize(map[string]any{"huge": huge})

	assert.Equal(t, "123456789012345678901234567890", got["huge"])
}

func TestSanitize_CycleBecomesMarker(t *testing.T) {
	m := map[string]any{"name": "root"}
	m["self"] = m

	got := trace.Sanitize(map[string]any{"payload": m})

	payload, ok := got["payload"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "root", payload["name"])
	assert.Equal(t, "[Circular]", payload["self"])
}

func TestSanitize_SliceCycle(t *testing.T) {
	s := make([]any, 1)
	s[0] = s

	got := trace.Sanitize(map[string]any{"list": s})

	list, ok := got["list"].([]any)
	require.True(t, ok)
	assert.Equal(t, "[Circular]", list[0])
}

func TestSanitize_SharedSiblingIsNotACycle(t *testing.T) {
	shared := map[string]any{"v": 1}

	got := trace.Sanitize(map[string]any{"a": shared, "b": shared})

	want := map[string]any{"v": float64(1)}
	assert.Equal(t, want, got["a"])
	assert.Equal(t, want, got["b"])
}

func TestSanitize_ErrorBecomesMessage(t *testing.T) {
	got := trace.Sanitize(map[string]any{"cause": errors.New("underlying failure")})

	assert.Equal(t, "underlying failure", got["cause"])
}

func TestSanitize_TextMarshalerKeepsTextForm(t *testing.T) {
	id := uuid.MustParse("a2f08ae2-98e5-4b8a-bb24-9e6e21a35dca")

	got := trace.Sanitize(map[string]any{"id": id})

	assert.Equal(t, "a2f08ae2-98e5-4b8a-bb24-9e6e21a35dca", got["id"])
}

func TestSanitize_StructWalksExportedFields(t *testing.T) {
	type artifact struct {
		Name   string `json:"name"`
		Size   int    `json:"size"`
		hidden string
		Skip   string `json:"-"`
	}

	got := trace.Sanitize(map[string]any{
		"artifact": artifact{Name: "report.md", Size: 1024, hidden: "x", Skip: "y"},
	})

	want := map[string]any{"name": "report.md", "size": float64(1024)}
	assert.Equal(t, want, got["artifact"])
}

func TestSanitize_NonFiniteFloatsBecomeStrings(t *testing.T) {
	got := trace.Sanitize(map[string]any{
		"nan": math.NaN(),
		"inf": math.Inf(1),
	})

	assert.Equal(t, "NaN", got["nan"])
	assert.Equal(t, "+Inf", got["inf"])
}

func TestSanitize_BytesBecomeString(t *testing.T) {
	got := trace.Sanitize(map[string]any{"raw": []byte("payload")})

	assert.Equal(t, "payload", got["raw"])
}

func TestSanitize_NonStringMapKeys(t *testing.T) {
	got := trace.Sanitize(map[string]any{"counts": map[int]string{1: "one"}})

	counts, ok := got["counts"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "one", counts["1"])
}

func TestSanitize_OutputAlwaysMarshals(t *testing.T) {
	// Everything the sanitizer emits must survive encoding/json, including
	// inputs json.Marshal itself would reject.
	m := map[string]any{"name": "root"}
	m["self"] = m

	got := trace.Sanitize(map[string]any{
		"fn":    func() {},
		"ch":    make(chan struct{}),
		"nan":   math.NaN(),
		"cycle": m,
		"time":  time.Now(),
		"big":   big.NewInt(7),
	})

	_, err := json.Marshal(got)
	require.NoError(t, err)
}

func TestSanitize_DeepNestingDoesNotPanic(t *testing.T) {
	leaf := map[string]any{}
	root := leaf
	for range 500 {
		root = map[string]any{"child": root}
	}

	assert.NotPanics(t, func() {
		trace.Sanitize(map[string]any{"deep": root})
	})
}
