package trace

import "context"

type ctxKey struct{}

// NewContext returns a context carrying the trace. The executor installs
// the live trace before invoking a strategy so the strategy can record
// domain decisions without threading the trace through its own signatures.
func NewContext(ctx context.Context, t *Trace) context.Context {
	return context.WithValue(ctx, ctxKey{}, t)
}

// FromContext returns the trace carried by ctx. When none is present it
// returns a fresh non-recording trace, so call sites never need a nil
// check — recording onto the fallback is a safe no-op.
func FromContext(ctx context.Context) *Trace {
	if t, ok := ctx.Value(ctxKey{}).(*Trace); ok && t != nil {
		return t
	}
	return New("", "", WithRecording(false))
}
