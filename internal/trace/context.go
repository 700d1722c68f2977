package trace

import "context"

type ctxKey uint8

const (
	tracerKey ctxKey = iota
	spanKey
)

// FromContext returns the tracer attached to ctx, or Nop.
func FromContext(ctx context.Context) Tracer {
	if ctx != nil {
		if t, ok := ctx.Value(tracerKey).(Tracer); ok {
			return t
		}
	}
	return Nop
}

// WithTracer attaches t to ctx; a nil t attaches Nop.
func WithTracer(ctx context.Context, t Tracer) context.Context {
	if t == nil {
		t = Nop
	}
	return context.WithValue(ctx, tracerKey, t)
}

// SpanContext is what children need to know about their enclosing span.
type SpanContext struct {
	SpanID uint64
	Lane   uint64
}

// CurrentSpan returns the span context of ctx, zero when there is none.
func CurrentSpan(ctx context.Context) SpanContext {
	if ctx != nil {
		if sc, ok := ctx.Value(spanKey).(SpanContext); ok {
			return sc
		}
	}
	return SpanContext{}
}

// WithSpanContext attaches sc to ctx.
func WithSpanContext(ctx context.Context, sc SpanContext) context.Context {
	return context.WithValue(ctx, spanKey, sc)
}

// WithLane marks ctx as belonging to batch slot lane. Spans started from
// the returned context carry the lane.
func WithLane(ctx context.Context, lane uint64) context.Context {
	sc := CurrentSpan(ctx)
	sc.Lane = lane
	return WithSpanContext(ctx, sc)
}

// StartSpan opens a span on t as a child of the span in ctx and returns a
// context for its children. A nil t uses the tracer of ctx.
func StartSpan(ctx context.Context, t Tracer, scope Scope, name string) (context.Context, *Span) {
	if t == nil {
		t = FromContext(ctx)
	}
	parent := CurrentSpan(ctx)
	s := begin(t, scope, name, parent)
	if s.tracer == nil {
		return ctx, s
	}
	return WithSpanContext(ctx, s.Context()), s
}
