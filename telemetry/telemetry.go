// Package telemetry defines the ambient logging/metrics/tracing ports
// every component in this module logs through (executor.Options.OnLog,
// runner.Options.OnLog, and the aiservice.Options callbacks all accept a
// plain func; components that want structured telemetry instead of a
// callback depend on these interfaces). A no-op set satisfies tests and
// hosts that don't configure observability; the Clue/OTEL adapters wire
// the same ports into goa.design/clue and go.opentelemetry.io/otel,
// mirroring the teacher's own telemetry package.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Logger captures structured logging. The interface is intentionally
// small so tests can provide lightweight stubs.
type Logger interface {
	Debug(ctx context.Context, msg string, keyvals ...any)
	Info(ctx context.Context, msg string, keyvals ...any)
	Warn(ctx context.Context, msg string, keyvals ...any)
	Error(ctx context.Context, msg string, keyvals ...any)
}

// Metrics exposes counter, timer, and gauge helpers.
type Metrics interface {
	IncCounter(name string, value float64, tags ...string)
	RecordTimer(name string, duration time.Duration, tags ...string)
	RecordGauge(name string, value float64, tags ...string)
}

// Tracer abstracts span creation so core code stays agnostic of the
// underlying OpenTelemetry provider.
type Tracer interface {
	Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span)
	Span(ctx context.Context) Span
}

// Span represents an in-flight tracing span.
type Span interface {
	End(opts ...trace.SpanEndOption)
	AddEvent(name string, attrs ...any)
	SetStatus(code codes.Code, description string)
	RecordError(err error, opts ...trace.EventOption)
}

// LogFunc adapts a Logger to the plain func(level, message string,
// details map[string]any) shape executor.Options.OnLog and
// runner.Options.OnLog expect, so hosts that want structured logging
// don't need to hand-roll the adaptation.
func LogFunc(l Logger) func(level, message string, details map[string]any) {
	return func(level, message string, details map[string]any) {
		kvs := make([]any, 0, len(details)*2)
		for k, v := range details {
			kvs = append(kvs, k, v)
		}
		switch level {
		case "debug":
			l.Debug(context.Background(), message, kvs...)
		case "warn":
			l.Warn(context.Background(), message, kvs...)
		case "error":
			l.Error(context.Background(), message, kvs...)
		default:
			l.Info(context.Background(), message, kvs...)
		}
	}
}
