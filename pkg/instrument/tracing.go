package instrument

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-pulse/pulse/pkg/pulse"
)

// Default tracer name for pulse graphs.
const defaultTracerName = "pulse"

// TracingConfig configures the OpenTelemetry instrumentation.
type TracingConfig struct {
	// TracerName is the name of the tracer (default: "pulse").
	TracerName string

	// TracerProvider supplies the tracer. Default: the global provider.
	TracerProvider trace.TracerProvider

	// TraceFlushes opens a span around each pending-queue drain in
	// addition to the per-effect-run spans. Disabled by default; flushes
	// are frequent and usually only interesting while debugging
	// batching behavior.
	TraceFlushes bool
}

// TracingOption configures the OpenTelemetry instrumentation.
type TracingOption func(*TracingConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) TracingOption {
	return func(c *TracingConfig) {
		c.TracerName = name
	}
}

// WithTracerProvider sets the tracer provider. Configure your SDK
// provider in main() and pass it here, or rely on the global provider.
func WithTracerProvider(tp trace.TracerProvider) TracingOption {
	return func(c *TracingConfig) {
		c.TracerProvider = tp
	}
}

// WithTraceFlushes enables spans around pending-queue drains.
func WithTraceFlushes(enable bool) TracingOption {
	return func(c *TracingConfig) {
		c.TraceFlushes = enable
	}
}

// graphTracing implements pulse.Instrumentation on OpenTelemetry spans.
type graphTracing struct {
	tracer       trace.Tracer
	traceFlushes bool
}

// Tracing creates OpenTelemetry-backed graph instrumentation. Each effect
// run becomes a span; a panicking effect body is recorded as an error on
// the span and re-panics.
//
//	pulse.SetInstrumentation(instrument.Tracing(
//	    instrument.WithTracerName("my-app"),
//	))
func Tracing(opts ...TracingOption) pulse.Instrumentation {
	config := TracingConfig{
		TracerName: defaultTracerName,
	}
	for _, opt := range opts {
		opt(&config)
	}
	tp := config.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &graphTracing{
		tracer:       tp.Tracer(config.TracerName),
		traceFlushes: config.TraceFlushes,
	}
}

func (t *graphTracing) SignalWrite() {}

func (t *graphTracing) MemoRecompute() {}

func (t *graphTracing) EffectRun(run func()) {
	t.spanned("pulse.effect.run", run)
}

func (t *graphTracing) Flush(run func()) {
	if !t.traceFlushes {
		run()
		return
	}
	t.spanned("pulse.flush", run)
}

func (t *graphTracing) OwnerDisposed() {}

// spanned wraps run in a span, recording a panic as an error status
// before letting it propagate. Effect bodies execute synchronously on the
// writing goroutine, so the span parent comes from the background context
// rather than a request context the graph never sees.
func (t *graphTracing) spanned(name string, run func()) {
	_, span := t.tracer.Start(context.Background(), name)
	defer span.End()
	defer func() {
		if r := recover(); r != nil {
			err, ok := r.(error)
			if !ok {
				err = fmt.Errorf("panic: %v", r)
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			panic(r)
		}
	}()
	run()
}

// Combine fans one Instrumentation out to several backends. Wrapping
// hooks nest in argument order: the first argument's wrapper is
// outermost.
func Combine(backends ...pulse.Instrumentation) pulse.Instrumentation {
	return combined(backends)
}

type combined []pulse.Instrumentation

func (c combined) SignalWrite() {
	for _, b := range c {
		b.SignalWrite()
	}
}

func (c combined) MemoRecompute() {
	for _, b := range c {
		b.MemoRecompute()
	}
}

func (c combined) EffectRun(run func()) {
	c.wrap(0, pulse.Instrumentation.EffectRun, run)
}

func (c combined) Flush(run func()) {
	c.wrap(0, pulse.Instrumentation.Flush, run)
}

func (c combined) OwnerDisposed() {
	for _, b := range c {
		b.OwnerDisposed()
	}
}

func (c combined) wrap(i int, hook func(pulse.Instrumentation, func()), run func()) {
	if i >= len(c) {
		run()
		return
	}
	hook(c[i], func() {
		c.wrap(i+1, hook, run)
	})
}
