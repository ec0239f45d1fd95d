package observability

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Tracer wraps an OTel TracerProvider with the span helpers the mission,
// pattern, and executor packages call (grounded on hector's
// pkg/observability/tracer.go, with the otlpgrpc exporter swapped for
// stdouttrace — the only trace exporter this module's go.mod carries).
type Tracer struct {
	provider      *sdktrace.TracerProvider
	tracer        trace.Tracer
	debugExporter *DebugExporter
}

// TracerOption configures optional Tracer behavior.
type TracerOption func(*tracerOptions)

type tracerOptions struct {
	debugExporter *DebugExporter
	writer        io.Writer
}

// WithDebugExporter attaches an in-memory span exporter for the Mission
// Control API's trace-inspection endpoints.
func WithDebugExporter(d *DebugExporter) TracerOption {
	return func(o *tracerOptions) { o.debugExporter = d }
}

// WithWriter overrides the stdouttrace destination (defaults to stdout);
// tests use this to capture span output without touching the console.
func WithWriter(w io.Writer) TracerOption {
	return func(o *tracerOptions) { o.writer = w }
}

// NewTracer builds a Tracer from TracingConfig. Returns nil, nil if tracing
// is disabled.
func NewTracer(ctx context.Context, cfg *TracingConfig, opts ...TracerOption) (*Tracer, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	var o tracerOptions
	for _, opt := range opts {
		opt(&o)
	}

	exporterOpts := []stdouttrace.Option{stdouttrace.WithPrettyPrint()}
	if o.writer != nil {
		exporterOpts = append(exporterOpts, stdouttrace.WithWriter(o.writer))
	}
	exporter, err := stdouttrace.New(exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("observability: create stdout trace exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(cfg.ServiceName),
	))
	if err != nil {
		return nil, fmt.Errorf("observability: build resource: %w", err)
	}

	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SamplingRate)),
		sdktrace.WithResource(res),
	}

	if o.debugExporter != nil {
		tpOpts = append(tpOpts, sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(o.debugExporter)))
	}

	tp := sdktrace.NewTracerProvider(tpOpts...)
	otel.SetTracerProvider(tp)

	return &Tracer{
		provider:      tp,
		tracer:        tp.Tracer(cfg.ServiceName),
		debugExporter: o.debugExporter,
	}, nil
}

// Start begins a generic span.
func (t *Tracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if t == nil {
		return ctx, noopSpan()
	}
	return t.tracer.Start(ctx, name, opts...)
}

// StartMissionRun starts the span wrapping run_phases for one mission.
func (t *Tracer) StartMissionRun(ctx context.Context, missionID string) (context.Context, trace.Span) {
	return t.Start(ctx, SpanMissionRun, trace.WithAttributes(attribute.String(AttrMissionID, missionID)))
}

// StartPatternRun starts the span wrapping one pattern execution.
func (t *Tracer) StartPatternRun(ctx context.Context, patternID string) (context.Context, trace.Span) {
	return t.Start(ctx, SpanPatternRun, trace.WithAttributes(attribute.String(AttrPatternID, patternID)))
}

// StartNodeExecute starts the span wrapping one pattern node execution.
func (t *Tracer) StartNodeExecute(ctx context.Context, patternID, nodeID string) (context.Context, trace.Span) {
	return t.Start(ctx, SpanNodeExecute, trace.WithAttributes(
		attribute.String(AttrPatternID, patternID),
		attribute.String(AttrNodeID, nodeID),
	))
}

// StartLLMCall starts the span wrapping one LLM request.
func (t *Tracer) StartLLMCall(ctx context.Context, model, provider string) (context.Context, trace.Span) {
	return t.Start(ctx, SpanLLMCall, trace.WithAttributes(
		attribute.String(AttrLLMModel, model),
		attribute.String(AttrLLMProvider, provider),
	))
}

// StartToolCall starts the span wrapping one sandboxed tool invocation.
func (t *Tracer) StartToolCall(ctx context.Context, toolName string) (context.Context, trace.Span) {
	return t.Start(ctx, SpanToolCall, trace.WithAttributes(attribute.String(AttrToolName, toolName)))
}

// RecordError marks a span as failed and attaches the error.
func (t *Tracer) RecordError(span trace.Span, err error) {
	if t == nil || span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetAttributes(attribute.String(AttrErrorType, fmt.Sprintf("%T", err)))
}

// DebugExporter returns the in-memory span exporter, or nil if not enabled.
func (t *Tracer) DebugExporter() *DebugExporter {
	if t == nil {
		return nil
	}
	return t.debugExporter
}

// Shutdown flushes and stops the tracer provider.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

func noopSpan() trace.Span {
	_, span := noop.NewTracerProvider().Tracer("noop").Start(context.Background(), "noop")
	return span
}
