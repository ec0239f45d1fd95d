package observability

import (
	"context"
	"sync"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// DebugExporter is a SpanExporter that keeps recent spans in memory for the
// Mission Control API's trace-inspection endpoints (grounded on hector's
// pkg/observability/debug_exporter.go, narrowed to the span names this
// module emits).
//
// Thread-safe for concurrent reads and writes.
type DebugExporter struct {
	mu      sync.RWMutex
	spans   map[string]*DebugSpan
	byTrace map[string][]*DebugSpan
	maxSize int
}

// DebugSpan is a captured span, trimmed to what an operator inspecting a
// mission run cares about.
type DebugSpan struct {
	TraceID      string            `json:"trace_id"`
	SpanID       string            `json:"span_id"`
	ParentSpanID string            `json:"parent_span_id,omitempty"`
	Name         string            `json:"name"`
	StartTime    int64             `json:"start_time_unix_nano"`
	EndTime      int64             `json:"end_time_unix_nano"`
	DurationMs   float64           `json:"duration_ms"`
	Attributes   map[string]string `json:"attributes"`
	Status       string            `json:"status"`
	StatusMsg    string            `json:"status_message,omitempty"`
}

// NewDebugExporter creates a DebugExporter whose span index (Count) retains
// the last 1000 spans. The per-trace lists behind GetSpansByTrace are not
// pruned on eviction.
func NewDebugExporter() *DebugExporter {
	return &DebugExporter{
		spans:   make(map[string]*DebugSpan),
		byTrace: make(map[string][]*DebugSpan),
		maxSize: 1000,
	}
}

// ExportSpans implements sdktrace.SpanExporter.
func (e *DebugExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, span := range spans {
		ds := e.convertSpan(span)
		e.spans[ds.SpanID] = ds
		e.byTrace[ds.TraceID] = append(e.byTrace[ds.TraceID], ds)
		e.evictOldest()
	}
	return nil
}

func (e *DebugExporter) convertSpan(span sdktrace.ReadOnlySpan) *DebugSpan {
	start := span.StartTime().UnixNano()
	end := span.EndTime().UnixNano()

	ds := &DebugSpan{
		TraceID:    span.SpanContext().TraceID().String(),
		SpanID:     span.SpanContext().SpanID().String(),
		Name:       span.Name(),
		StartTime:  start,
		EndTime:    end,
		DurationMs: float64(end-start) / 1e6,
		Attributes: make(map[string]string),
		Status:     span.Status().Code.String(),
		StatusMsg:  span.Status().Description,
	}
	if span.Parent().HasSpanID() {
		ds.ParentSpanID = span.Parent().SpanID().String()
	}
	for _, attr := range span.Attributes() {
		ds.Attributes[string(attr.Key)] = attr.Value.AsString()
	}
	return ds
}

// evictOldest removes the earliest-ended spans from the span index once
// it is over maxSize. Caller holds the lock.
func (e *DebugExporter) evictOldest() {
	for len(e.spans) > e.maxSize {
		var oldest *DebugSpan
		for _, s := range e.spans {
			if oldest == nil || s.EndTime < oldest.EndTime {
				oldest = s
			}
		}
		delete(e.spans, oldest.SpanID)
	}
}

// Shutdown implements sdktrace.SpanExporter.
func (e *DebugExporter) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.spans = make(map[string]*DebugSpan)
	e.byTrace = make(map[string][]*DebugSpan)
	return nil
}

// GetSpansByTrace returns all spans captured for a trace ID, for a
// mission/session's full request tree.
func (e *DebugExporter) GetSpansByTrace(traceID string) []*DebugSpan {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*DebugSpan, len(e.byTrace[traceID]))
	copy(out, e.byTrace[traceID])
	return out
}

// Count returns the number of captured spans.
func (e *DebugExporter) Count() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.spans)
}

var _ sdktrace.SpanExporter = (*DebugExporter)(nil)
