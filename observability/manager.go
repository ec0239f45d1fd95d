package observability

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
)

// Manager owns the lifecycle of tracing and metrics for one process
// (grounded on hector's pkg/observability/manager.go).
type Manager struct {
	config  *Config
	tracer  *Tracer
	metrics *Metrics
}

// NewManager builds a Manager from Config. A nil cfg yields an all-disabled
// Manager so callers never need a nil check before calling its methods.
func NewManager(ctx context.Context, cfg *Config, log *slog.Logger) (*Manager, error) {
	if cfg == nil {
		return &Manager{}, nil
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid observability config: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}

	m := &Manager{config: cfg}

	if cfg.Tracing.Enabled {
		var opts []TracerOption
		if cfg.Tracing.IsDebugExporterEnabled() {
			opts = append(opts, WithDebugExporter(NewDebugExporter()))
		}
		tracer, err := NewTracer(ctx, &cfg.Tracing, opts...)
		if err != nil {
			return nil, fmt.Errorf("init tracing: %w", err)
		}
		m.tracer = tracer
		log.Info("observability: tracing initialized", "sampling_rate", cfg.Tracing.SamplingRate)
	}

	if cfg.Metrics.Enabled {
		metrics, err := NewMetrics(&cfg.Metrics)
		if err != nil {
			if m.tracer != nil {
				_ = m.tracer.Shutdown(ctx)
			}
			return nil, fmt.Errorf("init metrics: %w", err)
		}
		m.metrics = metrics
		log.Info("observability: metrics initialized", "endpoint", cfg.Metrics.Endpoint, "namespace", cfg.Metrics.Namespace)
	}

	return m, nil
}

// Tracer returns the tracer, or nil if tracing is disabled.
func (m *Manager) Tracer() *Tracer {
	if m == nil {
		return nil
	}
	return m.tracer
}

// Metrics returns the recorder. Safe to call methods on the result even
// when metrics are disabled (every *Metrics method is nil-receiver-safe).
func (m *Manager) Metrics() *Metrics {
	if m == nil {
		return nil
	}
	return m.metrics
}

// MetricsHandler returns an HTTP handler for the metrics endpoint.
func (m *Manager) MetricsHandler() http.Handler {
	if m == nil || m.metrics == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics not enabled"))
		})
	}
	return m.metrics.Handler()
}

// MetricsEndpoint returns the configured metrics path.
func (m *Manager) MetricsEndpoint() string {
	if m == nil || m.config == nil {
		return DefaultMetricsPath
	}
	return m.config.Metrics.Endpoint
}

// Shutdown gracefully shuts down tracing. Metrics need no explicit shutdown.
func (m *Manager) Shutdown(ctx context.Context) error {
	if m == nil || m.tracer == nil {
		return nil
	}
	return m.tracer.Shutdown(ctx)
}
