// Package observability provides Prometheus metrics and the telemetry HTTP
// endpoint for audiobridge.
package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tphakala/audiobridge/internal/audiocore"
	"github.com/tphakala/audiobridge/internal/errors"
	"github.com/tphakala/audiobridge/internal/logger"
	"github.com/tphakala/audiobridge/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry   *prometheus.Registry
	Stream     *metrics.StreamMetrics
	Errors     *metrics.ErrorMetrics
	BufferPool *metrics.BufferPoolMetrics
	HTTP       *metrics.HTTPMetrics
}

// NewMetrics creates a new instance of Metrics, initializing all metric collectors.
// pool may be nil, in which case the process-wide buffer pool is observed.
func NewMetrics(pool *audiocore.BufferPool) (*Metrics, error) {
	registry := prometheus.NewRegistry()

	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("failed to register Go collector: %w", err)
	}
	if err := registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, fmt.Errorf("failed to register process collector: %w", err)
	}

	streamMetrics, err := metrics.NewStreamMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream metrics: %w", err)
	}

	errorMetrics, err := metrics.NewErrorMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create error metrics: %w", err)
	}

	if pool == nil {
		pool = audiocore.DefaultBufferPool()
	}
	poolMetrics, err := metrics.NewBufferPoolMetrics(registry, pool)
	if err != nil {
		return nil, fmt.Errorf("failed to create buffer pool metrics: %w", err)
	}

	httpMetrics, err := metrics.NewHTTPMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP metrics: %w", err)
	}

	return &Metrics{
		registry:   registry,
		Stream:     streamMetrics,
		Errors:     errorMetrics,
		BufferPool: poolMetrics,
		HTTP:       httpMetrics,
	}, nil
}

// CountErrors registers a hook so every built error is counted. Call once
// per process; hooks are global.
func (m *Metrics) CountErrors() {
	errors.AddErrorHook(m.Errors.Hook())
}

// StreamRecorder returns the recorder for one stream. It makes Metrics
// usable as an audioio.RecorderProvider.
func (m *Metrics) StreamRecorder(streamID string) audiocore.Recorder {
	return m.Stream.StreamRecorder(streamID)
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      promLogger{},
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}

// promLogger adapts the module logger to promhttp.Logger
type promLogger struct{}

func (promLogger) Println(v ...any) {
	log.Error("metrics handler", logger.String("error", fmt.Sprint(v...)))
}
