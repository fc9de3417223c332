package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tphakala/audiobridge/internal/audiocore"
)

// BufferPoolMetrics exposes BufferPool statistics, read at scrape time
type BufferPoolMetrics struct {
	pool *audiocore.BufferPool

	total     *prometheus.Desc
	active    *prometheus.Desc
	oversized *prometheus.Desc
}

// NewBufferPoolMetrics creates and registers a collector for pool
func NewBufferPoolMetrics(registry *prometheus.Registry, pool *audiocore.BufferPool) (*BufferPoolMetrics, error) {
	m := &BufferPoolMetrics{
		pool: pool,
		total: prometheus.NewDesc(
			"audiobridge_buffer_pool_allocated_total",
			"Buffers allocated by the pool since start",
			nil, nil),
		active: prometheus.NewDesc(
			"audiobridge_buffer_pool_active",
			"Buffers currently handed out and not yet released",
			nil, nil),
		oversized: prometheus.NewDesc(
			"audiobridge_buffer_pool_oversized_total",
			"Requests larger than the largest pool tier",
			nil, nil),
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Describe implements the Collector interface
func (m *BufferPoolMetrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.total
	ch <- m.active
	ch <- m.oversized
}

// Collect implements the Collector interface
func (m *BufferPoolMetrics) Collect(ch chan<- prometheus.Metric) {
	s := m.pool.Stats()
	ch <- prometheus.MustNewConstMetric(m.total, prometheus.CounterValue, float64(s.TotalBuffers))
	ch <- prometheus.MustNewConstMetric(m.active, prometheus.GaugeValue, float64(s.ActiveBuffers))
	ch <- prometheus.MustNewConstMetric(m.oversized, prometheus.CounterValue, float64(s.Oversized))
}
