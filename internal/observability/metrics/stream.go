// Package metrics provides Prometheus collectors for audiobridge streams.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tphakala/audiobridge/internal/audiocore"
)

// StreamMetrics contains Prometheus metrics for real-time stream engines
type StreamMetrics struct {
	callbacks        *prometheus.CounterVec
	bytes            *prometheus.CounterVec
	underruns        *prometheus.CounterVec
	driftCorrections *prometheus.CounterVec
	driftSkipped     *prometheus.HistogramVec
	drift            *prometheus.GaugeVec
	statusFlags      *prometheus.CounterVec
	droppedChunks    *prometheus.CounterVec
	queueChunks      *prometheus.GaugeVec
	queueBytes       *prometheus.GaugeVec

	// collectors is a slice of all collectors for easier iteration
	collectors []prometheus.Collector
}

// NewStreamMetrics creates and registers new stream metrics
func NewStreamMetrics(registry *prometheus.Registry) (*StreamMetrics, error) {
	m := &StreamMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *StreamMetrics) initMetrics() {
	m.callbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audiobridge_callbacks_total",
			Help: "Total number of device callbacks processed",
		},
		[]string{LabelStream},
	)

	m.bytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audiobridge_bytes_total",
			Help: "Total audio bytes moved between device and queues",
		},
		[]string{LabelStream, LabelDirection, LabelKind}, // kind: copied, skipped
	)

	m.underruns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audiobridge_output_underruns_total",
			Help: "Callbacks that ran out of queued output and played silence",
		},
		[]string{LabelStream},
	)

	m.driftCorrections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audiobridge_drift_corrections_total",
			Help: "Times queued output was skipped to catch up with the device clock",
		},
		[]string{LabelStream},
	)

	m.driftSkipped = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "audiobridge_drift_skip_milliseconds",
			Help:    "Milliseconds of output skipped per drift correction",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1ms to ~2s
		},
		[]string{LabelStream},
	)

	m.drift = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "audiobridge_drift_milliseconds",
			Help: "Current callback drift estimate",
		},
		[]string{LabelStream},
	)

	m.statusFlags = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audiobridge_status_flags_total",
			Help: "Driver status flags reported per callback",
		},
		[]string{LabelStream, LabelFlag},
	)

	m.droppedChunks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audiobridge_dropped_chunks_total",
			Help: "Chunks dropped because a queue was full",
		},
		[]string{LabelStream, LabelDirection},
	)

	m.queueChunks = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "audiobridge_queue_chunks",
			Help: "Chunks waiting in a stream queue",
		},
		[]string{LabelStream, LabelDirection},
	)

	m.queueBytes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "audiobridge_queue_bytes",
			Help: "Unconsumed bytes in a stream queue",
		},
		[]string{LabelStream, LabelDirection},
	)

	m.collectors = []prometheus.Collector{
		m.callbacks,
		m.bytes,
		m.underruns,
		m.driftCorrections,
		m.driftSkipped,
		m.drift,
		m.statusFlags,
		m.droppedChunks,
		m.queueChunks,
		m.queueBytes,
	}
}

// Describe implements the Collector interface
func (m *StreamMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *StreamMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// StreamRecorder returns an audiocore.Recorder bound to one stream. The
// label lookups happen here so the callback path only touches resolved
// series.
func (m *StreamMetrics) StreamRecorder(streamID string) audiocore.Recorder {
	r := &streamRecorder{
		m:                m,
		stream:           streamID,
		callbacks:        m.callbacks.WithLabelValues(streamID),
		underruns:        m.underruns.WithLabelValues(streamID),
		driftCorrections: m.driftCorrections.WithLabelValues(streamID),
		driftSkipped:     m.driftSkipped.WithLabelValues(streamID),
		drift:            m.drift.WithLabelValues(streamID),
		statusFlags:      make(map[string]prometheus.Counter, len(flagNames)),
	}
	for i, dir := range directions {
		r.copied[i] = m.bytes.WithLabelValues(streamID, dir, KindCopied)
		r.skipped[i] = m.bytes.WithLabelValues(streamID, dir, KindSkipped)
		r.dropped[i] = m.droppedChunks.WithLabelValues(streamID, dir)
		r.queueChunks[i] = m.queueChunks.WithLabelValues(streamID, dir)
		r.queueBytes[i] = m.queueBytes.WithLabelValues(streamID, dir)
	}
	for _, name := range flagNames {
		r.statusFlags[name] = m.statusFlags.WithLabelValues(streamID, name)
	}
	return r
}

// DeleteStream removes every series of a stream.
func (m *StreamMetrics) DeleteStream(streamID string) {
	labels := prometheus.Labels{LabelStream: streamID}
	m.callbacks.DeletePartialMatch(labels)
	m.bytes.DeletePartialMatch(labels)
	m.underruns.DeletePartialMatch(labels)
	m.driftCorrections.DeletePartialMatch(labels)
	m.driftSkipped.DeletePartialMatch(labels)
	m.drift.DeletePartialMatch(labels)
	m.statusFlags.DeletePartialMatch(labels)
	m.droppedChunks.DeletePartialMatch(labels)
	m.queueChunks.DeletePartialMatch(labels)
	m.queueBytes.DeletePartialMatch(labels)
}

var directions = [...]string{audiocore.DirectionInput, audiocore.DirectionOutput}

var flagNames = (audiocore.StatusInputUnderflow |
	audiocore.StatusInputOverflow |
	audiocore.StatusOutputUnderflow |
	audiocore.StatusOutputOverflow |
	audiocore.StatusPrimingOutput).Names()

func directionIndex(direction string) int {
	if direction == audiocore.DirectionOutput {
		return 1
	}
	return 0
}

type streamRecorder struct {
	m      *StreamMetrics
	stream string

	callbacks        prometheus.Counter
	underruns        prometheus.Counter
	driftCorrections prometheus.Counter
	driftSkipped     prometheus.Observer
	drift            prometheus.Gauge
	statusFlags      map[string]prometheus.Counter

	copied      [2]prometheus.Counter
	skipped     [2]prometheus.Counter
	dropped     [2]prometheus.Counter
	queueChunks [2]prometheus.Gauge
	queueBytes  [2]prometheus.Gauge
}

func (r *streamRecorder) RecordCallback() { r.callbacks.Inc() }

func (r *streamRecorder) RecordBytes(direction string, copied, skipped int) {
	i := directionIndex(direction)
	if copied > 0 {
		r.copied[i].Add(float64(copied))
	}
	if skipped > 0 {
		r.skipped[i].Add(float64(skipped))
	}
}

func (r *streamRecorder) RecordUnderrun() { r.underruns.Inc() }

func (r *streamRecorder) RecordDriftCorrection(ms float64) {
	r.driftCorrections.Inc()
	r.driftSkipped.Observe(ms)
}

func (r *streamRecorder) SetDrift(ms float64) { r.drift.Set(ms) }

func (r *streamRecorder) RecordStatusFlag(flag string) {
	if c, ok := r.statusFlags[flag]; ok {
		c.Inc()
		return
	}
	r.m.statusFlags.WithLabelValues(r.stream, flag).Inc()
}

func (r *streamRecorder) RecordDroppedChunk(direction string) {
	r.dropped[directionIndex(direction)].Inc()
}

func (r *streamRecorder) SetQueueDepth(direction string, chunks, bytes int) {
	i := directionIndex(direction)
	r.queueChunks[i].Set(float64(chunks))
	r.queueBytes[i].Set(float64(bytes))
}
