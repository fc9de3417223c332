package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/audiobridge/internal/audiocore"
	"github.com/tphakala/audiobridge/internal/errors"
)

func TestStreamRecorder(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m, err := NewStreamMetrics(registry)
	require.NoError(t, err)

	r := m.StreamRecorder("s1")
	r.RecordCallback()
	r.RecordCallback()
	r.RecordBytes(audiocore.DirectionOutput, 960, 2880)
	r.RecordBytes(audiocore.DirectionInput, 480, 0)
	r.RecordUnderrun()
	r.RecordDriftCorrection(30)
	r.SetDrift(10)
	r.RecordStatusFlag("output underflow")
	r.RecordStatusFlag("made up flag")
	r.RecordDroppedChunk(audiocore.DirectionInput)
	r.SetQueueDepth(audiocore.DirectionOutput, 3, 4096)

	assert.InDelta(t, 2.0, testutil.ToFloat64(m.callbacks.WithLabelValues("s1")), 0)
	assert.InDelta(t, 960.0, testutil.ToFloat64(m.bytes.WithLabelValues("s1", "output", KindCopied)), 0)
	assert.InDelta(t, 2880.0, testutil.ToFloat64(m.bytes.WithLabelValues("s1", "output", KindSkipped)), 0)
	assert.InDelta(t, 480.0, testutil.ToFloat64(m.bytes.WithLabelValues("s1", "input", KindCopied)), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.underruns.WithLabelValues("s1")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.driftCorrections.WithLabelValues("s1")), 0)
	assert.InDelta(t, 10.0, testutil.ToFloat64(m.drift.WithLabelValues("s1")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.statusFlags.WithLabelValues("s1", "output underflow")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.statusFlags.WithLabelValues("s1", "made up flag")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.droppedChunks.WithLabelValues("s1", "input")), 0)
	assert.InDelta(t, 3.0, testutil.ToFloat64(m.queueChunks.WithLabelValues("s1", "output")), 0)
	assert.InDelta(t, 4096.0, testutil.ToFloat64(m.queueBytes.WithLabelValues("s1", "output")), 0)
}

func TestStreamMetricsDeleteStream(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m, err := NewStreamMetrics(registry)
	require.NoError(t, err)

	m.StreamRecorder("keep").RecordCallback()
	m.StreamRecorder("drop").RecordCallback()
	require.Equal(t, 2, testutil.CollectAndCount(m.callbacks))

	m.DeleteStream("drop")
	assert.Equal(t, 1, testutil.CollectAndCount(m.callbacks))
	// copied and skipped for both directions of the remaining stream
	assert.Equal(t, 4, testutil.CollectAndCount(m.bytes))

	expected := `
# HELP audiobridge_callbacks_total Total number of device callbacks processed
# TYPE audiobridge_callbacks_total counter
audiobridge_callbacks_total{stream="keep"} 1
`
	require.NoError(t, testutil.CollectAndCompare(m.callbacks, strings.NewReader(expected)))
}

func TestStreamMetricsDoubleRegister(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	_, err := NewStreamMetrics(registry)
	require.NoError(t, err)
	_, err = NewStreamMetrics(registry)
	require.Error(t, err)
}

func TestErrorMetricsHook(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m, err := NewErrorMetrics(registry)
	require.NoError(t, err)

	hook := m.Hook()
	hook(errors.New(errors.NewStd("bad rate")).
		Component("audioio").
		Category(errors.CategoryValidation).
		Build())
	hook(errors.New(errors.NewStd("gone")).Build())

	assert.InDelta(t, 1.0, testutil.ToFloat64(m.errorsTotal.WithLabelValues("audioio", "validation")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.errorsTotal.WithLabelValues(errors.ComponentUnknown, "generic")), 0)
}

func TestBufferPoolMetrics(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	pool := audiocore.NewBufferPool(audiocore.DefaultBufferPoolConfig())
	m, err := NewBufferPoolMetrics(registry, pool)
	require.NoError(t, err)

	a := pool.Get(100)
	b := pool.Get(10)
	b.Release()

	expected := `
# HELP audiobridge_buffer_pool_active Buffers currently handed out and not yet released
# TYPE audiobridge_buffer_pool_active gauge
audiobridge_buffer_pool_active 1
`
	require.NoError(t, testutil.CollectAndCompare(m, strings.NewReader(expected), "audiobridge_buffer_pool_active"))
	assert.Equal(t, 3, testutil.CollectAndCount(m))
	a.Release()
}
