package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/audiobridge/internal/audiocore"
	"github.com/tphakala/audiobridge/internal/audioio"
)

// Metrics must satisfy the provider interface AudioIO consumes.
var _ audioio.RecorderProvider = (*Metrics)(nil)

// TestNewMetricsConcurrency verifies that NewMetrics can be called concurrently
// since every instance owns its registry
func TestNewMetricsConcurrency(t *testing.T) {
	t.Parallel()

	const numGoroutines = 20

	var wg sync.WaitGroup
	for range numGoroutines {
		wg.Go(func() {
			m, err := NewMetrics(nil)
			if !assert.NoError(t, err) {
				return
			}
			assert.NotNil(t, m.Registry())
			assert.NotNil(t, m.Stream)
			assert.NotNil(t, m.Errors)
			assert.NotNil(t, m.BufferPool)
			assert.NotNil(t, m.HTTP)
		})
	}
	wg.Wait()
}

func TestMetricsHandler(t *testing.T) {
	t.Parallel()

	pool := audiocore.NewBufferPool(audiocore.DefaultBufferPoolConfig())
	m, err := NewMetrics(pool)
	require.NoError(t, err)

	r := m.StreamRecorder("abc")
	r.RecordCallback()
	r.RecordUnderrun()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	text := string(body)
	assert.Contains(t, text, `audiobridge_callbacks_total{stream="abc"} 1`)
	assert.Contains(t, text, `audiobridge_output_underruns_total{stream="abc"} 1`)
	assert.Contains(t, text, "audiobridge_buffer_pool_active 0")
	assert.Contains(t, text, "go_goroutines")
}

func TestMetricsStreamRecorderFeedsRegistry(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics(nil)
	require.NoError(t, err)

	m.StreamRecorder("s").RecordDroppedChunk(audiocore.DirectionInput)

	expected := `
# HELP audiobridge_dropped_chunks_total Chunks dropped because a queue was full
# TYPE audiobridge_dropped_chunks_total counter
audiobridge_dropped_chunks_total{direction="input",stream="s"} 1
audiobridge_dropped_chunks_total{direction="output",stream="s"} 0
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected),
		"audiobridge_dropped_chunks_total"))
}
