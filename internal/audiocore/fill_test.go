package audiocore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sequential returns n bytes counting up from start.
func sequential(start, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(start + i)
	}
	return b
}

func TestFillBufferScenario(t *testing.T) {
	t.Parallel()

	q := NewChunkQueue(0)
	q.Push(NewChunk(sequential(0, 100), 0))
	q.Push(NewChunk(sequential(100, 50), 0))
	q.Push(NewChunk(sequential(150, 200), 0))
	q.Quit()

	var got []byte
	total := 0
	fills := []int{80, 80, 80, 80, 30}
	for i, size := range fills {
		dst := make([]byte, size)
		res := FillBuffer(dst, q, 0, 0)
		total += res.Copied
		got = append(got, dst[:res.Copied]...)

		assert.Equal(t, size, res.Copied, "fill %d", i+1)
		assert.Equal(t, i == len(fills)-1, res.Finished, "fill %d finished", i+1)
		assert.False(t, res.Starved)
	}

	assert.Equal(t, 350, total)
	assert.Equal(t, sequential(0, 350), got)
}

func TestFillBufferZeroPadsShortFinalFill(t *testing.T) {
	t.Parallel()

	q := NewChunkQueue(0)
	q.Push(NewChunk(sequential(1, 30), 0))
	q.Quit()

	dst := bytesOfLen(64, 0xFF)
	res := FillBuffer(dst, q, 0, 0)

	assert.Equal(t, 30, res.Copied)
	assert.True(t, res.Finished)
	assert.False(t, res.Starved)
	assert.Equal(t, sequential(1, 30), dst[:30])
	assert.Equal(t, make([]byte, 34), dst[30:])
}

func TestFillBufferEndOfStreamChunk(t *testing.T) {
	t.Parallel()

	q := NewChunkQueue(0)
	q.Push(EndOfStream(0))

	dst := bytesOfLen(16, 0xFF)
	res := FillBuffer(dst, q, 0, 0)

	assert.True(t, res.Finished)
	assert.Equal(t, 0, res.Copied)
	assert.Equal(t, make([]byte, 16), dst)
}

func TestFillBufferStarvationIsNotFinished(t *testing.T) {
	t.Parallel()

	q := NewChunkQueue(0)
	q.Push(NewChunk(sequential(0, 10), 0))

	dst := make([]byte, 32)
	res := FillBuffer(dst, q, 0, 0)
	assert.Equal(t, 10, res.Copied)
	assert.True(t, res.Starved)
	assert.False(t, res.Finished, "a live queue that ran dry is not finished")

	res = FillBuffer(dst, q, 0, 5*time.Millisecond)
	assert.Equal(t, 0, res.Copied)
	assert.True(t, res.Starved)
}

func TestFillBufferSkipAcrossChunks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		chunks []int
		skip   int
		copyN  int
	}{
		{"skip within first chunk", []int{100, 100}, 30, 50},
		{"skip spans chunks", []int{40, 40, 40}, 70, 20},
		{"copy spans chunks", []int{25, 25, 25, 25}, 10, 80},
		{"skip ends on boundary", []int{50, 50}, 50, 50},
		{"skip and copy span several", []int{10, 20, 30, 40, 50}, 45, 75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			q := NewChunkQueue(0)
			start := 0
			for _, n := range tt.chunks {
				q.Push(NewChunk(sequential(start, n), 0))
				start += n
			}
			total := start

			dst := make([]byte, tt.copyN)
			res := FillBuffer(dst, q, tt.skip, 0)

			assert.Equal(t, tt.skip, res.Skipped)
			assert.Equal(t, tt.copyN, res.Copied)
			assert.Equal(t, sequential(tt.skip, tt.copyN), dst)
			assert.Equal(t, total-tt.skip-tt.copyN, q.Unconsumed())
		})
	}
}

func TestFillBufferByteConservation(t *testing.T) {
	t.Parallel()

	q := NewChunkQueue(0)
	sizes := []int{3, 17, 64, 1, 250, 9}
	total := 0
	for _, n := range sizes {
		q.Push(NewChunk(sequential(total, n), 0))
		total += n
	}
	q.Quit()

	copied := 0
	for range 100 {
		res := FillBuffer(make([]byte, 37), q, 0, 0)
		copied += res.Copied
		if res.Finished {
			break
		}
	}
	assert.Equal(t, total, copied)
	assert.Equal(t, 0, q.Unconsumed())
}

func TestFillBufferTimestamp(t *testing.T) {
	t.Parallel()

	q := NewChunkQueue(0)
	q.Push(NewChunk(sequential(0, 8), 2.5))
	q.Push(NewChunk(sequential(8, 8), 3.0))

	res := FillBuffer(make([]byte, 12), q, 0, 0)
	assert.InDelta(t, 2.5, res.Timestamp, 0)

	res = FillBuffer(make([]byte, 4), q, 0, 0)
	assert.InDelta(t, 3.0, res.Timestamp, 0)
}

func TestPullChunk(t *testing.T) {
	t.Parallel()

	pool := NewBufferPool(testPoolConfig())

	t.Run("trims to bytes read", func(t *testing.T) {
		t.Parallel()
		q := NewChunkQueue(0)
		q.Push(NewChunk(sequential(0, 20), 1.25))
		q.Quit()

		c, finished, err := PullChunk(t.Context(), q, pool, 64, 0)
		require.NoError(t, err)
		require.NotNil(t, c)
		assert.True(t, finished)
		assert.Equal(t, sequential(0, 20), c.Bytes())
		assert.InDelta(t, 1.25, c.Timestamp(), 0)
		c.Release()
	})

	t.Run("nothing read returns nil", func(t *testing.T) {
		t.Parallel()
		q := NewChunkQueue(0)
		q.Quit()

		c, finished, err := PullChunk(t.Context(), q, pool, 64, 0)
		require.NoError(t, err)
		assert.Nil(t, c)
		assert.True(t, finished)
	})

	t.Run("blocks until max bytes", func(t *testing.T) {
		t.Parallel()
		q := NewChunkQueue(0)
		go func() {
			for i := range 4 {
				time.Sleep(2 * time.Millisecond)
				q.Push(NewChunk(sequential(i*8, 8), 0))
			}
		}()

		c, finished, err := PullChunk(t.Context(), q, pool, 32, 0)
		require.NoError(t, err)
		require.NotNil(t, c)
		assert.False(t, finished)
		assert.Equal(t, sequential(0, 32), c.Bytes())
	})

	t.Run("context cancel returns partial data", func(t *testing.T) {
		t.Parallel()
		q := NewChunkQueue(0)
		q.Push(NewChunk(sequential(0, 5), 0))

		ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
		defer cancel()

		c, finished, err := PullChunk(ctx, q, pool, 32, 0)
		require.ErrorIs(t, err, context.DeadlineExceeded)
		require.NotNil(t, c)
		assert.False(t, finished)
		assert.Equal(t, sequential(0, 5), c.Bytes())
	})

	t.Run("timestamp advances within a chunk", func(t *testing.T) {
		t.Parallel()
		params := StreamParams{SampleRate: 48000, Channels: 1, Format: SampleFormatInt16}
		q := NewChunkQueue(0)
		q.Push(NewChunk(sequential(0, 960), 1.0))
		q.Quit()

		first, _, err := PullChunk(t.Context(), q, pool, 480, params.BytesPerSecond())
		require.NoError(t, err)
		require.NotNil(t, first)
		assert.InDelta(t, 1.0, first.Timestamp(), 1e-9)
		first.Release()

		second, finished, err := PullChunk(t.Context(), q, pool, 480, params.BytesPerSecond())
		require.NoError(t, err)
		require.NotNil(t, second)
		assert.True(t, finished)
		assert.InDelta(t, 1.005, second.Timestamp(), 1e-9)
		second.Release()
	})
}
