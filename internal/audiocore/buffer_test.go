package audiocore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPoolConfig() BufferPoolConfig {
	return BufferPoolConfig{
		SmallBufferSize:  4 * 1024,
		MediumBufferSize: 64 * 1024,
		LargeBufferSize:  1024 * 1024,
	}
}

func TestBufferPoolGetAndRelease(t *testing.T) {
	t.Parallel()

	pool := NewBufferPool(testPoolConfig())

	tests := []struct {
		name   string
		size   int
		minCap int
	}{
		{"small", 1024, 4 * 1024},
		{"medium", 32 * 1024, 64 * 1024},
		{"large", 512 * 1024, 1024 * 1024},
		{"oversized", 2 * 1024 * 1024, 2 * 1024 * 1024},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := pool.Get(tt.size)
			require.NotNil(t, buf)
			assert.Equal(t, tt.size, buf.Len())
			assert.Len(t, buf.Bytes(), tt.size)
			assert.GreaterOrEqual(t, buf.Cap(), tt.minCap)
			buf.Release()
		})
	}

	stats := pool.Stats()
	assert.Equal(t, int64(4), stats.TotalBuffers)
	assert.Equal(t, int64(0), stats.ActiveBuffers)
	assert.Equal(t, int64(1), stats.Oversized)
}

func TestBufferReferenceCounting(t *testing.T) {
	t.Parallel()

	pool := NewBufferPool(testPoolConfig())
	buf := pool.Get(128)

	buf.Acquire()
	buf.Release()
	assert.Equal(t, int64(1), pool.Stats().ActiveBuffers, "still referenced")

	buf.Release()
	assert.Equal(t, int64(0), pool.Stats().ActiveBuffers)

	buf.Release()
	assert.Equal(t, int64(0), pool.Stats().ActiveBuffers, "extra release is ignored")
}

func TestNewBufferPoolInvalidConfig(t *testing.T) {
	t.Parallel()

	pool := NewBufferPool(BufferPoolConfig{SmallBufferSize: 1024, MediumBufferSize: 512})
	buf := pool.Get(100)
	assert.Equal(t, DefaultBufferPoolConfig().SmallBufferSize, buf.Cap())
	buf.Release()
}

func TestPooledChunk(t *testing.T) {
	t.Parallel()

	pool := NewBufferPool(testPoolConfig())
	src := []byte{1, 2, 3, 4}
	c := NewPooledChunk(pool, src, 1.5)

	src[0] = 9
	assert.Equal(t, []byte{1, 2, 3, 4}, c.Bytes(), "payload is a copy")
	assert.InDelta(t, 1.5, c.Timestamp(), 0)
	assert.False(t, c.IsEOS())

	c.Retain()
	c.Release()
	assert.Equal(t, int64(1), pool.Stats().ActiveBuffers)
	c.Release()
	assert.Equal(t, int64(0), pool.Stats().ActiveBuffers)

	assert.True(t, EndOfStream(0).IsEOS())
	assert.Equal(t, 0, (*Chunk)(nil).Len())
}
