package audiocore

import (
	"sync"
	"sync/atomic"
)

// Buffer is a reference-counted byte slice handed out by a BufferPool.
// The payload must not be modified once the buffer is shared.
type Buffer struct {
	data     []byte
	length   int
	refCount atomic.Int32
	pool     *BufferPool
}

// Bytes returns the valid portion of the buffer
func (b *Buffer) Bytes() []byte {
	return b.data[:b.length]
}

// Len returns the current length of valid data
func (b *Buffer) Len() int {
	return b.length
}

// Cap returns the capacity of the buffer
func (b *Buffer) Cap() int {
	return cap(b.data)
}

// Acquire increments the reference count
func (b *Buffer) Acquire() {
	b.refCount.Add(1)
}

// Release decrements the reference count and returns the buffer to its
// pool when it drops to zero. Extra releases are ignored.
func (b *Buffer) Release() {
	newCount := b.refCount.Add(-1)
	switch {
	case newCount == 0 && b.pool != nil:
		b.pool.put(b)
	case newCount < 0:
		b.refCount.Store(0)
	}
}

// BufferPoolConfig contains the tier sizes of a BufferPool
type BufferPoolConfig struct {
	SmallBufferSize  int // e.g. one 256-frame stereo float32 period
	MediumBufferSize int
	LargeBufferSize  int
}

// DefaultBufferPoolConfig covers callback periods up to 4 KiB in the small
// tier and decoded file blocks in the larger ones.
func DefaultBufferPoolConfig() BufferPoolConfig {
	return BufferPoolConfig{
		SmallBufferSize:  4 * 1024,
		MediumBufferSize: 64 * 1024,
		LargeBufferSize:  1024 * 1024,
	}
}

// BufferPoolStats contains statistics about buffer pool usage
type BufferPoolStats struct {
	TotalBuffers  int64
	ActiveBuffers int64
	Oversized     int64 // requests larger than the large tier, never pooled
}

// BufferPool manages reusable chunk payload buffers in three size tiers.
// Get and Release are lock-free apart from sync.Pool internals so they can
// be used on the audio callback thread.
type BufferPool struct {
	smallPool  sync.Pool
	mediumPool sync.Pool
	largePool  sync.Pool
	config     BufferPoolConfig

	total     atomic.Int64
	active    atomic.Int64
	oversized atomic.Int64
}

// NewBufferPool creates a new buffer pool
func NewBufferPool(config BufferPoolConfig) *BufferPool {
	if config.SmallBufferSize <= 0 || config.MediumBufferSize < config.SmallBufferSize || config.LargeBufferSize < config.MediumBufferSize {
		config = DefaultBufferPoolConfig()
	}

	pool := &BufferPool{config: config}

	pool.smallPool.New = func() any {
		return &Buffer{data: make([]byte, config.SmallBufferSize), pool: pool}
	}
	pool.mediumPool.New = func() any {
		return &Buffer{data: make([]byte, config.MediumBufferSize), pool: pool}
	}
	pool.largePool.New = func() any {
		return &Buffer{data: make([]byte, config.LargeBufferSize), pool: pool}
	}

	return pool
}

var defaultPool = sync.OnceValue(func() *BufferPool {
	return NewBufferPool(DefaultBufferPoolConfig())
})

// DefaultBufferPool returns the process-wide pool used when none is configured.
func DefaultBufferPool() *BufferPool {
	return defaultPool()
}

// Get retrieves a buffer of exactly size valid bytes with a reference count of one.
// The contents are not zeroed.
func (p *BufferPool) Get(size int) *Buffer {
	if size < 0 {
		size = 0
	}

	p.total.Add(1)
	p.active.Add(1)

	var buf *Buffer
	switch {
	case size <= p.config.SmallBufferSize:
		buf = p.smallPool.Get().(*Buffer)
	case size <= p.config.MediumBufferSize:
		buf = p.mediumPool.Get().(*Buffer)
	case size <= p.config.LargeBufferSize:
		buf = p.largePool.Get().(*Buffer)
	default:
		p.oversized.Add(1)
		buf = &Buffer{data: make([]byte, size), pool: p}
	}

	buf.length = size
	buf.refCount.Store(1)

	return buf
}

// put returns a buffer to its tier
func (p *BufferPool) put(buf *Buffer) {
	p.active.Add(-1)

	buf.length = 0
	switch capacity := cap(buf.data); {
	case capacity == p.config.SmallBufferSize:
		p.smallPool.Put(buf)
	case capacity == p.config.MediumBufferSize:
		p.mediumPool.Put(buf)
	case capacity == p.config.LargeBufferSize:
		p.largePool.Put(buf)
	default:
		// oversized buffers are left to the GC
	}
}

// Stats returns statistics about the pool
func (p *BufferPool) Stats() BufferPoolStats {
	return BufferPoolStats{
		TotalBuffers:  p.total.Load(),
		ActiveBuffers: p.active.Load(),
		Oversized:     p.oversized.Load(),
	}
}
