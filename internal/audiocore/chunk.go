package audiocore

// Chunk is an immutable timestamped block of raw PCM bytes. A zero-length
// chunk marks end of stream for the queue it is pushed to.
type Chunk struct {
	data      []byte
	buf       *Buffer // nil when data is caller-owned
	timestamp float64
}

// NewChunk wraps data without copying. The caller gives up the right to
// modify data. timestamp is the device-clock time in seconds of the first
// sample.
func NewChunk(data []byte, timestamp float64) *Chunk {
	return &Chunk{data: data, timestamp: timestamp}
}

// NewPooledChunk copies src into a buffer taken from pool.
func NewPooledChunk(pool *BufferPool, src []byte, timestamp float64) *Chunk {
	if pool == nil {
		pool = DefaultBufferPool()
	}
	buf := pool.Get(len(src))
	copy(buf.Bytes(), src)
	return &Chunk{data: buf.Bytes(), buf: buf, timestamp: timestamp}
}

// EndOfStream returns a zero-length chunk.
func EndOfStream(timestamp float64) *Chunk {
	return &Chunk{timestamp: timestamp}
}

// Bytes returns the payload. It must be treated as read-only.
func (c *Chunk) Bytes() []byte {
	if c == nil {
		return nil
	}
	return c.data
}

// Len returns the payload length in bytes.
func (c *Chunk) Len() int {
	if c == nil {
		return 0
	}
	return len(c.data)
}

// Timestamp returns the device-clock time in seconds of the first sample.
func (c *Chunk) Timestamp() float64 {
	if c == nil {
		return 0
	}
	return c.timestamp
}

// IsEOS reports whether c is an end-of-stream marker.
func (c *Chunk) IsEOS() bool {
	return c != nil && len(c.data) == 0
}

// Retain adds a reference for an additional holder of a pooled chunk.
func (c *Chunk) Retain() *Chunk {
	if c != nil && c.buf != nil {
		c.buf.Acquire()
	}
	return c
}

// Release drops a reference. The payload must not be used afterwards if
// the chunk was pooled.
func (c *Chunk) Release() {
	if c != nil && c.buf != nil {
		c.buf.Release()
	}
}

// trim shortens a chunk that has not been shared yet.
func (c *Chunk) trim(n int) {
	if n < len(c.data) {
		c.data = c.data[:n]
	}
}
