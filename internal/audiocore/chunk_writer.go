package audiocore

import (
	"sync"
	"time"

	"github.com/smallnest/ringbuffer"

	"github.com/tphakala/audiobridge/internal/errors"
)

// ChunkWriterConfig configures a ChunkWriter
type ChunkWriterConfig struct {
	Params StreamParams

	// ChunkDuration sets the size of emitted chunks; rounded down to whole
	// frames, at least one frame.
	ChunkDuration time.Duration

	// StartTime is the timestamp of the first emitted chunk in seconds.
	StartTime float64

	Pool *BufferPool

	// Emit receives every completed chunk, including the final end-of-stream
	// chunk on Close. It may block.
	Emit func(*Chunk) error
}

// ChunkWriter accumulates arbitrary writes into fixed-size chunks. A
// single write may produce several chunks; leftovers wait for the next
// write. Safe for concurrent use.
type ChunkWriter struct {
	params    StreamParams
	chunkSize int
	pool      *BufferPool
	emit      func(*Chunk) error

	mu        sync.Mutex
	pending   *ringbuffer.RingBuffer
	startTime float64
	emitted   int64 // bytes emitted so far
	closed    bool
}

// NewChunkWriter creates a ChunkWriter
func NewChunkWriter(cfg ChunkWriterConfig) (*ChunkWriter, error) {
	if err := cfg.Params.Validate(); err != nil {
		return nil, err
	}
	if cfg.Emit == nil {
		return nil, validationError(errors.NewStd("chunk writer needs an emit function"), "new_chunk_writer").Build()
	}

	bpf := cfg.Params.BytesPerFrame()
	frames := int(cfg.ChunkDuration.Seconds() * float64(cfg.Params.SampleRate))
	chunkSize := max(frames, 1) * bpf

	pool := cfg.Pool
	if pool == nil {
		pool = DefaultBufferPool()
	}

	return &ChunkWriter{
		params:    cfg.Params,
		chunkSize: chunkSize,
		pool:      pool,
		emit:      cfg.Emit,
		pending:   ringbuffer.New(chunkSize * 2),
		startTime: cfg.StartTime,
	}, nil
}

// ChunkSize returns the size of emitted chunks in bytes.
func (w *ChunkWriter) ChunkSize() int {
	return w.chunkSize
}

// Pending returns the number of buffered bytes not yet emitted.
func (w *ChunkWriter) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pending.Length()
}

// Write implements io.Writer.
func (w *ChunkWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return 0, ErrWriterClosed
	}

	written := 0
	for len(p) > 0 {
		n := min(len(p), w.pending.Free())
		if n > 0 {
			m, err := w.pending.Write(p[:n])
			written += m
			p = p[m:]
			if err != nil && !errors.Is(err, ringbuffer.ErrIsFull) {
				return written, err
			}
		}
		for w.pending.Length() >= w.chunkSize {
			if err := w.emitLocked(w.chunkSize); err != nil {
				return written, err
			}
		}
	}
	return written, nil
}

// Flush emits buffered whole frames as a short chunk.
func (w *ChunkWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWriterClosed
	}
	return w.flushLocked(false)
}

// Close emits what is buffered, zero-padding a trailing partial frame, and
// then an end-of-stream chunk. Later writes fail with ErrWriterClosed.
func (w *ChunkWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.flushLocked(true); err != nil {
		return err
	}
	return w.emit(EndOfStream(w.timestampLocked()))
}

func (w *ChunkWriter) flushLocked(pad bool) error {
	n := w.pending.Length()
	if bpf := w.params.BytesPerFrame(); !pad {
		n -= n % bpf
	} else if rem := n % bpf; rem != 0 {
		if _, err := w.pending.Write(make([]byte, bpf-rem)); err != nil {
			return err
		}
		n += bpf - rem
	}
	if n == 0 {
		return nil
	}
	return w.emitLocked(n)
}

func (w *ChunkWriter) emitLocked(n int) error {
	buf := w.pool.Get(n)
	if _, err := w.pending.Read(buf.Bytes()); err != nil {
		buf.Release()
		return err
	}

	c := &Chunk{data: buf.Bytes(), buf: buf, timestamp: w.timestampLocked()}
	w.emitted += int64(n)
	return w.emit(c)
}

func (w *ChunkWriter) timestampLocked() float64 {
	bps := w.params.BytesPerSecond()
	if bps == 0 {
		return w.startTime
	}
	return w.startTime + float64(w.emitted)/float64(bps)
}
