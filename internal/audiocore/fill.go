package audiocore

import (
	"context"
	"time"
)

// FillResult reports what a single FillBuffer call did.
type FillResult struct {
	Copied    int     // bytes written to the destination from the queue
	Skipped   int     // bytes consumed from the queue without being written
	Finished  bool    // the queue is quit or ended and fully consumed
	Starved   bool    // ran dry while the queue was still live; the rest was zero-filled
	Timestamp float64 // timestamp of the first chunk copied from, 0 if none
	Offset    int     // byte offset into that chunk where copying began
}

// FillBuffer first discards skip bytes from q, then copies from q into dst
// across chunk boundaries. When q has nothing more to give, the rest of dst
// is zero-filled.
//
// wait selects how long to wait for a chunk that has not arrived yet:
// negative blocks until data or quit, zero polls, positive bounds the wait.
func FillBuffer(dst []byte, q *ChunkQueue, skip int, wait time.Duration) FillResult {
	var next func() bool
	switch {
	case wait < 0:
		next = q.WaitNext
	case wait == 0:
		next = q.PollNext
	default:
		next = func() bool { return q.WaitNextTimeout(wait) }
	}
	return fill(dst, q, skip, next)
}

func fill(dst []byte, q *ChunkQueue, skip int, next func() bool) FillResult {
	var res FillResult
	off := 0

	for skip > 0 || off < len(dst) {
		if !next() {
			clear(dst[off:])
			if q.Done() {
				res.Finished = true
			} else {
				res.Starved = true
			}
			return res
		}

		avail := q.Remaining()
		if skip > 0 {
			n := q.IncOffset(min(skip, len(avail)))
			skip -= n
			res.Skipped += n
			continue
		}

		if off == 0 {
			res.Timestamp = q.CurTimestamp()
		}
		n := copy(dst[off:], avail)
		q.IncOffset(n)
		off += n
		res.Copied += n
	}

	// an exact final fill still reports completion
	res.Finished = q.Done()
	return res
}

// PullChunk reads up to maxBytes from q into a new pooled chunk, blocking
// until maxBytes are available, the queue finishes, or ctx is done. The
// chunk is trimmed to the bytes read; nil is returned when nothing was read.
// finished reports that q will yield no more data.
//
// The chunk timestamp is that of the first byte read: when the read starts
// inside a queued chunk, the bytes already consumed from it are converted to
// seconds with bytesPerSecond and added. A non-positive bytesPerSecond keeps
// the queued chunk's timestamp as is.
func PullChunk(ctx context.Context, q *ChunkQueue, pool *BufferPool, maxBytes, bytesPerSecond int) (chunk *Chunk, finished bool, err error) {
	if maxBytes <= 0 {
		return nil, q.Done(), nil
	}
	if pool == nil {
		pool = DefaultBufferPool()
	}

	buf := pool.Get(maxBytes)
	c := &Chunk{data: buf.Bytes(), buf: buf}

	next := func() bool {
		ok, waitErr := q.WaitNextContext(ctx)
		if waitErr != nil {
			err = waitErr
		}
		return ok
	}

	res := fill(c.data, q, 0, next)
	if res.Copied == 0 {
		c.Release()
		return nil, res.Finished, err
	}

	c.trim(res.Copied)
	c.timestamp = res.Timestamp
	if bytesPerSecond > 0 && res.Offset > 0 {
		c.timestamp += float64(res.Offset) / float64(bytesPerSecond)
	}
	return c, res.Finished, err
}
