package audiocore

import (
	"context"
	"sync"
	"time"
)

// ChunkQueue is a bounded FIFO of chunks with a cursor into the head chunk,
// so one chunk can satisfy several device periods and one period can span
// several chunks.
//
// Invariant: 0 <= CurOffset() <= CurBytes(), and the head chunk is retired
// exactly when the cursor reaches its length.
type ChunkQueue struct {
	mu       sync.Mutex
	notEmpty sync.Cond
	notFull  sync.Cond
	drained  sync.Cond

	capacity int
	pending  []*Chunk

	cur    *Chunk
	offset int

	unconsumed int

	quitting  bool
	eosQueued bool // an end-of-stream chunk has been accepted
	ended     bool // the end-of-stream chunk reached the head
}

// NewChunkQueue creates a queue holding at most capacity pending chunks.
// A capacity of 0 disables the bound.
func NewChunkQueue(capacity int) *ChunkQueue {
	if capacity < 0 {
		capacity = 0
	}
	q := &ChunkQueue{capacity: capacity}
	q.notEmpty.L = &q.mu
	q.notFull.L = &q.mu
	q.drained.L = &q.mu
	return q
}

// Push appends c, blocking while the queue is full. It returns false and
// releases c if the queue is quitting or has already accepted an
// end-of-stream chunk.
func (q *ChunkQueue) Push(c *Chunk) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.fullLocked() && !q.closedLocked() {
		q.notFull.Wait()
	}
	if q.closedLocked() {
		c.Release()
		return false
	}
	q.appendLocked(c)
	return true
}

// PushContext is Push bounded by ctx. It returns ErrQueueClosed if the
// queue stops accepting chunks and ctx.Err() on cancellation. c is
// released on any error.
func (q *ChunkQueue) PushContext(ctx context.Context, c *Chunk) error {
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.notFull.Broadcast()
		q.mu.Unlock()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()

	for q.fullLocked() && !q.closedLocked() && ctx.Err() == nil {
		q.notFull.Wait()
	}
	if q.closedLocked() {
		c.Release()
		return ErrQueueClosed
	}
	if err := ctx.Err(); err != nil {
		c.Release()
		return err
	}
	q.appendLocked(c)
	return nil
}

// TryPush appends c without blocking. It returns false and releases c if
// the queue is full or closed.
func (q *ChunkQueue) TryPush(c *Chunk) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.fullLocked() || q.closedLocked() {
		c.Release()
		return false
	}
	q.appendLocked(c)
	return true
}

func (q *ChunkQueue) appendLocked(c *Chunk) {
	if c.IsEOS() {
		q.eosQueued = true
	}
	q.pending = append(q.pending, c)
	q.unconsumed += c.Len()
	q.notEmpty.Broadcast()
}

func (q *ChunkQueue) fullLocked() bool {
	return q.capacity > 0 && len(q.pending) >= q.capacity
}

func (q *ChunkQueue) closedLocked() bool {
	return q.quitting || q.eosQueued
}

// nextLocked makes sure a head chunk with unread bytes is current, if one
// is available. An end-of-stream chunk arriving at the head ends the queue.
func (q *ChunkQueue) nextLocked() bool {
	if q.cur != nil {
		return true
	}
	if len(q.pending) == 0 {
		return false
	}

	c := q.pending[0]
	q.pending[0] = nil
	q.pending = q.pending[1:]
	q.notFull.Broadcast()

	if c.IsEOS() {
		// nothing can follow an accepted end-of-stream chunk
		c.Release()
		q.ended = true
		q.pending = nil
		q.drained.Broadcast()
		return false
	}
	q.cur = c
	q.offset = 0
	return true
}

// WaitNext blocks until a head chunk is available. It returns false once
// the queue is quit or ended with nothing left to read.
func (q *ChunkQueue) WaitNext() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		if q.nextLocked() {
			return true
		}
		if q.quitting || q.ended {
			return false
		}
		q.notEmpty.Wait()
	}
}

// PollNext is the non-blocking form of WaitNext.
func (q *ChunkQueue) PollNext() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.nextLocked()
}

// WaitNextTimeout waits at most d for a head chunk. d <= 0 polls.
func (q *ChunkQueue) WaitNextTimeout(d time.Duration) bool {
	if d <= 0 {
		return q.PollNext()
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.nextLocked() {
		return true
	}

	expired := false
	timer := time.AfterFunc(d, func() {
		q.mu.Lock()
		expired = true
		q.notEmpty.Broadcast()
		q.mu.Unlock()
	})
	defer timer.Stop()

	for {
		if q.nextLocked() {
			return true
		}
		if q.quitting || q.ended || expired {
			return false
		}
		q.notEmpty.Wait()
	}
}

// WaitNextContext is WaitNext bounded by ctx. It returns (false, nil) at end
// of stream and (false, ctx.Err()) on cancellation.
func (q *ChunkQueue) WaitNextContext(ctx context.Context) (bool, error) {
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.notEmpty.Broadcast()
		q.mu.Unlock()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		if q.nextLocked() {
			return true, nil
		}
		if q.quitting || q.ended {
			return false, nil
		}
		if err := ctx.Err(); err != nil {
			return false, err
		}
		q.notEmpty.Wait()
	}
}

// CurBuf returns the whole payload of the head chunk, or nil.
func (q *ChunkQueue) CurBuf() []byte {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.cur.Bytes()
}

// CurBytes returns the length of the head chunk, or 0.
func (q *ChunkQueue) CurBytes() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.cur.Len()
}

// CurOffset returns the cursor position inside the head chunk.
func (q *ChunkQueue) CurOffset() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.offset
}

// CurTimestamp returns the timestamp of the head chunk, or 0.
func (q *ChunkQueue) CurTimestamp() float64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.cur.Timestamp()
}

// Remaining returns the unread bytes of the head chunk. The slice stays
// valid until the consumer advances past it.
func (q *ChunkQueue) Remaining() []byte {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.cur == nil {
		return nil
	}
	return q.cur.data[q.offset:]
}

// IncOffset advances the cursor by n bytes, clamped to what is left in the
// head chunk, and returns the number of bytes actually advanced.
func (q *ChunkQueue) IncOffset(n int) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.cur == nil || n <= 0 {
		return 0
	}
	n = min(n, q.cur.Len()-q.offset)
	q.offset += n
	q.unconsumed -= n

	if q.offset == q.cur.Len() {
		q.cur.Release()
		q.cur = nil
		q.offset = 0
		q.drained.Broadcast()
	}
	return n
}

// Quit stops the queue. Waiters wake up, further pushes are dropped and
// chunks already queued remain readable. Quit is idempotent.
func (q *ChunkQueue) Quit() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.quitting {
		return
	}
	q.quitting = true
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
	q.drained.Broadcast()
}

// Quitting reports whether Quit has been called.
func (q *ChunkQueue) Quitting() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.quitting
}

func (q *ChunkQueue) doneLocked() bool {
	if q.nextLocked() {
		return false
	}
	return q.quitting || q.ended
}

// Done reports whether the queue is quit or ended and fully consumed.
func (q *ChunkQueue) Done() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.doneLocked()
}

// WaitDone blocks until Done would return true.
func (q *ChunkQueue) WaitDone() {
	q.mu.Lock()
	defer q.mu.Unlock()

	for !q.doneLocked() {
		q.drained.Wait()
	}
}

// WaitDoneContext is WaitDone bounded by ctx.
func (q *ChunkQueue) WaitDoneContext(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.drained.Broadcast()
		q.mu.Unlock()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()

	for !q.doneLocked() {
		if err := ctx.Err(); err != nil {
			return err
		}
		q.drained.Wait()
	}
	return nil
}

// Len returns the number of pending chunks, not counting the head chunk
// being consumed.
func (q *ChunkQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Unconsumed returns the bytes left in the head chunk plus all pending chunks.
func (q *ChunkQueue) Unconsumed() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.unconsumed
}

// Capacity returns the configured bound; 0 means unbounded.
func (q *ChunkQueue) Capacity() int {
	return q.capacity
}
