package audiocore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bytesOfLen(n int, fill byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = fill
	}
	return b
}

func TestChunkQueueCursorInvariant(t *testing.T) {
	t.Parallel()

	q := NewChunkQueue(0)
	sizes := []int{7, 1, 13, 4}
	total := 0
	for i, n := range sizes {
		require.True(t, q.Push(NewChunk(bytesOfLen(n, byte(i)), 0)))
		total += n
	}
	assert.Equal(t, total, q.Unconsumed())

	steps := []int{3, 5, 0, 2, 20, 1, 9, 100}
	consumed := 0
	for _, step := range steps {
		if !q.PollNext() {
			break
		}
		before := q.CurBytes()
		n := q.IncOffset(step)
		consumed += n

		assert.LessOrEqual(t, n, step)
		off, size := q.CurOffset(), q.CurBytes()
		assert.GreaterOrEqual(t, off, 0)
		assert.LessOrEqual(t, off, size)
		if size > 0 {
			assert.Less(t, off, size, "a chunk whose cursor reached its length must be retired")
		} else {
			assert.Equal(t, 0, off)
			assert.Positive(t, before)
		}
		assert.Equal(t, total-consumed, q.Unconsumed())
	}
	assert.Equal(t, total, consumed)
	assert.False(t, q.PollNext())
}

func TestChunkQueueIncOffsetClamps(t *testing.T) {
	t.Parallel()

	q := NewChunkQueue(0)
	q.Push(NewChunk(bytesOfLen(10, 1), 0))
	q.Push(NewChunk(bytesOfLen(10, 2), 0))

	require.True(t, q.PollNext())
	assert.Equal(t, 4, q.IncOffset(4))
	assert.Equal(t, 6, q.IncOffset(50), "advance is clamped to the head chunk")
	assert.Equal(t, 0, q.CurBytes(), "head retired")
	assert.Equal(t, 0, q.IncOffset(-3))

	require.True(t, q.PollNext())
	assert.Equal(t, []byte{2, 2, 2, 2, 2, 2, 2, 2, 2, 2}, q.CurBuf())
}

func TestChunkQueueFIFO(t *testing.T) {
	t.Parallel()

	q := NewChunkQueue(0)
	for i := range 5 {
		q.Push(NewChunk([]byte{byte(i)}, float64(i)))
	}

	for i := range 5 {
		require.True(t, q.PollNext())
		assert.Equal(t, []byte{byte(i)}, q.Remaining())
		assert.InDelta(t, float64(i), q.CurTimestamp(), 0)
		q.IncOffset(1)
	}
}

func TestChunkQueueQuitDropsPushesKeepsData(t *testing.T) {
	t.Parallel()

	pool := NewBufferPool(testPoolConfig())
	q := NewChunkQueue(0)
	require.True(t, q.Push(NewChunk(bytesOfLen(8, 1), 0)))

	q.Quit()
	q.Quit() // idempotent

	assert.False(t, q.Push(NewPooledChunk(pool, bytesOfLen(8, 2), 0)))
	assert.False(t, q.TryPush(NewPooledChunk(pool, bytesOfLen(8, 2), 0)))
	require.ErrorIs(t, q.PushContext(t.Context(), NewPooledChunk(pool, bytesOfLen(8, 2), 0)), ErrQueueClosed)
	assert.Equal(t, int64(0), pool.Stats().ActiveBuffers, "rejected chunks are released")

	assert.False(t, q.Done(), "queued data survives quit")
	require.True(t, q.WaitNext())
	q.IncOffset(8)
	assert.False(t, q.WaitNext())
	assert.True(t, q.Done())
}

func TestChunkQueueWaitNextUnblocksOnQuit(t *testing.T) {
	t.Parallel()

	q := NewChunkQueue(0)
	result := make(chan bool)
	go func() { result <- q.WaitNext() }()

	time.Sleep(10 * time.Millisecond)
	q.Quit()

	select {
	case ok := <-result:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("WaitNext did not return after Quit")
	}
	assert.Empty(t, q.CurBuf())
	assert.Equal(t, 0, q.CurBytes())
}

func TestChunkQueueWaitNextWakesOnPush(t *testing.T) {
	t.Parallel()

	q := NewChunkQueue(0)
	result := make(chan bool)
	go func() { result <- q.WaitNext() }()

	time.Sleep(10 * time.Millisecond)
	q.Push(NewChunk([]byte{1, 2}, 0))

	select {
	case ok := <-result:
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("WaitNext did not wake on push")
	}
}

func TestChunkQueueWaitNextTimeout(t *testing.T) {
	t.Parallel()

	q := NewChunkQueue(0)

	start := time.Now()
	assert.False(t, q.WaitNextTimeout(20*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	assert.False(t, q.WaitNextTimeout(0), "zero polls")

	go func() {
		time.Sleep(5 * time.Millisecond)
		q.Push(NewChunk([]byte{1}, 0))
	}()
	assert.True(t, q.WaitNextTimeout(time.Second))
}

func TestChunkQueueWaitNextContext(t *testing.T) {
	t.Parallel()

	q := NewChunkQueue(0)
	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	ok, err := q.WaitNextContext(ctx)
	assert.False(t, ok)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	q.Quit()
	ok, err = q.WaitNextContext(t.Context())
	assert.False(t, ok)
	assert.NoError(t, err)
}

func TestChunkQueueCapacityBlocksPush(t *testing.T) {
	t.Parallel()

	q := NewChunkQueue(2)
	require.True(t, q.Push(NewChunk([]byte{1}, 0)))
	require.True(t, q.Push(NewChunk([]byte{2}, 0)))
	assert.False(t, q.TryPush(NewChunk([]byte{3}, 0)), "full")
	assert.Equal(t, 2, q.Len())
	assert.Equal(t, 2, q.Capacity())

	pushed := make(chan bool)
	go func() { pushed <- q.Push(NewChunk([]byte{3}, 0)) }()

	select {
	case <-pushed:
		t.Fatal("Push returned while the queue was full")
	case <-time.After(20 * time.Millisecond):
	}

	require.True(t, q.PollNext()) // head moves out of pending, freeing a slot
	select {
	case ok := <-pushed:
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Push did not unblock after space was freed")
	}
}

func TestChunkQueuePushUnblocksOnQuitAndCancel(t *testing.T) {
	t.Parallel()

	t.Run("quit", func(t *testing.T) {
		t.Parallel()
		q := NewChunkQueue(1)
		q.Push(NewChunk([]byte{1}, 0))

		pushed := make(chan bool)
		go func() { pushed <- q.Push(NewChunk([]byte{2}, 0)) }()
		time.Sleep(10 * time.Millisecond)
		q.Quit()

		select {
		case ok := <-pushed:
			assert.False(t, ok)
		case <-time.After(time.Second):
			t.Fatal("Push did not unblock on Quit")
		}
	})

	t.Run("context", func(t *testing.T) {
		t.Parallel()
		q := NewChunkQueue(1)
		q.Push(NewChunk([]byte{1}, 0))

		ctx, cancel := context.WithCancel(t.Context())
		errCh := make(chan error)
		go func() { errCh <- q.PushContext(ctx, NewChunk([]byte{2}, 0)) }()
		time.Sleep(10 * time.Millisecond)
		cancel()

		select {
		case err := <-errCh:
			require.ErrorIs(t, err, context.Canceled)
		case <-time.After(time.Second):
			t.Fatal("PushContext did not unblock on cancel")
		}
		assert.Equal(t, 1, q.Len())
	})
}

func TestChunkQueueEndOfStream(t *testing.T) {
	t.Parallel()

	q := NewChunkQueue(0)
	require.True(t, q.Push(NewChunk([]byte{1, 2, 3}, 0)))
	require.True(t, q.Push(EndOfStream(0)))
	assert.False(t, q.Push(NewChunk([]byte{4}, 0)), "nothing is accepted after end of stream")

	require.True(t, q.WaitNext())
	assert.False(t, q.Done())
	q.IncOffset(3)

	assert.False(t, q.WaitNext(), "end of stream reached")
	assert.True(t, q.Done())
	assert.Equal(t, 0, q.Unconsumed())
}

func TestChunkQueueWaitDrainsBeforeDone(t *testing.T) {
	t.Parallel()

	q := NewChunkQueue(0)
	for range 4 {
		q.Push(NewChunk(bytesOfLen(16, 7), 0))
	}
	q.Quit()

	var wg sync.WaitGroup
	wg.Go(func() {
		dst := make([]byte, 10)
		for !q.Done() {
			FillBuffer(dst, q, 0, 0)
			time.Sleep(time.Millisecond)
		}
	})

	ctx, cancel := context.WithTimeout(t.Context(), 2*time.Second)
	defer cancel()
	require.NoError(t, q.WaitDoneContext(ctx))
	assert.Equal(t, 0, q.Unconsumed())
	wg.Wait()

	q.WaitDone() // returns immediately once done
}

func TestChunkQueueWaitDoneContextCancel(t *testing.T) {
	t.Parallel()

	q := NewChunkQueue(0)
	q.Push(NewChunk([]byte{1}, 0))
	q.Quit()

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, q.WaitDoneContext(ctx), context.DeadlineExceeded)
	assert.Equal(t, 1, q.Unconsumed())
}
