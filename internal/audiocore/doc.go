// Package audiocore bridges application PCM buffers and a real-time audio
// device callback.
//
// # Components
//
//   - Chunk: immutable timestamped PCM payload, optionally backed by a pooled buffer
//   - ChunkQueue: bounded FIFO of chunks with a partial-consumption cursor
//   - FillBuffer: skip/copy/zero-fill from a queue into a device buffer
//   - DriftTracker: callback cadence drift estimate and catch-up skip
//   - StatusLatch: driver status flags latched as a readable condition
//   - Engine: the callback body tying the above together for one stream
//   - ChunkWriter: io.Writer that re-chunks arbitrary writes into fixed-size chunks
//
// # Concurrency
//
// ChunkQueue is safe for one producer and one consumer goroutine; Quit,
// Len and the other inspection methods may be called from anywhere.
// Engine.Process must only be called from the driver's callback thread.
// It never blocks longer than EngineConfig.CallbackWait and never panics
// across the callback boundary.
//
// # Buffer lifecycle
//
// A chunk pushed to a queue belongs to the queue. The queue releases it back
// to its BufferPool once the cursor has consumed every byte, or immediately
// if the push is rejected.
package audiocore
