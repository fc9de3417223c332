// Package audioio is the control side of a real-time audio stream: it
// validates options, opens a driver stream whose callback runs an
// audiocore.Engine, and exposes push/pull, status and shutdown to
// application goroutines.
package audioio

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/audiobridge/internal/audiocore"
	"github.com/tphakala/audiobridge/internal/errors"
	"github.com/tphakala/audiobridge/internal/logger"
)

const componentAudioIO = "audioio"

// defaultStopSettle is the minimum pause between draining output and
// stopping the device, long enough for one more callback to run.
const defaultStopSettle = 20 * time.Millisecond

var (
	// ErrNoDirection is returned when neither input nor output options are given.
	ErrNoDirection = errors.NewStd("input and/or output options must be specified")

	// ErrSampleRateMismatch is returned when input and output rates differ.
	ErrSampleRateMismatch = errors.NewStd("input and output sample rates must match")

	// ErrStreamNotRunning is returned by operations that need a started stream.
	ErrStreamNotRunning = errors.NewStd("stream is not running")

	// ErrStreamClosed is returned once Stop has completed.
	ErrStreamClosed = errors.NewStd("stream is closed")

	// ErrDirectionNotOpen is returned for push/pull on a direction that was
	// not configured.
	ErrDirectionNotOpen = errors.NewStd("stream direction not configured")
)

// StopMode selects how Stop ends a stream.
type StopMode int

const (
	// StopGraceful drains queued output before stopping the device.
	StopGraceful StopMode = iota
	// StopAbort stops the device immediately.
	StopAbort
)

func (m StopMode) String() string {
	if m == StopAbort {
		return "abort"
	}
	return "graceful"
}

type streamState int32

const (
	stateOpen streamState = iota
	stateRunning
	stateClosed
)

func (s streamState) String() string {
	switch s {
	case stateRunning:
		return "running"
	case stateClosed:
		return "closed"
	}
	return "open"
}

// AudioIO is one open device stream with an optional input and output
// direction.
type AudioIO struct {
	ID uuid.UUID

	driverName      string
	inOpts, outOpts *Options
	inParams        *audiocore.StreamParams
	outParams       *audiocore.StreamParams
	inQ, outQ       *audiocore.ChunkQueue
	framesPerBuffer int

	engine *audiocore.Engine
	stream Stream

	pool           *audiocore.BufferPool
	log            logger.Logger
	metrics        RecorderProvider
	registry       *Registry
	callbackWait   time.Duration
	driftThreshold float64
	stopSettle     time.Duration

	// mu serializes Start and Stop
	mu        sync.Mutex
	state     atomic.Int32
	startedAt atomic.Pointer[time.Time]
}

// New validates the options and opens a stream on driver. At least one of
// in and out must be given; when both are, their sample rates must match.
// The stream is not started.
func New(driver Driver, in, out *Options, opts ...Option) (*AudioIO, error) {
	a := &AudioIO{
		ID:         uuid.New(),
		driverName: driver.Name(),
		stopSettle: -1,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.log == nil {
		a.log = logger.Global().Module(componentAudioIO)
	}
	a.log = a.log.With(logger.String("stream_id", a.ID.String()))
	if a.pool == nil {
		a.pool = audiocore.DefaultBufferPool()
	}

	if in == nil && out == nil {
		return nil, errors.New(ErrNoDirection).
			Component(componentAudioIO).
			Category(errors.CategoryValidation).
			Build()
	}

	cfg := StreamConfig{}
	if in != nil {
		p, err := in.validate("input")
		if err != nil {
			return nil, err
		}
		opt := *in
		a.inOpts, a.inParams = &opt, &p
		a.inQ = audiocore.NewChunkQueue(in.MaxQueue)
		cfg.Input = &DirectionConfig{DeviceID: in.DeviceID, Channels: p.Channels, Format: p.Format}
		cfg.SampleRate = p.SampleRate
	}
	if out != nil {
		p, err := out.validate("output")
		if err != nil {
			return nil, err
		}
		opt := *out
		a.outOpts, a.outParams = &opt, &p
		a.outQ = audiocore.NewChunkQueue(out.MaxQueue)
		cfg.Output = &DirectionConfig{DeviceID: out.DeviceID, Channels: p.Channels, Format: p.Format}
		cfg.SampleRate = p.SampleRate
	}
	if in != nil && out != nil && in.SampleRate != out.SampleRate {
		return nil, errors.New(ErrSampleRateMismatch).
			Component(componentAudioIO).
			Category(errors.CategoryValidation).
			Context("input_rate", in.SampleRate).
			Context("output_rate", out.SampleRate).
			Build()
	}

	// A zero on one side defers to the other; zero on both lets the driver pick.
	if in != nil {
		a.framesPerBuffer = in.FramesPerBuffer
	}
	if out != nil {
		a.framesPerBuffer = max(a.framesPerBuffer, out.FramesPerBuffer)
	}
	cfg.FramesPerBuffer = a.framesPerBuffer

	if a.inOpts != nil {
		a.log.Info("input options", logger.String("options", a.inOpts.String()))
	}
	if a.outOpts != nil {
		a.log.Info("output options", logger.String("options", a.outOpts.String()))
	}

	stream, err := driver.Open(cfg, a.process)
	if err != nil {
		return nil, errors.New(err).
			Component(componentAudioIO).
			Category(errors.CategoryAudioDevice).
			Context("driver", a.driverName).
			Context("operation", "open_stream").
			Build()
	}
	a.stream = stream

	var recorder audiocore.Recorder
	if a.metrics != nil {
		recorder = a.metrics.StreamRecorder(a.ID.String())
	}
	engine, err := audiocore.NewEngine(audiocore.EngineConfig{
		Input:          a.inParams,
		InputQueue:     a.inQ,
		Output:         a.outParams,
		OutputQueue:    a.outQ,
		InputLatency:   stream.InputLatency(),
		CallbackWait:   a.callbackWait,
		DriftThreshold: a.driftThreshold,
		Pool:           a.pool,
		Recorder:       recorder,
		Logger:         a.log,
	})
	if err != nil {
		_ = stream.Close()
		return nil, err
	}
	a.engine = engine

	if a.stopSettle < 0 {
		a.stopSettle = max(engine.CallbackPeriod(a.framesPerBuffer), defaultStopSettle)
	}

	if a.registry != nil {
		a.registry.add(a)
	}
	a.log.Info("stream opened",
		logger.String("driver", a.driverName),
		logger.Int("sample_rate", cfg.SampleRate),
		logger.Int("frames_per_buffer", a.framesPerBuffer),
		logger.Float64("input_latency_s", stream.InputLatency()))

	return a, nil
}

// process is the driver callback. The engine is set before Start can run.
func (a *AudioIO) process(input, output []byte, info audiocore.CallbackInfo) audiocore.CallbackResult {
	return a.engine.Process(input, output, info)
}

func (a *AudioIO) loadState() streamState {
	return streamState(a.state.Load())
}

// Running reports whether the device has been started and not yet stopped.
func (a *AudioIO) Running() bool {
	return a.loadState() == stateRunning
}

// Start resets drift tracking to the current stream time and starts the
// device.
func (a *AudioIO) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch a.loadState() {
	case stateRunning:
		return errors.New(errors.NewStd("stream already running")).
			Component(componentAudioIO).
			Category(errors.CategoryState).
			Build()
	case stateClosed:
		return errors.New(ErrStreamClosed).
			Component(componentAudioIO).
			Category(errors.CategoryState).
			Build()
	}

	a.engine.Reset(a.stream.Time())
	if err := a.stream.Start(); err != nil {
		return errors.New(err).
			Component(componentAudioIO).
			Category(errors.CategoryAudioDevice).
			Context("operation", "start_stream").
			Build()
	}

	now := time.Now()
	a.startedAt.Store(&now)
	a.state.Store(int32(stateRunning))
	a.log.Info("stream started")
	return nil
}

// Stop ends the stream and closes it; it is safe to call more than once.
//
// Both queues are quit first, so blocked producers and consumers return.
// A graceful stop then waits for queued output to play out, bounded by ctx,
// and lets one more callback run before stopping the device; if ctx ends
// first the device is aborted and the ctx error returned. An abort stops
// the device immediately.
func (a *AudioIO) Stop(ctx context.Context, mode StopMode) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	state := a.loadState()
	if state == stateClosed {
		return nil
	}
	start := time.Now()

	if a.inQ != nil {
		a.inQ.Quit()
	}
	var drainErr error
	if a.outQ != nil {
		a.outQ.Quit()
		if mode == StopGraceful && state == stateRunning {
			if err := a.outQ.WaitDoneContext(ctx); err != nil {
				drainErr = errors.New(err).
					Component(componentAudioIO).
					Context("operation", "drain_output").
					Context("unconsumed_bytes", a.outQ.Unconsumed()).
					Build()
				a.log.Warn("output did not drain, aborting", logger.Error(drainErr))
				mode = StopAbort
			}
		}
	}

	var stopErr error
	if state == stateRunning {
		if mode == StopGraceful {
			a.settle(ctx)
			stopErr = a.stream.Stop()
		} else {
			stopErr = a.stream.Abort()
		}
		if stopErr != nil {
			stopErr = errors.New(stopErr).
				Component(componentAudioIO).
				Category(errors.CategoryAudioDevice).
				Context("operation", "stop_stream").
				Context("mode", mode.String()).
				Build()
		}
	}

	closeErr := a.stream.Close()
	if closeErr != nil {
		closeErr = errors.New(closeErr).
			Component(componentAudioIO).
			Category(errors.CategoryAudioDevice).
			Context("operation", "close_stream").
			Build()
	}

	a.state.Store(int32(stateClosed))
	if a.registry != nil {
		a.registry.remove(a.ID)
	}
	a.log.Info("stream stopped",
		logger.String("mode", mode.String()),
		logger.Duration("elapsed", time.Since(start)))

	return errors.Join(drainErr, stopErr, closeErr)
}

// settle waits for one more callback period, or until ctx is done.
func (a *AudioIO) settle(ctx context.Context) {
	if a.stopSettle <= 0 {
		return
	}
	t := time.NewTimer(a.stopSettle)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// PullInput reads up to maxBytes of captured audio, blocking until that
// much is available, input finishes, or ctx is done. The chunk is trimmed
// to the bytes read and nil when nothing was read; finished reports that no
// more input will arrive. The caller must Release the chunk.
func (a *AudioIO) PullInput(ctx context.Context, maxBytes int) (*audiocore.Chunk, bool, error) {
	if a.inQ == nil {
		return nil, true, a.directionError("input", "pull_input")
	}
	if a.loadState() == stateOpen {
		return nil, false, errors.New(ErrStreamNotRunning).
			Component(componentAudioIO).
			Category(errors.CategoryState).
			Context("operation", "pull_input").
			Build()
	}
	if err := a.ErrorStatus(true); err != nil {
		return nil, false, err
	}

	chunk, finished, err := audiocore.PullChunk(ctx, a.inQ, a.pool, maxBytes, a.inParams.BytesPerSecond())
	if err != nil {
		err = errors.New(err).
			Component(componentAudioIO).
			Context("operation", "pull_input").
			Build()
	}
	return chunk, finished, err
}

// PushOutput queues c for playback, blocking while the output queue is full.
// A zero-length chunk marks the end of output. The queue takes ownership of
// c, including on error.
func (a *AudioIO) PushOutput(ctx context.Context, c *audiocore.Chunk) error {
	if a.outQ == nil {
		c.Release()
		return a.directionError("output", "push_output")
	}
	if err := a.ErrorStatus(false); err != nil {
		c.Release()
		return err
	}
	if a.loadState() == stateClosed {
		c.Release()
		return errors.New(ErrStreamClosed).
			Component(componentAudioIO).
			Category(errors.CategoryState).
			Context("operation", "push_output").
			Build()
	}

	if err := a.outQ.PushContext(ctx, c); err != nil {
		cat := errors.CategoryState
		if !errors.Is(err, audiocore.ErrQueueClosed) {
			cat = ""
		}
		return errors.New(err).
			Component(componentAudioIO).
			Category(cat).
			Context("operation", "push_output").
			Build()
	}
	return nil
}

// ErrorStatus returns the latched device condition for a direction as an
// error when that direction has CloseOnError set. Otherwise the condition
// is logged. Either way it is cleared.
func (a *AudioIO) ErrorStatus(isInput bool) error {
	opts, dir := a.outOpts, "output"
	if isInput {
		opts, dir = a.inOpts, "input"
	}
	if opts == nil {
		return nil
	}

	msg := a.engine.TakeStatus(isInput)
	if msg == "" {
		return nil
	}
	if opts.CloseOnError {
		return errors.New(errors.NewStd(msg)).
			Component(componentAudioIO).
			Category(errors.CategoryAudioDevice).
			Build()
	}
	a.log.Warn("audio device status",
		logger.String("direction", dir),
		logger.String("status", msg))
	return nil
}

func (a *AudioIO) directionError(direction, operation string) error {
	return errors.New(fmt.Errorf("%w: %s", ErrDirectionNotOpen, direction)).
		Component(componentAudioIO).
		Category(errors.CategoryState).
		Context("operation", operation).
		Build()
}

// FramesPerBuffer returns the requested callback period in frames, 0 when
// the driver chose.
func (a *AudioIO) FramesPerBuffer() int {
	return a.framesPerBuffer
}

// InputParams returns the input layout, or nil without input.
func (a *AudioIO) InputParams() *audiocore.StreamParams {
	return a.inParams
}

// OutputParams returns the output layout, or nil without output.
func (a *AudioIO) OutputParams() *audiocore.StreamParams {
	return a.outParams
}

// Reader returns an io.Reader over captured input. Each Read blocks until
// len(p) bytes are available or input finishes; io.EOF follows the last
// data.
func (a *AudioIO) Reader(ctx context.Context) io.Reader {
	return &inputReader{ctx: ctx, a: a}
}

type inputReader struct {
	ctx context.Context
	a   *AudioIO
	eof bool
}

func (r *inputReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if r.eof {
		return 0, io.EOF
	}

	c, finished, err := r.a.PullInput(r.ctx, len(p))
	if finished {
		r.eof = true
	}
	if c == nil {
		if err == nil {
			err = io.EOF
		}
		return 0, err
	}
	n := copy(p, c.Bytes())
	c.Release()
	return n, err
}

// Writer returns a ChunkWriter that re-chunks writes into chunkDuration
// pieces for output. Close queues the tail and the end-of-stream marker.
// A chunkDuration of 0 uses one callback period.
func (a *AudioIO) Writer(ctx context.Context, chunkDuration time.Duration) (*audiocore.ChunkWriter, error) {
	if a.outQ == nil {
		return nil, a.directionError("output", "writer")
	}
	if chunkDuration <= 0 {
		chunkDuration = max(a.engine.CallbackPeriod(a.framesPerBuffer), defaultStopSettle)
	}
	return audiocore.NewChunkWriter(audiocore.ChunkWriterConfig{
		Params:        *a.outParams,
		ChunkDuration: chunkDuration,
		Pool:          a.pool,
		Emit: func(c *audiocore.Chunk) error {
			return a.PushOutput(ctx, c)
		},
	})
}

// DirectionSnapshot is the observable state of one direction.
type DirectionSnapshot struct {
	Channels        int    `json:"channels"`
	Format          string `json:"format"`
	QueuedChunks    int    `json:"queued_chunks"`
	UnconsumedBytes int    `json:"unconsumed_bytes"`
	Capacity        int    `json:"capacity"`
	Done            bool   `json:"done"`
	Status          string `json:"status,omitempty"`
}

// Snapshot is the observable state of a stream.
type Snapshot struct {
	ID              string             `json:"id"`
	Driver          string             `json:"driver"`
	State           string             `json:"state"`
	SampleRate      int                `json:"sample_rate"`
	FramesPerBuffer int                `json:"frames_per_buffer"`
	DriftMs         float64            `json:"drift_ms"`
	StartedAt       *time.Time         `json:"started_at,omitempty"`
	Input           *DirectionSnapshot `json:"input,omitempty"`
	Output          *DirectionSnapshot `json:"output,omitempty"`
}

// Snapshot returns the current state without disturbing the stream; latched
// status is peeked, not cleared.
func (a *AudioIO) Snapshot() Snapshot {
	s := Snapshot{
		ID:              a.ID.String(),
		Driver:          a.driverName,
		State:           a.loadState().String(),
		FramesPerBuffer: a.framesPerBuffer,
		DriftMs:         a.engine.DriftMs(),
		StartedAt:       a.startedAt.Load(),
	}
	if a.inParams != nil {
		s.SampleRate = a.inParams.SampleRate
		s.Input = a.directionSnapshot(a.inParams, a.inQ, true)
	}
	if a.outParams != nil {
		s.SampleRate = a.outParams.SampleRate
		s.Output = a.directionSnapshot(a.outParams, a.outQ, false)
	}
	return s
}

func (a *AudioIO) directionSnapshot(p *audiocore.StreamParams, q *audiocore.ChunkQueue, isInput bool) *DirectionSnapshot {
	return &DirectionSnapshot{
		Channels:        p.Channels,
		Format:          p.Format.String(),
		QueuedChunks:    q.Len(),
		UnconsumedBytes: q.Unconsumed(),
		Capacity:        q.Capacity(),
		Done:            q.Done(),
		Status:          a.engine.PeekStatus(isInput),
	}
}
