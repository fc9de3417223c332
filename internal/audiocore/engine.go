package audiocore

import (
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/tphakala/audiobridge/internal/errors"
	"github.com/tphakala/audiobridge/internal/logger"
)

// CallbackInfo carries the per-callback values a driver reports. Times are
// device-clock seconds; zero means unknown.
type CallbackInfo struct {
	Frames        int
	InputADCTime  float64
	CurrentTime   float64
	OutputDACTime float64
	Flags         StatusFlags
}

// CallbackResult tells the driver whether to keep the stream running.
type CallbackResult int

const (
	Continue CallbackResult = iota
	Complete
)

func (r CallbackResult) String() string {
	if r == Complete {
		return "complete"
	}
	return "continue"
}

// EngineConfig configures one stream. At least one of Input and Output must
// be set, each with its queue.
type EngineConfig struct {
	Input       *StreamParams
	InputQueue  *ChunkQueue
	Output      *StreamParams
	OutputQueue *ChunkQueue

	// InputLatency in seconds, used when the driver gives no ADC time.
	InputLatency float64

	// CallbackWait bounds how long Process waits for an output chunk that
	// has not arrived. Zero or negative polls.
	CallbackWait time.Duration

	// DriftThreshold in callback periods; <= 0 selects DefaultDriftThreshold.
	DriftThreshold float64

	Pool     *BufferPool
	Recorder Recorder
	Logger   logger.Logger
}

// Engine is the real-time callback body of one stream: it turns device
// input buffers into queued chunks and fills device output buffers from
// queued chunks, skipping backlog when callbacks fall behind.
type Engine struct {
	in, out       *StreamParams
	inQ, outQ     *ChunkQueue
	inputLatency  float64
	callbackWait  time.Duration
	sampleRate    int
	pool          *BufferPool
	recorder      Recorder
	log           logger.Logger
	warnLimit     *rate.Limiter
	drift         *DriftTracker
	inStatus      StatusLatch
	outStatus     StatusLatch
	driftSnapshot atomic.Uint64 // math.Float64bits of the last drift estimate
}

// NewEngine validates cfg and returns an engine ready for Reset and Process.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Input == nil && cfg.Output == nil {
		return nil, validationError(errors.NewStd("engine needs an input or an output"), "new_engine").Build()
	}
	if (cfg.Input != nil) != (cfg.InputQueue != nil) || (cfg.Output != nil) != (cfg.OutputQueue != nil) {
		return nil, validationError(errors.NewStd("each configured direction needs params and a queue"), "new_engine").Build()
	}

	e := &Engine{
		in:           cfg.Input,
		out:          cfg.Output,
		inQ:          cfg.InputQueue,
		outQ:         cfg.OutputQueue,
		inputLatency: cfg.InputLatency,
		callbackWait: max(cfg.CallbackWait, 0),
		pool:         cfg.Pool,
		recorder:     cfg.Recorder,
		log:          cfg.Logger,
		warnLimit:    rate.NewLimiter(rate.Every(5*time.Second), 1),
		drift:        NewDriftTracker(cfg.DriftThreshold),
	}

	for _, p := range []*StreamParams{e.in, e.out} {
		if p == nil {
			continue
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		e.sampleRate = p.SampleRate
	}
	if e.in != nil && e.out != nil && e.in.SampleRate != e.out.SampleRate {
		return nil, validationError(fmt.Errorf("input rate %d differs from output rate %d", e.in.SampleRate, e.out.SampleRate), "new_engine").
			Context("input_rate", e.in.SampleRate).
			Context("output_rate", e.out.SampleRate).
			Build()
	}

	if e.pool == nil {
		e.pool = DefaultBufferPool()
	}
	if e.recorder == nil {
		e.recorder = NopRecorder{}
	}
	if e.log == nil {
		e.log = logger.Global().Module("audiocore")
	}

	return e, nil
}

// Reset clears drift state, taking now as the previous callback time. Call
// it right before the driver starts invoking Process.
func (e *Engine) Reset(now float64) {
	e.drift.Reset(now)
	e.driftSnapshot.Store(0)
}

// Process is the callback body. input and output are the driver buffers
// for this period; either may be nil for a missing direction. It never
// panics and never blocks longer than the configured CallbackWait.
func (e *Engine) Process(input, output []byte, info CallbackInfo) (result CallbackResult) {
	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("%sengine panic: %v", StatusPrefix, r)
			e.inStatus.Latch(msg)
			e.outStatus.Latch(msg)
			clear(output)
			result = Complete
		}
	}()

	e.recorder.RecordCallback()
	if info.Flags != 0 {
		e.latchFlags(info.Flags)
	}

	timestamp := info.InputADCTime
	if timestamp <= 0 {
		timestamp = info.CurrentTime - e.inputLatency
	}

	bytesToSkip := 0
	msToSkip := e.drift.Update(info.CurrentTime, info.Frames, e.sampleRate)
	e.driftSnapshot.Store(math.Float64bits(e.drift.DriftMs()))
	e.recorder.SetDrift(e.drift.DriftMs())
	if msToSkip > 0 && e.out != nil {
		bytesToSkip = SkipBytes(msToSkip, *e.out)
		e.recorder.RecordDriftCorrection(msToSkip)
		if e.warnLimit.Allow() {
			e.log.Debug("skipping late output",
				logger.Float64("skip_ms", msToSkip),
				logger.Int("skip_bytes", bytesToSkip))
		}
	}

	inActive, outActive := false, false

	if e.in != nil {
		inActive = e.capture(input, info.Frames, timestamp)
	}
	if e.out != nil {
		outActive = e.playback(output, info.Frames, bytesToSkip)
	}

	if inActive || outActive {
		return Continue
	}
	return Complete
}

func (e *Engine) capture(input []byte, frames int, timestamp float64) bool {
	n := min(e.in.BytesFor(frames), len(input))
	if n > 0 {
		chunk := NewPooledChunk(e.pool, input[:n], timestamp)
		if e.inQ.TryPush(chunk) {
			e.recorder.RecordBytes(DirectionInput, n, 0)
		} else if !e.inQ.Quitting() {
			e.inStatus.Latch(StatusPrefix + "input queue overflow")
			e.recorder.RecordDroppedChunk(DirectionInput)
			if e.warnLimit.Allow() {
				e.log.Warn("input queue full, dropping captured audio",
					logger.Int("capacity", e.inQ.Capacity()))
			}
		}
	}
	e.recorder.SetQueueDepth(DirectionInput, e.inQ.Len(), e.inQ.Unconsumed())
	return !e.inQ.Quitting()
}

func (e *Engine) playback(output []byte, frames int, bytesToSkip int) bool {
	n := min(e.out.BytesFor(frames), len(output))
	res := FillBuffer(output[:n], e.outQ, bytesToSkip, e.callbackWait)
	clear(output[n:])

	e.recorder.RecordBytes(DirectionOutput, res.Copied, res.Skipped)
	e.recorder.SetQueueDepth(DirectionOutput, e.outQ.Len(), e.outQ.Unconsumed())
	if res.Starved {
		e.recorder.RecordUnderrun()
	}
	return !res.Finished
}

func (e *Engine) latchFlags(f StatusFlags) {
	for _, name := range f.Names() {
		e.recorder.RecordStatusFlag(name)
	}
	e.inStatus.LatchFlags(f.Input())
	e.outStatus.LatchFlags(f.Output())
}

// TakeStatus returns and clears the latched condition for one direction.
func (e *Engine) TakeStatus(isInput bool) string {
	if isInput {
		return e.inStatus.Take()
	}
	return e.outStatus.Take()
}

// PeekStatus returns the latched condition without clearing it.
func (e *Engine) PeekStatus(isInput bool) string {
	if isInput {
		return e.inStatus.Peek()
	}
	return e.outStatus.Peek()
}

// DriftMs returns the drift estimate after the most recent callback. Safe
// to call from any goroutine.
func (e *Engine) DriftMs() float64 {
	return math.Float64frombits(e.driftSnapshot.Load())
}

// CallbackPeriod returns the duration of frames frames at the stream rate.
func (e *Engine) CallbackPeriod(frames int) time.Duration {
	if e.sampleRate <= 0 || frames <= 0 {
		return 0
	}
	return time.Duration(float64(frames) / float64(e.sampleRate) * float64(time.Second))
}
