package audioio

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/tphakala/audiobridge/internal/audiocore"
	"github.com/tphakala/audiobridge/internal/errors"
)

// fakeDriver opens fakeStreams that invoke the callback from a goroutine
// every millisecond. The stream clock advances exactly one period per
// callback, so drift stays at zero however the goroutine is scheduled.
type fakeDriver struct {
	openErr error
	frames  int
	latency float64
	// paused streams never invoke the callback
	paused bool

	mu      sync.Mutex
	lastCfg StreamConfig
	streams []*fakeStream
}

func (d *fakeDriver) Name() string { return "fake" }

func (d *fakeDriver) Devices() ([]DeviceInfo, error) {
	return []DeviceInfo{
		{Index: 0, Name: "fake in", MaxInputChannels: 2, DefaultInput: true},
		{Index: 1, Name: "fake out", MaxOutputChannels: 2, DefaultOutput: true},
	}, nil
}

func (d *fakeDriver) Open(cfg StreamConfig, cb Callback) (Stream, error) {
	if d.openErr != nil {
		return nil, d.openErr
	}
	frames := cfg.FramesPerBuffer
	if frames == 0 {
		frames = d.frames
	}
	if frames == 0 {
		frames = 64
	}
	s := &fakeStream{
		cfg:     cfg,
		cb:      cb,
		frames:  frames,
		latency: d.latency,
		paused:  d.paused,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	d.mu.Lock()
	d.lastCfg = cfg
	d.streams = append(d.streams, s)
	d.mu.Unlock()
	return s, nil
}

func (d *fakeDriver) stream(i int) *fakeStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.streams[i]
}

type fakeStream struct {
	cfg     StreamConfig
	cb      Callback
	frames  int
	latency float64
	paused  bool

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	started   atomic.Bool
	stopped   atomic.Bool
	aborted   atomic.Bool
	closed    atomic.Bool
	completed atomic.Bool
	callbacks atomic.Int64

	mu      sync.Mutex
	played  []byte
	counter byte
}

func bytesFor(d *DirectionConfig, frames int) int {
	if d == nil {
		return 0
	}
	return frames * d.Channels * d.Format.BytesPerSample()
}

func (s *fakeStream) Start() error {
	if s.started.Swap(true) {
		return errors.NewStd("already started")
	}
	go s.run()
	return nil
}

func (s *fakeStream) run() {
	defer close(s.done)
	if s.paused {
		<-s.stop
		return
	}

	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
		}

		var in, out []byte
		if n := bytesFor(s.cfg.Input, s.frames); n > 0 {
			in = make([]byte, n)
			for i := range in {
				in[i] = s.counter
				s.counter++
			}
		}
		if n := bytesFor(s.cfg.Output, s.frames); n > 0 {
			out = make([]byte, n)
		}

		now := float64(s.callbacks.Add(1)) * s.period()
		res := s.cb(in, out, audiocore.CallbackInfo{Frames: s.frames, CurrentTime: now})

		if out != nil {
			s.mu.Lock()
			s.played = append(s.played, out...)
			s.mu.Unlock()
		}
		if res == audiocore.Complete {
			s.completed.Store(true)
			return
		}
	}
}

func (s *fakeStream) halt() {
	s.stopOnce.Do(func() { close(s.stop) })
	if s.started.Load() {
		<-s.done
	}
}

func (s *fakeStream) Stop() error {
	s.stopped.Store(true)
	s.halt()
	return nil
}

func (s *fakeStream) Abort() error {
	s.aborted.Store(true)
	s.halt()
	return nil
}

func (s *fakeStream) Close() error {
	s.closed.Store(true)
	s.halt()
	return nil
}

func (s *fakeStream) period() float64 {
	return float64(s.frames) / float64(s.cfg.SampleRate)
}

func (s *fakeStream) Time() float64 {
	return float64(s.callbacks.Load()) * s.period()
}

func (s *fakeStream) InputLatency() float64 { return s.latency }

func (s *fakeStream) playedBytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.played...)
}
