package bridge

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/tphakala/audiobridge/internal/audiocore"
	"github.com/tphakala/audiobridge/internal/audioio"
)

// fakeDriver runs the callback every millisecond from a goroutine with a
// stream clock that advances one period per callback. Input is a running
// byte counter.
type fakeDriver struct {
	mu      sync.Mutex
	streams []*fakeStream
}

func (d *fakeDriver) Name() string { return "fake" }

func (d *fakeDriver) Devices() ([]audioio.DeviceInfo, error) {
	return []audioio.DeviceInfo{
		{Index: 0, Name: "fake duplex", MaxInputChannels: 2, MaxOutputChannels: 2, DefaultInput: true, DefaultOutput: true},
	}, nil
}

func (d *fakeDriver) Open(cfg audioio.StreamConfig, cb audioio.Callback) (audioio.Stream, error) {
	frames := cfg.FramesPerBuffer
	if frames == 0 {
		frames = 64
	}
	s := &fakeStream{cfg: cfg, cb: cb, frames: frames, stop: make(chan struct{}), done: make(chan struct{})}
	d.mu.Lock()
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
	cfg    audioio.StreamConfig
	cb     audioio.Callback
	frames int

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	started   atomic.Bool
	aborted   atomic.Bool
	completed atomic.Bool
	callbacks atomic.Int64

	mu      sync.Mutex
	played  []byte
	counter byte
}

func frameBytes(d *audioio.DirectionConfig, frames int) int {
	if d == nil {
		return 0
	}
	return frames * d.Channels * d.Format.BytesPerSample()
}

func (s *fakeStream) Start() error {
	s.started.Store(true)
	go s.run()
	return nil
}

func (s *fakeStream) run() {
	defer close(s.done)
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
		}

		var in, out []byte
		if n := frameBytes(s.cfg.Input, s.frames); n > 0 {
			in = make([]byte, n)
			for i := range in {
				s.counter++
				in[i] = s.counter
			}
		}
		if n := frameBytes(s.cfg.Output, s.frames); n > 0 {
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

func (s *fakeStream) Stop() error { s.halt(); return nil }

func (s *fakeStream) Abort() error {
	s.aborted.Store(true)
	s.halt()
	return nil
}

func (s *fakeStream) Close() error { s.halt(); return nil }

func (s *fakeStream) period() float64 {
	return float64(s.frames) / float64(s.cfg.SampleRate)
}

func (s *fakeStream) Time() float64 { return float64(s.callbacks.Load()) * s.period() }

func (s *fakeStream) InputLatency() float64 { return 0 }

func (s *fakeStream) playedBytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.played...)
}
