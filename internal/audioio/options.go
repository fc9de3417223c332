package audioio

import (
	"fmt"
	"time"

	"github.com/tphakala/audiobridge/internal/audiocore"
	"github.com/tphakala/audiobridge/internal/errors"
	"github.com/tphakala/audiobridge/internal/logger"
)

// Options configures one direction of a stream.
type Options struct {
	// DeviceID is a driver device index; out-of-range values, including
	// DefaultDevice, select the default device.
	DeviceID int `json:"device_id"`

	Channels int `json:"channels"`

	// SampleFormat is 1 for float32 or an integer bit depth: 8, 16, 24, 32.
	SampleFormat int `json:"sample_format"`

	SampleRate int `json:"sample_rate"`

	// FramesPerBuffer of 0 lets the driver choose.
	FramesPerBuffer int `json:"frames_per_buffer"`

	// MaxQueue bounds the number of queued chunks; 0 is unbounded.
	MaxQueue int `json:"max_queue"`

	// CloseOnError surfaces device status conditions as errors instead of
	// logging them.
	CloseOnError bool `json:"close_on_error"`
}

// DefaultOptions returns 48 kHz stereo int16 on the default device.
func DefaultOptions() Options {
	return Options{
		DeviceID:     DefaultDevice,
		Channels:     2,
		SampleFormat: int(audiocore.SampleFormatInt16),
		SampleRate:   48000,
	}
}

// Params returns the stream layout described by o.
func (o *Options) Params() (audiocore.StreamParams, error) {
	f, err := audiocore.ParseSampleFormat(o.SampleFormat)
	if err != nil {
		return audiocore.StreamParams{}, err
	}
	p := audiocore.StreamParams{SampleRate: o.SampleRate, Channels: o.Channels, Format: f}
	if err := p.Validate(); err != nil {
		return audiocore.StreamParams{}, err
	}
	return p, nil
}

func (o *Options) validate(direction string) (audiocore.StreamParams, error) {
	if o.MaxQueue < 0 {
		return audiocore.StreamParams{}, errors.New(fmt.Errorf("max queue must not be negative, got %d", o.MaxQueue)).
			Component(componentAudioIO).
			Category(errors.CategoryValidation).
			Context("direction", direction).
			Build()
	}
	if o.FramesPerBuffer < 0 {
		return audiocore.StreamParams{}, errors.New(fmt.Errorf("frames per buffer must not be negative, got %d", o.FramesPerBuffer)).
			Component(componentAudioIO).
			Category(errors.CategoryValidation).
			Context("direction", direction).
			Build()
	}
	p, err := o.Params()
	if err != nil {
		return audiocore.StreamParams{}, errors.New(err).
			Component(componentAudioIO).
			Category(errors.CategoryValidation).
			Context("direction", direction).
			Build()
	}
	return p, nil
}

func (o *Options) String() string {
	return fmt.Sprintf("device %d, %d Hz, %d channels, format %d, frames per buffer %d, max queue %d, close on error %t",
		o.DeviceID, o.SampleRate, o.Channels, o.SampleFormat, o.FramesPerBuffer, o.MaxQueue, o.CloseOnError)
}

// RecorderProvider hands out a metrics recorder per stream.
type RecorderProvider interface {
	StreamRecorder(streamID string) audiocore.Recorder
}

// Option is a functional option for configuring an AudioIO.
type Option func(*AudioIO)

// WithLogger sets the logger for the stream.
func WithLogger(l logger.Logger) Option {
	return func(a *AudioIO) {
		a.log = l
	}
}

// WithMetrics records engine activity through p.
func WithMetrics(p RecorderProvider) Option {
	return func(a *AudioIO) {
		a.metrics = p
	}
}

// WithBufferPool sets the pool chunks are allocated from.
func WithBufferPool(pool *audiocore.BufferPool) Option {
	return func(a *AudioIO) {
		a.pool = pool
	}
}

// WithCallbackWait bounds how long the callback waits for output data.
func WithCallbackWait(d time.Duration) Option {
	return func(a *AudioIO) {
		a.callbackWait = d
	}
}

// WithDriftThreshold sets the drift threshold in callback periods.
func WithDriftThreshold(periods float64) Option {
	return func(a *AudioIO) {
		a.driftThreshold = periods
	}
}

// WithStopSettle overrides the pause between draining output and stopping
// the device.
func WithStopSettle(d time.Duration) Option {
	return func(a *AudioIO) {
		a.stopSettle = d
	}
}

// WithRegistry publishes the stream in r while it is open.
func WithRegistry(r *Registry) Option {
	return func(a *AudioIO) {
		a.registry = r
	}
}
