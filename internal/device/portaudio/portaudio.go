// Package portaudio drives audioio streams from PortAudio devices.
package portaudio

import (
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"github.com/gordonklaus/portaudio"

	"github.com/tphakala/audiobridge/internal/audiocore"
	"github.com/tphakala/audiobridge/internal/audioio"
	"github.com/tphakala/audiobridge/internal/errors"
	"github.com/tphakala/audiobridge/internal/logger"
)

const (
	componentPortAudio = "portaudio"

	// armFramesPerBuffer is used on 32-bit ARM boards when no period was
	// asked for; smaller periods underrun on slow SoCs.
	armFramesPerBuffer = 256
)

// Driver opens PortAudio streams. The zero value is ready to use.
type Driver struct {
	log logger.Logger
}

// New returns a PortAudio driver.
func New(log logger.Logger) *Driver {
	if log == nil {
		log = logger.Global().Module(componentPortAudio)
	}
	return &Driver{log: log}
}

func (d *Driver) logger() logger.Logger {
	if d.log == nil {
		d.log = logger.Global().Module(componentPortAudio)
	}
	return d.log
}

// Name implements audioio.Driver.
func (d *Driver) Name() string { return componentPortAudio }

// Devices implements audioio.Driver. Indices match PortAudio device indices.
func (d *Driver) Devices() ([]audioio.DeviceInfo, error) {
	if err := initialize(); err != nil {
		return nil, err
	}
	defer terminate()

	infos, err := portaudio.Devices()
	if err != nil {
		return nil, deviceError(err, "list_devices").Build()
	}
	return convertDevices(infos), nil
}

func convertDevices(infos []*portaudio.DeviceInfo) []audioio.DeviceInfo {
	devices := make([]audioio.DeviceInfo, 0, len(infos))
	for _, info := range infos {
		dev := audioio.DeviceInfo{
			Index:             info.Index,
			Name:              info.Name,
			MaxInputChannels:  info.MaxInputChannels,
			MaxOutputChannels: info.MaxOutputChannels,
			DefaultSampleRate: info.DefaultSampleRate,
		}
		if api := info.HostApi; api != nil {
			dev.HostAPI = api.Name
			dev.DefaultInput = api.DefaultInputDevice != nil && api.DefaultInputDevice.Index == info.Index
			dev.DefaultOutput = api.DefaultOutputDevice != nil && api.DefaultOutputDevice.Index == info.Index
		}
		devices = append(devices, dev)
	}
	return devices
}

// Open implements audioio.Driver.
func (d *Driver) Open(cfg audioio.StreamConfig, cb audioio.Callback) (audioio.Stream, error) {
	if err := initialize(); err != nil {
		return nil, err
	}

	s, err := d.open(cfg, cb)
	if err != nil {
		terminate()
		return nil, err
	}
	return s, nil
}

func (d *Driver) open(cfg audioio.StreamConfig, cb audioio.Callback) (*stream, error) {
	infos, err := portaudio.Devices()
	if err != nil {
		return nil, deviceError(err, "list_devices").Build()
	}
	devices := convertDevices(infos)

	params := portaudio.StreamParameters{
		SampleRate:      float64(cfg.SampleRate),
		FramesPerBuffer: cfg.FramesPerBuffer,
	}
	highLatency := isARM()
	if params.FramesPerBuffer == 0 {
		params.FramesPerBuffer = portaudio.FramesPerBufferUnspecified
		if highLatency {
			params.FramesPerBuffer = armFramesPerBuffer
		}
	}

	if cfg.Input != nil {
		dev, err := pickDevice(devices, infos, cfg.Input, true)
		if err != nil {
			return nil, err
		}
		latency := dev.DefaultLowInputLatency
		if highLatency {
			latency = dev.DefaultHighInputLatency
		}
		params.Input = portaudio.StreamDeviceParameters{Device: dev, Channels: cfg.Input.Channels, Latency: latency}
	}
	if cfg.Output != nil {
		dev, err := pickDevice(devices, infos, cfg.Output, false)
		if err != nil {
			return nil, err
		}
		latency := dev.DefaultLowOutputLatency
		if highLatency {
			latency = dev.DefaultHighOutputLatency
		}
		params.Output = portaudio.StreamDeviceParameters{Device: dev, Channels: cfg.Output.Channels, Latency: latency}
	}

	s := &stream{cb: cb}
	callback, err := s.callbackFor(cfg)
	if err != nil {
		return nil, err
	}

	pa, err := portaudio.OpenStream(params, callback)
	if err != nil {
		return nil, deviceError(err, "open_stream").
			Context("sample_rate", cfg.SampleRate).
			Context("frames_per_buffer", params.FramesPerBuffer).
			Build()
	}
	s.pa = pa
	s.clock = s.Time

	d.logger().Debug("stream opened",
		logger.Int("sample_rate", cfg.SampleRate),
		logger.Int("frames_per_buffer", params.FramesPerBuffer),
		logger.Bool("high_latency", highLatency),
		logger.Float64("input_latency_s", s.InputLatency()))

	return s, nil
}

// pickDevice resolves a device index and checks the channel count fits.
func pickDevice(devices []audioio.DeviceInfo, infos []*portaudio.DeviceInfo, dir *audioio.DirectionConfig, isInput bool) (*portaudio.DeviceInfo, error) {
	direction := "output"
	if isInput {
		direction = "input"
	}
	dev, ok := audioio.ResolveDevice(devices, dir.DeviceID, isInput)
	if !ok {
		return nil, errors.New(fmt.Errorf("no %s device available", direction)).
			Component(componentPortAudio).
			Category(errors.CategoryAudioDevice).
			Context("device_id", dir.DeviceID).
			Build()
	}
	if limit := dev.MaxChannels(isInput); dir.Channels > limit {
		return nil, errors.New(fmt.Errorf("%s device %q supports %d channels, %d requested", direction, dev.Name, limit, dir.Channels)).
			Component(componentPortAudio).
			Category(errors.CategoryValidation).
			Context("device_index", dev.Index).
			Build()
	}
	for _, info := range infos {
		if info.Index == dev.Index {
			return info, nil
		}
	}
	return nil, errors.New(fmt.Errorf("device %d disappeared", dev.Index)).
		Component(componentPortAudio).
		Category(errors.CategoryAudioDevice).
		Build()
}

// stream adapts a PortAudio stream to audioio.Stream.
type stream struct {
	pa *portaudio.Stream
	cb audioio.Callback

	// clock stands in for a CurrentTime the host API leaves at zero.
	clock func() float64

	// PortAudio callbacks cannot end the stream, so once the engine reports
	// completion the remaining callbacks only write silence.
	complete bool

	closeOnce sync.Once
	closeErr  error
}

func (s *stream) Start() error { return wrapStreamErr(s.pa.Start(), "start_stream") }
func (s *stream) Stop() error  { return wrapStreamErr(s.pa.Stop(), "stop_stream") }
func (s *stream) Abort() error { return wrapStreamErr(s.pa.Abort(), "abort_stream") }

func (s *stream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = wrapStreamErr(s.pa.Close(), "close_stream")
		terminate()
	})
	return s.closeErr
}

func (s *stream) Time() float64 {
	return s.pa.Time().Seconds()
}

func (s *stream) InputLatency() float64 {
	if s.pa == nil {
		return 0
	}
	info := s.pa.Info()
	if info == nil {
		return 0
	}
	return info.InputLatency.Seconds()
}

// process runs the engine callback on raw byte views of the device buffers.
func (s *stream) process(in, out []byte, frames int, ti portaudio.StreamCallbackTimeInfo, flags portaudio.StreamCallbackFlags) {
	if s.complete {
		clear(out)
		return
	}
	if s.cb(in, out, callbackInfo(frames, ti, flags, s.clock)) == audiocore.Complete {
		s.complete = true
	}
}

// callbackInfo translates PortAudio timing and status into engine terms.
// Some host APIs report a zero CurrentTime; clock, when set, fills it in
// from the stream clock.
func callbackInfo(frames int, ti portaudio.StreamCallbackTimeInfo, flags portaudio.StreamCallbackFlags, clock func() float64) audiocore.CallbackInfo {
	info := audiocore.CallbackInfo{
		Frames:        frames,
		InputADCTime:  ti.InputBufferAdcTime.Seconds(),
		CurrentTime:   ti.CurrentTime.Seconds(),
		OutputDACTime: ti.OutputBufferDacTime.Seconds(),
	}
	if info.CurrentTime == 0 && clock != nil {
		info.CurrentTime = clock()
	}
	if flags&portaudio.InputUnderflow != 0 {
		info.Flags |= audiocore.StatusInputUnderflow
	}
	if flags&portaudio.InputOverflow != 0 {
		info.Flags |= audiocore.StatusInputOverflow
	}
	if flags&portaudio.OutputUnderflow != 0 {
		info.Flags |= audiocore.StatusOutputUnderflow
	}
	if flags&portaudio.OutputOverflow != 0 {
		info.Flags |= audiocore.StatusOutputOverflow
	}
	if flags&portaudio.PrimingOutput != 0 {
		info.Flags |= audiocore.StatusPrimingOutput
	}
	return info
}

// sample is the set of interleaved buffer element types PortAudio accepts.
type sample interface {
	float32 | int8 | int16 | portaudio.Int24 | int32
}

// asBytes views a sample buffer as raw little-endian bytes without copying.
func asBytes[T sample](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	var zero T
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(s))), len(s)*int(unsafe.Sizeof(zero)))
}

// PortAudio picks the sample format from the callback's parameter types and
// the buffer arguments from which directions are open, so every
// combination needs its own function type.

func inputCallback[T sample](s *stream, channels int) any {
	return func(in []T, ti portaudio.StreamCallbackTimeInfo, flags portaudio.StreamCallbackFlags) {
		s.process(asBytes(in), nil, len(in)/channels, ti, flags)
	}
}

func outputCallback[T sample](s *stream, channels int) any {
	return func(out []T, ti portaudio.StreamCallbackTimeInfo, flags portaudio.StreamCallbackFlags) {
		s.process(nil, asBytes(out), len(out)/channels, ti, flags)
	}
}

func duplexCallback[I, O sample](s *stream, outChannels int) any {
	return func(in []I, out []O, ti portaudio.StreamCallbackTimeInfo, flags portaudio.StreamCallbackFlags) {
		s.process(asBytes(in), asBytes(out), len(out)/outChannels, ti, flags)
	}
}

func duplexFor[I sample](s *stream, out audiocore.SampleFormat, outChannels int) (any, error) {
	switch out {
	case audiocore.SampleFormatFloat32:
		return duplexCallback[I, float32](s, outChannels), nil
	case audiocore.SampleFormatInt8:
		return duplexCallback[I, int8](s, outChannels), nil
	case audiocore.SampleFormatInt16:
		return duplexCallback[I, int16](s, outChannels), nil
	case audiocore.SampleFormatInt24:
		return duplexCallback[I, portaudio.Int24](s, outChannels), nil
	case audiocore.SampleFormatInt32:
		return duplexCallback[I, int32](s, outChannels), nil
	}
	return nil, unsupportedFormat(out)
}

func (s *stream) callbackFor(cfg audioio.StreamConfig) (any, error) {
	switch {
	case cfg.Input != nil && cfg.Output != nil:
		out, ch := cfg.Output.Format, cfg.Output.Channels
		switch cfg.Input.Format {
		case audiocore.SampleFormatFloat32:
			return duplexFor[float32](s, out, ch)
		case audiocore.SampleFormatInt8:
			return duplexFor[int8](s, out, ch)
		case audiocore.SampleFormatInt16:
			return duplexFor[int16](s, out, ch)
		case audiocore.SampleFormatInt24:
			return duplexFor[portaudio.Int24](s, out, ch)
		case audiocore.SampleFormatInt32:
			return duplexFor[int32](s, out, ch)
		}
		return nil, unsupportedFormat(cfg.Input.Format)

	case cfg.Input != nil:
		ch := cfg.Input.Channels
		switch cfg.Input.Format {
		case audiocore.SampleFormatFloat32:
			return inputCallback[float32](s, ch), nil
		case audiocore.SampleFormatInt8:
			return inputCallback[int8](s, ch), nil
		case audiocore.SampleFormatInt16:
			return inputCallback[int16](s, ch), nil
		case audiocore.SampleFormatInt24:
			return inputCallback[portaudio.Int24](s, ch), nil
		case audiocore.SampleFormatInt32:
			return inputCallback[int32](s, ch), nil
		}
		return nil, unsupportedFormat(cfg.Input.Format)

	case cfg.Output != nil:
		ch := cfg.Output.Channels
		switch cfg.Output.Format {
		case audiocore.SampleFormatFloat32:
			return outputCallback[float32](s, ch), nil
		case audiocore.SampleFormatInt8:
			return outputCallback[int8](s, ch), nil
		case audiocore.SampleFormatInt16:
			return outputCallback[int16](s, ch), nil
		case audiocore.SampleFormatInt24:
			return outputCallback[portaudio.Int24](s, ch), nil
		case audiocore.SampleFormatInt32:
			return outputCallback[int32](s, ch), nil
		}
		return nil, unsupportedFormat(cfg.Output.Format)
	}

	return nil, errors.New(audioio.ErrNoDirection).
		Component(componentPortAudio).
		Category(errors.CategoryValidation).
		Build()
}

func unsupportedFormat(f audiocore.SampleFormat) error {
	return errors.New(fmt.Errorf("%w: %s", audiocore.ErrUnsupportedFormat, f)).
		Component(componentPortAudio).
		Category(errors.CategoryValidation).
		Build()
}

// isARM reports 32-bit ARM, where the small default buffers underrun.
func isARM() bool {
	return runtime.GOARCH == "arm"
}

// PortAudio keeps its own init count; every initialize needs a terminate.
func initialize() error {
	if err := portaudio.Initialize(); err != nil {
		return deviceError(err, "initialize").Build()
	}
	return nil
}

func terminate() {
	_ = portaudio.Terminate()
}

func deviceError(err error, operation string) *errors.ErrorBuilder {
	return errors.New(err).
		Component(componentPortAudio).
		Category(errors.CategoryAudioDevice).
		Context("operation", operation)
}

func wrapStreamErr(err error, operation string) error {
	if err == nil {
		return nil
	}
	return deviceError(err, operation).Build()
}
