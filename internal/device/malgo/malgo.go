// Package malgo drives audioio streams from miniaudio devices through malgo.
package malgo

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/tphakala/audiobridge/internal/audiocore"
	"github.com/tphakala/audiobridge/internal/audioio"
	"github.com/tphakala/audiobridge/internal/errors"
	"github.com/tphakala/audiobridge/internal/logger"
)

const componentMalgo = "malgo"

// Driver opens miniaudio devices. The zero value is ready to use.
type Driver struct {
	log logger.Logger
}

// New returns a malgo driver.
func New(log logger.Logger) *Driver {
	return &Driver{log: log}
}

func (d *Driver) logger() logger.Logger {
	if d.log == nil {
		d.log = logger.Global().Module(componentMalgo)
	}
	return d.log
}

// Name implements audioio.Driver.
func (d *Driver) Name() string { return componentMalgo }

// Devices implements audioio.Driver.
func (d *Driver) Devices() ([]audioio.DeviceInfo, error) {
	ctx, err := initContext()
	if err != nil {
		return nil, err
	}
	defer freeContext(ctx)

	entries, err := enumerate(ctx)
	if err != nil {
		return nil, err
	}
	return convertDevices(entries, runtime.GOOS), nil
}

// formatType maps a sample format to miniaudio's. miniaudio has no signed
// 8-bit format.
func formatType(f audiocore.SampleFormat) (malgo.FormatType, error) {
	switch f {
	case audiocore.SampleFormatFloat32:
		return malgo.FormatF32, nil
	case audiocore.SampleFormatInt16:
		return malgo.FormatS16, nil
	case audiocore.SampleFormatInt24:
		return malgo.FormatS24, nil
	case audiocore.SampleFormatInt32:
		return malgo.FormatS32, nil
	}
	return malgo.FormatUnknown, errors.New(fmt.Errorf("%w: %s", audiocore.ErrUnsupportedFormat, f)).
		Component(componentMalgo).
		Category(errors.CategoryValidation).
		Build()
}

// deviceType picks capture, playback or duplex from the open directions.
func deviceType(cfg audioio.StreamConfig) (malgo.DeviceType, error) {
	switch {
	case cfg.Input != nil && cfg.Output != nil:
		return malgo.Duplex, nil
	case cfg.Input != nil:
		return malgo.Capture, nil
	case cfg.Output != nil:
		return malgo.Playback, nil
	}
	return 0, errors.New(audioio.ErrNoDirection).
		Component(componentMalgo).
		Category(errors.CategoryValidation).
		Build()
}

func deviceTypeName(kind malgo.DeviceType) string {
	switch kind {
	case malgo.Capture:
		return "capture"
	case malgo.Playback:
		return "playback"
	case malgo.Duplex:
		return "duplex"
	}
	return "unknown"
}

// Open implements audioio.Driver.
func (d *Driver) Open(cfg audioio.StreamConfig, cb audioio.Callback) (audioio.Stream, error) {
	kind, err := deviceType(cfg)
	if err != nil {
		return nil, err
	}

	deviceConfig := malgo.DefaultDeviceConfig(kind)
	deviceConfig.SampleRate = uint32(cfg.SampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(cfg.FramesPerBuffer)
	deviceConfig.Alsa.NoMMap = 1

	s := &stream{cb: cb, log: d.logger()}
	if cfg.Input != nil {
		if s.inFormat, err = formatType(cfg.Input.Format); err != nil {
			return nil, err
		}
		s.inFrameSize = cfg.Input.Channels * cfg.Input.Format.BytesPerSample()
	}
	if cfg.Output != nil {
		if s.outFormat, err = formatType(cfg.Output.Format); err != nil {
			return nil, err
		}
		s.outFrameSize = cfg.Output.Channels * cfg.Output.Format.BytesPerSample()
	}

	ctx, err := initContext()
	if err != nil {
		return nil, err
	}
	s.ctx = ctx

	entries, err := enumerate(ctx)
	if err != nil {
		freeContext(ctx)
		return nil, err
	}

	if cfg.Input != nil {
		dev, err := pickDevice(entries, cfg.Input.DeviceID, true)
		if err != nil {
			freeContext(ctx)
			return nil, err
		}
		if err := checkChannels(dev, cfg.Input.Channels); err != nil {
			freeContext(ctx)
			return nil, err
		}
		deviceConfig.Capture.Format = s.inFormat
		deviceConfig.Capture.Channels = uint32(cfg.Input.Channels)
		deviceConfig.Capture.DeviceID = dev.info.ID.Pointer()
	}
	if cfg.Output != nil {
		dev, err := pickDevice(entries, cfg.Output.DeviceID, false)
		if err != nil {
			freeContext(ctx)
			return nil, err
		}
		if err := checkChannels(dev, cfg.Output.Channels); err != nil {
			freeContext(ctx)
			return nil, err
		}
		deviceConfig.Playback.Format = s.outFormat
		deviceConfig.Playback.Channels = uint32(cfg.Output.Channels)
		deviceConfig.Playback.DeviceID = dev.info.ID.Pointer()
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: s.onData,
		Stop: s.onStop,
	})
	if err != nil {
		freeContext(ctx)
		return nil, errors.New(err).
			Component(componentMalgo).
			Category(errors.CategoryAudioDevice).
			Context("operation", "init_device").
			Context("sample_rate", cfg.SampleRate).
			Build()
	}
	s.device = device
	s.epoch = time.Now()

	// miniaudio reports no input latency; one period is the best estimate.
	if cfg.FramesPerBuffer > 0 && cfg.SampleRate > 0 {
		s.inputLatency = float64(cfg.FramesPerBuffer) / float64(cfg.SampleRate)
	}

	d.logger().Debug("device opened",
		logger.String("type", deviceTypeName(kind)),
		logger.Int("sample_rate", int(device.SampleRate())),
		logger.Int("frames_per_buffer", cfg.FramesPerBuffer))

	return s, nil
}

func checkChannels(dev *deviceEntry, channels int) error {
	limit := maxChannels(&dev.info)
	if limit == 0 || channels <= limit {
		return nil
	}
	return errors.New(fmt.Errorf("device %q supports %d channels, %d requested", dev.info.Name(), limit, channels)).
		Component(componentMalgo).
		Category(errors.CategoryValidation).
		Build()
}

// stream adapts a malgo device to audioio.Stream.
type stream struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	cb     audioio.Callback
	log    logger.Logger

	inFormat, outFormat       malgo.FormatType
	inFrameSize, outFrameSize int

	// miniaudio has no stream clock; time is measured from open.
	epoch        time.Time
	inputLatency float64

	complete atomic.Bool
	stopping atomic.Bool

	closeOnce sync.Once
}

func (s *stream) Start() error {
	s.stopping.Store(false)
	if err := s.device.Start(); err != nil {
		return s.wrap(err, "start_device")
	}
	return nil
}

// Stop stops the device. miniaudio drains nothing on stop, so Stop and
// Abort behave alike.
func (s *stream) Stop() error {
	s.stopping.Store(true)
	if err := s.device.Stop(); err != nil {
		return s.wrap(err, "stop_device")
	}
	return nil
}

func (s *stream) Abort() error { return s.Stop() }

func (s *stream) Close() error {
	s.closeOnce.Do(func() {
		s.stopping.Store(true)
		s.device.Uninit()
		freeContext(s.ctx)
	})
	return nil
}

func (s *stream) Time() float64 {
	return time.Since(s.epoch).Seconds()
}

func (s *stream) InputLatency() float64 { return s.inputLatency }

// onData is the miniaudio data callback; output comes first.
func (s *stream) onData(pOutput, pInput []byte, frameCount uint32) {
	if s.complete.Load() {
		clear(pOutput)
		return
	}
	info := audiocore.CallbackInfo{
		Frames:      int(frameCount),
		CurrentTime: s.Time(),
	}
	if s.cb(trim(pInput, s.inFrameSize, frameCount), trim(pOutput, s.outFrameSize, frameCount), info) == audiocore.Complete {
		s.complete.Store(true)
	}
}

// trim bounds a device buffer to the frames of this callback.
func trim(buf []byte, frameSize int, frames uint32) []byte {
	if buf == nil || frameSize == 0 {
		return nil
	}
	n := frameSize * int(frames)
	if n > len(buf) {
		n = len(buf)
	}
	return buf[:n]
}

func (s *stream) onStop() {
	if !s.stopping.Load() {
		s.log.Warn("audio device stopped unexpectedly")
	}
}

func (s *stream) wrap(err error, operation string) error {
	return errors.New(err).
		Component(componentMalgo).
		Category(errors.CategoryAudioDevice).
		Context("operation", operation).
		Build()
}
