package conf

import (
	"github.com/tphakala/audiobridge/internal/audioio"
)

// Options converts direction settings to stream options.
func (d *DirectionSettings) Options() *audioio.Options {
	return &audioio.Options{
		DeviceID:        d.Device,
		Channels:        d.Channels,
		SampleFormat:    d.Format,
		SampleRate:      d.SampleRate,
		FramesPerBuffer: d.FramesPerBuffer,
		MaxQueue:        d.MaxQueue,
		CloseOnError:    d.CloseOnError,
	}
}

// DirectionOptions returns options for the enabled directions; a disabled
// direction is nil.
func (s *Settings) DirectionOptions() (in, out *audioio.Options) {
	if s.Input.Enabled {
		in = s.Input.Options()
	}
	if s.Output.Enabled {
		out = s.Output.Options()
	}
	return in, out
}

// EngineOptions returns the audioio options carried by the engine settings.
func (s *Settings) EngineOptions() []audioio.Option {
	opts := []audioio.Option{
		audioio.WithCallbackWait(s.Engine.CallbackWait),
		audioio.WithDriftThreshold(s.Engine.DriftThreshold),
	}
	if s.Engine.StopSettle > 0 {
		opts = append(opts, audioio.WithStopSettle(s.Engine.StopSettle))
	}
	return opts
}
