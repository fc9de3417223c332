package audioio

import (
	"github.com/tphakala/audiobridge/internal/audiocore"
)

// DefaultDevice selects the host's default device for a direction.
const DefaultDevice = -1

// DirectionConfig is the negotiated layout of one stream direction as the
// driver should open it.
type DirectionConfig struct {
	DeviceID int
	Channels int
	Format   audiocore.SampleFormat
}

// StreamConfig describes the stream a driver should open. A nil direction
// is not opened.
type StreamConfig struct {
	Input      *DirectionConfig
	Output     *DirectionConfig
	SampleRate int

	// FramesPerBuffer is the callback period in frames; 0 lets the driver
	// choose.
	FramesPerBuffer int
}

// Callback is invoked by a driver from its real-time thread. input and
// output are only valid for the duration of the call.
type Callback func(input, output []byte, info audiocore.CallbackInfo) audiocore.CallbackResult

// Driver opens device streams for one audio backend.
type Driver interface {
	Name() string
	Devices() ([]DeviceInfo, error)
	Open(cfg StreamConfig, cb Callback) (Stream, error)
}

// Stream is an open device stream. Once a callback returns Complete the
// driver stops invoking it.
type Stream interface {
	Start() error
	// Stop lets queued device buffers play out before stopping.
	Stop() error
	// Abort stops immediately, discarding pending device buffers.
	Abort() error
	Close() error

	// Time returns the stream clock in seconds.
	Time() float64
	// InputLatency returns the input latency in seconds, 0 if unknown.
	InputLatency() float64
}

// DeviceInfo describes one device as reported by a driver.
type DeviceInfo struct {
	Index             int     `json:"index"`
	Name              string  `json:"name"`
	HostAPI           string  `json:"host_api,omitempty"`
	MaxInputChannels  int     `json:"max_input_channels"`
	MaxOutputChannels int     `json:"max_output_channels"`
	DefaultSampleRate float64 `json:"default_sample_rate"`
	DefaultInput      bool    `json:"default_input"`
	DefaultOutput     bool    `json:"default_output"`
}

// ResolveDevice returns the device at index id, or the default device for
// the direction when id is out of range. ok is false when there is no usable
// device.
func ResolveDevice(devices []DeviceInfo, id int, isInput bool) (DeviceInfo, bool) {
	if id >= 0 && id < len(devices) {
		return devices[id], true
	}
	for _, d := range devices {
		if (isInput && d.DefaultInput) || (!isInput && d.DefaultOutput) {
			return d, true
		}
	}
	return DeviceInfo{}, false
}

// MaxChannels returns the channel limit of d for a direction.
func (d DeviceInfo) MaxChannels(isInput bool) int {
	if isInput {
		return d.MaxInputChannels
	}
	return d.MaxOutputChannels
}
