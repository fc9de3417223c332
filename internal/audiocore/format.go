package audiocore

import (
	"fmt"
)

// SampleFormat identifies the PCM sample encoding. The numeric values are
// the configuration codes: 1 is float32, the rest are integer bit depths.
type SampleFormat int

const (
	SampleFormatFloat32 SampleFormat = 1
	SampleFormatInt8    SampleFormat = 8
	SampleFormatInt16   SampleFormat = 16
	SampleFormatInt24   SampleFormat = 24
	SampleFormatInt32   SampleFormat = 32
)

// ParseSampleFormat converts a configuration code into a SampleFormat.
func ParseSampleFormat(code int) (SampleFormat, error) {
	f := SampleFormat(code)
	if !f.Valid() {
		return 0, validationError(fmt.Errorf("%w: %d", ErrUnsupportedFormat, code), "parse_sample_format").
			Context("code", code).
			Build()
	}
	return f, nil
}

// Valid reports whether f is one of the supported formats.
func (f SampleFormat) Valid() bool {
	switch f {
	case SampleFormatFloat32, SampleFormatInt8, SampleFormatInt16, SampleFormatInt24, SampleFormatInt32:
		return true
	}
	return false
}

// BytesPerSample returns the size of a single sample, or 0 for an invalid format.
func (f SampleFormat) BytesPerSample() int {
	switch f {
	case SampleFormatFloat32, SampleFormatInt32:
		return 4
	case SampleFormatInt24:
		return 3
	case SampleFormatInt16:
		return 2
	case SampleFormatInt8:
		return 1
	}
	return 0
}

func (f SampleFormat) String() string {
	switch f {
	case SampleFormatFloat32:
		return "float32"
	case SampleFormatInt8:
		return "int8"
	case SampleFormatInt16:
		return "int16"
	case SampleFormatInt24:
		return "int24"
	case SampleFormatInt32:
		return "int32"
	}
	return fmt.Sprintf("SampleFormat(%d)", int(f))
}

// StreamParams describes the negotiated PCM layout of one stream direction.
type StreamParams struct {
	SampleRate int
	Channels   int
	Format     SampleFormat
}

// BytesPerFrame is one sample period across all channels.
func (p StreamParams) BytesPerFrame() int {
	return p.Channels * p.Format.BytesPerSample()
}

// BytesFor returns the byte size of frames frames.
func (p StreamParams) BytesFor(frames int) int {
	return frames * p.BytesPerFrame()
}

// FramesIn returns how many whole frames fit in n bytes.
func (p StreamParams) FramesIn(n int) int {
	bpf := p.BytesPerFrame()
	if bpf == 0 {
		return 0
	}
	return n / bpf
}

// BytesPerSecond returns the data rate of the stream.
func (p StreamParams) BytesPerSecond() int {
	return p.SampleRate * p.BytesPerFrame()
}

// Validate checks that rate and channel count are positive and the format
// is supported.
func (p StreamParams) Validate() error {
	switch {
	case p.SampleRate <= 0:
		return validationError(fmt.Errorf("sample rate must be positive, got %d", p.SampleRate), "validate_stream_params").
			Context("sample_rate", p.SampleRate).
			Build()
	case p.Channels <= 0:
		return validationError(fmt.Errorf("channel count must be positive, got %d", p.Channels), "validate_stream_params").
			Context("channels", p.Channels).
			Build()
	case !p.Format.Valid():
		return validationError(fmt.Errorf("%w: %d", ErrUnsupportedFormat, int(p.Format)), "validate_stream_params").
			Context("format", int(p.Format)).
			Build()
	}
	return nil
}
