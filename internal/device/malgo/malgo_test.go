package malgo

import (
	"testing"

	"github.com/gen2brain/malgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/audiobridge/internal/audiocore"
	"github.com/tphakala/audiobridge/internal/audioio"
)

func TestFormatType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   audiocore.SampleFormat
		want malgo.FormatType
	}{
		{audiocore.SampleFormatFloat32, malgo.FormatF32},
		{audiocore.SampleFormatInt16, malgo.FormatS16},
		{audiocore.SampleFormatInt24, malgo.FormatS24},
		{audiocore.SampleFormatInt32, malgo.FormatS32},
	}
	for _, tt := range tests {
		got, err := formatType(tt.in)
		require.NoError(t, err, tt.in.String())
		assert.Equal(t, tt.want, got, tt.in.String())
	}

	_, err := formatType(audiocore.SampleFormatInt8)
	require.ErrorIs(t, err, audiocore.ErrUnsupportedFormat)
}

func TestDeviceType(t *testing.T) {
	t.Parallel()

	dir := &audioio.DirectionConfig{Channels: 1, Format: audiocore.SampleFormatInt16}

	kind, err := deviceType(audioio.StreamConfig{Input: dir, Output: dir})
	require.NoError(t, err)
	assert.Equal(t, malgo.Duplex, kind)

	kind, err = deviceType(audioio.StreamConfig{Input: dir})
	require.NoError(t, err)
	assert.Equal(t, malgo.Capture, kind)

	kind, err = deviceType(audioio.StreamConfig{Output: dir})
	require.NoError(t, err)
	assert.Equal(t, malgo.Playback, kind)

	_, err = deviceType(audioio.StreamConfig{})
	require.ErrorIs(t, err, audioio.ErrNoDirection)
}

func TestPickDevice(t *testing.T) {
	t.Parallel()

	entries := []deviceEntry{
		{capture: true},
		{capture: true, info: malgo.DeviceInfo{IsDefault: 1}},
		{capture: false},
	}

	dev, err := pickDevice(entries, 0, true)
	require.NoError(t, err)
	assert.Same(t, &entries[0], dev)

	// out of range and wrong-direction indices fall back to the default
	dev, err = pickDevice(entries, 7, true)
	require.NoError(t, err)
	assert.Same(t, &entries[1], dev)
	dev, err = pickDevice(entries, 2, true)
	require.NoError(t, err)
	assert.Same(t, &entries[1], dev)

	// no default playback device: the first one is used
	dev, err = pickDevice(entries, audioio.DefaultDevice, false)
	require.NoError(t, err)
	assert.Same(t, &entries[2], dev)

	_, err = pickDevice(entries[:2], audioio.DefaultDevice, false)
	require.Error(t, err)
}

func TestConvertDevices(t *testing.T) {
	t.Parallel()

	entries := []deviceEntry{
		{capture: true, info: malgo.DeviceInfo{IsDefault: 1}},
		{capture: false},
	}
	devices := convertDevices(entries, "linux")
	require.Len(t, devices, 2)
	assert.True(t, devices[0].DefaultInput)
	assert.False(t, devices[0].DefaultOutput)
	assert.Equal(t, 1, devices[1].Index)
	assert.False(t, devices[1].DefaultOutput)
	assert.Equal(t, "linux", devices[1].HostAPI)
}

func TestOnDataTrimsAndCompletes(t *testing.T) {
	t.Parallel()

	var gotIn, gotOut int
	calls := 0
	s := &stream{
		inFrameSize:  2,
		outFrameSize: 4,
		cb: func(in, out []byte, info audiocore.CallbackInfo) audiocore.CallbackResult {
			calls++
			gotIn, gotOut = len(in), len(out)
			assert.Equal(t, 3, info.Frames)
			for i := range out {
				out[i] = 1
			}
			return audiocore.Complete
		},
	}

	out := make([]byte, 16)
	s.onData(out, make([]byte, 10), 3)
	assert.Equal(t, 6, gotIn)
	assert.Equal(t, 12, gotOut)

	s.onData(out, nil, 3)
	assert.Equal(t, 1, calls)
	assert.Equal(t, make([]byte, 16), out)
}

func TestCheckChannels(t *testing.T) {
	t.Parallel()

	dev := &deviceEntry{}
	require.NoError(t, checkChannels(dev, 8), "unknown limit accepts anything")

	dev.info.FormatCount = 1
	dev.info.Formats[0].Channels = 2
	require.NoError(t, checkChannels(dev, 2))
	require.Error(t, checkChannels(dev, 3))
}
