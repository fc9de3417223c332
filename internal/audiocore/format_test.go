package audiocore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/audiobridge/internal/errors"
)

func TestParseSampleFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code     int
		want     SampleFormat
		bytes    int
		name     string
		wantFail bool
	}{
		{code: 1, want: SampleFormatFloat32, bytes: 4, name: "float32"},
		{code: 8, want: SampleFormatInt8, bytes: 1, name: "int8"},
		{code: 16, want: SampleFormatInt16, bytes: 2, name: "int16"},
		{code: 24, want: SampleFormatInt24, bytes: 3, name: "int24"},
		{code: 32, want: SampleFormatInt32, bytes: 4, name: "int32"},
		{code: 0, wantFail: true},
		{code: 12, wantFail: true},
		{code: 64, wantFail: true},
	}

	for _, tt := range tests {
		f, err := ParseSampleFormat(tt.code)
		if tt.wantFail {
			require.ErrorIs(t, err, ErrUnsupportedFormat, "code %d", tt.code)
			assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
			assert.Zero(t, SampleFormat(tt.code).BytesPerSample())
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, f)
		assert.Equal(t, tt.bytes, f.BytesPerSample())
		assert.Equal(t, tt.name, f.String())
	}
}

func TestStreamParams(t *testing.T) {
	t.Parallel()

	p := StreamParams{SampleRate: 44100, Channels: 2, Format: SampleFormatInt24}
	require.NoError(t, p.Validate())
	assert.Equal(t, 6, p.BytesPerFrame())
	assert.Equal(t, 600, p.BytesFor(100))
	assert.Equal(t, 16, p.FramesIn(100))
	assert.Equal(t, 264600, p.BytesPerSecond())

	assert.Zero(t, StreamParams{}.FramesIn(100))
}

func TestStreamParamsValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		p    StreamParams
	}{
		{"zero rate", StreamParams{SampleRate: 0, Channels: 1, Format: SampleFormatInt16}},
		{"negative channels", StreamParams{SampleRate: 48000, Channels: -1, Format: SampleFormatInt16}},
		{"bad format", StreamParams{SampleRate: 48000, Channels: 1, Format: 7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.p.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
		})
	}
}
