package media

import (
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/tphakala/audiobridge/internal/audiocore"
	"github.com/tphakala/audiobridge/internal/errors"
)

// WAV format tags accepted by the decoder.
const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
)

// decodeFrames is how many frames a source decodes per refill.
const decodeFrames = 4096

type wavSource struct {
	dec     *wav.Decoder
	params  audiocore.StreamParams
	buf     *audio.IntBuffer
	pcm     []byte
	pending []byte
	eof     bool
}

// NewWAVSource decodes integer PCM WAV data. Samples keep the file's bit
// depth; 8-bit files are converted from unsigned to signed.
func NewWAVSource(r io.ReadSeeker) (Source, error) {
	dec := wav.NewDecoder(r)
	dec.ReadInfo()
	if !dec.IsValidFile() {
		return nil, decodeError(errors.NewStd("invalid WAV file"), "wav")
	}
	if dec.WavAudioFormat != wavFormatPCM && dec.WavAudioFormat != wavFormatExtensible {
		return nil, decodeError(fmt.Errorf("%w: WAV format tag %d", audiocore.ErrUnsupportedFormat, dec.WavAudioFormat), "wav")
	}

	params := audiocore.StreamParams{
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		Format:     audiocore.SampleFormat(dec.BitDepth),
	}
	if params.Format == audiocore.SampleFormatFloat32 {
		params.Format = 0
	}
	if err := params.Validate(); err != nil {
		return nil, decodeError(err, "wav")
	}

	if err := dec.FwdToPCM(); err != nil {
		return nil, decodeError(err, "wav")
	}

	return &wavSource{
		dec:    dec,
		params: params,
		buf: &audio.IntBuffer{
			Data:   make([]int, decodeFrames*params.Channels),
			Format: &audio.Format{NumChannels: params.Channels, SampleRate: params.SampleRate},
		},
	}, nil
}

func (s *wavSource) Params() audiocore.StreamParams { return s.params }

func (s *wavSource) Close() error { return nil }

func (s *wavSource) Read(p []byte) (int, error) {
	for len(s.pending) == 0 {
		if s.eof {
			return 0, io.EOF
		}
		if err := s.fill(); err != nil {
			return 0, err
		}
	}
	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

func (s *wavSource) fill() error {
	n, err := s.dec.PCMBuffer(s.buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return decodeError(err, "wav")
	}
	if n == 0 {
		s.eof = true
		return nil
	}

	size := s.params.Format.BytesPerSample()
	s.pcm = growBytes(s.pcm, n*size)
	for i, v := range s.buf.Data[:n] {
		if size == 1 {
			v -= 128
		}
		putInt(s.pcm[i*size:], v, size)
	}
	s.pending = s.pcm
	return nil
}

func growBytes(b []byte, n int) []byte {
	if cap(b) < n {
		return make([]byte, n)
	}
	return b[:n]
}
