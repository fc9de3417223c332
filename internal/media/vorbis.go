package media

import (
	"io"

	"github.com/jfreymuth/oggvorbis"

	"github.com/tphakala/audiobridge/internal/audiocore"
	"github.com/tphakala/audiobridge/internal/errors"
)

// oggReader is the part of oggvorbis.Reader the source uses.
type oggReader interface {
	SampleRate() int
	Channels() int
	Read([]float32) (int, error)
}

type vorbisSource struct {
	dec     oggReader
	params  audiocore.StreamParams
	samples []float32
	pcm     []byte
	pending []byte
	err     error
}

// NewVorbisSource decodes an Ogg Vorbis stream to float32 PCM.
func NewVorbisSource(r io.Reader) (Source, error) {
	dec, err := oggvorbis.NewReader(r)
	if err != nil {
		return nil, decodeError(err, "ogg")
	}
	return newVorbisSource(dec)
}

func newVorbisSource(dec oggReader) (Source, error) {
	params := audiocore.StreamParams{
		SampleRate: dec.SampleRate(),
		Channels:   dec.Channels(),
		Format:     audiocore.SampleFormatFloat32,
	}
	if err := params.Validate(); err != nil {
		return nil, decodeError(err, "ogg")
	}
	return &vorbisSource{
		dec:     dec,
		params:  params,
		samples: make([]float32, decodeFrames*params.Channels),
	}, nil
}

func (s *vorbisSource) Params() audiocore.StreamParams { return s.params }

func (s *vorbisSource) Close() error { return nil }

func (s *vorbisSource) Read(p []byte) (int, error) {
	for len(s.pending) == 0 {
		if s.err != nil {
			return 0, s.err
		}
		s.fill()
	}
	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

// fill decodes the next block. The decoder may return samples together
// with an error; the error is held until those samples are consumed.
func (s *vorbisSource) fill() {
	n, err := s.dec.Read(s.samples)
	if err != nil {
		if errors.Is(err, io.EOF) {
			s.err = io.EOF
		} else {
			s.err = decodeError(err, "ogg")
		}
	} else if n == 0 {
		s.err = io.EOF
	}

	s.pcm = growBytes(s.pcm, n*4)
	for i, v := range s.samples[:n] {
		putFloat32(s.pcm[i*4:], v)
	}
	s.pending = s.pcm
}
