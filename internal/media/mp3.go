package media

import (
	"io"

	gomp3 "github.com/hajimehoshi/go-mp3"

	"github.com/tphakala/audiobridge/internal/audiocore"
	"github.com/tphakala/audiobridge/internal/errors"
)

// mp3Channels is fixed: go-mp3 always decodes to interleaved stereo.
const mp3Channels = 2

type mp3Source struct {
	r      io.Reader
	params audiocore.StreamParams
}

// NewMP3Source decodes an MP3 stream to 16-bit stereo PCM.
func NewMP3Source(r io.Reader) (Source, error) {
	dec, err := gomp3.NewDecoder(r)
	if err != nil {
		return nil, decodeError(err, "mp3")
	}
	return &mp3Source{
		r: dec,
		params: audiocore.StreamParams{
			SampleRate: dec.SampleRate(),
			Channels:   mp3Channels,
			Format:     audiocore.SampleFormatInt16,
		},
	}, nil
}

func (s *mp3Source) Params() audiocore.StreamParams { return s.params }

func (s *mp3Source) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, decodeError(err, "mp3")
	}
	return n, err
}

func (s *mp3Source) Close() error { return nil }
