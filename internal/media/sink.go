package media

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/tphakala/audiobridge/internal/audiocore"
	"github.com/tphakala/audiobridge/internal/errors"
)

// WAVSink encodes interleaved little-endian PCM written to it as a WAV
// file. Partial samples are held until the rest arrives.
type WAVSink struct {
	mu      sync.Mutex
	enc     *wav.Encoder
	params  audiocore.StreamParams
	buf     *audio.IntBuffer
	partial []byte
	closer  io.Closer
	closed  bool
}

// NewWAVSink writes to w, which must stay open until Close. Float32 PCM
// cannot be stored since the encoder writes integer PCM only.
func NewWAVSink(w io.WriteSeeker, params audiocore.StreamParams) (*WAVSink, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if params.Format == audiocore.SampleFormatFloat32 {
		return nil, errors.New(fmt.Errorf("%w: WAV output needs integer samples", audiocore.ErrUnsupportedFormat)).
			Component(componentMedia).
			Category(errors.CategoryValidation).
			Context("format", params.Format.String()).
			Build()
	}

	return &WAVSink{
		enc:    wav.NewEncoder(w, params.SampleRate, int(params.Format), params.Channels, wavFormatPCM),
		params: params,
		buf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: params.Channels, SampleRate: params.SampleRate},
			SourceBitDepth: int(params.Format),
		},
	}, nil
}

// CreateWAV creates path and returns a sink that closes the file with it.
func CreateWAV(path string, params audiocore.StreamParams) (*WAVSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.New(err).
			Component(componentMedia).
			Category(errors.CategoryFileIO).
			Context("operation", "create_file").
			Context("path", path).
			Build()
	}
	s, err := NewWAVSink(f, params)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, err
	}
	s.closer = f
	return s, nil
}

// Params returns the layout the sink expects.
func (s *WAVSink) Params() audiocore.StreamParams { return s.params }

// Write implements io.Writer.
func (s *WAVSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, os.ErrClosed
	}

	size := s.params.Format.BytesPerSample()
	data := p
	if len(s.partial) > 0 {
		data = append(s.partial, p...)
	}
	// the encoder only takes whole frames
	whole := len(data) - len(data)%s.params.BytesPerFrame()

	s.buf.Data = s.buf.Data[:0]
	for off := 0; off < whole; off += size {
		v := getInt(data[off:], size)
		if size == 1 {
			v += 128
		}
		s.buf.Data = append(s.buf.Data, v)
	}
	s.partial = append(s.partial[:0:0], data[whole:]...)

	if len(s.buf.Data) > 0 {
		if err := s.enc.Write(s.buf); err != nil {
			return 0, errors.New(err).
				Component(componentMedia).
				Category(errors.CategoryFileIO).
				Context("operation", "encode_wav").
				Build()
		}
	}
	return len(p), nil
}

// Close finalizes the WAV header. A trailing partial frame is dropped.
func (s *WAVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	err := s.enc.Close()
	if err != nil {
		err = errors.New(err).
			Component(componentMedia).
			Category(errors.CategoryFileIO).
			Context("operation", "finalize_wav").
			Build()
	}
	if s.closer != nil {
		err = errors.Join(err, s.closer.Close())
	}
	return err
}
