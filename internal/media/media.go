// Package media decodes audio files into raw PCM for playback streams and
// encodes captured PCM into WAV files.
package media

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tphakala/audiobridge/internal/audiocore"
	"github.com/tphakala/audiobridge/internal/errors"
)

const componentMedia = "media"

// ErrUnknownContainer is returned by Open for file types it cannot decode.
var ErrUnknownContainer = errors.NewStd("unknown audio container")

// Source is a decoded audio stream. Read returns interleaved little-endian
// samples laid out as Params describes, never splitting a frame.
type Source interface {
	io.Reader
	Params() audiocore.StreamParams
	Close() error
}

// Open decodes the file at path, picking the decoder from its extension.
func Open(path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New(err).
			Component(componentMedia).
			Category(errors.CategoryFileIO).
			Context("operation", "open_file").
			Context("path", path).
			Build()
	}

	var src Source
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav", ".wave":
		src, err = NewWAVSource(f)
	case ".mp3":
		src, err = NewMP3Source(f)
	case ".ogg", ".oga":
		src, err = NewVorbisSource(f)
	default:
		err = errors.New(ErrUnknownContainer).
			Component(componentMedia).
			Category(errors.CategoryValidation).
			Context("extension", ext).
			Build()
	}
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &fileSource{Source: src, f: f}, nil
}

// fileSource closes the underlying file with the decoder.
type fileSource struct {
	Source
	f *os.File
}

func (s *fileSource) Close() error {
	return errors.Join(s.Source.Close(), s.f.Close())
}

func decodeError(err error, container string) error {
	return errors.New(err).
		Component(componentMedia).
		Category(errors.CategoryFileParsing).
		Context("container", container).
		Build()
}
