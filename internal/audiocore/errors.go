package audiocore

import (
	"github.com/tphakala/audiobridge/internal/errors"
)

// Component identifier for audiocore errors
const ComponentAudioCore = "audiocore"

var (
	// ErrQueueClosed is returned by context-aware queue operations once the
	// queue has been quit or has reached end of stream.
	ErrQueueClosed = errors.NewStd("chunk queue closed")

	// ErrUnsupportedFormat is returned for sample format codes other than
	// 1 (float32), 8, 16, 24 and 32.
	ErrUnsupportedFormat = errors.NewStd("unsupported sample format")

	// ErrWriterClosed is returned by ChunkWriter.Write after Close.
	ErrWriterClosed = errors.NewStd("chunk writer closed")
)

func validationError(err error, operation string) *errors.ErrorBuilder {
	return errors.New(err).
		Component(ComponentAudioCore).
		Category(errors.CategoryValidation).
		Context("operation", operation)
}
