package bridge

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/tphakala/audiobridge/internal/audiocore"
	"github.com/tphakala/audiobridge/internal/audioio"
	"github.com/tphakala/audiobridge/internal/errors"
	"github.com/tphakala/audiobridge/internal/media"
)

// ErrLayoutMismatch is returned by Loopback when input and output frames
// differ in layout.
var ErrLayoutMismatch = errors.NewStd("input and output layouts differ")

// PlaybackOptions returns output options that match the layout of src.
// Device selection and buffering come from base.
func PlaybackOptions(base *audioio.Options, src media.Source) *audioio.Options {
	opts := *base
	p := src.Params()
	opts.SampleRate = p.SampleRate
	opts.Channels = p.Channels
	opts.SampleFormat = int(p.Format)
	return &opts
}

// Play copies src to the stream output in chunks of chunkDuration, then
// marks end of stream. A chunkDuration of 0 uses one callback period.
func Play(src io.Reader, chunkDuration time.Duration) Pump {
	return func(ctx context.Context, a *audioio.AudioIO) error {
		w, err := a.Writer(ctx, chunkDuration)
		if err != nil {
			return err
		}
		if _, err := io.Copy(w, src); err != nil {
			_ = w.Close()
			return err
		}
		return w.Close()
	}
}

// Record copies captured input to sink until ctx ends or, when limit is
// positive, limit has elapsed.
func Record(sink io.Writer, limit time.Duration) Pump {
	return func(ctx context.Context, a *audioio.AudioIO) error {
		recCtx := ctx
		if limit > 0 {
			var cancel context.CancelFunc
			recCtx, cancel = context.WithTimeout(ctx, limit)
			defer cancel()
		}

		_, err := io.Copy(sink, a.Reader(recCtx))
		if err != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		return err
	}
}

// Loopback forwards captured input to the output of a duplex stream one
// callback period at a time.
func Loopback() Pump {
	return func(ctx context.Context, a *audioio.AudioIO) error {
		in, out := a.InputParams(), a.OutputParams()
		if in == nil || out == nil {
			return errors.New(audioio.ErrDirectionNotOpen).
				Component(componentBridge).
				Category(errors.CategoryValidation).
				Context("operation", "loopback").
				Build()
		}
		if in.Channels != out.Channels || in.Format != out.Format {
			return errors.New(fmt.Errorf("%w: %d ch %s in, %d ch %s out", ErrLayoutMismatch, in.Channels, in.Format, out.Channels, out.Format)).
				Component(componentBridge).
				Category(errors.CategoryValidation).
				Build()
		}

		maxBytes := in.BytesFor(loopbackFrames(a.FramesPerBuffer(), in.SampleRate))
		for {
			c, finished, err := a.PullInput(ctx, maxBytes)
			if c != nil {
				if pushErr := a.PushOutput(ctx, c); pushErr != nil {
					return pushErr
				}
			}
			if err != nil {
				return err
			}
			if finished {
				return a.PushOutput(ctx, audiocore.EndOfStream(0))
			}
		}
	}
}

// loopbackFrames is one callback period, or 10 ms when the driver picks
// the period.
func loopbackFrames(framesPerBuffer, sampleRate int) int {
	if framesPerBuffer > 0 {
		return framesPerBuffer
	}
	return max(sampleRate/100, 1)
}
