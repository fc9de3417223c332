// Package bridge assembles configured streams: it picks the device driver,
// attaches metrics and serves telemetry while a stream runs.
package bridge

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tphakala/audiobridge/internal/audioio"
	"github.com/tphakala/audiobridge/internal/conf"
	"github.com/tphakala/audiobridge/internal/device/malgo"
	"github.com/tphakala/audiobridge/internal/device/portaudio"
	"github.com/tphakala/audiobridge/internal/errors"
	"github.com/tphakala/audiobridge/internal/logger"
	"github.com/tphakala/audiobridge/internal/observability"
)

const componentBridge = "bridge"

// DefaultStopTimeout bounds how long a graceful stop may drain output.
const DefaultStopTimeout = 10 * time.Second

// ErrUnknownDriver is returned for driver names other than portaudio and malgo.
var ErrUnknownDriver = errors.NewStd("unknown audio driver")

// NewDriver returns the named device driver.
func NewDriver(name string, log logger.Logger) (audioio.Driver, error) {
	switch name {
	case conf.DriverPortAudio:
		return portaudio.New(log), nil
	case conf.DriverMalgo:
		return malgo.New(log), nil
	}
	return nil, errors.New(fmt.Errorf("%w: %q", ErrUnknownDriver, name)).
		Component(componentBridge).
		Category(errors.CategoryConfiguration).
		Build()
}

// Bridge opens streams from settings and runs them.
type Bridge struct {
	settings    *conf.Settings
	driver      audioio.Driver
	metrics     *observability.Metrics
	registry    *audioio.Registry
	endpoint    *observability.Endpoint
	log         logger.Logger
	stopTimeout time.Duration
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithDriver uses d instead of the driver named in settings.
func WithDriver(d audioio.Driver) Option {
	return func(b *Bridge) { b.driver = d }
}

// WithMetrics shares an existing metrics set. Without it New creates one
// that also counts every error built through the errors package.
func WithMetrics(m *observability.Metrics) Option {
	return func(b *Bridge) { b.metrics = m }
}

// WithLogger sets the bridge logger.
func WithLogger(l logger.Logger) Option {
	return func(b *Bridge) { b.log = l }
}

// WithStopTimeout bounds graceful stops.
func WithStopTimeout(d time.Duration) Option {
	return func(b *Bridge) { b.stopTimeout = d }
}

// New creates a Bridge. The telemetry endpoint is created when enabled in
// settings but only listens while Run is active.
func New(settings *conf.Settings, opts ...Option) (*Bridge, error) {
	if settings == nil {
		return nil, errors.New(errors.NewStd("settings are required")).
			Component(componentBridge).
			Category(errors.CategoryValidation).
			Build()
	}

	b := &Bridge{
		settings:    settings,
		registry:    audioio.NewRegistry(),
		stopTimeout: DefaultStopTimeout,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.log == nil {
		b.log = logger.Global().Module(componentBridge)
	}

	if b.driver == nil {
		d, err := NewDriver(settings.Driver, b.log.Module(settings.Driver))
		if err != nil {
			return nil, err
		}
		b.driver = d
	}

	if b.metrics == nil {
		m, err := observability.NewMetrics(nil)
		if err != nil {
			return nil, err
		}
		m.CountErrors()
		b.metrics = m
	}

	if settings.Telemetry.Enabled {
		ep, err := observability.NewEndpoint(&settings.Telemetry, b.metrics, b.registry)
		if err != nil {
			return nil, err
		}
		b.endpoint = ep
	}

	return b, nil
}

// Driver returns the device driver in use.
func (b *Bridge) Driver() audioio.Driver { return b.driver }

// Metrics returns the metrics streams report to.
func (b *Bridge) Metrics() *observability.Metrics { return b.metrics }

// Registry returns the registry of open streams.
func (b *Bridge) Registry() *audioio.Registry { return b.registry }

// Open opens a stream with the given direction options. Either may be nil.
func (b *Bridge) Open(in, out *audioio.Options) (*audioio.AudioIO, error) {
	opts := append([]audioio.Option{
		audioio.WithLogger(b.log.Module("stream")),
		audioio.WithMetrics(b.metrics),
		audioio.WithRegistry(b.registry),
	}, b.settings.EngineOptions()...)

	a, err := audioio.New(b.driver, in, out, opts...)
	if err != nil {
		return nil, err
	}
	b.log.Info("stream opened",
		logger.String("stream_id", a.ID.String()),
		logger.String("driver", b.driver.Name()),
		logger.Int("frames_per_buffer", a.FramesPerBuffer()))
	return a, nil
}

// Pump moves data to or from a running stream until it returns.
type Pump func(ctx context.Context, a *audioio.AudioIO) error

// Run starts a, runs pump and stops a once pump returns. The telemetry
// endpoint, when enabled, serves for the duration. A pump that ends without
// error drains output gracefully; the end of ctx or a pump error aborts the
// device. The end of ctx itself is not reported as an error.
func (b *Bridge) Run(ctx context.Context, a *audioio.AudioIO, pump Pump) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	if b.endpoint != nil {
		g.Go(func() error { return b.endpoint.Run(gctx) })
	}

	if err := a.Start(); err != nil {
		cancel()
		_ = g.Wait()
		return errors.Join(err, a.Stop(context.Background(), audioio.StopAbort))
	}

	g.Go(func() error {
		defer cancel()

		err := pump(gctx, a)
		mode := audioio.StopGraceful
		if gctx.Err() != nil {
			mode = audioio.StopAbort
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				err = nil
			}
		} else if err != nil {
			mode = audioio.StopAbort
		}

		stopCtx, stopCancel := context.WithTimeout(context.Background(), b.stopTimeout)
		defer stopCancel()
		if stopErr := a.Stop(stopCtx, mode); stopErr != nil {
			b.log.Warn("stream stop", logger.Error(stopErr), logger.String("mode", mode.String()))
			err = errors.Join(err, stopErr)
		}
		return err
	})

	return g.Wait()
}
