package observability

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/tphakala/audiobridge/internal/audioio"
	"github.com/tphakala/audiobridge/internal/conf"
	"github.com/tphakala/audiobridge/internal/errors"
	"github.com/tphakala/audiobridge/internal/logger"
	metricspkg "github.com/tphakala/audiobridge/internal/observability/metrics"
)

const componentTelemetry = "telemetry"

// Endpoint serves Prometheus metrics and stream status over HTTP.
type Endpoint struct {
	echo          *echo.Echo
	listenAddress string
	metrics       *Metrics
	streams       *audioio.Registry
}

// NewEndpoint creates a telemetry Endpoint.
//
// It returns an error if telemetry is disabled in settings. streams may be
// nil, in which case the stream status routes report no streams.
func NewEndpoint(settings *conf.TelemetrySettings, metrics *Metrics, streams *audioio.Registry) (*Endpoint, error) {
	if settings == nil || !settings.Enabled {
		return nil, errors.New(errors.NewStd("telemetry not enabled in settings")).
			Component(componentTelemetry).
			Category(errors.CategoryConfiguration).
			Build()
	}
	if metrics == nil {
		return nil, errors.New(errors.NewStd("metrics are required")).
			Component(componentTelemetry).
			Category(errors.CategoryValidation).
			Build()
	}
	if streams == nil {
		streams = audioio.NewRegistry()
	}

	e := &Endpoint{
		listenAddress: settings.Listen,
		metrics:       metrics,
		streams:       streams,
	}

	e.echo = echo.New()
	e.echo.HideBanner = true
	e.echo.HidePort = true
	e.echo.Server.ReadHeaderTimeout = 5 * time.Second

	e.echo.Use(echomw.Recover())
	e.echo.Use(metrics.HTTP.Middleware())

	e.echo.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	e.echo.GET("/healthz", e.healthCheck)
	api := e.echo.Group("/api/v1")
	api.GET("/streams", e.listStreams)
	api.GET("/streams/:id", e.getStream)

	return e, nil
}

// ServeHTTP lets the endpoint be driven directly, e.g. from httptest.
func (e *Endpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	e.echo.ServeHTTP(w, r)
}

// Run listens on the configured address until ctx is cancelled, then shuts
// the server down gracefully.
func (e *Endpoint) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", e.listenAddress)
	if err != nil {
		return errors.New(err).
			Component(componentTelemetry).
			Category(errors.CategoryNetwork).
			Context("address", e.listenAddress).
			Build()
	}
	return e.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (e *Endpoint) Serve(ctx context.Context, ln net.Listener) error {
	e.echo.Listener = ln

	serveErr := make(chan error, 1)
	go func() {
		log.Info("telemetry endpoint starting", logger.String("address", ln.Addr().String()))
		serveErr <- e.echo.Start("")
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("telemetry HTTP server error", logger.Error(err))
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("stopping telemetry server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), metricspkg.ShutdownTimeout)
	defer cancel()
	if err := e.echo.Shutdown(shutdownCtx); err != nil {
		log.Error("telemetry server shutdown error", logger.Error(err))
		return err
	}
	<-serveErr
	return nil
}

// GetMetrics returns the Metrics instance associated with this Endpoint.
func (e *Endpoint) GetMetrics() *Metrics {
	return e.metrics
}

func (e *Endpoint) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":  "ok",
		"streams": e.streams.Len(),
	})
}

func (e *Endpoint) listStreams(c echo.Context) error {
	return c.JSON(http.StatusOK, e.streams.Snapshots())
}

func (e *Endpoint) getStream(c echo.Context) error {
	a, ok := e.streams.Get(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "stream not found")
	}
	return c.JSON(http.StatusOK, a.Snapshot())
}
