// Package httpserver exposes the offline cache worker over HTTP: a control
// endpoint for worker messages, a status endpoint, and a catch-all proxy that
// routes every other request through the worker registration.
package httpserver

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/dmitrijs2005/shellkeeper/internal/logging"
	"github.com/dmitrijs2005/shellkeeper/internal/server/worker"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/sync/errgroup"
)

const (
	MessagePath = "/__worker/message"
	StatusPath  = "/__worker/status"
)

// Registration is the worker surface the server needs.
type Registration interface {
	Fetch(ctx context.Context, req *http.Request) (*http.Response, error)
	HandleMessage(ctx context.Context, raw []byte) error
	Status() worker.Status
}

type HTTPServer struct {
	address string
	origin  *url.URL
	reg     Registration
	logger  logging.Logger
	echo    *echo.Echo
}

func NewHTTPServer(address string, origin *url.URL, reg Registration, l logging.Logger) *HTTPServer {
	s := &HTTPServer{
		address: address,
		origin:  origin,
		reg:     reg,
		logger:  l.With("module", "http_server"),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogError:    true,
		LogMethod:   true,
		LogLatency:  true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			rctx := c.Request().Context()
			if v.Error == nil {
				s.logger.Debug(rctx, "request completed",
					"method", v.Method, "uri", v.URI, "status", v.Status, "latency_ms", v.Latency.Milliseconds())
			} else {
				s.logger.Warn(rctx, "request failed",
					"method", v.Method, "uri", v.URI, "status", v.Status, "latency_ms", v.Latency.Milliseconds(),
					"error", v.Error.Error())
			}
			return nil
		},
	}))
	e.Use(middleware.Recover())

	e.POST(MessagePath, s.handleMessage)
	e.GET(StatusPath, s.handleStatus)
	e.Any("/*", s.handleProxy)

	s.echo = e
	return s
}

// Handler returns the routed handler, for tests and embedding.
func (s *HTTPServer) Handler() http.Handler {
	return s.echo
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info(ctx, "Starting HTTP server", "address", s.address, "origin", s.origin.String())
		if err := s.echo.Start(s.address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.echo.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
