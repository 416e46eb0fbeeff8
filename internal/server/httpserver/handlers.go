package httpserver

import (
	"errors"
	"io"
	"net/http"
	"net/url"

	"github.com/dmitrijs2005/shellkeeper/internal/server/worker"
	"github.com/labstack/echo/v4"
)

const maxMessageSize = 64 << 10

// hopHeaders are meaningful for a single connection only.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// mapWorkerError converts a worker error into an echo.HTTPError.
func mapWorkerError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, worker.ErrUnknownMessage):
		return echo.NewHTTPError(http.StatusBadRequest, "unknown control message")
	case errors.Is(err, worker.ErrNoResponse):
		return echo.NewHTTPError(http.StatusGatewayTimeout, "no response available")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}

func (s *HTTPServer) handleMessage(c echo.Context) error {
	raw, err := io.ReadAll(io.LimitReader(c.Request().Body, maxMessageSize))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable message")
	}
	if err := s.reg.HandleMessage(c.Request().Context(), raw); err != nil {
		return mapWorkerError(err).SetInternal(err)
	}
	return c.JSON(http.StatusOK, s.reg.Status())
}

func (s *HTTPServer) handleStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.reg.Status())
}

// target is the absolute URL a proxied request is for: the request URL
// itself in absolute form (forward proxy use), otherwise the path on the
// origin.
func (s *HTTPServer) target(r *http.Request) *url.URL {
	if r.URL.IsAbs() {
		return r.URL
	}
	return s.origin.ResolveReference(&url.URL{
		Path:     r.URL.Path,
		RawPath:  r.URL.RawPath,
		RawQuery: r.URL.RawQuery,
	})
}

func (s *HTTPServer) handleProxy(c echo.Context) error {
	in := c.Request()
	ctx := in.Context()

	out := in.Clone(ctx)
	out.URL = s.target(in)
	out.RequestURI = ""
	out.Host = ""
	removeHopHeaders(out.Header)

	resp, err := s.reg.Fetch(ctx, out)
	if err != nil {
		return mapWorkerError(err).SetInternal(err)
	}
	defer resp.Body.Close()

	h := c.Response().Header()
	for k, vs := range resp.Header {
		for _, v := range vs {
			h.Add(k, v)
		}
	}
	removeHopHeaders(h)
	c.Response().WriteHeader(resp.StatusCode)

	if _, err := io.Copy(c.Response(), resp.Body); err != nil {
		s.logger.Warn(ctx, "failed to stream response", "url", out.URL.String(), "error", err)
	}
	return nil
}

func removeHopHeaders(h http.Header) {
	for _, k := range hopHeaders {
		h.Del(k)
	}
}
