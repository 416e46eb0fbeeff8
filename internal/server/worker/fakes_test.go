package worker

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/dmitrijs2005/shellkeeper/internal/logging"
	"github.com/dmitrijs2005/shellkeeper/internal/server/cachestore"
	"github.com/stretchr/testify/require"
)

const origin = "https://app.example.org/"

var errOffline = errors.New("dial tcp: network is unreachable")

type route struct {
	status   int
	body     string
	err      error
	finalURL string
}

// fakeFetcher answers from a URL table; unknown URLs get a 404.
type fakeFetcher struct {
	mu       sync.Mutex
	routes   map[string]route
	offline  bool
	requests []*http.Request
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{routes: map[string]route{}}
}

func (f *fakeFetcher) serve(u string, status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[u] = route{status: status, body: body}
}

func (f *fakeFetcher) fail(u string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[u] = route{err: err}
}

func (f *fakeFetcher) setOffline(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offline = v
}

func (f *fakeFetcher) last() *http.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return nil
	}
	return f.requests[len(f.requests)-1]
}

func (f *fakeFetcher) Do(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, req)
	if req.RequestURI != "" {
		return nil, errors.New("http: Request.RequestURI can't be set in client requests")
	}
	if f.offline {
		return nil, errOffline
	}

	r, ok := f.routes[req.URL.String()]
	if !ok {
		r = route{status: http.StatusNotFound, body: "not found"}
	}
	if r.err != nil {
		return nil, r.err
	}

	final := req
	if r.finalURL != "" {
		final = req.Clone(req.Context())
		final.URL, _ = url.Parse(r.finalURL)
	}
	return &http.Response{
		StatusCode: r.status,
		Status:     http.StatusText(r.status),
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header:     http.Header{"Content-Type": {"text/html; charset=utf-8"}},
		Body:       io.NopCloser(strings.NewReader(r.body)),
		Request:    final,
	}, nil
}

func testOptions(version string) Options {
	u, _ := url.Parse(origin)
	return Options{
		Origin:    u,
		Prefix:    "app",
		Version:   version,
		Essential: []string{"index.html", "mobile/index.html", "css/app.css"},
		Modules:   []string{"js/app.js", "/js/loans.js"},
	}
}

func serveAssets(f *fakeFetcher, version string) {
	f.serve(origin+"index.html", http.StatusOK, "<html>shell "+version)
	f.serve(origin+"mobile/index.html", http.StatusOK, "<html>mobile shell "+version)
	f.serve(origin+"css/app.css", http.StatusOK, "body{}")
	f.serve(origin+"js/app.js", http.StatusOK, "app()")
	f.serve(origin+"js/loans.js", http.StatusOK, "loans()")
}

func newRequest(t *testing.T, method, target string, nav bool) *http.Request {
	t.Helper()
	req, err := http.NewRequest(method, target, nil)
	require.NoError(t, err)
	if nav {
		req.Header.Set("Sec-Fetch-Mode", "navigate")
		req.Header.Set("Accept", "text/html,application/xhtml+xml")
	}
	return req
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

// activeWorker returns an installed, activated worker over fresh storage.
func activeWorker(t *testing.T) (*Worker, *fakeFetcher, *cachestore.MemoryStorage) {
	t.Helper()
	f := newFakeFetcher()
	serveAssets(f, "v1")
	s := cachestore.NewMemoryStorage()

	w, err := New(testOptions("v1"), s, f, logging.NewNopLogger())
	require.NoError(t, err)
	require.NoError(t, w.Install(context.Background()))
	require.NoError(t, w.Activate(context.Background()))
	return w, f, s
}
