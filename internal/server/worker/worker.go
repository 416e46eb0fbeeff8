package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/shellkeeper/internal/logging"
	"github.com/dmitrijs2005/shellkeeper/internal/server/cachestore"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type State string

const (
	StateInstalling State = "installing"
	StateWaiting    State = "waiting"
	StateActive     State = "active"
	StateSuperseded State = "superseded"
	StateRedundant  State = "redundant"
)

// Fetcher performs network requests. *http.Client satisfies it.
type Fetcher interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options configures one worker version.
type Options struct {
	// Origin is the application's origin; asset paths resolve against it.
	Origin *url.URL
	// Prefix is the application's cache naming prefix.
	Prefix  string
	Version string
	// Essential and Modules are fetched into the static bucket at install.
	Essential []string
	Modules   []string
}

func StaticBucket(prefix, version string) string  { return prefix + "-static-" + version }
func RuntimeBucket(prefix, version string) string { return prefix + "-runtime-" + version }

type Worker struct {
	id      string
	opts    Options
	storage cachestore.Storage
	fetcher Fetcher
	logger  logging.Logger
	now     func() time.Time

	mu    sync.RWMutex
	state State
}

func New(opts Options, storage cachestore.Storage, fetcher Fetcher, logger logging.Logger) (*Worker, error) {
	if opts.Origin == nil || !isHTTPScheme(opts.Origin) || opts.Origin.Host == "" {
		return nil, errors.New("worker origin must be an absolute http(s) URL")
	}
	if opts.Prefix == "" || opts.Version == "" {
		return nil, errors.New("worker cache prefix and version are required")
	}
	id := uuid.NewString()
	return &Worker{
		id:      id,
		opts:    opts,
		storage: storage,
		fetcher: fetcher,
		logger:  logger.With("worker_id", id, "version", opts.Version),
		now:     time.Now,
		state:   StateInstalling,
	}, nil
}

func (w *Worker) ID() string      { return w.id }
func (w *Worker) Version() string { return w.opts.Version }

func (w *Worker) State() State {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

func (w *Worker) setState(s State) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

// transition moves from one state to another, failing if the worker is not
// in from.
func (w *Worker) transition(from, to State) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != from {
		return fmt.Errorf("%w: %s, want %s", ErrInvalidState, w.state, from)
	}
	w.state = to
	return nil
}

func (w *Worker) staticBucket() string  { return StaticBucket(w.opts.Prefix, w.opts.Version) }
func (w *Worker) runtimeBucket() string { return RuntimeBucket(w.opts.Prefix, w.opts.Version) }

// resolve turns an asset path into an absolute URL on the origin.
func (w *Worker) resolve(ref string) (*url.URL, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("bad asset URL %q: %w", ref, err)
	}
	return w.opts.Origin.ResolveReference(u), nil
}

// Install fetches every essential and module asset, bypassing HTTP caches,
// and stores them in the static bucket. Any failed or non-2xx fetch fails the
// whole install and nothing is stored; the worker then becomes redundant.
func (w *Worker) Install(ctx context.Context) error {
	if st := w.State(); st != StateInstalling {
		return fmt.Errorf("%w: %s, want %s", ErrInvalidState, st, StateInstalling)
	}

	assets := make([]string, 0, len(w.opts.Essential)+len(w.opts.Modules))
	assets = append(assets, w.opts.Essential...)
	assets = append(assets, w.opts.Modules...)

	entries := make([]*cachestore.Entry, len(assets))

	g, gctx := errgroup.WithContext(ctx)
	for i, asset := range assets {
		g.Go(func() error {
			u, err := w.resolve(asset)
			if err != nil {
				return err
			}
			req, err := http.NewRequestWithContext(gctx, http.MethodGet, u.String(), nil)
			if err != nil {
				return err
			}
			resp, err := w.fetcher.Do(forceNetwork(req))
			if err != nil {
				return fmt.Errorf("fetch %s: %w", u, err)
			}
			defer resp.Body.Close()
			if resp.StatusCode < 200 || resp.StatusCode > 299 {
				return fmt.Errorf("fetch %s: status %d", u, resp.StatusCode)
			}
			e, err := w.readEntry(cacheKey(u), resp)
			if err != nil {
				return err
			}
			entries[i] = e
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		w.setState(StateRedundant)
		w.logger.Error(ctx, "install failed", "error", err)
		return fmt.Errorf("%w: %w", ErrInstallFailed, err)
	}

	cache, err := w.storage.Open(ctx, w.staticBucket())
	if err != nil {
		w.setState(StateRedundant)
		return fmt.Errorf("%w: %w", ErrInstallFailed, err)
	}
	for _, e := range entries {
		if err := cache.Put(ctx, e.URL, e); err != nil {
			w.setState(StateRedundant)
			return fmt.Errorf("%w: %w", ErrInstallFailed, err)
		}
	}

	w.logger.Info(ctx, "installed", "assets", len(entries), "bucket", w.staticBucket())
	return w.transition(StateInstalling, StateWaiting)
}

// Activate deletes every bucket carrying the application prefix except the
// current static bucket, then takes control.
func (w *Worker) Activate(ctx context.Context) error {
	if st := w.State(); st != StateWaiting {
		return fmt.Errorf("%w: %s, want %s", ErrInvalidState, st, StateWaiting)
	}

	names, err := w.storage.Keys(ctx)
	if err != nil {
		return fmt.Errorf("list caches: %w", err)
	}
	current := w.staticBucket()
	for _, name := range names {
		if !strings.HasPrefix(name, w.opts.Prefix+"-") || name == current {
			continue
		}
		if _, err := w.storage.Delete(ctx, name); err != nil {
			return fmt.Errorf("delete cache %q: %w", name, err)
		}
		w.logger.Info(ctx, "deleted stale cache", "bucket", name)
	}

	return w.transition(StateWaiting, StateActive)
}

func (w *Worker) supersede() {
	w.setState(StateSuperseded)
}

func (w *Worker) readEntry(key string, resp *http.Response) (*cachestore.Entry, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return &cachestore.Entry{
		URL:      key,
		Status:   resp.StatusCode,
		Header:   resp.Header.Clone(),
		Body:     body,
		StoredAt: w.now(),
	}, nil
}

// Fetch answers req under the offline policy. req.URL must be absolute.
// Non-GET and cross-origin requests go to the network untouched. When nothing
// can answer, the error wraps ErrNoResponse.
func (w *Worker) Fetch(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)

	if req.Method != http.MethodGet || !sameOrigin(req.URL, w.opts.Origin) {
		resp, err := w.fetcher.Do(outbound(req))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrNoResponse, err)
		}
		return resp, nil
	}

	nav := isNavigation(req)

	resp, err := w.fetcher.Do(forceNetwork(req))
	if err != nil {
		w.logger.Debug(ctx, "network failed, trying caches", "url", req.URL.String(), "error", err)
		return w.offline(ctx, req, nav, err)
	}

	if resp.StatusCode == http.StatusNotFound && nav {
		if shell := w.cachedShell(ctx, req); shell != nil {
			resp.Body.Close()
			return shell, nil
		}
		return resp, nil
	}

	if resp.StatusCode == http.StatusOK && w.isBasic(resp) && isHTTPScheme(req.URL) {
		return w.writeThrough(ctx, req, resp)
	}
	return resp, nil
}

// isBasic reports whether resp is an untainted same-origin response, i.e.
// it was not redirected to another origin.
func (w *Worker) isBasic(resp *http.Response) bool {
	if resp.Request == nil || resp.Request.URL == nil {
		return true
	}
	return sameOrigin(resp.Request.URL, w.opts.Origin)
}

// writeThrough stores a copy of resp in the runtime bucket and returns an
// equivalent response to the caller. Storage failures are logged only.
func (w *Worker) writeThrough(ctx context.Context, req *http.Request, resp *http.Response) (*http.Response, error) {
	defer resp.Body.Close()

	key := cacheKey(req.URL)
	e, err := w.readEntry(key, resp)
	if err != nil {
		return w.offline(ctx, req, isNavigation(req), err)
	}

	cache, err := w.storage.Open(ctx, w.runtimeBucket())
	if err == nil {
		err = cache.Put(ctx, key, e)
	}
	if err != nil {
		w.logger.Warn(ctx, "runtime cache write failed", "url", key, "error", err)
	}

	out := e.Response(req)
	out.Status = resp.Status
	out.Proto, out.ProtoMajor, out.ProtoMinor = resp.Proto, resp.ProtoMajor, resp.ProtoMinor
	return out, nil
}

// cachedShell serves the shell document chosen for req's path from cache,
// falling back to the primary shell. Nil when neither is cached.
func (w *Worker) cachedShell(ctx context.Context, req *http.Request) *http.Response {
	candidates := []string{shellFor(req.URL.Path)}
	if candidates[0] != ShellDocument {
		candidates = append(candidates, ShellDocument)
	}
	for _, doc := range candidates {
		if e := w.match(ctx, doc); e != nil {
			return e.Response(req)
		}
	}
	return nil
}

// match looks an asset path up in every cache; lookup errors count as misses.
func (w *Worker) match(ctx context.Context, ref string) *cachestore.Entry {
	u, err := w.resolve(ref)
	if err != nil {
		return nil
	}
	e, err := w.storage.Match(ctx, cacheKey(u))
	if err != nil {
		w.logger.Warn(ctx, "cache lookup failed", "url", u.String(), "error", err)
		return nil
	}
	return e
}

// offline answers req after the network failed with netErr.
func (w *Worker) offline(ctx context.Context, req *http.Request, nav bool, netErr error) (*http.Response, error) {
	e, err := w.storage.Match(ctx, cacheKey(req.URL))
	if err != nil {
		w.logger.Warn(ctx, "cache lookup failed", "url", req.URL.String(), "error", err)
	}
	if e != nil {
		return e.Response(req), nil
	}
	if !nav {
		return nil, fmt.Errorf("%w: %w", ErrNoResponse, netErr)
	}

	doc := shellFor(req.URL.Path)
	u, err := w.resolve(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoResponse, err)
	}
	shellReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoResponse, err)
	}
	shellReq.Header.Set("Accept", "text/html")
	if resp, err := w.fetcher.Do(forceNetwork(shellReq)); err == nil {
		return resp, nil
	}
	if e := w.match(ctx, doc); e != nil {
		return e.Response(req), nil
	}
	return nil, fmt.Errorf("%w: %w", ErrNoResponse, netErr)
}
