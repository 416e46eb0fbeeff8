package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/dmitrijs2005/shellkeeper/internal/logging"
	"github.com/dmitrijs2005/shellkeeper/internal/server/cachestore"
)

// SkipWaiting is the control message that activates a waiting worker.
const SkipWaiting = "SKIP_WAITING"

// Registration owns the worker versions of one origin. At most one worker is
// active and at most one is waiting.
type Registration struct {
	storage cachestore.Storage
	fetcher Fetcher
	logger  logging.Logger

	mu      sync.Mutex
	active  *Worker
	waiting *Worker
}

func NewRegistration(storage cachestore.Storage, fetcher Fetcher, logger logging.Logger) *Registration {
	return &Registration{storage: storage, fetcher: fetcher, logger: logger}
}

// Register installs a new worker version. With no active worker it is
// activated straight away; otherwise it waits for SKIP_WAITING, replacing
// any worker already waiting.
func (r *Registration) Register(ctx context.Context, opts Options) (*Worker, error) {
	w, err := New(opts, r.storage, r.fetcher, r.logger)
	if err != nil {
		return nil, err
	}
	if err := w.Install(ctx); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.waiting != nil {
		r.waiting.setState(StateRedundant)
	}
	r.waiting = w

	if r.active == nil {
		if err := r.promoteLocked(ctx); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// SkipWaiting activates the waiting worker, if any.
func (r *Registration) SkipWaiting(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.waiting == nil {
		return nil
	}
	return r.promoteLocked(ctx)
}

func (r *Registration) promoteLocked(ctx context.Context) error {
	w := r.waiting
	if err := w.Activate(ctx); err != nil {
		return err
	}
	if r.active != nil {
		r.active.supersede()
	}
	r.active, r.waiting = w, nil
	r.logger.Info(ctx, "worker activated", "worker_id", w.ID(), "version", w.Version())
	return nil
}

// HandleMessage processes a control message. Both {"type":"SKIP_WAITING"}
// and "SKIP_WAITING" (JSON string or bare text) are accepted.
func (r *Registration) HandleMessage(ctx context.Context, raw []byte) error {
	msg, err := parseMessage(raw)
	if err != nil {
		return err
	}
	if msg != SkipWaiting {
		return fmt.Errorf("%w: %q", ErrUnknownMessage, msg)
	}
	return r.SkipWaiting(ctx)
}

func parseMessage(raw []byte) (string, error) {
	var obj struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Type != "" {
		return obj.Type, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	text := strings.TrimSpace(string(raw))
	if text == "" || strings.ContainsAny(text, "{}[]\"") {
		return "", fmt.Errorf("%w: %q", ErrUnknownMessage, text)
	}
	return text, nil
}

// Active returns the controlling worker, or nil.
func (r *Registration) Active() *Worker {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Waiting returns the installed worker waiting for activation, or nil.
func (r *Registration) Waiting() *Worker {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.waiting
}

// Fetch routes req to the active worker. Without one the request goes
// straight to the network.
func (r *Registration) Fetch(ctx context.Context, req *http.Request) (*http.Response, error) {
	if w := r.Active(); w != nil {
		return w.Fetch(ctx, req)
	}
	resp, err := r.fetcher.Do(outbound(req.WithContext(ctx)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoResponse, err)
	}
	return resp, nil
}

// WorkerInfo describes one worker for status reporting.
type WorkerInfo struct {
	ID      string `json:"id"`
	Version string `json:"version"`
	State   State  `json:"state"`
}

type Status struct {
	Active  *WorkerInfo `json:"active"`
	Waiting *WorkerInfo `json:"waiting"`
}

func (r *Registration) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Status{Active: info(r.active), Waiting: info(r.waiting)}
}

func info(w *Worker) *WorkerInfo {
	if w == nil {
		return nil
	}
	return &WorkerInfo{ID: w.ID(), Version: w.Version(), State: w.State()}
}
