// Package cachestore keeps HTTP responses in named buckets, keyed by request
// URL. It backs the worker's static (install-time) and runtime caches.
//
// Three backends share the same semantics: MemoryStorage, SQLiteStorage and
// S3Storage. Writes are keyed by URL and the last write wins.
package cachestore

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"time"
)

// Entry is one stored response.
type Entry struct {
	URL      string      `json:"url"`
	Status   int         `json:"status"`
	Header   http.Header `json:"header"`
	Body     []byte      `json:"body"`
	StoredAt time.Time   `json:"stored_at"`
}

// Clone returns a deep copy of e.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	cp := *e
	cp.Header = e.Header.Clone()
	cp.Body = bytes.Clone(e.Body)
	return &cp
}

// Response rebuilds an *http.Response from the entry for req.
func (e *Entry) Response(req *http.Request) *http.Response {
	h := e.Header.Clone()
	if h == nil {
		h = http.Header{}
	}
	h.Set("Content-Length", strconv.Itoa(len(e.Body)))
	return &http.Response{
		Status:        strconv.Itoa(e.Status) + " " + http.StatusText(e.Status),
		StatusCode:    e.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        h,
		Body:          io.NopCloser(bytes.NewReader(e.Body)),
		ContentLength: int64(len(e.Body)),
		Request:       req,
	}
}

// Cache is a single named bucket.
type Cache interface {
	// Put stores e under key, replacing any previous entry. Writes through a
	// handle whose bucket has since been deleted are dropped.
	Put(ctx context.Context, key string, e *Entry) error
	// Match returns the entry stored under key, or (nil, nil) on a miss.
	Match(ctx context.Context, key string) (*Entry, error)
}

// Storage is the set of buckets.
type Storage interface {
	// Open returns the bucket called name, creating it if needed.
	Open(ctx context.Context, name string) (Cache, error)
	// Keys lists bucket names in creation order.
	Keys(ctx context.Context) ([]string, error)
	// Delete removes a bucket and everything in it. It reports whether the
	// bucket existed.
	Delete(ctx context.Context, name string) (bool, error)
	// Match searches every bucket in creation order and returns the first
	// hit, or (nil, nil).
	Match(ctx context.Context, key string) (*Entry, error)
}
