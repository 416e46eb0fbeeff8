package worker

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/dmitrijs2005/shellkeeper/internal/logging"
	"github.com/dmitrijs2005/shellkeeper/internal/server/cachestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Validation(t *testing.T) {
	s := cachestore.NewMemoryStorage()
	f := newFakeFetcher()

	opts := testOptions("v1")
	opts.Origin = nil
	_, err := New(opts, s, f, logging.NewNopLogger())
	require.Error(t, err)

	opts = testOptions("v1")
	opts.Origin, _ = url.Parse("/relative")
	_, err = New(opts, s, f, logging.NewNopLogger())
	require.Error(t, err)

	opts = testOptions("")
	_, err = New(opts, s, f, logging.NewNopLogger())
	require.Error(t, err)
}

func TestInstall_PrimesStaticBucket(t *testing.T) {
	ctx := context.Background()
	f := newFakeFetcher()
	serveAssets(f, "v1")
	s := cachestore.NewMemoryStorage()

	w, err := New(testOptions("v1"), s, f, logging.NewNopLogger())
	require.NoError(t, err)
	assert.Equal(t, StateInstalling, w.State())

	require.NoError(t, w.Install(ctx))
	assert.Equal(t, StateWaiting, w.State())

	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"app-static-v1"}, keys)

	static, err := s.Open(ctx, "app-static-v1")
	require.NoError(t, err)
	for _, u := range []string{"index.html", "mobile/index.html", "css/app.css", "js/app.js", "js/loans.js"} {
		e, err := static.Match(ctx, origin+u)
		require.NoError(t, err)
		require.NotNil(t, e, u)
		assert.Equal(t, http.StatusOK, e.Status)
	}

	for _, req := range f.requests {
		assert.Equal(t, "no-cache", req.Header.Get("Cache-Control"), req.URL.String())
		assert.Equal(t, "no-cache", req.Header.Get("Pragma"))
	}

	require.ErrorIs(t, w.Install(ctx), ErrInvalidState)
}

func TestInstall_AllOrNothing(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *fakeFetcher)
	}{
		{name: "network error", setup: func(f *fakeFetcher) { f.fail(origin+"js/loans.js", errors.New("connection reset")) }},
		{name: "server error", setup: func(f *fakeFetcher) { f.serve(origin+"css/app.css", http.StatusInternalServerError, "oops") }},
		{name: "missing asset", setup: func(f *fakeFetcher) { delete(f.routes, origin+"mobile/index.html") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFakeFetcher()
			serveAssets(f, "v1")
			tt.setup(f)
			s := cachestore.NewMemoryStorage()

			w, err := New(testOptions("v1"), s, f, logging.NewNopLogger())
			require.NoError(t, err)

			err = w.Install(ctx)
			require.ErrorIs(t, err, ErrInstallFailed)
			assert.Equal(t, StateRedundant, w.State())

			keys, err := s.Keys(ctx)
			require.NoError(t, err)
			assert.Empty(t, keys, "nothing is stored")

			require.ErrorIs(t, w.Activate(ctx), ErrInvalidState)
		})
	}
}

func TestActivate_DeletesStaleBuckets(t *testing.T) {
	ctx := context.Background()
	f := newFakeFetcher()
	serveAssets(f, "v3")
	s := cachestore.NewMemoryStorage()

	for _, name := range []string{"app-static-v1", "app-runtime-v2", "other-static-v1", "application-data"} {
		_, err := s.Open(ctx, name)
		require.NoError(t, err)
	}

	w, err := New(testOptions("v3"), s, f, logging.NewNopLogger())
	require.NoError(t, err)
	require.ErrorIs(t, w.Activate(ctx), ErrInvalidState, "must install first")

	require.NoError(t, w.Install(ctx))
	require.NoError(t, w.Activate(ctx))
	assert.Equal(t, StateActive, w.State())

	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"other-static-v1", "application-data", "app-static-v3"}, keys)
}

func TestFetch_WriteThroughThenOffline(t *testing.T) {
	ctx := context.Background()
	w, f, s := activeWorker(t)
	f.serve(origin+"api/rates.json?day=1", http.StatusOK, `{"eur":1}`)

	resp, err := w.Fetch(ctx, newRequest(t, http.MethodGet, origin+"api/rates.json?day=1", false))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"eur":1}`, readBody(t, resp))
	assert.Equal(t, "no-cache", f.last().Header.Get("Cache-Control"), "same-origin requests bypass caches")

	runtime, err := s.Open(ctx, "app-runtime-v1")
	require.NoError(t, err)
	e, err := runtime.Match(ctx, origin+"api/rates.json?day=1")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, `{"eur":1}`, string(e.Body))

	f.setOffline(true)
	resp, err = w.Fetch(ctx, newRequest(t, http.MethodGet, origin+"api/rates.json?day=1", false))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"eur":1}`, readBody(t, resp))
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
}

func TestFetch_OfflineServesCachedItemUnchanged(t *testing.T) {
	ctx := context.Background()
	w, f, _ := activeWorker(t)
	f.setOffline(true)

	resp, err := w.Fetch(ctx, newRequest(t, http.MethodGet, origin+"js/app.js", false))
	require.NoError(t, err)
	assert.Equal(t, "app()", readBody(t, resp))
}

func TestFetch_OfflineMissIsNoResponse(t *testing.T) {
	w, f, _ := activeWorker(t)
	f.setOffline(true)

	_, err := w.Fetch(context.Background(), newRequest(t, http.MethodGet, origin+"img/logo.png", false))
	require.ErrorIs(t, err, ErrNoResponse)
	require.ErrorIs(t, err, errOffline)
}

func TestFetch_NotCached(t *testing.T) {
	ctx := context.Background()

	t.Run("non-200", func(t *testing.T) {
		w, f, s := activeWorker(t)
		f.serve(origin+"api/created", http.StatusCreated, "ok")

		resp, err := w.Fetch(ctx, newRequest(t, http.MethodGet, origin+"api/created", false))
		require.NoError(t, err)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		resp.Body.Close()

		e, err := s.Match(ctx, origin+"api/created")
		require.NoError(t, err)
		assert.Nil(t, e)
	})

	t.Run("redirected to another origin", func(t *testing.T) {
		w, f, s := activeWorker(t)
		f.routes[origin+"avatar"] = route{status: http.StatusOK, body: "img", finalURL: "https://drive.example.com/a.png"}

		resp, err := w.Fetch(ctx, newRequest(t, http.MethodGet, origin+"avatar", false))
		require.NoError(t, err)
		assert.Equal(t, "img", readBody(t, resp))

		e, err := s.Match(ctx, origin+"avatar")
		require.NoError(t, err)
		assert.Nil(t, e)
	})

	t.Run("non-GET is not intercepted", func(t *testing.T) {
		w, f, s := activeWorker(t)
		f.serve(origin+"api/save", http.StatusOK, "saved")

		resp, err := w.Fetch(ctx, newRequest(t, http.MethodPost, origin+"api/save", false))
		require.NoError(t, err)
		assert.Equal(t, "saved", readBody(t, resp))
		assert.Empty(t, f.last().Header.Get("Cache-Control"))

		e, err := s.Match(ctx, origin+"api/save")
		require.NoError(t, err)
		assert.Nil(t, e)
	})
}

func TestFetch_CrossOriginPassThrough(t *testing.T) {
	ctx := context.Background()
	w, f, s := activeWorker(t)
	const flag = "https://flagcdn.example.net/lv.svg"
	f.serve(flag, http.StatusOK, "<svg/>")

	req := newRequest(t, http.MethodGet, flag, false)
	req.Header.Set("X-Trace", "1")
	resp, err := w.Fetch(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "<svg/>", readBody(t, resp))
	assert.Empty(t, f.last().Header.Get("Cache-Control"), "request used unmodified")
	assert.Equal(t, "1", f.last().Header.Get("X-Trace"))

	e, err := s.Match(ctx, flag)
	require.NoError(t, err)
	assert.Nil(t, e)

	// network-only: even a cached copy is not consulted
	static, err := s.Open(ctx, "app-static-v1")
	require.NoError(t, err)
	require.NoError(t, static.Put(ctx, flag, &cachestore.Entry{URL: flag, Status: 200, Body: []byte("stale")}))
	f.setOffline(true)
	_, err = w.Fetch(ctx, newRequest(t, http.MethodGet, flag, false))
	require.ErrorIs(t, err, ErrNoResponse)
}

func TestFetch_Navigation404ServesShell(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		path   string
		remove []string
		want   string
		status int
	}{
		{name: "mobile segment", path: "m/mobile/loans/42", want: "<html>mobile shell v1", status: 200},
		{name: "mobile-prefixed name", path: "mobile-dashboard", want: "<html>mobile shell v1", status: 200},
		{name: "desktop path", path: "loans/42", want: "<html>shell v1", status: 200},
		{name: "mobile shell missing", path: "x/mobile/y", remove: []string{"mobile/index.html"}, want: "<html>shell v1", status: 200},
		{name: "no shell cached", path: "x/mobile/y", remove: []string{"mobile/index.html", "index.html"}, want: "not found", status: 404},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeFetcher()
			serveAssets(f, "v1")
			opts := testOptions("v1")
			for _, r := range tt.remove {
				opts.Essential = removeString(opts.Essential, r)
			}
			w, err := New(opts, cachestore.NewMemoryStorage(), f, logging.NewNopLogger())
			require.NoError(t, err)
			require.NoError(t, w.Install(ctx))
			require.NoError(t, w.Activate(ctx))

			resp, err := w.Fetch(ctx, newRequest(t, http.MethodGet, origin+tt.path, true))
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.want, readBody(t, resp))
		})
	}
}

func TestFetch_Non404OrNonNavigationUntouched(t *testing.T) {
	ctx := context.Background()
	w, _, _ := activeWorker(t)

	resp, err := w.Fetch(ctx, newRequest(t, http.MethodGet, origin+"js/missing.js", false))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not found", readBody(t, resp))

	req := newRequest(t, http.MethodGet, origin+"loans", false)
	req.Header.Set("Accept", "text/html")
	resp, err = w.Fetch(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "<html>shell v1", readBody(t, resp), "an Accept: text/html GET is a navigation")
}

func TestFetch_OfflineNavigation(t *testing.T) {
	ctx := context.Background()

	t.Run("shell fetched from network", func(t *testing.T) {
		w, f, _ := activeWorker(t)
		f.fail(origin+"mobile/loans/42", errOffline)
		f.serve(origin+"mobile/index.html", http.StatusOK, "<html>fresh mobile")

		resp, err := w.Fetch(ctx, newRequest(t, http.MethodGet, origin+"mobile/loans/42", true))
		require.NoError(t, err)
		assert.Equal(t, "<html>fresh mobile", readBody(t, resp))
		assert.Equal(t, origin+"mobile/index.html", f.last().URL.String())
		assert.Equal(t, "no-cache", f.last().Header.Get("Cache-Control"))
	})

	t.Run("page cached", func(t *testing.T) {
		w, f, _ := activeWorker(t)
		f.setOffline(true)

		resp, err := w.Fetch(ctx, newRequest(t, http.MethodGet, origin+"index.html", true))
		require.NoError(t, err)
		assert.Equal(t, "<html>shell v1", readBody(t, resp))
	})

	t.Run("shell from cache when fully offline", func(t *testing.T) {
		w, f, _ := activeWorker(t)
		f.setOffline(true)

		resp, err := w.Fetch(ctx, newRequest(t, http.MethodGet, origin+"mobile/loans/42", true))
		require.NoError(t, err)
		assert.Equal(t, "<html>mobile shell v1", readBody(t, resp))
	})

	t.Run("nothing anywhere", func(t *testing.T) {
		f := newFakeFetcher()
		opts := testOptions("v1")
		opts.Essential, opts.Modules = nil, nil
		w, err := New(opts, cachestore.NewMemoryStorage(), f, logging.NewNopLogger())
		require.NoError(t, err)
		require.NoError(t, w.Install(ctx))
		require.NoError(t, w.Activate(ctx))
		f.setOffline(true)

		_, err = w.Fetch(ctx, newRequest(t, http.MethodGet, origin+"loans", true))
		require.ErrorIs(t, err, ErrNoResponse)
	})
}

func TestPolicyHelpers(t *testing.T) {
	assert.True(t, isMobilePath("/a/mobile/b"))
	assert.True(t, isMobilePath("/mobile_loans.html"))
	assert.False(t, isMobilePath("/automobile/list"))
	assert.False(t, isMobilePath("/loans"))

	a, _ := url.Parse("https://app.example.org/x")
	b, _ := url.Parse("https://APP.example.org:443/y")
	c, _ := url.Parse("http://app.example.org/x")
	assert.True(t, sameOrigin(a, b))
	assert.False(t, sameOrigin(a, c))

	u, _ := url.Parse("https://app.example.org/p?q=1#frag")
	assert.Equal(t, "https://app.example.org/p?q=1", cacheKey(u))

	assert.Equal(t, "app-static-v2", StaticBucket("app", "v2"))
	assert.Equal(t, "app-runtime-v2", RuntimeBucket("app", "v2"))
}

func removeString(in []string, s string) []string {
	out := in[:0:0]
	for _, v := range in {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
