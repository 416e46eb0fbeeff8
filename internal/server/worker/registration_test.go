package worker

import (
	"context"
	"net/http"
	"testing"

	"github.com/dmitrijs2005/shellkeeper/internal/logging"
	"github.com/dmitrijs2005/shellkeeper/internal/server/cachestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistration_Lifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFakeFetcher()
	serveAssets(f, "v1")
	s := cachestore.NewMemoryStorage()
	r := NewRegistration(s, f, logging.NewNopLogger())

	// no worker yet: plain network
	resp, err := r.Fetch(ctx, newRequest(t, http.MethodGet, origin+"index.html", true))
	require.NoError(t, err)
	assert.Equal(t, "<html>shell v1", readBody(t, resp))
	assert.Empty(t, f.last().Header.Get("Cache-Control"))

	first, err := r.Register(ctx, testOptions("v1"))
	require.NoError(t, err)
	assert.Equal(t, StateActive, first.State(), "first version activates at once")
	assert.Same(t, first, r.Active())
	assert.Nil(t, r.Waiting())

	serveAssets(f, "v2")
	second, err := r.Register(ctx, testOptions("v2"))
	require.NoError(t, err)
	assert.Equal(t, StateWaiting, second.State())
	assert.Same(t, first, r.Active(), "a new version waits")

	// the active worker keeps answering from its own static bucket
	f.setOffline(true)
	resp, err = r.Fetch(ctx, newRequest(t, http.MethodGet, origin+"index.html", true))
	require.NoError(t, err)
	assert.Equal(t, "<html>shell v1", readBody(t, resp))
	f.setOffline(false)

	st := r.Status()
	require.NotNil(t, st.Active)
	require.NotNil(t, st.Waiting)
	assert.Equal(t, "v1", st.Active.Version)
	assert.Equal(t, StateWaiting, st.Waiting.State)

	require.NoError(t, r.HandleMessage(ctx, []byte(`{"type":"SKIP_WAITING"}`)))
	assert.Same(t, second, r.Active())
	assert.Nil(t, r.Waiting())
	assert.Equal(t, StateSuperseded, first.State())
	assert.Equal(t, StateActive, second.State())

	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"app-static-v2"}, keys)

	// nothing waiting: no-op
	require.NoError(t, r.HandleMessage(ctx, []byte("SKIP_WAITING")))
	assert.Same(t, second, r.Active())
}

func TestRegistration_NewerWaitingReplacesOlder(t *testing.T) {
	ctx := context.Background()
	f := newFakeFetcher()
	serveAssets(f, "v1")
	r := NewRegistration(cachestore.NewMemoryStorage(), f, logging.NewNopLogger())

	_, err := r.Register(ctx, testOptions("v1"))
	require.NoError(t, err)
	v2, err := r.Register(ctx, testOptions("v2"))
	require.NoError(t, err)
	v3, err := r.Register(ctx, testOptions("v3"))
	require.NoError(t, err)

	assert.Equal(t, StateRedundant, v2.State())
	assert.Same(t, v3, r.Waiting())

	require.NoError(t, r.HandleMessage(ctx, []byte(`"SKIP_WAITING"`)))
	assert.Equal(t, "v3", r.Active().Version())
}

func TestRegistration_FailedInstallKeepsCurrent(t *testing.T) {
	ctx := context.Background()
	f := newFakeFetcher()
	serveAssets(f, "v1")
	r := NewRegistration(cachestore.NewMemoryStorage(), f, logging.NewNopLogger())

	v1, err := r.Register(ctx, testOptions("v1"))
	require.NoError(t, err)

	f.serve(origin+"js/app.js", http.StatusBadGateway, "")
	_, err = r.Register(ctx, testOptions("v2"))
	require.ErrorIs(t, err, ErrInstallFailed)

	assert.Same(t, v1, r.Active())
	assert.Nil(t, r.Waiting())
}

func TestRegistration_UnknownMessage(t *testing.T) {
	r := NewRegistration(cachestore.NewMemoryStorage(), newFakeFetcher(), logging.NewNopLogger())

	for _, raw := range []string{`{"type":"CLAIM"}`, `{"kind":"SKIP_WAITING"}`, `"hello"`, ``, `[1,2]`} {
		require.ErrorIs(t, r.HandleMessage(context.Background(), []byte(raw)), ErrUnknownMessage, raw)
	}
}

func TestParseMessage(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{raw: `{"type":"SKIP_WAITING"}`, want: SkipWaiting},
		{raw: `{"type":"SKIP_WAITING","extra":1}`, want: SkipWaiting},
		{raw: `"SKIP_WAITING"`, want: SkipWaiting},
		{raw: "SKIP_WAITING\n", want: SkipWaiting},
	}
	for _, tt := range tests {
		got, err := parseMessage([]byte(tt.raw))
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got)
	}
}
