package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/shellkeeper/internal/client/client"
	"github.com/dmitrijs2005/shellkeeper/internal/client/config"
	"github.com/dmitrijs2005/shellkeeper/internal/client/models"
	"github.com/dmitrijs2005/shellkeeper/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGuard struct {
	check     models.CheckResult
	current   models.User
	protect   bool
	loginErr  error
	navigated []string

	lastEmail, lastPassword string
	logouts                 int
}

func (g *fakeGuard) CheckSession(context.Context) models.CheckResult { return g.check }
func (g *fakeGuard) CurrentUser(context.Context) models.User         { return g.current }
func (g *fakeGuard) Logout(context.Context) {
	g.logouts++
	g.navigated = append(g.navigated, "login.html")
}
func (g *fakeGuard) ProtectRoute(_ context.Context, redirect string) bool {
	if !g.protect {
		if redirect == "" {
			redirect = "login.html"
		}
		g.navigated = append(g.navigated, redirect)
	}
	return g.protect
}
func (g *fakeGuard) Login(_ context.Context, email, password string) error {
	g.lastEmail, g.lastPassword = email, password
	return g.loginErr
}

func (g *fakeGuard) Location(context.Context) (string, error) {
	if len(g.navigated) == 0 {
		return "", nil
	}
	return g.navigated[len(g.navigated)-1], nil
}

func newTestApp(g *fakeGuard, input string) (*App, *bytes.Buffer) {
	var out bytes.Buffer
	return &App{
		guard:   g,
		locator: g,
		logger:  logging.NewNopLogger(),
		reader:  bufio.NewReader(strings.NewReader(input)),
		out:     &out,
	}, &out
}

func TestApp_Check(t *testing.T) {
	g := &fakeGuard{check: models.CheckResult{Authenticated: true, User: models.User{"id": "u-1", "email": "a@example.org", "branch": "north"}}}
	a, out := newTestApp(g, "")

	require.NoError(t, a.Check(context.Background()))
	assert.Contains(t, out.String(), "Authenticated as a@example.org (u-1)")
	assert.Contains(t, out.String(), `"branch": "north"`)
	assert.Equal(t, "u-1", a.user.ID(), "last check feeds the current-user accessor")

	g.check = models.CheckResult{}
	out.Reset()
	require.ErrorIs(t, a.Check(context.Background()), ErrNotAuthenticated)
	assert.Contains(t, out.String(), "Not authenticated")
	assert.Nil(t, a.user)
}

func TestApp_WhoAmI(t *testing.T) {
	g := &fakeGuard{}
	a, out := newTestApp(g, "")

	require.ErrorIs(t, a.WhoAmI(context.Background()), ErrNotAuthenticated)
	assert.Contains(t, out.String(), "Nobody is signed in")

	g.current = models.User{"id": "u-2"}
	out.Reset()
	require.NoError(t, a.WhoAmI(context.Background()))
	assert.Contains(t, out.String(), `"id": "u-2"`)
}

func TestApp_ProtectAndLocation(t *testing.T) {
	g := &fakeGuard{}
	a, out := newTestApp(g, "")

	require.NoError(t, a.Location(context.Background()))
	assert.Contains(t, out.String(), "Location: (none)")

	out.Reset()
	require.NoError(t, a.Protect(context.Background(), "mobile/login.html"))
	assert.Contains(t, out.String(), "Location: mobile/login.html")

	g.protect = true
	out.Reset()
	require.NoError(t, a.Protect(context.Background(), ""))
	assert.Contains(t, out.String(), "Access granted")
}

func TestApp_Login(t *testing.T) {
	old := getPassword
	t.Cleanup(func() { getPassword = old })

	var handed []byte
	getPassword = func(w io.Writer) ([]byte, error) {
		handed = []byte("secret")
		return handed, nil
	}

	g := &fakeGuard{}
	a, out := newTestApp(g, "ann@example.org\n")

	require.NoError(t, a.Login(context.Background()))
	assert.Equal(t, "ann@example.org", g.lastEmail)
	assert.Equal(t, "secret", g.lastPassword)
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0}, handed, "password is wiped")
	assert.Contains(t, out.String(), "Login successful")
}

func TestApp_LoginFailures(t *testing.T) {
	old := getPassword
	t.Cleanup(func() { getPassword = old })
	getPassword = func(io.Writer) ([]byte, error) { return []byte("x"), nil }

	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "unavailable", err: client.ErrUnavailable, want: "Backend unavailable"},
		{name: "bad credentials", err: &client.APIError{Status: 400, Code: "invalid_credentials"}, want: "Invalid email or password"},
		{name: "other", err: errors.New("boom"), want: "Login unsuccessful: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, out := newTestApp(&fakeGuard{loginErr: tt.err}, "a@example.org\n")
			require.Error(t, a.Login(context.Background()))
			assert.Contains(t, out.String(), tt.want)
		})
	}
}

func TestApp_LoginPromptError(t *testing.T) {
	a, _ := newTestApp(&fakeGuard{}, "")
	require.Error(t, a.Login(context.Background()))
}

func TestApp_Logout(t *testing.T) {
	g := &fakeGuard{}
	a, out := newTestApp(g, "")

	require.NoError(t, a.Logout(context.Background()))
	assert.Equal(t, 1, g.logouts)
	assert.Contains(t, out.String(), "Location: login.html")
}

func TestNewApp_OneShotWithoutBackend(t *testing.T) {
	silence(t)
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.StoragePath = filepath.Join(t.TempDir(), "guard.db")
	cfg.RequestTimeout = time.Second

	a, err := NewApp(context.Background(), cfg, logging.NewNopLogger())
	require.NoError(t, err)
	var out bytes.Buffer
	a.out = &out

	err = a.Run(context.Background(), []string{"protect"})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Location: login.html")
}

func TestNewApp_SessionScopeStartsEmpty(t *testing.T) {
	silence(t)
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.StoragePath = filepath.Join(t.TempDir(), "guard.db")

	first, err := NewApp(context.Background(), cfg, logging.NewNopLogger())
	require.NoError(t, err)
	first.out = &bytes.Buffer{}
	require.NoError(t, first.Run(context.Background(), []string{"protect", "elsewhere.html"}))

	second, err := NewApp(context.Background(), cfg, logging.NewNopLogger())
	require.NoError(t, err)
	var out bytes.Buffer
	second.out = &out
	require.NoError(t, second.Run(context.Background(), []string{"location"}))
	assert.Contains(t, out.String(), "Location: (none)")
}

func TestNewApp_BadStoragePath(t *testing.T) {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.StoragePath = filepath.Join(t.TempDir(), "missing-dir", "guard.db")

	_, err := NewApp(context.Background(), cfg, logging.NewNopLogger())
	require.Error(t, err)
	_, statErr := os.Stat(cfg.StoragePath)
	assert.True(t, os.IsNotExist(statErr))
}
