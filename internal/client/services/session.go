// Package services contains the session guard: the single place that decides
// whether this client is signed in, and as whom.
package services

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/dmitrijs2005/shellkeeper/internal/client/client"
	"github.com/dmitrijs2005/shellkeeper/internal/client/models"
	"github.com/dmitrijs2005/shellkeeper/internal/logging"
)

const (
	DefaultLoginPath    = "login.html"
	DefaultProfileTable = "profiles"
)

// Environment is the host the guard runs in: it can move the user to another
// view and wipe every persisted storage scope.
type Environment interface {
	Navigate(ctx context.Context, path string)
	ClearStorage(ctx context.Context) error
}

// ClientProvider yields the backend client, or nil when it cannot be built.
type ClientProvider interface {
	Get(ctx context.Context) client.Client
}

// SessionGuard defines the session operations used by the application.
//
// Contract:
//   - CheckSession never fails: every problem maps to an unauthenticated result.
//   - Logout always ends on the login view.
//   - CurrentUser returns nil rather than an error.
//   - ProtectRoute redirects unauthenticated callers and reports the outcome.
//   - Login returns backend errors to the caller.
type SessionGuard interface {
	CheckSession(ctx context.Context) models.CheckResult
	Logout(ctx context.Context)
	CurrentUser(ctx context.Context) models.User
	ProtectRoute(ctx context.Context, redirectPath string) bool
	Login(ctx context.Context, email, password string) error
}

type sessionGuard struct {
	provider     ClientProvider
	env          Environment
	logger       logging.Logger
	loginPath    string
	profileTable string
	clearCache   func(ctx context.Context)
	currentUser  func() models.User
}

type Option func(*sessionGuard)

// WithCacheClearer registers a hook run best-effort on logout.
func WithCacheClearer(fn func(ctx context.Context)) Option {
	return func(g *sessionGuard) { g.clearCache = fn }
}

// WithCurrentUser registers an accessor for an externally maintained user,
// consulted by CurrentUser before the backend.
func WithCurrentUser(fn func() models.User) Option {
	return func(g *sessionGuard) { g.currentUser = fn }
}

func WithLoginPath(path string) Option {
	return func(g *sessionGuard) {
		if path != "" {
			g.loginPath = path
		}
	}
}

func WithProfileTable(table string) Option {
	return func(g *sessionGuard) {
		if table != "" {
			g.profileTable = table
		}
	}
}

func NewSessionGuard(provider ClientProvider, env Environment, logger logging.Logger, opts ...Option) SessionGuard {
	g := &sessionGuard{
		provider:     provider,
		env:          env,
		logger:       logger,
		loginPath:    DefaultLoginPath,
		profileTable: DefaultProfileTable,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// isCorruptedSession reports whether err means the locally stored session is
// unusable: the message mentions a signature, or the backend answered 400.
func isCorruptedSession(err error) bool {
	return strings.Contains(err.Error(), "signature") || client.StatusCode(err) == 400
}

func (g *sessionGuard) CheckSession(ctx context.Context) (result models.CheckResult) {
	defer func() {
		if p := recover(); p != nil {
			g.logger.Error(ctx, "session check panicked", "panic", fmt.Sprint(p), "stack", string(debug.Stack()))
			result = models.CheckResult{}
		}
	}()

	c := g.provider.Get(ctx)
	if c == nil {
		return models.CheckResult{}
	}

	sess, err := c.GetSession(ctx)
	if err != nil {
		if isCorruptedSession(err) {
			g.logger.Warn(ctx, "stored session is corrupted, wiping local state", "error", err)
			if err := g.env.ClearStorage(ctx); err != nil {
				g.logger.Error(ctx, "failed to clear storage", "error", err)
			}
			g.env.Navigate(ctx, g.loginPath)
			return models.CheckResult{}
		}
		g.logger.Error(ctx, "session lookup failed", "error", err)
		return models.CheckResult{}
	}
	if sess == nil {
		return models.CheckResult{}
	}

	identity := sess.User.Fields()

	profile, err := c.From(g.profileTable).Select("*").Eq("id", sess.User.ID).Single(ctx)
	if err != nil || len(profile) == 0 {
		if err != nil {
			g.logger.Warn(ctx, "profile lookup failed, continuing without profile", "user_id", sess.User.ID, "error", err)
		}
		return models.CheckResult{Authenticated: true, User: identity}
	}

	return models.CheckResult{Authenticated: true, User: models.MergeProfile(identity, profile)}
}

func (g *sessionGuard) Logout(ctx context.Context) {
	defer g.env.Navigate(ctx, g.loginPath)

	if c := g.provider.Get(ctx); c != nil {
		if err := c.SignOut(ctx); err != nil {
			g.logger.Error(ctx, "sign out failed", "error", err)
		}
	}

	if g.clearCache != nil {
		g.runCacheClearer(ctx)
	}
}

func (g *sessionGuard) runCacheClearer(ctx context.Context) {
	defer func() {
		if p := recover(); p != nil {
			g.logger.Error(ctx, "cache clearer panicked", "panic", fmt.Sprint(p))
		}
	}()
	g.clearCache(ctx)
}

func (g *sessionGuard) CurrentUser(ctx context.Context) (user models.User) {
	defer func() {
		if p := recover(); p != nil {
			g.logger.Warn(ctx, "current user lookup panicked", "panic", fmt.Sprint(p))
			user = nil
		}
	}()

	if g.currentUser != nil {
		if u := g.currentUser(); u.ID() != "" {
			return u
		}
	}

	c := g.provider.Get(ctx)
	if c == nil {
		return nil
	}
	sess, err := c.GetSession(ctx)
	if err != nil {
		g.logger.Warn(ctx, "current user lookup failed", "error", err)
		return nil
	}
	if sess == nil {
		return nil
	}
	return sess.User.Fields()
}

func (g *sessionGuard) ProtectRoute(ctx context.Context, redirectPath string) bool {
	if redirectPath == "" {
		redirectPath = g.loginPath
	}
	res := g.CheckSession(ctx)
	if !res.Authenticated {
		g.env.Navigate(ctx, redirectPath)
		return false
	}
	return true
}

func (g *sessionGuard) Login(ctx context.Context, email, password string) error {
	c := g.provider.Get(ctx)
	if c == nil {
		return client.ErrUnavailable
	}
	sess, err := c.SignInWithPassword(ctx, email, password)
	if err != nil {
		return fmt.Errorf("sign in: %w", err)
	}
	g.logger.Info(ctx, "signed in", "user_id", sess.User.ID)
	return nil
}
