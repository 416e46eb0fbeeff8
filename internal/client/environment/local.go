// Package environment provides the host the session guard runs in when it is
// driven from a terminal instead of a browser tab.
package environment

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/shellkeeper/internal/client/repositories/storage"
	"github.com/dmitrijs2005/shellkeeper/internal/logging"
)

// LocationKey is the session-scoped key holding the current view.
const LocationKey = "location"

// Local implements services.Environment over the persisted web storage.
// Navigating records the target as the current location; clearing wipes the
// local and session scopes.
type Local struct {
	repo   storage.Repository
	logger logging.Logger
}

func NewLocal(repo storage.Repository, logger logging.Logger) *Local {
	return &Local{repo: repo, logger: logger}
}

func (e *Local) Navigate(ctx context.Context, path string) {
	if err := e.repo.Set(ctx, storage.ScopeSession, LocationKey, []byte(path)); err != nil {
		e.logger.Error(ctx, "failed to record location", "path", path, "error", err)
	}
	e.logger.Info(ctx, "navigate", "path", path)
}

func (e *Local) ClearStorage(ctx context.Context) error {
	if err := e.repo.ClearAll(ctx); err != nil {
		return fmt.Errorf("failed to clear storage: %w", err)
	}
	return nil
}

// Location returns the last navigation target of this session, or "" when
// nothing has navigated yet.
func (e *Local) Location(ctx context.Context) (string, error) {
	raw, err := e.repo.Get(ctx, storage.ScopeSession, LocationKey)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
