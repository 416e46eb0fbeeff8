package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/dmitrijs2005/shellkeeper/internal/client/client"
	"github.com/dmitrijs2005/shellkeeper/internal/client/config"
	"github.com/dmitrijs2005/shellkeeper/internal/client/environment"
	"github.com/dmitrijs2005/shellkeeper/internal/client/migrations"
	"github.com/dmitrijs2005/shellkeeper/internal/client/models"
	"github.com/dmitrijs2005/shellkeeper/internal/client/repositories/storage"
	"github.com/dmitrijs2005/shellkeeper/internal/client/services"
	"github.com/dmitrijs2005/shellkeeper/internal/dbx"
	"github.com/dmitrijs2005/shellkeeper/internal/logging"
)

// locator reports the view the last navigation went to.
type locator interface {
	Location(ctx context.Context) (string, error)
}

type App struct {
	config  *config.Config
	guard   services.SessionGuard
	locator locator
	logger  logging.Logger
	reader  *bufio.Reader
	out     io.Writer

	// user is the profile from the last successful check; the guard consults
	// it before asking the backend who is signed in.
	user models.User

	closers []io.Closer
}

// NewApp opens the local storage, starts a fresh session scope and wires the
// session guard against the configured backend. A missing backend URL or key
// does not fail here: the guard reports every session as unauthenticated.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	db, err := dbx.OpenSQLite(ctx, c.StoragePath, migrations.Migrations)
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}
	a := &App{
		config:  c,
		logger:  logger,
		reader:  bufio.NewReader(os.Stdin),
		out:     os.Stdout,
		closers: []io.Closer{db},
	}

	repo := storage.NewSQLiteRepository(db)
	// every CLI run is a new tab
	if err := repo.Clear(ctx, storage.ScopeSession); err != nil {
		a.Close()
		return nil, err
	}

	opts := []client.Option{client.WithHTTPClient(&http.Client{Timeout: c.RequestTimeout})}
	if c.ProfileDSN != "" {
		q, pg, err := client.OpenPostgresQuerier(ctx, c.ProfileDSN)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("error connecting to profile database: %w", err)
		}
		a.closers = append(a.closers, pg)
		opts = append(opts, client.WithQuerier(q))
	}

	store := storage.NewSessionStore(repo)
	factory := func(serviceURL, publicKey string) (client.Client, error) {
		hc, err := client.NewHTTPClient(serviceURL, publicKey, store, opts...)
		if err != nil {
			return nil, err
		}
		return hc, nil
	}
	provider := client.NewProvider(c.BackendURL, c.PublicKey, factory, logger)

	env := environment.NewLocal(repo, logger)
	a.locator = env
	a.guard = services.NewSessionGuard(provider, env, logger,
		services.WithLoginPath(c.LoginPath),
		services.WithProfileTable(c.ProfileTable),
		services.WithCurrentUser(func() models.User { return a.user }),
		services.WithCacheClearer(func(ctx context.Context) {
			a.user = nil
			if err := repo.Clear(ctx, storage.ScopeSession); err != nil {
				logger.Warn(ctx, "failed to clear session storage", "error", err)
			}
		}),
	)
	return a, nil
}

// Run executes args as a single command when given, otherwise starts the
// REPL on stdin. It returns once the command or the REPL finishes.
func (a *App) Run(ctx context.Context, args []string) error {
	defer a.Close()

	if len(args) > 0 {
		_, err := dispatch(ctx, a, args)
		return err
	}

	fmt.Fprintln(a.out, "shellkeeper session guard (type 'help' for commands)")
	runREPL(ctx, a, bufio.NewScanner(a.reader))
	return nil
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
