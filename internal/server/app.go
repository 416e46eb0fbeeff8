// Package server initializes and runs the offline cache worker: it builds the
// configured cache backend, registers the configured worker version, and
// serves the worker over HTTP until a termination signal arrives.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/shellkeeper/internal/dbx"
	"github.com/dmitrijs2005/shellkeeper/internal/logging"
	"github.com/dmitrijs2005/shellkeeper/internal/server/cachestore"
	"github.com/dmitrijs2005/shellkeeper/internal/server/config"
	"github.com/dmitrijs2005/shellkeeper/internal/server/httpserver"
	"github.com/dmitrijs2005/shellkeeper/internal/server/migrations"
	"github.com/dmitrijs2005/shellkeeper/internal/server/worker"
)

type App struct {
	config       *config.Config
	logger       logging.Logger
	origin       *url.URL
	storage      cachestore.Storage
	registration *worker.Registration
	closers      []io.Closer
}

func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	origin, err := url.Parse(c.Origin)
	if err != nil {
		return nil, fmt.Errorf("parse origin: %w", err)
	}

	app := &App{config: c, logger: logger, origin: origin}

	app.storage, err = app.openStorage(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	fetcher := &http.Client{Timeout: c.FetchTimeout}
	app.registration = worker.NewRegistration(app.storage, fetcher, logger)

	return app, nil
}

func (app *App) openStorage(ctx context.Context) (cachestore.Storage, error) {
	switch app.config.Backend {
	case config.BackendSQLite:
		db, err := dbx.OpenSQLite(ctx, app.config.SQLitePath, migrations.Migrations)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, db)
		return cachestore.NewSQLiteStorage(db), nil
	case config.BackendS3:
		return cachestore.NewS3Storage(ctx, cachestore.S3Config{
			Bucket:    app.config.S3Bucket,
			Region:    app.config.S3Region,
			Endpoint:  app.config.S3Endpoint,
			AccessKey: app.config.S3AccessKey,
			SecretKey: app.config.S3SecretKey,
		})
	default:
		return cachestore.NewMemoryStorage(), nil
	}
}

// Registration exposes the worker registration, mainly for tests.
func (app *App) Registration() *worker.Registration {
	return app.registration
}

func (app *App) workerOptions() worker.Options {
	return worker.Options{
		Origin:    app.origin,
		Prefix:    app.config.CachePrefix,
		Version:   app.config.Version,
		Essential: app.config.Essential,
		Modules:   app.config.Modules,
	}
}

// register installs the configured version. A failed install leaves the
// registration without a worker, so requests still reach the network.
func (app *App) register(ctx context.Context) {
	w, err := app.registration.Register(ctx, app.workerOptions())
	if err != nil {
		app.logger.Error(ctx, "worker registration failed", "version", app.config.Version, "error", err)
		return
	}
	app.logger.Info(ctx, "worker registered", "id", w.ID(), "version", w.Version(), "state", string(w.State()))
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpserver.NewHTTPServer(app.config.ListenAddr, app.origin, app.registration, app.logger)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run registers the worker and serves until ctx is done or a termination
// signal arrives.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "backend", app.config.Backend, "origin", app.origin.String())

	app.initSignalHandler(cancelFunc)
	app.register(ctx)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	return app.Close()
}

// Close releases the storage backend.
func (app *App) Close() error {
	var errs []error
	for i := len(app.closers) - 1; i >= 0; i-- {
		errs = append(errs, app.closers[i].Close())
	}
	app.closers = nil
	return errors.Join(errs...)
}
