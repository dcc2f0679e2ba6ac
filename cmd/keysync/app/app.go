// Package app provides the application context and dependency management
// for the keysync CLI. It centralizes configuration, logging and the
// lifecycle of the reconciliation store.
package app

import (
	"context"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/agentstation/keysync/internal/store"
	"github.com/agentstation/keysync/pkg/errors"
	"github.com/agentstation/keysync/pkg/reconciler"
)

// App represents the keysync application with all its dependencies.
type App struct {
	// Version information
	version string
	commit  string
	date    string
	builtBy string

	config *Config
	logger *zerolog.Logger
	out    io.Writer

	// Store (lazy-initialized, shared by every reconciler)
	mu    sync.Mutex
	store *store.Store
}

// Option configures an App.
type Option func(*App) error

// WithConfig replaces the loaded configuration.
func WithConfig(cfg *Config) Option {
	return func(a *App) error {
		if cfg == nil {
			return &errors.ValidationError{Field: "config", Message: "cannot be nil"}
		}
		a.config = cfg
		logger := NewLogger(cfg)
		a.logger = &logger
		return nil
	}
}

// WithLogger replaces the configured logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(a *App) error {
		if logger == nil {
			return &errors.ValidationError{Field: "logger", Message: "cannot be nil"}
		}
		a.logger = logger
		return nil
	}
}

// WithOutput sends command output to w instead of stdout.
func WithOutput(w io.Writer) Option {
	return func(a *App) error {
		a.out = w
		return nil
	}
}

// New creates a new App instance with the given version information.
// Configuration is loaded from the environment and the default config
// file locations; options may replace it.
func New(version, commit, date, builtBy string, opts ...Option) (*App, error) {
	app := &App{
		version: version,
		commit:  commit,
		date:    date,
		builtBy: builtBy,
	}

	config, err := LoadConfig("")
	if err != nil {
		return nil, errors.WrapResource("load", "config", "", err)
	}
	app.config = config

	logger := NewLogger(config)
	app.logger = &logger

	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	return app, nil
}

// Version returns the version information.
func (a *App) Version() string {
	return a.version
}

// Commit returns the git commit hash.
func (a *App) Commit() string {
	return a.commit
}

// Date returns the build date.
func (a *App) Date() string {
	return a.date
}

// BuiltBy returns the build system identifier.
func (a *App) BuiltBy() string {
	return a.builtBy
}

// Config returns the application configuration.
func (a *App) Config() *Config {
	return a.config
}

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger {
	return a.logger
}

// OutputFormat returns the configured output format.
func (a *App) OutputFormat() string {
	return a.config.Format
}

// ReconcilerConfig returns a copy of the configured reconciliation settings.
func (a *App) ReconcilerConfig() reconciler.Config {
	return a.config.Reconcile
}

// InputDir returns the directory extracts are read from.
func (a *App) InputDir() string {
	return a.config.InputDir
}

// Store returns the reconciliation store, opening it on first use.
func (a *App) Store() (*store.Store, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.store != nil {
		return a.store, nil
	}
	s, err := store.Open(a.config.Database)
	if err != nil {
		return nil, err
	}
	a.logger.Debug().Str("database", s.Identity()).Msg("Opened store")
	a.store = s
	return s, nil
}

// Reconciler builds a reconciler over the application store. The app
// logger is applied first so callers can override it.
func (a *App) Reconciler(cfg reconciler.Config, opts ...reconciler.Option) (reconciler.Reconciler, error) {
	s, err := a.Store()
	if err != nil {
		return nil, err
	}
	all := append([]reconciler.Option{reconciler.WithLogger(a.logger)}, opts...)
	return reconciler.New(cfg, s, all...)
}

// ForceUnlock clears the store's single-writer lock.
func (a *App) ForceUnlock(ctx context.Context) (string, error) {
	s, err := a.Store()
	if err != nil {
		return "", err
	}
	return s.ForceUnlock(ctx)
}

// Shutdown closes the store if it was opened.
func (a *App) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.store == nil {
		return nil
	}
	a.logger.Debug().Msg("Closing store")
	err := a.store.Close()
	a.store = nil
	return err
}
