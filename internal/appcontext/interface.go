// Package appcontext provides the shared application context interface
// used by all commands. Commands accept this interface rather than the
// concrete App so they can be tested against a Mock.
package appcontext

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/agentstation/keysync/pkg/reconciler"
)

// Interface defines what commands need from the application.
type Interface interface {
	// ReconcilerConfig returns the reconciliation settings loaded from the
	// config file and environment. Commands overlay their flags on a copy.
	ReconcilerConfig() reconciler.Config

	// InputDir returns the directory the per-system extracts are read from.
	InputDir() string

	// Reconciler builds a reconciler over the application store. The store
	// is opened lazily on first use and shared by every reconciler.
	Reconciler(cfg reconciler.Config, opts ...reconciler.Option) (reconciler.Reconciler, error)

	// ForceUnlock clears the single-writer lock and returns its former owner.
	ForceUnlock(ctx context.Context) (string, error)

	// Logger returns the configured logger instance.
	Logger() *zerolog.Logger

	// OutputFormat returns the configured output format (table, json, yaml, wide).
	OutputFormat() string

	// Version returns the application version string.
	Version() string

	// Commit returns the git commit hash.
	Commit() string

	// Date returns the build date.
	Date() string

	// BuiltBy returns the build system identifier.
	BuiltBy() string
}
