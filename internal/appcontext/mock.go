package appcontext

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/agentstation/keysync/pkg/constants"
	"github.com/agentstation/keysync/pkg/errors"
	"github.com/agentstation/keysync/pkg/reconciler"
)

// Mock provides a mock implementation of Interface for testing.
// Each method can be customized by setting the corresponding function field.
// If a function field is nil, the method returns a default/zero value.
type Mock struct {
	ReconcilerConfigFunc func() reconciler.Config
	InputDirFunc         func() string
	ReconcilerFunc       func(reconciler.Config, ...reconciler.Option) (reconciler.Reconciler, error)
	ForceUnlockFunc      func(context.Context) (string, error)
	LoggerFunc           func() *zerolog.Logger
	OutputFormatFunc     func() string
	VersionFunc          func() string
	CommitFunc           func() string
	DateFunc             func() string
	BuiltByFunc          func() string
}

// ReconcilerConfig returns the mock config or the defaults.
func (m *Mock) ReconcilerConfig() reconciler.Config {
	if m.ReconcilerConfigFunc != nil {
		return m.ReconcilerConfigFunc()
	}
	return reconciler.DefaultConfig()
}

// InputDir returns the mock input directory or the default.
func (m *Mock) InputDir() string {
	if m.InputDirFunc != nil {
		return m.InputDirFunc()
	}
	return constants.InputDir
}

// Reconciler returns a reconciler using the mock function, or a
// ConfigError when none is set.
func (m *Mock) Reconciler(cfg reconciler.Config, opts ...reconciler.Option) (reconciler.Reconciler, error) {
	if m.ReconcilerFunc != nil {
		return m.ReconcilerFunc(cfg, opts...)
	}
	return nil, errors.NewConfigError("appcontext", "no reconciler configured", nil)
}

// ForceUnlock returns the mock result or an empty owner.
func (m *Mock) ForceUnlock(ctx context.Context) (string, error) {
	if m.ForceUnlockFunc != nil {
		return m.ForceUnlockFunc(ctx)
	}
	return "", nil
}

// Logger returns a logger using the mock function or a no-op logger.
func (m *Mock) Logger() *zerolog.Logger {
	if m.LoggerFunc != nil {
		return m.LoggerFunc()
	}
	logger := zerolog.Nop()
	return &logger
}

// OutputFormat returns the mock format or "table".
func (m *Mock) OutputFormat() string {
	if m.OutputFormatFunc != nil {
		return m.OutputFormatFunc()
	}
	return "table"
}

// Version returns version using the mock function or "dev".
func (m *Mock) Version() string {
	if m.VersionFunc != nil {
		return m.VersionFunc()
	}
	return "dev"
}

// Commit returns commit using the mock function or "unknown".
func (m *Mock) Commit() string {
	if m.CommitFunc != nil {
		return m.CommitFunc()
	}
	return "unknown"
}

// Date returns date using the mock function or "unknown".
func (m *Mock) Date() string {
	if m.DateFunc != nil {
		return m.DateFunc()
	}
	return "unknown"
}

// BuiltBy returns the builder using the mock function or "unknown".
func (m *Mock) BuiltBy() string {
	if m.BuiltByFunc != nil {
		return m.BuiltByFunc()
	}
	return "unknown"
}

var _ Interface = (*Mock)(nil)
