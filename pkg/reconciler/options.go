package reconciler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/keysync/pkg/errors"
	"github.com/agentstation/keysync/pkg/sources"
)

// Reporter receives the result of every finished execution.
type Reporter interface {
	Report(ctx context.Context, result *Result) error
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(ctx context.Context, result *Result) error

// Report calls f.
func (f ReporterFunc) Report(ctx context.Context, result *Result) error {
	return f(ctx, result)
}

// CheckpointHook is called after each committed checkpoint with the new
// resume offset.
type CheckpointHook func(runID string, offset int)

// options configures a reconciler.
type options struct {
	sources    *sources.Sources
	logger     *zerolog.Logger
	now        func() time.Time
	reporter   Reporter
	stateHook  StateHook
	checkpoint CheckpointHook
}

func defaultOptions() *options {
	return &options{
		sources: sources.NewSources(),
		now:     time.Now,
	}
}

// Option is a function that configures a Reconciler.
type Option func(*options) error

func (o *options) apply(opts ...Option) (*options, error) {
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// newOptions returns reconciler options with default values.
func newOptions(opts ...Option) (*options, error) {
	return defaultOptions().apply(opts...)
}

// WithSources sets the systems to extract.
func WithSources(srcs ...sources.Source) Option {
	return func(o *options) error {
		for _, src := range srcs {
			if src == nil {
				return &errors.ValidationError{
					Field:   "sources",
					Message: "cannot contain nil",
				}
			}
			if !src.ID().IsValid() {
				return &errors.ValidationError{
					Field:   "sources",
					Value:   src.ID(),
					Message: "unknown system",
				}
			}
			o.sources.Set(src)
		}
		return nil
	}
}

// WithLogger sets the logger. Without it the logger is taken from the
// context of each call.
func WithLogger(logger *zerolog.Logger) Option {
	return func(o *options) error {
		if logger == nil {
			return &errors.ValidationError{
				Field:   "logger",
				Message: "cannot be nil",
			}
		}
		o.logger = logger
		return nil
	}
}

// WithClock sets the time source used for run, entry and event timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) error {
		if now == nil {
			return &errors.ValidationError{
				Field:   "clock",
				Message: "cannot be nil",
			}
		}
		o.now = now
		return nil
	}
}

// WithReporter sets the collaborator that receives each result.
func WithReporter(r Reporter) Option {
	return func(o *options) error {
		o.reporter = r
		return nil
	}
}

// WithStateHook observes every state transition.
func WithStateHook(hook StateHook) Option {
	return func(o *options) error {
		o.stateHook = hook
		return nil
	}
}

// WithCheckpointHook observes every committed checkpoint.
func WithCheckpointHook(hook CheckpointHook) Option {
	return func(o *options) error {
		o.checkpoint = hook
		return nil
	}
}
