package reconciler

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/agentstation/keysync/pkg/audit"
	"github.com/agentstation/keysync/pkg/errors"
	"github.com/agentstation/keysync/pkg/logging"
	"github.com/agentstation/keysync/pkg/provision"
)

// Activate moves a proposed master key to active. Activating a key that is
// already active fails with an InvalidStateTransitionError.
func (r *reconciler) Activate(ctx context.Context, masterKey string) (provision.Entry, error) {
	return r.transition(ctx, masterKey, audit.EventMasterKeyActivated, (*provision.Entry).Activate)
}

// Deprecate retires a master key. Deprecated keys are never proposed again.
func (r *reconciler) Deprecate(ctx context.Context, masterKey string) (provision.Entry, error) {
	return r.transition(ctx, masterKey, audit.EventMasterKeyDeprecated, (*provision.Entry).Deprecate)
}

func (r *reconciler) transition(ctx context.Context, masterKey string, typ audit.EventType, apply func(*provision.Entry, time.Time) error) (provision.Entry, error) {
	if err := r.writable(); err != nil {
		return provision.Entry{}, err
	}

	owner := "operator-" + uuid.NewString()
	if err := r.store.AcquireLock(ctx, owner); err != nil {
		return provision.Entry{}, err
	}
	defer func() {
		if err := r.store.ReleaseLock(context.WithoutCancel(ctx), owner); err != nil {
			logging.FromContext(ctx).Warn().Err(err).Msg("Failed to release store lock")
		}
	}()

	e, found, err := r.store.MasterKey(ctx, masterKey)
	if err != nil {
		return provision.Entry{}, err
	}
	if !found {
		return provision.Entry{}, errors.NewNotFoundError("master key", masterKey)
	}

	from := e.Status
	now := r.opts.now()
	if err := apply(&e, now); err != nil {
		return provision.Entry{}, err
	}
	if err := r.store.Transition(ctx, from, e, audit.EntryEvent("", typ, e, now)); err != nil {
		return provision.Entry{}, err
	}

	logging.FromContext(ctx).Info().
		Str("master_key", e.MasterKey).
		Str("from", from.String()).
		Str("to", e.Status.String()).
		Msg("Master key changed")
	return e, nil
}

func (r *reconciler) writable() error {
	if r.store == nil || r.cfg.DryRun {
		return &errors.ValidationError{
			Field:   "dry_run",
			Message: "registry changes are not allowed in a dry run",
		}
	}
	return nil
}

func (r *reconciler) readable() error {
	if r.store == nil {
		return &errors.ValidationError{
			Field:   "store",
			Message: "no store configured",
		}
	}
	return nil
}

// Registry lists master keys sorted by master key.
func (r *reconciler) Registry(ctx context.Context, statuses ...provision.Status) ([]provision.Entry, error) {
	if err := r.readable(); err != nil {
		return nil, err
	}
	return r.store.Entries(ctx, statuses...)
}

// LatestRun returns the most recent run, whatever its status.
func (r *reconciler) LatestRun(ctx context.Context) (audit.Run, bool, error) {
	if err := r.readable(); err != nil {
		return audit.Run{}, false, err
	}
	return r.store.LatestRun(ctx, false)
}

// RunRecord returns the record of one run.
func (r *reconciler) RunRecord(ctx context.Context, runID string) (audit.Run, error) {
	if err := r.readable(); err != nil {
		return audit.Run{}, err
	}
	return r.store.Run(ctx, runID)
}

// Runs lists run records, newest first.
func (r *reconciler) Runs(ctx context.Context, limit int) ([]audit.Run, error) {
	if err := r.readable(); err != nil {
		return nil, err
	}
	return r.store.Runs(ctx, limit)
}

// Events lists audit events.
func (r *reconciler) Events(ctx context.Context, filter audit.Filter) ([]audit.Event, error) {
	if err := r.readable(); err != nil {
		return nil, err
	}
	return r.store.Events(ctx, filter)
}

// State returns the state of the current or last execution.
func (r *reconciler) State() State {
	return r.machine.current()
}
