// Package reconciler runs key-set reconciliations end to end: it extracts
// every source system, normalizes and compares their keys, proposes master
// keys for out-of-authority keys and commits the plan in resumable
// checkpoints.
//
// A run moves through Idle, Extracting, Normalizing, Comparing,
// Provisioning, Persisting and Reporting to Completed, or to Failed from any
// non-terminal state. A dry run skips Persisting and writes nothing.
package reconciler

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/agentstation/keysync/pkg/audit"
	"github.com/agentstation/keysync/pkg/compare"
	"github.com/agentstation/keysync/pkg/errors"
	"github.com/agentstation/keysync/pkg/logging"
	"github.com/agentstation/keysync/pkg/normalize"
	"github.com/agentstation/keysync/pkg/provision"
	"github.com/agentstation/keysync/pkg/sources"
)

// Reconciler is the main interface for reconciling key sets.
type Reconciler interface {
	// Run executes a new reconciliation. When the run is interrupted or
	// fails after its record was created, the partial result is returned
	// together with the error so the caller can resume it by id.
	Run(ctx context.Context) (*Result, error)

	// Resume continues an interrupted run from its last checkpoint.
	Resume(ctx context.Context, runID string) (*Result, error)

	// Activate moves a proposed master key to active.
	Activate(ctx context.Context, masterKey string) (provision.Entry, error)

	// Deprecate retires an active master key.
	Deprecate(ctx context.Context, masterKey string) (provision.Entry, error)

	// Registry lists master keys, optionally filtered by status.
	Registry(ctx context.Context, statuses ...provision.Status) ([]provision.Entry, error)

	// LatestRun returns the most recent run record.
	LatestRun(ctx context.Context) (audit.Run, bool, error)

	// RunRecord returns the record of one run.
	RunRecord(ctx context.Context, runID string) (audit.Run, error)

	// Runs lists run records, newest first.
	Runs(ctx context.Context, limit int) ([]audit.Run, error)

	// Events lists audit events in commit order.
	Events(ctx context.Context, filter audit.Filter) ([]audit.Event, error)

	// State returns the state of the current or last execution.
	State() State
}

// Store is the persistence the reconciler commits to.
type Store interface {
	provision.Registry

	Identity() string
	AcquireLock(ctx context.Context, owner string) error
	ReleaseLock(ctx context.Context, owner string) error

	CreateRun(ctx context.Context, run audit.Run) error
	Run(ctx context.Context, runID string) (audit.Run, error)
	LatestRun(ctx context.Context, successfulOnly bool) (audit.Run, bool, error)
	Runs(ctx context.Context, limit int) ([]audit.Run, error)
	Commit(ctx context.Context, cp audit.Checkpoint) error
	SetRunStatus(ctx context.Context, runID string, status audit.Status, summary string) error
	SealRun(ctx context.Context, run audit.Run, snapshot any, events ...audit.Event) error
	LoadSnapshot(ctx context.Context, runID string, v any) error

	Transition(ctx context.Context, from provision.Status, e provision.Entry, ev audit.Event) error
	Entries(ctx context.Context, statuses ...provision.Status) ([]provision.Entry, error)
	Events(ctx context.Context, f audit.Filter) ([]audit.Event, error)
	AppendEvents(ctx context.Context, events ...audit.Event) error
}

// reconciler is the default implementation of Reconciler.
type reconciler struct {
	cfg        Config
	store      Store
	opts       *options
	sources    *sources.Sources
	normalizer *normalize.Normalizer
	comparator *compare.Comparator
	machine    *machine

	// mu serializes executions of one reconciler.
	mu sync.Mutex
}

// New creates a new Reconciler. The store may only be nil for a dry run.
func New(cfg Config, store Store, opts ...Option) (Reconciler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil && !cfg.DryRun {
		return nil, &errors.ValidationError{
			Field:   "store",
			Message: "required unless dry_run is set",
		}
	}

	options, err := newOptions(opts...)
	if err != nil {
		return nil, err
	}

	normalizer, err := normalize.New(cfg.Rules)
	if err != nil {
		return nil, err
	}
	comparator, err := compare.New(
		compare.WithConcurrency(cfg.Concurrency),
		compare.WithClock(options.now),
	)
	if err != nil {
		return nil, err
	}

	return &reconciler{
		cfg:        cfg,
		store:      store,
		opts:       options,
		sources:    options.sources,
		normalizer: normalizer,
		comparator: comparator,
		machine:    newMachine(options.stateHook),
	}, nil
}

// runContext holds the shared state of one execution.
type runContext struct {
	run      audit.Run
	base     *compare.Snapshot
	resumed  bool
	opened   bool // the run record exists
	logger   *zerolog.Logger
	result   *Result
	progress audit.Progress
	preamble []audit.Event
}

func (r *reconciler) newRunContext(ctx context.Context, run audit.Run) (context.Context, *runContext) {
	base := r.opts.logger
	if base == nil {
		base = logging.FromContext(ctx)
	}
	ctx = logging.WithRun(logging.WithLogger(ctx, base), run.ID)
	logger := logging.FromContext(ctx)

	res := NewResult(run.ID, run.Mode)
	res.Metadata.StartTime = r.opts.now()
	res.Metadata.Strategy = r.cfg.Strategy
	res.Metadata.DryRun = r.cfg.DryRun
	res.Metadata.AutoApprove = r.cfg.AutoApprove

	return ctx, &runContext{
		run:      run,
		logger:   logger,
		result:   res,
		progress: run.Progress,
	}
}

// Run performs a reconciliation with a clean step-by-step flow.
func (r *reconciler) Run(ctx context.Context) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.machine.reset()

	id, err := uuid.NewV7()
	if err != nil {
		return nil, errors.WrapResource("generate", "run id", "", err)
	}
	ctx, rc := r.newRunContext(ctx, audit.Run{
		ID:          id.String(),
		Mode:        r.cfg.Mode,
		Strategy:    r.cfg.Strategy.String(),
		AutoApprove: r.cfg.AutoApprove,
		Status:      audit.StatusRunning,
		StartedAt:   r.opts.now(),
	})

	// Step 1: Take the store lock for the whole run
	if !r.cfg.DryRun {
		if err := r.store.AcquireLock(ctx, rc.run.ID); err != nil {
			r.machine.fail()
			return nil, err
		}
		defer r.releaseLock(ctx, rc)
	}

	// Step 2: Resolve the incremental base
	if r.cfg.Mode == audit.ModeIncremental && r.store != nil {
		if err := r.loadLatestBase(ctx, rc); err != nil {
			r.machine.fail()
			return nil, err
		}
	}

	// Step 3: Open the run record
	if !r.cfg.DryRun {
		if err := r.store.CreateRun(ctx, rc.run); err != nil {
			r.machine.fail()
			return nil, errors.WrapPersistence("create run", rc.run.ID, 0, err)
		}
		rc.opened = true
		started := audit.NewEvent(rc.run.ID, audit.EventRunStarted, "", "", map[string]any{
			"mode":         rc.run.Mode,
			"strategy":     rc.run.Strategy,
			"auto_approve": rc.run.AutoApprove,
			"base_run_id":  rc.run.BaseRunID,
		}, rc.run.StartedAt)
		if err := r.store.AppendEvents(ctx, started); err != nil {
			return r.fail(ctx, rc, err)
		}
	}

	rc.logger.Info().
		Str("mode", rc.run.Mode.String()).
		Str("strategy", rc.run.Strategy).
		Bool("dry_run", r.cfg.DryRun).
		Bool("auto_approve", r.cfg.AutoApprove).
		Str("base_run_id", rc.run.BaseRunID).
		Msg("Starting reconciliation")

	return r.execute(ctx, rc)
}

// Resume continues an interrupted run. The run is recomputed from its
// inputs; the recomputed work list must match the one the run committed
// its checkpoints against.
func (r *reconciler) Resume(ctx context.Context, runID string) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.machine.reset()

	if r.cfg.DryRun || r.store == nil {
		return nil, &errors.ValidationError{
			Field:   "dry_run",
			Message: "a dry run cannot resume a run",
		}
	}

	// Step 1: Take the lock under the run's id
	if err := r.store.AcquireLock(ctx, runID); err != nil {
		r.machine.fail()
		return nil, err
	}
	ctx, rc := r.newRunContext(ctx, audit.Run{ID: runID, Mode: r.cfg.Mode})
	defer r.releaseLock(ctx, rc)

	// Step 2: Load and check the run record
	run, err := r.store.Run(ctx, runID)
	switch {
	case errors.IsCorrupted(err):
		rc.opened = true
		return r.fail(ctx, rc, errors.NewCheckpointResumeError(runID, "checkpoint is corrupt", err))
	case err != nil:
		r.machine.fail()
		return nil, err
	}
	rc.run = run
	rc.progress = run.Progress
	rc.result.Mode = run.Mode

	if run.Status.IsSealed() {
		r.machine.fail()
		return nil, errors.NewCheckpointResumeError(runID, "run is sealed as "+run.Status.String(), nil)
	}
	rc.opened = true
	if run.Mode != r.cfg.Mode {
		return r.fail(ctx, rc, errors.NewCheckpointResumeError(runID,
			"run mode "+run.Mode.String()+" does not match "+r.cfg.Mode.String(), nil))
	}
	if run.Strategy != r.cfg.Strategy.String() {
		return r.fail(ctx, rc, errors.NewCheckpointResumeError(runID,
			"run strategy "+run.Strategy+" does not match "+r.cfg.Strategy.String(), nil))
	}

	// Step 3: Reopen the run
	if err := r.store.SetRunStatus(ctx, runID, audit.StatusRunning, ""); err != nil {
		r.machine.fail()
		return nil, err
	}
	rc.run.Status = audit.StatusRunning
	rc.resumed = true
	rc.result.Metadata.Resumed = true
	rc.result.Metadata.ResumedFrom = run.CheckpointOffset

	// Step 4: Reload the base the run started from
	if run.BaseRunID != "" {
		if err := r.loadBase(ctx, rc, run.BaseRunID); err != nil {
			return r.fail(ctx, rc, err)
		}
	}

	resumed := audit.NewEvent(runID, audit.EventRunResumed, "", "", map[string]any{
		"offset":      run.CheckpointOffset,
		"checkpoints": run.Progress.Checkpoints,
	}, r.opts.now())
	if err := r.store.AppendEvents(ctx, resumed); err != nil {
		return r.fail(ctx, rc, err)
	}

	rc.logger.Info().
		Str("mode", run.Mode.String()).
		Int("offset", run.CheckpointOffset).
		Int("checkpoints", run.Progress.Checkpoints).
		Msg("Resuming reconciliation")

	return r.execute(ctx, rc)
}

// execute runs the stages shared by Run and Resume.
func (r *reconciler) execute(ctx context.Context, rc *runContext) (*Result, error) {
	res := rc.result

	// Step 1: Extract every system
	if err := r.enter(ctx, rc, StateExtracting); err != nil {
		return r.fail(ctx, rc, err)
	}
	ex, err := r.extractAll(ctx, rc)
	if err != nil {
		return r.fail(ctx, rc, err)
	}

	// Step 2: Normalize keys
	if err := r.enter(ctx, rc, StateNormalizing); err != nil {
		return r.fail(ctx, rc, err)
	}
	in, err := r.normalizeAll(ctx, rc, ex)
	if err != nil {
		return r.fail(ctx, rc, err)
	}
	rc.preamble = r.preamble(rc, ex)
	for id, err := range ex.unavailable {
		res.Unavailable[id] = reason(err)
	}

	// Step 3: Compare against the authority
	if err := r.enter(ctx, rc, StateComparing); err != nil {
		return r.fail(ctx, rc, err)
	}
	cmp, err := r.comparator.Compare(ctx, rc.base, in)
	if err != nil {
		return r.fail(ctx, rc, err)
	}
	res.Comparison = cmp
	res.SkippedRows = cmp.Stats.SkippedRows
	rc.logger.Info().
		Int("keys_in_a", cmp.Stats.KeysInA).
		Int("out_of_authority", cmp.Stats.OutOfAuthority).
		Int("propagation_gaps", cmp.Stats.PropagationGaps).
		Int("duplicates", cmp.Stats.Duplicates).
		Int("new", len(cmp.New)).
		Msg("Compared systems")

	// Step 4: Plan master keys for the work list
	if err := r.enter(ctx, rc, StateProvisioning); err != nil {
		return r.fail(ctx, rc, err)
	}
	work := newWorkList(cmp.New)
	offset, err := r.checkResume(rc, work)
	if err != nil {
		return r.fail(ctx, rc, err)
	}
	items, err := r.plan(ctx, rc, work, offset)
	if err != nil {
		return r.fail(ctx, rc, err)
	}
	res.Outcomes = outcomes(items)

	status := audit.StatusCompleted
	if cmp.Stats.HasWarnings() {
		status = audit.StatusCompletedWithWarnings
	}

	// Step 5: Commit checkpoints and seal the run
	if r.cfg.DryRun {
		rc.progress = planProgress(items)
	} else {
		if err := r.enter(ctx, rc, StatePersisting); err != nil {
			return r.fail(ctx, rc, err)
		}
		if err := r.persist(ctx, rc, work, items, offset); err != nil {
			return r.fail(ctx, rc, err)
		}
		if err := r.seal(ctx, rc, status, cmp); err != nil {
			return r.fail(ctx, rc, err)
		}
	}
	res.Status = status
	res.Progress = rc.progress

	// Step 6: Report
	if err := r.machine.to(StateReporting); err != nil {
		return r.fail(ctx, rc, err)
	}
	res.Finalize(r.opts.now())
	if r.opts.reporter != nil {
		if err := r.opts.reporter.Report(ctx, res); err != nil {
			res.Warnings = append(res.Warnings, "report: "+err.Error())
			rc.logger.Warn().Err(err).Msg("Reporter failed")
		}
	}
	if err := r.machine.to(StateCompleted); err != nil {
		return r.fail(ctx, rc, err)
	}

	rc.logger.Info().
		Str("status", res.Status.String()).
		Int("proposed", res.Progress.Proposed).
		Int("activated", res.Progress.Activated).
		Int("reused", res.Progress.Reused).
		Int("skipped", res.Progress.Skipped).
		Int("checkpoints", res.Progress.Checkpoints).
		Dur("duration", res.Metadata.Duration).
		Msg("Reconciliation finished")

	return res, nil
}

// enter moves to the next stage unless the run was canceled.
func (r *reconciler) enter(ctx context.Context, rc *runContext, next State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.machine.to(next); err != nil {
		return err
	}
	logging.FromContext(logging.WithStage(ctx, next.String())).Debug().Msg("Entering stage")
	return nil
}

// fail ends an execution. A canceled run is left interrupted and can be
// resumed; any other error seals it as failed.
func (r *reconciler) fail(ctx context.Context, rc *runContext, cause error) (*Result, error) {
	r.machine.fail()
	res := rc.result
	res.Progress = rc.progress
	res.Errors = append(res.Errors, cause)

	interrupted := ctx.Err() != nil || errors.IsCanceled(cause)
	if interrupted {
		res.Status = audit.StatusInterrupted
	} else {
		res.Status = audit.StatusFailed
	}
	res.Finalize(r.opts.now())

	if !rc.opened {
		return res, cause
	}

	// The run record is closed even when the caller's context is done.
	wctx := context.WithoutCancel(ctx)
	now := r.opts.now()
	if interrupted {
		rc.logger.Warn().Err(cause).Int("offset", rc.run.CheckpointOffset).Msg("Reconciliation interrupted")
		if err := r.store.SetRunStatus(wctx, rc.run.ID, audit.StatusInterrupted, cause.Error()); err != nil {
			rc.logger.Error().Err(err).Msg("Failed to mark run interrupted")
			return res, cause
		}
		ev := audit.NewEvent(rc.run.ID, audit.EventRunInterrupted, "", "", map[string]any{
			"offset": rc.run.CheckpointOffset,
			"error":  cause.Error(),
		}, now)
		if err := r.store.AppendEvents(wctx, ev); err != nil {
			rc.logger.Error().Err(err).Msg("Failed to record interruption")
		}
		return res, cause
	}

	rc.logger.Error().Err(cause).Msg("Reconciliation failed")
	run := rc.run
	run.Status = audit.StatusFailed
	run.Progress = rc.progress
	run.FinishedAt = &now
	run.ErrorSummary = cause.Error()
	if res.Comparison != nil {
		run.Stats = res.Comparison.Stats
	}
	ev := audit.NewEvent(run.ID, audit.EventRunFailed, "", "", map[string]any{"error": cause.Error()}, now)
	if err := r.store.SealRun(wctx, run, nil, ev); err != nil {
		rc.logger.Error().Err(err).Msg("Failed to seal failed run")
	}
	return res, cause
}

func (r *reconciler) releaseLock(ctx context.Context, rc *runContext) {
	if err := r.store.ReleaseLock(context.WithoutCancel(ctx), rc.run.ID); err != nil {
		rc.logger.Warn().Err(err).Msg("Failed to release store lock")
	}
}

// loadLatestBase picks the last successful run as the incremental base. With
// no such run the comparison walks everything.
func (r *reconciler) loadLatestBase(ctx context.Context, rc *runContext) error {
	last, found, err := r.store.LatestRun(ctx, true)
	if err != nil {
		return err
	}
	if !found {
		rc.logger.Info().Msg("No successful run to build on, comparing everything")
		return nil
	}
	return r.loadBase(ctx, rc, last.ID)
}

func (r *reconciler) loadBase(ctx context.Context, rc *runContext, baseRunID string) error {
	var snap compare.Snapshot
	if err := r.store.LoadSnapshot(ctx, baseRunID, &snap); err != nil {
		return errors.NewCheckpointResumeError(baseRunID, "base snapshot is unusable", err)
	}
	if snap.Version != compare.SnapshotVersion {
		return errors.NewCheckpointResumeError(baseRunID, "base snapshot has an unsupported version", nil)
	}
	rc.base = &snap
	rc.run.BaseRunID = baseRunID
	rc.result.Metadata.BaseRunID = baseRunID
	return nil
}

// preamble lists the events committed with the first checkpoint: one per
// unavailable peer and one per corrupt row.
func (r *reconciler) preamble(rc *runContext, ex *extraction) []audit.Event {
	now := r.opts.now()
	var events []audit.Event
	for _, id := range sources.IDs() {
		if err, ok := ex.unavailable[id]; ok {
			events = append(events, audit.NewEvent(rc.run.ID, audit.EventSystemUnavailable, id, "",
				map[string]any{"reason": reason(err)}, now))
		}
		for _, err := range ex.rowErrors[id] {
			payload := map[string]any{"error": err.Error()}
			if line := rowLine(err); line > 0 {
				payload["line"] = line
			}
			events = append(events, audit.NewEvent(rc.run.ID, audit.EventRowCorrupted, id, "", payload, now))
		}
	}
	return events
}
