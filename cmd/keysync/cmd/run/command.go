// Package run implements the run and resume commands.
package run

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/agentstation/keysync/internal/appcontext"
	"github.com/agentstation/keysync/internal/sources/files"
	"github.com/agentstation/keysync/pkg/errors"
	"github.com/agentstation/keysync/pkg/provision"
	"github.com/agentstation/keysync/pkg/reconciler"
	"github.com/agentstation/keysync/pkg/sources"
)

// NewCommand creates the run command with app dependencies.
func NewCommand(app appcontext.Interface) *cobra.Command {
	var flags Flags
	cmd := &cobra.Command{
		Use:     "run",
		GroupID: "core",
		Short:   "Reconcile keys across systems A..E",
		Long: `Run extracts keys from the authority A and the peers B..E, compares the
normalized key sets and plans master keys for every out-of-authority and
duplicate key.

Work is committed in checkpoints. An interrupted run (Ctrl-C) keeps every
committed checkpoint and can be continued with "keysync resume <run-id>".`,
		Example: `  keysync run                                  # Full comparison, manual approval
  keysync run --dry-run                        # Show the plan, write nothing
  keysync run --mode incremental               # Compare against the last run
  keysync run --strategy namespaced --prefix MASTER --auto-approve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.apply(cmd, app.ReconcilerConfig())
			if err != nil {
				return err
			}
			return execute(cmd, app, cfg, &flags, func(ctx context.Context, r reconciler.Reconciler) (*reconciler.Result, error) {
				return r.Run(ctx)
			})
		},
	}
	addRunFlags(cmd, &flags)
	return cmd
}

// NewResumeCommand creates the resume command with app dependencies.
func NewResumeCommand(app appcontext.Interface) *cobra.Command {
	var flags Flags
	cmd := &cobra.Command{
		Use:     "resume <run-id>",
		GroupID: "core",
		Short:   "Continue an interrupted run from its last checkpoint",
		Long: `Resume re-extracts the systems, rebuilds the work list and continues
the interrupted run at its last committed checkpoint. The inputs must be
unchanged: a different work list is rejected and the run is marked failed.

The run keeps the mode and strategy it was started with.`,
		Example: `  keysync runs list --status interrupted
  keysync resume 0195f1c2-7d4e-7a9b-8c1d-2e3f4a5b6c7d`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.apply(cmd, app.ReconcilerConfig())
			if err != nil {
				return err
			}
			// Checkpoints are only resumable for a writing run.
			cfg.DryRun = false
			if err := fromRun(cmd.Context(), app, &cfg, args[0]); err != nil {
				return err
			}
			return execute(cmd, app, cfg, &flags, func(ctx context.Context, r reconciler.Reconciler) (*reconciler.Result, error) {
				return r.Resume(ctx, args[0])
			})
		},
	}
	addExtractFlags(cmd, &flags)
	return cmd
}

// fromRun copies the settings a run was recorded with into cfg so the
// resumed execution rebuilds the same work list. Unknown runs are left for
// Resume to report.
func fromRun(ctx context.Context, app appcontext.Interface, cfg *reconciler.Config, runID string) error {
	r, err := app.Reconciler(*cfg)
	if err != nil {
		return err
	}
	run, err := r.RunRecord(ctx, runID)
	if errors.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	cfg.Mode = run.Mode
	cfg.AutoApprove = run.AutoApprove
	if run.Strategy != "" && run.Strategy != string(cfg.Strategy) {
		app.Logger().Warn().
			Str("run_id", runID).
			Str("configured", string(cfg.Strategy)).
			Str("recorded", run.Strategy).
			Msg("Using the strategy the run was started with")
		cfg.Strategy = provision.Strategy(run.Strategy)
	}
	return nil
}

// fileSources returns one file source per system reading from dir.
func fileSources(dir string) []sources.Source {
	set := files.Discover(dir)
	srcs := make([]sources.Source, 0, set.Len())
	for _, id := range set.IDs() {
		if src, ok := set.Get(id); ok {
			srcs = append(srcs, src)
		}
	}
	return srcs
}
