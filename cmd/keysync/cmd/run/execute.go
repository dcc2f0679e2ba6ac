package run

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentstation/keysync/internal/appcontext"
	"github.com/agentstation/keysync/internal/cmd/alerts"
	"github.com/agentstation/keysync/internal/cmd/output"
	"github.com/agentstation/keysync/internal/cmd/table"
	"github.com/agentstation/keysync/pkg/reconciler"
)

type runFunc func(ctx context.Context, r reconciler.Reconciler) (*reconciler.Result, error)

// execute builds a reconciler over the file sources, runs fn and prints
// the result. A partial result is printed before the error is returned so
// an interrupted run id is never lost.
func execute(cmd *cobra.Command, app appcontext.Interface, cfg reconciler.Config, flags *Flags, fn runFunc) error {
	logger := app.Logger()

	dir := flags.InputDir
	if dir == "" {
		dir = app.InputDir()
	}

	r, err := app.Reconciler(cfg,
		reconciler.WithSources(fileSources(dir)...),
		reconciler.WithStateHook(func(from, to reconciler.State) {
			logger.Debug().Str("from", string(from)).Str("to", string(to)).Msg("State transition")
		}),
		reconciler.WithCheckpointHook(func(runID string, offset int) {
			logger.Info().Str("run_id", runID).Int("offset", offset).Msg("Checkpoint committed")
		}),
	)
	if err != nil {
		return err
	}

	logger.Info().
		Str("input_dir", dir).
		Str("mode", string(cfg.Mode)).
		Str("strategy", string(cfg.Strategy)).
		Bool("dry_run", cfg.DryRun).
		Msg("Starting reconciliation")

	res, runErr := fn(cmd.Context(), r)
	if res != nil {
		if err := printResult(cmd, app, res, flags.ShowAll); err != nil {
			logger.Error().Err(err).Msg("Failed to print result")
		}
		w := alerts.NewFormatWriter(cmd.ErrOrStderr(), output.DetectFormat(app.OutputFormat()))
		for _, a := range alerts.ForResult(res) {
			if err := w.WriteAlert(a); err != nil {
				logger.Error().Err(err).Msg("Failed to print alert")
			}
		}
	}
	if runErr != nil {
		if res != nil && res.IsInterrupted() {
			return fmt.Errorf("run %s interrupted, continue with: keysync resume %s: %w", res.RunID, res.RunID, runErr)
		}
		return runErr
	}
	return nil
}

// printResult renders the discrepancy table followed by the summary for
// table formats, and the whole result otherwise.
func printResult(cmd *cobra.Command, app appcontext.Interface, res *reconciler.Result, all bool) error {
	format := output.DetectFormat(app.OutputFormat())
	w := cmd.OutOrStdout()

	if !format.IsTable() {
		return output.Print(w, format, res, nil)
	}

	td := table.ResultToTableData(res, all, format == output.FormatWide)
	if len(td.Rows) > 0 {
		if err := output.Print(w, format, res, func(bool) table.Data { return td }); err != nil {
			return err
		}
	}
	_, err := fmt.Fprint(w, res.Summary())
	return err
}
