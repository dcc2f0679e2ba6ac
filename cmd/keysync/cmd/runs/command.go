// Package runs implements the run history commands.
package runs

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/keysync/internal/appcontext"
	"github.com/agentstation/keysync/internal/cmd/output"
	"github.com/agentstation/keysync/internal/cmd/table"
	"github.com/agentstation/keysync/pkg/audit"
	"github.com/agentstation/keysync/pkg/constants"
)

// NewCommand creates the runs command with app dependencies. Without a
// subcommand it lists runs.
func NewCommand(app appcontext.Interface) *cobra.Command {
	list := newListCommand(app)
	cmd := &cobra.Command{
		Use:     "runs",
		GroupID: "management",
		Short:   "List and inspect reconciliation runs",
		Args:    cobra.NoArgs,
		RunE:    list.RunE,
	}
	cmd.Flags().AddFlagSet(list.Flags())
	cmd.AddCommand(list)
	cmd.AddCommand(newShowCommand(app))
	return cmd
}

func newListCommand(app appcontext.Interface) *cobra.Command {
	var (
		limit  int
		status string
	)
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List runs, newest first",
		Example: `  keysync runs
  keysync runs list --status interrupted
  keysync runs list --limit 5 -o wide`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := app.Reconciler(app.ReconcilerConfig())
			if err != nil {
				return err
			}
			runs, err := r.Runs(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if status != "" {
				filtered := runs[:0]
				for _, run := range runs {
					if run.Status == audit.Status(status) {
						filtered = append(filtered, run)
					}
				}
				runs = filtered
			}
			return output.Print(cmd.OutOrStdout(), output.DetectFormat(app.OutputFormat()), runs,
				func(wide bool) table.Data { return table.RunsToTableData(runs, wide) })
		},
	}
	cmd.Flags().IntVar(&limit, "limit", constants.DefaultListLimit, "maximum number of runs")
	cmd.Flags().StringVar(&status, "status", "", "only runs with this status")
	return cmd
}

func newShowCommand(app appcontext.Interface) *cobra.Command {
	return &cobra.Command{
		Use:   "show [run-id]",
		Short: "Show one run, the latest when no id is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := app.Reconciler(app.ReconcilerConfig())
			if err != nil {
				return err
			}

			var run audit.Run
			if len(args) == 1 {
				run, err = r.RunRecord(cmd.Context(), args[0])
				if err != nil {
					return err
				}
			} else {
				var ok bool
				run, ok, err = r.LatestRun(cmd.Context())
				if err != nil {
					return err
				}
				if !ok {
					cmd.Println("No runs recorded yet.")
					return nil
				}
			}
			return output.Print(cmd.OutOrStdout(), output.DetectFormat(app.OutputFormat()), run,
				func(bool) table.Data { return table.RunToTableData(run) })
		},
	}
}
