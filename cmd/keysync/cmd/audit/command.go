// Package audit implements the audit log command.
package audit

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/keysync/internal/appcontext"
	"github.com/agentstation/keysync/internal/cmd/output"
	"github.com/agentstation/keysync/internal/cmd/table"
	"github.com/agentstation/keysync/pkg/audit"
	"github.com/agentstation/keysync/pkg/constants"
)

// NewCommand creates the audit command with app dependencies.
func NewCommand(app appcontext.Interface) *cobra.Command {
	var (
		filter audit.Filter
		typ    string
		latest bool
	)
	cmd := &cobra.Command{
		Use:     "audit",
		GroupID: "management",
		Short:   "Show the append-only audit log",
		Long: `Audit lists events in commit order. Events of a run include every
detected discrepancy, every master key decision and each committed
checkpoint. Operator actions (activate, deprecate) carry no run id.`,
		Example: `  keysync audit --latest
  keysync audit --run 0195f1c2-7d4e-7a9b-8c1d-2e3f4a5b6c7d --type master_key_proposed
  keysync audit --after 1200 --limit 50 -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := app.Reconciler(app.ReconcilerConfig())
			if err != nil {
				return err
			}
			if latest {
				run, ok, err := r.LatestRun(cmd.Context())
				if err != nil {
					return err
				}
				if ok {
					filter.RunID = run.ID
				}
			}
			filter.Type = audit.EventType(typ)

			events, err := r.Events(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return output.Print(cmd.OutOrStdout(), output.DetectFormat(app.OutputFormat()), events,
				func(wide bool) table.Data { return table.EventsToTableData(events, wide) })
		},
	}
	cmd.Flags().StringVar(&filter.RunID, "run", "", "only events of this run")
	cmd.Flags().BoolVar(&latest, "latest", false, "only events of the latest run")
	cmd.Flags().StringVar(&typ, "type", "", "only events of this type")
	cmd.Flags().Int64Var(&filter.AfterID, "after", 0, "only events after this event id")
	cmd.Flags().IntVar(&filter.Limit, "limit", constants.DefaultListLimit, "maximum number of events")
	cmd.MarkFlagsMutuallyExclusive("run", "latest")
	return cmd
}
