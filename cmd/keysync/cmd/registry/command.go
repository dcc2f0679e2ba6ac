// Package registry implements the master key registry commands.
package registry

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentstation/keysync/internal/appcontext"
	"github.com/agentstation/keysync/internal/cmd/output"
	"github.com/agentstation/keysync/internal/cmd/table"
	"github.com/agentstation/keysync/pkg/provision"
)

// NewCommand creates the registry command with app dependencies.
func NewCommand(app appcontext.Interface) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "registry",
		GroupID: "management",
		Short:   "Inspect and approve master keys",
		Long: `The registry holds every master key proposed by a run. Proposed keys
are activated by an operator (or by --auto-approve) and active keys may
later be deprecated. Deprecated keys are never proposed again.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return fmt.Errorf("unknown subcommand: %s", args[0])
		},
	}

	cmd.AddCommand(newListCommand(app))
	cmd.AddCommand(newTransitionCommand(app, "activate", "Activate proposed master keys",
		func(r transitioner) transitionFunc { return r.Activate }))
	cmd.AddCommand(newTransitionCommand(app, "deprecate", "Deprecate active master keys",
		func(r transitioner) transitionFunc { return r.Deprecate }))
	return cmd
}

func newListCommand(app appcontext.Interface) *cobra.Command {
	var statuses []string
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List master keys",
		Example: `  keysync registry list
  keysync registry list --status proposed
  keysync registry list --status active,deprecated -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := make([]provision.Status, 0, len(statuses))
			for _, s := range statuses {
				st, err := provision.ParseStatus(s)
				if err != nil {
					return err
				}
				filter = append(filter, st)
			}

			r, err := app.Reconciler(app.ReconcilerConfig())
			if err != nil {
				return err
			}
			entries, err := r.Registry(cmd.Context(), filter...)
			if err != nil {
				return err
			}
			app.Logger().Debug().Int("count", len(entries)).Msg("Listed registry")

			return output.Print(cmd.OutOrStdout(), output.DetectFormat(app.OutputFormat()), entries,
				func(wide bool) table.Data { return table.EntriesToTableData(entries, wide) })
		},
	}
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "filter by status: proposed, active, deprecated")
	return cmd
}
