// Package unlock implements the unlock command.
package unlock

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/keysync/internal/appcontext"
)

// NewCommand creates the unlock command with app dependencies.
func NewCommand(app appcontext.Interface) *cobra.Command {
	return &cobra.Command{
		Use:     "unlock",
		GroupID: "management",
		Short:   "Release the store lock left by a crashed process",
		Long: `Only one process may write to a store at a time. A process that is
killed without cleanup leaves its lock behind; unlock clears it.

Make sure no other keysync process is running first. An interrupted run
that held the lock can then be resumed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			owner, err := app.ForceUnlock(cmd.Context())
			if err != nil {
				return err
			}
			if owner == "" {
				cmd.Println("Store was not locked.")
				return nil
			}
			app.Logger().Warn().Str("owner", owner).Msg("Released store lock")
			cmd.Printf("Released lock held by %s\n", owner)
			return nil
		},
	}
}
