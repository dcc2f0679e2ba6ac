package app

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/keysync/cmd/keysync/cmd/audit"
	"github.com/agentstation/keysync/cmd/keysync/cmd/registry"
	"github.com/agentstation/keysync/cmd/keysync/cmd/run"
	"github.com/agentstation/keysync/cmd/keysync/cmd/runs"
	"github.com/agentstation/keysync/cmd/keysync/cmd/unlock"
)

// CreateRunCommand creates the run command with app dependencies.
func (a *App) CreateRunCommand() *cobra.Command {
	return run.NewCommand(a)
}

// CreateResumeCommand creates the resume command with app dependencies.
func (a *App) CreateResumeCommand() *cobra.Command {
	return run.NewResumeCommand(a)
}

// CreateRegistryCommand creates the registry command with app dependencies.
func (a *App) CreateRegistryCommand() *cobra.Command {
	return registry.NewCommand(a)
}

// CreateRunsCommand creates the runs command with app dependencies.
func (a *App) CreateRunsCommand() *cobra.Command {
	return runs.NewCommand(a)
}

// CreateAuditCommand creates the audit command with app dependencies.
func (a *App) CreateAuditCommand() *cobra.Command {
	return audit.NewCommand(a)
}

// CreateUnlockCommand creates the unlock command with app dependencies.
func (a *App) CreateUnlockCommand() *cobra.Command {
	return unlock.NewCommand(a)
}

// CreateVersionCommand creates the version command.
func (a *App) CreateVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("keysync %s\n", a.version)
			if a.config.Verbose {
				cmd.Printf("  commit:   %s\n", a.commit)
				cmd.Printf("  built:    %s\n", a.date)
				cmd.Printf("  built by: %s\n", a.builtBy)
			}
		},
	}
}
