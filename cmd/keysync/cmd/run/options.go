package run

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/agentstation/keysync/pkg/audit"
	"github.com/agentstation/keysync/pkg/errors"
	"github.com/agentstation/keysync/pkg/provision"
	"github.com/agentstation/keysync/pkg/reconciler"
)

// Flags holds the run command flags. Only flags the user set override the
// configured values.
type Flags struct {
	Mode               string
	Strategy           string
	Prefix             string
	DryRun             bool
	AutoApprove        bool
	CheckpointInterval int
	Concurrency        int
	InputDir           string
	Timeout            time.Duration
	ShowAll            bool
}

func addRunFlags(cmd *cobra.Command, f *Flags) {
	cmd.Flags().StringVar(&f.Mode, "mode", "", "comparison mode: full or incremental")
	cmd.Flags().StringVar(&f.Strategy, "strategy", "", "master key strategy: mirror or namespaced")
	cmd.Flags().StringVar(&f.Prefix, "prefix", "", "prefix for namespaced master keys")
	cmd.Flags().BoolVar(&f.DryRun, "dry-run", false, "compute and report the plan without writing anything")
	cmd.Flags().BoolVar(&f.AutoApprove, "auto-approve", false, "activate proposed master keys immediately")
	cmd.Flags().IntVar(&f.CheckpointInterval, "checkpoint-interval", 0, "work items per committed checkpoint")
	addExtractFlags(cmd, f)
}

// addExtractFlags registers the flags shared by run and resume.
func addExtractFlags(cmd *cobra.Command, f *Flags) {
	cmd.Flags().IntVar(&f.Concurrency, "concurrency", 0, "peer systems compared in parallel")
	cmd.Flags().StringVar(&f.InputDir, "input-dir", "", "directory holding A..E extracts (csv, json or yaml)")
	cmd.Flags().DurationVar(&f.Timeout, "timeout", 0, "extraction timeout per system")
	cmd.Flags().BoolVar(&f.ShowAll, "all", false, "list every discrepancy instead of only candidates")
}

// apply overlays the flags the user set on cfg.
func (f *Flags) apply(cmd *cobra.Command, cfg reconciler.Config) (reconciler.Config, error) {
	changed := cmd.Flags().Changed

	if changed("mode") {
		switch m := audit.Mode(f.Mode); m {
		case audit.ModeFull, audit.ModeIncremental:
			cfg.Mode = m
		default:
			return cfg, errors.NewValidationError("mode", f.Mode, "must be full or incremental")
		}
	}
	if changed("strategy") {
		s, err := provision.ParseStrategy(f.Strategy)
		if err != nil {
			return cfg, err
		}
		cfg.Strategy = s
	}
	if changed("prefix") {
		cfg.Prefix = f.Prefix
	}
	if changed("dry-run") {
		cfg.DryRun = f.DryRun
	}
	if changed("auto-approve") {
		cfg.AutoApprove = f.AutoApprove
	}
	if changed("checkpoint-interval") {
		cfg.CheckpointInterval = f.CheckpointInterval
	}
	if changed("concurrency") {
		cfg.Concurrency = f.Concurrency
	}
	if changed("timeout") {
		cfg.ExtractTimeout = f.Timeout
	}
	return cfg, cfg.Validate()
}
