package reconciler

import (
	"time"

	"github.com/agentstation/keysync/pkg/audit"
	"github.com/agentstation/keysync/pkg/constants"
	"github.com/agentstation/keysync/pkg/errors"
	"github.com/agentstation/keysync/pkg/normalize"
	"github.com/agentstation/keysync/pkg/provision"
)

// Config is the typed configuration of a reconciliation.
type Config struct {
	Rules     normalize.Rules    `json:"rules" yaml:"rules" mapstructure:"rules"`
	Strategy  provision.Strategy `json:"strategy" yaml:"strategy" mapstructure:"strategy"`
	Separator string             `json:"separator" yaml:"separator" mapstructure:"separator"`
	Prefix    string             `json:"prefix,omitempty" yaml:"prefix,omitempty" mapstructure:"prefix"`

	// AutoApprove activates every entry proposed by the run before it is
	// committed.
	AutoApprove bool `json:"auto_approve" yaml:"auto_approve" mapstructure:"auto_approve"`

	// DryRun computes and reports the plan without writing anything.
	DryRun bool       `json:"dry_run" yaml:"dry_run" mapstructure:"dry_run"`
	Mode   audit.Mode `json:"mode" yaml:"mode" mapstructure:"mode"`

	CheckpointInterval int           `json:"checkpoint_interval" yaml:"checkpoint_interval" mapstructure:"checkpoint_interval"`
	Concurrency        int           `json:"concurrency" yaml:"concurrency" mapstructure:"concurrency"`
	ExtractTimeout     time.Duration `json:"extract_timeout" yaml:"extract_timeout" mapstructure:"extract_timeout"`
}

// DefaultConfig returns a full, mirrored, manually approved configuration.
func DefaultConfig() Config {
	return Config{
		Rules:              normalize.DefaultRules(),
		Strategy:           provision.StrategyMirror,
		Separator:          constants.NamespaceSeparator,
		Mode:               audit.ModeFull,
		CheckpointInterval: constants.CheckpointInterval,
		Concurrency:        constants.MaxConcurrentSystems,
		ExtractTimeout:     constants.ExtractTimeout,
	}
}

// Validate checks the configuration. A rejected field is returned as a
// *errors.ValidationError wrapped in a *errors.ConfigError.
func (c Config) Validate() error {
	if err := c.validate(); err != nil {
		return errors.NewConfigError("reconciler", err.Error(), err)
	}
	return nil
}

func (c Config) validate() error {
	if err := c.Rules.Validate(); err != nil {
		return err
	}
	if err := c.Generator().Validate(); err != nil {
		return err
	}
	switch c.Mode {
	case audit.ModeFull, audit.ModeIncremental:
	default:
		return &errors.ValidationError{
			Field:   "mode",
			Value:   c.Mode,
			Message: "must be full or incremental",
		}
	}
	if c.CheckpointInterval < 1 {
		return &errors.ValidationError{
			Field:   "checkpoint_interval",
			Value:   c.CheckpointInterval,
			Message: "must be positive",
		}
	}
	if c.Concurrency < 1 {
		return &errors.ValidationError{
			Field:   "concurrency",
			Value:   c.Concurrency,
			Message: "must be positive",
		}
	}
	if c.ExtractTimeout <= 0 {
		return &errors.ValidationError{
			Field:   "extract_timeout",
			Value:   c.ExtractTimeout,
			Message: "must be positive",
		}
	}
	return nil
}

// Generator returns the master key generator the configuration describes.
func (c Config) Generator() provision.Generator {
	return provision.Generator{
		Strategy:  c.Strategy,
		Separator: c.Separator,
		Prefix:    c.Prefix,
	}
}
