package reconciler_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/agentstation/keysync/pkg/audit"
	"github.com/agentstation/keysync/pkg/errors"
	"github.com/agentstation/keysync/pkg/provision"
	"github.com/agentstation/keysync/pkg/reconciler"
)

func TestDefaultConfig(t *testing.T) {
	cfg := reconciler.DefaultConfig()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, audit.ModeFull, cfg.Mode)
	assert.Equal(t, provision.StrategyMirror, cfg.Strategy)
	assert.Equal(t, 5000, cfg.CheckpointInterval)
	assert.Equal(t, 5, cfg.Concurrency)
	assert.Equal(t, 2*time.Minute, cfg.ExtractTimeout)
	assert.False(t, cfg.DryRun)
	assert.False(t, cfg.AutoApprove)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*reconciler.Config)
		field  string
	}{
		{"unknown mode", func(c *reconciler.Config) { c.Mode = "partial" }, "mode"},
		{"unknown strategy", func(c *reconciler.Config) { c.Strategy = "hashed" }, "strategy"},
		{"namespaced without separator", func(c *reconciler.Config) {
			c.Strategy = provision.StrategyNamespaced
			c.Separator = ""
		}, "separator"},
		{"zero checkpoint interval", func(c *reconciler.Config) { c.CheckpointInterval = 0 }, "checkpoint_interval"},
		{"zero concurrency", func(c *reconciler.Config) { c.Concurrency = 0 }, "concurrency"},
		{"zero timeout", func(c *reconciler.Config) { c.ExtractTimeout = 0 }, "extract_timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := reconciler.DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			assert.True(t, errors.IsConfigError(err))
			var verr *errors.ValidationError
			if assert.ErrorAs(t, err, &verr) {
				assert.Equal(t, tt.field, verr.Field)
			}
		})
	}
}

func TestConfigGenerator(t *testing.T) {
	cfg := reconciler.DefaultConfig()
	cfg.Strategy = provision.StrategyNamespaced
	cfg.Prefix = "MASTER"

	gen := cfg.Generator()
	assert.Equal(t, "MASTER-C-K9", gen.MasterKey("C", "K9"))
}

func TestCanTransition(t *testing.T) {
	assert.True(t, reconciler.CanTransition(reconciler.StateIdle, reconciler.StateExtracting))
	assert.True(t, reconciler.CanTransition(reconciler.StateProvisioning, reconciler.StateReporting))
	assert.True(t, reconciler.CanTransition(reconciler.StateComparing, reconciler.StateFailed))
	assert.False(t, reconciler.CanTransition(reconciler.StateIdle, reconciler.StateComparing))
	assert.False(t, reconciler.CanTransition(reconciler.StateCompleted, reconciler.StateFailed))
	assert.False(t, reconciler.CanTransition(reconciler.StateFailed, reconciler.StateIdle))
	assert.False(t, reconciler.CanTransition(reconciler.StatePersisting, reconciler.StateProvisioning))
}
