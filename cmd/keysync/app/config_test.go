package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/keysync/pkg/audit"
	"github.com/agentstation/keysync/pkg/constants"
	"github.com/agentstation/keysync/pkg/provision"
	"github.com/agentstation/keysync/pkg/reconciler"
)

func TestLoadConfigDefaults(t *testing.T) {
	config, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, constants.DatabasePath, config.Database)
	assert.Equal(t, constants.InputDir, config.InputDir)
	assert.Equal(t, reconciler.DefaultConfig(), config.Reconcile)
	assert.Equal(t, "auto", config.LogFormat)
	assert.Equal(t, "stderr", config.LogOutput)
	assert.NoError(t, config.Reconcile.Validate())
}

func TestLoadConfigEnvironment(t *testing.T) {
	t.Setenv("KEYSYNC_DATABASE", "/tmp/other.db")
	t.Setenv("KEYSYNC_FORMAT", "json")
	t.Setenv("KEYSYNC_RECONCILE_MODE", "incremental")
	t.Setenv("KEYSYNC_RECONCILE_STRATEGY", "namespaced")
	t.Setenv("KEYSYNC_RECONCILE_EXTRACT_TIMEOUT", "30s")
	t.Setenv("KEYSYNC_RECONCILE_RULES_PAD_LENGTH", "8")

	config, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "/tmp/other.db", config.Database)
	assert.Equal(t, "json", config.Format)
	assert.Equal(t, audit.ModeIncremental, config.Reconcile.Mode)
	assert.Equal(t, provision.StrategyNamespaced, config.Reconcile.Strategy)
	assert.Equal(t, 30*time.Second, config.Reconcile.ExtractTimeout)
	assert.Equal(t, 8, config.Reconcile.Rules.PadLength)
	// Untouched settings keep their defaults.
	assert.Equal(t, constants.CheckpointInterval, config.Reconcile.CheckpointInterval)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keysync.yaml")
	content := `database: ./state/keys.db
input_dir: ./extracts
reconcile:
  strategy: namespaced
  prefix: MASTER
  auto_approve: true
  checkpoint_interval: 250
  rules:
    uppercase: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), constants.FilePermissions))

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, path, config.ConfigFile)
	assert.Equal(t, "./state/keys.db", config.Database)
	assert.Equal(t, "./extracts", config.InputDir)
	assert.Equal(t, provision.StrategyNamespaced, config.Reconcile.Strategy)
	assert.Equal(t, "MASTER", config.Reconcile.Prefix)
	assert.True(t, config.Reconcile.AutoApprove)
	assert.Equal(t, 250, config.Reconcile.CheckpointInterval)
	assert.False(t, config.Reconcile.Rules.Uppercase)
	assert.Equal(t, audit.ModeFull, config.Reconcile.Mode)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestUpdateFromFlags(t *testing.T) {
	config := &Config{Format: "yaml", Database: "a.db", LogLevel: "warn"}

	config.UpdateFromFlags(true, false, true, "", "", "")
	assert.True(t, config.Verbose)
	assert.True(t, config.NoColor)
	assert.Equal(t, "yaml", config.Format, "empty flag keeps the configured value")
	assert.Equal(t, "a.db", config.Database)
	assert.Equal(t, "warn", config.LogLevel)

	config.UpdateFromFlags(false, true, false, "json", "debug", "b.db")
	assert.Equal(t, "json", config.Format)
	assert.Equal(t, "b.db", config.Database)
	assert.Equal(t, "debug", config.LogLevel)
}
