package app

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/keysync/pkg/constants"
	"github.com/agentstation/keysync/pkg/errors"
	"github.com/agentstation/keysync/pkg/reconciler"
)

// TestApp_New verifies app initialization.
func TestApp_New(t *testing.T) {
	app, err := New("1.0.0", "abc123", "2024-01-01", "test")
	require.NoError(t, err)

	assert.Equal(t, "1.0.0", app.Version())
	assert.Equal(t, "abc123", app.Commit())
	assert.Equal(t, "2024-01-01", app.Date())
	assert.Equal(t, "test", app.BuiltBy())
	assert.NotNil(t, app.Logger())
	assert.NotNil(t, app.Config())
	assert.Equal(t, reconciler.DefaultConfig(), app.ReconcilerConfig())
	assert.NoError(t, app.Shutdown(context.Background()), "nothing opened yet")
}

func TestApp_NilOptions(t *testing.T) {
	_, err := New("dev", "", "", "", WithConfig(nil))
	assert.Error(t, err)
	_, err = New("dev", "", "", "", WithLogger(nil))
	assert.Error(t, err)
}

// cli runs keysync commands against one store and captures their output.
type cli struct {
	t   *testing.T
	app *App
	out *bytes.Buffer
	db  string
	dir string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	tmp := t.TempDir()
	out := &bytes.Buffer{}
	app, err := New("dev", "", "", "", WithOutput(out))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Shutdown(context.Background()) })

	c := &cli{t: t, app: app, out: out, db: filepath.Join(tmp, "keysync.db"), dir: filepath.Join(tmp, "input")}
	require.NoError(t, os.MkdirAll(c.dir, constants.DirPermissions))
	return c
}

// extract writes one CSV file per system.
func (c *cli) extract(keys map[string][]string) {
	c.t.Helper()
	for _, id := range []string{"A", "B", "C", "D", "E"} {
		content := "key,last_seen_at\n"
		for _, k := range keys[id] {
			content += k + ",2025-01-01T00:00:00Z\n"
		}
		require.NoError(c.t, os.WriteFile(filepath.Join(c.dir, id+".csv"), []byte(content), constants.FilePermissions))
	}
}

func (c *cli) run(args ...string) (string, error) {
	c.out.Reset()
	all := append([]string{"--db", c.db, "--log-level", "error"}, args...)
	err := c.app.Execute(context.Background(), all)
	return c.out.String(), err
}

func (c *cli) json(v any, args ...string) {
	c.t.Helper()
	out, err := c.run(append(args, "-o", "json")...)
	require.NoError(c.t, err, out)
	require.NoError(c.t, json.Unmarshal([]byte(out), v), out)
}

func TestExecute_RunApproveAndInspect(t *testing.T) {
	c := newCLI(t)
	c.extract(map[string][]string{
		"A": {"K1", "K2"},
		"B": {"K1", "K9"},
		"C": {"K1"},
	})

	var res struct {
		RunID    string `json:"run_id"`
		Status   string `json:"status"`
		Progress struct {
			Proposed int `json:"proposed"`
		} `json:"progress"`
	}
	c.json(&res, "run", "--input-dir", c.dir)
	assert.Equal(t, "completed", res.Status)
	assert.Equal(t, 1, res.Progress.Proposed, "only K9 is out of authority")
	require.NotEmpty(t, res.RunID)

	var entries []map[string]any
	c.json(&entries, "registry", "list", "--status", "proposed")
	require.Len(t, entries, 1)
	assert.Equal(t, "K9", entries[0]["master_key"])
	assert.Equal(t, "B", entries[0]["source_system"])

	c.json(&entries, "registry", "activate", "K9")
	require.Len(t, entries, 1)
	assert.Equal(t, "active", entries[0]["status"])

	_, err := c.run("registry", "deprecate", "MISSING")
	assert.Error(t, err)

	var runs []map[string]any
	c.json(&runs, "runs")
	require.Len(t, runs, 1)
	assert.Equal(t, res.RunID, runs[0]["run_id"])

	var run map[string]any
	c.json(&run, "runs", "show")
	assert.Equal(t, res.RunID, run["run_id"])

	var events []map[string]any
	c.json(&events, "audit", "--latest", "--type", "master_key_proposed")
	require.Len(t, events, 1)
	assert.Equal(t, "K9", events[0]["key"])

	out, err := c.run("unlock")
	require.NoError(t, err)
	assert.Contains(t, out, "not locked")
}

func TestExecute_IncrementalOverUnchangedFiles(t *testing.T) {
	c := newCLI(t)
	c.extract(map[string][]string{
		"A": {"K1", "K2", "K3"},
		"B": {"K1", "K2", "K9"},
		"C": {"K1", "K2", "K3"},
		"D": {"K1", "K2", "K3"},
		"E": {"K1", "K2", "K3"},
	})

	type result struct {
		Comparison struct {
			Duplicates []any `json:"duplicates"`
			New        []any `json:"new"`
			Systems    map[string]struct {
				Records int `json:"records"`
			} `json:"systems"`
		} `json:"comparison"`
		Metadata struct {
			BaseRunID string `json:"base_run_id"`
		} `json:"metadata"`
	}

	var first, second result
	c.json(&first, "run", "--mode", "incremental", "--input-dir", c.dir)
	c.json(&second, "run", "--mode", "incremental", "--input-dir", c.dir)

	assert.NotEmpty(t, second.Metadata.BaseRunID)
	assert.Empty(t, second.Comparison.Duplicates)
	assert.Empty(t, second.Comparison.New)
	assert.Equal(t, 3, second.Comparison.Systems["B"].Records)
}

func TestExecute_DryRunWritesNothing(t *testing.T) {
	c := newCLI(t)
	c.extract(map[string][]string{"A": {"K1"}, "B": {"K2"}})

	var res struct {
		Status   string `json:"status"`
		Metadata struct {
			DryRun bool `json:"dry_run"`
		} `json:"metadata"`
	}
	c.json(&res, "run", "--dry-run", "--input-dir", c.dir)
	assert.True(t, res.Metadata.DryRun)

	var runs []map[string]any
	c.json(&runs, "runs", "list")
	assert.Empty(t, runs)
}

func TestExecute_TableOutput(t *testing.T) {
	c := newCLI(t)
	c.extract(map[string][]string{"A": {"K1"}, "B": {"K1", "X1"}})

	out, err := c.run("run", "--input-dir", c.dir, "-o", "table")
	require.NoError(t, err)
	assert.Contains(t, out, "X1")
	assert.Contains(t, out, "proposed")
	assert.Contains(t, out, "master keys: proposed=1")
}

func TestExecute_Errors(t *testing.T) {
	c := newCLI(t)

	_, err := c.run("run", "--mode", "partial")
	assert.Error(t, err)

	_, err = c.run("run", "--concurrency", "0", "--input-dir", c.dir)
	assert.True(t, errors.IsConfigError(err), "%v", err)

	_, err = c.run("runs", "-o", "xml")
	assert.Error(t, err)

	// A has no extract, so the authority is unavailable.
	_, err = c.run("run", "--input-dir", c.dir)
	assert.Error(t, err)

	_, err = c.run("resume", "missing-run", "--input-dir", c.dir)
	assert.Error(t, err)
}

func TestExecute_Version(t *testing.T) {
	c := newCLI(t)
	out, err := c.run("version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "keysync dev"), out)
}
