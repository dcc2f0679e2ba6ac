package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agentstation/keysync/internal/store"
	"github.com/agentstation/keysync/pkg/audit"
	"github.com/agentstation/keysync/pkg/provision"
	"github.com/agentstation/keysync/pkg/sources"
)

var base = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

// createTestStore opens a fresh store in a temp directory.
func createTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "keysync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun inserts a running run.
func createTestRun(t *testing.T, s *store.Store, id string, started time.Time) audit.Run {
	t.Helper()
	r := audit.Run{
		ID:        id,
		Mode:      audit.ModeFull,
		Strategy:  string(provision.StrategyMirror),
		Status:    audit.StatusRunning,
		StartedAt: started,
	}
	require.NoError(t, s.CreateRun(context.Background(), r))
	return r
}

func testEntry(key string, status provision.Status) provision.Entry {
	return provision.Entry{
		MasterKey:    key,
		SourceSystem: sources.B,
		SourceKey:    key,
		Status:       status,
		Strategy:     provision.StrategyMirror,
		RunID:        "run-1",
		CreatedAt:    base,
		UpdatedAt:    base,
	}
}
