package reconciler_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agentstation/keysync/internal/sources/memory"
	"github.com/agentstation/keysync/internal/store"
	"github.com/agentstation/keysync/pkg/audit"
	"github.com/agentstation/keysync/pkg/logging"
	"github.com/agentstation/keysync/pkg/reconciler"
	"github.com/agentstation/keysync/pkg/sources"
)

var t0 = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

// tickingClock advances one millisecond per reading.
type tickingClock struct {
	mu  sync.Mutex
	now time.Time
}

// clock is shared by every reconciler of the package so that runs of
// different reconcilers on one store keep their start order.
var clock = &tickingClock{now: t0}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

// createTestStore opens a fresh store in a temp directory.
func createTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "keysync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// testConfig is the default configuration with a small checkpoint interval.
func testConfig() reconciler.Config {
	cfg := reconciler.DefaultConfig()
	cfg.CheckpointInterval = 3
	cfg.ExtractTimeout = 5 * time.Second
	return cfg
}

// scenario returns A={K1,K2,K3}, B={K1,K2,K9,K9} and empty C, D and E.
func scenario() []sources.Source {
	return []sources.Source{
		memory.FromKeys(sources.A, "K1", "K2", "K3"),
		memory.FromKeys(sources.B, "K1", "K2", "K9", "K9"),
		memory.FromKeys(sources.C),
		memory.FromKeys(sources.D),
		memory.FromKeys(sources.E),
	}
}

// wide returns sources whose work list spans several checkpoints: twenty
// out-of-authority keys in B plus one gap per peer.
func wide() []sources.Source {
	b := memory.FromKeys(sources.B)
	for i := range 20 {
		b.AppendKeys("X" + string(rune('A'+i)))
	}
	return []sources.Source{
		memory.FromKeys(sources.A, "K1"),
		b,
		memory.FromKeys(sources.C),
		memory.FromKeys(sources.D),
		memory.FromKeys(sources.E),
	}
}

func newReconciler(t *testing.T, cfg reconciler.Config, s reconciler.Store, srcs []sources.Source, opts ...reconciler.Option) reconciler.Reconciler {
	t.Helper()
	opts = append([]reconciler.Option{
		reconciler.WithSources(srcs...),
		reconciler.WithClock(clock.Now),
		reconciler.WithLogger(logging.NewNopLogger()),
	}, opts...)
	r, err := reconciler.New(cfg, s, opts...)
	require.NoError(t, err)
	return r
}

// registry returns "MASTER_KEY status" for every entry, sorted.
func registry(t *testing.T, r reconciler.Reconciler) []string {
	t.Helper()
	entries, err := r.Registry(context.Background())
	require.NoError(t, err)
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.MasterKey+" "+e.Status.String())
	}
	return out
}

// countEvents counts events of each type for runID, or for all runs when
// runID is empty.
func countEvents(t *testing.T, r reconciler.Reconciler, runID string) map[audit.EventType]int {
	t.Helper()
	events, err := r.Events(context.Background(), audit.Filter{RunID: runID, Limit: 10000})
	require.NoError(t, err)
	counts := make(map[audit.EventType]int)
	for _, e := range events {
		counts[e.Type]++
	}
	return counts
}

// interruptAfter returns a context and a checkpoint hook that cancels it
// once offset reaches n.
func interruptAfter(n int) (context.Context, reconciler.Option) {
	ctx, cancel := context.WithCancel(context.Background())
	return ctx, reconciler.WithCheckpointHook(func(_ string, offset int) {
		if offset >= n {
			cancel()
		}
	})
}
