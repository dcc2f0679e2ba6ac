package reconciler_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/keysync/internal/sources/memory"
	"github.com/agentstation/keysync/pkg/audit"
	"github.com/agentstation/keysync/pkg/errors"
	"github.com/agentstation/keysync/pkg/reconciler"
	"github.com/agentstation/keysync/pkg/sources"
)

// interruptedRun runs wide() until the checkpoint at offset 6 is committed
// and returns the interrupted run id.
func interruptedRun(t *testing.T, s reconciler.Store, srcs []sources.Source) string {
	t.Helper()
	ctx, hook := interruptAfter(6)
	r := newReconciler(t, testConfig(), s, srcs, hook)

	res, err := r.Run(ctx)
	require.Error(t, err)
	require.ErrorIs(t, err, context.Canceled)
	require.True(t, res.IsInterrupted())
	return res.RunID
}

func TestInterruptAndResume(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	runID := interruptedRun(t, s, wide())

	r := newReconciler(t, testConfig(), s, wide())
	run, err := r.RunRecord(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, audit.StatusInterrupted, run.Status)
	assert.Equal(t, 6, run.CheckpointOffset)
	assert.Equal(t, 2, run.Progress.Checkpoints)
	assert.NotEmpty(t, run.Fingerprint)
	assert.Len(t, registry(t, r), 6, "the first two checkpoints are durable")

	res, err := r.Resume(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, runID, res.RunID)
	assert.Equal(t, audit.StatusCompleted, res.Status)
	assert.True(t, res.Metadata.Resumed)
	assert.Equal(t, 6, res.Metadata.ResumedFrom)
	assert.Equal(t, 24, res.Progress.Discrepancies)
	assert.Equal(t, 20, res.Progress.Proposed)
	assert.Equal(t, 8, res.Progress.Checkpoints)

	// The registry matches a run that was never interrupted.
	fresh := createTestStore(t)
	ref := newReconciler(t, testConfig(), fresh, wide())
	_, err = ref.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, registry(t, ref), registry(t, r))

	counts := countEvents(t, r, runID)
	assert.Equal(t, 24, counts[audit.EventDiscrepancyDetected], "no item is committed twice")
	assert.Equal(t, 8, counts[audit.EventCheckpointCommitted])
	assert.Equal(t, 1, counts[audit.EventRunInterrupted])
	assert.Equal(t, 1, counts[audit.EventRunResumed])
	assert.Equal(t, 1, counts[audit.EventRunCompleted])

	run, err = r.RunRecord(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, audit.StatusCompleted, run.Status)
	assert.Equal(t, 24, run.CheckpointOffset)
}

func TestResumeAfterLastCheckpoint(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	// Interrupting at the final offset leaves only the seal to do.
	cctx, hook := interruptAfter(24)
	r := newReconciler(t, testConfig(), s, wide(), hook)
	res, err := r.Run(cctx)
	require.Error(t, err)
	require.True(t, res.IsInterrupted())

	r = newReconciler(t, testConfig(), s, wide())
	resumed, err := r.Resume(ctx, res.RunID)
	require.NoError(t, err)
	assert.Equal(t, audit.StatusCompleted, resumed.Status)
	assert.Equal(t, 8, resumed.Progress.Checkpoints)
	assert.Equal(t, 8, countEvents(t, r, res.RunID)[audit.EventCheckpointCommitted])
}

func TestResumeFingerprintMismatch(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	runID := interruptedRun(t, s, wide())

	srcs := wide()
	srcs[1].(*memory.Source).AppendKeys("NEW")
	r := newReconciler(t, testConfig(), s, srcs)

	_, err := r.Resume(ctx, runID)
	require.Error(t, err)
	assert.True(t, errors.IsCheckpointError(err))
	assert.Contains(t, err.Error(), "fingerprint")

	run, err := r.RunRecord(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, audit.StatusFailed, run.Status)
	assert.Len(t, registry(t, r), 6, "committed checkpoints stay")
}

func TestResumeCorruptCheckpoint(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	runID := interruptedRun(t, s, wide())

	_, err := s.DB().Exec(`UPDATE runs SET progress = x'00112233445566778899' WHERE run_id = ?`, runID)
	require.NoError(t, err)

	r := newReconciler(t, testConfig(), s, wide())
	_, err = r.Resume(ctx, runID)
	require.Error(t, err)
	assert.True(t, errors.IsCheckpointError(err))
	assert.True(t, errors.IsCorrupted(err))

	run, err := r.RunRecord(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, audit.StatusFailed, run.Status)

	// A fresh full run still works.
	res, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, audit.StatusCompleted, res.Status)
}

func TestResumeRejectsSealedRun(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	r := newReconciler(t, testConfig(), s, scenario())
	res, err := r.Run(ctx)
	require.NoError(t, err)

	_, err = r.Resume(ctx, res.RunID)
	assert.True(t, errors.IsCheckpointError(err))

	run, err := r.RunRecord(ctx, res.RunID)
	require.NoError(t, err)
	assert.Equal(t, audit.StatusCompleted, run.Status, "a sealed run is left alone")
}

func TestResumeModeMismatch(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	runID := interruptedRun(t, s, wide())

	cfg := testConfig()
	cfg.Mode = audit.ModeIncremental
	r := newReconciler(t, cfg, s, wide())

	_, err := r.Resume(ctx, runID)
	require.Error(t, err)
	assert.True(t, errors.IsCheckpointError(err))

	run, err := r.RunRecord(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, audit.StatusFailed, run.Status)
}

func TestResumeUnknownRun(t *testing.T) {
	s := createTestStore(t)
	r := newReconciler(t, testConfig(), s, wide())

	_, err := r.Resume(context.Background(), "missing")
	assert.True(t, errors.IsNotFound(err))

	_, held, err := s.LockOwner(context.Background())
	require.NoError(t, err)
	assert.False(t, held)
}
