package reconciler

import (
	"context"

	"github.com/agentstation/keysync/pkg/audit"
	"github.com/agentstation/keysync/pkg/compare"
	"github.com/agentstation/keysync/pkg/provision"
)

// persist commits items in batches of the checkpoint interval. Each batch
// is one transaction; cancellation is only observed between batches. The
// first checkpoint of a run also carries the preamble events, so a run
// whose work list is empty still commits once.
func (r *reconciler) persist(ctx context.Context, rc *runContext, work workList, items []workItem, offset int) error {
	total := len(work.items)
	start := offset

	for offset < total || rc.progress.Checkpoints == 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := min(offset+r.cfg.CheckpointInterval, total)
		batch := items[offset-start : end-start]
		now := r.opts.now()

		var events []audit.Event
		if rc.progress.Checkpoints == 0 {
			events = append(events, rc.preamble...)
		}
		var entries []provision.Entry
		var delta audit.Progress
		for _, it := range batch {
			events = append(events, audit.DiscrepancyEvent(rc.run.ID, it.discrepancy, now))
			delta = delta.Add(it.progress())
			if it.outcome == nil {
				continue
			}
			out := it.outcome
			switch out.Action {
			case provision.ActionProposed:
				events = append(events, audit.EntryEvent(rc.run.ID, audit.EventMasterKeyProposed, out.Entry, now))
				entries = append(entries, out.Entry)
			case provision.ActionReused:
				events = append(events, audit.EntryEvent(rc.run.ID, audit.EventMasterKeyReused, out.Entry, now))
				entries = append(entries, out.Entry)
			case provision.ActionSkipped:
				events = append(events, audit.EntryEvent(rc.run.ID, audit.EventMasterKeySkipped, out.Entry, now))
			}
			if it.activated {
				events = append(events, audit.EntryEvent(rc.run.ID, audit.EventMasterKeyActivated, out.Entry, now))
			}
		}
		delta.Checkpoints = 1
		progress := rc.progress.Add(delta)
		events = append(events, audit.NewEvent(rc.run.ID, audit.EventCheckpointCommitted, "", "", map[string]any{
			"offset": end,
			"items":  len(batch),
		}, now))

		cp := audit.Checkpoint{
			RunID:       rc.run.ID,
			Offset:      end,
			Fingerprint: work.fingerprint,
			Progress:    progress,
			Entries:     entries,
			Events:      events,
		}
		if err := r.store.Commit(ctx, cp); err != nil {
			return err
		}

		rc.progress = progress
		rc.run.CheckpointOffset = end
		rc.run.Fingerprint = work.fingerprint
		offset = end

		rc.logger.Debug().
			Int("offset", end).
			Int("total", total).
			Int("entries", len(entries)).
			Msg("Committed checkpoint")
		if r.opts.checkpoint != nil {
			r.opts.checkpoint(rc.run.ID, end)
		}
	}
	return nil
}

// seal closes the run and stores the snapshot the next incremental run
// starts from.
func (r *reconciler) seal(ctx context.Context, rc *runContext, status audit.Status, cmp *compare.Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := r.opts.now()
	run := rc.run
	run.Status = status
	run.Stats = cmp.Stats
	run.Progress = rc.progress
	run.FinishedAt = &now

	ev := audit.NewEvent(run.ID, audit.EventRunCompleted, "", "", map[string]any{
		"status": status,
		"stats":  cmp.Stats,
	}, now)
	if err := r.store.SealRun(ctx, run, cmp.Snapshot(), ev); err != nil {
		return err
	}
	rc.run = run
	return nil
}
