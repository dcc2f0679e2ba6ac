package reconciler

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/spaolacci/murmur3"

	"github.com/agentstation/keysync/pkg/audit"
	"github.com/agentstation/keysync/pkg/compare"
	"github.com/agentstation/keysync/pkg/errors"
	"github.com/agentstation/keysync/pkg/provision"
)

// workList is the ordered list of new discrepancies a run commits. Its
// fingerprint identifies it across a resume.
type workList struct {
	items       []compare.Discrepancy
	fingerprint string
}

func newWorkList(ds []compare.Discrepancy) workList {
	return workList{items: ds, fingerprint: fingerprint(ds)}
}

// fingerprint hashes the identity of each discrepancy in order. Observation
// times are left out: they may come from the clock and differ on a resume.
func fingerprint(ds []compare.Discrepancy) string {
	h := murmur3.New64()
	for _, d := range ds {
		fmt.Fprintf(h, "%s\x00%s\x00%s\n", d.Kind, d.System, d.Key)
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

// checkResume returns the offset to continue from. A fresh run starts at 0;
// a resumed run must recompute the work list it checkpointed.
func (r *reconciler) checkResume(rc *runContext, work workList) (int, error) {
	if !rc.resumed {
		return 0, nil
	}
	run := rc.run
	if run.Fingerprint != "" && run.Fingerprint != work.fingerprint {
		return 0, errors.NewCheckpointResumeError(run.ID,
			fmt.Sprintf("plan fingerprint changed from %s to %s", run.Fingerprint, work.fingerprint), nil)
	}
	if run.CheckpointOffset < 0 || run.CheckpointOffset > len(work.items) {
		return 0, errors.NewCheckpointResumeError(run.ID,
			fmt.Sprintf("offset %d is outside the work list of %d items", run.CheckpointOffset, len(work.items)), nil)
	}
	return run.CheckpointOffset, nil
}

// workItem is one planned entry of the work list.
type workItem struct {
	discrepancy compare.Discrepancy
	outcome     *provision.Outcome // out-of-authority items only
	activated   bool
}

func (it workItem) progress() audit.Progress {
	p := audit.Progress{Discrepancies: 1}
	if it.outcome != nil {
		switch it.outcome.Action {
		case provision.ActionProposed:
			p.Proposed = 1
		case provision.ActionReused:
			p.Reused = 1
		case provision.ActionSkipped:
			p.Skipped = 1
		}
	}
	if it.activated {
		p.Activated = 1
	}
	return p
}

// plan proposes master keys for work.items[offset:]. Items before offset
// were committed by an earlier attempt and are visible through the registry.
func (r *reconciler) plan(ctx context.Context, rc *runContext, work workList, offset int) ([]workItem, error) {
	prov, err := provision.New(r.cfg.Generator(), r.registry(), rc.run.ID, provision.WithClock(r.opts.now))
	if err != nil {
		return nil, err
	}

	pending := work.items[offset:]
	items := make([]workItem, len(pending))
	for i, d := range pending {
		items[i].discrepancy = d
		if d.Kind != compare.OutOfAuthority {
			continue
		}
		out, err := prov.Propose(ctx, d)
		if err != nil {
			return nil, err
		}
		if out.Action == provision.ActionProposed && r.cfg.AutoApprove {
			entry, err := prov.Activate(out.Entry.MasterKey)
			if err != nil {
				return nil, err
			}
			out.Entry = entry
			items[i].activated = true
		}
		items[i].outcome = &out
	}

	rc.logger.Info().
		Int("work", len(work.items)).
		Int("offset", offset).
		Int("pending_entries", len(prov.Pending())).
		Str("fingerprint", work.fingerprint).
		Msg("Planned master keys")
	return items, nil
}

// registry is the committed registry, or an empty one for a dry run
// without a store.
func (r *reconciler) registry() provision.Registry {
	if r.store == nil {
		return emptyRegistry{}
	}
	return r.store
}

type emptyRegistry struct{}

func (emptyRegistry) MasterKey(context.Context, string) (provision.Entry, bool, error) {
	return provision.Entry{}, false, nil
}

func planProgress(items []workItem) audit.Progress {
	var p audit.Progress
	for _, it := range items {
		p = p.Add(it.progress())
	}
	return p
}

func outcomes(items []workItem) []provision.Outcome {
	var out []provision.Outcome
	for _, it := range items {
		if it.outcome != nil {
			out = append(out, *it.outcome)
		}
	}
	return out
}

func rowLine(err error) int {
	var rowErr *errors.RowCorruptionError
	if stderrors.As(err, &rowErr) {
		return rowErr.Line
	}
	return 0
}
