package alerts

import (
	"fmt"

	"github.com/agentstation/keysync/pkg/reconciler"
	"github.com/agentstation/keysync/pkg/sources"
)

// ForResult returns the alerts an operator should see after a run.
func ForResult(res *reconciler.Result) []*Alert {
	var out []*Alert

	for _, id := range sources.IDs() {
		if reason, ok := res.Unavailable[id]; ok {
			out = append(out, NewWarning(fmt.Sprintf("system %s unavailable", id)).
				WithDetails(reason, "its keys were left out of this comparison"))
		}
	}
	if res.SkippedRows > 0 {
		out = append(out, NewWarning(fmt.Sprintf("%d rows skipped", res.SkippedRows)).
			WithDetails(fmt.Sprintf("keysync audit --run %s --type row_corrupted", res.RunID)))
	}
	for _, w := range res.Warnings {
		out = append(out, NewWarning(w))
	}

	switch {
	case res.IsInterrupted():
		out = append(out, NewInfo("run interrupted, committed checkpoints are kept").
			WithDetails("keysync resume "+res.RunID))
	case res.Metadata.DryRun:
		out = append(out, NewInfo("dry run, nothing was written"))
	case res.Progress.Proposed > 0 && !res.Metadata.AutoApprove:
		out = append(out, NewInfo(fmt.Sprintf("%d master keys await approval", res.Progress.Proposed)).
			WithDetails("keysync registry list --status proposed"))
	}
	return out
}
