package compare

import (
	"github.com/agentstation/keysync/pkg/sources"
)

// Result is the outcome of a comparison. The three discrepancy lists are
// complete for the current extract and sorted; New holds the part of them not present in the
// snapshot the comparison started from.
type Result struct {
	OutOfAuthority  []Discrepancy              `json:"out_of_authority" yaml:"out_of_authority"`
	PropagationGaps []Discrepancy              `json:"propagation_gaps" yaml:"propagation_gaps"`
	Duplicates      []Discrepancy              `json:"duplicates" yaml:"duplicates"`
	New             []Discrepancy              `json:"new" yaml:"new"`
	Systems         map[sources.ID]SystemStats `json:"systems" yaml:"systems"`
	Stats           Stats                      `json:"stats" yaml:"stats"`
	Incremental     bool                       `json:"incremental" yaml:"incremental"`

	snapshot *Snapshot
}

// All returns every discrepancy, sorted.
func (r *Result) All() []Discrepancy {
	all := make([]Discrepancy, 0, len(r.OutOfAuthority)+len(r.PropagationGaps)+len(r.Duplicates))
	all = append(all, r.OutOfAuthority...)
	all = append(all, r.PropagationGaps...)
	all = append(all, r.Duplicates...)
	Sort(all)
	return all
}

// Candidates returns the new out-of-authority discrepancies, the ones a
// master key may be proposed for.
func (r *Result) Candidates() []Discrepancy {
	return Filter(r.New, OutOfAuthority)
}

// System returns the stats of one system.
func (r *Result) System(id sources.ID) SystemStats {
	if s, ok := r.Systems[id]; ok {
		return s
	}
	return SystemStats{System: id, Status: StatusUnavailable}
}

// Snapshot returns the state to start the next incremental comparison
// from.
func (r *Result) Snapshot() *Snapshot {
	return r.snapshot
}
