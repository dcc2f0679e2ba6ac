package compare

import (
	"maps"
	"slices"
	"time"

	"github.com/agentstation/keysync/pkg/sources"
)

// SnapshotVersion is bumped whenever the snapshot layout changes.
const SnapshotVersion = 1

// Snapshot is the comparison state left by a sealed run. An incremental
// comparison diffs the current extract against it and classifies only the
// keys that changed.
type Snapshot struct {
	Version          int                         `json:"version"`
	AuthorityRecords int                         `json:"authority_records"`
	Authority        []string                    `json:"authority"`
	Peers            map[sources.ID]PeerSnapshot `json:"peers"`
}

// PeerSnapshot is the state of one peer system.
//
// Available records whether the peer took part in the run that wrote the
// snapshot. The key set and discrepancy sets of a peer that was unavailable
// are carried forward unchanged from the run before.
type PeerSnapshot struct {
	Available      bool                 `json:"available"`
	Records        int                  `json:"records"`
	Keys           []string             `json:"keys"`
	OutOfAuthority map[string]time.Time `json:"out_of_authority,omitempty"`
	Gaps           map[string]time.Time `json:"gaps,omitempty"`
	Duplicates     map[string]time.Time `json:"duplicates,omitempty"`
}

// Peer returns the state of a peer, or nil if the snapshot has none.
func (s *Snapshot) Peer(id sources.ID) *PeerSnapshot {
	if s == nil {
		return nil
	}
	p, ok := s.Peers[id]
	if !ok {
		return nil
	}
	return &p
}

// Discrepancies lists every discrepancy held by available peers.
func (s *Snapshot) Discrepancies() []Discrepancy {
	if s == nil {
		return nil
	}
	var out []Discrepancy
	for id, p := range s.Peers {
		if !p.Available {
			continue
		}
		out = appendSet(out, OutOfAuthority, id, p.OutOfAuthority)
		out = appendSet(out, PropagationGap, id, p.Gaps)
		out = appendSet(out, Duplicate, id, p.Duplicates)
	}
	Sort(out)
	return out
}

func appendSet(out []Discrepancy, kind Kind, system sources.ID, set map[string]time.Time) []Discrepancy {
	for _, key := range slices.Sorted(maps.Keys(set)) {
		out = append(out, Discrepancy{Kind: kind, System: system, Key: key, ObservedAt: set[key]})
	}
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	return slices.Sorted(maps.Keys(set))
}
