package compare

import (
	"fmt"

	"github.com/agentstation/keysync/pkg/sources"
)

// Status describes how a system took part in a comparison.
type Status string

// System statuses.
const (
	StatusAvailable   Status = "available"
	StatusEmpty       Status = "empty"
	StatusUnavailable Status = "unavailable"
)

// SystemStats are the per-system figures of a comparison. They describe
// the current extract in both modes.
type SystemStats struct {
	System          sources.ID `json:"system" yaml:"system"`
	Status          Status     `json:"status" yaml:"status"`
	Reason          string     `json:"reason,omitempty" yaml:"reason,omitempty"`
	Records         int        `json:"records" yaml:"records"`
	UniqueKeys      int        `json:"unique_keys" yaml:"unique_keys"`
	OutOfAuthority  int        `json:"out_of_authority" yaml:"out_of_authority"`
	PropagationGaps int        `json:"propagation_gaps" yaml:"propagation_gaps"`
	Duplicates      int        `json:"duplicates" yaml:"duplicates"`
	SkippedRows     int        `json:"skipped_rows" yaml:"skipped_rows"`
}

// IsAvailable reports whether the system was extracted, empty or not.
func (s SystemStats) IsAvailable() bool {
	return s.Status != StatusUnavailable
}

// Stats are the overall figures of a comparison.
type Stats struct {
	KeysInA          int          `json:"keys_in_a" yaml:"keys_in_a"`
	KeysOnlyInA      int          `json:"keys_only_in_a" yaml:"keys_only_in_a"`
	TotalUniqueKeys  int          `json:"total_unique_keys" yaml:"total_unique_keys"`
	KeysInAllSystems int          `json:"keys_in_all_systems" yaml:"keys_in_all_systems"`
	MatchPercentage  float64      `json:"match_percentage" yaml:"match_percentage"`
	OutOfAuthority   int          `json:"out_of_authority" yaml:"out_of_authority"`
	PropagationGaps  int          `json:"propagation_gaps" yaml:"propagation_gaps"`
	Duplicates       int          `json:"duplicates" yaml:"duplicates"`
	SkippedRows      int          `json:"skipped_rows" yaml:"skipped_rows"`
	Unavailable      []sources.ID `json:"unavailable,omitempty" yaml:"unavailable,omitempty"`
}

// String returns a one-line summary.
func (s Stats) String() string {
	return fmt.Sprintf("A=%d unique=%d all=%d (%.1f%%) ooa=%d gaps=%d dup=%d skipped=%d unavailable=%d",
		s.KeysInA, s.TotalUniqueKeys, s.KeysInAllSystems, s.MatchPercentage,
		s.OutOfAuthority, s.PropagationGaps, s.Duplicates, s.SkippedRows, len(s.Unavailable))
}

// HasWarnings reports whether rows were skipped or systems were unavailable.
func (s Stats) HasWarnings() bool {
	return s.SkippedRows > 0 || len(s.Unavailable) > 0
}
