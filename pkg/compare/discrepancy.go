// Package compare classifies the keys of peer systems against the authority.
//
// Three kinds of discrepancy exist. An out-of-authority key is present in a
// peer but absent from System A. A propagation gap is a System A key that a
// peer lacks. A duplicate is a key that occurs more than once within one
// peer. Out-of-authority and propagation gap point in opposite directions and
// never describe the same (system, key); a duplicate may share its key with an
// out-of-authority discrepancy.
package compare

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/agentstation/keysync/pkg/sources"
)

// Kind is the classification of a discrepancy.
type Kind string

// Discrepancy kinds.
const (
	OutOfAuthority Kind = "out_of_authority"
	PropagationGap Kind = "propagation_gap"
	Duplicate      Kind = "duplicate"
)

// String returns the string representation of a kind.
func (k Kind) String() string {
	return string(k)
}

// rank orders kinds in listings.
func (k Kind) rank() int {
	switch k {
	case OutOfAuthority:
		return 0
	case PropagationGap:
		return 1
	case Duplicate:
		return 2
	default:
		return 3
	}
}

// Discrepancy is a single classified finding.
type Discrepancy struct {
	Kind       Kind       `json:"kind" yaml:"kind"`
	System     sources.ID `json:"system" yaml:"system"`
	Key        string     `json:"key" yaml:"key"`
	ObservedAt time.Time  `json:"observed_at" yaml:"observed_at"`
}

// String returns "kind system key".
func (d Discrepancy) String() string {
	return fmt.Sprintf("%s %s %s", d.Kind, d.System, d.Key)
}

// Compare orders discrepancies by kind, system and key. ObservedAt does not
// take part, so the order of a set is stable across runs.
func Compare(a, b Discrepancy) int {
	if c := cmp.Compare(a.Kind.rank(), b.Kind.rank()); c != 0 {
		return c
	}
	if c := cmp.Compare(a.System, b.System); c != 0 {
		return c
	}
	return cmp.Compare(a.Key, b.Key)
}

// Sort sorts ds in place.
func Sort(ds []Discrepancy) {
	slices.SortFunc(ds, Compare)
}

// Filter returns the discrepancies of kind k, preserving order.
func Filter(ds []Discrepancy, k Kind) []Discrepancy {
	var out []Discrepancy
	for _, d := range ds {
		if d.Kind == k {
			out = append(out, d)
		}
	}
	return out
}
