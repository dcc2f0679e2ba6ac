package sources

import "time"

// Record is one raw row of a system extract. Records live for a single
// comparison pass and are never persisted as-is.
type Record struct {
	System ID `json:"system" yaml:"system"`

	// RawKey is the key as extracted. Missing is set when the row carries
	// no key at all, which is not the same as an empty key.
	RawKey  string `json:"raw_key" yaml:"raw_key"`
	Missing bool   `json:"missing,omitempty" yaml:"missing,omitempty"`

	EntityType  string    `json:"entity_type,omitempty" yaml:"entity_type,omitempty"`
	LocationRef string    `json:"location_ref,omitempty" yaml:"location_ref,omitempty"`
	LastSeenAt  time.Time `json:"last_seen_at" yaml:"last_seen_at"`

	// Line is the 1-based position in the extract, used in error messages.
	Line int `json:"line,omitempty" yaml:"line,omitempty"`
}
