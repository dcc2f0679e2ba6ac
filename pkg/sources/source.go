// Package sources defines the source systems that take part in a
// reconciliation and the record stream each of them supplies.
//
// System A is the authority: it decides which keys exist. Systems B through E
// are peers whose keys are checked against it. A Source either yields a
// stream (possibly empty) or fails with a SystemUnavailableError; the two
// outcomes are reported differently.
//
// Example usage:
//
//	stream, err := src.Records(ctx)
//	if err != nil {
//	    // system unavailable
//	}
//	for rec, err := range stream {
//	    if err != nil {
//	        // corrupt row, counted and skipped
//	        continue
//	    }
//	    use(rec)
//	}
package sources

import (
	"context"
	"iter"
	"slices"
	"strings"
	"sync"

	"github.com/agentstation/keysync/pkg/errors"
)

// ID identifies a source system.
type ID string

// String returns the string representation of a system id.
func (id ID) String() string {
	return string(id)
}

// Known source systems.
const (
	A ID = "A"
	B ID = "B"
	C ID = "C"
	D ID = "D"
	E ID = "E"
)

// Authority is the system every other system is compared against.
const Authority = A

// IDs returns all known systems, authority first.
func IDs() []ID {
	return []ID{A, B, C, D, E}
}

// Peers returns the non-authoritative systems.
func Peers() []ID {
	return []ID{B, C, D, E}
}

// IsValid returns true if the ID is one of the defined constants.
func (id ID) IsValid() bool {
	return slices.Contains(IDs(), id)
}

// IsAuthority reports whether id is System A.
func (id ID) IsAuthority() bool {
	return id == Authority
}

// ParseID parses a system id case-insensitively.
func ParseID(s string) (ID, error) {
	id := ID(strings.ToUpper(strings.TrimSpace(s)))
	if !id.IsValid() {
		return "", &errors.ValidationError{
			Field:   "system",
			Value:   s,
			Message: "must be one of A, B, C, D, E",
		}
	}
	return id, nil
}

// Stream yields the records of one system. A non-nil error marks a single
// corrupt row; iteration continues after it.
type Stream = iter.Seq2[Record, error]

// Source supplies the record stream of one system.
type Source interface {
	// ID returns the system this source extracts.
	ID() ID

	// Records opens the stream. An error means the system is unavailable,
	// which is different from a stream with no records.
	Records(ctx context.Context) (Stream, error)
}

// Sources is a thread-safe container for managing the configured systems.
type Sources struct {
	mu      sync.RWMutex
	sources map[ID]Source
}

// NewSources creates a container holding srcs. Later entries replace earlier
// ones with the same id.
func NewSources(srcs ...Source) *Sources {
	s := &Sources{sources: make(map[ID]Source, len(srcs))}
	for _, src := range srcs {
		s.sources[src.ID()] = src
	}
	return s
}

// Get returns a source by ID.
func (s *Sources) Get(id ID) (Source, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src, found := s.sources[id]
	return src, found
}

// Set sets a source by ID.
func (s *Sources) Set(src Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources[src.ID()] = src
}

// Len returns the number of sources.
func (s *Sources) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sources)
}

// IDs returns the configured system ids in canonical order.
func (s *Sources) IDs() []ID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]ID, 0, len(s.sources))
	for _, id := range IDs() {
		if _, ok := s.sources[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}
