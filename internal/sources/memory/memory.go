// Package memory provides in-memory sources, used by tests and by callers
// that already hold their extracts.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/agentstation/keysync/pkg/errors"
	"github.com/agentstation/keysync/pkg/sources"
)

// item is a record or a row error.
type item struct {
	rec sources.Record
	err error
}

// Source serves records held in memory. It is safe for concurrent use; each
// call to Records sees the items present at that moment.
type Source struct {
	id sources.ID

	mu    sync.RWMutex
	items []item
	fail  error
	delay time.Duration
}

// New creates a source for system id holding recs.
func New(id sources.ID, recs ...sources.Record) *Source {
	s := &Source{id: id}
	s.Append(recs...)
	return s
}

// FromKeys creates a source whose records carry the given raw keys.
func FromKeys(id sources.ID, keys ...string) *Source {
	recs := make([]sources.Record, 0, len(keys))
	for _, k := range keys {
		recs = append(recs, sources.Record{RawKey: k})
	}
	return New(id, recs...)
}

// Unavailable creates a source whose extraction fails with err.
func Unavailable(id sources.ID, err error) *Source {
	return &Source{id: id, fail: err}
}

// ID returns the system this source serves.
func (s *Source) ID() sources.ID {
	return s.id
}

// Append adds records. System and Line are filled in when unset.
func (s *Source) Append(recs ...sources.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range recs {
		if r.System == "" {
			r.System = s.id
		}
		if r.Line == 0 {
			r.Line = len(s.items) + 1
		}
		s.items = append(s.items, item{rec: r})
	}
}

// AppendKeys adds records carrying the given raw keys.
func (s *Source) AppendKeys(keys ...string) {
	recs := make([]sources.Record, 0, len(keys))
	for _, k := range keys {
		recs = append(recs, sources.Record{RawKey: k})
	}
	s.Append(recs...)
}

// AppendRowError adds a corrupt row.
func (s *Source) AppendRowError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	line := len(s.items) + 1
	s.items = append(s.items, item{err: errors.NewRowCorruptionError(s.id.String(), line, errors.New(msg))})
}

// Reset drops all records, leaving the source available and empty.
func (s *Source) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	s.fail = nil
}

// SetDelay makes Records wait d before returning, or until the context ends.
func (s *Source) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// Records returns the stream of items.
func (s *Source) Records(ctx context.Context) (sources.Stream, error) {
	s.mu.RLock()
	items := append([]item(nil), s.items...)
	fail, delay := s.fail, s.delay
	s.mu.RUnlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, errors.NewSystemUnavailableError(s.id.String(), ctx.Err())
		case <-timer.C:
		}
	}
	if fail != nil {
		return nil, errors.NewSystemUnavailableError(s.id.String(), fail)
	}

	return func(yield func(sources.Record, error) bool) {
		for _, it := range items {
			if !yield(it.rec, it.err) {
				return
			}
		}
	}, nil
}
