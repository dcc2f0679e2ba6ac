// Package provision proposes master keys for out-of-authority keys and
// manages their Proposed → Active → Deprecated lifecycle.
//
// A Provisioner plans the proposals of one run. It never writes: it reads the
// committed registry through the Registry interface and keeps entries planned
// in this run in memory until the caller commits them.
package provision

import (
	"context"
	"maps"
	"slices"
	"time"

	"github.com/agentstation/keysync/pkg/compare"
	"github.com/agentstation/keysync/pkg/errors"
)

// Registry is read access to committed master keys.
type Registry interface {
	MasterKey(ctx context.Context, masterKey string) (Entry, bool, error)
}

// Action is what a proposal did.
type Action string

// Proposal actions.
const (
	// ActionProposed created a new entry.
	ActionProposed Action = "proposed"
	// ActionReused found a proposed or active entry and refreshed it.
	ActionReused Action = "reused"
	// ActionSkipped found a deprecated entry and left it alone.
	ActionSkipped Action = "skipped"
)

// Outcome is the result of one proposal.
type Outcome struct {
	Discrepancy compare.Discrepancy `json:"discrepancy" yaml:"discrepancy"`
	Entry       Entry               `json:"entry" yaml:"entry"`
	Action      Action              `json:"action" yaml:"action"`
}

// Provisioner plans master keys for one run.
type Provisioner struct {
	gen      Generator
	registry Registry
	runID    string
	now      func() time.Time
	pending  map[string]Entry
}

// Option configures a Provisioner.
type Option func(*Provisioner)

// WithClock sets the time source for entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Provisioner) {
		if now != nil {
			p.now = now
		}
	}
}

// New creates a Provisioner for runID.
func New(gen Generator, registry Registry, runID string, opts ...Option) (*Provisioner, error) {
	if err := gen.Validate(); err != nil {
		return nil, err
	}
	if registry == nil {
		return nil, &errors.ValidationError{Field: "registry", Message: "cannot be nil"}
	}
	p := &Provisioner{
		gen:      gen,
		registry: registry,
		runID:    runID,
		now:      time.Now,
		pending:  make(map[string]Entry),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Generator returns the master key generator in use.
func (p *Provisioner) Generator() Generator {
	return p.gen
}

// Propose plans a master key for an out-of-authority discrepancy. Proposing
// the same key twice, in this run or across runs, yields one entry.
func (p *Provisioner) Propose(ctx context.Context, d compare.Discrepancy) (Outcome, error) {
	if d.Kind != compare.OutOfAuthority {
		return Outcome{}, &errors.ValidationError{
			Field:   "kind",
			Value:   d.Kind,
			Message: "master keys are proposed for out_of_authority discrepancies only",
		}
	}

	mk := p.gen.MasterKey(d.System, d.Key)
	existing, found, err := p.lookup(ctx, mk)
	if err != nil {
		return Outcome{}, err
	}

	now := p.now()
	if found {
		if !existing.IsLive() {
			return Outcome{Discrepancy: d, Entry: existing, Action: ActionSkipped}, nil
		}
		existing.UpdatedAt = now
		p.pending[mk] = existing
		return Outcome{Discrepancy: d, Entry: existing, Action: ActionReused}, nil
	}

	entry := Entry{
		MasterKey:    mk,
		SourceSystem: d.System,
		SourceKey:    d.Key,
		Status:       StatusProposed,
		Strategy:     p.gen.Strategy,
		RunID:        p.runID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	p.pending[mk] = entry
	return Outcome{Discrepancy: d, Entry: entry, Action: ActionProposed}, nil
}

// Activate activates a master key planned in this run.
func (p *Provisioner) Activate(masterKey string) (Entry, error) {
	entry, ok := p.pending[masterKey]
	if !ok {
		return Entry{}, errors.NewNotFoundError("pending master key", masterKey)
	}
	if err := entry.Activate(p.now()); err != nil {
		return Entry{}, err
	}
	p.pending[masterKey] = entry
	return entry, nil
}

// Pending returns the entries planned in this run, sorted by master key.
func (p *Provisioner) Pending() []Entry {
	out := make([]Entry, 0, len(p.pending))
	for _, k := range slices.Sorted(maps.Keys(p.pending)) {
		out = append(out, p.pending[k])
	}
	return out
}

func (p *Provisioner) lookup(ctx context.Context, mk string) (Entry, bool, error) {
	if e, ok := p.pending[mk]; ok {
		return e, true, nil
	}
	e, found, err := p.registry.MasterKey(ctx, mk)
	if err != nil {
		return Entry{}, false, errors.WrapResource("lookup", "master key", mk, err)
	}
	return e, found, nil
}
