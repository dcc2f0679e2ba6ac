package provision

import (
	"time"

	"github.com/agentstation/keysync/pkg/errors"
	"github.com/agentstation/keysync/pkg/sources"
)

// Entry is a master key in the registry.
type Entry struct {
	MasterKey    string     `json:"master_key" yaml:"master_key"`
	SourceSystem sources.ID `json:"source_system" yaml:"source_system"`
	SourceKey    string     `json:"source_key" yaml:"source_key"`
	Status       Status     `json:"status" yaml:"status"`
	Strategy     Strategy   `json:"strategy" yaml:"strategy"`
	RunID        string     `json:"run_id" yaml:"run_id"`
	CreatedAt    time.Time  `json:"created_at" yaml:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" yaml:"updated_at"`
	ActivatedAt  *time.Time `json:"activated_at,omitempty" yaml:"activated_at,omitempty"`
	DeprecatedAt *time.Time `json:"deprecated_at,omitempty" yaml:"deprecated_at,omitempty"`
}

// Activate moves a proposed entry to active.
func (e *Entry) Activate(now time.Time) error {
	if err := e.transition(StatusActive); err != nil {
		return err
	}
	e.ActivatedAt = &now
	e.UpdatedAt = now
	return nil
}

// Deprecate moves an active entry to deprecated.
func (e *Entry) Deprecate(now time.Time) error {
	if err := e.transition(StatusDeprecated); err != nil {
		return err
	}
	e.DeprecatedAt = &now
	e.UpdatedAt = now
	return nil
}

func (e *Entry) transition(to Status) error {
	if !CanTransition(e.Status, to) {
		return &errors.InvalidStateTransitionError{
			MasterKey: e.MasterKey,
			From:      e.Status.String(),
			To:        to.String(),
		}
	}
	e.Status = to
	return nil
}

// IsLive reports whether the entry is proposed or active.
func (e Entry) IsLive() bool {
	return e.Status == StatusProposed || e.Status == StatusActive
}
