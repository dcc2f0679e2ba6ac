// Package audit defines the durable records of a reconciliation: runs,
// the append-only event log and the checkpoints that make a run resumable.
package audit

import (
	"encoding/json"
	"time"

	"github.com/agentstation/keysync/pkg/compare"
	"github.com/agentstation/keysync/pkg/provision"
	"github.com/agentstation/keysync/pkg/sources"
)

// Mode is how a run selects its input.
type Mode string

// Run modes.
const (
	ModeFull        Mode = "full"
	ModeIncremental Mode = "incremental"
)

// String returns the string representation of a mode.
func (m Mode) String() string {
	return string(m)
}

// Status is the state of a run record.
type Status string

// Run statuses. Running and interrupted runs may still change; the others
// are sealed.
const (
	StatusRunning               Status = "running"
	StatusInterrupted           Status = "interrupted"
	StatusCompleted             Status = "completed"
	StatusCompletedWithWarnings Status = "completed_with_warnings"
	StatusFailed                Status = "failed"
)

// String returns the string representation of a status.
func (s Status) String() string {
	return string(s)
}

// IsSealed reports whether a run with this status can no longer change.
func (s Status) IsSealed() bool {
	switch s {
	case StatusCompleted, StatusCompletedWithWarnings, StatusFailed:
		return true
	default:
		return false
	}
}

// IsSuccessful reports whether the run completed, with or without warnings.
func (s Status) IsSuccessful() bool {
	return s == StatusCompleted || s == StatusCompletedWithWarnings
}

// Run is the record of one execution.
type Run struct {
	ID               string        `json:"run_id" yaml:"run_id"`
	Mode             Mode          `json:"mode" yaml:"mode"`
	Strategy         string        `json:"strategy" yaml:"strategy"`
	AutoApprove      bool          `json:"auto_approve" yaml:"auto_approve"`
	Status           Status        `json:"status" yaml:"status"`
	BaseRunID        string        `json:"base_run_id,omitempty" yaml:"base_run_id,omitempty"`
	StartedAt        time.Time     `json:"started_at" yaml:"started_at"`
	FinishedAt       *time.Time    `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
	CheckpointOffset int           `json:"checkpoint_offset" yaml:"checkpoint_offset"`
	Fingerprint      string        `json:"fingerprint,omitempty" yaml:"fingerprint,omitempty"`
	Progress         Progress      `json:"progress" yaml:"progress"`
	Stats            compare.Stats `json:"stats" yaml:"stats"`
	ErrorSummary     string        `json:"error_summary,omitempty" yaml:"error_summary,omitempty"`
}

// Duration returns how long the run took, or zero while it is open.
func (r Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Progress counts what the committed checkpoints of a run have done.
type Progress struct {
	Discrepancies int `json:"discrepancies" yaml:"discrepancies"`
	Proposed      int `json:"proposed" yaml:"proposed"`
	Activated     int `json:"activated" yaml:"activated"`
	Reused        int `json:"reused" yaml:"reused"`
	Skipped       int `json:"skipped" yaml:"skipped"`
	Checkpoints   int `json:"checkpoints" yaml:"checkpoints"`
}

// Add returns the sum of p and o.
func (p Progress) Add(o Progress) Progress {
	return Progress{
		Discrepancies: p.Discrepancies + o.Discrepancies,
		Proposed:      p.Proposed + o.Proposed,
		Activated:     p.Activated + o.Activated,
		Reused:        p.Reused + o.Reused,
		Skipped:       p.Skipped + o.Skipped,
		Checkpoints:   p.Checkpoints + o.Checkpoints,
	}
}

// Checkpoint is one atomically committed batch of a run: registry upserts,
// audit events and the new resume offset.
type Checkpoint struct {
	RunID       string
	Offset      int
	Fingerprint string
	Progress    Progress
	Entries     []provision.Entry
	Events      []Event
}

// EventType names an audit event.
type EventType string

// Audit event types.
const (
	EventRunStarted          EventType = "run_started"
	EventRunResumed          EventType = "run_resumed"
	EventRunCompleted        EventType = "run_completed"
	EventRunFailed           EventType = "run_failed"
	EventRunInterrupted      EventType = "run_interrupted"
	EventSystemUnavailable   EventType = "system_unavailable"
	EventRowCorrupted        EventType = "row_corrupted"
	EventDiscrepancyDetected EventType = "discrepancy_detected"
	EventMasterKeyProposed   EventType = "master_key_proposed"
	EventMasterKeyReused     EventType = "master_key_reused"
	EventMasterKeySkipped    EventType = "master_key_skipped"
	EventMasterKeyActivated  EventType = "master_key_activated"
	EventMasterKeyDeprecated EventType = "master_key_deprecated"
	EventCheckpointCommitted EventType = "checkpoint_committed"
)

// String returns the string representation of an event type.
func (t EventType) String() string {
	return string(t)
}

// Event is an entry in the append-only audit log. ID is assigned by the
// store and orders events.
type Event struct {
	ID        int64           `json:"event_id" yaml:"event_id"`
	RunID     string          `json:"run_id" yaml:"run_id"`
	Type      EventType       `json:"event_type" yaml:"event_type"`
	System    sources.ID      `json:"system,omitempty" yaml:"system,omitempty"`
	Key       string          `json:"key,omitempty" yaml:"key,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty" yaml:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at" yaml:"created_at"`
}

// NewEvent builds an event whose payload is the JSON encoding of payload.
// A nil payload leaves the payload empty.
func NewEvent(runID string, typ EventType, system sources.ID, key string, payload any, at time.Time) Event {
	e := Event{RunID: runID, Type: typ, System: system, Key: key, CreatedAt: at}
	if payload != nil {
		if b, err := json.Marshal(payload); err == nil {
			e.Payload = b
		}
	}
	return e
}

// DiscrepancyEvent records a detected discrepancy.
func DiscrepancyEvent(runID string, d compare.Discrepancy, at time.Time) Event {
	return NewEvent(runID, EventDiscrepancyDetected, d.System, d.Key, map[string]any{
		"kind":        d.Kind,
		"observed_at": d.ObservedAt,
	}, at)
}

// EntryEvent records a master key change.
func EntryEvent(runID string, typ EventType, e provision.Entry, at time.Time) Event {
	return NewEvent(runID, typ, e.SourceSystem, e.SourceKey, map[string]any{
		"master_key": e.MasterKey,
		"status":     e.Status,
		"strategy":   e.Strategy,
	}, at)
}

// Filter selects audit events.
type Filter struct {
	RunID   string
	Type    EventType
	AfterID int64
	Limit   int
}
