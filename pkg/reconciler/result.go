package reconciler

import (
	"fmt"
	"strings"
	"time"

	"github.com/agentstation/keysync/pkg/audit"
	"github.com/agentstation/keysync/pkg/compare"
	"github.com/agentstation/keysync/pkg/provision"
	"github.com/agentstation/keysync/pkg/sources"
)

// Result represents the outcome of a reconciliation run.
type Result struct {
	RunID  string       `json:"run_id" yaml:"run_id"`
	Mode   audit.Mode   `json:"mode" yaml:"mode"`
	Status audit.Status `json:"status" yaml:"status"`

	// Core data
	Comparison *compare.Result     `json:"comparison,omitempty" yaml:"comparison,omitempty"`
	Outcomes   []provision.Outcome `json:"outcomes,omitempty" yaml:"outcomes,omitempty"`

	// Progress counts what was committed. For a resumed run it includes the
	// checkpoints committed before the interruption; for a dry run it is the
	// plan that would have been committed.
	Progress audit.Progress `json:"progress" yaml:"progress"`

	// Unavailable maps each unavailable system to the reason.
	Unavailable map[sources.ID]string `json:"unavailable,omitempty" yaml:"unavailable,omitempty"`
	SkippedRows int                   `json:"skipped_rows" yaml:"skipped_rows"`

	// Metadata
	Metadata ResultMetadata `json:"metadata" yaml:"metadata"`

	// Issues
	Errors   []error  `json:"-" yaml:"-"`
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// ResultMetadata contains metadata about the reconciliation process.
type ResultMetadata struct {
	StartTime time.Time     `json:"start_time" yaml:"start_time"`
	EndTime   time.Time     `json:"end_time" yaml:"end_time"`
	Duration  time.Duration `json:"duration" yaml:"duration"`

	// BaseRunID is the run an incremental comparison started from.
	BaseRunID string `json:"base_run_id,omitempty" yaml:"base_run_id,omitempty"`

	Strategy    provision.Strategy `json:"strategy" yaml:"strategy"`
	DryRun      bool               `json:"dry_run" yaml:"dry_run"`
	AutoApprove bool               `json:"auto_approve" yaml:"auto_approve"`
	Resumed     bool               `json:"resumed" yaml:"resumed"`

	// ResumedFrom is the offset a resumed run continued at.
	ResumedFrom int `json:"resumed_from,omitempty" yaml:"resumed_from,omitempty"`
}

// NewResult creates a new Result for runID.
func NewResult(runID string, mode audit.Mode) *Result {
	return &Result{
		RunID:       runID,
		Mode:        mode,
		Status:      audit.StatusRunning,
		Unavailable: make(map[sources.ID]string),
		Metadata: ResultMetadata{
			StartTime: time.Now(),
		},
	}
}

// IsSuccess returns true if the run completed, with or without warnings.
func (r *Result) IsSuccess() bool {
	return r.Status.IsSuccessful() && len(r.Errors) == 0
}

// IsInterrupted reports whether the run stopped early and can be resumed.
func (r *Result) IsInterrupted() bool {
	return r.Status == audit.StatusInterrupted
}

// HasWarnings reports whether systems were unavailable or rows skipped.
func (r *Result) HasWarnings() bool {
	return len(r.Unavailable) > 0 || r.SkippedRows > 0 || len(r.Warnings) > 0
}

// Stats returns the comparison statistics, or zero stats when the run did
// not get that far.
func (r *Result) Stats() compare.Stats {
	if r.Comparison == nil {
		return compare.Stats{}
	}
	return r.Comparison.Stats
}

// Summary returns a human-readable summary of the result.
func (r *Result) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s (%s", r.RunID, r.Mode)
	if r.Metadata.DryRun {
		b.WriteString(", dry run")
	}
	if r.Metadata.Resumed {
		fmt.Fprintf(&b, ", resumed at %d", r.Metadata.ResumedFrom)
	}
	fmt.Fprintf(&b, "): %s\n", r.Status)

	if r.Comparison != nil {
		fmt.Fprintf(&b, "  %s\n", r.Comparison.Stats)
		fmt.Fprintf(&b, "  new discrepancies: %d\n", len(r.Comparison.New))
	}
	fmt.Fprintf(&b, "  master keys: proposed=%d activated=%d reused=%d skipped=%d\n",
		r.Progress.Proposed, r.Progress.Activated, r.Progress.Reused, r.Progress.Skipped)
	if r.Progress.Checkpoints > 0 {
		fmt.Fprintf(&b, "  checkpoints: %d\n", r.Progress.Checkpoints)
	}
	for _, id := range sources.IDs() {
		if reason, ok := r.Unavailable[id]; ok {
			fmt.Fprintf(&b, "  warning: system %s unavailable: %s\n", id, reason)
		}
	}
	if r.SkippedRows > 0 {
		fmt.Fprintf(&b, "  warning: %d rows skipped\n", r.SkippedRows)
	}
	for _, err := range r.Errors {
		fmt.Fprintf(&b, "  error: %v\n", err)
	}
	if r.Metadata.Duration > 0 {
		fmt.Fprintf(&b, "  duration: %v\n", r.Metadata.Duration.Round(time.Millisecond))
	}
	return b.String()
}

// Finalize stamps the end time and duration.
func (r *Result) Finalize(end time.Time) {
	r.Metadata.EndTime = end
	r.Metadata.Duration = end.Sub(r.Metadata.StartTime)
}
