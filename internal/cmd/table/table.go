// Package table converts reconciliation records into rows for table output.
package table

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/agentstation/keysync/pkg/audit"
	"github.com/agentstation/keysync/pkg/compare"
	"github.com/agentstation/keysync/pkg/constants"
	"github.com/agentstation/keysync/pkg/provision"
	"github.com/agentstation/keysync/pkg/reconciler"
)

// Align represents column alignment in tables.
type Align int

const (
	// AlignDefault uses the default alignment (skip).
	AlignDefault Align = iota
	// AlignLeft aligns content to the left.
	AlignLeft
	// AlignCenter centers content.
	AlignCenter
	// AlignRight aligns content to the right.
	AlignRight
)

// Data represents table formatting data to avoid import cycles.
type Data struct {
	Headers         []string
	Rows            [][]string
	ColumnAlignment []Align // Optional: column alignment
}

// EntriesToTableData converts registry entries to table format.
func EntriesToTableData(entries []provision.Entry, wide bool) Data {
	headers := []string{"Master Key", "System", "Source Key", "Status"}
	if wide {
		headers = append(headers, "Strategy", "Run", "Updated")
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		row := []string{e.MasterKey, e.SourceSystem.String(), e.SourceKey, string(e.Status)}
		if wide {
			row = append(row, string(e.Strategy), ShortID(e.RunID), FormatTime(e.UpdatedAt))
		}
		rows = append(rows, row)
	}
	return Data{Headers: headers, Rows: rows}
}

// RunsToTableData converts run records to table format, newest first as
// given.
func RunsToTableData(runs []audit.Run, wide bool) Data {
	headers := []string{"Run", "Mode", "Status", "Started", "Discrepancies", "Proposed"}
	align := []Align{AlignLeft, AlignLeft, AlignLeft, AlignLeft, AlignRight, AlignRight}
	if wide {
		headers = append(headers, "Strategy", "Base", "Offset", "Duration")
		align = append(align, AlignLeft, AlignLeft, AlignRight, AlignRight)
	}

	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		row := []string{
			r.ID,
			string(r.Mode),
			string(r.Status),
			FormatTime(r.StartedAt),
			strconv.Itoa(r.Progress.Discrepancies),
			strconv.Itoa(r.Progress.Proposed),
		}
		if wide {
			row = append(row,
				r.Strategy,
				orDash(ShortID(r.BaseRunID)),
				strconv.Itoa(r.CheckpointOffset),
				FormatDuration(r.Duration()),
			)
		}
		rows = append(rows, row)
	}
	return Data{Headers: headers, Rows: rows, ColumnAlignment: align}
}

// RunToTableData renders a single run as a property table.
func RunToTableData(r audit.Run) Data {
	finished := "-"
	if r.FinishedAt != nil {
		finished = FormatTime(*r.FinishedAt)
	}
	rows := [][]string{
		{"Run", r.ID},
		{"Mode", string(r.Mode)},
		{"Strategy", r.Strategy},
		{"Auto Approve", strconv.FormatBool(r.AutoApprove)},
		{"Status", string(r.Status)},
		{"Base Run", orDash(r.BaseRunID)},
		{"Started", FormatTime(r.StartedAt)},
		{"Finished", finished},
		{"Checkpoint Offset", strconv.Itoa(r.CheckpointOffset)},
		{"Checkpoints", strconv.Itoa(r.Progress.Checkpoints)},
	}
	rows = append(rows, statsRows(r.Stats)...)
	if r.ErrorSummary != "" {
		rows = append(rows, []string{"Error", r.ErrorSummary})
	}
	return Data{Headers: []string{"Property", "Value"}, Rows: rows}
}

// EventsToTableData converts audit events to table format.
func EventsToTableData(events []audit.Event, wide bool) Data {
	headers := []string{"ID", "Type", "System", "Key", "Created"}
	if wide {
		headers = append(headers, "Run", "Payload")
	}

	rows := make([][]string, 0, len(events))
	for _, e := range events {
		row := []string{
			strconv.FormatInt(e.ID, 10),
			string(e.Type),
			orDash(e.System.String()),
			orDash(e.Key),
			FormatTime(e.CreatedAt),
		}
		if wide {
			row = append(row, orDash(ShortID(e.RunID)), Truncate(string(e.Payload), 60))
		}
		rows = append(rows, row)
	}
	return Data{Headers: headers, Rows: rows}
}

// ResultToTableData lists the provisioning candidates of a result, or every
// discrepancy when all is set, together with what provisioning did.
func ResultToTableData(res *reconciler.Result, all, wide bool) Data {
	headers := []string{"Kind", "System", "Key", "Action", "Master Key"}
	if wide {
		headers = append(headers, "Observed")
	}

	actions := make(map[string]string, len(res.Outcomes))
	masters := make(map[string]string, len(res.Outcomes))
	for _, o := range res.Outcomes {
		id := o.Discrepancy.String()
		actions[id] = string(o.Action)
		masters[id] = o.Entry.MasterKey
	}

	var ds []compare.Discrepancy
	switch {
	case res.Comparison == nil:
	case all:
		ds = res.Comparison.All()
	default:
		ds = res.Comparison.Candidates()
	}
	rows := make([][]string, 0, len(ds))
	for _, d := range ds {
		id := d.String()
		row := []string{string(d.Kind), d.System.String(), d.Key, orDash(actions[id]), orDash(masters[id])}
		if wide {
			row = append(row, FormatTime(d.ObservedAt))
		}
		rows = append(rows, row)
	}
	return Data{Headers: headers, Rows: rows}
}

// StatsToTableData renders comparison stats as a property table.
func StatsToTableData(s compare.Stats) Data {
	return Data{Headers: []string{"Property", "Value"}, Rows: statsRows(s)}
}

func statsRows(s compare.Stats) [][]string {
	unavailable := make([]string, 0, len(s.Unavailable))
	for _, id := range s.Unavailable {
		unavailable = append(unavailable, id.String())
	}
	return [][]string{
		{"Keys In A", strconv.Itoa(s.KeysInA)},
		{"Keys Only In A", strconv.Itoa(s.KeysOnlyInA)},
		{"Total Unique Keys", strconv.Itoa(s.TotalUniqueKeys)},
		{"Keys In All Systems", strconv.Itoa(s.KeysInAllSystems)},
		{"Match", fmt.Sprintf("%.1f%%", s.MatchPercentage)},
		{"Out Of Authority", strconv.Itoa(s.OutOfAuthority)},
		{"Propagation Gaps", strconv.Itoa(s.PropagationGaps)},
		{"Duplicates", strconv.Itoa(s.Duplicates)},
		{"Skipped Rows", strconv.Itoa(s.SkippedRows)},
		{"Unavailable", orDash(strings.Join(unavailable, ", "))},
	}
}

// FormatTime formats a timestamp for humans; the zero time renders as "-".
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(constants.TimeFormatLog)
}

// FormatDuration rounds a duration for display.
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(100 * time.Millisecond).String()
}

// ShortID shortens a run id to its last 12 characters.
func ShortID(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[len(id)-12:]
}

// Truncate shortens s to at most n runes.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return orDash(s)
	}
	return string(r[:n-3]) + "..."
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
