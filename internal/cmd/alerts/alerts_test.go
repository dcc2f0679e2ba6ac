package alerts_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/keysync/internal/cmd/alerts"
	"github.com/agentstation/keysync/internal/cmd/output"
	"github.com/agentstation/keysync/pkg/audit"
	"github.com/agentstation/keysync/pkg/reconciler"
	"github.com/agentstation/keysync/pkg/sources"
)

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	w := alerts.NewFormatWriter(&buf, output.FormatTable)

	a := alerts.NewWarning("system C unavailable").
		WithError(errors.New("no extract")).
		WithDetails("left out")
	require.NoError(t, w.WriteAlert(a))

	assert.Equal(t, "! system C unavailable: no extract\n   left out\n", buf.String(), "no color off a terminal")
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	w := alerts.NewFormatWriter(&buf, output.FormatJSON)
	require.NoError(t, w.WriteAlert(alerts.NewInfo("dry run")))
	assert.JSONEq(t, `{"level":"info","message":"dry run"}`, buf.String())
}

func TestForResult(t *testing.T) {
	res := reconciler.NewResult("run-1", audit.ModeFull)
	res.Unavailable[sources.D] = "timed out"
	res.SkippedRows = 2
	res.Progress.Proposed = 3

	got := alerts.ForResult(res)
	require.Len(t, got, 3)
	assert.Equal(t, alerts.LevelWarning, got[0].Level)
	assert.Contains(t, got[0].Message, "system D")
	assert.Contains(t, got[1].Message, "2 rows skipped")
	assert.Equal(t, alerts.LevelInfo, got[2].Level)
	assert.Contains(t, got[2].Message, "3 master keys await approval")

	res.Status = audit.StatusInterrupted
	got = alerts.ForResult(res)
	assert.Equal(t, []string{"keysync resume run-1"}, got[len(got)-1].Details)

	clean := reconciler.NewResult("run-2", audit.ModeFull)
	clean.Metadata.AutoApprove = true
	clean.Progress.Proposed = 1
	assert.Empty(t, alerts.ForResult(clean))
}
