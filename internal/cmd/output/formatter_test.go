package output_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/keysync/internal/cmd/output"
	"github.com/agentstation/keysync/internal/cmd/table"
	"github.com/agentstation/keysync/pkg/provision"
	"github.com/agentstation/keysync/pkg/sources"
)

func entries() []provision.Entry {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return []provision.Entry{
		{MasterKey: "K9", SourceSystem: sources.B, SourceKey: "K9", Status: provision.StatusProposed, Strategy: provision.StrategyMirror, RunID: "run-1", CreatedAt: at, UpdatedAt: at},
		{MasterKey: "X1", SourceSystem: sources.C, SourceKey: "x_1", Status: provision.StatusActive, Strategy: provision.StrategyMirror, RunID: "run-1", CreatedAt: at, UpdatedAt: at},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    output.Format
		wantErr bool
	}{
		{"table", output.FormatTable, false},
		{"JSON", output.FormatJSON, false},
		{"yaml", output.FormatYAML, false},
		{"wide", output.FormatWide, false},
		{"", "", false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := output.ParseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectFormatExplicit(t *testing.T) {
	assert.Equal(t, output.FormatYAML, output.DetectFormat("YAML"))
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	err := output.Print(&buf, output.FormatJSON, entries(), func(bool) table.Data {
		t.Fatal("json output must not build a table")
		return table.Data{}
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"master_key": "K9"`)
	assert.Contains(t, buf.String(), `"source_system": "C"`)
}

func TestPrintYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, output.Print(&buf, output.FormatYAML, entries(), nil))
	assert.Contains(t, buf.String(), "master_key: K9")
	assert.Contains(t, buf.String(), "status: active")
}

func TestPrintTable(t *testing.T) {
	for _, format := range []output.Format{output.FormatTable, output.FormatWide} {
		var buf bytes.Buffer
		require.NoError(t, output.Print(&buf, format, entries(), func(wide bool) table.Data {
			return table.EntriesToTableData(entries(), wide)
		}))
		out := buf.String()
		assert.Contains(t, out, "x_1")
		assert.Contains(t, out, "proposed")
		assert.Equal(t, format == output.FormatWide, strings.Contains(out, "mirror"), string(format))
	}
}

func TestTableFallsBackToReflection(t *testing.T) {
	type row struct {
		MasterKey string `json:"master_key"`
		Hidden    string `json:"-"`
		Count     int
	}
	var buf bytes.Buffer
	require.NoError(t, output.NewFormatter(output.FormatTable).Format(&buf, []row{{"K1", "x", 2}}))
	out := buf.String()
	assert.Contains(t, strings.ToUpper(out), "MASTER KEY")
	assert.Contains(t, out, "K1")
	assert.NotContains(t, out, "Hidden")
}
