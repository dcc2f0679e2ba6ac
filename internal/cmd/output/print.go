package output

import (
	"io"

	"github.com/agentstation/keysync/internal/cmd/table"
)

// Print writes data in the given format. Table formats render the result
// of toTable instead of data; a nil toTable falls back to reflection.
func Print(w io.Writer, format Format, data any, toTable func(wide bool) table.Data) error {
	if format.IsTable() && toTable != nil {
		return NewFormatter(format).Format(w, toTable(format == FormatWide))
	}
	return NewFormatter(format).Format(w, data)
}
