package files

import (
	"bytes"
	"encoding/csv"
	stderrors "errors"
	"io"
	"slices"
	"strings"

	"github.com/agentstation/keysync/pkg/errors"
	"github.com/agentstation/keysync/pkg/sources"
)

// parseCSV reads the header eagerly and streams the rows. Rows shorter than
// the key column have a missing key.
func parseCSV(system sources.ID, path string, data []byte) (sources.Stream, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if stderrors.Is(err, io.EOF) {
		return emptyStream, nil
	}
	if err != nil {
		return nil, errors.WrapParse("csv", path, err)
	}
	for i, h := range header {
		header[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	}

	keyCol := slices.Index(header, fieldKey)
	if keyCol < 0 {
		keyCol = slices.Index(header, fieldRawKey)
	}
	if keyCol < 0 {
		return nil, errors.NewParseError("csv", path, "header has no key column", nil)
	}
	col := func(name string) int { return slices.Index(header, name) }
	seenCol, typeCol, locCol := col(fieldLastSeenAt), col(fieldEntityType), col(fieldLocationRef)

	return func(yield func(sources.Record, error) bool) {
		for {
			row, err := r.Read()
			if stderrors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				line := 0
				var perr *csv.ParseError
				if stderrors.As(err, &perr) {
					line = perr.Line
				}
				if !yield(sources.Record{}, errors.NewRowCorruptionError(system.String(), line, err)) {
					return
				}
				continue
			}

			line, _ := r.FieldPos(0)
			rec := sources.Record{System: system, Line: line}
			if keyCol < len(row) {
				rec.RawKey = row[keyCol]
			} else {
				rec.Missing = true
			}
			rec.EntityType = cell(row, typeCol)
			rec.LocationRef = cell(row, locCol)

			seen, err := parseTime(cell(row, seenCol))
			if err != nil {
				if !yield(sources.Record{}, errors.NewRowCorruptionError(system.String(), line, err)) {
					return
				}
				continue
			}
			rec.LastSeenAt = seen

			if !yield(rec, nil) {
				return
			}
		}
	}, nil
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

func emptyStream(func(sources.Record, error) bool) {}
