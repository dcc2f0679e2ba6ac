package files

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"

	"github.com/agentstation/keysync/pkg/errors"
	"github.com/agentstation/keysync/pkg/sources"
)

// parseJSON streams the elements of a top-level JSON array. An element that
// is not an object is a corrupt row; broken syntax ends the stream.
func parseJSON(system sources.ID, path string, data []byte) (sources.Stream, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return emptyStream, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, errors.WrapParse("json", path, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return nil, errors.NewParseError("json", path, "expected a top-level array of records", nil)
	}

	return func(yield func(sources.Record, error) bool) {
		for n := 1; dec.More(); n++ {
			var raw json.RawMessage
			if err := dec.Decode(&raw); err != nil {
				if !stderrors.Is(err, io.EOF) {
					yield(sources.Record{}, errors.NewRowCorruptionError(system.String(), n, err))
				}
				return
			}

			var m map[string]any
			rd := json.NewDecoder(bytes.NewReader(raw))
			rd.UseNumber()
			if err := rd.Decode(&m); err != nil || m == nil {
				if err == nil {
					err = fmt.Errorf("record is not an object")
				}
				if !yield(sources.Record{}, errors.NewRowCorruptionError(system.String(), n, err)) {
					return
				}
				continue
			}

			rec, err := recordFromMap(system, n, m)
			if err != nil {
				err = errors.NewRowCorruptionError(system.String(), n, err)
			}
			if !yield(rec, err) {
				return
			}
		}
	}, nil
}
