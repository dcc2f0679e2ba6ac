package files

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-yaml"

	"github.com/agentstation/keysync/pkg/errors"
	"github.com/agentstation/keysync/pkg/sources"
)

// parseYAML decodes a YAML sequence of records. The document is decoded as a
// whole, so a syntax error makes the system unavailable.
func parseYAML(system sources.ID, path string, data []byte) (sources.Stream, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return emptyStream, nil
	}

	var items []any
	if err := yaml.Unmarshal(data, &items); err != nil {
		return nil, errors.WrapParse("yaml", path, err)
	}

	return func(yield func(sources.Record, error) bool) {
		for i, item := range items {
			n := i + 1
			m, ok := item.(map[string]any)
			if !ok {
				err := errors.NewRowCorruptionError(system.String(), n, fmt.Errorf("record is not a mapping"))
				if !yield(sources.Record{}, err) {
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
