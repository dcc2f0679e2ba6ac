package files

import (
	"fmt"
	"strings"
	"time"

	"github.com/agentstation/keysync/pkg/sources"
)

// Field names shared by all formats.
const (
	fieldKey         = "key"
	fieldRawKey      = "raw_key"
	fieldLastSeenAt  = "last_seen_at"
	fieldEntityType  = "entity_type"
	fieldLocationRef = "location_ref"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid %s %q", fieldLastSeenAt, s)
}

// recordFromMap builds a record from a decoded JSON or YAML object.
func recordFromMap(system sources.ID, line int, m map[string]any) (sources.Record, error) {
	rec := sources.Record{System: system, Line: line}

	raw, ok := m[fieldKey]
	if !ok {
		raw = m[fieldRawKey]
	}
	switch v := raw.(type) {
	case nil:
		rec.Missing = true
	case string:
		rec.RawKey = v
	case fmt.Stringer:
		rec.RawKey = v.String()
	case bool, map[string]any, []any:
		return rec, fmt.Errorf("%s must be a scalar, got %T", fieldKey, v)
	default:
		rec.RawKey = fmt.Sprint(v)
	}

	switch v := m[fieldLastSeenAt].(type) {
	case nil:
	case time.Time:
		rec.LastSeenAt = v.UTC()
	case string:
		t, err := parseTime(v)
		if err != nil {
			return rec, err
		}
		rec.LastSeenAt = t
	default:
		return rec, fmt.Errorf("invalid %s %v", fieldLastSeenAt, v)
	}

	rec.EntityType = stringField(m, fieldEntityType)
	rec.LocationRef = stringField(m, fieldLocationRef)
	return rec, nil
}

func stringField(m map[string]any, name string) string {
	v, ok := m[name]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
