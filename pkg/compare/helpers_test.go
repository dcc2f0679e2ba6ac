package compare_test

import (
	"time"

	"github.com/agentstation/keysync/pkg/compare"
	"github.com/agentstation/keysync/pkg/normalize"
	"github.com/agentstation/keysync/pkg/sources"
)

var seenAt = time.Date(2025, 1, 15, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time {
	return time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
}

func keys(system sources.ID, values ...string) []normalize.Key {
	out := make([]normalize.Key, 0, len(values))
	for _, v := range values {
		out = append(out, normalize.Key{Value: v, RawKey: v, System: system, SeenAt: seenAt})
	}
	return out
}

// triples renders discrepancies without timestamps.
func triples(ds []compare.Discrepancy) []string {
	out := make([]string, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.String())
	}
	return out
}
