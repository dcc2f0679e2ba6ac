package files_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/keysync/internal/sources/files"
	"github.com/agentstation/keysync/pkg/errors"
	"github.com/agentstation/keysync/pkg/sources"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// collect drains a stream into its records and row errors.
func collect(t *testing.T, src sources.Source) ([]sources.Record, []error) {
	t.Helper()
	stream, err := src.Records(context.Background())
	require.NoError(t, err)

	var (
		recs []sources.Record
		errs []error
	)
	for rec, err := range stream {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		recs = append(recs, rec)
	}
	return recs, errs
}

func rawKeys(recs []sources.Record) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.RawKey)
	}
	return out
}

func TestCSV(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "B.csv", `key,last_seen_at,entity_type,location_ref
ORD-1,2025-01-02T03:04:05Z,order,eu-west
ord 2,2025-01-02,order,
,,,
bad"key,2025-01-02,order,
K4,not-a-date,order,
K5
`)

	recs, errs := collect(t, files.New(sources.B, dir))

	assert.Equal(t, []string{"ORD-1", "ord 2", "", "K5"}, rawKeys(recs))
	assert.Equal(t, time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), recs[0].LastSeenAt)
	assert.Equal(t, "order", recs[0].EntityType)
	assert.Equal(t, "eu-west", recs[0].LocationRef)
	assert.Equal(t, sources.B, recs[0].System)
	assert.Equal(t, 2, recs[0].Line)
	assert.False(t, recs[2].Missing, "an empty cell is an empty key, not a missing one")

	require.Len(t, errs, 2)
	for _, err := range errs {
		assert.True(t, errors.IsRowCorrupted(err))
	}
	var rowErr *errors.RowCorruptionError
	require.ErrorAs(t, errs[1], &rowErr)
	assert.Equal(t, 6, rowErr.Line)
}

func TestCSVMissingKeyCell(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "C.csv", "entity_type,key\norder\norder,K1\n")

	recs, errs := collect(t, files.New(sources.C, dir))
	assert.Empty(t, errs)
	require.Len(t, recs, 2)
	assert.True(t, recs[0].Missing)
	assert.Equal(t, "K1", recs[1].RawKey)
}

func TestCSVWithoutKeyColumn(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "D.csv", "id,last_seen_at\n1,2025-01-01\n")

	_, err := files.New(sources.D, dir).Records(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsSystemUnavailable(err))
}

func TestEmptyFileIsEmptySystem(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "E.csv", "")
	writeFile(t, dir, "D.csv", "key,last_seen_at\n")

	for _, id := range []sources.ID{sources.D, sources.E} {
		recs, errs := collect(t, files.New(id, dir))
		assert.Empty(t, recs)
		assert.Empty(t, errs)
	}
}

func TestJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "C.json", `[
  {"key": "K1", "last_seen_at": "2025-03-01T00:00:00Z", "entity_type": "customer"},
  {"key": 123},
  {"last_seen_at": "2025-03-01"},
  {"key": ""},
  "not an object",
  {"key": "K5", "last_seen_at": "yesterday"},
  {"raw_key": "K6"}
]`)

	recs, errs := collect(t, files.New(sources.C, dir))

	assert.Equal(t, []string{"K1", "123", "", "", "K6"}, rawKeys(recs))
	assert.Equal(t, "customer", recs[0].EntityType)
	assert.True(t, recs[2].Missing)
	assert.False(t, recs[3].Missing)
	require.Len(t, errs, 2)
	assert.True(t, errors.IsRowCorrupted(errs[0]))
}

func TestJSONNotAnArray(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "B.json", `{"key": "K1"}`)

	_, err := files.New(sources.B, dir).Records(context.Background())
	assert.True(t, errors.IsSystemUnavailable(err))
}

func TestYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "D.yaml", `- key: K1
  last_seen_at: "2025-04-01T10:00:00Z"
  location_ref: rack-7
- key: "007"
- entity_type: order
- just a string
`)

	recs, errs := collect(t, files.New(sources.D, dir))

	assert.Equal(t, []string{"K1", "007", ""}, rawKeys(recs))
	assert.Equal(t, "rack-7", recs[0].LocationRef)
	assert.Equal(t, time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC), recs[0].LastSeenAt)
	assert.True(t, recs[2].Missing)
	require.Len(t, errs, 1)
	assert.True(t, errors.IsRowCorrupted(errs[0]))
}

func TestYAMLSyntaxErrorIsUnavailable(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "E.yml", "- key: [unclosed\n")

	_, err := files.New(sources.E, dir).Records(context.Background())
	assert.True(t, errors.IsSystemUnavailable(err))
}

func TestMissingFileIsUnavailable(t *testing.T) {
	src := files.New(sources.B, t.TempDir())
	assert.Empty(t, src.Path())

	_, err := src.Records(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsSystemUnavailable(err))
	assert.True(t, errors.IsNotFound(err))
}

func TestExtensionOrder(t *testing.T) {
	dir := t.TempDir()
	csvPath := writeFile(t, dir, "A.csv", "key\nK1\n")
	writeFile(t, dir, "A.json", `[{"key": "other"}]`)

	src := files.New(sources.A, dir)
	assert.Equal(t, csvPath, src.Path())

	recs, _ := collect(t, src)
	assert.Equal(t, []string{"K1"}, rawKeys(recs))
}

func TestWithPath(t *testing.T) {
	path := writeFile(t, t.TempDir(), "export.json", `[{"key": "K1"}]`)

	recs, _ := collect(t, files.New(sources.B, "ignored", files.WithPath(path)))
	assert.Equal(t, []string{"K1"}, rawKeys(recs))
}

func TestDiscover(t *testing.T) {
	srcs := files.Discover(t.TempDir())
	assert.Equal(t, sources.IDs(), srcs.IDs())

	src, ok := srcs.Get(sources.C)
	require.True(t, ok)
	assert.Equal(t, sources.C, src.ID())
}

func TestCanceledContext(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "A.csv", "key\nK1\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := files.New(sources.A, dir).Records(ctx)
	assert.True(t, errors.IsSystemUnavailable(err))
}
