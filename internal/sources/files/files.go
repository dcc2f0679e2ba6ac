// Package files extracts system records from files in an input directory.
//
// Each system reads <dir>/<ID>.<ext> where ext is csv, json, yaml or yml,
// checked in that order. A missing file makes the system unavailable; a file
// with no rows is an empty system.
//
// All formats carry the same fields: key (or raw_key), last_seen_at,
// entity_type and location_ref. Only key is required. A row whose key field
// is absent is reported as missing, which is different from an empty key.
package files

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/agentstation/keysync/pkg/errors"
	"github.com/agentstation/keysync/pkg/sources"
)

// Extensions lists the supported file extensions in lookup order.
var Extensions = []string{".csv", ".json", ".yaml", ".yml"}

// Source extracts one system from a file.
type Source struct {
	id   sources.ID
	dir  string
	path string
}

// Option configures a file source.
type Option func(*Source)

// WithPath reads from an explicit file instead of looking one up in the
// input directory. The format follows the extension.
func WithPath(path string) Option {
	return func(s *Source) {
		s.path = path
	}
}

// New creates a file source for system id reading from dir.
func New(id sources.ID, dir string, opts ...Option) *Source {
	s := &Source{id: id, dir: dir}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Discover returns a file source for every known system. Systems without a
// file are still included and report themselves unavailable when read.
func Discover(dir string) *sources.Sources {
	srcs := make([]sources.Source, 0, len(sources.IDs()))
	for _, id := range sources.IDs() {
		srcs = append(srcs, New(id, dir))
	}
	return sources.NewSources(srcs...)
}

// ID returns the system this source extracts.
func (s *Source) ID() sources.ID {
	return s.id
}

// Path returns the file the source reads, or "" if none exists.
func (s *Source) Path() string {
	if s.path != "" {
		return s.path
	}
	for _, ext := range Extensions {
		p := filepath.Join(s.dir, s.id.String()+ext)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Records reads the file and returns its rows. The file is read eagerly so
// that an unreadable file is reported here, as an unavailable system.
func (s *Source) Records(ctx context.Context) (sources.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewSystemUnavailableError(s.id.String(), err)
	}

	path := s.Path()
	if path == "" {
		return nil, &errors.SystemUnavailableError{
			System: s.id.String(),
			Reason: "no input file in " + s.dir,
			Err:    errors.NewNotFoundError("input file", filepath.Join(s.dir, s.id.String()+".*")),
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewSystemUnavailableError(s.id.String(), errors.WrapIO("read", path, err))
	}

	var stream sources.Stream
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		stream, err = parseCSV(s.id, path, data)
	case ".json":
		stream, err = parseJSON(s.id, path, data)
	case ".yaml", ".yml":
		stream, err = parseYAML(s.id, path, data)
	default:
		err = errors.NewParseError("file", path, "unsupported extension", nil)
	}
	if err != nil {
		return nil, errors.NewSystemUnavailableError(s.id.String(), err)
	}
	return stream, nil
}
