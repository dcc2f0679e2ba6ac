// Package constants provides shared constants used throughout the keysync codebase.
// This includes timeouts, limits, file permissions, and the defaults a
// reconciliation run starts from when nothing else is configured.
package constants

import "time"

// Timeout constants define various timeout durations used in the application
const (
	// ExtractTimeout bounds the extraction of a single source system
	ExtractTimeout = 2 * time.Minute

	// ShutdownTimeout is how long the CLI waits for cleanup after an error
	ShutdownTimeout = 5 * time.Second

	// BusyTimeout is the SQLite busy timeout for lock contention
	BusyTimeout = 5 * time.Second
)

// File permission constants define standard Unix file permissions
const (
	// DirPermissions is the default permission for created directories (rwxr-xr-x)
	DirPermissions = 0755

	// FilePermissions is the default permission for created files (rw-r--r--)
	FilePermissions = 0644
)

// Limit constants define various limits and capacities
const (
	// CheckpointInterval is the default number of work items per committed checkpoint
	CheckpointInterval = 5000

	// MaxConcurrentSystems is the default size of the peer comparison pool
	MaxConcurrentSystems = 5

	// PadLength is the width standalone numbers are zero-padded to
	PadLength = 6

	// DefaultListLimit is the default number of rows returned by list commands
	DefaultListLimit = 100
)

// Default values
const (
	// CollapseDelimiter replaces runs of whitespace, underscores and dashes
	CollapseDelimiter = "-"

	// NamespaceSeparator joins system and key in the namespaced strategy
	NamespaceSeparator = "-"

	// DatabasePath is the default location of the reconciliation store
	DatabasePath = "./data/keysync.db"

	// InputDir is the default directory holding per-system extracts
	InputDir = "./input"
)

// Format constants
const (
	// TimeFormatHuman is a human-readable time format
	TimeFormatHuman = "Jan 2, 2006 at 3:04pm MST"

	// TimeFormatLog is the format used in log files
	TimeFormatLog = "2006-01-02 15:04:05.000"
)
