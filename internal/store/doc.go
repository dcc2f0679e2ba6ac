// Package store provides SQLite-backed persistence for keysync.
//
// The store holds the master key registry, the run records, the append-only
// audit log and the comparison snapshot of every sealed run.
//
// Every checkpoint is one transaction: registry upserts, audit events and
// the run's new resume offset commit together or not at all. A crash between
// checkpoints leaves the registry at the last committed batch.
//
// Concurrent runs against one database are prevented with an advisory lock
// row keyed by the absolute database path. The connection pool is limited to
// a single connection because SQLite allows one writer at a time.
//
// Blobs (snapshots and checkpoint progress) are JSON, compressed with snappy
// and prefixed with a murmur3 checksum that is verified on every read.
package store
