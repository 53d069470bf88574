// Package store is the local, offline-first persistence layer.
//
// # Overview
//
// Every farm entity lives in its own SQLite table (modernc.org/sqlite, no
// cgo). Rows carry the record envelope (id, tombstone flag, audit timestamps,
// _last_modified and _synced) and a JSON document with the domain fields.
// Frequently filtered domain fields have expression indexes.
//
// Reads go straight to the connection pool. Writes go through
// RunInTransaction, which serializes writers and commits or rolls back as a
// unit. After a commit, subscribers of the touched tables are notified; that
// is what LiveQuery builds on.
//
// The schema is created and versioned by goose migrations embedded in
// internal/client/migrations.
package store
