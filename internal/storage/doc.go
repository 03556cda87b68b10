// Package storage persists the availability ledger.
//
// The data model is one keyed record set (title -> dates), read whole at
// load and rewritten whole on save. Two drivers exist:
//   - File: a single JSON document, compatible with historical state.json
//     files, rewritten via temp file + rename
//   - SQLite (modernc.org/sqlite, no cgo): one row per (title, date)
package storage
