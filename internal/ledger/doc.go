// Package ledger persists the history of pipeline runs in SQLite.
//
// Each run (token resolution through publication) is one record whose
// status walks resolving -> fetching -> converting -> completed | failed. The
// store applies WAL pragmas, retries SQLITE_BUSY with backoff, and refuses to
// open databases written by a different schema version.
package ledger
