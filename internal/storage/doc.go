// Package storage publishes pipeline artifacts to durable object storage and
// returns their public URLs.
//
// Publisher owns the naming and caching policy (overwrite by key, one-year
// public cache directive, deterministic URL). The bucket itself sits behind
// the ObjectWriter seam: GCSWriter talks to Google Cloud Storage, MemoryWriter
// keeps objects in-process for tests and dry runs.
package storage
