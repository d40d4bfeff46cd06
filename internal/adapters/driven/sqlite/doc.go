// Package sqlite provides the default SQLite-backed document and vector stores.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that
// requires no CGO. Both stores share one database file:
//
//   - DocumentStore: documents with JSON metadata
//   - VectorStore: chunk text with float32 embedding blobs
//
// # Schema
//
// The schema is managed through versioned migrations embedded from the
// migrations/ directory. Applied versions are recorded in schema_migrations.
//
// # Search
//
// Similarity search scans every (optionally category-filtered) embedding and
// ranks it in Go with cosine similarity. This is adequate for corpora of a
// few thousand chunks.
//
// # Thread Safety
//
// All operations are thread-safe. The database runs in WAL mode, so readers
// proceed while a single writer holds the lock.
package sqlite
