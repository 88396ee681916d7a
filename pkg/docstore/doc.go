// Package docstore provides a generic persistent document store abstraction.
//
// All higher layers (decision log, entity graph, semantic engine) express
// persistence against the Store interface so the concrete backend is
// swappable without touching business logic. Two backends ship with the
// module:
//   - MemoryStore: in-process map-backed store for tests and local use
//   - SQLiteStore: embedded SQLite database (modernc.org/sqlite)
//
// Records are flat JSON-compatible maps. The store supports equality and
// inclusive range filters on top-level fields, single-field ordering, a
// result limit, and best-effort batch deletes. Compound or pattern queries
// are deliberately out of scope; callers maintain normalized "shadow"
// fields (lowercased names, flattened foreign keys, fixed-width
// timestamps) to make their access paths filterable.
package docstore
