// Package store implements the versioned capsule repository.
//
// The store exclusively owns the capsule lifecycle: creation, optimistic
// concurrency updates, soft deletion (archival), filtered ranked search,
// stats, and JSON export/import. The in-memory implementation is the
// source of truth at runtime; an optional persist.Backend is written
// through before each commit so a failing backend never leaves memory and
// durable state disagreeing.
//
// All read paths return deep copies, so callers can never mutate stored
// state through a returned capsule.
package store
