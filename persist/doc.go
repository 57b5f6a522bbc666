// Package persist provides pluggable durability backends for the in-memory
// store and graph index.
//
// A Backend is a flat keyed blob store partitioned by record kind. The
// in-memory structures remain the source of truth at runtime; backends are
// written through on every successful mutation and read back once at startup
// to rebuild state. Two implementations are provided: RedisBackend for a
// shared cache-style deployment and EtcdBackend for a consistent clustered
// one.
package persist
