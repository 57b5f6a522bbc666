// Package graph implements the typed knowledge graph index: a registry of
// nodes and directed relationships with neighbor lookup and bounded-depth
// path search.
//
// The index exclusively owns node and relationship lifecycle. A capsule
// may be mirrored as a node of type capsule, but the mirror is a weak
// reference by identifier; the query package keeps the two in sync.
//
// Mutations are serialized per node rather than behind a single graph
// lock: the top-level map lock is held only long enough to resolve node
// entries, and each entry carries its own mutex. Traversals copy adjacency
// lists under short-lived entry locks so long path searches do not starve
// writers.
package graph
