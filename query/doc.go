// Package query composes the capsule store and the graph index into a
// single search service.
//
// The service answers filtered, ranked, paginated queries, optionally
// augmented with graph context around each result's mirror node, and
// keeps mirror nodes synchronized when a capsule's score or status
// changes. Filters may carry a CEL expression evaluated against capsule
// attributes for predicates the structured filter cannot express.
package query
