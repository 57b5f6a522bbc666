package persist

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Load when no record exists for the key.
var ErrNotFound = errors.New("persist: record not found")

// Record kinds partition the backend keyspace. Each in-memory structure
// writes its own kind so a shared backend can serve the store and the
// graph index at once.
const (
	// KindCapsule holds serialized capsules keyed by capsule ID.
	KindCapsule = "capsule"

	// KindNode holds serialized graph nodes keyed by node ID.
	KindNode = "node"

	// KindRelationship holds serialized graph relationships keyed by
	// relationship ID.
	KindRelationship = "rel"
)

// Backend is a flat keyed blob store used for write-through persistence.
//
// Implementations must be safe for concurrent use. Save is called before
// the in-memory commit, so a failing Save must leave the backend without
// the record; callers treat any Backend error as a storage error and do
// not mutate in-memory state.
type Backend interface {
	// Save writes the record for (kind, id), overwriting any previous value.
	Save(ctx context.Context, kind, id string, data []byte) error

	// Load reads the record for (kind, id). It returns ErrNotFound if the
	// record does not exist.
	Load(ctx context.Context, kind, id string) ([]byte, error)

	// Delete removes the record for (kind, id). Deleting a missing record
	// is not an error.
	Delete(ctx context.Context, kind, id string) error

	// List returns all records of the given kind, keyed by ID.
	List(ctx context.Context, kind string) (map[string][]byte, error)

	// Close releases the backend's resources.
	Close() error
}
