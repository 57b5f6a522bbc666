// Package capsule defines the knowledge capsule entity: a versioned,
// scored unit of knowledge with a typed content payload.
//
// A capsule pairs an immutable identity with mutable content, a DATM
// quality score, descriptive metadata, and a forward-only lifecycle
// (draft, published, archived). Each capsule type has its own content
// variant behind the Content interface, carried on the wire as a tagged
// envelope so the variant survives a JSON round trip.
//
// Capsules are plain data. Storage, concurrency control, and search
// live in the store package.
package capsule
