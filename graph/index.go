package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/bcic-ai/knowledge-sdk/coreerr"
	"github.com/bcic-ai/knowledge-sdk/persist"
)

// nodeEntry is a node plus its adjacency, guarded by its own mutex so
// mutations touching different nodes do not contend.
type nodeEntry struct {
	mu       sync.Mutex
	node     *Node
	outgoing []*Relationship
	incoming []*Relationship
}

// Neighbor is one outgoing edge paired with its target node.
type Neighbor struct {
	Node         *Node         `json:"node"`
	Relationship *Relationship `json:"relationship"`
}

// Path is an alternating node/relationship sequence:
// Nodes[0] -Relationships[0]-> Nodes[1] -> ... -> Nodes[len-1].
type Path struct {
	Nodes         []*Node         `json:"nodes"`
	Relationships []*Relationship `json:"relationships"`
}

// Len returns the path length in edges.
func (p Path) Len() int { return len(p.Relationships) }

// Index is the in-memory knowledge graph.
//
// The top-level RWMutex guards map membership only; per-node entry locks
// serialize adjacency mutations. Structural removal takes the write lock,
// every other operation runs under the read lock, so two relationships
// touching different nodes can be added concurrently.
type Index struct {
	mu    sync.RWMutex
	nodes map[string]*nodeEntry
	seq   atomic.Int64

	backend persist.Backend
	logger  *slog.Logger
}

// IndexOption configures an Index.
type IndexOption func(*Index)

// WithBackend sets the write-through persistence backend.
func WithBackend(b persist.Backend) IndexOption {
	return func(i *Index) { i.backend = b }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) IndexOption {
	return func(i *Index) { i.logger = logger }
}

// NewIndex creates an empty graph index.
func NewIndex(opts ...IndexOption) *Index {
	i := &Index{
		nodes:  make(map[string]*nodeEntry),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// AddNode registers the node. Node identifiers are globally unique across
// types; adding an existing identifier fails with a conflict error.
func (i *Index) AddNode(ctx context.Context, n *Node) (*Node, error) {
	const op = "graph.AddNode"

	if n == nil {
		return nil, coreerr.NewValidationError(op, fmt.Errorf("node is nil"))
	}
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if err := n.Validate(); err != nil {
		return nil, coreerr.NewValidationError(op, err)
	}

	stored := n.Clone()

	i.mu.Lock()
	defer i.mu.Unlock()

	if _, exists := i.nodes[stored.ID]; exists {
		return nil, coreerr.NewConflictError(op,
			fmt.Errorf("node %s already exists", stored.ID))
	}
	if err := i.saveNode(ctx, op, stored); err != nil {
		return nil, err
	}
	i.nodes[stored.ID] = &nodeEntry{node: stored}

	i.logger.Debug("node added", "id", stored.ID, "type", stored.Type, "name", stored.Name)
	return stored.Clone(), nil
}

// GetNode returns a copy of the node with the given id.
func (i *Index) GetNode(ctx context.Context, id string) (*Node, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	entry, ok := i.nodes[id]
	if !ok {
		return nil, i.nodeNotFound("graph.GetNode", id)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.node.Clone(), nil
}

// SetProperties merges the given properties into the node. Existing keys
// are overwritten, others are kept.
func (i *Index) SetProperties(ctx context.Context, id string, props map[string]any) (*Node, error) {
	const op = "graph.SetProperties"

	i.mu.RLock()
	defer i.mu.RUnlock()

	entry, ok := i.nodes[id]
	if !ok {
		return nil, i.nodeNotFound(op, id)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	next := entry.node.Clone().WithProperties(props)
	if err := i.saveNode(ctx, op, next); err != nil {
		return nil, err
	}
	entry.node = next
	return next.Clone(), nil
}

// AddRelationship adds a directed edge from source to target. Re-adding a
// duplicate (source, target, type, identical properties) is an idempotent
// no-op returning the existing relationship.
func (i *Index) AddRelationship(ctx context.Context, sourceID, targetID, relType string, props map[string]any) (*Relationship, error) {
	const op = "graph.AddRelationship"

	rel := &Relationship{
		ID:       uuid.New().String(),
		SourceID: sourceID,
		TargetID: targetID,
		Type:     relType,
	}
	if len(props) > 0 {
		rel.Properties = make(map[string]any, len(props))
		for k, v := range props {
			rel.Properties[k] = v
		}
	}
	if err := rel.Validate(); err != nil {
		return nil, coreerr.NewValidationError(op, err)
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	src, ok := i.nodes[sourceID]
	if !ok {
		return nil, i.nodeNotFound(op, sourceID)
	}
	tgt, ok := i.nodes[targetID]
	if !ok {
		return nil, i.nodeNotFound(op, targetID)
	}

	unlock := lockPair(sourceID, src, targetID, tgt)
	defer unlock()

	for _, existing := range src.outgoing {
		if existing.sameEdge(sourceID, targetID, relType, props) {
			return existing.Clone(), nil
		}
	}

	rel.Seq = i.seq.Add(1)
	if err := i.saveRelationship(ctx, op, rel); err != nil {
		return nil, err
	}
	src.outgoing = append(src.outgoing, rel)
	tgt.incoming = append(tgt.incoming, rel)

	i.logger.Debug("relationship added",
		"source", sourceID, "target", targetID, "type", relType)
	return rel.Clone(), nil
}

// Neighbors returns the node's outgoing edges with their target nodes, in
// the order the relationships were added. relType filters by relationship
// type; the empty string matches all types.
func (i *Index) Neighbors(ctx context.Context, nodeID, relType string) ([]Neighbor, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	entry, ok := i.nodes[nodeID]
	if !ok {
		return nil, i.nodeNotFound("graph.Neighbors", nodeID)
	}

	rels := i.copyOutgoing(entry, relType)

	neighbors := make([]Neighbor, 0, len(rels))
	for _, rel := range rels {
		tgt, ok := i.nodes[rel.TargetID]
		if !ok {
			continue
		}
		tgt.mu.Lock()
		node := tgt.node.Clone()
		tgt.mu.Unlock()
		neighbors = append(neighbors, Neighbor{Node: node, Relationship: rel})
	}
	return neighbors, nil
}

// FindPath runs a breadth-first search from source to target bounded by
// maxDepth edges. It returns the shortest path by edge count; among
// equal-length paths the first found in deterministic traversal order
// (neighbors visited in relationship insertion order) wins, so at most one
// path is returned. The visited set guarantees termination on cyclic
// graphs. An empty slice means no path exists within the bound.
func (i *Index) FindPath(ctx context.Context, sourceID, targetID string, maxDepth int) ([]Path, error) {
	const op = "graph.FindPath"

	if maxDepth < 1 {
		return nil, coreerr.NewValidationError(op,
			fmt.Errorf("max depth must be >= 1, got %d", maxDepth))
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	if _, ok := i.nodes[sourceID]; !ok {
		return nil, i.nodeNotFound(op, sourceID)
	}
	if _, ok := i.nodes[targetID]; !ok {
		return nil, i.nodeNotFound(op, targetID)
	}

	if sourceID == targetID {
		return []Path{{Nodes: []*Node{i.cloneNode(sourceID)}}}, nil
	}

	type hop struct {
		nodeID string
		depth  int
	}

	// parent records the edge used to first reach a node; BFS guarantees
	// that edge lies on a shortest path.
	parent := make(map[string]*Relationship)
	visited := map[string]struct{}{sourceID: {}}
	queue := []hop{{nodeID: sourceID}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= maxDepth {
			continue
		}

		entry := i.nodes[cur.nodeID]
		for _, rel := range i.copyOutgoing(entry, "") {
			next := rel.TargetID
			if _, seen := visited[next]; seen {
				continue
			}
			visited[next] = struct{}{}
			parent[next] = rel

			if next == targetID {
				return []Path{i.buildPath(sourceID, targetID, parent)}, nil
			}
			queue = append(queue, hop{nodeID: next, depth: cur.depth + 1})
		}
	}

	return []Path{}, nil
}

// RemoveRelationship removes every relationship of the given type between
// the ordered pair. It fails with a not-found error if no such
// relationship exists.
func (i *Index) RemoveRelationship(ctx context.Context, sourceID, targetID, relType string) error {
	const op = "graph.RemoveRelationship"

	i.mu.RLock()
	defer i.mu.RUnlock()

	src, ok := i.nodes[sourceID]
	if !ok {
		return i.nodeNotFound(op, sourceID)
	}
	tgt, ok := i.nodes[targetID]
	if !ok {
		return i.nodeNotFound(op, targetID)
	}

	unlock := lockPair(sourceID, src, targetID, tgt)
	defer unlock()

	var removed []*Relationship
	kept := make([]*Relationship, 0, len(src.outgoing))
	for _, rel := range src.outgoing {
		if rel.TargetID == targetID && rel.Type == relType {
			removed = append(removed, rel)
			continue
		}
		kept = append(kept, rel)
	}
	if len(removed) == 0 {
		return coreerr.NewNotFoundError(op, coreerr.ErrRelationshipNotFound).
			WithContext(map[string]any{"source": sourceID, "target": targetID, "type": relType})
	}

	for _, rel := range removed {
		if err := i.deleteRelationship(ctx, op, rel.ID); err != nil {
			return err
		}
	}
	src.outgoing = kept
	tgt.incoming = dropRels(tgt.incoming, removed)

	i.logger.Debug("relationships removed",
		"source", sourceID, "target", targetID, "type", relType, "count", len(removed))
	return nil
}

// RemoveNode removes the node. If relationships still reference it the
// removal fails with a conflict error unless cascade is set, in which
// case the referencing relationships are removed first.
func (i *Index) RemoveNode(ctx context.Context, id string, cascade bool) error {
	const op = "graph.RemoveNode"

	i.mu.Lock()
	defer i.mu.Unlock()

	entry, ok := i.nodes[id]
	if !ok {
		return i.nodeNotFound(op, id)
	}

	refs := uniqueRels(entry.outgoing, entry.incoming)
	if len(refs) > 0 && !cascade {
		return coreerr.NewConflictError(op,
			fmt.Errorf("node %s is referenced by %d relationship(s)", id, len(refs))).
			WithContext(map[string]any{"id": id, "relationships": len(refs)})
	}

	for _, rel := range refs {
		if err := i.deleteRelationship(ctx, op, rel.ID); err != nil {
			return err
		}
	}
	if i.backend != nil {
		if err := i.backend.Delete(ctx, persist.KindNode, id); err != nil {
			return coreerr.NewStorageError(op, err)
		}
	}

	for _, rel := range refs {
		if other, ok := i.nodes[otherEnd(rel, id)]; ok && other != entry {
			other.outgoing = dropRels(other.outgoing, refs)
			other.incoming = dropRels(other.incoming, refs)
		}
	}
	delete(i.nodes, id)

	i.logger.Debug("node removed", "id", id, "cascaded", len(refs))
	return nil
}

// NodeCount returns the number of nodes in the index.
func (i *Index) NodeCount() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.nodes)
}

// RelationshipCount returns the number of relationships in the index.
func (i *Index) RelationshipCount() int {
	i.mu.RLock()
	defer i.mu.RUnlock()

	total := 0
	for _, entry := range i.nodes {
		entry.mu.Lock()
		total += len(entry.outgoing)
		entry.mu.Unlock()
	}
	return total
}

// Hydrate rebuilds the in-memory graph from the persistence backend.
// Relationships are re-attached in their original insertion order so
// traversal determinism survives a restart.
func (i *Index) Hydrate(ctx context.Context) error {
	const op = "graph.Hydrate"

	if i.backend == nil {
		return nil
	}

	nodeRecords, err := i.backend.List(ctx, persist.KindNode)
	if err != nil {
		return coreerr.NewStorageError(op, err)
	}
	relRecords, err := i.backend.List(ctx, persist.KindRelationship)
	if err != nil {
		return coreerr.NewStorageError(op, err)
	}

	nodes := make(map[string]*nodeEntry, len(nodeRecords))
	for id, data := range nodeRecords {
		var n Node
		if err := json.Unmarshal(data, &n); err != nil {
			return coreerr.NewStorageError(op,
				fmt.Errorf("failed to decode node %s: %w", id, err))
		}
		nodes[n.ID] = &nodeEntry{node: &n}
	}

	rels := make([]*Relationship, 0, len(relRecords))
	for id, data := range relRecords {
		var r Relationship
		if err := json.Unmarshal(data, &r); err != nil {
			return coreerr.NewStorageError(op,
				fmt.Errorf("failed to decode relationship %s: %w", id, err))
		}
		rels = append(rels, &r)
	}
	sort.Slice(rels, func(a, b int) bool { return rels[a].Seq < rels[b].Seq })

	var maxSeq int64
	for _, rel := range rels {
		src, okSrc := nodes[rel.SourceID]
		tgt, okTgt := nodes[rel.TargetID]
		if !okSrc || !okTgt {
			i.logger.Warn("skipping relationship with missing endpoint",
				"id", rel.ID, "source", rel.SourceID, "target", rel.TargetID)
			continue
		}
		src.outgoing = append(src.outgoing, rel)
		tgt.incoming = append(tgt.incoming, rel)
		if rel.Seq > maxSeq {
			maxSeq = rel.Seq
		}
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	i.nodes = nodes
	i.seq.Store(maxSeq)

	i.logger.Info("graph hydrated", "nodes", len(nodes), "relationships", len(rels))
	return nil
}

// copyOutgoing snapshots the entry's outgoing edges under its lock,
// optionally filtered by relationship type.
func (i *Index) copyOutgoing(entry *nodeEntry, relType string) []*Relationship {
	entry.mu.Lock()
	defer entry.mu.Unlock()

	out := make([]*Relationship, 0, len(entry.outgoing))
	for _, rel := range entry.outgoing {
		if relType != "" && rel.Type != relType {
			continue
		}
		out = append(out, rel.Clone())
	}
	return out
}

// buildPath walks the parent edges backwards from target to source and
// reverses the result. Called with the map read lock held.
func (i *Index) buildPath(sourceID, targetID string, parent map[string]*Relationship) Path {
	var nodes []*Node
	var rels []*Relationship

	cur := targetID
	for cur != sourceID {
		rel := parent[cur]
		nodes = append(nodes, i.cloneNode(cur))
		rels = append(rels, rel.Clone())
		cur = rel.SourceID
	}
	nodes = append(nodes, i.cloneNode(sourceID))

	for l, r := 0, len(nodes)-1; l < r; l, r = l+1, r-1 {
		nodes[l], nodes[r] = nodes[r], nodes[l]
	}
	for l, r := 0, len(rels)-1; l < r; l, r = l+1, r-1 {
		rels[l], rels[r] = rels[r], rels[l]
	}
	return Path{Nodes: nodes, Relationships: rels}
}

// cloneNode returns a copy of the node. Called with the map read lock held.
func (i *Index) cloneNode(id string) *Node {
	entry := i.nodes[id]
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.node.Clone()
}

func (i *Index) saveNode(ctx context.Context, op string, n *Node) error {
	if i.backend == nil {
		return nil
	}
	data, err := json.Marshal(n)
	if err != nil {
		return coreerr.NewStorageError(op, err)
	}
	if err := i.backend.Save(ctx, persist.KindNode, n.ID, data); err != nil {
		return coreerr.NewStorageError(op, err)
	}
	return nil
}

func (i *Index) saveRelationship(ctx context.Context, op string, r *Relationship) error {
	if i.backend == nil {
		return nil
	}
	data, err := json.Marshal(r)
	if err != nil {
		return coreerr.NewStorageError(op, err)
	}
	if err := i.backend.Save(ctx, persist.KindRelationship, r.ID, data); err != nil {
		return coreerr.NewStorageError(op, err)
	}
	return nil
}

func (i *Index) deleteRelationship(ctx context.Context, op, id string) error {
	if i.backend == nil {
		return nil
	}
	if err := i.backend.Delete(ctx, persist.KindRelationship, id); err != nil {
		return coreerr.NewStorageError(op, err)
	}
	return nil
}

func (i *Index) nodeNotFound(op, id string) error {
	return coreerr.NewNotFoundError(op, coreerr.ErrNodeNotFound).
		WithContext(map[string]any{"id": id})
}

// lockPair locks two node entries in identifier order so concurrent
// mutations touching the same pair cannot deadlock. Self-loops lock once.
func lockPair(aID string, a *nodeEntry, bID string, b *nodeEntry) func() {
	if a == b {
		a.mu.Lock()
		return a.mu.Unlock
	}
	if aID < bID {
		a.mu.Lock()
		b.mu.Lock()
	} else {
		b.mu.Lock()
		a.mu.Lock()
	}
	return func() {
		a.mu.Unlock()
		b.mu.Unlock()
	}
}

func otherEnd(r *Relationship, id string) string {
	if r.SourceID == id {
		return r.TargetID
	}
	return r.SourceID
}

func dropRels(rels []*Relationship, remove []*Relationship) []*Relationship {
	ids := make(map[string]struct{}, len(remove))
	for _, r := range remove {
		ids[r.ID] = struct{}{}
	}
	kept := rels[:0]
	for _, r := range rels {
		if _, drop := ids[r.ID]; !drop {
			kept = append(kept, r)
		}
	}
	return kept
}

func uniqueRels(lists ...[]*Relationship) []*Relationship {
	seen := make(map[string]struct{})
	var out []*Relationship
	for _, list := range lists {
		for _, r := range list {
			if _, ok := seen[r.ID]; ok {
				continue
			}
			seen[r.ID] = struct{}{}
			out = append(out, r)
		}
	}
	return out
}
