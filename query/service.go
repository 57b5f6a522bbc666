package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bcic-ai/knowledge-sdk/capsule"
	"github.com/bcic-ai/knowledge-sdk/coreerr"
	"github.com/bcic-ai/knowledge-sdk/graph"
	"github.com/bcic-ai/knowledge-sdk/store"
)

// fetchBatch is the page size used when an expression filter forces the
// service to walk the full candidate set.
const fetchBatch = 200

// GraphNeighbor is one node reached while expanding a result's graph
// context, with the relationship that led to it and its distance in edges
// from the mirror node.
type GraphNeighbor struct {
	Node         *graph.Node         `json:"node"`
	Relationship *graph.Relationship `json:"relationship"`
	Depth        int                 `json:"depth"`
}

// GraphContext is the graph neighborhood of one search result.
type GraphContext struct {
	// NodeID is the mirror node's identifier (equal to the capsule ID).
	NodeID string `json:"node_id"`

	// Neighbors holds the nodes within the expansion depth, in
	// breadth-first, relationship-insertion order.
	Neighbors []GraphNeighbor `json:"neighbors"`
}

// Result is one capsule plus its optional graph context. Graph is nil when
// the capsule has no mirror node.
type Result struct {
	Capsule *capsule.Capsule `json:"capsule"`
	Graph   *GraphContext    `json:"graph,omitempty"`
}

// Service composes the capsule store and the graph index.
type Service struct {
	store  store.Store
	graph  *graph.Index
	logger *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

// NewService creates a query service over the given store and graph.
func NewService(st store.Store, g *graph.Index, opts ...ServiceOption) *Service {
	s := &Service{
		store:  st,
		graph:  g,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search answers a filtered, ranked, paginated query. Filters without an
// expression delegate straight to the store; an expression filter walks
// the full ranked candidate set, applies the predicate, and re-paginates.
func (s *Service) Search(ctx context.Context, f Filter) (*store.Page, error) {
	const op = "query.Search"

	if f.Expression == "" {
		return s.store.Search(ctx, f.Filter)
	}

	env, err := newCelEnv()
	if err != nil {
		return nil, coreerr.NewValidationError(op, err)
	}
	prg, err := compileExpression(env, f.Expression)
	if err != nil {
		return nil, coreerr.NewValidationError(op, err)
	}

	limit := f.Limit
	if limit == 0 {
		limit = store.DefaultPageSize
	}

	// Walk every ranked candidate matching the structured conditions.
	base := f.Filter
	base.Limit = fetchBatch
	base.Offset = 0

	var matched []*capsule.Capsule
	for {
		page, err := s.store.Search(ctx, base)
		if err != nil {
			return nil, err
		}
		for _, c := range page.Items {
			out, _, err := prg.Eval(celActivation(c))
			if err != nil {
				return nil, coreerr.NewValidationError(op,
					fmt.Errorf("filter expression failed: %w", err))
			}
			keep, ok := out.Value().(bool)
			if !ok {
				return nil, coreerr.NewValidationError(op,
					fmt.Errorf("filter expression returned %T, want bool", out.Value()))
			}
			if keep {
				matched = append(matched, c)
			}
		}
		base.Offset += len(page.Items)
		if base.Offset >= page.Total || len(page.Items) == 0 {
			break
		}
	}

	total := len(matched)
	start := f.Offset
	if start < 0 {
		return nil, coreerr.NewValidationError(op, fmt.Errorf("offset must not be negative"))
	}
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	return &store.Page{
		Items:  matched[start:end],
		Total:  total,
		Limit:  limit,
		Offset: f.Offset,
	}, nil
}

// SearchWithGraphContext runs Search and augments each result that has a
// mirror node with its graph neighborhood up to expandDepth edges.
// Results without a mirror carry a nil Graph; expandDepth 0 attaches the
// context without neighbors.
func (s *Service) SearchWithGraphContext(ctx context.Context, f Filter, expandDepth int) ([]Result, error) {
	const op = "query.SearchWithGraphContext"

	if expandDepth < 0 {
		return nil, coreerr.NewValidationError(op,
			fmt.Errorf("expand depth must not be negative, got %d", expandDepth))
	}

	page, err := s.Search(ctx, f)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(page.Items))
	for _, c := range page.Items {
		result := Result{Capsule: c}

		gc, err := s.expand(ctx, c.ID, expandDepth)
		if err != nil {
			return nil, err
		}
		result.Graph = gc
		results = append(results, result)
	}
	return results, nil
}

// expand collects the breadth-first neighborhood of the mirror node, or
// returns nil if the capsule has no mirror.
func (s *Service) expand(ctx context.Context, capsuleID string, depth int) (*GraphContext, error) {
	if _, err := s.graph.GetNode(ctx, capsuleID); err != nil {
		if errors.Is(err, coreerr.ErrNodeNotFound) {
			return nil, nil
		}
		return nil, err
	}

	gc := &GraphContext{NodeID: capsuleID, Neighbors: []GraphNeighbor{}}
	visited := map[string]struct{}{capsuleID: {}}
	frontier := []string{capsuleID}

	for d := 1; d <= depth && len(frontier) > 0; d++ {
		var next []string
		for _, id := range frontier {
			neighbors, err := s.graph.Neighbors(ctx, id, "")
			if err != nil {
				if errors.Is(err, coreerr.ErrNodeNotFound) {
					continue
				}
				return nil, err
			}
			for _, nb := range neighbors {
				if _, seen := visited[nb.Node.ID]; seen {
					continue
				}
				visited[nb.Node.ID] = struct{}{}
				gc.Neighbors = append(gc.Neighbors, GraphNeighbor{
					Node:         nb.Node,
					Relationship: nb.Relationship,
					Depth:        d,
				})
				next = append(next, nb.Node.ID)
			}
		}
		frontier = next
	}
	return gc, nil
}

// Mirror creates the capsule's mirror node in the graph. The node adopts
// the capsule's identifier, so the mirror stays a weak reference that
// either side can resolve by id. Fails with a conflict error if the
// mirror already exists.
func (s *Service) Mirror(ctx context.Context, capsuleID string) (*graph.Node, error) {
	c, err := s.store.Get(ctx, capsuleID)
	if err != nil {
		return nil, err
	}

	node := graph.NewNode(graph.NodeCapsule, c.Title).
		WithID(c.ID).
		WithProperties(mirrorProps(c))
	return s.graph.AddNode(ctx, node)
}

// UpdateCapsule applies a patch through the store and, when the patch
// changed score or status, refreshes the mirror node's capsule properties
// in the same logical operation. A missing mirror is skipped silently;
// mirroring is optional.
func (s *Service) UpdateCapsule(ctx context.Context, id string, patch capsule.Patch) (*capsule.Capsule, error) {
	updated, err := s.store.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}

	if patch.TouchesScore() || patch.Status != nil {
		if err := s.syncMirror(ctx, updated); err != nil {
			return nil, err
		}
	}
	return updated, nil
}

// ArchiveCapsule soft-deletes the capsule and refreshes its mirror, if any.
func (s *Service) ArchiveCapsule(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	c, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	return s.syncMirror(ctx, c)
}

// syncMirror pushes the capsule's score snapshot and status onto its
// mirror node. A missing mirror is not an error.
func (s *Service) syncMirror(ctx context.Context, c *capsule.Capsule) error {
	_, err := s.graph.SetProperties(ctx, c.ID, mirrorProps(c))
	if err != nil {
		if errors.Is(err, coreerr.ErrNodeNotFound) {
			s.logger.Debug("no mirror node to sync", "id", c.ID)
			return nil
		}
		return err
	}
	return nil
}

// mirrorProps is the property snapshot a mirror node carries.
func mirrorProps(c *capsule.Capsule) map[string]any {
	return map[string]any{
		"capsule_type": c.Type.String(),
		"status":       c.Status.String(),
		"version":      c.Version,
		"truth":        c.Score.Truth,
		"goodness":     c.Score.Goodness,
		"beauty":       c.Score.Beauty,
		"intelligence": c.Score.Intelligence,
		"overall":      c.Score.Overall(),
	}
}
