package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/bcic-ai/knowledge-sdk/capsule"
	"github.com/bcic-ai/knowledge-sdk/coreerr"
	"github.com/bcic-ai/knowledge-sdk/persist"
	"github.com/bcic-ai/knowledge-sdk/score"
)

// DefaultPageSize is used by Search when the filter does not set a limit.
const DefaultPageSize = 20

// TransformFunc mutates a capsule before it is committed. The store runs
// it on create and update so a plugin pipeline can enrich capsules without
// the store knowing about plugins.
type TransformFunc func(ctx context.Context, c *capsule.Capsule) (*capsule.Capsule, error)

// MemoryStore is the in-memory Store implementation.
//
// A single RWMutex guards the capsule map. Writes hold the lock across the
// backend save so durable and in-memory state cannot diverge; reads clone
// under the read lock and never block each other.
type MemoryStore struct {
	mu       sync.RWMutex
	capsules map[string]*capsule.Capsule
	order    []string
	keywords *keywordIndex

	backend     persist.Backend
	logger      *slog.Logger
	maxCapsules int
	pageSize    int
	transform   TransformFunc
}

var _ Store = (*MemoryStore)(nil)

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithBackend sets the write-through persistence backend.
func WithBackend(b persist.Backend) MemoryOption {
	return func(s *MemoryStore) { s.backend = b }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) MemoryOption {
	return func(s *MemoryStore) { s.logger = logger }
}

// WithMaxCapsules bounds the store size. Zero means unbounded.
func WithMaxCapsules(n int) MemoryOption {
	return func(s *MemoryStore) { s.maxCapsules = n }
}

// WithPageSize sets the default Search page size.
func WithPageSize(n int) MemoryOption {
	return func(s *MemoryStore) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithTransform sets the pre-commit transform hook.
func WithTransform(fn TransformFunc) MemoryOption {
	return func(s *MemoryStore) { s.transform = fn }
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		capsules: make(map[string]*capsule.Capsule),
		keywords: newKeywordIndex(),
		logger:   slog.Default(),
		pageSize: DefaultPageSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hydrate rebuilds the in-memory state from the persistence backend.
// Call it once at startup, before serving requests. Capsules are loaded
// in creation order so ranking tie-breaks survive a restart.
func (s *MemoryStore) Hydrate(ctx context.Context) error {
	if s.backend == nil {
		return nil
	}

	records, err := s.backend.List(ctx, persist.KindCapsule)
	if err != nil {
		return coreerr.NewStorageError("store.Hydrate", err)
	}

	loaded := make([]*capsule.Capsule, 0, len(records))
	for id, data := range records {
		var c capsule.Capsule
		if err := json.Unmarshal(data, &c); err != nil {
			return coreerr.NewStorageError("store.Hydrate",
				fmt.Errorf("failed to decode capsule %s: %w", id, err))
		}
		loaded = append(loaded, &c)
	}

	sort.Slice(loaded, func(i, j int) bool {
		if !loaded[i].CreatedAt.Equal(loaded[j].CreatedAt) {
			return loaded[i].CreatedAt.Before(loaded[j].CreatedAt)
		}
		return loaded[i].ID < loaded[j].ID
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	s.capsules = make(map[string]*capsule.Capsule, len(loaded))
	s.order = s.order[:0]
	s.keywords = newKeywordIndex()
	for _, c := range loaded {
		s.commitLocked(c)
	}

	s.logger.Info("store hydrated", "capsules", len(loaded))
	return nil
}

// Create validates the request and stores a new capsule.
func (s *MemoryStore) Create(ctx context.Context, req CreateRequest) (*capsule.Capsule, error) {
	const op = "store.Create"

	sc, err := req.Score.Compute()
	if err != nil {
		return nil, err
	}

	c := capsule.New(req.Type, req.Title, req.Content, sc, req.Metadata, req.CreatedBy)
	if req.Publish {
		c.Status = capsule.StatusPublished
	}
	if err := c.Validate(); err != nil {
		return nil, coreerr.NewValidationError(op, err)
	}

	if c, err = s.applyTransform(ctx, op, c); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.maxCapsules > 0 && len(s.capsules) >= s.maxCapsules {
		return nil, coreerr.NewValidationError(op,
			fmt.Errorf("capsule limit of %d reached", s.maxCapsules)).
			WithContext(map[string]any{"max_capsules": s.maxCapsules})
	}
	if _, exists := s.capsules[c.ID]; exists {
		return nil, coreerr.NewConflictError(op,
			fmt.Errorf("capsule %s already exists", c.ID))
	}

	if err := s.saveLocked(ctx, op, c); err != nil {
		return nil, err
	}
	s.commitLocked(c)

	s.logger.Debug("capsule created",
		"id", c.ID, "type", c.Type, "status", c.Status)
	return c.Clone(), nil
}

// Get returns a copy of the capsule with the given id.
func (s *MemoryStore) Get(ctx context.Context, id string) (*capsule.Capsule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.capsules[id]
	if !ok {
		return nil, s.notFound("store.Get", id)
	}
	return c.Clone(), nil
}

// Update applies a partial patch under optimistic concurrency.
func (s *MemoryStore) Update(ctx context.Context, id string, patch capsule.Patch) (*capsule.Capsule, error) {
	const op = "store.Update"

	if patch.IsZero() {
		return nil, coreerr.NewValidationError(op, fmt.Errorf("empty patch"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.capsules[id]
	if !ok {
		return nil, s.notFound(op, id)
	}

	if patch.ExpectedVersion != cur.Version {
		return nil, coreerr.NewConflictError(op, coreerr.ErrVersionMismatch).
			WithContext(map[string]any{
				"id":       id,
				"expected": patch.ExpectedVersion,
				"current":  cur.Version,
			})
	}

	if cur.Status == capsule.StatusArchived && (patch.TouchesContent() || patch.TouchesScore()) {
		return nil, coreerr.NewInvalidStateError(op, coreerr.ErrCapsuleArchived).
			WithContext(map[string]any{"id": id})
	}

	next := cur.Clone()
	if patch.Title != nil {
		next.Title = *patch.Title
	}
	if patch.Content != nil {
		next.Content = patch.Content
	}
	if patch.Score != nil {
		sc, err := patch.Score.Compute()
		if err != nil {
			return nil, err
		}
		// Replacing the sub-scores invalidates any previous breakdown.
		next.Score = sc
	}
	if patch.Metadata != nil {
		meta := patch.Metadata.Clone()
		meta.Normalize()
		next.Metadata = meta
	}
	if patch.Status != nil && *patch.Status != cur.Status {
		if !cur.Status.CanTransition(*patch.Status) {
			return nil, coreerr.NewInvalidStateError(op,
				fmt.Errorf("cannot transition from %s to %s", cur.Status, *patch.Status)).
				WithContext(map[string]any{"id": id})
		}
		next.Status = *patch.Status
	}

	next.Version++
	next.UpdatedAt = time.Now().UTC()
	if err := next.Validate(); err != nil {
		return nil, coreerr.NewValidationError(op, err)
	}

	var err error
	if next, err = s.applyTransform(ctx, op, next); err != nil {
		return nil, err
	}
	if next.ID != id || next.Version != cur.Version+1 {
		return nil, coreerr.NewValidationError(op,
			fmt.Errorf("transform must not change capsule identity or version"))
	}

	if err := s.saveLocked(ctx, op, next); err != nil {
		return nil, err
	}
	s.commitLocked(next)

	s.logger.Debug("capsule updated",
		"id", id, "version", next.Version, "status", next.Status)
	return next.Clone(), nil
}

// Delete archives the capsule, keeping it readable. Archiving an already
// archived capsule is a no-op.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	const op = "store.Delete"

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.capsules[id]
	if !ok {
		return s.notFound(op, id)
	}
	if cur.Status == capsule.StatusArchived {
		return nil
	}

	next := cur.Clone()
	next.Status = capsule.StatusArchived
	next.Version++
	next.UpdatedAt = time.Now().UTC()

	if err := s.saveLocked(ctx, op, next); err != nil {
		return err
	}
	s.commitLocked(next)

	s.logger.Debug("capsule archived", "id", id, "version", next.Version)
	return nil
}

// Search returns the ranked page of capsules matching the filter.
func (s *MemoryStore) Search(ctx context.Context, f Filter) (*Page, error) {
	const op = "store.Search"

	if f.Limit < 0 {
		return nil, coreerr.NewValidationError(op, fmt.Errorf("limit must not be negative"))
	}
	if f.Offset < 0 {
		return nil, coreerr.NewValidationError(op, fmt.Errorf("offset must not be negative"))
	}

	limit := f.Limit
	if limit == 0 {
		limit = s.pageSize
	}

	s.mu.RLock()

	var candidates map[string]struct{}
	narrowed := false
	if f.Query != "" {
		candidates, narrowed = s.keywords.candidates(f.Query)
	}

	matched := make([]*capsule.Capsule, 0)
	for _, id := range s.order {
		if narrowed {
			if _, ok := candidates[id]; !ok {
				continue
			}
		}
		c := s.capsules[id]
		if f.Matches(c) {
			matched = append(matched, c.Clone())
		}
	}
	s.mu.RUnlock()

	// Stable sort over insertion-ordered candidates gives the documented
	// tie-break: overall desc, truth, goodness, then insertion order.
	sort.SliceStable(matched, func(i, j int) bool {
		return score.Less(matched[i].Score, matched[j].Score)
	})

	total := len(matched)
	start := f.Offset
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	return &Page{
		Items:  matched[start:end],
		Total:  total,
		Limit:  limit,
		Offset: f.Offset,
	}, nil
}

// Stats summarizes the store contents.
func (s *MemoryStore) Stats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &Stats{
		Total:    len(s.capsules),
		ByType:   make(map[capsule.Type]int),
		ByStatus: make(map[capsule.Status]int),
	}
	for _, c := range s.capsules {
		stats.ByType[c.Type]++
		stats.ByStatus[c.Status]++
		switch overall := c.Score.Overall(); {
		case overall >= 80:
			stats.HighScore++
		case overall >= 50:
			stats.MediumScore++
		default:
			stats.LowScore++
		}
	}
	return stats, nil
}

// applyTransform runs the pre-commit hook, if any, and revalidates its output.
func (s *MemoryStore) applyTransform(ctx context.Context, op string, c *capsule.Capsule) (*capsule.Capsule, error) {
	if s.transform == nil {
		return c, nil
	}
	out, err := s.transform(ctx, c)
	if err != nil {
		return nil, coreerr.NewValidationError(op,
			fmt.Errorf("transform failed: %w", err))
	}
	if out == nil {
		return c, nil
	}
	if err := out.Validate(); err != nil {
		return nil, coreerr.NewValidationError(op,
			fmt.Errorf("transform produced an invalid capsule: %w", err))
	}
	return out, nil
}

// saveLocked writes the capsule through to the backend. Called with the
// write lock held, before the in-memory commit, so a failing save leaves
// memory untouched.
func (s *MemoryStore) saveLocked(ctx context.Context, op string, c *capsule.Capsule) error {
	if s.backend == nil {
		return nil
	}
	data, err := json.Marshal(c)
	if err != nil {
		return coreerr.NewStorageError(op, err)
	}
	if err := s.backend.Save(ctx, persist.KindCapsule, c.ID, data); err != nil {
		return coreerr.NewStorageError(op, err)
	}
	return nil
}

// commitLocked installs the capsule into the map and keyword index.
// Called with the write lock held.
func (s *MemoryStore) commitLocked(c *capsule.Capsule) {
	if _, exists := s.capsules[c.ID]; !exists {
		s.order = append(s.order, c.ID)
	}
	s.capsules[c.ID] = c
	s.keywords.index(c.ID, c.SearchText())
}

func (s *MemoryStore) notFound(op, id string) error {
	return coreerr.NewNotFoundError(op, coreerr.ErrCapsuleNotFound).
		WithContext(map[string]any{"id": id})
}
