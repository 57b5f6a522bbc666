package store

import (
	"context"

	"github.com/bcic-ai/knowledge-sdk/capsule"
	"github.com/bcic-ai/knowledge-sdk/score"
)

// CreateRequest carries the inputs for creating a capsule.
type CreateRequest struct {
	// Type selects the capsule type; Content's kind must match it.
	Type capsule.Type `json:"type"`

	// Title is the capsule title.
	Title string `json:"title"`

	// Content is the typed payload.
	Content capsule.Content `json:"-"`

	// Score carries the four raw sub-scores, validated through the
	// score model before anything is written.
	Score score.Inputs `json:"score"`

	// Metadata carries tags, institution, and authors.
	Metadata capsule.Metadata `json:"metadata"`

	// CreatedBy identifies the creator.
	CreatedBy string `json:"created_by"`

	// Publish creates the capsule directly in published status instead
	// of draft.
	Publish bool `json:"publish,omitempty"`
}

// Filter selects and pages capsules for Search.
//
// All set conditions must hold (AND semantics). Zero values mean
// "no constraint": an empty Types slice matches every type, a zero
// minimum matches every score.
type Filter struct {
	// Types restricts results to the given capsule types.
	Types []capsule.Type `json:"types,omitempty"`

	// Query is a case-insensitive substring matched against the capsule
	// title and content text.
	Query string `json:"query,omitempty"`

	// Per-dimension minimum thresholds, each inclusive.
	MinTruth        float64 `json:"min_truth,omitempty"`
	MinGoodness     float64 `json:"min_goodness,omitempty"`
	MinBeauty       float64 `json:"min_beauty,omitempty"`
	MinIntelligence float64 `json:"min_intelligence,omitempty"`

	// Tags restricts results to capsules carrying every listed tag.
	Tags []string `json:"tags,omitempty"`

	// Statuses restricts results to the given lifecycle states.
	Statuses []capsule.Status `json:"statuses,omitempty"`

	// Limit caps the page size. Zero means the store's default page size.
	Limit int `json:"limit,omitempty"`

	// Offset skips that many ranked results before the page starts.
	Offset int `json:"offset,omitempty"`
}

// Matches reports whether the capsule satisfies every set condition.
func (f Filter) Matches(c *capsule.Capsule) bool {
	if len(f.Types) > 0 && !containsType(f.Types, c.Type) {
		return false
	}
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, c.Status) {
		return false
	}
	if c.Score.Truth < f.MinTruth ||
		c.Score.Goodness < f.MinGoodness ||
		c.Score.Beauty < f.MinBeauty ||
		c.Score.Intelligence < f.MinIntelligence {
		return false
	}
	for _, tag := range f.Tags {
		if !c.Metadata.HasTag(tag) {
			return false
		}
	}
	if f.Query != "" && !matchesQuery(c, f.Query) {
		return false
	}
	return true
}

// Page is one page of ranked search results.
type Page struct {
	// Items are the capsules on this page, ranked by overall score
	// descending with deterministic tie-breaks.
	Items []*capsule.Capsule `json:"items"`

	// Total is the number of capsules matching the filter across all pages.
	Total int `json:"total"`

	// Limit and Offset echo the paging that produced this page.
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// Stats summarizes the store contents.
type Stats struct {
	// Total is the number of capsules in the store, archived included.
	Total int `json:"total"`

	// ByType counts capsules per type.
	ByType map[capsule.Type]int `json:"by_type"`

	// ByStatus counts capsules per lifecycle state.
	ByStatus map[capsule.Status]int `json:"by_status"`

	// HighScore counts capsules with overall >= 80, MediumScore those
	// with overall >= 50 below 80, LowScore the rest.
	HighScore   int `json:"high_score"`
	MediumScore int `json:"medium_score"`
	LowScore    int `json:"low_score"`
}

// Store is the capsule repository contract.
//
// Implementations must be safe for concurrent use, must never retry
// internally, and must return coreerr-kinded errors: validation for
// malformed input, not_found for unknown ids, conflict for version
// mismatches, invalid_state for disallowed lifecycle mutations, and
// storage for persistence collaborator failures.
type Store interface {
	// Create validates the request and stores a new capsule with a fresh
	// identifier, version 1, and draft status unless Publish is set.
	Create(ctx context.Context, req CreateRequest) (*capsule.Capsule, error)

	// Get returns the capsule with the given id.
	Get(ctx context.Context, id string) (*capsule.Capsule, error)

	// Update applies a partial patch under optimistic concurrency. The
	// patch must carry the version the caller read; a mismatch fails with
	// a conflict error and the caller re-reads and retries.
	Update(ctx context.Context, id string, patch capsule.Patch) (*capsule.Capsule, error)

	// Delete archives the capsule (soft delete). The record stays
	// readable; archiving an already archived capsule is a no-op.
	Delete(ctx context.Context, id string) error

	// Search returns the ranked page of capsules matching the filter.
	Search(ctx context.Context, f Filter) (*Page, error)

	// Stats summarizes the store contents.
	Stats(ctx context.Context) (*Stats, error)

	// Export snapshots every capsule for backup or migration.
	Export(ctx context.Context) (*Snapshot, error)

	// Import loads capsules from a snapshot, skipping ids that already
	// exist. It returns the number of capsules imported.
	Import(ctx context.Context, snap *Snapshot) (int, error)
}

func containsType(types []capsule.Type, t capsule.Type) bool {
	for _, v := range types {
		if v == t {
			return true
		}
	}
	return false
}

func containsStatus(statuses []capsule.Status, s capsule.Status) bool {
	for _, v := range statuses {
		if v == s {
			return true
		}
	}
	return false
}
