package capsule

import "github.com/bcic-ai/knowledge-sdk/score"

// Patch describes a partial update to a capsule. Nil fields are left
// unchanged. ExpectedVersion carries the version the caller last read;
// the store rejects the patch with a conflict if it no longer matches.
type Patch struct {
	// ExpectedVersion is the version the caller read before patching.
	ExpectedVersion int `json:"expected_version"`

	// Title replaces the capsule title when non-nil.
	Title *string `json:"title,omitempty"`

	// Content replaces the content payload when non-nil. Its kind must
	// match the capsule type.
	Content Content `json:"-"`

	// Score replaces the four sub-scores when non-nil. The score is
	// recomputed through the score model, so out-of-range values are
	// rejected before anything is written.
	Score *score.Inputs `json:"score,omitempty"`

	// Metadata replaces the metadata when non-nil.
	Metadata *Metadata `json:"metadata,omitempty"`

	// Status moves the capsule through its lifecycle when non-nil.
	Status *Status `json:"status,omitempty"`
}

// IsZero reports whether the patch changes nothing.
func (p Patch) IsZero() bool {
	return p.Title == nil && p.Content == nil && p.Score == nil &&
		p.Metadata == nil && p.Status == nil
}

// TouchesContent reports whether the patch mutates the knowledge payload
// (content or title). Archived capsules reject such patches.
func (p Patch) TouchesContent() bool {
	return p.Content != nil || p.Title != nil
}

// TouchesScore reports whether the patch mutates the score.
// Archived capsules reject such patches.
func (p Patch) TouchesScore() bool {
	return p.Score != nil
}
