package capsule

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bcic-ai/knowledge-sdk/score"
)

// Metadata carries the descriptive metadata of a capsule.
type Metadata struct {
	// Tags is a set of free-form labels. Order is not significant and
	// duplicates are removed on normalization.
	Tags []string `json:"tags,omitempty"`

	// Institution is the owning institution, if any.
	Institution string `json:"institution,omitempty"`

	// Authors is the ordered sequence of author identifiers.
	Authors []string `json:"authors,omitempty"`
}

// Normalize removes duplicate tags while preserving first-seen order.
func (m *Metadata) Normalize() {
	if len(m.Tags) < 2 {
		return
	}
	seen := make(map[string]struct{}, len(m.Tags))
	out := m.Tags[:0]
	for _, tag := range m.Tags {
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	m.Tags = out
}

// HasTag reports whether the metadata contains the given tag.
func (m Metadata) HasTag(tag string) bool {
	for _, t := range m.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the metadata.
func (m Metadata) Clone() Metadata {
	out := Metadata{Institution: m.Institution}
	if m.Tags != nil {
		out.Tags = append([]string(nil), m.Tags...)
	}
	if m.Authors != nil {
		out.Authors = append([]string(nil), m.Authors...)
	}
	return out
}

// Capsule is a versioned, scored unit of knowledge.
//
// The identifier and creation timestamp never change after creation.
// The version starts at 1 and strictly increases with every successful
// mutation of content, score, metadata, or status.
type Capsule struct {
	// ID is the unique, immutable capsule identifier.
	ID string `json:"id"`

	// Type classifies the capsule and selects its content variant.
	Type Type `json:"type"`

	// Title is a short human-readable title.
	Title string `json:"title"`

	// Content is the typed payload; its kind always matches Type.
	Content Content `json:"-"`

	// Score is the DATM quality score.
	Score score.DATMScore `json:"score"`

	// Metadata carries tags, institution, and authors.
	Metadata Metadata `json:"metadata"`

	// Version is the optimistic-concurrency version, starting at 1.
	Version int `json:"version"`

	// Status is the lifecycle state.
	Status Status `json:"status"`

	// CreatedAt is the immutable creation timestamp.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is the timestamp of the last successful mutation.
	// It is never earlier than CreatedAt.
	UpdatedAt time.Time `json:"updated_at"`

	// CreatedBy identifies the creator.
	CreatedBy string `json:"created_by"`
}

// New assembles a capsule with a fresh identifier, version 1, draft status,
// and both timestamps set to the current time. The caller is expected to
// Validate before storing.
func New(typ Type, title string, content Content, s score.DATMScore, meta Metadata, createdBy string) *Capsule {
	now := time.Now().UTC()
	meta.Normalize()
	return &Capsule{
		ID:        uuid.New().String(),
		Type:      typ,
		Title:     title,
		Content:   content,
		Score:     s,
		Metadata:  meta,
		Version:   1,
		Status:    StatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
		CreatedBy: createdBy,
	}
}

// Validate checks that the capsule satisfies all structural invariants.
func (c *Capsule) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("capsule id is required")
	}
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid capsule type: %s", c.Type)
	}
	if c.Title == "" {
		return fmt.Errorf("capsule title is required")
	}
	if c.Content == nil {
		return fmt.Errorf("capsule content is required")
	}
	if c.Content.Kind() != c.Type {
		return fmt.Errorf("content kind %s does not match capsule type %s", c.Content.Kind(), c.Type)
	}
	if err := c.Content.Validate(); err != nil {
		return fmt.Errorf("invalid %s content: %w", c.Type, err)
	}
	if err := c.Score.Validate(); err != nil {
		return fmt.Errorf("invalid score: %w", err)
	}
	if !c.Status.IsValid() {
		return fmt.Errorf("invalid status: %s", c.Status)
	}
	if c.Version < 1 {
		return fmt.Errorf("version must be >= 1, got %d", c.Version)
	}
	if c.CreatedAt.IsZero() {
		return fmt.Errorf("created_at timestamp is required")
	}
	if c.UpdatedAt.Before(c.CreatedAt) {
		return fmt.Errorf("updated_at must not be earlier than created_at")
	}
	if c.CreatedBy == "" {
		return fmt.Errorf("created_by is required")
	}
	return nil
}

// SearchText returns the lowercase-insensitive searchable text of the
// capsule: its title plus the content text.
func (c *Capsule) SearchText() string {
	if c.Content == nil {
		return c.Title
	}
	return c.Title + "\n" + c.Content.Text()
}

// Clone returns a deep copy of the capsule. Stores hand out clones so a
// caller can never mutate stored state through a returned capsule.
func (c *Capsule) Clone() *Capsule {
	out := *c
	out.Metadata = c.Metadata.Clone()
	if c.Score.Factors != nil {
		factors := make(score.Breakdown, len(c.Score.Factors))
		for dim, fs := range c.Score.Factors {
			inner := make(map[string]float64, len(fs))
			for k, v := range fs {
				inner[k] = v
			}
			factors[dim] = inner
		}
		out.Score.Factors = factors
	}
	// Content variants are value types; the interface copy is sufficient.
	return &out
}

// capsuleJSON is the wire shape of a capsule. Content is carried as a
// tagged envelope so the variant survives a round trip.
type capsuleJSON struct {
	ID        string          `json:"id"`
	Type      Type            `json:"type"`
	Title     string          `json:"title"`
	Content   json.RawMessage `json:"content"`
	Score     score.DATMScore `json:"score"`
	Metadata  Metadata        `json:"metadata"`
	Version   int             `json:"version"`
	Status    Status          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	CreatedBy string          `json:"created_by"`
}

// MarshalJSON implements json.Marshaler, encoding the content as a tagged
// envelope.
func (c *Capsule) MarshalJSON() ([]byte, error) {
	content, err := MarshalContent(c.Content)
	if err != nil {
		return nil, err
	}
	return json.Marshal(capsuleJSON{
		ID:        c.ID,
		Type:      c.Type,
		Title:     c.Title,
		Content:   content,
		Score:     c.Score,
		Metadata:  c.Metadata,
		Version:   c.Version,
		Status:    c.Status,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
		CreatedBy: c.CreatedBy,
	})
}

// UnmarshalJSON implements json.Unmarshaler, decoding the tagged content
// envelope into the concrete variant.
func (c *Capsule) UnmarshalJSON(data []byte) error {
	var wire capsuleJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	content, err := UnmarshalContent(wire.Content)
	if err != nil {
		return err
	}
	*c = Capsule{
		ID:        wire.ID,
		Type:      wire.Type,
		Title:     wire.Title,
		Content:   content,
		Score:     wire.Score,
		Metadata:  wire.Metadata,
		Version:   wire.Version,
		Status:    wire.Status,
		CreatedAt: wire.CreatedAt,
		UpdatedAt: wire.UpdatedAt,
		CreatedBy: wire.CreatedBy,
	}
	return nil
}
