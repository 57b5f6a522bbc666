package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/bcic-ai/knowledge-sdk/capsule"
	"github.com/bcic-ai/knowledge-sdk/coreerr"
)

// Snapshot is a point-in-time export of the store, suitable for backup
// or migration. It round-trips through JSON.
type Snapshot struct {
	// ExportedAt is the time the snapshot was taken.
	ExportedAt time.Time `json:"exported_at"`

	// Count is the number of capsules in the snapshot.
	Count int `json:"count"`

	// Capsules are the exported capsules in creation order.
	Capsules []*capsule.Capsule `json:"capsules"`
}

// Export snapshots every capsule, archived ones included.
func (s *MemoryStore) Export(ctx context.Context) (*Snapshot, error) {
	s.mu.RLock()
	capsules := make([]*capsule.Capsule, 0, len(s.capsules))
	for _, c := range s.capsules {
		capsules = append(capsules, c.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(capsules, func(i, j int) bool {
		if !capsules[i].CreatedAt.Equal(capsules[j].CreatedAt) {
			return capsules[i].CreatedAt.Before(capsules[j].CreatedAt)
		}
		return capsules[i].ID < capsules[j].ID
	})

	return &Snapshot{
		ExportedAt: time.Now().UTC(),
		Count:      len(capsules),
		Capsules:   capsules,
	}, nil
}

// Import restores capsules from a snapshot, preserving their identifiers,
// versions, and timestamps so graph mirrors keyed by capsule ID stay
// valid. Capsules whose id already exists are skipped. Returns the number
// of capsules imported.
func (s *MemoryStore) Import(ctx context.Context, snap *Snapshot) (int, error) {
	const op = "store.Import"

	if snap == nil {
		return 0, coreerr.NewValidationError(op, fmt.Errorf("snapshot is nil"))
	}
	for i, c := range snap.Capsules {
		if c == nil {
			return 0, coreerr.NewValidationError(op,
				fmt.Errorf("snapshot capsule at index %d is nil", i))
		}
		if err := c.Validate(); err != nil {
			return 0, coreerr.NewValidationError(op,
				fmt.Errorf("snapshot capsule %s: %w", c.ID, err))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	imported := 0
	for _, c := range snap.Capsules {
		if _, exists := s.capsules[c.ID]; exists {
			continue
		}
		if s.maxCapsules > 0 && len(s.capsules) >= s.maxCapsules {
			return imported, coreerr.NewValidationError(op,
				fmt.Errorf("capsule limit of %d reached", s.maxCapsules))
		}

		clone := c.Clone()
		if err := s.saveLocked(ctx, op, clone); err != nil {
			return imported, err
		}
		s.commitLocked(clone)
		imported++
	}

	s.logger.Info("snapshot imported",
		"imported", imported, "skipped", len(snap.Capsules)-imported)
	return imported, nil
}
