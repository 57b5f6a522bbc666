package store

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcic-ai/knowledge-sdk/capsule"
	"github.com/bcic-ai/knowledge-sdk/coreerr"
	"github.com/bcic-ai/knowledge-sdk/score"
)

func paperRequest(title string, truth, goodness, beauty, intelligence float64) CreateRequest {
	return CreateRequest{
		Type:      capsule.TypePaper,
		Title:     title,
		Content:   capsule.Paper{Abstract: "abstract for " + title},
		Score:     score.Inputs{Truth: truth, Goodness: goodness, Beauty: beauty, Intelligence: intelligence},
		Metadata:  capsule.Metadata{Tags: []string{"test"}},
		CreatedBy: "tester",
	}
}

func mustCreate(t *testing.T, s Store, req CreateRequest) *capsule.Capsule {
	t.Helper()
	c, err := s.Create(context.Background(), req)
	require.NoError(t, err)
	return c
}

func TestCreateDefaults(t *testing.T) {
	s := NewMemoryStore()
	c := mustCreate(t, s, paperRequest("first", 95, 75, 80, 90))

	assert.NotEmpty(t, c.ID)
	assert.Equal(t, 1, c.Version)
	assert.Equal(t, capsule.StatusDraft, c.Status)
	assert.Equal(t, 85.0, c.Score.Overall())
}

func TestCreatePublished(t *testing.T) {
	s := NewMemoryStore()
	req := paperRequest("published at birth", 80, 80, 80, 80)
	req.Publish = true

	c := mustCreate(t, s, req)
	assert.Equal(t, capsule.StatusPublished, c.Status)
	assert.Equal(t, 1, c.Version)
}

func TestCreateRejectsBadScore(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Create(context.Background(), paperRequest("bad", 101, 50, 50, 50))
	require.Error(t, err)
	assert.True(t, coreerr.IsKind(err, coreerr.KindValidation))
}

func TestCreateRejectsContentKindMismatch(t *testing.T) {
	s := NewMemoryStore()
	req := paperRequest("mismatch", 50, 50, 50, 50)
	req.Content = capsule.Knowledge{Body: "not a paper"}

	_, err := s.Create(context.Background(), req)
	require.Error(t, err)
	assert.True(t, coreerr.IsKind(err, coreerr.KindValidation))
}

func TestCreateCapacityLimit(t *testing.T) {
	s := NewMemoryStore(WithMaxCapsules(2))
	mustCreate(t, s, paperRequest("one", 50, 50, 50, 50))
	mustCreate(t, s, paperRequest("two", 50, 50, 50, 50))

	_, err := s.Create(context.Background(), paperRequest("three", 50, 50, 50, 50))
	require.Error(t, err)
	assert.True(t, coreerr.IsKind(err, coreerr.KindValidation))
}

func TestGetReturnsCopy(t *testing.T) {
	s := NewMemoryStore()
	created := mustCreate(t, s, paperRequest("copy me", 60, 60, 60, 60))

	got, err := s.Get(context.Background(), created.ID)
	require.NoError(t, err)
	got.Title = "mutated"
	got.Metadata.Tags[0] = "mutated"

	again, err := s.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "copy me", again.Title)
	assert.Equal(t, "test", again.Metadata.Tags[0])
}

func TestGetNotFound(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, coreerr.IsKind(err, coreerr.KindNotFound))
	assert.ErrorIs(t, err, coreerr.ErrCapsuleNotFound)
}

func TestUpdateIncrementsVersion(t *testing.T) {
	s := NewMemoryStore()
	c := mustCreate(t, s, paperRequest("v1", 60, 60, 60, 60))

	title := "v2"
	updated, err := s.Update(context.Background(), c.ID, capsule.Patch{
		ExpectedVersion: 1,
		Title:           &title,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)
	assert.Equal(t, "v2", updated.Title)
	assert.False(t, updated.UpdatedAt.Before(updated.CreatedAt))
}

func TestUpdateVersionMismatch(t *testing.T) {
	s := NewMemoryStore()
	c := mustCreate(t, s, paperRequest("contended", 60, 60, 60, 60))

	title := "writer A"
	_, err := s.Update(context.Background(), c.ID, capsule.Patch{ExpectedVersion: 1, Title: &title})
	require.NoError(t, err)

	// Second writer still holds version 1.
	title2 := "writer B"
	_, err = s.Update(context.Background(), c.ID, capsule.Patch{ExpectedVersion: 1, Title: &title2})
	require.Error(t, err)
	assert.True(t, coreerr.IsKind(err, coreerr.KindConflict))
	assert.ErrorIs(t, err, coreerr.ErrVersionMismatch)

	// Caller-driven retry: re-read, then write with the fresh version.
	fresh, err := s.Get(context.Background(), c.ID)
	require.NoError(t, err)
	updated, err := s.Update(context.Background(), c.ID, capsule.Patch{
		ExpectedVersion: fresh.Version,
		Title:           &title2,
	})
	require.NoError(t, err)
	assert.Equal(t, "writer B", updated.Title)
	assert.Equal(t, 3, updated.Version)
}

func TestUpdateScoreRecomputes(t *testing.T) {
	s := NewMemoryStore()
	c := mustCreate(t, s, paperRequest("rescore", 60, 60, 60, 60))

	updated, err := s.Update(context.Background(), c.ID, capsule.Patch{
		ExpectedVersion: 1,
		Score:           &score.Inputs{Truth: 95, Goodness: 75, Beauty: 80, Intelligence: 90},
	})
	require.NoError(t, err)
	assert.Equal(t, 85.0, updated.Score.Overall())

	_, err = s.Update(context.Background(), c.ID, capsule.Patch{
		ExpectedVersion: updated.Version,
		Score:           &score.Inputs{Truth: -1, Goodness: 50, Beauty: 50, Intelligence: 50},
	})
	require.Error(t, err)
	assert.True(t, coreerr.IsKind(err, coreerr.KindValidation))
}

func TestUpdateStatusTransitions(t *testing.T) {
	s := NewMemoryStore()
	c := mustCreate(t, s, paperRequest("lifecycle", 60, 60, 60, 60))

	published := capsule.StatusPublished
	c2, err := s.Update(context.Background(), c.ID, capsule.Patch{ExpectedVersion: 1, Status: &published})
	require.NoError(t, err)
	assert.Equal(t, capsule.StatusPublished, c2.Status)

	// Reverse transition is rejected.
	draft := capsule.StatusDraft
	_, err = s.Update(context.Background(), c.ID, capsule.Patch{ExpectedVersion: 2, Status: &draft})
	require.Error(t, err)
	assert.True(t, coreerr.IsKind(err, coreerr.KindInvalidState))
}

func TestUpdateArchivedCapsule(t *testing.T) {
	s := NewMemoryStore()
	c := mustCreate(t, s, paperRequest("archive me", 60, 60, 60, 60))
	require.NoError(t, s.Delete(context.Background(), c.ID))

	cur, err := s.Get(context.Background(), c.ID)
	require.NoError(t, err)
	require.Equal(t, capsule.StatusArchived, cur.Status)

	// Content mutation fails with invalid_state.
	title := "too late"
	_, err = s.Update(context.Background(), c.ID, capsule.Patch{ExpectedVersion: cur.Version, Title: &title})
	require.Error(t, err)
	assert.True(t, coreerr.IsKind(err, coreerr.KindInvalidState))
	assert.ErrorIs(t, err, coreerr.ErrCapsuleArchived)

	// Score mutation fails too.
	_, err = s.Update(context.Background(), c.ID, capsule.Patch{
		ExpectedVersion: cur.Version,
		Score:           &score.Inputs{Truth: 90, Goodness: 90, Beauty: 90, Intelligence: 90},
	})
	require.Error(t, err)
	assert.True(t, coreerr.IsKind(err, coreerr.KindInvalidState))

	// Metadata-only patches remain permitted.
	updated, err := s.Update(context.Background(), c.ID, capsule.Patch{
		ExpectedVersion: cur.Version,
		Metadata:        &capsule.Metadata{Tags: []string{"archived", "kept"}},
	})
	require.NoError(t, err)
	assert.Equal(t, cur.Version+1, updated.Version)
	assert.True(t, updated.Metadata.HasTag("archived"))
}

func TestDeleteIsSoft(t *testing.T) {
	s := NewMemoryStore()
	c := mustCreate(t, s, paperRequest("soft delete", 60, 60, 60, 60))

	require.NoError(t, s.Delete(context.Background(), c.ID))

	got, err := s.Get(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, capsule.StatusArchived, got.Status)
	assert.Equal(t, 2, got.Version)

	// Deleting again is a no-op and does not bump the version.
	require.NoError(t, s.Delete(context.Background(), c.ID))
	got, err = s.Get(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
}

func TestDeleteNotFound(t *testing.T) {
	s := NewMemoryStore()
	err := s.Delete(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, coreerr.IsKind(err, coreerr.KindNotFound))
}

func TestSearchRankingAndThresholds(t *testing.T) {
	s := NewMemoryStore()
	a := mustCreate(t, s, paperRequest("route a", 96, 80, 80, 80)) // overall 84
	b := mustCreate(t, s, paperRequest("route b", 90, 95, 95, 95)) // overall 93.75
	c := mustCreate(t, s, paperRequest("route c", 85, 70, 70, 70)) // overall 73.75

	page, err := s.Search(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, page.Items, 3)
	assert.Equal(t, b.ID, page.Items[0].ID)
	assert.Equal(t, a.ID, page.Items[1].ID)
	assert.Equal(t, c.ID, page.Items[2].ID)

	// min_truth=90 keeps a and b, still ranked by overall.
	page, err = s.Search(context.Background(), Filter{MinTruth: 90})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, b.ID, page.Items[0].ID)
	assert.Equal(t, a.ID, page.Items[1].ID)

	// Raising the threshold to 96 drops b despite its higher overall.
	page, err = s.Search(context.Background(), Filter{MinTruth: 96})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, a.ID, page.Items[0].ID)
}

func TestSearchTieBreakInsertionOrder(t *testing.T) {
	s := NewMemoryStore()
	first := mustCreate(t, s, paperRequest("tie first", 70, 70, 70, 70))
	second := mustCreate(t, s, paperRequest("tie second", 70, 70, 70, 70))

	for i := 0; i < 5; i++ {
		page, err := s.Search(context.Background(), Filter{})
		require.NoError(t, err)
		require.Len(t, page.Items, 2)
		assert.Equal(t, first.ID, page.Items[0].ID)
		assert.Equal(t, second.ID, page.Items[1].ID)
	}
}

func TestSearchFreeText(t *testing.T) {
	s := NewMemoryStore()
	mustCreate(t, s, CreateRequest{
		Type:      capsule.TypeKnowledge,
		Title:     "Perovskite passivation",
		Content:   capsule.Knowledge{Body: "surface defect treatment"},
		Score:     score.Inputs{Truth: 80, Goodness: 80, Beauty: 80, Intelligence: 80},
		CreatedBy: "tester",
	})
	mustCreate(t, s, CreateRequest{
		Type:      capsule.TypeKnowledge,
		Title:     "Electrolyte additives",
		Content:   capsule.Knowledge{Body: "lithium salt screening"},
		Score:     score.Inputs{Truth: 80, Goodness: 80, Beauty: 80, Intelligence: 80},
		CreatedBy: "tester",
	})

	// Matches title, case-insensitively.
	page, err := s.Search(context.Background(), Filter{Query: "PEROVSKITE"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Perovskite passivation", page.Items[0].Title)

	// Matches content, partial word.
	page, err = s.Search(context.Background(), Filter{Query: "lithium sa"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Electrolyte additives", page.Items[0].Title)

	page, err = s.Search(context.Background(), Filter{Query: "graphene"})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
}

func TestSearchFilters(t *testing.T) {
	s := NewMemoryStore()
	req := paperRequest("tagged paper", 80, 80, 80, 80)
	req.Metadata.Tags = []string{"solar", "stability"}
	mustCreate(t, s, req)

	kn := CreateRequest{
		Type:      capsule.TypeKnowledge,
		Title:     "plain note",
		Content:   capsule.Knowledge{Body: "note"},
		Score:     score.Inputs{Truth: 80, Goodness: 80, Beauty: 80, Intelligence: 80},
		Metadata:  capsule.Metadata{Tags: []string{"solar"}},
		CreatedBy: "tester",
	}
	mustCreate(t, s, kn)

	page, err := s.Search(context.Background(), Filter{Types: []capsule.Type{capsule.TypePaper}})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, capsule.TypePaper, page.Items[0].Type)

	// All listed tags must be present.
	page, err = s.Search(context.Background(), Filter{Tags: []string{"solar", "stability"}})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "tagged paper", page.Items[0].Title)

	page, err = s.Search(context.Background(), Filter{Tags: []string{"solar"}})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)

	page, err = s.Search(context.Background(), Filter{Statuses: []capsule.Status{capsule.StatusPublished}})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
}

func TestSearchPagination(t *testing.T) {
	s := NewMemoryStore()
	for i := 0; i < 5; i++ {
		mustCreate(t, s, paperRequest(fmt.Sprintf("paper %d", i), float64(90-i), 80, 80, 80))
	}

	seen := make(map[string]int)
	for offset := 0; offset < 5; offset += 2 {
		page, err := s.Search(context.Background(), Filter{Limit: 2, Offset: offset})
		require.NoError(t, err)
		assert.Equal(t, 5, page.Total)
		for _, c := range page.Items {
			seen[c.ID]++
		}
	}

	// No duplicates, no skips across pages.
	assert.Len(t, seen, 5)
	for id, n := range seen {
		assert.Equal(t, 1, n, "capsule %s appeared %d times", id, n)
	}

	// Offset past the end yields an empty page, not an error.
	page, err := s.Search(context.Background(), Filter{Limit: 2, Offset: 100})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Equal(t, 5, page.Total)

	_, err = s.Search(context.Background(), Filter{Offset: -1})
	require.Error(t, err)
	assert.True(t, coreerr.IsKind(err, coreerr.KindValidation))
}

func TestStats(t *testing.T) {
	s := NewMemoryStore()
	mustCreate(t, s, paperRequest("high", 90, 90, 90, 90))
	mustCreate(t, s, paperRequest("medium", 60, 60, 60, 60))
	low := mustCreate(t, s, paperRequest("low", 20, 20, 20, 20))
	require.NoError(t, s.Delete(context.Background(), low.ID))

	stats, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 3, stats.ByType[capsule.TypePaper])
	assert.Equal(t, 2, stats.ByStatus[capsule.StatusDraft])
	assert.Equal(t, 1, stats.ByStatus[capsule.StatusArchived])
	assert.Equal(t, 1, stats.HighScore)
	assert.Equal(t, 1, stats.MediumScore)
	assert.Equal(t, 1, stats.LowScore)
}

func TestTransformHook(t *testing.T) {
	s := NewMemoryStore(WithTransform(func(ctx context.Context, c *capsule.Capsule) (*capsule.Capsule, error) {
		out := c.Clone()
		out.Metadata.Tags = append(out.Metadata.Tags, "enriched")
		return out, nil
	}))

	c := mustCreate(t, s, paperRequest("hooked", 70, 70, 70, 70))
	assert.True(t, c.Metadata.HasTag("enriched"))
}

func TestConcurrentWritersOneWins(t *testing.T) {
	s := NewMemoryStore()
	c := mustCreate(t, s, paperRequest("race", 70, 70, 70, 70))

	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			title := fmt.Sprintf("writer %d", i)
			_, errs[i] = s.Update(context.Background(), c.ID, capsule.Patch{
				ExpectedVersion: 1,
				Title:           &title,
			})
		}(i)
	}
	wg.Wait()

	won := 0
	for _, err := range errs {
		if err == nil {
			won++
		} else {
			assert.True(t, coreerr.IsKind(err, coreerr.KindConflict))
		}
	}
	assert.Equal(t, 1, won)

	got, err := s.Get(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
}
