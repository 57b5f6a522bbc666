package store

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcic-ai/knowledge-sdk/capsule"
	"github.com/bcic-ai/knowledge-sdk/coreerr"
	"github.com/bcic-ai/knowledge-sdk/persist"
)

func TestExportImportRoundTrip(t *testing.T) {
	src := NewMemoryStore()
	a := mustCreate(t, src, paperRequest("exported a", 90, 80, 80, 80))
	b := mustCreate(t, src, paperRequest("exported b", 70, 70, 70, 70))
	require.NoError(t, src.Delete(context.Background(), b.ID))

	snap, err := src.Export(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Count)

	// Snapshots survive a JSON round trip, content variants included.
	data, err := json.Marshal(snap)
	require.NoError(t, err)
	var decoded Snapshot
	require.NoError(t, json.Unmarshal(data, &decoded))

	dst := NewMemoryStore()
	imported, err := dst.Import(context.Background(), &decoded)
	require.NoError(t, err)
	assert.Equal(t, 2, imported)

	// Identifiers, versions, and lifecycle state are preserved.
	got, err := dst.Get(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.Version, got.Version)
	assert.Equal(t, a.Title, got.Title)

	gotB, err := dst.Get(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, gotB.Version)

	// Importing again skips existing ids.
	imported, err = dst.Import(context.Background(), &decoded)
	require.NoError(t, err)
	assert.Equal(t, 0, imported)
}

func TestImportRejectsInvalidSnapshot(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.Import(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, coreerr.IsKind(err, coreerr.KindValidation))

	snap, err := s.Export(context.Background())
	require.NoError(t, err)
	snap.Capsules = append(snap.Capsules, nil)
	_, err = s.Import(context.Background(), snap)
	require.Error(t, err)
	assert.True(t, coreerr.IsKind(err, coreerr.KindValidation))
}

func newBackedStore(t *testing.T) (*MemoryStore, *miniredis.Miniredis, persist.Backend) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	backend := persist.NewRedisBackendFromClient(client, "test")
	return NewMemoryStore(WithBackend(backend)), mr, backend
}

func TestBackendWriteThroughAndHydrate(t *testing.T) {
	s, _, backend := newBackedStore(t)
	c := mustCreate(t, s, paperRequest("durable", 90, 80, 80, 80))

	// A fresh store hydrated from the same backend sees the capsule.
	restored := NewMemoryStore(WithBackend(backend))
	require.NoError(t, restored.Hydrate(context.Background()))

	got, err := restored.Get(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.Title, got.Title)
	assert.Equal(t, c.Version, got.Version)
	assert.Equal(t, c.Content, got.Content)
}

func TestBackendFailurePropagatesUnmutated(t *testing.T) {
	s, mr, _ := newBackedStore(t)
	c := mustCreate(t, s, paperRequest("pre-outage", 90, 80, 80, 80))

	mr.Close()

	// Create fails with a storage error and leaves no partial record.
	_, err := s.Create(context.Background(), paperRequest("during outage", 70, 70, 70, 70))
	require.Error(t, err)
	assert.True(t, coreerr.IsKind(err, coreerr.KindStorage))

	page, err := s.Search(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)

	// Update fails the same way and the in-memory capsule is untouched.
	title := "should not land"
	_, err = s.Update(context.Background(), c.ID, capsule.Patch{ExpectedVersion: 1, Title: &title})
	require.Error(t, err)
	assert.True(t, coreerr.IsKind(err, coreerr.KindStorage))

	got, err := s.Get(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, "pre-outage", got.Title)
	assert.Equal(t, 1, got.Version)
}
