// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Attune Contributors

package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attune-dev/attune/internal/embedding"
	"github.com/attune-dev/attune/internal/store"
	"github.com/attune-dev/attune/internal/store/sqlite"
	attuneerr "github.com/attune-dev/attune/pkg/errors"
)

// mapEmbedder returns fixed 3-dimensional vectors per text so distances
// are controllable from the test body.
type mapEmbedder struct {
	vecs map[string][]float32
}

var _ embedding.Embedder = (*mapEmbedder)(nil)

func (m *mapEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if vec, ok := m.vecs[text]; ok {
		return vec, nil
	}
	return []float32{0.5, 0.5, 0.5}, nil
}

func (m *mapEmbedder) Dims() int { return 3 }

func testStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(filepath.Join(t.TempDir(), "knowledge.db"), &mapEmbedder{
		vecs: map[string][]float32{
			"exact": {1, 0, 0},
			"near":  {0.9, 0.1, 0},
			"far":   {0, 1, 0},
			"query": {1, 0, 0},
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func factMeta() store.Metadata {
	return store.Metadata{
		Kind:      store.KindFact,
		Validated: true,
		Source:    "test",
		Timestamp: time.Now().UTC(),
	}
}

func TestSQLite_InsertAndSearch(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	for _, text := range []string{"far", "near", "exact"} {
		require.NoError(t, s.Insert(ctx, text, factMeta()))
	}

	matches, err := s.Search(ctx, "query", 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "exact", matches[0].Item.Text)
	assert.Equal(t, "near", matches[1].Item.Text)
	assert.Greater(t, matches[0].Similarity, matches[1].Similarity)
	assert.InDelta(t, 1.0, matches[0].Similarity, 1e-6)
	assert.Equal(t, store.KindFact, matches[0].Item.Metadata.Kind)
	assert.True(t, matches[0].Item.Metadata.Validated)
}

func TestSQLite_SearchEmpty(t *testing.T) {
	s := testStore(t)

	matches, err := s.Search(context.Background(), "query", 5)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestSQLite_InsertEmptyTextRejected(t *testing.T) {
	s := testStore(t)

	err := s.Insert(context.Background(), "  ", factMeta())
	require.Error(t, err)
	assert.True(t, attuneerr.IsInvalidInput(err))
}

func TestSQLite_DeleteWhere(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	require.NoError(t, s.Insert(ctx, "exact", factMeta()))
	require.NoError(t, s.Insert(ctx, "User preference: tone = formal", store.Metadata{
		Kind:      store.KindPreference,
		Source:    "test",
		Timestamp: time.Now().UTC(),
		Key:       "tone",
		Value:     "formal",
	}))

	require.NoError(t, s.DeleteWhere(ctx, func(m store.Metadata) bool {
		return m.Kind == store.KindPreference
	}))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	matches, err := s.Search(ctx, "query", 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "exact", matches[0].Item.Text)
}

func TestSQLite_DeleteWhereNoMatches(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	require.NoError(t, s.Insert(ctx, "exact", factMeta()))
	require.NoError(t, s.DeleteWhere(ctx, func(store.Metadata) bool { return false }))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSQLite_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "knowledge.db")
	emb := &mapEmbedder{vecs: map[string][]float32{"exact": {1, 0, 0}, "query": {1, 0, 0}}}

	s, err := sqlite.New(dbPath, emb)
	require.NoError(t, err)
	require.NoError(t, s.Insert(ctx, "exact", factMeta()))
	require.NoError(t, s.Close())

	reopened, err := sqlite.New(dbPath, emb)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	matches, err := reopened.Search(ctx, "query", 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "exact", matches[0].Item.Text)
}
