package store

import (
	"context"
	"testing"
	"time"

	"newsrag/types"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemoryIndex(t *testing.T, dim int) *MemoryIndex {
	t.Helper()
	idx, err := NewMemoryIndex("")
	require.NoError(t, err)
	require.NoError(t, idx.EnsureCollection(context.Background(), CollectionSpec{
		Name:      "news_articles",
		Dimension: dim,
		Metric:    MetricCosine,
	}))
	return idx
}

func point(title string, vec ...float32) types.IndexedPoint {
	return types.IndexedPoint{
		ID:     uuid.New(),
		Vector: vec,
		Payload: types.Payload{
			Title:      title,
			Content:    title + " content",
			Source:     "techcrunch",
			Category:   "ai",
			IngestedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		},
	}
}

func ptr(f float32) *float32 { return &f }

func TestMemoryEnsureCollectionIdempotent(t *testing.T) {
	ctx := context.Background()
	idx := newMemoryIndex(t, 3)

	spec := CollectionSpec{Name: "news_articles", Dimension: 3, Metric: MetricCosine}
	require.NoError(t, idx.EnsureCollection(ctx, spec))

	spec.Dimension = 4
	err := idx.EnsureCollection(ctx, spec)
	assert.ErrorIs(t, err, types.ErrIndexConfig)

	err = idx.EnsureCollection(ctx, CollectionSpec{Name: "other", Dimension: 3, Metric: "dot"})
	assert.ErrorIs(t, err, types.ErrIndexConfig)
}

func TestMemorySearchOrderingAndThreshold(t *testing.T) {
	ctx := context.Background()
	idx := newMemoryIndex(t, 3)

	points := []types.IndexedPoint{
		point("exact", 1, 0, 0),
		point("close", 0.9, 0.1, 0),
		point("half", 1, 1, 0),
		point("orthogonal", 0, 0, 1),
		point("opposite", -1, 0, 0),
	}
	require.NoError(t, idx.Upsert(ctx, points, true))

	hits, err := idx.Search(ctx, []float32{1, 0, 0}, 10, nil)
	require.NoError(t, err)
	require.Len(t, hits, 5)
	for i := 1; i < len(hits); i++ {
		assert.GreaterOrEqual(t, hits[i-1].Score, hits[i].Score)
	}
	assert.Equal(t, "exact", hits[0].Payload.Title)
	assert.Equal(t, "exact content", hits[0].Payload.Content)
	assert.Equal(t, points[0].ID, hits[0].ID)
	assert.True(t, points[0].Payload.IngestedAt.Equal(hits[0].Payload.IngestedAt))
	assert.Equal(t, "opposite", hits[4].Payload.Title)

	hits, err = idx.Search(ctx, []float32{1, 0, 0}, 3, ptr(0.75))
	require.NoError(t, err)
	require.Len(t, hits, 2)
	for _, h := range hits {
		assert.GreaterOrEqual(t, h.Score, float32(0.75))
	}

	hits, err = idx.Search(ctx, []float32{0, 1, 0}, 3, ptr(0.99))
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestMemoryUpsertReplacesByID(t *testing.T) {
	ctx := context.Background()
	idx := newMemoryIndex(t, 2)

	p := point("v1", 1, 0)
	require.NoError(t, idx.Upsert(ctx, []types.IndexedPoint{p}, true))

	p.Payload.Title = "v2"
	p.Vector = []float32{0, 1}
	require.NoError(t, idx.Upsert(ctx, []types.IndexedPoint{p}, true))

	hits, err := idx.Search(ctx, []float32{0, 1}, 5, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "v2", hits[0].Payload.Title)
}

func TestMemoryUpsertRejectsWholeBatchOnBadDimension(t *testing.T) {
	ctx := context.Background()
	idx := newMemoryIndex(t, 2)

	err := idx.Upsert(ctx, []types.IndexedPoint{point("ok", 1, 0), point("bad", 1, 0, 0)}, true)
	assert.ErrorIs(t, err, types.ErrIndexWrite)

	hits, err := idx.Search(ctx, []float32{1, 0}, 5, nil)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestMemorySearchErrors(t *testing.T) {
	ctx := context.Background()
	idx := newMemoryIndex(t, 2)

	_, err := idx.Search(ctx, []float32{1, 0, 0}, 3, nil)
	assert.ErrorIs(t, err, types.ErrIndexQuery)

	_, err = idx.Search(ctx, []float32{1, 0}, 0, nil)
	assert.ErrorIs(t, err, types.ErrIndexQuery)

	uninit, err := NewMemoryIndex("")
	require.NoError(t, err)
	_, err = uninit.Search(ctx, []float32{1, 0}, 3, nil)
	assert.ErrorIs(t, err, types.ErrIndexQuery)
}

func TestMemoryPersistentReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	idx, err := NewMemoryIndex(dir)
	require.NoError(t, err)
	spec := CollectionSpec{Name: "news_articles", Dimension: 2, Metric: MetricCosine}
	require.NoError(t, idx.EnsureCollection(ctx, spec))
	require.NoError(t, idx.Upsert(ctx, []types.IndexedPoint{point("kept", 1, 0)}, true))

	reopened, err := NewMemoryIndex(dir)
	require.NoError(t, err)
	require.NoError(t, reopened.EnsureCollection(ctx, spec))

	hits, err := reopened.Search(ctx, []float32{1, 0}, 1, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "kept", hits[0].Payload.Title)

	spec.Dimension = 3
	assert.ErrorIs(t, reopened.EnsureCollection(ctx, spec), types.ErrIndexConfig)
}
