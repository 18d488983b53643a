package store

import (
	"context"
	"testing"

	"newsrag/logger"
	"newsrag/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenMemoryBackend(t *testing.T) {
	cfg := types.IndexConfig{Backend: "memory", Collection: "news_articles"}
	index, err := Open(context.Background(), cfg, 3, logger.Discard())
	require.NoError(t, err)
	defer index.Close()

	_, ok := index.(*MemoryIndex)
	assert.True(t, ok)

	hits, err := index.Search(context.Background(), []float32{1, 0, 0}, 3, nil)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), types.IndexConfig{Backend: "faiss"}, 3, logger.Discard())
	assert.ErrorIs(t, err, types.ErrConfiguration)
}
