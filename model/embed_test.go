package model

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"newsrag/logger"
	"newsrag/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	calls   int
	vectors [][]float32
	err     error
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) EmbedBatch(_ context.Context, _ []string) ([][]float32, error) {
	p.calls++
	return p.vectors, p.err
}

func TestEmbedderSingleCallPerBatch(t *testing.T) {
	p := &stubProvider{vectors: [][]float32{{1, 0}, {0, 1}, {1, 1}}}
	e := NewEmbedder(p, 2, time.Second, logger.Discard())

	got, err := e.Embed(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, p.vectors, got)
	assert.Equal(t, 1, p.calls)
}

func TestEmbedderEmptyInputSkipsProvider(t *testing.T) {
	p := &stubProvider{}
	e := NewEmbedder(p, 2, 0, logger.Discard())

	got, err := e.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, p.calls)
}

func TestEmbedderFailures(t *testing.T) {
	tests := []struct {
		name     string
		provider *stubProvider
	}{
		{"provider error", &stubProvider{err: errors.New("503")}},
		{"count mismatch", &stubProvider{vectors: [][]float32{{1, 0}}}},
		{"dimension mismatch", &stubProvider{vectors: [][]float32{{1, 0}, {1, 0, 0}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEmbedder(tt.provider, 2, 0, logger.Discard())

			got, err := e.Embed(context.Background(), []string{"a", "b"})
			assert.Nil(t, got)
			assert.ErrorIs(t, err, types.ErrEmbedding)

			var embErr *types.EmbeddingError
			require.ErrorAs(t, err, &embErr)
			assert.Equal(t, "stub", embErr.Op)
		})
	}
}

func TestJinaEmbedderRequestAndOrdering(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req jinaRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "jina-embeddings-v2-base-en", req.Model)
		assert.Equal(t, []string{"first", "second"}, req.Input)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"index":1,"embedding":[0,1]},{"index":0,"embedding":[1,0]}]}`))
	}))
	defer srv.Close()

	e := NewJinaEmbedder(srv.URL, "secret", "jina-embeddings-v2-base-en")
	got, err := e.EmbedBatch(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, got)
}

func TestJinaEmbedderHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	e := NewEmbedder(NewJinaEmbedder(srv.URL, "", "m"), 2, time.Second, logger.Discard())
	_, err := e.Embed(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrEmbedding)
	assert.Contains(t, err.Error(), "429")
}

func TestOllamaEmbedderBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req OllamaEmbeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)

		all := [][]float32{{0.5, 0.5}, {0.1, 0.9}}
		_ = json.NewEncoder(w).Encode(OllamaEmbeddingResponse{
			Embeddings: all[:len(req.Input)],
		})
	}))
	defer srv.Close()

	e := NewEmbedder(NewOllamaEmbedder(srv.URL, "nomic-embed-text"), 2, time.Second, logger.Discard())
	got, err := e.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0.5, 0.5}, {0.1, 0.9}}, got)

	one, err := e.EmbedOne(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.5}, one)
}

func TestNewFromConfig(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	emb, closeFn, err := NewFromConfig(ctx, types.EmbeddingConfig{
		Provider:     "gemini",
		Dimension:    768,
		GeminiAPIKey: "test-key",
		GeminiModel:  "text-embedding-004",
	}, logger.Discard())
	require.NoError(t, err)
	defer closeFn()
	assert.Equal(t, 768, emb.Dimension())
	assert.Equal(t, "gemini", emb.provider.Name())

	_, _, err = NewFromConfig(context.Background(), types.EmbeddingConfig{Provider: "jina", Dimension: 768}, logger.Discard())
	assert.ErrorIs(t, err, types.ErrConfiguration)

	_, _, err = NewFromConfig(context.Background(), types.EmbeddingConfig{Provider: "openai"}, logger.Discard())
	assert.ErrorIs(t, err, types.ErrConfiguration)
}
