package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.Server.Addr)
	assert.Equal(t, "/api", cfg.Server.APIPrefix)
	assert.Equal(t, 400, cfg.Chunking.ChunkSize)
	assert.Equal(t, 80, cfg.Chunking.ChunkOverlap)
	assert.Equal(t, 768, cfg.Embedding.Dimension)
	assert.Equal(t, "news_articles", cfg.Index.Collection)
	assert.Equal(t, 10, cfg.History.Window)
	assert.InDelta(t, 0.75, cfg.Search.PrimaryThreshold, 1e-6)
}

func TestLoadConfigRejectsBadChunking(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "50")
	t.Setenv("CHUNK_OVERLAP", "50")

	_, err := LoadConfig()
	assert.ErrorIs(t, err, ErrConfiguration)

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "chunking", cfgErr.Op)
}

func TestConfigValidate(t *testing.T) {
	base, err := LoadConfig()
	require.NoError(t, err)

	tests := map[string]func(*Config){
		"unknown backend":  func(c *Config) { c.Index.Backend = "faiss" },
		"unknown provider": func(c *Config) { c.Embedding.Provider = "openai" },
		"zero window":      func(c *Config) { c.History.Window = 0 },
		"zero ttl":         func(c *Config) { c.History.TTL = 0 },
		"negative overlap": func(c *Config) { c.Chunking.ChunkOverlap = -1 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := base
			mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrConfiguration)
		})
	}
}

func TestChatRequestValidate(t *testing.T) {
	assert.Empty(t, (&ChatRequest{Message: "hi", SessionID: "abc"}).Validate())

	errs := (&ChatRequest{}).Validate()
	assert.Equal(t, "failed on 'required' tag", errs["Message"])
	assert.Equal(t, "failed on 'required' tag", errs["SessionID"])

	long := make([]byte, 129)
	for i := range long {
		long[i] = 'a'
	}
	errs = (&ChatRequest{Message: "hi", SessionID: string(long)}).Validate()
	assert.Equal(t, "failed on 'max' tag", errs["SessionID"])
}

func TestErrorsMatchTheirSentinel(t *testing.T) {
	cause := errors.New("boom")
	err := NewHistoryWriteError("s1", cause)

	assert.ErrorIs(t, err, ErrHistoryWrite)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrQueryFailed)
	assert.Equal(t, "s1", err.SessionID)
}

func TestDocumentText(t *testing.T) {
	assert.Equal(t, "Title. Body", Document{Title: "Title", Body: "Body"}.Text())
	assert.Empty(t, Document{Title: " ", Body: "\n"}.Text())
}
