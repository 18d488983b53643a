package model

import (
	"context"
	"fmt"

	"newsrag/types"

	"github.com/sirupsen/logrus"
)

// NewFromConfig builds the embedder for the configured provider. The
// returned close func releases provider clients and is never nil.
func NewFromConfig(ctx context.Context, cfg types.EmbeddingConfig, logger *logrus.Entry) (*Embedder, func() error, error) {
	var (
		provider Provider
		closeFn  = func() error { return nil }
	)

	switch cfg.Provider {
	case "jina":
		if cfg.JinaAPIKey == "" {
			return nil, nil, types.NewConfigurationError("embedding", fmt.Errorf("JINA_API_KEY is required for the jina provider"))
		}
		provider = NewJinaEmbedder(cfg.JinaURL, cfg.JinaAPIKey, cfg.JinaModel)
	case "ollama":
		provider = NewOllamaEmbedder(cfg.OllamaURL, cfg.OllamaModel)
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			return nil, nil, types.NewConfigurationError("embedding", fmt.Errorf("GEMINI_API_KEY is required for the gemini provider"))
		}
		g, err := NewGeminiEmbedder(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, nil, types.NewConfigurationError("embedding", err)
		}
		provider, closeFn = g, g.Close
	default:
		return nil, nil, types.NewConfigurationError("embedding", fmt.Errorf("unknown provider %q", cfg.Provider))
	}

	return NewEmbedder(provider, cfg.Dimension, cfg.Timeout, logger), closeFn, nil
}
