package agent

import (
	"context"
	"fmt"

	"newsrag/types"

	"github.com/sirupsen/logrus"
)

// NewFromConfig builds the configured generator. The close func is never
// nil.
func NewFromConfig(ctx context.Context, cfg types.LLMConfig, logger *logrus.Entry) (Generator, func() error, error) {
	switch cfg.Provider {
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			return nil, nil, types.NewConfigurationError("llm", fmt.Errorf("GEMINI_API_KEY is required for the gemini provider"))
		}
		g, err := NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, logger)
		if err != nil {
			return nil, nil, types.NewConfigurationError("llm", err)
		}
		return g, g.Close, nil
	case "ollama":
		return NewOllama(cfg.Url, cfg.Model, logger), func() error { return nil }, nil
	}
	return nil, nil, types.NewConfigurationError("llm", fmt.Errorf("unknown provider %q", cfg.Provider))
}
