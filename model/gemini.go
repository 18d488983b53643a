package model

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiEmbedder embeds through the Gemini batch embedding endpoint.
type GeminiEmbedder struct {
	client *genai.Client
	model  *genai.EmbeddingModel
}

func NewGeminiEmbedder(ctx context.Context, apiKey, modelName string) (*GeminiEmbedder, error) {
	// the client outlives ctx, which callers scope to startup
	client, err := genai.NewClient(context.WithoutCancel(ctx), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiEmbedder{
		client: client,
		model:  client.EmbeddingModel(modelName),
	}, nil
}

func (e *GeminiEmbedder) Name() string { return "gemini" }

func (e *GeminiEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	batch := e.model.NewBatch()
	for _, text := range texts {
		batch.AddContent(genai.Text(text))
	}

	res, err := e.model.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, err
	}

	vectors := make([][]float32, 0, len(res.Embeddings))
	for _, emb := range res.Embeddings {
		vectors = append(vectors, emb.Values)
	}
	return vectors, nil
}

func (e *GeminiEmbedder) Close() error {
	return e.client.Close()
}
