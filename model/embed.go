package model

import (
	"context"
	"fmt"
	"time"

	"newsrag/types"

	"github.com/sirupsen/logrus"
)

// EmbedderInterface turns an ordered batch of texts into vectors of the same
// order and count.
type EmbedderInterface interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Provider is a remote embedding capability. One EmbedBatch is one remote
// call.
type Provider interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Name() string
}

// Embedder checks provider responses against the configured dimension and
// turns any failure into an EmbeddingError.
type Embedder struct {
	provider  Provider
	dimension int
	timeout   time.Duration
	logger    *logrus.Entry
}

func NewEmbedder(provider Provider, dimension int, timeout time.Duration, logger *logrus.Entry) *Embedder {
	logger.WithFields(logrus.Fields{
		"provider":  provider.Name(),
		"dimension": dimension,
	}).Info("embedder ready")

	return &Embedder{
		provider:  provider,
		dimension: dimension,
		timeout:   timeout,
		logger:    logger,
	}
}

func (e *Embedder) Dimension() int { return e.dimension }

// Embed returns one vector per text. Either every text gets a vector or an
// error is returned.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	vectors, err := e.provider.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, types.NewEmbeddingError(e.provider.Name(), err)
	}
	if len(vectors) != len(texts) {
		return nil, types.NewEmbeddingError(e.provider.Name(),
			fmt.Errorf("got %d vectors for %d inputs", len(vectors), len(texts)))
	}
	for i, v := range vectors {
		if len(v) != e.dimension {
			return nil, types.NewEmbeddingError(e.provider.Name(),
				fmt.Errorf("vector %d has dimension %d, want %d", i, len(v), e.dimension))
		}
	}

	e.logger.WithFields(logrus.Fields{
		"inputs": len(texts),
		"took":   time.Since(start).String(),
	}).Debug("embedded batch")
	return vectors, nil
}

// EmbedOne embeds a single text, used for queries.
func (e *Embedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}
