package store

import (
	"context"
	"fmt"

	"newsrag/types"

	"github.com/sirupsen/logrus"
)

// Open connects to the configured backend and makes sure the news
// collection exists with the embedder's dimension.
func Open(ctx context.Context, cfg types.IndexConfig, dimension int, logger *logrus.Entry) (VectorIndex, error) {
	var (
		index VectorIndex
		err   error
	)

	switch cfg.Backend {
	case "qdrant":
		index = NewQdrantIndex(cfg.QdrantURL, cfg.QdrantAPIKey, logger)
	case "postgres":
		index, err = NewPostgresIndex(ctx, cfg.PostgresDSN(), logger)
	case "memory":
		index, err = NewMemoryIndex(cfg.PersistPath)
	default:
		err = types.NewConfigurationError("vector index", fmt.Errorf("unknown backend %q", cfg.Backend))
	}
	if err != nil {
		return nil, err
	}

	spec := CollectionSpec{Name: cfg.Collection, Dimension: dimension, Metric: MetricCosine}
	if err := index.EnsureCollection(ctx, spec); err != nil {
		index.Close()
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"backend":    cfg.Backend,
		"collection": cfg.Collection,
		"dimension":  dimension,
	}).Info("vector index ready")
	return index, nil
}
