package store

import (
	"context"
	"fmt"

	"newsrag/types"
)

type Metric string

const MetricCosine Metric = "cosine"

type CollectionSpec struct {
	Name      string
	Dimension int
	Metric    Metric
}

// VectorIndex stores chunk vectors with their payload and answers cosine
// similarity queries.
type VectorIndex interface {
	// EnsureCollection creates the collection if it is absent and fails with
	// an IndexConfigError if it exists with a different shape.
	EnsureCollection(ctx context.Context, spec CollectionSpec) error
	// Upsert inserts or replaces points by id as one batch. With durable set
	// it returns after the write is persisted.
	Upsert(ctx context.Context, points []types.IndexedPoint, durable bool) error
	// Search returns up to limit hits ordered by descending score. A non-nil
	// threshold drops hits scoring below it.
	Search(ctx context.Context, vector []float32, limit int, threshold *float32) ([]types.SearchHit, error)
	Close() error
}

func (s CollectionSpec) validate() error {
	if s.Name == "" {
		return fmt.Errorf("collection name is empty")
	}
	if s.Dimension < 1 {
		return fmt.Errorf("dimension must be positive, got %d", s.Dimension)
	}
	if s.Metric != MetricCosine {
		return fmt.Errorf("unsupported metric %q", s.Metric)
	}
	return nil
}

func checkPoints(points []types.IndexedPoint, dimension int) error {
	for i, p := range points {
		if len(p.Vector) != dimension {
			return fmt.Errorf("point %d (%s) has dimension %d, want %d", i, p.ID, len(p.Vector), dimension)
		}
	}
	return nil
}

func checkQuery(vector []float32, limit, dimension int) error {
	if limit < 1 {
		return fmt.Errorf("limit must be positive, got %d", limit)
	}
	if dimension > 0 && len(vector) != dimension {
		return fmt.Errorf("query vector has dimension %d, want %d", len(vector), dimension)
	}
	if len(vector) == 0 {
		return fmt.Errorf("empty query vector")
	}
	return nil
}
