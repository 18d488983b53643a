package rag

import (
	"context"
	"fmt"

	"newsrag/types"
)

// Searcher is the part of a vector index the strategy needs.
type Searcher interface {
	Search(ctx context.Context, vector []float32, limit int, threshold *float32) ([]types.SearchHit, error)
}

type SearchStage struct {
	Limit     int
	Threshold *float32
}

func (s SearchStage) String() string {
	if s.Threshold == nil {
		return fmt.Sprintf("limit=%d", s.Limit)
	}
	return fmt.Sprintf("limit=%d threshold=%.2f", s.Limit, *s.Threshold)
}

// SearchStrategy runs its stages in order and stops at the first stage that
// returns at least one hit.
type SearchStrategy struct {
	Stages []SearchStage
}

// DefaultStrategy is a strict search for a few close matches, relaxed to a
// wider unthresholded search only when nothing passes.
func DefaultStrategy(primaryLimit int, primaryThreshold float32, fallbackLimit int) SearchStrategy {
	return SearchStrategy{Stages: []SearchStage{
		{Limit: primaryLimit, Threshold: &primaryThreshold},
		{Limit: fallbackLimit},
	}}
}

// Run returns the hits of the first non-empty stage and that stage's index.
// If every stage is empty it returns no hits and the last stage's index.
func (s SearchStrategy) Run(ctx context.Context, searcher Searcher, vector []float32) ([]types.SearchHit, int, error) {
	if len(s.Stages) == 0 {
		return nil, -1, fmt.Errorf("search strategy has no stages")
	}
	for i, stage := range s.Stages {
		hits, err := searcher.Search(ctx, vector, stage.Limit, stage.Threshold)
		if err != nil {
			return nil, i, fmt.Errorf("search stage %d (%s): %w", i, stage, err)
		}
		if len(hits) > 0 {
			return hits, i, nil
		}
	}
	return []types.SearchHit{}, len(s.Stages) - 1, nil
}
