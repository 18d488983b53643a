package internal

import (
	"iter"
	"slices"
	"strings"

	"newsrag/types"
)

const (
	DefaultChunkSize    = 400
	DefaultChunkOverlap = 80
)

// Chunker splits text into overlapping word windows.
type Chunker struct {
	size    int
	overlap int
}

func NewChunker(size, overlap int) (*Chunker, error) {
	if err := types.ValidateChunking(size, overlap); err != nil {
		return nil, err
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

func (c *Chunker) Size() int    { return c.size }
func (c *Chunker) Overlap() int { return c.overlap }

// All yields the chunks of text in order. Windows advance by size-overlap
// words and iteration stops at the first window that reaches the last word,
// so the tail is never emitted as a chunk made only of overlap.
func (c *Chunker) All(text string) iter.Seq[types.Chunk] {
	return func(yield func(types.Chunk) bool) {
		words := strings.Fields(text)
		stride := c.size - c.overlap

		for i, idx := 0, 0; i < len(words); i, idx = i+stride, idx+1 {
			end := min(i+c.size, len(words))

			if !yield(types.Chunk{Index: idx, Text: strings.Join(words[i:end], " ")}) {
				return
			}
			if end == len(words) {
				return
			}
		}
	}
}

func (c *Chunker) Split(text string) []types.Chunk {
	return slices.Collect(c.All(text))
}
