package store

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strconv"
	"sync"
	"time"

	"newsrag/types"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"
)

const (
	schemaDocID = "__schema__"
	kindKey     = "kind"
	kindChunk   = "chunk"
	kindSchema  = "schema"
)

var errPrecomputed = errors.New("memory index only accepts precomputed vectors")

// MemoryIndex is an in-process index backed by chromem-go. With a persist
// path every write lands on disk before Upsert returns.
//
// chromem keeps collection metadata private, so the collection shape is
// stored as a schema document that searches filter out.
type MemoryIndex struct {
	db *chromem.DB

	mu         sync.RWMutex
	collection *chromem.Collection
	dimension  int
}

func NewMemoryIndex(persistPath string) (*MemoryIndex, error) {
	if persistPath == "" {
		return &MemoryIndex{db: chromem.NewDB()}, nil
	}
	db, err := chromem.NewPersistentDB(persistPath, false)
	if err != nil {
		return nil, fmt.Errorf("open chromem db: %w", err)
	}
	return &MemoryIndex{db: db}, nil
}

func noEmbedding(context.Context, string) ([]float32, error) {
	return nil, errPrecomputed
}

func (m *MemoryIndex) EnsureCollection(ctx context.Context, spec CollectionSpec) error {
	if err := spec.validate(); err != nil {
		return types.NewIndexConfigError("ensure collection", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	col := m.db.GetCollection(spec.Name, noEmbedding)
	if col == nil {
		var err error
		col, err = m.db.CreateCollection(spec.Name, nil, noEmbedding)
		if err != nil {
			return types.NewIndexConfigError("create collection", err)
		}
		schema := make([]float32, spec.Dimension)
		schema[0] = 1
		err = col.AddDocument(ctx, chromem.Document{
			ID:        schemaDocID,
			Embedding: schema,
			Metadata: map[string]string{
				kindKey:     kindSchema,
				"dimension": strconv.Itoa(spec.Dimension),
				"metric":    string(spec.Metric),
			},
		})
		if err != nil {
			return types.NewIndexConfigError("create collection", err)
		}
	} else {
		doc, err := col.GetByID(ctx, schemaDocID)
		if err != nil {
			return types.NewIndexConfigError("ensure collection", fmt.Errorf("collection %q has no schema: %w", spec.Name, err))
		}
		dim, _ := strconv.Atoi(doc.Metadata["dimension"])
		if dim != spec.Dimension || doc.Metadata["metric"] != string(spec.Metric) {
			return types.NewIndexConfigError("ensure collection",
				fmt.Errorf("collection %q has dimension %d metric %q, want %d %q",
					spec.Name, dim, doc.Metadata["metric"], spec.Dimension, spec.Metric))
		}
	}

	m.collection = col
	m.dimension = spec.Dimension
	return nil
}

// Upsert validates the whole batch before touching the collection, so a bad
// point never leaves part of the batch applied. chromem writes synchronously,
// durable is implied.
func (m *MemoryIndex) Upsert(ctx context.Context, points []types.IndexedPoint, _ bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.collection == nil {
		return types.NewIndexWriteError("upsert", fmt.Errorf("collection not initialised, call EnsureCollection first"))
	}
	if err := checkPoints(points, m.dimension); err != nil {
		return types.NewIndexWriteError("upsert", err)
	}
	if len(points) == 0 {
		return nil
	}

	docs := make([]chromem.Document, len(points))
	for i, p := range points {
		// chromem keeps the slice it is given; don't alias the caller's vector
		vec := make([]float32, len(p.Vector))
		copy(vec, p.Vector)
		docs[i] = chromem.Document{
			ID:        p.ID.String(),
			Embedding: vec,
			Content:   p.Payload.Content,
			Metadata: map[string]string{
				kindKey:      kindChunk,
				"title":      p.Payload.Title,
				"link":       p.Payload.Link,
				"source":     p.Payload.Source,
				"category":   p.Payload.Category,
				"ingestedAt": p.Payload.IngestedAt.UTC().Format(time.RFC3339Nano),
			},
		}
	}

	if err := m.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return types.NewIndexWriteError("upsert", err)
	}
	return nil
}

func (m *MemoryIndex) Search(ctx context.Context, vector []float32, limit int, threshold *float32) ([]types.SearchHit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.collection == nil {
		return nil, types.NewIndexQueryError("search", fmt.Errorf("collection not initialised, call EnsureCollection first"))
	}
	if err := checkQuery(vector, limit, m.dimension); err != nil {
		return nil, types.NewIndexQueryError("search", err)
	}

	// chromem refuses nResults above the document count
	n := min(limit, m.collection.Count())
	if n == 0 {
		return []types.SearchHit{}, nil
	}

	results, err := m.collection.QueryEmbedding(ctx, vector, n, map[string]string{kindKey: kindChunk}, nil)
	if err != nil {
		return nil, types.NewIndexQueryError("search", err)
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})

	hits := make([]types.SearchHit, 0, len(results))
	for _, r := range results {
		if threshold != nil && r.Similarity < *threshold {
			break
		}
		hit, err := hitFromResult(r)
		if err != nil {
			return nil, types.NewIndexQueryError("search", err)
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

func (m *MemoryIndex) Close() error {
	return nil
}

func hitFromResult(r chromem.Result) (types.SearchHit, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return types.SearchHit{}, fmt.Errorf("point id %q: %w", r.ID, err)
	}
	ingestedAt, _ := time.Parse(time.RFC3339Nano, r.Metadata["ingestedAt"])
	return types.SearchHit{
		ID: id,
		Payload: types.Payload{
			Title:      r.Metadata["title"],
			Link:       r.Metadata["link"],
			Content:    r.Content,
			Source:     r.Metadata["source"],
			Category:   r.Metadata["category"],
			IngestedAt: ingestedAt,
		},
		Score: r.Similarity,
	}, nil
}
