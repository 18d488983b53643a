package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"newsrag/loader/internal"
	"newsrag/model"
	"newsrag/types"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// PointWriter is the write side of a vector index.
type PointWriter interface {
	Upsert(ctx context.Context, points []types.IndexedPoint, durable bool) error
}

// Service turns documents into indexed chunks.
type Service struct {
	logger      *logrus.Entry
	chunker     *internal.Chunker
	embedder    model.EmbedderInterface
	index       PointWriter
	ids         IDStrategy
	concurrency int
	now         func() time.Time
}

type Option func(*Service)

func WithIDStrategy(s IDStrategy) Option {
	return func(svc *Service) { svc.ids = s }
}

func WithConcurrency(n int) Option {
	return func(svc *Service) {
		if n > 0 {
			svc.concurrency = n
		}
	}
}

func WithLogger(l *logrus.Entry) Option {
	return func(svc *Service) { svc.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(svc *Service) { svc.now = now }
}

func New(chunker *internal.Chunker, embedder model.EmbedderInterface, index PointWriter, opts ...Option) *Service {
	s := &Service{
		logger:      logrus.NewEntry(logrus.StandardLogger()),
		chunker:     chunker,
		embedder:    embedder,
		index:       index,
		ids:         IDDeterministic,
		concurrency: 4,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest chunks and embeds every document, then writes all points in one
// durable upsert. A document whose embedding fails is logged and left out;
// a failed upsert fails the whole call. It returns the number of points
// written.
func (s *Service) Ingest(ctx context.Context, docs []types.Document) (int, error) {
	start := time.Now()

	var (
		perDoc  = make([][]types.IndexedPoint, len(docs))
		skipped atomic.Int64
		failed  atomic.Int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, doc := range docs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			points, err := s.documentPoints(gctx, doc)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				failed.Add(1)
				s.logger.WithError(err).WithFields(logrus.Fields{
					"title":  doc.Title,
					"source": doc.Source,
				}).Warn("skipping document, embedding failed")
				return nil
			}
			if len(points) == 0 {
				skipped.Add(1)
			}
			perDoc[i] = points
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	points, duplicates := dedupePoints(perDoc)

	log := s.logger.WithFields(logrus.Fields{
		"documents":  len(docs),
		"skipped":    skipped.Load(),
		"failed":     failed.Load(),
		"duplicates": duplicates,
		"points":     len(points),
	})
	if duplicates > 0 {
		log.Warn("documents with the same source and content collapsed onto the same points")
	}
	if len(points) == 0 {
		log.Info("nothing to index")
		return 0, nil
	}

	if err := s.index.Upsert(ctx, points, true); err != nil {
		return 0, fmt.Errorf("bulk upsert of %d points: %w", len(points), err)
	}

	log.WithField("took", time.Since(start).String()).Info("ingestion finished")
	return len(points), nil
}

// dedupePoints flattens the per-document points in input order, keeping the
// first point for each id.
func dedupePoints(perDoc [][]types.IndexedPoint) ([]types.IndexedPoint, int) {
	var (
		points     []types.IndexedPoint
		seen       = make(map[uuid.UUID]struct{})
		duplicates int
	)
	for _, doc := range perDoc {
		for _, p := range doc {
			if _, ok := seen[p.ID]; ok {
				duplicates++
				continue
			}
			seen[p.ID] = struct{}{}
			points = append(points, p)
		}
	}
	return points, duplicates
}

// documentPoints returns nil for a document without text.
func (s *Service) documentPoints(ctx context.Context, doc types.Document) ([]types.IndexedPoint, error) {
	chunks := s.chunker.Split(doc.Text())
	if len(chunks) == 0 {
		return nil, nil
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}

	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(chunks) {
		return nil, types.NewEmbeddingError("ingest", fmt.Errorf("got %d vectors for %d chunks", len(vectors), len(chunks)))
	}

	ingestedAt := s.now().UTC()
	points := make([]types.IndexedPoint, len(chunks))
	for i, ch := range chunks {
		points[i] = types.IndexedPoint{
			ID:     s.ids.pointID(doc, ch.Index),
			Vector: vectors[i],
			Payload: types.Payload{
				Title:      doc.Title,
				Link:       doc.Link,
				Content:    ch.Text,
				Source:     doc.Source,
				Category:   doc.Category,
				IngestedAt: ingestedAt,
			},
		}
	}
	return points, nil
}

// IngestFile ingests one batch file.
func (s *Service) IngestFile(ctx context.Context, path string) (int, error) {
	docs, err := internal.ReadDocuments(path)
	if err != nil {
		return 0, err
	}
	return s.Ingest(ctx, docs)
}

// Run watches the loader's drop directory and ingests every batch file that
// lands there, until ctx is cancelled. Processed files are archived, files
// that fail go to the bad directory.
func (s *Service) Run(ctx context.Context, watcher *internal.FileWatcher, shutdownTimeout time.Duration) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fileChan := make(chan string, 10)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(fileChan)
		watcher.WatchFile(ctx, fileChan)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for path := range fileChan {
			s.processFile(ctx, watcher, path)
		}
	}()

	<-ctx.Done()
	s.logger.Info("shutting down loader")

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("loader stopped")
	case <-time.After(shutdownTimeout):
		s.logger.Warn("timeout waiting for loader goroutines, forcing shutdown")
	}
}

func (s *Service) processFile(ctx context.Context, watcher *internal.FileWatcher, path string) {
	log := s.logger.WithField("file", path)

	n, err := s.IngestFile(ctx, path)
	if ctx.Err() != nil {
		// leave the file in place for the next run
		log.Warn("ingestion interrupted")
		return
	}
	if err != nil {
		log.WithError(err).Error("ingestion failed")
		watcher.Done(path, internal.FileRejected)
		return
	}
	log.WithField("points", n).Info("file ingested")
	watcher.Done(path, internal.FileIngested)
}
