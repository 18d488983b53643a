package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"newsrag/types"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/sirupsen/logrus"
)

var tableName = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// PostgresIndex keeps one table per collection with a pgvector column.
// The metric is recorded as the table comment.
type PostgresIndex struct {
	pool      *pgxpool.Pool
	table     string
	dimension int
	logger    *logrus.Entry
}

func NewPostgresIndex(ctx context.Context, connStr string, logger *logrus.Entry) (*PostgresIndex, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresIndex{
		pool:   pool,
		logger: logger,
	}, nil
}

func (p *PostgresIndex) EnsureCollection(ctx context.Context, spec CollectionSpec) error {
	if err := spec.validate(); err != nil {
		return types.NewIndexConfigError("ensure collection", err)
	}
	if !tableName.MatchString(spec.Name) {
		return types.NewIndexConfigError("ensure collection", fmt.Errorf("collection name %q is not a valid table name", spec.Name))
	}

	var (
		dim     int32
		comment *string
	)
	err := p.pool.QueryRow(ctx, `
		SELECT a.atttypmod, obj_description(a.attrelid, 'pg_class')
		FROM pg_attribute a
		WHERE a.attrelid = to_regclass($1) AND a.attname = 'embedding' AND NOT a.attisdropped`,
		spec.Name).Scan(&dim, &comment)

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		if err := p.createCollection(ctx, spec); err != nil {
			return types.NewIndexConfigError("create collection", err)
		}
		p.logger.WithFields(logrus.Fields{"collection": spec.Name, "dimension": spec.Dimension}).Info("collection created")
	case err != nil:
		return types.NewIndexConfigError("ensure collection", err)
	default:
		metric := ""
		if comment != nil {
			metric = *comment
		}
		if int(dim) != spec.Dimension || metric != "metric="+string(spec.Metric) {
			return types.NewIndexConfigError("ensure collection",
				fmt.Errorf("table %q has dimension %d (%s), want %d (metric=%s)", spec.Name, dim, metric, spec.Dimension, spec.Metric))
		}
	}

	p.table = spec.Name
	p.dimension = spec.Dimension
	return nil
}

func (p *PostgresIndex) createCollection(ctx context.Context, spec CollectionSpec) error {
	ident := pgx.Identifier{spec.Name}.Sanitize()
	query := fmt.Sprintf(`
	CREATE EXTENSION IF NOT EXISTS vector;

	CREATE TABLE IF NOT EXISTS %[1]s (
		id UUID PRIMARY KEY,
		embedding vector(%[2]d) NOT NULL,
		title TEXT NOT NULL,
		link TEXT,
		content TEXT NOT NULL,
		source TEXT,
		category TEXT,
		ingested_at TIMESTAMP WITH TIME ZONE NOT NULL
	);

	CREATE INDEX IF NOT EXISTS %[3]s ON %[1]s USING hnsw (embedding vector_cosine_ops);

	COMMENT ON TABLE %[1]s IS 'metric=%[4]s';
	`, ident, spec.Dimension, pgx.Identifier{"idx_" + spec.Name + "_embedding"}.Sanitize(), spec.Metric)

	_, err := p.pool.Exec(ctx, query)
	return err
}

func (p *PostgresIndex) Upsert(ctx context.Context, points []types.IndexedPoint, durable bool) error {
	if p.table == "" {
		return types.NewIndexWriteError("upsert", fmt.Errorf("collection not initialised, call EnsureCollection first"))
	}
	if err := checkPoints(points, p.dimension); err != nil {
		return types.NewIndexWriteError("upsert", err)
	}
	if len(points) == 0 {
		return nil
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return types.NewIndexWriteError("upsert", err)
	}
	defer tx.Rollback(ctx)

	if !durable {
		if _, err := tx.Exec(ctx, "SET LOCAL synchronous_commit = off"); err != nil {
			return types.NewIndexWriteError("upsert", err)
		}
	}

	query := fmt.Sprintf(`
	INSERT INTO %s (id, embedding, title, link, content, source, category, ingested_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (id) DO UPDATE SET
		embedding = EXCLUDED.embedding,
		title = EXCLUDED.title,
		link = EXCLUDED.link,
		content = EXCLUDED.content,
		source = EXCLUDED.source,
		category = EXCLUDED.category,
		ingested_at = EXCLUDED.ingested_at
	`, pgx.Identifier{p.table}.Sanitize())

	batch := &pgx.Batch{}
	for _, pt := range points {
		batch.Queue(query,
			pt.ID,
			pgvector.NewVector(pt.Vector),
			pt.Payload.Title,
			pt.Payload.Link,
			pt.Payload.Content,
			pt.Payload.Source,
			pt.Payload.Category,
			pt.Payload.IngestedAt,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return types.NewIndexWriteError("upsert", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return types.NewIndexWriteError("upsert", err)
	}
	return nil
}

func (p *PostgresIndex) Search(ctx context.Context, vector []float32, limit int, threshold *float32) ([]types.SearchHit, error) {
	if p.table == "" {
		return nil, types.NewIndexQueryError("search", fmt.Errorf("collection not initialised, call EnsureCollection first"))
	}
	if err := checkQuery(vector, limit, p.dimension); err != nil {
		return nil, types.NewIndexQueryError("search", err)
	}

	var minScore *float64
	if threshold != nil {
		v := float64(*threshold)
		minScore = &v
	}

	query := fmt.Sprintf(`
		SELECT id, title, coalesce(link, ''), content, coalesce(source, ''), coalesce(category, ''), ingested_at,
		       1 - (embedding <=> $1) AS score
		FROM %s
		WHERE $3::float8 IS NULL OR 1 - (embedding <=> $1) >= $3::float8
		ORDER BY embedding <=> $1
		LIMIT $2
	`, pgx.Identifier{p.table}.Sanitize())

	rows, err := p.pool.Query(ctx, query, pgvector.NewVector(vector), limit, minScore)
	if err != nil {
		return nil, types.NewIndexQueryError("search", err)
	}
	defer rows.Close()

	var hits []types.SearchHit
	for rows.Next() {
		var (
			hit   types.SearchHit
			score float64
		)
		if err := rows.Scan(
			&hit.ID,
			&hit.Payload.Title,
			&hit.Payload.Link,
			&hit.Payload.Content,
			&hit.Payload.Source,
			&hit.Payload.Category,
			&hit.Payload.IngestedAt,
			&score); err != nil {
			return nil, types.NewIndexQueryError("search", err)
		}
		hit.Score = float32(score)
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewIndexQueryError("search", err)
	}
	return hits, nil
}

func (p *PostgresIndex) Close() error {
	if p.pool != nil {
		p.pool.Close()
		p.logger.Info("postgres connection pool is closed")
	}
	return nil
}
