package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"newsrag/types"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// QdrantIndex talks to the Qdrant REST API.
type QdrantIndex struct {
	baseURL    string
	apiKey     string
	collection string
	dimension  int
	client     *http.Client
	logger     *logrus.Entry
}

func NewQdrantIndex(baseURL, apiKey string, logger *logrus.Entry) *QdrantIndex {
	return &QdrantIndex{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 15 * time.Second},
		logger:  logger,
	}
}

type qdrantVectors struct {
	Size     int    `json:"size"`
	Distance string `json:"distance"`
}

type qdrantCollectionInfo struct {
	Result struct {
		Config struct {
			Params struct {
				Vectors qdrantVectors `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	} `json:"result"`
}

type qdrantPoint struct {
	ID      string        `json:"id"`
	Vector  []float32     `json:"vector"`
	Payload types.Payload `json:"payload"`
}

type qdrantSearchRequest struct {
	Vector         []float32 `json:"vector"`
	Limit          int       `json:"limit"`
	WithPayload    bool      `json:"with_payload"`
	ScoreThreshold *float32  `json:"score_threshold,omitempty"`
}

type qdrantSearchResponse struct {
	Result []struct {
		ID      string        `json:"id"`
		Score   float32       `json:"score"`
		Payload types.Payload `json:"payload"`
	} `json:"result"`
}

func (q *QdrantIndex) EnsureCollection(ctx context.Context, spec CollectionSpec) error {
	if err := spec.validate(); err != nil {
		return types.NewIndexConfigError("ensure collection", err)
	}
	path := "/collections/" + url.PathEscape(spec.Name)

	var info qdrantCollectionInfo
	status, err := q.do(ctx, http.MethodGet, path, nil, &info)
	switch {
	case err != nil && status != http.StatusNotFound:
		return types.NewIndexConfigError("ensure collection", err)
	case status == http.StatusNotFound:
		body := map[string]any{
			"vectors": qdrantVectors{Size: spec.Dimension, Distance: "Cosine"},
		}
		if _, err := q.do(ctx, http.MethodPut, path, body, nil); err != nil {
			return types.NewIndexConfigError("create collection", err)
		}
		q.logger.WithFields(logrus.Fields{"collection": spec.Name, "dimension": spec.Dimension}).Info("collection created")
	default:
		got := info.Result.Config.Params.Vectors
		if got.Size != spec.Dimension || !strings.EqualFold(got.Distance, string(spec.Metric)) {
			return types.NewIndexConfigError("ensure collection",
				fmt.Errorf("collection %q has size %d distance %q, want size %d distance %q",
					spec.Name, got.Size, got.Distance, spec.Dimension, spec.Metric))
		}
	}

	q.collection = spec.Name
	q.dimension = spec.Dimension
	return nil
}

func (q *QdrantIndex) Upsert(ctx context.Context, points []types.IndexedPoint, durable bool) error {
	if err := q.ready(); err != nil {
		return types.NewIndexWriteError("upsert", err)
	}
	if err := checkPoints(points, q.dimension); err != nil {
		return types.NewIndexWriteError("upsert", err)
	}
	if len(points) == 0 {
		return nil
	}

	body := struct {
		Points []qdrantPoint `json:"points"`
	}{Points: make([]qdrantPoint, len(points))}
	for i, p := range points {
		body.Points[i] = qdrantPoint{ID: p.ID.String(), Vector: p.Vector, Payload: p.Payload}
	}

	path := fmt.Sprintf("/collections/%s/points?wait=%s", url.PathEscape(q.collection), strconv.FormatBool(durable))
	if _, err := q.do(ctx, http.MethodPut, path, body, nil); err != nil {
		return types.NewIndexWriteError("upsert", err)
	}
	return nil
}

func (q *QdrantIndex) Search(ctx context.Context, vector []float32, limit int, threshold *float32) ([]types.SearchHit, error) {
	if err := q.ready(); err != nil {
		return nil, types.NewIndexQueryError("search", err)
	}
	if err := checkQuery(vector, limit, q.dimension); err != nil {
		return nil, types.NewIndexQueryError("search", err)
	}

	req := qdrantSearchRequest{
		Vector:         vector,
		Limit:          limit,
		WithPayload:    true,
		ScoreThreshold: threshold,
	}
	var resp qdrantSearchResponse
	path := fmt.Sprintf("/collections/%s/points/search", url.PathEscape(q.collection))
	if _, err := q.do(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, types.NewIndexQueryError("search", err)
	}

	hits := make([]types.SearchHit, 0, len(resp.Result))
	for _, r := range resp.Result {
		id, err := uuid.Parse(r.ID)
		if err != nil {
			return nil, types.NewIndexQueryError("search", fmt.Errorf("point id %q: %w", r.ID, err))
		}
		hits = append(hits, types.SearchHit{ID: id, Payload: r.Payload, Score: r.Score})
	}
	return hits, nil
}

func (q *QdrantIndex) Close() error {
	q.client.CloseIdleConnections()
	return nil
}

func (q *QdrantIndex) ready() error {
	if q.collection == "" {
		return fmt.Errorf("collection not initialised, call EnsureCollection first")
	}
	return nil
}

// do sends a JSON request and decodes the response into out when given. It
// returns the HTTP status alongside any error.
func (q *QdrantIndex) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, q.baseURL+path, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}

	resp, err := q.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return resp.StatusCode, fmt.Errorf("qdrant %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
