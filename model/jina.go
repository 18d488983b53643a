package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
)

// JinaEmbedder calls the Jina AI embeddings API.
type JinaEmbedder struct {
	apiURL string
	apiKey string
	model  string
	client *http.Client
}

type jinaRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type jinaResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func NewJinaEmbedder(apiURL, apiKey, model string) *JinaEmbedder {
	return &JinaEmbedder{
		apiURL: apiURL,
		apiKey: apiKey,
		model:  model,
		client: http.DefaultClient,
	}
}

func (e *JinaEmbedder) Name() string { return "jina" }

func (e *JinaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(jinaRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("jina API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	var jr jinaResponse
	if err := json.NewDecoder(resp.Body).Decode(&jr); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	// the API reports each vector's input position; don't rely on array order
	sort.SliceStable(jr.Data, func(i, j int) bool {
		return jr.Data[i].Index < jr.Data[j].Index
	})
	vectors := make([][]float32, len(jr.Data))
	for i, d := range jr.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}
