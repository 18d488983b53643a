package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// Ollama answers through the /api/chat endpoint of an Ollama server.
type Ollama struct {
	url    string
	model  string
	client *http.Client
	logger *logrus.Entry
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

func NewOllama(url, model string, logger *logrus.Entry) *Ollama {
	return &Ollama{
		url:    url,
		model:  model,
		client: &http.Client{Timeout: 5 * time.Minute},
		logger: logger,
	}
}

func (o *Ollama) Generate(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	defer func() {
		o.logger.WithField("took", time.Since(start).String()).Debug("ollama answered")
	}()

	messages := make([]ollamaMessage, 0, len(req.History)+2)
	if req.System != "" {
		messages = append(messages, ollamaMessage{Role: "system", Content: req.System})
	}
	for _, t := range req.History {
		messages = append(messages, ollamaMessage{Role: string(t.Role), Content: t.Text})
	}
	messages = append(messages, ollamaMessage{Role: "user", Content: req.Prompt})

	reqBody, err := json.Marshal(ollamaChatRequest{
		Model:    o.model,
		Messages: messages,
		Stream:   false,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	if o.logger.Logger.IsLevelEnabled(logrus.DebugLevel) {
		if n, err := CountTokens(req); err == nil {
			o.logger.WithFields(logrus.Fields{"prompt_tokens": n, "prompt_bytes": len(reqBody)}).Debug("sending prompt to ollama")
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	// a server that ignores stream=false sends newline-delimited chunks
	var output string
	decoder := json.NewDecoder(bytes.NewReader(body))
	for decoder.More() {
		var chunk ollamaChatResponse
		if err := decoder.Decode(&chunk); err != nil {
			return "", fmt.Errorf("decode response: %w", err)
		}
		output += chunk.Message.Content
	}
	if output == "" {
		return "", fmt.Errorf("ollama returned an empty response")
	}
	return output, nil
}
