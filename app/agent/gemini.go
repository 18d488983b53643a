package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

// Gemini answers through a fresh chat session per request, seeded with the
// conversation history.
type Gemini struct {
	client *genai.Client
	model  string
	logger *logrus.Entry
}

func NewGemini(ctx context.Context, apiKey, model string, logger *logrus.Entry) (*Gemini, error) {
	// the client outlives ctx, which callers scope to startup
	client, err := genai.NewClient(context.WithoutCancel(ctx), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Gemini{
		client: client,
		model:  model,
		logger: logger,
	}, nil
}

func (g *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	start := time.Now()

	model := g.client.GenerativeModel(g.model)
	if req.System != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(req.System))
	}

	chat := model.StartChat()
	chat.History = toGenaiHistory(req.History)

	if g.logger.Logger.IsLevelEnabled(logrus.DebugLevel) {
		if n, err := CountTokens(req); err == nil {
			g.logger.WithField("prompt_tokens", n).Debug("sending prompt to gemini")
		}
	}

	resp, err := chat.SendMessage(ctx, genai.Text(req.Prompt))
	if err != nil {
		return "", fmt.Errorf("gemini send message: %w", err)
	}

	text := responseText(resp)
	if text == "" {
		return "", errors.New("gemini returned an empty response")
	}

	g.logger.WithField("took", time.Since(start).String()).Debug("gemini answered")
	return text, nil
}

func (g *Gemini) Close() error {
	return g.client.Close()
}

// Gemini names the assistant role "model".
func toGenaiHistory(turns []Turn) []*genai.Content {
	history := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		role := "user"
		if t.Role == RoleAssistant {
			role = "model"
		}
		history = append(history, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(t.Text)},
		})
	}
	return history
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String()
}
