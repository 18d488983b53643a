package api

import (
	"context"
	"strings"

	"newsrag/types"

	"github.com/gofiber/fiber/v2"
)

// ChatEngine is what the handlers need from the query engine.
type ChatEngine interface {
	Answer(ctx context.Context, sessionID, message string) (string, error)
	History(ctx context.Context, sessionID string) ([]types.Message, error)
	ClearSession(ctx context.Context, sessionID string) error
}

type ChatHandler struct {
	engine ChatEngine
}

func NewChatHandler(engine ChatEngine) *ChatHandler {
	return &ChatHandler{
		engine: engine,
	}
}

func (h *ChatHandler) HandleChat(c *fiber.Ctx) error {
	var params types.ChatRequest
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}
	if strings.TrimSpace(params.Message) == "" || strings.TrimSpace(params.SessionID) == "" {
		return ErrMissingChatFields()
	}

	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}

	reply, err := h.engine.Answer(c.UserContext(), params.SessionID, params.Message)
	if err != nil {
		return err
	}

	return c.JSON(types.ChatResponse{Reply: reply})
}
