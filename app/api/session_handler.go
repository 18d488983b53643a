package api

import (
	"newsrag/types"

	"github.com/gofiber/fiber/v2"
)

const maxSessionIDLen = 128

type SessionHandler struct {
	engine ChatEngine
}

func NewSessionHandler(engine ChatEngine) *SessionHandler {
	return &SessionHandler{
		engine: engine,
	}
}

func (h *SessionHandler) HandleGetHistory(c *fiber.Ctx) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}

	history, err := h.engine.History(c.UserContext(), id)
	if err != nil {
		return err
	}
	if history == nil {
		history = []types.Message{}
	}

	return c.JSON(history)
}

func (h *SessionHandler) HandleClear(c *fiber.Ctx) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}

	if err := h.engine.ClearSession(c.UserContext(), id); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"message": "Session cleared"})
}

func sessionID(c *fiber.Ctx) (string, error) {
	id := c.Params("id")
	if id == "" || len(id) > maxSessionIDLen {
		return "", ErrInvalidID()
	}
	return id, nil
}
