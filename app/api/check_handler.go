package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

const readyTimeout = 2 * time.Second

// Check is a named backend ping used by the readiness endpoint.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

type CheckHandler struct {
	checks []Check
}

func NewCheckHandler(checks ...Check) *CheckHandler {
	return &CheckHandler{
		checks: checks,
	}
}

// HandleHealthy reports the process is up.
func (h *CheckHandler) HandleHealthy(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"result": "ok"})
}

// HandleReady pings every backend and answers 503 naming the ones that
// failed.
func (h *CheckHandler) HandleReady(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), readyTimeout)
	defer cancel()

	failed := []string{}
	for _, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			failed = append(failed, check.Name)
		}
	}
	if len(failed) > 0 {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"result": "unavailable", "failed": failed})
	}
	return c.JSON(fiber.Map{"result": "ok"})
}
