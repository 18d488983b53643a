package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// RequestLogger logs one line per request once the handler chain returns.
func RequestLogger(logger *logrus.Entry) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		// render the error here so the logged status is the one sent
		if chainErr := c.Next(); chainErr != nil {
			if err := c.App().ErrorHandler(c, chainErr); err != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}
		status := c.Response().StatusCode()

		entry := logger.WithFields(logrus.Fields{
			"method": c.Method(),
			"path":   c.Path(),
			"status": status,
			"took":   time.Since(start).String(),
			"ip":     c.IP(),
		})
		switch {
		case status >= fiber.StatusInternalServerError:
			entry.Error("request")
		case status >= fiber.StatusBadRequest:
			entry.Warn("request")
		default:
			entry.Info("request")
		}
		return nil
	}
}
