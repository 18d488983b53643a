package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

const genericErrorMessage = "Something went wrong processing your request."

// ErrorHandler renders API errors as JSON. Anything it does not recognise is
// logged and answered with a generic 500 so internal detail never leaks.
func ErrorHandler(logger *logrus.Entry) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var (
			apiErr   Error
			valErr   ValidationError
			fiberErr *fiber.Error
		)
		switch {
		case errors.As(err, &apiErr):
			return c.Status(apiErr.Code).JSON(apiErr)
		case errors.As(err, &valErr):
			return c.Status(valErr.Status).JSON(valErr)
		case errors.As(err, &fiberErr):
			return c.Status(fiberErr.Code).JSON(NewError(fiberErr.Code, fiberErr.Message))
		}

		logger.WithError(err).WithFields(logrus.Fields{
			"method": c.Method(),
			"path":   c.Path(),
		}).Error("request failed")
		return c.Status(fiber.StatusInternalServerError).JSON(ErrInternal())
	}
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"error"`
}

type ValidationError struct {
	Status int               `json:"status"`
	Errors map[string]string `json:"errors"`
}

func (e ValidationError) Error() string {
	return "validation failed"
}

func NewValidationError(errors map[string]string) ValidationError {
	return ValidationError{
		Status: fiber.StatusUnprocessableEntity,
		Errors: errors,
	}
}

// Error implements the Error interface
func (e Error) Error() string {
	return e.Message
}

func NewError(code int, err string) Error {
	return Error{
		Code:    code,
		Message: err,
	}
}

func ErrBadRequest() Error {
	return Error{
		Code:    fiber.StatusBadRequest,
		Message: "invalid JSON request",
	}
}

func ErrMissingChatFields() Error {
	return Error{
		Code:    fiber.StatusBadRequest,
		Message: "Message and sessionId are required",
	}
}

func ErrInvalidID() Error {
	return Error{
		Code:    fiber.StatusBadRequest,
		Message: "invalid id given",
	}
}

func ErrInternal() Error {
	return Error{
		Code:    fiber.StatusInternalServerError,
		Message: genericErrorMessage,
	}
}
