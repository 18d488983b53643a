package types

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type Validater interface {
	Validate() map[string]string
}

type ChatRequest struct {
	Message   string `json:"message" validate:"required"`
	SessionID string `json:"sessionId" validate:"required,max=128"`
}

type ChatResponse struct {
	Reply string `json:"reply"`
}

func Validate(v Validater) map[string]string {
	return v.Validate()
}

func (params *ChatRequest) Validate() map[string]string {
	if err := validate.Struct(params); err != nil {
		errs, ok := err.(validator.ValidationErrors)
		if !ok {
			return map[string]string{"request": err.Error()}
		}
		errors := make(map[string]string)
		for _, e := range errs {
			errors[e.Field()] = fmt.Sprintf("failed on '%s' tag", e.Tag())
		}
		return errors
	}
	return nil
}
