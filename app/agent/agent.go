package agent

import (
	"context"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one prior message of the conversation.
type Turn struct {
	Role Role
	Text string
}

// Request is everything a generator needs for one reply: a system
// instruction, prior turns oldest first, and the final prompt.
type Request struct {
	System  string
	History []Turn
	Prompt  string
}

// Generator produces a single non-streamed reply.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}
