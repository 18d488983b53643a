package agent

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
	encErr  error
)

// CountTokens estimates the prompt size of a request. The encoding is loaded
// once; callers treat an error as "unknown size".
func CountTokens(req Request) (int, error) {
	encOnce.Do(func() {
		enc, encErr = tiktoken.EncodingForModel("gpt-3.5-turbo")
	})
	if encErr != nil {
		return 0, encErr
	}

	var sb strings.Builder
	sb.WriteString(req.System)
	for _, t := range req.History {
		sb.WriteString("\n")
		sb.WriteString(t.Text)
	}
	sb.WriteString("\n")
	sb.WriteString(req.Prompt)

	return len(enc.Encode(sb.String(), nil, nil)), nil
}
