package rag

import (
	"fmt"
	"strings"

	"newsrag/app/agent"
	"newsrag/types"
)

const NoInformationReply = "I don't have enough information from the news feed."

const systemInstruction = "You are a helpful news assistant. Answer questions using only the news context supplied with each question."

// BuildContext renders hits in the order given as Title/Content blocks.
func BuildContext(hits []types.SearchHit) string {
	blocks := make([]string, 0, len(hits))
	for _, h := range hits {
		blocks = append(blocks, fmt.Sprintf("Title: %s\nContent: %s", h.Payload.Title, h.Payload.Content))
	}
	return strings.Join(blocks, "\n\n")
}

func BuildPrompt(context, question string) string {
	return fmt.Sprintf(`Use the following news context to answer the question.
If the context does not answer the question, reply exactly: "%s"

Context:
%s

Question: %s`, NoInformationReply, context, question)
}

// HistoryTurns maps stored messages to generator turns, keeping order.
func HistoryTurns(msgs []types.Message) []agent.Turn {
	turns := make([]agent.Turn, 0, len(msgs))
	for _, m := range msgs {
		role := agent.RoleUser
		if m.Sender == types.SenderBot {
			role = agent.RoleAssistant
		}
		turns = append(turns, agent.Turn{Role: role, Text: m.Text})
	}
	return turns
}

func buildRequest(hits []types.SearchHit, history []types.Message, question string) agent.Request {
	return agent.Request{
		System:  systemInstruction,
		History: HistoryTurns(history),
		Prompt:  BuildPrompt(BuildContext(hits), question),
	}
}
