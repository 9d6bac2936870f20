// Package llm wraps the chat model used by the judge, refiner, generator and
// knowledge workflow.
package llm

import (
	"context"
	"strings"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat turn.
type Message struct {
	Role    Role
	Content string
}

// Options tunes a single completion.
type Options struct {
	// Temperature overrides the client default when non-nil.
	Temperature *float32
	// JSON asks the model for a JSON object response.
	JSON      bool
	MaxTokens int
}

// Chat completes a conversation and returns the assistant text.
type Chat interface {
	Complete(ctx context.Context, messages []Message, opts Options) (string, error)
}

// System builds a system message.
func System(content string) Message { return Message{Role: RoleSystem, Content: content} }

// User builds a user message.
func User(content string) Message { return Message{Role: RoleUser, Content: content} }

// ExtractJSON strips markdown fences and surrounding prose from a model
// reply that should contain a single JSON object or array.
func ExtractJSON(text string) string {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```JSON")
		trimmed = strings.TrimPrefix(trimmed, "```")
		if end := strings.LastIndex(trimmed, "```"); end >= 0 {
			trimmed = trimmed[:end]
		}
		trimmed = strings.TrimSpace(trimmed)
	}
	open := strings.IndexAny(trimmed, "{[")
	if open < 0 {
		return trimmed
	}
	closer := byte('}')
	if trimmed[open] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(trimmed, closer)
	if end < open {
		return trimmed
	}
	return trimmed[open : end+1]
}
