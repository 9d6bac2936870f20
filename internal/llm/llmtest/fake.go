// Package llmtest provides a scripted llm.Chat for tests.
package llmtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/foundationallm/foundationallm-sub000/internal/llm"
)

// Call records one Complete invocation.
type Call struct {
	Messages []llm.Message
	Options  llm.Options
}

// Fake replays Responses in order, or delegates to Func when set.
type Fake struct {
	mu        sync.Mutex
	Responses []string
	Err       error
	Func      func(messages []llm.Message) (string, error)
	calls     []Call
}

// Complete implements llm.Chat.
func (f *Fake) Complete(_ context.Context, messages []llm.Message, opts llm.Options) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Messages: messages, Options: opts})
	if f.Err != nil {
		return "", f.Err
	}
	if f.Func != nil {
		return f.Func(messages)
	}
	index := len(f.calls) - 1
	if index >= len(f.Responses) {
		return "", fmt.Errorf("llmtest: no scripted response for call %d", index+1)
	}
	return f.Responses[index], nil
}

// Calls returns a copy of recorded calls.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// LastUserMessage returns the content of the final user message of the last call.
func (f *Fake) LastUserMessage() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return ""
	}
	msgs := f.calls[len(f.calls)-1].Messages
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == llm.RoleUser {
			return msgs[i].Content
		}
	}
	return ""
}
