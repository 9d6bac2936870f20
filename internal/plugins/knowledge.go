package plugins

import (
	"context"
	"errors"
	"fmt"

	"github.com/foundationallm/foundationallm-sub000/internal/llm"
	"github.com/foundationallm/foundationallm-sub000/internal/prompt"
)

// Retriever finds passages for a question.
type Retriever interface {
	Search(ctx context.Context, query string, opts SearchOptions) ([]Document, error)
}

// Answer is a grounded response with the passages it was built from.
type Answer struct {
	Text    string     `json:"answer"`
	Sources []Document `json:"sources"`
}

// KnowledgeWorkflow answers questions from retrieved passages.
type KnowledgeWorkflow struct {
	Retriever Retriever
	Chat      llm.Chat
	Top       int
	// MaxSourceChars trims each passage before it is sent to the model.
	MaxSourceChars int
}

// Ask retrieves, builds a context prompt and asks the chat model. With no
// passages the model is not called.
func (w *KnowledgeWorkflow) Ask(ctx context.Context, question string) (Answer, error) {
	if w == nil || w.Retriever == nil || w.Chat == nil {
		return Answer{}, errors.New("knowledge: retriever and chat model are required")
	}
	docs, err := w.Retriever.Search(ctx, question, SearchOptions{Top: w.Top})
	if err != nil {
		return Answer{}, fmt.Errorf("retrieve: %w", err)
	}
	if len(docs) == 0 {
		return Answer{Text: "I could not find any sources for that question."}, nil
	}
	sources := make([]prompt.Source, 0, len(docs))
	for _, doc := range docs {
		content := doc.Content
		if w.MaxSourceChars > 0 && len(content) > w.MaxSourceChars {
			content = content[:w.MaxSourceChars]
		}
		sources = append(sources, prompt.Source{Title: doc.Title, Content: content})
	}
	user, err := prompt.RenderKnowledgePrompt(ctx, question, sources)
	if err != nil {
		return Answer{}, fmt.Errorf("render knowledge prompt: %w", err)
	}
	reply, err := w.Chat.Complete(ctx, []llm.Message{llm.System(prompt.KnowledgeSystem), llm.User(user)}, llm.Options{})
	if err != nil {
		return Answer{}, fmt.Errorf("answer: %w", err)
	}
	return Answer{Text: reply, Sources: docs}, nil
}
