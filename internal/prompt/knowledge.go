package prompt

import (
	"context"
	"fmt"
)

// KnowledgeSystem grounds answers in retrieved sources.
const KnowledgeSystem = `Answer the user's question using only the numbered sources provided.
Cite sources inline as [n]. If the sources do not contain the answer, say you do not know.`

// Source is a retrieved passage.
type Source struct {
	Title   string
	Content string
}

// RenderKnowledgePrompt builds the knowledge workflow user message.
func RenderKnowledgePrompt(ctx context.Context, question string, sources []Source) (string, error) {
	return render(ctx, KnowledgePrompt(question, sources))
}

// sourceLabel numbers a passage for inline citations.
func sourceLabel(i int, source Source) string {
	label := fmt.Sprintf("[%d]", i+1)
	if source.Title != "" {
		label += " " + source.Title
	}
	return label
}
