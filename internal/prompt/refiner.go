package prompt

import (
	"context"
	"strings"
)

// RefinerSystem instructs the model to rewrite an agent prompt.
const RefinerSystem = `You are an expert prompt engineer improving the system prompt of an AI agent.
You receive the current prompt and test cases the agent failed with it.
Rewrite the prompt so the agent answers these cases correctly without overfitting to them.
Keep the agent's role, tone and constraints. Do not mention the test cases.
Return the complete new prompt wrapped in <prompt></prompt> tags and nothing else.`

// FailedExample is one failing case shown to the refiner.
type FailedExample struct {
	Question     string
	Expected     string
	Actual       string
	FailedChecks []string
	Error        string
}

// RefinerInput carries the refinement context.
type RefinerInput struct {
	CurrentPrompt  string
	PassRate       float64
	TargetPassRate float64
	Iteration      int
	Failures       []FailedExample
	// PreviousAttempts lists earlier rejected candidates so the model avoids repeating them.
	PreviousAttempts []string
}

// RenderRefinerPrompt builds the refiner user message.
func RenderRefinerPrompt(ctx context.Context, in RefinerInput) (string, error) {
	return render(ctx, RefinerPrompt(in))
}

// ExtractTagged returns the body of the first <tag>...</tag> block, or the
// whole trimmed text when the block is absent.
func ExtractTagged(text, tag string) string {
	open := "<" + tag + ">"
	closeTag := "</" + tag + ">"
	start := strings.Index(text, open)
	if start < 0 {
		return strings.TrimSpace(text)
	}
	rest := text[start+len(open):]
	end := strings.Index(rest, closeTag)
	if end < 0 {
		return strings.TrimSpace(rest)
	}
	return strings.TrimSpace(rest[:end])
}
