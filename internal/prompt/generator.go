package prompt

import "context"

// GeneratorSystem instructs the model to write test cases as JSON.
const GeneratorSystem = `You write evaluation test cases for an AI agent.
Respond with a JSON object {"cases": [{"question": "...", "answer": "...", "rules": {...}}]}.
"rules" is optional and may use: contains, contains_any, not_contains, regex, min_length, max_length, numeric_value, tolerance, starts_with.
Questions must be answerable from the provided material and answers must be concise.`

// GeneratorInput describes what to generate.
type GeneratorInput struct {
	Topic    string
	Document string
	Count    int
}

// RenderGeneratorPrompt builds the generator user message.
func RenderGeneratorPrompt(ctx context.Context, in GeneratorInput) (string, error) {
	return render(ctx, GeneratorPrompt(in))
}
