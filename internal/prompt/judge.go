package prompt

import "context"

// JudgeSystem instructs the model to grade an answer as JSON.
const JudgeSystem = `You grade answers produced by an AI agent.
Compare the actual answer to the expected answer for the question.
Minor wording differences are acceptable when the meaning matches.
Respond with a single JSON object: {"passed": true|false, "score": 0.0-1.0, "reason": "<one sentence>"}.`

// JudgeInput carries one case to grade.
type JudgeInput struct {
	Question string
	Expected string
	Actual   string
	Rules    string
}

// RenderJudgePrompt builds the judge user message.
func RenderJudgePrompt(ctx context.Context, in JudgeInput) (string, error) {
	return render(ctx, JudgePrompt(in))
}
