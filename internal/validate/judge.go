package validate

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/foundationallm/foundationallm-sub000/internal/llm"
	"github.com/foundationallm/foundationallm-sub000/internal/prompt"
)

// passScore is the score above which a verdict without "passed" counts as a pass.
const passScore = 0.7

// LLMJudge grades answers with a chat model in JSON mode.
type LLMJudge struct {
	Chat llm.Chat
}

type rawVerdict struct {
	Passed *bool    `json:"passed"`
	Score  *float64 `json:"score"`
	Reason string   `json:"reason"`
}

// Judge implements Judge.
func (j *LLMJudge) Judge(ctx context.Context, in Input) (Verdict, error) {
	if j == nil || j.Chat == nil {
		return Verdict{}, ErrNoJudge
	}
	user, err := prompt.RenderJudgePrompt(ctx, prompt.JudgeInput{
		Question: in.Question,
		Expected: in.Expected,
		Actual:   in.Actual,
		Rules:    in.Rules.String(),
	})
	if err != nil {
		return Verdict{}, fmt.Errorf("render judge prompt: %w", err)
	}
	var zero float32
	reply, err := j.Chat.Complete(ctx, []llm.Message{llm.System(prompt.JudgeSystem), llm.User(user)}, llm.Options{JSON: true, Temperature: &zero})
	if err != nil {
		return Verdict{}, err
	}
	return ParseVerdict(reply)
}

// ParseVerdict decodes a judge reply, tolerating fences and missing fields.
func ParseVerdict(reply string) (Verdict, error) {
	var raw rawVerdict
	if err := json.Unmarshal([]byte(llm.ExtractJSON(reply)), &raw); err != nil {
		return Verdict{}, fmt.Errorf("parse judge verdict: %w", err)
	}
	if raw.Passed == nil && raw.Score == nil {
		return Verdict{}, fmt.Errorf("parse judge verdict: missing passed and score")
	}
	verdict := Verdict{Reason: raw.Reason}
	if raw.Score != nil {
		verdict.Score = clamp(*raw.Score)
	}
	if raw.Passed != nil {
		verdict.Passed = *raw.Passed
		if raw.Score == nil && verdict.Passed {
			verdict.Score = 1
		}
	} else {
		verdict.Passed = verdict.Score >= passScore
	}
	return verdict, nil
}

func clamp(score float64) float64 {
	switch {
	case score < 0:
		return 0
	case score > 1:
		return 1
	default:
		return score
	}
}
