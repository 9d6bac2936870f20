package optimizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/foundationallm/foundationallm-sub000/internal/harness"
	"github.com/foundationallm/foundationallm-sub000/internal/history"
	"github.com/foundationallm/foundationallm-sub000/internal/llm"
	"github.com/foundationallm/foundationallm-sub000/internal/mgmtapi"
	"github.com/foundationallm/foundationallm-sub000/internal/prompt"
	"github.com/foundationallm/foundationallm-sub000/internal/suite"
)

// PromptStore reads and writes agent prompts, normally the Management API.
type PromptStore interface {
	GetAgent(ctx context.Context, name string) (json.RawMessage, error)
	GetPrompt(ctx context.Context, name string) (mgmtapi.Prompt, error)
	UpsertPrompt(ctx context.Context, p mgmtapi.Prompt) (mgmtapi.UpsertResult, error)
}

// Refiner proposes a new prompt prefix.
type Refiner interface {
	Refine(ctx context.Context, in prompt.RefinerInput) (string, error)
}

// Evaluator runs the test suite against the currently deployed prompt.
type Evaluator interface {
	Evaluate(ctx context.Context, iteration int) (harness.Results, error)
}

// History stores backups, iterations and the session summary.
type History interface {
	SaveBackup(ctx context.Context, sessionID string, backup history.Backup) error
	AppendIteration(ctx context.Context, it history.Iteration) error
	SaveSummary(ctx context.Context, summary history.Summary) error
}

// IterationRecorder counts iterations by decision.
type IterationRecorder interface {
	ObserveIteration(decision string)
}

// LLMRefiner asks a chat model to rewrite the prompt.
type LLMRefiner struct {
	Chat        llm.Chat
	Temperature *float32
}

// Refine implements Refiner. The reply's <prompt> block is used when present.
func (r *LLMRefiner) Refine(ctx context.Context, in prompt.RefinerInput) (string, error) {
	if r == nil || r.Chat == nil {
		return "", errors.New("refiner: chat model is not configured")
	}
	user, err := prompt.RenderRefinerPrompt(ctx, in)
	if err != nil {
		return "", fmt.Errorf("render refiner prompt: %w", err)
	}
	reply, err := r.Chat.Complete(ctx, []llm.Message{llm.System(prompt.RefinerSystem), llm.User(user)}, llm.Options{Temperature: r.Temperature})
	if err != nil {
		return "", fmt.Errorf("refine prompt: %w", err)
	}
	return prompt.ExtractTagged(reply, "prompt"), nil
}

// HarnessEvaluator runs a suite through the harness. When OutputDir is set
// every evaluation is written like a normal run.
type HarnessEvaluator struct {
	Suite     suite.Suite
	Options   harness.Options
	OutputDir string
	Render    harness.ReportRenderer
}

// Evaluate implements Evaluator.
func (e *HarnessEvaluator) Evaluate(ctx context.Context, iteration int) (harness.Results, error) {
	opts := e.Options
	opts.RunID = ""
	results, err := harness.Run(ctx, e.Suite, opts)
	if err != nil {
		return harness.Results{}, fmt.Errorf("evaluate iteration %d: %w", iteration, err)
	}
	if e.OutputDir != "" {
		if _, err := harness.WriteOutputs(ctx, results, e.OutputDir, e.Render); err != nil {
			return harness.Results{}, fmt.Errorf("write iteration %d outputs: %w", iteration, err)
		}
	}
	return results, nil
}

// failureExamples turns failed cases into refiner examples, at most limit.
func failureExamples(results harness.Results, limit int) []prompt.FailedExample {
	failures := results.Failures()
	if limit > 0 && len(failures) > limit {
		failures = failures[:limit]
	}
	out := make([]prompt.FailedExample, 0, len(failures))
	for _, item := range failures {
		out = append(out, prompt.FailedExample{
			Question:     item.Question,
			Expected:     item.Expected,
			Actual:       item.Actual,
			FailedChecks: item.FailedChecks(),
			Error:        item.Error,
		})
	}
	return out
}

// normalizePrompt compares prompts ignoring surrounding whitespace.
func normalizePrompt(text string) string {
	return strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
}
