package validate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// Mode selects the validation strategy.
type Mode string

const (
	ModeRule   Mode = "rule"
	ModeLLM    Mode = "llm"
	ModeHybrid Mode = "hybrid"
)

// ErrNoJudge reports llm or hybrid validation without a configured judge.
var ErrNoJudge = errors.New("llm validation requested but no judge is configured")

// ParseMode normalizes a mode string. Empty input returns "" and no error.
func ParseMode(value string) (Mode, error) {
	switch mode := Mode(strings.ToLower(strings.TrimSpace(value))); mode {
	case "", ModeRule, ModeLLM, ModeHybrid:
		return mode, nil
	default:
		return "", fmt.Errorf("unsupported validation mode %q (expected rule|llm|hybrid)", value)
	}
}

// ResolveMode returns the first non-empty mode in precedence order
// (case, run, config), falling back to rule.
func ResolveMode(candidates ...Mode) Mode {
	for _, mode := range candidates {
		if mode != "" {
			return mode
		}
	}
	return ModeRule
}

// Input is one answer to validate.
type Input struct {
	Question string
	Expected string
	Actual   string
	Rules    Rules
	Mode     Mode
}

// Verdict is the judge's assessment.
type Verdict struct {
	Passed bool    `json:"passed"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason,omitempty"`
}

// Judge grades an answer with a model.
type Judge interface {
	Judge(ctx context.Context, in Input) (Verdict, error)
}

// Result is the combined validation outcome.
type Result struct {
	Mode   Mode     `json:"mode"`
	Passed bool     `json:"passed"`
	Checks []Check  `json:"checks,omitempty"`
	Judge  *Verdict `json:"judge,omitempty"`
}

// Validator applies rule, llm or hybrid validation.
type Validator struct {
	Judge       Judge
	DefaultMode Mode
}

// Validate resolves the mode for in and runs it. Hybrid passes only when
// both the rules and the judge pass; the judge is skipped when rules fail.
func (v *Validator) Validate(ctx context.Context, in Input) (Result, error) {
	mode := ResolveMode(in.Mode, v.DefaultMode)
	ctx, span := otel.Tracer("github.com/foundationallm/foundationallm-sub000/internal/validate").Start(ctx, "validate")
	defer span.End()
	span.SetAttributes(attribute.String("fllm.validation_mode", string(mode)))

	result := Result{Mode: mode}
	if mode == ModeRule || mode == ModeHybrid {
		result.Checks = RunRules(in.Actual, in.Expected, in.Rules)
		result.Passed = AllPassed(result.Checks)
		if mode == ModeRule || !result.Passed {
			span.SetAttributes(attribute.Bool("fllm.passed", result.Passed))
			return result, nil
		}
	}
	if v.Judge == nil {
		return result, ErrNoJudge
	}
	verdict, err := v.Judge.Judge(ctx, in)
	if err != nil {
		span.RecordError(err)
		return result, fmt.Errorf("judge: %w", err)
	}
	result.Judge = &verdict
	result.Checks = append(result.Checks, Check{Name: "llm_judge", Passed: verdict.Passed, Detail: verdict.Reason})
	result.Passed = verdict.Passed
	span.SetAttributes(attribute.Bool("fllm.passed", result.Passed))
	return result, nil
}
