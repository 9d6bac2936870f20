package optimizer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/foundationallm/foundationallm-sub000/internal/harness"
	"github.com/foundationallm/foundationallm-sub000/internal/history"
	"github.com/foundationallm/foundationallm-sub000/internal/logging"
	"github.com/foundationallm/foundationallm-sub000/internal/mgmtapi"
	"github.com/foundationallm/foundationallm-sub000/internal/prompt"
	"github.com/foundationallm/foundationallm-sub000/internal/telemetry"
)

// Status is the final state of an optimization session.
type Status string

const (
	StatusReached   Status = "reached"
	StatusExhausted Status = "exhausted"
	StatusFailed    Status = "failed"
)

// Defaults applied when a Request leaves a field unset.
const (
	DefaultMaxIterations  = 5
	DefaultTargetPassRate = 0.9
	DefaultMaxExamples    = 5
)

// Request describes one optimization session.
type Request struct {
	Agent string
	// PromptName is resolved from the agent definition when empty.
	PromptName     string
	Suite          string
	MaxIterations  int
	TargetPassRate float64
	// DryRun never uploads a prompt; candidates are recorded unevaluated.
	DryRun bool
}

// Candidate is a prompt prefix with its measured pass rate.
type Candidate struct {
	Prefix    string
	PassRate  float64
	Iteration int
	RunID     string
}

// Outcome reports how a session ended.
type Outcome struct {
	SessionID        string
	Status           Status
	PromptName       string
	Best             Candidate
	Iterations       []history.Iteration
	BaselinePassRate float64
	FinalPassRate    float64
}

// Optimizer runs the refine, deploy and evaluate loop.
type Optimizer struct {
	Prompts   PromptStore
	Refiner   Refiner
	Evaluator Evaluator
	History   History
	Metrics   IterationRecorder
	Logger    *zap.SugaredLogger
	// MaxExamples caps failing cases shown to the refiner.
	MaxExamples  int
	NewSessionID func() string
	Now          func() time.Time
}

// session carries loop state for one Optimize call.
type session struct {
	o        *Optimizer
	req      Request
	id       string
	logger   *zap.SugaredLogger
	original mgmtapi.Prompt
	// deployed is the prefix currently live on the agent.
	deployed string
	uploaded bool
	outcome  Outcome
	started  time.Time
}

// Optimize improves the agent prompt until the target pass rate is reached
// or the iteration budget is spent. On exhaustion the best prompt seen is
// deployed; on error the original prompt is restored.
func (o *Optimizer) Optimize(ctx context.Context, req Request) (Outcome, error) {
	if o.Prompts == nil || o.Refiner == nil || o.Evaluator == nil {
		return Outcome{}, errors.New("optimizer: prompts, refiner and evaluator are required")
	}
	if req.Agent == "" {
		return Outcome{}, errors.New("optimizer: agent is required")
	}
	if req.MaxIterations <= 0 {
		req.MaxIterations = DefaultMaxIterations
	}
	if req.TargetPassRate <= 0 {
		req.TargetPassRate = DefaultTargetPassRate
	}
	if req.TargetPassRate > 1 {
		return Outcome{}, fmt.Errorf("optimizer: target pass rate %.2f exceeds 1", req.TargetPassRate)
	}

	newID := o.NewSessionID
	if newID == nil {
		newID = uuid.NewString
	}
	s := &session{o: o, req: req, id: newID(), started: o.now()}
	s.logger = logging.OrNop(o.Logger).With("session_id", s.id, "agent", req.Agent)
	s.outcome = Outcome{SessionID: s.id, Status: StatusFailed}

	ctx, span := telemetry.Tracer("optimizer").Start(ctx, "optimizer.session")
	span.SetAttributes(
		attribute.String("fllm.agent", req.Agent),
		attribute.String("fllm.session_id", s.id),
		attribute.Int("fllm.max_iterations", req.MaxIterations),
		attribute.Bool("fllm.dry_run", req.DryRun),
	)
	defer span.End()

	err := s.run(ctx)
	if err != nil {
		s.outcome.Status = StatusFailed
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if s.uploaded {
			if restoreErr := s.restoreOriginal(ctx); restoreErr != nil {
				err = errors.Join(err, fmt.Errorf("restore original prompt: %w", restoreErr))
			} else {
				s.outcome.FinalPassRate = s.outcome.BaselinePassRate
			}
		}
	}
	s.saveSummary(ctx, err)
	span.SetAttributes(attribute.String("fllm.status", string(s.outcome.Status)))
	s.logger.Infow("optimization finished",
		"status", s.outcome.Status,
		"baseline_pass_rate", s.outcome.BaselinePassRate,
		"final_pass_rate", s.outcome.FinalPassRate,
		"iterations", len(s.outcome.Iterations))
	return s.outcome, err
}

func (s *session) run(ctx context.Context) error {
	name, err := s.resolvePromptName(ctx)
	if err != nil {
		return err
	}
	s.outcome.PromptName = name
	original, err := s.o.Prompts.GetPrompt(ctx, name)
	if err != nil {
		return fmt.Errorf("fetch prompt %s: %w", name, err)
	}
	if original.Name == "" {
		original.Name = name
	}
	s.original = original
	s.deployed = original.Prefix
	if s.o.History != nil {
		backup := history.Backup{
			Agent:      s.req.Agent,
			PromptName: name,
			Prefix:     original.Prefix,
			Suffix:     original.Suffix,
			Raw:        original.Raw,
			CreatedAt:  s.o.now(),
		}
		if err := s.o.History.SaveBackup(ctx, s.id, backup); err != nil {
			return fmt.Errorf("write backup: %w", err)
		}
	}

	baseline, err := s.o.Evaluator.Evaluate(ctx, 0)
	if err != nil {
		return err
	}
	best := Candidate{Prefix: original.Prefix, PassRate: baseline.Summary.PassRate, RunID: baseline.RunID}
	bestResults := baseline
	s.outcome.BaselinePassRate = best.PassRate
	s.outcome.Best = best
	s.outcome.FinalPassRate = best.PassRate
	if err := s.record(ctx, 0, original.Prefix, baseline, history.DecisionBaseline, ""); err != nil {
		return err
	}
	if best.PassRate >= s.req.TargetPassRate {
		s.outcome.Status = StatusReached
		return nil
	}

	var rejected []string
	for i := 1; i <= s.req.MaxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		candidate, err := s.o.Refiner.Refine(ctx, prompt.RefinerInput{
			CurrentPrompt:    best.Prefix,
			PassRate:         best.PassRate,
			TargetPassRate:   s.req.TargetPassRate,
			Iteration:        i,
			Failures:         failureExamples(bestResults, s.maxExamples()),
			PreviousAttempts: rejected,
		})
		if err != nil {
			return fmt.Errorf("iteration %d: %w", i, err)
		}
		candidate = normalizePrompt(candidate)
		if candidate == "" || candidate == normalizePrompt(best.Prefix) {
			if err := s.record(ctx, i, candidate, harness.Results{}, history.DecisionSkipped, "empty or unchanged candidate"); err != nil {
				return err
			}
			continue
		}
		if s.req.DryRun {
			rejected = append(rejected, candidate)
			if err := s.record(ctx, i, candidate, harness.Results{}, history.DecisionDryRun, ""); err != nil {
				return err
			}
			continue
		}

		if err := s.deploy(ctx, candidate); err != nil {
			return fmt.Errorf("iteration %d: %w", i, err)
		}
		results, err := s.o.Evaluator.Evaluate(ctx, i)
		if err != nil {
			return err
		}
		rate := results.Summary.PassRate
		switch {
		case rate >= s.req.TargetPassRate:
			best = Candidate{Prefix: candidate, PassRate: rate, Iteration: i, RunID: results.RunID}
			s.outcome.Best = best
			s.outcome.FinalPassRate = rate
			s.outcome.Status = StatusReached
			return s.record(ctx, i, candidate, results, history.DecisionAccepted, "")
		case rate > best.PassRate:
			best = Candidate{Prefix: candidate, PassRate: rate, Iteration: i, RunID: results.RunID}
			bestResults = results
			s.outcome.Best = best
			s.outcome.FinalPassRate = rate
			if err := s.record(ctx, i, candidate, results, history.DecisionImproved, ""); err != nil {
				return err
			}
		default:
			rejected = append(rejected, candidate)
			if err := s.record(ctx, i, candidate, results, history.DecisionRejected, ""); err != nil {
				return err
			}
		}
	}

	s.outcome.Status = StatusExhausted
	if s.deployed != best.Prefix {
		if best.Iteration == 0 {
			if err := s.restoreOriginal(ctx); err != nil {
				return fmt.Errorf("revert to backup: %w", err)
			}
		} else if err := s.deploy(ctx, best.Prefix); err != nil {
			return fmt.Errorf("redeploy best prompt: %w", err)
		}
	}
	return nil
}

func (s *session) resolvePromptName(ctx context.Context) (string, error) {
	if s.req.PromptName != "" {
		return s.req.PromptName, nil
	}
	agent, err := s.o.Prompts.GetAgent(ctx, s.req.Agent)
	if err != nil {
		return "", fmt.Errorf("fetch agent %s: %w", s.req.Agent, err)
	}
	name, err := mgmtapi.AgentPromptName(agent)
	if err != nil {
		return "", fmt.Errorf("resolve prompt for agent %s: %w", s.req.Agent, err)
	}
	return name, nil
}

// deploy uploads the original prompt resource with a new prefix.
func (s *session) deploy(ctx context.Context, prefix string) error {
	updated, err := s.original.WithPrefix(prefix)
	if err != nil {
		return fmt.Errorf("build prompt: %w", err)
	}
	s.uploaded = true
	if _, err := s.o.Prompts.UpsertPrompt(ctx, updated); err != nil {
		return fmt.Errorf("upload prompt: %w", err)
	}
	s.deployed = prefix
	s.logger.Debugw("prompt deployed", "prompt", s.original.Name, "chars", len(prefix))
	return nil
}

// restoreOriginal re-uploads the backed-up prompt resource unchanged. It
// uses a fresh context so cancellation does not leave a candidate live.
func (s *session) restoreOriginal(ctx context.Context) error {
	restoreCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if _, err := s.o.Prompts.UpsertPrompt(restoreCtx, s.original); err != nil {
		return err
	}
	s.deployed = s.original.Prefix
	s.logger.Infow("original prompt restored", "prompt", s.original.Name)
	return nil
}

func (s *session) record(ctx context.Context, index int, candidate string, results harness.Results, decision history.Decision, detail string) error {
	it := history.Iteration{
		SessionID:  s.id,
		Agent:      s.req.Agent,
		PromptName: s.original.Name,
		Suite:      s.req.Suite,
		Index:      index,
		Candidate:  candidate,
		PassRate:   results.Summary.PassRate,
		Passed:     results.Summary.Passed,
		Total:      results.Summary.Total - results.Summary.Skipped,
		Decision:   decision,
		RunID:      results.RunID,
		Error:      detail,
		CreatedAt:  s.o.now(),
	}
	s.outcome.Iterations = append(s.outcome.Iterations, it)
	if s.o.Metrics != nil {
		s.o.Metrics.ObserveIteration(string(decision))
	}
	s.logger.Infow("iteration recorded",
		"iteration", index,
		"decision", decision,
		"pass_rate", it.PassRate)
	if s.o.History == nil {
		return nil
	}
	if err := s.o.History.AppendIteration(ctx, it); err != nil {
		return fmt.Errorf("record iteration %d: %w", index, err)
	}
	return nil
}

func (s *session) saveSummary(ctx context.Context, runErr error) {
	if s.o.History == nil {
		return
	}
	summary := history.Summary{
		SessionID:        s.id,
		Agent:            s.req.Agent,
		PromptName:       s.outcome.PromptName,
		Suite:            s.req.Suite,
		Status:           string(s.outcome.Status),
		BaselinePassRate: s.outcome.BaselinePassRate,
		BestPassRate:     s.outcome.Best.PassRate,
		FinalPassRate:    s.outcome.FinalPassRate,
		Iterations:       len(s.outcome.Iterations),
		StartedAt:        s.started,
		FinishedAt:       s.o.now(),
	}
	if runErr != nil {
		summary.Error = runErr.Error()
	}
	if err := s.o.History.SaveSummary(context.WithoutCancel(ctx), summary); err != nil {
		s.logger.Warnw("write session summary", "error", err)
	}
}

func (s *session) maxExamples() int {
	if s.o.MaxExamples > 0 {
		return s.o.MaxExamples
	}
	return DefaultMaxExamples
}

func (o *Optimizer) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now().UTC()
}
