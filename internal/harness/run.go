// Package harness runs test suites against a FoundationaLLM agent with a
// bounded worker pool and validates every answer.
package harness

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/foundationallm/foundationallm-sub000/internal/coreapi"
	"github.com/foundationallm/foundationallm-sub000/internal/logging"
	"github.com/foundationallm/foundationallm-sub000/internal/suite"
	"github.com/foundationallm/foundationallm-sub000/internal/validate"
)

// DefaultWorkers bounds concurrency when Options.Workers is unset.
const DefaultWorkers = 4

// Completer is the Core API surface the harness needs.
type Completer interface {
	CreateSession(ctx context.Context, name string) (coreapi.Session, error)
	UploadFile(ctx context.Context, sessionID, agentName, filePath string) (coreapi.Attachment, error)
	Completion(ctx context.Context, req coreapi.CompletionRequest) (coreapi.CompletionResponse, error)
}

// CaseRecorder receives per-case metrics.
type CaseRecorder interface {
	ObserveCase(status string, latency time.Duration)
}

// Options configures a harness run.
type Options struct {
	Client         Completer
	Agent          string
	Workers        int
	CreateSessions bool
	// Mode is the run default; a case's own mode wins.
	Mode      validate.Mode
	Validator *validate.Validator
	// IDs and Tags restrict the run to matching cases.
	IDs  []string
	Tags []string
	// CaseTimeout bounds each case; zero means no limit.
	CaseTimeout time.Duration
	Observer    Observer
	Metrics     CaseRecorder
	Logger      *zap.SugaredLogger
	RunID       string
	Now         func() time.Time
	Rand        io.Reader
}

type runner struct {
	opts      Options
	suite     suite.Suite
	runID     string
	validator *validate.Validator
	observer  Observer
	logger    *zap.SugaredLogger
	now       func() time.Time
}

// Run evaluates every selected case of s. Per-case failures are recorded on
// the results; the returned error covers setup problems only. Cases not
// started before ctx is cancelled are marked skipped.
func Run(ctx context.Context, s suite.Suite, opts Options) (Results, error) {
	if opts.Client == nil {
		return Results{}, fmt.Errorf("core api client is required")
	}
	if strings.TrimSpace(opts.Agent) == "" {
		return Results{}, fmt.Errorf("agent is required")
	}
	selected, err := suite.Filter(s, opts.IDs, opts.Tags)
	if err != nil {
		return Results{}, err
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	runID := opts.RunID
	if runID == "" {
		random := opts.Rand
		if random == nil {
			random = rand.Reader
		}
		runID, err = NewRunIDWithRand(now(), random)
		if err != nil {
			return Results{}, err
		}
	}
	workers := opts.Workers
	if workers < 1 {
		workers = DefaultWorkers
	}
	validator := opts.Validator
	if validator == nil {
		validator = &validate.Validator{DefaultMode: opts.Mode}
	}
	observer := opts.Observer
	if observer == nil {
		observer = MultiObserver(nil)
	}
	r := &runner{
		opts:      opts,
		suite:     selected,
		runID:     runID,
		validator: validator,
		observer:  observer,
		logger:    logging.OrNop(opts.Logger).With("run_id", runID, "suite", selected.Name),
		now:       now,
	}

	results := Results{
		RunID:     runID,
		Suite:     selected.Name,
		SuitePath: selected.Path,
		Agent:     opts.Agent,
		Mode:      validate.ResolveMode(opts.Mode, validator.DefaultMode),
		Columns:   selected.Columns,
		StartedAt: now(),
	}
	ctx, span := otel.Tracer("github.com/foundationallm/foundationallm-sub000/internal/harness").Start(ctx, "harness.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("fllm.run_id", runID),
		attribute.String("fllm.suite", selected.Name),
		attribute.Int("fllm.cases", len(selected.Cases)),
	)

	observer.OnRunStart(runID, selected.Name, opts.Agent, len(selected.Cases))
	for index, item := range selected.Cases {
		r.emit(Event{Index: index, CaseID: item.ID, Question: item.Question, Type: EventQueued})
	}
	r.logger.Infow("run started", "agent", opts.Agent, "cases", len(selected.Cases), "workers", workers)

	cases := make([]CaseResult, len(selected.Cases))
	var group errgroup.Group
	group.SetLimit(workers)
	for index, item := range selected.Cases {
		group.Go(func() error {
			cases[index] = r.runCase(ctx, index, item)
			return nil
		})
	}
	_ = group.Wait()

	results.Cases = cases
	results.FinishedAt = now()
	results.Summary = Summarize(cases)
	span.SetAttributes(attribute.Float64("fllm.pass_rate", results.Summary.PassRate))
	r.logger.Infow("run finished",
		"passed", results.Summary.Passed,
		"failed", results.Summary.Failed,
		"errored", results.Summary.Errored,
		"skipped", results.Summary.Skipped,
		"pass_rate", results.Summary.PassRate,
	)
	observer.OnRunEnd(results)
	return results, nil
}

func (r *runner) runCase(ctx context.Context, index int, item suite.Case) CaseResult {
	result := CaseResult{
		Index:    index,
		ID:       item.ID,
		Question: item.Question,
		Filename: item.Filename,
		Expected: item.Expected,
		Rules:    item.Rules,
		Tags:     item.Tags,
		Extra:    item.Extra,
		Mode:     validate.ResolveMode(item.Mode, r.opts.Mode, r.validator.DefaultMode),
	}
	if err := ctx.Err(); err != nil {
		return r.finish(result, StatusSkipped, err, 0)
	}
	parent := ctx

	ctx, span := otel.Tracer("github.com/foundationallm/foundationallm-sub000/internal/harness").Start(ctx, "harness.case")
	defer span.End()
	span.SetAttributes(attribute.String("fllm.case_id", item.ID))
	if r.opts.CaseTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.CaseTimeout)
		defer cancel()
	}
	r.emit(Event{Index: index, CaseID: item.ID, Question: item.Question, Type: EventRunning})

	if r.opts.CreateSessions {
		session, err := r.opts.Client.CreateSession(ctx, fmt.Sprintf("fllm %s %s %s", r.suite.Name, r.runID, item.ID))
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return r.fail(parent, result, fmt.Errorf("create session: %w", err), 0)
		}
		result.SessionID = session.ID
	}

	var attachments []string
	if item.Filename != "" {
		attachment, err := r.opts.Client.UploadFile(ctx, result.SessionID, r.opts.Agent, r.suite.AttachmentPath(item))
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return r.fail(parent, result, fmt.Errorf("upload %s: %w", item.Filename, err), 0)
		}
		attachments = append(attachments, attachment.ObjectID)
	}

	started := time.Now()
	response, err := r.opts.Client.Completion(ctx, coreapi.CompletionRequest{
		UserPrompt:  item.Question,
		AgentName:   r.opts.Agent,
		SessionID:   result.SessionID,
		Attachments: attachments,
	})
	latency := time.Since(started)
	result.LatencySeconds = latency.Seconds()
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return r.fail(parent, result, fmt.Errorf("completion: %w", err), latency)
	}
	result.Actual = response.Text()
	result.Tokens = response.Tokens()
	if response.IsError || len(response.Errors) > 0 {
		message := strings.Join(response.Errors, "; ")
		if message == "" {
			message = "agent returned an error response"
		}
		return r.fail(parent, result, errors.New(message), latency)
	}

	r.emit(Event{Index: index, CaseID: item.ID, Question: item.Question, Type: EventValidating, Latency: latency})
	verdict, err := r.validator.Validate(ctx, validate.Input{
		Question: item.Question,
		Expected: item.Expected,
		Actual:   result.Actual,
		Rules:    item.Rules,
		Mode:     result.Mode,
	})
	result.Checks = verdict.Checks
	result.Judge = verdict.Judge
	if err != nil {
		return r.fail(parent, result, fmt.Errorf("validate: %w", err), latency)
	}
	result.Passed = verdict.Passed
	if !verdict.Passed {
		return r.finish(result, StatusFailed, nil, latency)
	}
	return r.finish(result, StatusPassed, nil, latency)
}

// fail records err on the case. Errors caused by cancelling the run turn
// into skips; a per-case timeout stays an error.
func (r *runner) fail(parent context.Context, result CaseResult, err error, latency time.Duration) CaseResult {
	if parent.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return r.finish(result, StatusSkipped, err, latency)
	}
	return r.finish(result, StatusError, err, latency)
}

// finish stamps the final status, emits the terminal event and records metrics.
func (r *runner) finish(result CaseResult, status Status, err error, latency time.Duration) CaseResult {
	result.Status = status
	if err != nil {
		result.Error = err.Error()
	}
	detail := result.Error
	if status == StatusFailed {
		detail = strings.Join(result.FailedChecks(), "; ")
	}
	if status == StatusError {
		r.logger.Warnw("case errored", "case", result.ID, "error", result.Error)
	}
	r.emit(Event{
		Index:    result.Index,
		CaseID:   result.ID,
		Question: result.Question,
		Type:     eventForStatus(status),
		Latency:  latency,
		Tokens:   result.Tokens,
		Error:    detail,
	})
	if r.opts.Metrics != nil {
		r.opts.Metrics.ObserveCase(string(status), latency)
	}
	return result
}

func (r *runner) emit(event Event) {
	event.EmittedAt = r.now()
	r.observer.OnCaseEvent(event)
}
