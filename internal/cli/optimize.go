package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/foundationallm/foundationallm-sub000/internal/harness"
	"github.com/foundationallm/foundationallm-sub000/internal/history"
	"github.com/foundationallm/foundationallm-sub000/internal/optimizer"
	"github.com/foundationallm/foundationallm-sub000/internal/report"
	"github.com/foundationallm/foundationallm-sub000/internal/telemetry"
	"github.com/foundationallm/foundationallm-sub000/internal/validate"
)

func runOptimize(cmd *Command) func(args []string, stdout, stderr io.Writer) int {
	return func(args []string, stdout, stderr io.Writer) int {
		if wantsHelp(args) {
			printCommandUsage(cmd, stdout)
			return ExitOK
		}
		flags := newFlagSet(cmd, stderr)
		configPath := flags.String("config", "", "Path to config file")
		agent := flags.String("agent", "", "Agent whose prompt is optimized (default: core_api.agent)")
		promptName := flags.String("prompt", "", "Prompt resource name (default: the agent's main prompt)")
		maxIterations := flags.Int("max-iterations", 0, "Refinement rounds (default: optimizer.max_iterations)")
		target := flags.Float64("target", 0, "Target pass rate (default: optimizer.target_pass_rate)")
		dryRun := flags.Bool("dry-run", false, "Generate candidates without deploying them")
		workers := flags.Int("workers", 0, "Concurrent test cases (default: harness.workers)")
		mode := flags.String("mode", "", "Default validation mode: rule|llm|hybrid")
		verbose := flags.Bool("verbose", false, "Print every case event")
		debug := flags.Bool("debug", false, "Enable debug logging")
		if code, ok := parseFlags(cmd, flags, args, stdout, stderr); !ok {
			return code
		}
		if flags.NArg() != 1 {
			fmt.Fprintln(stderr, "Expected exactly one suite")
			printCommandUsage(cmd, stderr)
			return ExitUsage
		}
		if *target < 0 || *target > 1 {
			fmt.Fprintln(stderr, "--target must be between 0 and 1")
			return ExitUsage
		}

		logger := newLogger(*debug, stderr)
		defer func() { _ = logger.Sync() }()
		env, err := loadEnv(*configPath, logger)
		if err != nil {
			fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
			return ExitError
		}
		loaded, err := resolveSuite(env, flags.Arg(0))
		if err != nil {
			fmt.Fprintf(stderr, "%v\n", err)
			return ExitError
		}
		defaultMode := validate.Mode(env.Config.Harness.ValidationMode)
		if *mode != "" {
			if defaultMode, err = validate.ParseMode(*mode); err != nil {
				fmt.Fprintf(stderr, "%v\n", err)
				return ExitUsage
			}
		}
		validator, err := buildValidator(env, loaded, defaultMode)
		if err != nil {
			fmt.Fprintf(stderr, "Failed to configure validation: %v\n", err)
			return ExitError
		}
		client, err := newCore(env)
		if err != nil {
			fmt.Fprintf(stderr, "Failed to configure core api: %v\n", err)
			return ExitError
		}
		prompts, err := newPrompts(env)
		if err != nil {
			fmt.Fprintf(stderr, "Failed to configure management api: %v\n", err)
			return ExitError
		}
		chat, err := newChat(env)
		if err != nil {
			fmt.Fprintf(stderr, "Failed to configure chat model: %v\n", err)
			return ExitError
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		shutdown, err := telemetry.Setup(ctx, env.Config.Telemetry, Version)
		if err != nil {
			fmt.Fprintf(stderr, "Failed to start telemetry: %v\n", err)
			return ExitError
		}
		defer func() { _ = shutdown(context.Background()) }()

		recorder, closeHistory, err := env.History(ctx)
		if err != nil {
			fmt.Fprintf(stderr, "Failed to open history: %v\n", err)
			return ExitError
		}
		defer func() { _ = closeHistory() }()

		agentName := *agent
		if agentName == "" {
			agentName = env.Config.CoreAPI.Agent
		}
		workerCount := *workers
		if workerCount <= 0 {
			workerCount = env.Config.Harness.Workers
		}
		var observer harness.Observer
		if *verbose {
			observer = harness.NewVerboseObserver(stdout, false)
		}
		opt := &optimizer.Optimizer{
			Prompts: prompts,
			Refiner: &optimizer.LLMRefiner{Chat: chat},
			Evaluator: &optimizer.HarnessEvaluator{
				Suite: loaded,
				Options: harness.Options{
					Client:         client,
					Agent:          agentName,
					Workers:        workerCount,
					CreateSessions: env.Config.Harness.CreateSessions,
					Mode:           defaultMode,
					Validator:      validator,
					CaseTimeout:    time.Duration(env.Config.Harness.TimeoutSeconds) * time.Second,
					Observer:       observer,
					Metrics:        env.Metrics,
					Logger:         logger,
				},
				OutputDir: env.OutputDir(),
				Render:    report.RenderRun,
			},
			History:     recorder,
			Metrics:     env.Metrics,
			Logger:      logger,
			MaxExamples: env.Config.Optimizer.MaxExamples,
		}

		maxIter := *maxIterations
		if maxIter <= 0 {
			maxIter = env.Config.Optimizer.MaxIterations
		}
		targetRate := *target
		if targetRate == 0 {
			targetRate = env.Config.Optimizer.TargetPassRate
		}
		outcome, err := opt.Optimize(ctx, optimizer.Request{
			Agent:          agentName,
			PromptName:     *promptName,
			Suite:          loaded.Name,
			MaxIterations:  maxIter,
			TargetPassRate: targetRate,
			DryRun:         *dryRun,
		})
		if len(outcome.Iterations) > 0 {
			if tableErr := printIterations(stdout, outcome.Iterations); tableErr != nil {
				fmt.Fprintf(stderr, "%v\n", tableErr)
			}
		}
		if outcome.SessionID != "" {
			fmt.Fprintf(stdout, "Session: %s\n", outcome.SessionID)
		}
		if err != nil {
			fmt.Fprintf(stderr, "Optimization failed: %v\n", err)
			return ExitError
		}

		fmt.Fprintf(stdout, "Status: %s (baseline %s, best %s at iteration %d, final %s)\n",
			outcome.Status,
			formatRate(outcome.BaselinePassRate),
			formatRate(outcome.Best.PassRate),
			outcome.Best.Iteration,
			formatRate(outcome.FinalPassRate),
		)
		if outcome.Status == optimizer.StatusExhausted && !*dryRun {
			return ExitBelowThreshold
		}
		return ExitOK
	}
}

func printIterations(w io.Writer, iterations []history.Iteration) error {
	rows := make([][]string, 0, len(iterations))
	for _, it := range iterations {
		rate := formatRate(it.PassRate)
		counts := fmt.Sprintf("%d/%d", it.Passed, it.Total)
		if it.Decision == history.DecisionDryRun || it.Decision == history.DecisionSkipped {
			rate, counts = "-", "-"
		}
		rows = append(rows, []string{strconv.Itoa(it.Index), rate, counts, string(it.Decision), it.RunID})
	}
	return renderTable(w, []string{"Iteration", "Pass rate", "Passed", "Decision", "Run"}, rows)
}
