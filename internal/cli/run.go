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

	"go.uber.org/zap"

	"github.com/foundationallm/foundationallm-sub000/internal/app"
	"github.com/foundationallm/foundationallm-sub000/internal/harness"
	"github.com/foundationallm/foundationallm-sub000/internal/report"
	"github.com/foundationallm/foundationallm-sub000/internal/suite"
	"github.com/foundationallm/foundationallm-sub000/internal/telemetry"
	"github.com/foundationallm/foundationallm-sub000/internal/ui/live"
	"github.com/foundationallm/foundationallm-sub000/internal/validate"
)

// startLiveUI is a test seam for the Bubble Tea controller.
var startLiveUI = func(stdout io.Writer, noColor bool) liveController {
	return live.Start(stdout, live.Options{NoColor: noColor})
}

type liveController interface {
	harness.Observer
	Close()
	Wait()
}

func runRun(cmd *Command) func(args []string, stdout, stderr io.Writer) int {
	return func(args []string, stdout, stderr io.Writer) int {
		if wantsHelp(args) {
			printCommandUsage(cmd, stdout)
			return ExitOK
		}
		flags := newFlagSet(cmd, stderr)
		configPath := flags.String("config", "", "Path to config file")
		agent := flags.String("agent", "", "Agent name (default: core_api.agent)")
		workers := flags.Int("workers", 0, "Concurrent test cases (default: harness.workers)")
		mode := flags.String("mode", "", "Default validation mode: rule|llm|hybrid")
		tags := flags.String("tags", "", "Only run cases with one of these comma separated tags")
		ids := flags.String("ids", "", "Only run these comma separated case ids")
		outputDir := flags.String("output-dir", "", "Override harness.output_dir")
		minPassRate := flags.Float64("min-pass-rate", 0, "Exit with status 3 when the pass rate is below this value")
		uiMode := flags.String("ui", "auto", "Progress display: auto|live|plain")
		verbose := flags.Bool("verbose", false, "Print every case event")
		noColor := flags.Bool("no-color", false, "Disable colored output")
		debug := flags.Bool("debug", false, "Enable debug logging")
		if code, ok := parseFlags(cmd, flags, args, stdout, stderr); !ok {
			return code
		}
		if flags.NArg() != 1 {
			fmt.Fprintln(stderr, "Expected exactly one suite")
			printCommandUsage(cmd, stderr)
			return ExitUsage
		}
		if *minPassRate < 0 || *minPassRate > 1 {
			fmt.Fprintln(stderr, "--min-pass-rate must be between 0 and 1")
			return ExitUsage
		}
		display, err := resolveProgress(*uiMode, *verbose, *noColor, stdout, nil)
		if err != nil {
			fmt.Fprintf(stderr, "%v\n", err)
			return ExitUsage
		}
		if display.warning != "" {
			fmt.Fprintln(stderr, display.warning)
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
			defaultMode, err = validate.ParseMode(*mode)
			if err != nil {
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
		agentName := *agent
		if agentName == "" {
			agentName = env.Config.CoreAPI.Agent
		}
		workerCount := *workers
		if workerCount <= 0 {
			workerCount = env.Config.Harness.Workers
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		shutdown, err := telemetry.Setup(ctx, env.Config.Telemetry, Version)
		if err != nil {
			fmt.Fprintf(stderr, "Failed to start telemetry: %v\n", err)
			return ExitError
		}
		defer func() { _ = shutdown(context.Background()) }()

		var observer harness.Observer
		var controller liveController
		switch {
		case display.live:
			controller = startLiveUI(stdout, display.noColor)
			observer = controller
		case *verbose:
			observer = harness.NewVerboseObserver(stdout, display.noColor)
		}

		results, err := harness.Run(ctx, loaded, harness.Options{
			Client:         client,
			Agent:          agentName,
			Workers:        workerCount,
			CreateSessions: env.Config.Harness.CreateSessions,
			Mode:           defaultMode,
			Validator:      validator,
			IDs:            splitCSV(*ids),
			Tags:           splitCSV(*tags),
			CaseTimeout:    time.Duration(env.Config.Harness.TimeoutSeconds) * time.Second,
			Observer:       observer,
			Metrics:        env.Metrics,
			Logger:         logger,
		})
		if controller != nil {
			controller.Close()
			controller.Wait()
		}
		if err != nil {
			fmt.Fprintf(stderr, "Run failed: %v\n", err)
			return ExitError
		}

		dir := *outputDir
		if dir == "" {
			dir = env.OutputDir()
		}
		paths, err := harness.WriteOutputs(ctx, results, dir, report.RenderRun)
		if err != nil {
			fmt.Fprintf(stderr, "Failed to write outputs: %v\n", err)
			return ExitError
		}
		ingestRun(ctx, env, results, logger)

		if err := printRunSummary(stdout, results); err != nil {
			fmt.Fprintf(stderr, "%v\n", err)
		}
		fmt.Fprintf(stdout, "Results: %s\n", paths.ResultsPath())
		fmt.Fprintf(stdout, "Report: %s\n", paths.ReportPath())

		if *minPassRate > 0 && results.Summary.PassRate < *minPassRate {
			fmt.Fprintf(stderr, "Pass rate %s is below the required %s\n", formatRate(results.Summary.PassRate), formatRate(*minPassRate))
			return ExitBelowThreshold
		}
		return ExitOK
	}
}

// resolveSuite loads ref as a path or as a name under the suites dir.
func resolveSuite(env *app.Env, ref string) (suite.Suite, error) {
	path, err := suite.Resolve(env.SuitesDir(), ref)
	if err != nil {
		return suite.Suite{}, err
	}
	return suite.Load(path)
}

// buildValidator attaches the LLM judge only when a case resolves to llm or hybrid.
func buildValidator(env *app.Env, s suite.Suite, defaultMode validate.Mode) (*validate.Validator, error) {
	v := &validate.Validator{DefaultMode: defaultMode}
	if !needsJudge(s, defaultMode) {
		return v, nil
	}
	chat, err := newChat(env)
	if err != nil {
		return nil, err
	}
	v.Judge = &validate.LLMJudge{Chat: chat}
	return v, nil
}

func needsJudge(s suite.Suite, defaultMode validate.Mode) bool {
	for _, item := range s.Cases {
		switch validate.ResolveMode(item.Mode, defaultMode) {
		case validate.ModeLLM, validate.ModeHybrid:
			return true
		}
	}
	return false
}

// ingestRun copies results into the history database when one is configured.
// Failures are logged and never fail the run.
func ingestRun(ctx context.Context, env *app.Env, results harness.Results, logger *zap.SugaredLogger) {
	store, err := env.HistoryDB(ctx)
	if err != nil {
		logger.Warnw("history db unavailable", "error", err)
		return
	}
	if store == nil {
		return
	}
	defer func() { _ = store.Close() }()
	if err := store.IngestRun(ctx, results); err != nil {
		logger.Warnw("history db ingest failed", "run_id", results.RunID, "error", err)
	}
}

func printRunSummary(w io.Writer, results harness.Results) error {
	s := results.Summary
	fmt.Fprintf(w, "Run %s completed (suite %s, agent %s)\n", results.RunID, results.Suite, results.Agent)
	return renderTable(w,
		[]string{"Total", "Passed", "Failed", "Errors", "Skipped", "Pass rate", "Avg latency", "Tokens"},
		[][]string{{
			strconv.Itoa(s.Total),
			strconv.Itoa(s.Passed),
			strconv.Itoa(s.Failed),
			strconv.Itoa(s.Errored),
			strconv.Itoa(s.Skipped),
			formatRate(s.PassRate),
			fmt.Sprintf("%.2fs", s.AvgLatencySeconds),
			strconv.Itoa(s.TokensTotal),
		}},
	)
}
