//go:build cucumber

package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cucumber/godog"

	"github.com/foundationallm/foundationallm-sub000/internal/app"
	"github.com/foundationallm/foundationallm-sub000/internal/config"
	"github.com/foundationallm/foundationallm-sub000/internal/harness"
	"github.com/foundationallm/foundationallm-sub000/internal/report"
)

func TestRunSuiteScenarios(t *testing.T) {
	originalCore := newCore
	t.Cleanup(func() { newCore = originalCore })

	suite := godog.TestSuite{
		Name:                "run-suite",
		ScenarioInitializer: func(ctx *godog.ScenarioContext) { initializeRunScenario(ctx, t) },
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{filepath.Join("testdata", "features", "run-suite.feature")},
			Strict:   true,
			TestingT: t,
		},
	}
	if suite.Run() != 0 {
		t.Fatalf("non-zero godog status")
	}
}

type runScenario struct {
	t       *testing.T
	root    string
	config  string
	core    *fakeCore
	code    int
	stdout  string
	stderr  string
	lastRun string
}

func initializeRunScenario(ctx *godog.ScenarioContext, t *testing.T) {
	s := &runScenario{t: t}
	ctx.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		*s = runScenario{t: t, core: &fakeCore{answer: func() string { return "" }}}
		newCore = func(*app.Env) (harness.Completer, error) { return s.core, nil }
		return ctx, nil
	})
	ctx.Step(`^a scaffolded project with the smoke suite$`, s.givenProject)
	ctx.Step(`^the agent answers "([^"]*)"$`, s.givenAnswer)
	ctx.Step(`^I run "([^"]+)"$`, s.whenIRun)
	ctx.Step(`^I generate a regression suite from the last run$`, s.whenIGenerateRegression)
	ctx.Step(`^the exit code is (\d+)$`, s.thenExitCode)
	ctx.Step(`^the run passed (\d+) of (\d+) cases$`, s.thenRunPassed)
	ctx.Step(`^stdout contains "([^"]+)"$`, func(text string) error { return contains("stdout", s.stdout, text) })
	ctx.Step(`^stderr contains "([^"]+)"$`, func(text string) error { return contains("stderr", s.stderr, text) })
}

func (s *runScenario) givenProject() error {
	s.root = s.t.TempDir()
	if _, err := config.Scaffold(s.root); err != nil {
		return err
	}
	s.config = config.ConfigPath(s.root)
	writeFile(s.t, filepath.Join(s.root, config.DefaultSuitesDir, "smoke.csv"), smokeSuite)
	return nil
}

func (s *runScenario) givenAnswer(answer string) error {
	s.core.answer = func() string { return answer }
	return nil
}

func (s *runScenario) whenIRun(line string) error {
	fields := strings.Fields(line)
	args := append([]string{fields[0], "--config", s.config}, fields[1:]...)
	s.code, s.stdout, s.stderr = runCLI(args...)
	for _, l := range strings.Split(s.stdout, "\n") {
		if strings.HasPrefix(l, "Results:") {
			s.lastRun = strings.TrimSpace(strings.TrimPrefix(l, "Results:"))
		}
	}
	return nil
}

func (s *runScenario) whenIGenerateRegression() error {
	if s.lastRun == "" {
		return fmt.Errorf("no run recorded: %s", s.stderr)
	}
	out := filepath.Join(s.root, config.DefaultSuitesDir, "regression.csv")
	s.code, s.stdout, s.stderr = runCLI("generate", "--from-results", s.lastRun, "--out", out)
	return nil
}

func (s *runScenario) thenExitCode(code int) error {
	if s.code != code {
		return fmt.Errorf("expected exit %d, got %d: %s", code, s.code, s.stderr)
	}
	return nil
}

func (s *runScenario) thenRunPassed(passed, total int) error {
	results, err := report.LoadResults(s.lastRun)
	if err != nil {
		return err
	}
	if results.Summary.Passed != passed || results.Summary.Total != total {
		return fmt.Errorf("expected %d/%d, got %d/%d", passed, total, results.Summary.Passed, results.Summary.Total)
	}
	return nil
}

func contains(name, output, text string) error {
	if !strings.Contains(output, text) {
		return fmt.Errorf("%s does not contain %q: %s", name, text, output)
	}
	return nil
}
