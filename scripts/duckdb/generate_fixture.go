// Command generate_fixture writes a history database with synthetic runs,
// for exercising `fllm history trend` and the DuckDB queries by hand.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/foundationallm/foundationallm-sub000/internal/duckdb"
	"github.com/foundationallm/foundationallm-sub000/internal/harness"
	"github.com/foundationallm/foundationallm-sub000/internal/validate"
)

// fixtureConfig defines the JSON config for generating a history fixture.
type fixtureConfig struct {
	Suite string `json:"suite"`
	Agent string `json:"agent"`
	Runs  int    `json:"runs"`
	Cases int    `json:"cases"`
	// FlakyEvery makes every Nth case alternate between pass and fail.
	FlakyEvery int `json:"flaky_every"`
}

func main() {
	configPath := flag.String("config", "", "path to fixture config JSON")
	outPath := flag.String("out", "", "output duckdb file path")
	flag.Parse()
	if *configPath == "" || *outPath == "" {
		fmt.Fprintln(os.Stderr, "usage: generate_fixture --config <path> --out <duckdb file>")
		os.Exit(2)
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(filepath.Dir(*outPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "mkdir output dir: %v\n", err)
		os.Exit(1)
	}
	if err := removeIfExists(*outPath); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	if err := generateFixture(ctx, *outPath, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "generate fixture: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %d runs of %s to %s\n", cfg.Runs, cfg.Suite, *outPath)
}

func loadConfig(path string) (fixtureConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return fixtureConfig{}, err
	}
	var cfg fixtureConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return fixtureConfig{}, err
	}
	if cfg.Suite == "" {
		cfg.Suite = "fixture"
	}
	if cfg.Agent == "" {
		cfg.Agent = "fixture-agent"
	}
	if cfg.Runs <= 0 || cfg.Cases <= 0 {
		return fixtureConfig{}, fmt.Errorf("runs and cases must be positive")
	}
	return cfg, nil
}

func generateFixture(ctx context.Context, path string, cfg fixtureConfig) error {
	store, err := duckdb.Open(ctx, path)
	if err != nil {
		return err
	}
	defer store.Close()

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for run := 0; run < cfg.Runs; run++ {
		startedAt := start.Add(time.Duration(run) * time.Hour)
		results := harness.Results{
			RunID:      harness.FormatRunID(startedAt, deterministicID("run", run)[:8]),
			Suite:      cfg.Suite,
			Agent:      cfg.Agent,
			Mode:       validate.ModeRule,
			StartedAt:  startedAt,
			FinishedAt: startedAt.Add(time.Minute),
		}
		for i := 0; i < cfg.Cases; i++ {
			results.Cases = append(results.Cases, fixtureCase(cfg, run, i))
		}
		results.Summary = harness.Summarize(results.Cases)
		if err := store.IngestRun(ctx, results); err != nil {
			return fmt.Errorf("ingest run %d: %w", run, err)
		}
	}
	return nil
}

// fixtureCase passes more cases as runs progress so the trend improves;
// flaky cases alternate regardless of the run.
func fixtureCase(cfg fixtureConfig, run, index int) harness.CaseResult {
	passed := index < (run+1)*cfg.Cases/cfg.Runs
	if cfg.FlakyEvery > 0 && index%cfg.FlakyEvery == 0 {
		passed = run%2 == 0
	}
	status := harness.StatusFailed
	actual := "unsure"
	if passed {
		status = harness.StatusPassed
		actual = fmt.Sprintf("answer %d", index)
	}
	return harness.CaseResult{
		Index:          index,
		ID:             fmt.Sprintf("case-%d", index+1),
		Question:       fmt.Sprintf("Fixture question %d?", index+1),
		Expected:       fmt.Sprintf("answer %d", index),
		Mode:           validate.ModeRule,
		Actual:         actual,
		Status:         status,
		Passed:         passed,
		Tokens:         40 + index,
		LatencySeconds: 0.5 + float64(index%5)/10,
	}
}

// removeIfExists deletes an existing fixture file so we always start fresh.
func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing fixture: %w", err)
	}
	return nil
}

// deterministicID generates a repeatable id for fixture rows.
func deterministicID(prefix string, index int) string {
	return uuid.NewSHA1(fixtureNamespace, []byte(fmt.Sprintf("%s-%d", prefix, index))).String()
}

var fixtureNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
