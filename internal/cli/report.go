package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/foundationallm/foundationallm-sub000/internal/harness"
	"github.com/foundationallm/foundationallm-sub000/internal/report"
)

func runReport(cmd *Command) func(args []string, stdout, stderr io.Writer) int {
	return func(args []string, stdout, stderr io.Writer) int {
		if wantsHelp(args) {
			printCommandUsage(cmd, stdout)
			return ExitOK
		}
		flags := newFlagSet(cmd, stderr)
		configPath := flags.String("config", "", "Path to config file")
		inputDir := flags.String("dir", "", "Results directory (default: harness.output_dir)")
		suiteName := flags.String("suite", "", "Suite the run ids belong to")
		outputPath := flags.String("output", "", "Report output path")
		if code, ok := parseFlags(cmd, flags, args, stdout, stderr); !ok {
			return code
		}
		refs := flags.Args()
		if len(refs) == 0 {
			if *suiteName == "" {
				fmt.Fprintln(stderr, "Missing run reference")
				printCommandUsage(cmd, stderr)
				return ExitUsage
			}
			refs = []string{"latest"}
		}

		dir := *inputDir
		if dir == "" && needsOutputDir(refs) {
			env, err := loadEnv(*configPath, nil)
			if err != nil {
				fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
				return ExitError
			}
			dir = env.OutputDir()
		}

		runs := make([]harness.Results, 0, len(refs))
		for _, ref := range refs {
			var (
				results harness.Results
				err     error
			)
			if strings.HasSuffix(ref, ".json") {
				results, err = report.LoadResults(ref)
			} else {
				results, _, err = report.ResolveRun(dir, *suiteName, ref)
			}
			if err != nil {
				fmt.Fprintf(stderr, "Warning: %v\n", err)
				continue
			}
			runs = append(runs, results)
		}
		if len(runs) == 0 {
			fmt.Fprintln(stderr, "No runs found")
			return ExitError
		}

		html, err := report.RenderHTML(context.Background(), runs)
		if err != nil {
			fmt.Fprintf(stderr, "Failed to render report: %v\n", err)
			return ExitError
		}
		target := *outputPath
		if target == "" {
			base := dir
			if base == "" {
				base = filepath.Dir(refs[0])
			}
			target = filepath.Join(base, "report.html")
		}
		if err := os.WriteFile(target, []byte(html), 0o644); err != nil {
			fmt.Fprintf(stderr, "Failed to write report: %v\n", err)
			return ExitError
		}
		fmt.Fprintf(stdout, "Report written to %s\n", target)
		return ExitOK
	}
}

func needsOutputDir(refs []string) bool {
	for _, ref := range refs {
		if !strings.HasSuffix(ref, ".json") {
			return true
		}
	}
	return false
}
