package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/foundationallm/foundationallm-sub000/internal/generate"
	"github.com/foundationallm/foundationallm-sub000/internal/report"
	"github.com/foundationallm/foundationallm-sub000/internal/suite"
)

func runGenerate(cmd *Command) func(args []string, stdout, stderr io.Writer) int {
	return func(args []string, stdout, stderr io.Writer) int {
		if wantsHelp(args) {
			printCommandUsage(cmd, stdout)
			return ExitOK
		}
		flags := newFlagSet(cmd, stderr)
		configPath := flags.String("config", "", "Path to config file")
		topic := flags.String("topic", "", "Subject to write questions about")
		from := flags.String("from", "", "Source document to write questions about")
		fromResults := flags.String("from-results", "", "results.json whose passing cases become a regression suite")
		count := flags.Int("count", generate.DefaultCount, "Number of cases to request")
		out := flags.String("out", "", "Output suite path (.csv, .yaml or .json)")
		name := flags.String("name", "", "Suite name (default: output file name)")
		tags := flags.String("tags", "", "Comma separated tags added to every case")
		if code, ok := parseFlags(cmd, flags, args, stdout, stderr); !ok {
			return code
		}
		if strings.TrimSpace(*out) == "" {
			fmt.Fprintln(stderr, "Missing --out")
			return ExitUsage
		}
		sources := 0
		for _, value := range []string{*topic, *from, *fromResults} {
			if strings.TrimSpace(value) != "" {
				sources++
			}
		}
		if sources != 1 {
			fmt.Fprintln(stderr, "Exactly one of --topic, --from or --from-results is required")
			return ExitUsage
		}
		if _, err := suite.FormatFromPath(*out); err != nil {
			fmt.Fprintf(stderr, "%v\n", err)
			return ExitUsage
		}
		if fileExists(*out) {
			fmt.Fprintf(stderr, "Refusing to overwrite %s\n", *out)
			return ExitError
		}
		suiteName := strings.TrimSpace(*name)
		if suiteName == "" {
			suiteName = suite.NameFromPath(*out)
		}

		var generated suite.Suite
		if *fromResults != "" {
			results, err := report.LoadResults(*fromResults)
			if err != nil {
				fmt.Fprintf(stderr, "%v\n", err)
				return ExitError
			}
			generated, err = generate.FromResults(results, suiteName)
			if err != nil {
				fmt.Fprintf(stderr, "Failed to build regression suite: %v\n", err)
				return ExitError
			}
		} else {
			env, err := loadEnv(*configPath, nil)
			if err != nil {
				fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
				return ExitError
			}
			chat, err := newChat(env)
			if err != nil {
				fmt.Fprintf(stderr, "Failed to configure chat model: %v\n", err)
				return ExitError
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()
			var rep generate.Report
			generated, rep, err = (&generate.Generator{Chat: chat}).Generate(ctx, generate.Request{
				Name:         suiteName,
				Topic:        *topic,
				DocumentPath: *from,
				Count:        *count,
				Tags:         splitCSV(*tags),
			})
			if err != nil {
				fmt.Fprintf(stderr, "Generation failed: %v\n", err)
				return ExitError
			}
			for _, warning := range rep.Warnings {
				fmt.Fprintf(stderr, "Warning: %s\n", warning)
			}
		}
		if len(generated.Cases) == 0 {
			fmt.Fprintln(stderr, "No cases generated")
			return ExitError
		}
		if err := suite.Save(*out, generated); err != nil {
			fmt.Fprintf(stderr, "Failed to write suite: %v\n", err)
			return ExitError
		}
		fmt.Fprintf(stdout, "Wrote %d cases to %s\n", len(generated.Cases), *out)
		return ExitOK
	}
}
