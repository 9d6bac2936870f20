package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

func runPublish(cmd *Command) func(args []string, stdout, stderr io.Writer) int {
	return func(args []string, stdout, stderr io.Writer) int {
		if wantsHelp(args) {
			printCommandUsage(cmd, stdout)
			return ExitOK
		}
		flags := newFlagSet(cmd, stderr)
		configPath := flags.String("config", "", "Path to config file")
		container := flags.String("container", "", "Override publish.container")
		debug := flags.Bool("debug", false, "Enable debug logging")
		if code, ok := parseFlags(cmd, flags, args, stdout, stderr); !ok {
			return code
		}
		if flags.NArg() != 1 {
			fmt.Fprintln(stderr, "Expected exactly one run directory")
			printCommandUsage(cmd, stderr)
			return ExitUsage
		}
		runDir := flags.Arg(0)
		if info, err := os.Stat(runDir); err != nil || !info.IsDir() {
			fmt.Fprintf(stderr, "Run directory not found: %s\n", runDir)
			return ExitError
		}

		logger := newLogger(*debug, stderr)
		defer func() { _ = logger.Sync() }()
		env, err := loadEnv(*configPath, logger)
		if err != nil {
			fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
			return ExitError
		}
		publisher, err := newPublisher(env, *container)
		if err != nil {
			fmt.Fprintf(stderr, "Failed to configure publishing: %v\n", err)
			return ExitError
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		manifest, err := publisher.Publish(ctx, runDir)
		if err != nil {
			fmt.Fprintf(stderr, "Publish failed: %v\n", err)
			return ExitError
		}
		fmt.Fprintf(stdout, "Published run %s to %s/%s\n", manifest.RunID, manifest.Container, manifest.Prefix)
		for _, blob := range manifest.Blobs {
			fmt.Fprintf(stdout, "  %s (%d bytes)\n", blob.Name, blob.Size)
		}
		for _, missing := range manifest.Missing {
			fmt.Fprintf(stderr, "Skipped missing %s\n", missing)
		}
		return ExitOK
	}
}
