package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/foundationallm/foundationallm-sub000/internal/reportserver"
)

// runServe builds the handler for the serve command.
func runServe(cmd *Command) func(args []string, stdout, stderr io.Writer) int {
	return func(args []string, stdout, stderr io.Writer) int {
		if wantsHelp(args) {
			printCommandUsage(cmd, stdout)
			return ExitOK
		}

		flags := newFlagSet(cmd, stderr)
		configPath := flags.String("config", "", "Path to config file")
		addr := flags.String("addr", "127.0.0.1:5000", "Address to listen on")
		dir := flags.String("dir", "", "Results directory (default: harness.output_dir)")
		debug := flags.Bool("debug", false, "Enable debug logging")
		if code, ok := parseFlags(cmd, flags, args, stdout, stderr); !ok {
			return code
		}
		if flags.NArg() > 0 {
			fmt.Fprintln(stderr, "Too many arguments")
			return ExitUsage
		}
		if *addr == "" {
			fmt.Fprintln(stderr, "Missing --addr")
			return ExitUsage
		}

		logger := newLogger(*debug, stderr)
		defer func() { _ = logger.Sync() }()
		cfg := reportserver.Config{Addr: *addr, Dir: *dir, Logger: logger}
		if cfg.Dir == "" {
			env, err := loadEnv(*configPath, logger)
			if err != nil {
				fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
				return ExitError
			}
			cfg.Dir = env.OutputDir()
			cfg.Metrics = env.Metrics
		}
		if info, err := os.Stat(cfg.Dir); err != nil || !info.IsDir() {
			fmt.Fprintf(stderr, "Results directory not found: %s\n", cfg.Dir)
			return ExitError
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		fmt.Fprintf(stdout, "Serving reports at http://%s\n", cfg.Addr)
		if err := serveReport(ctx, cfg); err != nil {
			fmt.Fprintf(stderr, "Server error: %v\n", err)
			return ExitError
		}
		return ExitOK
	}
}
