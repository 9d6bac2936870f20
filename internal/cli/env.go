package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/foundationallm/foundationallm-sub000/internal/app"
	"github.com/foundationallm/foundationallm-sub000/internal/config"
	"github.com/foundationallm/foundationallm-sub000/internal/harness"
	"github.com/foundationallm/foundationallm-sub000/internal/llm"
	"github.com/foundationallm/foundationallm-sub000/internal/logging"
	"github.com/foundationallm/foundationallm-sub000/internal/optimizer"
	"github.com/foundationallm/foundationallm-sub000/internal/publish"
	"github.com/foundationallm/foundationallm-sub000/internal/reportserver"
)

// artifactPublisher uploads one run directory.
type artifactPublisher interface {
	Publish(ctx context.Context, runDir string) (publish.Manifest, error)
}

// Test seams for everything that reaches the network.
var (
	newCore = func(env *app.Env) (harness.Completer, error) {
		client, err := env.Core()
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	newPrompts = func(env *app.Env) (optimizer.PromptStore, error) {
		client, err := env.Management()
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	newChat = func(env *app.Env) (llm.Chat, error) {
		chat, err := env.Chat()
		if err != nil {
			return nil, err
		}
		return chat, nil
	}
	newPublisher = func(env *app.Env, container string) (artifactPublisher, error) {
		cfg := env.Config.Publish
		if container != "" {
			cfg.Container = container
		}
		return publish.NewAzure(cfg, env.Logger)
	}
	serveReport = reportserver.Serve
)

// resolveConfigPath normalizes a config path or finds it from CWD.
func resolveConfigPath(configPath string) (string, error) {
	if strings.TrimSpace(configPath) == "" {
		return config.FindConfigPath("")
	}
	abs, err := filepath.Abs(configPath)
	if err != nil {
		return "", fmt.Errorf("resolve config path: %w", err)
	}
	return abs, nil
}

// loadEnv resolves and loads the config for a command.
func loadEnv(configPath string, logger *zap.SugaredLogger) (*app.Env, error) {
	resolved, err := resolveConfigPath(configPath)
	if err != nil {
		return nil, err
	}
	return app.Load(resolved, logger)
}

// newLogger builds the operational logger, falling back to a no-op logger.
func newLogger(debug bool, stderr io.Writer) *zap.SugaredLogger {
	logger, err := logging.New(logging.Options{Debug: debug})
	if err != nil {
		fmt.Fprintf(stderr, "Warning: logging disabled: %v\n", err)
		return logging.Nop()
	}
	return logger
}

// parseFlags parses args and reports the exit code to use when parsing
// did not succeed.
func parseFlags(cmd *Command, flags *flag.FlagSet, args []string, stdout, stderr io.Writer) (int, bool) {
	if err := flags.Parse(args); err != nil {
		if err == flag.ErrHelp {
			printCommandUsage(cmd, stdout)
			return ExitOK, false
		}
		fmt.Fprintf(stderr, "invalid arguments: %v\n", err)
		printCommandUsage(cmd, stderr)
		return ExitUsage, false
	}
	return ExitOK, true
}

func newFlagSet(cmd *Command, stderr io.Writer) *flag.FlagSet {
	flags := flag.NewFlagSet(cmd.Name, flag.ContinueOnError)
	flags.SetOutput(stderr)
	return flags
}

func splitCSV(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
