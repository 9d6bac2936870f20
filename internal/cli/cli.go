// Package cli implements the fllm command line.
package cli

import (
	"fmt"
	"io"
)

const (
	ExitOK    = 0
	ExitError = 1
	ExitUsage = 2
	// ExitBelowThreshold reports a completed run under --min-pass-rate.
	ExitBelowThreshold = 3
)

// Version is reported to telemetry and the MCP handshake; set with -ldflags.
var Version = "dev"

type Command struct {
	Name    string
	Summary string
	Usage   []string
	Run     func(args []string, stdout, stderr io.Writer) int
}

func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stdout)
		return ExitUsage
	}
	if isHelpArg(args[0]) {
		printUsage(stdout)
		return ExitOK
	}
	if args[0] == "version" || args[0] == "--version" {
		fmt.Fprintf(stdout, "fllm %s\n", Version)
		return ExitOK
	}

	cmd := findCommand(args[0])
	if cmd == nil {
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", args[0])
		printUsage(stderr)
		return ExitUsage
	}

	return cmd.Run(args[1:], stdout, stderr)
}

func findCommand(name string) *Command {
	for _, cmd := range commands {
		if cmd.Name == name {
			return cmd
		}
	}
	return nil
}

func isHelpArg(arg string) bool {
	switch arg {
	case "-h", "--help", "help":
		return true
	default:
		return false
	}
}

func wantsHelp(args []string) bool {
	for _, arg := range args {
		switch arg {
		case "-h", "--help":
			return true
		}
	}
	return false
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  fllm <command> [options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, cmd := range commands {
		fmt.Fprintf(w, "  %-9s %s\n", cmd.Name, cmd.Summary)
	}
	fmt.Fprintln(w, "\nUse \"fllm <command> --help\" for more information.")
}

func printCommandUsage(cmd *Command, w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	for _, line := range cmd.Usage {
		fmt.Fprintf(w, "  %s\n", line)
	}
	if cmd.Summary != "" {
		fmt.Fprintf(w, "\n%s\n", cmd.Summary)
	}
}

func command(name, summary string, usage []string, runner func(cmd *Command) func(args []string, stdout, stderr io.Writer) int) *Command {
	cmd := &Command{
		Name:    name,
		Summary: summary,
		Usage:   usage,
	}
	cmd.Run = runner(cmd)
	return cmd
}

var commands = []*Command{
	command("init", "Scaffold .fllm/config.yml and a sample suite", []string{
		"fllm init [--dir <path>]",
	}, runInit),
	command("validate", "Validate the config and every suite", []string{
		"fllm validate [--config <path>] [suite...]",
	}, runValidate),
	command("suites", "List, show or merge test suites", []string{
		"fllm suites list [--config <path>]",
		"fllm suites show <suite> [--format csv|yaml|json]",
		"fllm suites merge --out <path> [--name <name>] <suite> <suite>...",
	}, runSuites),
	command("run", "Run a test suite against an agent", []string{
		"fllm run [--agent <name>] [--workers N] [--mode rule|llm|hybrid] [--tags a,b] [--ids a,b]",
		"         [--min-pass-rate 0.8] [--ui auto|live|plain] [--verbose] <suite>",
	}, runRun),
	command("generate", "Generate a test suite with the chat model", []string{
		"fllm generate --topic <text> --out <suite.csv> [--count N]",
		"fllm generate --from <document> --out <suite.csv> [--count N]",
		"fllm generate --from-results <results.json> --out <suite.csv>",
	}, runGenerate),
	command("report", "Render an HTML report for one or more runs", []string{
		"fllm report [--suite <name>] [--output <path>] <run-id|latest|results.json>...",
	}, runReport),
	command("serve", "Serve HTML reports for stored runs", []string{
		"fllm serve [--addr 127.0.0.1:5000] [--dir <results-dir>]",
	}, runServe),
	command("optimize", "Iteratively refine an agent prompt against a suite", []string{
		"fllm optimize --agent <name> [--prompt <name>] [--max-iterations N] [--target 0.9] [--dry-run] <suite>",
	}, runOptimize),
	command("history", "Inspect and restore optimizer sessions", []string{
		"fllm history sessions [--agent <name>]",
		"fllm history show --agent <name> <session-id>",
		"fllm history restore --agent <name> <session-id>",
		"fllm history trend [--limit N] <suite>",
		"fllm history ingest <results.json>...",
	}, runHistory),
	command("publish", "Upload run artifacts to Azure Blob Storage", []string{
		"fllm publish [--container <name>] <run-dir>",
	}, runPublish),
}
