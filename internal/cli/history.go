package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/foundationallm/foundationallm-sub000/internal/history"
	"github.com/foundationallm/foundationallm-sub000/internal/mgmtapi"
	"github.com/foundationallm/foundationallm-sub000/internal/report"
)

// runHistory dispatches the history subcommands.
func runHistory(cmd *Command) func(args []string, stdout, stderr io.Writer) int {
	return func(args []string, stdout, stderr io.Writer) int {
		if len(args) == 0 || isHelpArg(args[0]) {
			printCommandUsage(cmd, stdout)
			if len(args) == 0 {
				return ExitUsage
			}
			return ExitOK
		}
		switch args[0] {
		case "sessions":
			return historySessions(cmd, args[1:], stdout, stderr)
		case "show":
			return historyShow(cmd, args[1:], stdout, stderr)
		case "restore":
			return historyRestore(cmd, args[1:], stdout, stderr)
		case "trend":
			return historyTrend(cmd, args[1:], stdout, stderr)
		case "ingest":
			return historyIngest(cmd, args[1:], stdout, stderr)
		default:
			fmt.Fprintf(stderr, "Unknown history subcommand: %s\n", args[0])
			printCommandUsage(cmd, stderr)
			return ExitUsage
		}
	}
}

func historySessions(cmd *Command, args []string, stdout, stderr io.Writer) int {
	flags := newFlagSet(cmd, stderr)
	configPath := flags.String("config", "", "Path to config file")
	agent := flags.String("agent", "", "Only list sessions of this agent")
	if code, ok := parseFlags(cmd, flags, args, stdout, stderr); !ok {
		return code
	}
	env, err := loadEnv(*configPath, nil)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
		return ExitError
	}
	sessions, err := history.NewFileStore(env.HistoryDir()).ListSessions(*agent)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to list sessions: %v\n", err)
		return ExitError
	}
	if len(sessions) == 0 {
		fmt.Fprintln(stdout, "No optimization sessions found")
		return ExitOK
	}
	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		status := s.Status
		if status == "" {
			status = "incomplete"
		}
		rows = append(rows, []string{s.Agent, s.ID, status, s.ModTime.Local().Format(time.DateTime)})
	}
	if err := renderTable(stdout, []string{"Agent", "Session", "Status", "Updated"}, rows); err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return ExitError
	}
	return ExitOK
}

func historyShow(cmd *Command, args []string, stdout, stderr io.Writer) int {
	flags := newFlagSet(cmd, stderr)
	configPath := flags.String("config", "", "Path to config file")
	agent := flags.String("agent", "", "Agent that owns the session")
	if code, ok := parseFlags(cmd, flags, args, stdout, stderr); !ok {
		return code
	}
	if *agent == "" || flags.NArg() != 1 {
		fmt.Fprintln(stderr, "Expected --agent and one session id")
		printCommandUsage(cmd, stderr)
		return ExitUsage
	}
	env, err := loadEnv(*configPath, nil)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
		return ExitError
	}
	session, err := history.NewFileStore(env.HistoryDir()).LoadSession(*agent, flags.Arg(0))
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load session: %v\n", err)
		return ExitError
	}
	fmt.Fprintf(stdout, "Session %s (agent %s)\n", session.ID, session.Agent)
	if session.Backup != nil {
		fmt.Fprintf(stdout, "Prompt: %s (backup taken %s)\n", session.Backup.PromptName, session.Backup.CreatedAt.Local().Format(time.DateTime))
	}
	if len(session.Iterations) > 0 {
		if err := printIterations(stdout, session.Iterations); err != nil {
			fmt.Fprintf(stderr, "%v\n", err)
			return ExitError
		}
	}
	if s := session.Summary; s != nil {
		fmt.Fprintf(stdout, "Status: %s (baseline %s, best %s, final %s)\n",
			s.Status, formatRate(s.BaselinePassRate), formatRate(s.BestPassRate), formatRate(s.FinalPassRate))
		if s.Error != "" {
			fmt.Fprintf(stdout, "Error: %s\n", s.Error)
		}
	} else {
		fmt.Fprintln(stdout, "Status: incomplete")
	}
	return ExitOK
}

func historyRestore(cmd *Command, args []string, stdout, stderr io.Writer) int {
	flags := newFlagSet(cmd, stderr)
	configPath := flags.String("config", "", "Path to config file")
	agent := flags.String("agent", "", "Agent that owns the session")
	if code, ok := parseFlags(cmd, flags, args, stdout, stderr); !ok {
		return code
	}
	if *agent == "" || flags.NArg() != 1 {
		fmt.Fprintln(stderr, "Expected --agent and one session id")
		printCommandUsage(cmd, stderr)
		return ExitUsage
	}
	env, err := loadEnv(*configPath, nil)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
		return ExitError
	}
	backup, err := history.NewFileStore(env.HistoryDir()).Restore(*agent, flags.Arg(0))
	if err != nil {
		fmt.Fprintf(stderr, "Failed to read backup: %v\n", err)
		return ExitError
	}
	prompts, err := newPrompts(env)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to configure management api: %v\n", err)
		return ExitError
	}
	if _, err := prompts.UpsertPrompt(context.Background(), mgmtapi.Prompt{
		Name:   backup.PromptName,
		Prefix: backup.Prefix,
		Suffix: backup.Suffix,
		Raw:    backup.Raw,
	}); err != nil {
		fmt.Fprintf(stderr, "Failed to restore prompt %s: %v\n", backup.PromptName, err)
		return ExitError
	}
	fmt.Fprintf(stdout, "Restored prompt %s from session %s\n", backup.PromptName, flags.Arg(0))
	return ExitOK
}

func historyTrend(cmd *Command, args []string, stdout, stderr io.Writer) int {
	flags := newFlagSet(cmd, stderr)
	configPath := flags.String("config", "", "Path to config file")
	limit := flags.Int("limit", 20, "Most recent runs to show (0 for all)")
	if code, ok := parseFlags(cmd, flags, args, stdout, stderr); !ok {
		return code
	}
	if flags.NArg() != 1 {
		fmt.Fprintln(stderr, "Expected exactly one suite")
		printCommandUsage(cmd, stderr)
		return ExitUsage
	}
	env, err := loadEnv(*configPath, nil)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
		return ExitError
	}
	ctx := context.Background()
	store, err := env.HistoryDB(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to open history db: %v\n", err)
		return ExitError
	}
	if store == nil {
		fmt.Fprintln(stderr, "optimizer.history_db is not configured")
		return ExitError
	}
	defer func() { _ = store.Close() }()

	suiteName := flags.Arg(0)
	points, err := store.PassRateTrend(ctx, suiteName, *limit)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return ExitError
	}
	if len(points) == 0 {
		fmt.Fprintf(stdout, "No runs recorded for suite %s\n", suiteName)
		return ExitOK
	}
	rows := make([][]string, 0, len(points))
	for _, p := range points {
		rows = append(rows, []string{
			p.StartedAt.Local().Format(time.DateTime),
			p.RunID,
			p.Agent,
			formatRate(p.PassRate),
			fmt.Sprintf("%d/%d", p.Passed, p.Evaluated),
		})
	}
	if err := renderTable(stdout, []string{"Started", "Run", "Agent", "Pass rate", "Passed"}, rows); err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return ExitError
	}

	unstable, err := store.UnstableCases(ctx, suiteName)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return ExitError
	}
	if len(unstable) == 0 {
		return ExitOK
	}
	fmt.Fprintln(stdout, "\nUnstable cases:")
	rows = rows[:0]
	for _, c := range unstable {
		kind := "failing"
		if c.Flaky() {
			kind = "flaky"
		}
		rows = append(rows, []string{c.CaseID, kind, strconv.Itoa(c.Passed) + "/" + strconv.Itoa(c.Runs), c.Question})
	}
	if err := renderTable(stdout, []string{"Case", "Kind", "Passed", "Question"}, rows); err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return ExitError
	}
	return ExitOK
}

func historyIngest(cmd *Command, args []string, stdout, stderr io.Writer) int {
	flags := newFlagSet(cmd, stderr)
	configPath := flags.String("config", "", "Path to config file")
	if code, ok := parseFlags(cmd, flags, args, stdout, stderr); !ok {
		return code
	}
	if flags.NArg() == 0 {
		fmt.Fprintln(stderr, "Expected at least one results.json")
		printCommandUsage(cmd, stderr)
		return ExitUsage
	}
	env, err := loadEnv(*configPath, nil)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
		return ExitError
	}
	ctx := context.Background()
	store, err := env.HistoryDB(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to open history db: %v\n", err)
		return ExitError
	}
	if store == nil {
		fmt.Fprintln(stderr, "optimizer.history_db is not configured")
		return ExitError
	}
	defer func() { _ = store.Close() }()

	status := ExitOK
	for _, path := range flags.Args() {
		results, err := report.LoadResults(path)
		if err != nil {
			fmt.Fprintf(stderr, "%s: %v\n", path, err)
			status = ExitError
			continue
		}
		if err := store.IngestRun(ctx, results); err != nil {
			fmt.Fprintf(stderr, "%s: %v\n", path, err)
			status = ExitError
			continue
		}
		fmt.Fprintf(stdout, "Ingested run %s (%d cases)\n", results.RunID, len(results.Cases))
	}
	return status
}
