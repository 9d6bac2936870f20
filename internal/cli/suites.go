package cli

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/foundationallm/foundationallm-sub000/internal/suite"
	"github.com/foundationallm/foundationallm-sub000/internal/validate"
)

// runSuites dispatches the suites subcommands.
func runSuites(cmd *Command) func(args []string, stdout, stderr io.Writer) int {
	return func(args []string, stdout, stderr io.Writer) int {
		if len(args) == 0 || isHelpArg(args[0]) {
			printCommandUsage(cmd, stdout)
			if len(args) == 0 {
				return ExitUsage
			}
			return ExitOK
		}
		switch args[0] {
		case "list":
			return suitesList(cmd, args[1:], stdout, stderr)
		case "show":
			return suitesShow(cmd, args[1:], stdout, stderr)
		case "merge":
			return suitesMerge(cmd, args[1:], stdout, stderr)
		default:
			fmt.Fprintf(stderr, "Unknown suites subcommand: %s\n", args[0])
			printCommandUsage(cmd, stderr)
			return ExitUsage
		}
	}
}

func suitesList(cmd *Command, args []string, stdout, stderr io.Writer) int {
	flags := newFlagSet(cmd, stderr)
	configPath := flags.String("config", "", "Path to config file")
	if code, ok := parseFlags(cmd, flags, args, stdout, stderr); !ok {
		return code
	}
	env, err := loadEnv(*configPath, nil)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
		return ExitError
	}
	infos, err := suite.Discover(env.SuitesDir())
	if err != nil {
		fmt.Fprintf(stderr, "Failed to list suites: %v\n", err)
		return ExitError
	}
	if len(infos) == 0 {
		fmt.Fprintf(stdout, "No suites found in %s\n", env.SuitesDir())
		return ExitOK
	}
	defaultMode := validate.Mode(env.Config.Harness.ValidationMode)
	rows := make([][]string, 0, len(infos))
	for _, info := range infos {
		loaded, err := suite.Load(info.Path)
		if err != nil {
			rows = append(rows, []string{info.Name, info.Format, "-", "invalid", info.Path})
			continue
		}
		stats := suite.Summary(loaded, defaultMode)
		rows = append(rows, []string{info.Name, info.Format, strconv.Itoa(stats.Total), formatModes(stats.ByMode), info.Path})
	}
	if err := renderTable(stdout, []string{"Suite", "Format", "Cases", "Modes", "Path"}, rows); err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return ExitError
	}
	return ExitOK
}

func suitesShow(cmd *Command, args []string, stdout, stderr io.Writer) int {
	flags := newFlagSet(cmd, stderr)
	configPath := flags.String("config", "", "Path to config file")
	format := flags.String("format", suite.FormatYAML, "Output format (csv|yaml|json)")
	if code, ok := parseFlags(cmd, flags, args, stdout, stderr); !ok {
		return code
	}
	if flags.NArg() != 1 {
		fmt.Fprintln(stderr, "Expected exactly one suite")
		return ExitUsage
	}
	loaded, code := loadSuiteArg(*configPath, flags.Arg(0), stderr)
	if code != ExitOK {
		return code
	}
	if err := suite.Encode(stdout, loaded, *format); err != nil {
		fmt.Fprintf(stderr, "Failed to render suite: %v\n", err)
		return ExitError
	}
	return ExitOK
}

func suitesMerge(cmd *Command, args []string, stdout, stderr io.Writer) int {
	flags := newFlagSet(cmd, stderr)
	configPath := flags.String("config", "", "Path to config file")
	out := flags.String("out", "", "Output suite path (.csv, .yaml or .json)")
	name := flags.String("name", "", "Name of the merged suite (default: output file name)")
	if code, ok := parseFlags(cmd, flags, args, stdout, stderr); !ok {
		return code
	}
	if strings.TrimSpace(*out) == "" {
		fmt.Fprintln(stderr, "Missing --out")
		return ExitUsage
	}
	if flags.NArg() < 2 {
		fmt.Fprintln(stderr, "Merge needs at least two suites")
		return ExitUsage
	}
	sources := make([]suite.Suite, 0, flags.NArg())
	for _, ref := range flags.Args() {
		loaded, code := loadSuiteArg(*configPath, ref, stderr)
		if code != ExitOK {
			return code
		}
		sources = append(sources, loaded)
	}
	mergedName := strings.TrimSpace(*name)
	if mergedName == "" {
		mergedName = suite.NameFromPath(*out)
	}
	merged, dropped := suite.Merge(mergedName, sources...)
	if err := suite.Save(*out, merged); err != nil {
		fmt.Fprintf(stderr, "Failed to write merged suite: %v\n", err)
		return ExitError
	}
	fmt.Fprintf(stdout, "Merged %d suites into %s (%d cases)\n", len(sources), *out, len(merged.Cases))
	if len(dropped) > 0 {
		fmt.Fprintf(stdout, "Dropped duplicates: %s\n", strings.Join(dropped, ", "))
	}
	return ExitOK
}

// loadSuiteArg resolves ref as a path, or as a name in the configured suites dir.
func loadSuiteArg(configPath, ref string, stderr io.Writer) (suite.Suite, int) {
	path := ref
	if _, err := suite.FormatFromPath(ref); err != nil || !fileExists(ref) {
		env, err := loadEnv(configPath, nil)
		if err != nil {
			fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
			return suite.Suite{}, ExitError
		}
		path, err = suite.Resolve(env.SuitesDir(), ref)
		if err != nil {
			fmt.Fprintf(stderr, "%v\n", err)
			return suite.Suite{}, ExitError
		}
	}
	loaded, err := suite.Load(path)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load suite %s:\n%v\n", path, err)
		return suite.Suite{}, ExitError
	}
	return loaded, ExitOK
}

func formatModes(byMode map[string]int) string {
	modes := make([]string, 0, len(byMode))
	for mode, count := range byMode {
		modes = append(modes, fmt.Sprintf("%s=%d", mode, count))
	}
	sort.Strings(modes)
	return strings.Join(modes, " ")
}
