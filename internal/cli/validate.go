package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/foundationallm/foundationallm-sub000/internal/suite"
)

// runValidate builds the handler for the validate command.
func runValidate(cmd *Command) func(args []string, stdout, stderr io.Writer) int {
	return func(args []string, stdout, stderr io.Writer) int {
		if wantsHelp(args) {
			printCommandUsage(cmd, stdout)
			return ExitOK
		}

		flags := newFlagSet(cmd, stderr)
		configPath := flags.String("config", "", "Path to config file (default: search for .fllm/config.yml)")
		if code, ok := parseFlags(cmd, flags, args, stdout, stderr); !ok {
			return code
		}

		env, err := loadEnv(*configPath, nil)
		if err != nil {
			fmt.Fprintf(stderr, "Validation failed:\n%v\n", err)
			return ExitError
		}
		fmt.Fprintln(stdout, "Config OK")

		paths := flags.Args()
		if len(paths) == 0 {
			infos, err := suite.Discover(env.SuitesDir())
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					fmt.Fprintf(stdout, "No suites directory at %s\n", env.SuitesDir())
					return ExitOK
				}
				fmt.Fprintf(stderr, "Validation failed:\n%v\n", err)
				return ExitError
			}
			for _, info := range infos {
				paths = append(paths, info.Path)
			}
		}

		failed := false
		for _, ref := range paths {
			path, err := suite.Resolve(env.SuitesDir(), ref)
			if err != nil {
				fmt.Fprintf(stderr, "%s: %v\n", ref, err)
				failed = true
				continue
			}
			loaded, err := suite.Load(path)
			if err != nil {
				fmt.Fprintf(stderr, "Suite %s invalid:\n%v\n", path, err)
				failed = true
				continue
			}
			fmt.Fprintf(stdout, "Suite %s OK (%d cases)\n", loaded.Name, len(loaded.Cases))
		}
		if failed {
			return ExitError
		}
		return ExitOK
	}
}
