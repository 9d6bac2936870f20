package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

const (
	progressAuto  = "auto"
	progressLive  = "live"
	progressPlain = "plain"
)

// progressDisplay is how a run reports case progress.
type progressDisplay struct {
	live    bool
	noColor bool
	warning string
}

// isTerminal reports whether a writer is a TTY.
var isTerminal = writerIsTerminal

// resolveProgress picks the progress display for a run. --verbose always
// wins over the live view; auto mode stays plain on CI and dumb terminals.
func resolveProgress(mode string, verbose, noColor bool, stdout io.Writer, getenv func(string) string) (progressDisplay, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	display := progressDisplay{
		noColor: noColor || getenv("NO_COLOR") != "" || getenv("TERM") == "dumb",
	}
	normalized := strings.ToLower(strings.TrimSpace(mode))
	if normalized == "" {
		normalized = progressAuto
	}
	switch normalized {
	case progressAuto, progressLive, progressPlain:
	default:
		return progressDisplay{}, fmt.Errorf("invalid ui mode %q (expected auto|live|plain)", mode)
	}
	if verbose || normalized == progressPlain {
		return display, nil
	}
	tty := isTerminal(stdout)
	if normalized == progressLive {
		if !tty {
			display.warning = "Live UI requested but stdout is not a TTY; falling back to plain output."
			return display, nil
		}
		display.live = true
		return display, nil
	}
	display.live = tty && getenv("CI") == "" && getenv("TERM") != "dumb"
	return display, nil
}

func writerIsTerminal(w io.Writer) bool {
	switch out := w.(type) {
	case nil:
		return false
	case *os.File:
		return term.IsTerminal(int(out.Fd()))
	case interface{ Fd() uintptr }:
		return term.IsTerminal(int(out.Fd()))
	}
	return false
}
