package harness

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

const verbosePrefix = "[verbose]"

const (
	ansiReset  = "\x1b[0m"
	ansiBold   = "\x1b[1m"
	ansiDim    = "\x1b[2m"
	ansiGray   = "\x1b[90m"
	ansiGreen  = "\x1b[32m"
	ansiRed    = "\x1b[31m"
	ansiBlue   = "\x1b[34m"
	ansiYellow = "\x1b[33m"
)

type verboseStyle int

const (
	styleDefault verboseStyle = iota
	styleRun
	stylePass
	styleFail
	styleError
)

// VerboseObserver prints one line per case transition.
type VerboseObserver struct {
	w       io.Writer
	palette verbosePalette
	total   int
}

// NewVerboseObserver writes events to w. Styling is applied only on a TTY.
func NewVerboseObserver(w io.Writer, noColor bool) *VerboseObserver {
	return &VerboseObserver{w: &lockedWriter{w: w}, palette: paletteFor(w, noColor)}
}

func (v *VerboseObserver) OnRunStart(runID, suiteName, agent string, total int) {
	v.total = total
	v.log(styleRun, "Run %s suite=%s agent=%s cases=%d", runID, suiteName, agent, total)
}

func (v *VerboseObserver) OnCaseEvent(event Event) {
	position := fmt.Sprintf("%d/%d", event.Index+1, v.total)
	switch event.Type {
	case EventQueued:
		return
	case EventRunning, EventValidating:
		v.log(styleDefault, "Case %s %s %s", position, event.CaseID, event.Type)
	case EventPassed:
		v.log(stylePass, "Case %s %s passed latency=%s tokens=%d", position, event.CaseID, event.Latency.Round(1e6), event.Tokens)
	case EventFailed:
		v.log(styleFail, "Case %s %s failed latency=%s %s", position, event.CaseID, event.Latency.Round(1e6), event.Error)
	default:
		v.log(styleError, "Case %s %s %s error=%s", position, event.CaseID, event.Type, event.Error)
	}
}

func (v *VerboseObserver) OnRunEnd(results Results) {
	s := results.Summary
	v.log(styleRun, "Run %s done passed=%d failed=%d errored=%d skipped=%d pass_rate=%.1f%%",
		results.RunID, s.Passed, s.Failed, s.Errored, s.Skipped, s.PassRate*100)
}

func (v *VerboseObserver) log(style verboseStyle, format string, args ...any) {
	if v == nil || v.w == nil {
		return
	}
	line := fmt.Sprintf(format, args...)
	fmt.Fprintf(v.w, "%s %s\n", v.palette.prefix(verbosePrefix), v.palette.apply(style, line))
}

type verbosePalette struct {
	enabled bool
}

func paletteFor(writer io.Writer, noColor bool) verbosePalette {
	if noColor {
		return verbosePalette{enabled: false}
	}
	return verbosePalette{enabled: ShouldUseStyling(writer)}
}

// ShouldUseStyling reports whether ANSI styling suits writer, honoring
// NO_COLOR, TERM=dumb and CLICOLOR=0.
func ShouldUseStyling(writer io.Writer) bool {
	if writer == nil {
		return false
	}
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return false
	}
	if strings.EqualFold(os.Getenv("CLICOLOR"), "0") {
		return false
	}
	if file, ok := writer.(*os.File); ok {
		return term.IsTerminal(int(file.Fd()))
	}
	if fder, ok := writer.(interface{ Fd() uintptr }); ok {
		return term.IsTerminal(int(fder.Fd()))
	}
	return false
}

func (p verbosePalette) prefix(text string) string {
	if !p.enabled {
		return text
	}
	return ansiDim + ansiGray + text + ansiReset
}

func (p verbosePalette) apply(style verboseStyle, text string) string {
	if !p.enabled {
		return text
	}
	switch style {
	case styleRun:
		return ansiBold + ansiBlue + text + ansiReset
	case stylePass:
		return ansiBold + ansiGreen + text + ansiReset
	case styleFail:
		return ansiBold + ansiYellow + text + ansiReset
	case styleError:
		return ansiBold + ansiRed + text + ansiReset
	default:
		return text
	}
}
