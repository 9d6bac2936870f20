package report

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/foundationallm/foundationallm-sub000/internal/harness"
)

//go:embed style.css
var Stylesheet string

// RenderHTML renders the report page for runs into a string.
func RenderHTML(ctx context.Context, runs []harness.Results) (string, error) {
	var builder strings.Builder
	if err := Page(runs).Render(ctx, &builder); err != nil {
		return "", err
	}
	return builder.String(), nil
}

// RenderRun renders a single run; it satisfies harness.ReportRenderer.
func RenderRun(ctx context.Context, results harness.Results) (string, error) {
	return RenderHTML(ctx, []harness.Results{results})
}

func pageTitle(runs []harness.Results) string {
	if len(runs) == 1 {
		return fmt.Sprintf("fllm report: %s", runs[0].Suite)
	}
	return "fllm report"
}

// caseProblems lists failed checks followed by the case error, if any.
func caseProblems(item harness.CaseResult) []string {
	problems := item.FailedChecks()
	if item.Error != "" {
		problems = append(problems, "error: "+item.Error)
	}
	return problems
}

type summaryCard struct {
	Label string
	Value string
}

func summaryCards(s harness.Summary) []summaryCard {
	return []summaryCard{
		{"Pass rate", formatPassRate(s.PassRate)},
		{"Total", fmt.Sprint(s.Total)},
		{"Passed", fmt.Sprint(s.Passed)},
		{"Failed", fmt.Sprint(s.Failed)},
		{"Errored", fmt.Sprint(s.Errored)},
		{"Skipped", fmt.Sprint(s.Skipped)},
		{"Avg latency", formatLatency(s.AvgLatencySeconds)},
	}
}

// passRateChange is "-" for the first run, else the delta from the run before.
func passRateChange(runs []harness.Results, i int) string {
	if i == 0 {
		return "-"
	}
	return formatDelta(runs[i].Summary.PassRate, runs[i-1].Summary.PassRate)
}
