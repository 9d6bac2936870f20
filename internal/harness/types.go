package harness

import (
	"time"

	"github.com/foundationallm/foundationallm-sub000/internal/suite"
	"github.com/foundationallm/foundationallm-sub000/internal/validate"
)

// Status is the final state of a test case.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusError   Status = "error"
	StatusSkipped Status = "skipped"
)

// Results is the outcome of one harness run, written as results.json.
type Results struct {
	RunID      string        `json:"run_id"`
	Suite      string        `json:"suite"`
	SuitePath  string        `json:"suite_path,omitempty"`
	Agent      string        `json:"agent"`
	Mode       validate.Mode `json:"validation_mode"`
	Columns    []string      `json:"columns,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Cases      []CaseResult  `json:"cases"`
	Summary    Summary       `json:"summary"`
}

// CaseResult is the outcome of a single test case.
type CaseResult struct {
	Index          int               `json:"index"`
	ID             string            `json:"id"`
	Question       string            `json:"question"`
	Filename       string            `json:"filename,omitempty"`
	Expected       string            `json:"expected_answer"`
	Rules          validate.Rules    `json:"validation_rules"`
	Tags           []string          `json:"tags,omitempty"`
	Extra          map[string]string `json:"extra,omitempty"`
	Mode           validate.Mode     `json:"validation_mode"`
	Actual         string            `json:"actual_answer"`
	Status         Status            `json:"status"`
	Passed         bool              `json:"passed"`
	Checks         []validate.Check  `json:"checks,omitempty"`
	Judge          *validate.Verdict `json:"judge,omitempty"`
	SessionID      string            `json:"session_id,omitempty"`
	Tokens         int               `json:"tokens,omitempty"`
	LatencySeconds float64           `json:"latency_seconds"`
	Error          string            `json:"error,omitempty"`
}

// Summary aggregates case outcomes.
type Summary struct {
	Total             int     `json:"total"`
	Passed            int     `json:"passed"`
	Failed            int     `json:"failed"`
	Errored           int     `json:"errored"`
	Skipped           int     `json:"skipped"`
	PassRate          float64 `json:"pass_rate"`
	AvgLatencySeconds float64 `json:"avg_latency_seconds"`
	TokensTotal       int     `json:"tokens_total"`
}

// Case rebuilds the suite case the result was produced from.
func (r CaseResult) Case() suite.Case {
	return suite.Case{
		ID:       r.ID,
		Question: r.Question,
		Filename: r.Filename,
		Expected: r.Expected,
		Rules:    r.Rules,
		Mode:     r.Mode,
		Tags:     r.Tags,
		Extra:    r.Extra,
	}
}

// FailedChecks lists the failed checks as "name: detail".
func (r CaseResult) FailedChecks() []string {
	return validate.FailedChecks(r.Checks)
}

// Failures returns the failed and errored cases in suite order.
func (r Results) Failures() []CaseResult {
	var out []CaseResult
	for _, item := range r.Cases {
		if item.Status == StatusFailed || item.Status == StatusError {
			out = append(out, item)
		}
	}
	return out
}

// Summarize aggregates case results. Skipped cases do not count toward
// the pass rate denominator.
func Summarize(cases []CaseResult) Summary {
	summary := Summary{Total: len(cases)}
	latencyTotal := 0.0
	latencyCount := 0
	for _, item := range cases {
		switch item.Status {
		case StatusPassed:
			summary.Passed++
		case StatusFailed:
			summary.Failed++
		case StatusError:
			summary.Errored++
		case StatusSkipped:
			summary.Skipped++
		}
		if item.LatencySeconds > 0 {
			latencyTotal += item.LatencySeconds
			latencyCount++
		}
		summary.TokensTotal += item.Tokens
	}
	if evaluated := summary.Total - summary.Skipped; evaluated > 0 {
		summary.PassRate = float64(summary.Passed) / float64(evaluated)
	}
	if latencyCount > 0 {
		summary.AvgLatencySeconds = latencyTotal / float64(latencyCount)
	}
	return summary
}
