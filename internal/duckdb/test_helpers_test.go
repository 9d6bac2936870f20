package duckdb_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/foundationallm/foundationallm-sub000/internal/duckdb"
	"github.com/foundationallm/foundationallm-sub000/internal/duckdb/testing"
	"github.com/foundationallm/foundationallm-sub000/internal/harness"
	"github.com/foundationallm/foundationallm-sub000/internal/testutil"
)

const (
	testTimeout = 5 * time.Second
)

// openTestStore opens an in-memory store with the schema applied.
func openTestStore(t *testing.T) (*duckdb.Store, context.Context) {
	t.Helper()
	ctx := testutil.Context(t, testTimeout)
	return duckdbtesting.Open(t, ":memory:"), ctx
}

// queryInt returns a single integer value from the database.
func queryInt(t *testing.T, ctx context.Context, store *duckdb.Store, query string, args ...any) int {
	t.Helper()
	var out int
	if err := store.DB().QueryRowContext(ctx, query, args...).Scan(&out); err != nil {
		t.Fatalf("query int failed: %v", err)
	}
	return out
}

// runResults builds results where outcomes[i] says whether case i passed.
func runResults(runID string, started time.Time, outcomes ...bool) harness.Results {
	results := harness.Results{
		RunID:      runID,
		Suite:      "smoke",
		Agent:      "agent-a",
		Mode:       "rule",
		StartedAt:  started,
		FinishedAt: started.Add(time.Minute),
	}
	passed := 0
	for i, ok := range outcomes {
		status := harness.StatusFailed
		if ok {
			status = harness.StatusPassed
			passed++
		}
		results.Cases = append(results.Cases, harness.CaseResult{
			Index:          i,
			ID:             fmt.Sprintf("case-%d", i+1),
			Question:       fmt.Sprintf("Question %d?", i+1),
			Status:         status,
			Passed:         ok,
			LatencySeconds: 0.5,
			Tokens:         10,
		})
	}
	results.Summary = harness.Summary{
		Total:    len(outcomes),
		Passed:   passed,
		Failed:   len(outcomes) - passed,
		PassRate: float64(passed) / float64(len(outcomes)),
	}
	return results
}
