package report

import (
	"context"
	"strings"
	"testing"

	"github.com/foundationallm/foundationallm-sub000/internal/harness"
	"github.com/foundationallm/foundationallm-sub000/internal/validate"
)

func writeRun(t *testing.T, root, suiteName, runID string, passRate float64) {
	t.Helper()
	results := harness.Results{RunID: runID, Suite: suiteName, Summary: harness.Summary{PassRate: passRate}}
	if _, err := harness.WriteOutputs(context.Background(), results, root, nil); err != nil {
		t.Fatalf("write outputs: %v", err)
	}
}

// TestResolveRunBySuiteAndRunID verifies run resolution by suite and run ID.
func TestResolveRunBySuiteAndRunID(t *testing.T) {
	root := t.TempDir()
	writeRun(t, root, "smoke", "20250101T000000Z-aaaa", 0.5)
	writeRun(t, root, "smoke", "20250102T000000Z-bbbb", 0.75)
	writeRun(t, root, "regression", "20250103T000000Z-cccc", 1)

	latest, ref, err := ResolveRun(root, "smoke", "")
	if err != nil {
		t.Fatalf("resolve latest: %v", err)
	}
	if latest.RunID != "20250102T000000Z-bbbb" || ref.Suite != "smoke" {
		t.Fatalf("unexpected latest run %s in %s", latest.RunID, ref.Suite)
	}

	byID, _, err := ResolveRun(root, "", "20250103T000000Z-cccc")
	if err != nil {
		t.Fatalf("resolve by id: %v", err)
	}
	if byID.Suite != "regression" {
		t.Fatalf("unexpected suite %s", byID.Suite)
	}

	if _, _, err := ResolveRun(root, "smoke", "20250103T000000Z-cccc"); err == nil {
		t.Fatalf("expected run of another suite to be rejected")
	}
	if _, _, err := ResolveRun(root, "missing", ""); err == nil {
		t.Fatalf("expected error for unknown suite")
	}
}

func TestListRunsSorted(t *testing.T) {
	root := t.TempDir()
	writeRun(t, root, "b", "20250101T000000Z-2", 0)
	writeRun(t, root, "a", "20250102T000000Z-1", 0)
	writeRun(t, root, "a", "20250101T000000Z-1", 0)
	refs, err := ListRuns(root)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	got := make([]string, 0, len(refs))
	for _, ref := range refs {
		got = append(got, ref.Suite+"/"+ref.RunID)
	}
	want := "a/20250101T000000Z-1,a/20250102T000000Z-1,b/20250101T000000Z-2"
	if strings.Join(got, ",") != want {
		t.Fatalf("unexpected order %v", got)
	}
}

func TestRenderHTMLEscapesAndCompares(t *testing.T) {
	first := harness.Results{
		RunID:   "run-1",
		Suite:   "smoke",
		Agent:   "agent-a",
		Summary: harness.Summary{Total: 2, Passed: 1, Failed: 1, PassRate: 0.5},
		Cases: []harness.CaseResult{
			{ID: "c1", Question: "<script>alert(1)</script>", Expected: "x", Actual: "a & b", Status: harness.StatusPassed},
			{ID: "c2", Question: "q", Expected: "Paris", Actual: "Lyon", Status: harness.StatusFailed,
				Checks: []validate.Check{{Name: "contains", Detail: `missing "Paris"`}}},
		},
	}
	second := harness.Results{RunID: "run-2", Suite: "smoke", Summary: harness.Summary{Total: 2, Passed: 2, PassRate: 1}}

	html, err := RenderHTML(context.Background(), []harness.Results{first, second})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(html, "<script>alert") {
		t.Fatalf("question must be escaped")
	}
	for _, token := range []string{"&lt;script&gt;", "a &amp; b", "run-1", "run-2", "Comparison", "+50.0 pts", "50.0%", "contains: missing &#34;Paris&#34;", "status-failed"} {
		if !strings.Contains(html, token) {
			t.Fatalf("expected report to include %s", token)
		}
	}

	single, err := RenderRun(context.Background(), first)
	if err != nil {
		t.Fatalf("render single: %v", err)
	}
	if strings.Contains(single, "Comparison") {
		t.Fatalf("single run report should not include comparison")
	}
	if !strings.Contains(single, "<table") {
		t.Fatalf("expected case table")
	}
}
