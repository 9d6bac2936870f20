package reportserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/foundationallm/foundationallm-sub000/internal/harness"
	"github.com/foundationallm/foundationallm-sub000/internal/metrics"
	"github.com/foundationallm/foundationallm-sub000/internal/report"
)

// writeRun writes a run with a single case into dir.
func writeRun(t *testing.T, dir, suiteName, runID string) {
	t.Helper()
	results := harness.Results{
		RunID:   runID,
		Suite:   suiteName,
		Agent:   "agent",
		Cases:   []harness.CaseResult{{ID: "c1", Question: "2+2?", Actual: "4", Status: harness.StatusPassed}},
		Summary: harness.Summary{Total: 1, Passed: 1, PassRate: 1},
	}
	if _, err := harness.WriteOutputs(context.Background(), results, dir, report.RenderRun); err != nil {
		t.Fatalf("write outputs: %v", err)
	}
}

func get(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "http://example.com"+path, nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	return resp
}

func newTestHandler(t *testing.T) (http.Handler, string) {
	t.Helper()
	dir := t.TempDir()
	writeRun(t, dir, "smoke", "20250101T000000Z-aaaa")
	handler, err := NewHandler(Config{Dir: dir, Metrics: metrics.New()})
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	return handler, dir
}

// TestIndexListsRuns ensures the root path links every run.
func TestIndexListsRuns(t *testing.T) {
	handler, _ := newTestHandler(t)
	resp := get(t, handler, "/")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `/runs/smoke/20250101T000000Z-aaaa`) {
		t.Fatalf("expected run link in index: %s", resp.Body.String())
	}
}

// TestRunRoutes ensures the report and raw results are served.
func TestRunRoutes(t *testing.T) {
	handler, _ := newTestHandler(t)

	page := get(t, handler, "/runs/smoke/20250101T000000Z-aaaa")
	if page.Code != http.StatusOK || !strings.Contains(page.Body.String(), "2+2?") {
		t.Fatalf("unexpected report response %d: %s", page.Code, page.Body.String())
	}

	raw := get(t, handler, "/runs/smoke/20250101T000000Z-aaaa/results.json")
	if raw.Code != http.StatusOK || !strings.Contains(raw.Body.String(), `"run_id": "20250101T000000Z-aaaa"`) {
		t.Fatalf("unexpected results response %d: %s", raw.Code, raw.Body.String())
	}

	if missing := get(t, handler, "/runs/smoke/nope"); missing.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown run, got %d", missing.Code)
	}
	if traversal := get(t, handler, "/runs/..%2F..%2Fetc/passwd"); traversal.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for traversal, got %d", traversal.Code)
	}
}

// TestHealthAndMetrics ensures the operational endpoints respond.
func TestHealthAndMetrics(t *testing.T) {
	handler, _ := newTestHandler(t)
	if resp := get(t, handler, "/healthz"); resp.Code != http.StatusOK || resp.Body.String() != "ok\n" {
		t.Fatalf("unexpected health response %d %q", resp.Code, resp.Body.String())
	}
	resp := get(t, handler, "/metrics")
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), "go_goroutines") {
		t.Fatalf("unexpected metrics response %d", resp.Code)
	}
	if css := get(t, handler, "/assets/report.css"); !strings.Contains(css.Body.String(), ".cards") {
		t.Fatalf("expected stylesheet")
	}
}

func TestNewHandlerRequiresDir(t *testing.T) {
	if _, err := NewHandler(Config{}); err == nil {
		t.Fatalf("expected error for empty dir")
	}
	if _, err := NewHandler(Config{Dir: "/definitely/not/here"}); err == nil {
		t.Fatalf("expected error for missing dir")
	}
}
