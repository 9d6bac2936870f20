package cli

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/foundationallm/foundationallm-sub000/internal/app"
	"github.com/foundationallm/foundationallm-sub000/internal/publish"
)

type fakePublisher struct {
	runDir   string
	manifest publish.Manifest
	err      error
}

func (f *fakePublisher) Publish(_ context.Context, runDir string) (publish.Manifest, error) {
	f.runDir = runDir
	return f.manifest, f.err
}

func usePublisher(t *testing.T, p *fakePublisher, container *string) {
	t.Helper()
	original := newPublisher
	newPublisher = func(_ *app.Env, name string) (artifactPublisher, error) {
		*container = name
		return p, nil
	}
	t.Cleanup(func() { newPublisher = original })
}

func TestPublishRunDir(t *testing.T) {
	p := newProject(t)
	runDir := t.TempDir()
	fake := &fakePublisher{manifest: publish.Manifest{
		Container: "reports",
		Prefix:    "smoke/run-1/",
		RunID:     "run-1",
		Blobs:     []publish.Blob{{Name: "smoke/run-1/results.json", Size: 12}},
		Missing:   []string{"report.html"},
	}}
	var container string
	usePublisher(t, fake, &container)

	code, stdout, stderr := runCLI("publish", "--config", p.config, "--container", "reports", runDir)
	if code != ExitOK {
		t.Fatalf("publish failed: %s", stderr)
	}
	if fake.runDir != runDir || container != "reports" {
		t.Fatalf("unexpected publisher input %q %q", fake.runDir, container)
	}
	if !strings.Contains(stdout, "Published run run-1 to reports/smoke/run-1/") || !strings.Contains(stdout, "results.json (12 bytes)") {
		t.Fatalf("unexpected stdout %q", stdout)
	}
	if !strings.Contains(stderr, "Skipped missing report.html") {
		t.Fatalf("unexpected stderr %q", stderr)
	}
}

func TestPublishFailure(t *testing.T) {
	p := newProject(t)
	var container string
	usePublisher(t, &fakePublisher{err: errors.New("forbidden")}, &container)
	code, _, stderr := runCLI("publish", "--config", p.config, t.TempDir())
	if code != ExitError || !strings.Contains(stderr, "forbidden") {
		t.Fatalf("unexpected result %d %q", code, stderr)
	}
}

func TestPublishMissingRunDir(t *testing.T) {
	code, _, stderr := runCLI("publish", "/does/not/exist")
	if code != ExitError || !strings.Contains(stderr, "Run directory not found") {
		t.Fatalf("unexpected result %d %q", code, stderr)
	}
}
