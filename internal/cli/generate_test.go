package cli

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/foundationallm/foundationallm-sub000/internal/llm/llmtest"
	"github.com/foundationallm/foundationallm-sub000/internal/suite"
)

func TestGenerateFromTopic(t *testing.T) {
	p := newProject(t)
	chat := &llmtest.Fake{Responses: []string{`{"cases":[
		{"question":"What does FoundationaLLM deploy?","answer":"agents","rules":{"contains":["agent"]}},
		{"question":"  ","answer":"dropped"},
		{"question":"Which cloud hosts it?","answer":"Azure"}
	]}`}}
	useChat(t, chat)

	out := filepath.Join(p.root, "suites", "generated.yaml")
	code, stdout, stderr := runCLI("generate", "--config", p.config, "--topic", "FoundationaLLM", "--count", "3", "--tags", "gen", "--out", out)
	if code != ExitOK {
		t.Fatalf("generate failed: %d %s", code, stderr)
	}
	if !strings.Contains(stdout, "Wrote 2 cases") {
		t.Fatalf("unexpected stdout %q", stdout)
	}
	if !strings.Contains(stderr, "empty question dropped") {
		t.Fatalf("expected a warning in %q", stderr)
	}
	if !strings.Contains(chat.LastUserMessage(), "FoundationaLLM") {
		t.Fatalf("topic missing from the prompt")
	}
	generated, err := suite.Load(out)
	if err != nil {
		t.Fatalf("load generated: %v", err)
	}
	if generated.Name != "generated" || len(generated.Cases) != 2 {
		t.Fatalf("unexpected suite %+v", generated)
	}
	for _, item := range generated.Cases {
		if len(item.Tags) != 1 || item.Tags[0] != "gen" {
			t.Fatalf("expected gen tag on %s", item.ID)
		}
	}
}

func TestGenerateFromResults(t *testing.T) {
	p := newProject(t)
	useCore(t, &fakeCore{answer: func() string { return "Paris" }})
	_, stdout, stderr := runCLI("run", "--config", p.config, "--ui", "plain", "smoke")
	resultsPath := lineValue(t, stdout, "Results:")
	if resultsPath == "" {
		t.Fatalf("run failed: %s", stderr)
	}

	out := filepath.Join(t.TempDir(), "regression.csv")
	code, stdout, stderr := runCLI("generate", "--from-results", resultsPath, "--out", out)
	if code != ExitOK {
		t.Fatalf("generate failed: %s", stderr)
	}
	if !strings.Contains(stdout, "Wrote 1 cases") {
		t.Fatalf("unexpected stdout %q", stdout)
	}
	regression, err := suite.Load(out)
	if err != nil {
		t.Fatalf("load regression: %v", err)
	}
	if regression.Cases[0].Expected != "Paris" {
		t.Fatalf("expected the actual answer to become the expectation, got %q", regression.Cases[0].Expected)
	}
}

func TestGenerateRequiresOneSource(t *testing.T) {
	code, _, stderr := runCLI("generate", "--topic", "a", "--from", "doc.md", "--out", "x.csv")
	if code != ExitUsage || !strings.Contains(stderr, "Exactly one of") {
		t.Fatalf("unexpected result %d %q", code, stderr)
	}
}

func TestGenerateRefusesOverwrite(t *testing.T) {
	p := newProject(t)
	existing := filepath.Join(p.root, "suites", "smoke.csv")
	code, _, stderr := runCLI("generate", "--config", p.config, "--topic", "x", "--out", existing)
	if code != ExitError || !strings.Contains(stderr, "Refusing to overwrite") {
		t.Fatalf("unexpected result %d %q", code, stderr)
	}
}
