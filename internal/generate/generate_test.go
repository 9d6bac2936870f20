package generate

import (
	"strings"
	"testing"
	"time"

	"github.com/foundationallm/foundationallm-sub000/internal/harness"
	"github.com/foundationallm/foundationallm-sub000/internal/llm/llmtest"
	"github.com/foundationallm/foundationallm-sub000/internal/testutil"
	"github.com/foundationallm/foundationallm-sub000/internal/validate"
)

const reply = "```json\n" + `{"cases":[
 {"question":"What is the capital of France?","answer":"Paris","rules":{"contains":["Paris"]}},
 {"question":"  ","answer":"dropped"},
 {"question":"Who wrote Hamlet?","answer":"Shakespeare"},
 {"question":"Bad rules?","answer":"x","rules":{"regex":["("]}}
]}` + "\n```"

func TestGenerateFromTopic(t *testing.T) {
	ctx := testutil.Context(t, time.Second)
	chat := &llmtest.Fake{Responses: []string{reply}}
	gen := &Generator{Chat: chat}

	s, report, err := gen.Generate(ctx, Request{Name: "geo", Topic: "world capitals", Count: 5, Tags: []string{"generated"}})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(s.Cases) != 3 {
		t.Fatalf("expected 3 cases, got %d", len(s.Cases))
	}
	if s.Cases[0].Mode != validate.ModeHybrid || s.Cases[1].Mode != validate.ModeLLM {
		t.Fatalf("unexpected modes %q %q", s.Cases[0].Mode, s.Cases[1].Mode)
	}
	if !s.Cases[2].Rules.IsZero() || s.Cases[2].Mode != validate.ModeLLM {
		t.Fatalf("expected invalid rules dropped, got %+v", s.Cases[2])
	}
	if s.Cases[0].ID == "" || s.Cases[0].Tags[0] != "generated" {
		t.Fatalf("expected normalized case with tags, got %+v", s.Cases[0])
	}
	if len(report.Warnings) != 2 {
		t.Fatalf("expected two warnings, got %v", report.Warnings)
	}
	calls := chat.Calls()
	if len(calls) != 1 || !calls[0].Options.JSON {
		t.Fatalf("expected one JSON-mode call, got %+v", calls)
	}
	if !strings.Contains(chat.LastUserMessage(), "world capitals") {
		t.Fatalf("expected topic in prompt")
	}
}

func TestGenerateFromDocument(t *testing.T) {
	ctx := testutil.Context(t, time.Second)
	path := testutil.WriteFile(t, t.TempDir(), "doc.md", "# Handbook\nVacation is 25 days.")
	chat := &llmtest.Fake{Responses: []string{`{"cases":[{"question":"How many vacation days?","answer":"25"}]}`}}
	s, _, err := (&Generator{Chat: chat}).Generate(ctx, Request{DocumentPath: path, Count: 1})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if s.Name != "generated" || len(s.Cases) != 1 {
		t.Fatalf("unexpected suite %+v", s)
	}
	if !strings.Contains(chat.LastUserMessage(), "Vacation is 25 days.") {
		t.Fatalf("expected document in prompt")
	}
}

func TestGenerateTrimsExtraCases(t *testing.T) {
	s, report, err := Parse(`{"cases":[{"question":"a?"},{"question":"b?"},{"question":"c?"}]}`, Request{Count: 2})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(s.Cases) != 2 || len(report.Warnings) != 1 {
		t.Fatalf("expected trim to two cases, got %d cases %v", len(s.Cases), report.Warnings)
	}
}

func TestGenerateRequiresInput(t *testing.T) {
	ctx := testutil.Context(t, time.Second)
	if _, _, err := (&Generator{Chat: &llmtest.Fake{}}).Generate(ctx, Request{}); err == nil {
		t.Fatalf("expected error without topic or document")
	}
	if _, _, err := Parse(`{"cases":[]}`, Request{Count: 3}); err == nil {
		t.Fatalf("expected error for empty reply")
	}
}

func TestFromResultsKeepsPassingAnswers(t *testing.T) {
	results := harness.Results{
		RunID: "run-1",
		Suite: "smoke",
		Cases: []harness.CaseResult{
			{ID: "c1", Question: "Capital of France?", Expected: "Paris", Actual: " Paris is the capital. ", Status: harness.StatusPassed},
			{ID: "c2", Question: "2+2?", Expected: "4", Actual: "5", Status: harness.StatusFailed},
			{ID: "c3", Question: "Largest ocean?", Actual: "Pacific", Status: harness.StatusPassed, Rules: validate.Rules{Contains: validate.StringList{"Pacific"}}},
		},
	}
	s, err := FromResults(results, "")
	if err != nil {
		t.Fatalf("from results: %v", err)
	}
	if s.Name != "smoke-regression" || len(s.Cases) != 2 {
		t.Fatalf("unexpected suite %+v", s)
	}
	if s.Cases[0].Expected != "Paris is the capital." || s.Cases[0].Mode != validate.ModeLLM {
		t.Fatalf("unexpected first case %+v", s.Cases[0])
	}
	if s.Cases[1].Mode != validate.ModeHybrid {
		t.Fatalf("expected hybrid for case with rules, got %q", s.Cases[1].Mode)
	}
	if _, err := FromResults(harness.Results{RunID: "empty"}, "x"); err == nil {
		t.Fatalf("expected error without passing cases")
	}
}
