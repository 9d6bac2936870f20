package prompt

import (
	"context"
	"strings"
	"testing"
)

// TestRenderRefinerPromptIncludesFailures verifies failing cases reach the prompt.
func TestRenderRefinerPromptIncludesFailures(t *testing.T) {
	text, err := RenderRefinerPrompt(context.Background(), RefinerInput{
		CurrentPrompt:  "You are helpful.",
		PassRate:       0.5,
		TargetPassRate: 0.9,
		Iteration:      2,
		Failures: []FailedExample{{
			Question:     "Capital of France?",
			Expected:     "Paris",
			Actual:       "Lyon",
			FailedChecks: []string{"contains: missing \"Paris\""},
		}},
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{"You are helpful.", "Capital of France?", "Lyon", "50.0%", "90.0%", "missing \"Paris\""} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in prompt:\n%s", want, text)
		}
	}
}

// TestRenderJudgePromptMarksEmptyAnswers verifies blank blocks are labelled.
func TestRenderJudgePromptMarksEmptyAnswers(t *testing.T) {
	text, err := RenderJudgePrompt(context.Background(), JudgeInput{Question: "Q", Expected: "A"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(text, "Actual answer:\n(empty)") {
		t.Fatalf("expected empty marker, got:\n%s", text)
	}
}

// TestExtractTagged covers tagged, unterminated and untagged replies.
func TestExtractTagged(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Here:\n<prompt>\nNew prompt\n</prompt>\nthanks", "New prompt"},
		{"<prompt>unterminated", "unterminated"},
		{"  plain reply  ", "plain reply"},
	}
	for _, tc := range cases {
		if got := ExtractTagged(tc.in, "prompt"); got != tc.want {
			t.Fatalf("ExtractTagged(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

// TestRenderKnowledgePromptNumbersSources verifies citations are numbered.
func TestRenderKnowledgePromptNumbersSources(t *testing.T) {
	text, err := RenderKnowledgePrompt(context.Background(), "Why?", []Source{{Title: "Doc", Content: "Because."}, {Content: "Also."}})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(text, "[1] Doc:") || !strings.Contains(text, "[2]:") {
		t.Fatalf("unexpected prompt:\n%s", text)
	}
}

// TestPromptsAreNotHTMLEscaped verifies prompt text keeps quotes and tags verbatim.
func TestPromptsAreNotHTMLEscaped(t *testing.T) {
	text, err := RenderRefinerPrompt(context.Background(), RefinerInput{CurrentPrompt: `Say "hi" & <b>wave</b>`})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{`Say "hi" & <b>wave</b>`, "No failing cases were reported", "<prompt></prompt>"} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in prompt:\n%s", want, text)
		}
	}
	if strings.Contains(text, "&amp;") || strings.Contains(text, "&#34;") {
		t.Fatalf("prompt was HTML-escaped:\n%s", text)
	}
}
