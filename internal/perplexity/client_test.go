package perplexity

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/foundationallm/foundationallm-sub000/internal/auth"
	"github.com/foundationallm/foundationallm-sub000/internal/testutil"
	"github.com/foundationallm/foundationallm-sub000/internal/transport"
)

func TestSearchSendsQueryAndParsesCitations(t *testing.T) {
	ctx := testutil.Context(t, 2*time.Second)
	var got request
	var authHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		authHeader = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		_, _ = w.Write([]byte(`{"model":"sonar-pro","choices":[{"message":{"content":" Go 1.25 shipped in August. "}}],
			"citations":["https://go.dev/blog"],"search_results":[{"url":"https://go.dev/blog"},{"url":"https://go.dev/doc"}],
			"usage":{"total_tokens":42}}`))
	}))
	defer server.Close()

	rest, err := transport.New(transport.Options{
		BaseURL: server.URL,
		Tokens:  auth.StaticSource{EnvVar: "PPLX", Getenv: func(string) string { return "pplx-key" }},
	})
	if err != nil {
		t.Fatalf("transport: %v", err)
	}
	client, err := New(rest, "sonar")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	result, err := client.Search(ctx, "When did Go 1.25 ship?", "")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if got.Model != "sonar" || len(got.Messages) != 2 || got.Messages[1].Content != "When did Go 1.25 ship?" {
		t.Fatalf("unexpected request %+v", got)
	}
	if authHeader != "Bearer pplx-key" {
		t.Fatalf("unexpected auth header %q", authHeader)
	}
	if result.Answer != "Go 1.25 shipped in August." || result.Model != "sonar-pro" || result.Tokens != 42 {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(result.Citations) != 2 {
		t.Fatalf("expected deduplicated citations, got %v", result.Citations)
	}
	if !strings.Contains(result.Format(), "[2] https://go.dev/doc") {
		t.Fatalf("unexpected format %q", result.Format())
	}
}

func TestParseResponseRejectsEmpty(t *testing.T) {
	if _, err := parseResponse([]byte(`{"choices":[]}`), "sonar"); err == nil {
		t.Fatalf("expected error without choices")
	}
	if _, err := parseResponse([]byte(`not json`), "sonar"); err == nil {
		t.Fatalf("expected error for invalid json")
	}
}
