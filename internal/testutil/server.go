package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// CompletionCall records one completion request seen by FakeCoreAPI.
type CompletionCall struct {
	Prompt      string
	Agent       string
	SessionID   string
	Attachments []string
}

// FakeCoreAPI is an in-memory FoundationaLLM Core API.
type FakeCoreAPI struct {
	// Answer produces the completion text for a prompt.
	Answer func(prompt string) string
	// Token, when set, is required as the bearer token.
	Token  string
	Agents []string

	mu          sync.Mutex
	sessions    int
	uploads     []string
	completions []CompletionCall

	server *httptest.Server
}

// StartFakeCoreAPI launches the fake and closes it with the test.
func StartFakeCoreAPI(t testing.TB, answer func(prompt string) string) *FakeCoreAPI {
	t.Helper()
	fake := &FakeCoreAPI{Answer: answer, Agents: []string{"default-agent"}}
	fake.server = httptest.NewServer(fake)
	t.Cleanup(fake.server.Close)
	return fake
}

// URL returns the base URL of the fake.
func (f *FakeCoreAPI) URL() string {
	return f.server.URL
}

// Completions returns the completion requests received so far.
func (f *FakeCoreAPI) Completions() []CompletionCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]CompletionCall(nil), f.completions...)
}

// Sessions returns the number of sessions created.
func (f *FakeCoreAPI) Sessions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions
}

// Uploads returns the uploaded file names.
func (f *FakeCoreAPI) Uploads() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.uploads...)
}

// ServeHTTP routes the subset of Core API endpoints the tools call.
func (f *FakeCoreAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if f.Token != "" && r.Header.Get("Authorization") != "Bearer "+f.Token {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	path := r.URL.Path
	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(path, "/sessions"):
		f.mu.Lock()
		f.sessions++
		id := fmt.Sprintf("session-%d", f.sessions)
		f.mu.Unlock()
		writeJSON(w, map[string]string{"sessionId": id, "name": id})
	case r.Method == http.MethodPost && strings.HasSuffix(path, "/completions"):
		var req struct {
			UserPrompt  string   `json:"user_prompt"`
			AgentName   string   `json:"agent_name"`
			SessionID   string   `json:"session_id"`
			Attachments []string `json:"attachments"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.completions = append(f.completions, CompletionCall{
			Prompt:      req.UserPrompt,
			Agent:       req.AgentName,
			SessionID:   req.SessionID,
			Attachments: req.Attachments,
		})
		f.mu.Unlock()
		answer := ""
		if f.Answer != nil {
			answer = f.Answer(req.UserPrompt)
		}
		writeJSON(w, map[string]any{
			"operation_id":  "op-1",
			"text":          answer,
			"session_id":    req.SessionID,
			"prompt_tokens": 10,
			"total_tokens":  10 + len(strings.Fields(answer)),
		})
	case r.Method == http.MethodPost && strings.HasSuffix(path, "/files/upload"):
		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_, _ = io.Copy(io.Discard, file)
		_ = file.Close()
		f.mu.Lock()
		f.uploads = append(f.uploads, header.Filename)
		id := fmt.Sprintf("attachment-%d", len(f.uploads))
		f.mu.Unlock()
		writeJSON(w, map[string]string{"objectId": id, "originalFileName": header.Filename})
	case r.Method == http.MethodGet && strings.HasSuffix(path, "/completions/agents"):
		entries := make([]map[string]any, 0, len(f.Agents))
		for _, name := range f.Agents {
			entries = append(entries, map[string]any{
				"resource": map[string]string{"name": name, "object_id": "/agents/" + name},
				"roles":    []string{"Reader"},
			})
		}
		writeJSON(w, entries)
	default:
		http.NotFound(w, r)
	}
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
