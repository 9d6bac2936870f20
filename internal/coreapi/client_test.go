package coreapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/foundationallm/foundationallm-sub000/internal/transport"
)

func newClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	rest, err := transport.New(transport.Options{Name: "core", BaseURL: server.URL, InitialInterval: time.Millisecond})
	if err != nil {
		t.Fatalf("transport: %v", err)
	}
	client, err := New(rest, "inst-1")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

// TestCreateSessionAcceptsBothIDFields verifies session ids are read from either casing.
func TestCreateSessionAcceptsBothIDFields(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/instances/inst-1/sessions" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"sessionId":"abc"}`))
	}))
	session, err := client.CreateSession(context.Background(), "harness")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if session.ID != "abc" {
		t.Fatalf("unexpected session id %q", session.ID)
	}
}

// TestCompletionSendsPayload verifies the completion request body and text flattening.
func TestCompletionSendsPayload(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req CompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.UserPrompt != "hi" || req.AgentName != "agent-a" || req.SessionID != "s1" || len(req.Attachments) != 1 {
			t.Errorf("unexpected request %+v", req)
		}
		_, _ = w.Write([]byte(`{"content":[{"type":"text","value":"Hello"},{"type":"text","value":"world"}],"total_tokens":12}`))
	}))
	resp, err := client.Completion(context.Background(), CompletionRequest{
		UserPrompt:  "hi",
		AgentName:   "agent-a",
		SessionID:   "s1",
		Attachments: []string{"obj-1"},
	})
	if err != nil {
		t.Fatalf("completion: %v", err)
	}
	if resp.Text() != "Hello\nworld" {
		t.Fatalf("unexpected text %q", resp.Text())
	}
	if resp.Tokens() != 12 {
		t.Fatalf("unexpected tokens %d", resp.Tokens())
	}
}

// TestCompletionRequiresAgent verifies validation happens before any request.
func TestCompletionRequiresAgent(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Errorf("unexpected request")
	}))
	if _, err := client.Completion(context.Background(), CompletionRequest{UserPrompt: "hi"}); err == nil {
		t.Fatalf("expected error")
	}
}

// TestTextFallsBackToLegacyFields verifies older payloads still produce text.
func TestTextFallsBackToLegacyFields(t *testing.T) {
	if got := (CompletionResponse{RawText: " plain "}).Text(); got != "plain" {
		t.Fatalf("unexpected text %q", got)
	}
	if got := (CompletionResponse{Completion: "legacy"}).Text(); got != "legacy" {
		t.Fatalf("unexpected text %q", got)
	}
}

// TestUploadFileReturnsObjectID verifies multipart upload query parameters.
func TestUploadFileReturnsObjectID(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/instances/inst-1/files/upload" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("sessionId") != "s1" || r.URL.Query().Get("agentName") != "agent-a" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"objectId":"obj-9","originalFileName":"doc.txt"}`))
	}))
	path := filepath.Join(t.TempDir(), "doc.txt")
	if err := os.WriteFile(path, []byte("body"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	attachment, err := client.UploadFile(context.Background(), "s1", "agent-a", path)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if attachment.ObjectID != "obj-9" || attachment.OriginalFileName != "doc.txt" {
		t.Fatalf("unexpected attachment %+v", attachment)
	}
}

// TestListAgentsFlattensResources verifies the agent listing shape.
func TestListAgentsFlattensResources(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/instances/inst-1/completions/agents" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`[{"resource":{"name":"a1","display_name":"Agent One"},"roles":["reader"]}]`))
	}))
	agents, err := client.ListAgents(context.Background())
	if err != nil {
		t.Fatalf("list agents: %v", err)
	}
	if len(agents) != 1 || agents[0].Name != "a1" || agents[0].DisplayName != "Agent One" {
		t.Fatalf("unexpected agents %+v", agents)
	}
}
