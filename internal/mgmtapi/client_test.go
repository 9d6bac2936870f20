package mgmtapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/foundationallm/foundationallm-sub000/internal/transport"
)

func newClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	rest, err := transport.New(transport.Options{Name: "management", BaseURL: server.URL, InitialInterval: time.Millisecond, MaxRetries: -1})
	if err != nil {
		t.Fatalf("transport: %v", err)
	}
	client, err := New(rest, "inst")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	return client
}

// TestGetPromptUnwrapsResource verifies wrapped results are unwrapped and parsed.
func TestGetPromptUnwrapsResource(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/instances/inst/providers/FoundationaLLM.Prompt/prompts/main" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`[{"resource":{"type":"multipart","name":"main","prefix":"Be kind.","suffix":"","category":"x"},"roles":[]}]`))
	})
	prompt, err := client.GetPrompt(context.Background(), "main")
	if err != nil {
		t.Fatalf("get prompt: %v", err)
	}
	if prompt.Prefix != "Be kind." || prompt.Name != "main" {
		t.Fatalf("unexpected prompt %+v", prompt)
	}
}

// TestUpsertPromptPreservesUnknownFields verifies read-modify-write keeps extra fields.
func TestUpsertPromptPreservesUnknownFields(t *testing.T) {
	var posted map[string]any
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		data, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(data, &posted); err != nil {
			t.Errorf("decode: %v", err)
		}
		_, _ = w.Write([]byte(`{"object_id":"/instances/inst/providers/FoundationaLLM.Prompt/prompts/main","resource_exists":true}`))
	})
	prompt, err := ParsePrompt(json.RawMessage(`{"name":"main","prefix":"old","category":"keep-me"}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	updated, err := prompt.WithPrefix("new")
	if err != nil {
		t.Fatalf("with prefix: %v", err)
	}
	result, err := client.UpsertPrompt(context.Background(), updated)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if !result.ResourceExists {
		t.Fatalf("expected resource_exists")
	}
	if posted["prefix"] != "new" || posted["category"] != "keep-me" {
		t.Fatalf("unexpected posted body %v", posted)
	}
}

// TestGetMissingResource verifies 404 maps to ErrNotFound.
func TestGetMissingResource(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	_, err := client.GetAgent(context.Background(), "ghost")
	if !errors.Is(err, transport.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

// TestListAndActivatePipelines verifies collection paths and the activate action.
func TestListAndActivatePipelines(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/instances/inst/providers/FoundationaLLM.Vectorization/vectorizationPipelines":
			_, _ = w.Write([]byte(`[{"resource":{"name":"p1"}},{"resource":{"name":"p2"}}]`))
		case "/instances/inst/providers/FoundationaLLM.Vectorization/vectorizationPipelines/p1/activate":
			_, _ = w.Write([]byte(`{"is_success":true}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})
	items, err := client.ListVectorizationPipelines(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 2 || ResourceName(items[1]) != "p2" {
		t.Fatalf("unexpected items %s", items)
	}
	if _, err := client.ActivatePipeline(context.Background(), "p1"); err != nil {
		t.Fatalf("activate: %v", err)
	}
}

// TestAgentPromptName covers both reference styles.
func TestAgentPromptName(t *testing.T) {
	cases := []struct {
		name  string
		agent string
		want  string
	}{
		{
			name:  "workflow",
			agent: `{"name":"a","workflow":{"resource_object_ids":{"/instances/i/providers/FoundationaLLM.AIModel/aiModels/gpt":{"object_id":"/instances/i/providers/FoundationaLLM.AIModel/aiModels/gpt","properties":{"object_role":"main_model"}},"/instances/i/providers/FoundationaLLM.Prompt/prompts/AgentPrompt":{"object_id":"/instances/i/providers/FoundationaLLM.Prompt/prompts/AgentPrompt","properties":{"object_role":"main_prompt"}}}}}`,
			want:  "AgentPrompt",
		},
		{
			name:  "legacy",
			agent: `{"name":"a","prompt_object_id":"/instances/i/providers/FoundationaLLM.Prompt/prompts/Legacy"}`,
			want:  "Legacy",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := AgentPromptName(json.RawMessage(tc.agent))
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
	if _, err := AgentPromptName(json.RawMessage(`{"name":"a"}`)); err == nil {
		t.Fatalf("expected error for agent without prompt")
	}
}
