package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/foundationallm/foundationallm-sub000/internal/app"
	"github.com/foundationallm/foundationallm-sub000/internal/config"
	"github.com/foundationallm/foundationallm-sub000/internal/coreapi"
	"github.com/foundationallm/foundationallm-sub000/internal/harness"
	"github.com/foundationallm/foundationallm-sub000/internal/llm"
	"github.com/foundationallm/foundationallm-sub000/internal/mgmtapi"
	"github.com/foundationallm/foundationallm-sub000/internal/optimizer"
)

const smokeSuite = `ID,Question,ExpectedAnswer,ValidationRules,ValidationMode
capital,What is the capital of France?,Paris,"{""contains"":[""Paris""]}",rule
germany,What is the capital of Germany?,Berlin,"{""contains"":[""Berlin""]}",rule
`

// project is a scaffolded workspace with a two case rule suite.
type project struct {
	root   string
	config string
}

func newProject(t *testing.T) project {
	t.Helper()
	root := t.TempDir()
	if _, err := config.Scaffold(root); err != nil {
		t.Fatalf("scaffold: %v", err)
	}
	writeFile(t, filepath.Join(root, config.DefaultSuitesDir, "smoke.csv"), smokeSuite)
	return project{root: root, config: config.ConfigPath(root)}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func runCLI(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := Run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

// fakeCore answers every question with answer().
type fakeCore struct {
	mu      sync.Mutex
	answer  func() string
	prompts []string
}

func (f *fakeCore) CreateSession(_ context.Context, name string) (coreapi.Session, error) {
	return coreapi.Session{ID: "session-" + name, Name: name}, nil
}

func (f *fakeCore) UploadFile(_ context.Context, _, _, filePath string) (coreapi.Attachment, error) {
	return coreapi.Attachment{ObjectID: "file-1", OriginalFileName: filepath.Base(filePath)}, nil
}

func (f *fakeCore) Completion(_ context.Context, req coreapi.CompletionRequest) (coreapi.CompletionResponse, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, req.UserPrompt)
	f.mu.Unlock()
	return coreapi.CompletionResponse{Completion: f.answer(), TotalTokens: 10}, nil
}

func useCore(t *testing.T, core harness.Completer) {
	t.Helper()
	original := newCore
	newCore = func(*app.Env) (harness.Completer, error) { return core, nil }
	t.Cleanup(func() { newCore = original })
}

func useChat(t *testing.T, chat llm.Chat) {
	t.Helper()
	original := newChat
	newChat = func(*app.Env) (llm.Chat, error) { return chat, nil }
	t.Cleanup(func() { newChat = original })
}

// fakePrompts is an in-memory prompt store.
type fakePrompts struct {
	mu       sync.Mutex
	prompt   mgmtapi.Prompt
	upserted []mgmtapi.Prompt
	onUpsert func(mgmtapi.Prompt)
}

func (f *fakePrompts) GetAgent(_ context.Context, name string) (json.RawMessage, error) {
	return json.RawMessage(`{"name":"` + name + `"}`), nil
}

func (f *fakePrompts) GetPrompt(_ context.Context, name string) (mgmtapi.Prompt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.prompt
	p.Name = name
	return p, nil
}

func (f *fakePrompts) UpsertPrompt(_ context.Context, p mgmtapi.Prompt) (mgmtapi.UpsertResult, error) {
	f.mu.Lock()
	f.upserted = append(f.upserted, p)
	f.prompt = p
	hook := f.onUpsert
	f.mu.Unlock()
	if hook != nil {
		hook(p)
	}
	return mgmtapi.UpsertResult{ObjectID: "/prompts/" + p.Name}, nil
}

func usePrompts(t *testing.T, prompts optimizer.PromptStore) {
	t.Helper()
	original := newPrompts
	newPrompts = func(*app.Env) (optimizer.PromptStore, error) { return prompts, nil }
	t.Cleanup(func() { newPrompts = original })
}

// lineValue returns the text after prefix on the first matching line.
func lineValue(t *testing.T, output, prefix string) string {
	t.Helper()
	for _, line := range strings.Split(output, "\n") {
		if strings.HasPrefix(line, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(line, prefix))
		}
	}
	t.Fatalf("no line starting with %q in:\n%s", prefix, output)
	return ""
}
