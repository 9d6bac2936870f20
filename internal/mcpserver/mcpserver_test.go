package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/foundationallm/foundationallm-sub000/internal/coreapi"
	"github.com/foundationallm/foundationallm-sub000/internal/crawler"
	"github.com/foundationallm/foundationallm-sub000/internal/metrics"
	"github.com/foundationallm/foundationallm-sub000/internal/mgmtapi"
	"github.com/foundationallm/foundationallm-sub000/internal/perplexity"
	"github.com/foundationallm/foundationallm-sub000/internal/plugins"
	"github.com/foundationallm/foundationallm-sub000/internal/testutil"
)

type fakeCore struct {
	mu       sync.Mutex
	answer   string
	err      error
	requests []coreapi.CompletionRequest
}

func (f *fakeCore) CreateSession(_ context.Context, name string) (coreapi.Session, error) {
	return coreapi.Session{ID: "session-" + name, Name: name}, nil
}

func (f *fakeCore) UploadFile(_ context.Context, _, _, filePath string) (coreapi.Attachment, error) {
	return coreapi.Attachment{ObjectID: filePath}, nil
}

func (f *fakeCore) Completion(_ context.Context, req coreapi.CompletionRequest) (coreapi.CompletionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return coreapi.CompletionResponse{}, f.err
	}
	return coreapi.CompletionResponse{Completion: f.answer, TotalTokens: 7}, nil
}

func (f *fakeCore) ListAgents(context.Context) ([]coreapi.AgentSummary, error) {
	return []coreapi.AgentSummary{{Name: "agent-a"}, {Name: "agent-b"}}, nil
}

type fakeManagement struct {
	prompts  map[string]mgmtapi.Prompt
	upserted []mgmtapi.Prompt
}

func (f *fakeManagement) GetAgent(_ context.Context, name string) (json.RawMessage, error) {
	if name != "agent-a" {
		return nil, errors.New("not found")
	}
	return json.RawMessage(`{"name":"agent-a","type":"knowledge-management"}`), nil
}

func (f *fakeManagement) ListTools(context.Context) ([]json.RawMessage, error) {
	return []json.RawMessage{json.RawMessage(`{"name":"dalle"}`)}, nil
}

func (f *fakeManagement) ListVectorizationPipelines(context.Context) ([]json.RawMessage, error) {
	return nil, nil
}

func (f *fakeManagement) GetPrompt(_ context.Context, name string) (mgmtapi.Prompt, error) {
	prompt, ok := f.prompts[name]
	if !ok {
		return mgmtapi.Prompt{}, errors.New("not found")
	}
	return prompt, nil
}

func (f *fakeManagement) UpsertPrompt(_ context.Context, prompt mgmtapi.Prompt) (mgmtapi.UpsertResult, error) {
	f.upserted = append(f.upserted, prompt)
	f.prompts[prompt.Name] = prompt
	return mgmtapi.UpsertResult{ObjectID: "/prompts/" + prompt.Name, ResourceExists: true}, nil
}

type fakeSearcher struct{ query string }

func (f *fakeSearcher) Search(_ context.Context, query string, opts plugins.SearchOptions) ([]plugins.Document, error) {
	f.query = query
	return []plugins.Document{{ID: "1", Content: "FoundationaLLM docs", Score: float64(opts.Top)}}, nil
}

func newRequest(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", result.Content[0])
	return text.Text
}

func newAgentTools(t *testing.T) (*AgentTools, *fakeCore, *fakeManagement) {
	t.Helper()
	core := &fakeCore{answer: "Paris is the capital of France."}
	raw := json.RawMessage(`{"name":"agent-a-prompt","prefix":"old","suffix":"","category":"kept"}`)
	prompt, err := mgmtapi.ParsePrompt(raw)
	require.NoError(t, err)
	mgmt := &fakeManagement{prompts: map[string]mgmtapi.Prompt{"agent-a-prompt": prompt}}
	return &AgentTools{Core: core, Management: mgmt, DefaultAgent: "agent-a", SuitesDir: t.TempDir()}, core, mgmt
}

func listedTools(t *testing.T, s *server.MCPServer) []string {
	t.Helper()
	reply := s.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	data, err := json.Marshal(reply)
	require.NoError(t, err)
	var names []string
	for _, name := range gjson.GetBytes(data, "result.tools.#.name").Array() {
		names = append(names, name.String())
	}
	return names
}

func TestAgentServerRegistersOptionalTools(t *testing.T) {
	t.Parallel()
	tools, _, _ := newAgentTools(t)
	names := listedTools(t, NewAgentServer(tools, "test"))
	assert.ElementsMatch(t, []string{
		"list_agents", "get_agent", "get_prompt", "update_prompt",
		"list_tools", "list_pipelines", "ask_agent", "run_test_suite",
	}, names)

	tools.Search = &fakeSearcher{}
	names = listedTools(t, NewAgentServer(tools, "test"))
	assert.Contains(t, names, "search_knowledge")
	assert.NotContains(t, names, "ask_knowledge")
	assert.NotContains(t, names, "run_code")

	tools.Knowledge = &fakeAsker{}
	names = listedTools(t, NewAgentServer(tools, "test"))
	assert.Contains(t, names, "ask_knowledge")
}

func TestAskAgentUsesDefaultAgent(t *testing.T) {
	t.Parallel()
	tools, core, _ := newAgentTools(t)

	result, err := tools.askAgent(context.Background(), newRequest(map[string]any{"question": "Capital of France?"}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	text := resultText(t, result)
	assert.Equal(t, "Paris is the capital of France.", gjson.Get(text, "answer").String())
	assert.Equal(t, int64(7), gjson.Get(text, "tokens").Int())
	require.Len(t, core.requests, 1)
	assert.Equal(t, "agent-a", core.requests[0].AgentName)
}

func TestAskAgentReportsFailuresAsToolErrors(t *testing.T) {
	t.Parallel()
	tools, core, _ := newAgentTools(t)
	core.err = errors.New("upstream unavailable")

	result, err := tools.askAgent(context.Background(), newRequest(map[string]any{"question": "hi"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "upstream unavailable")

	result, err = tools.askAgent(context.Background(), newRequest(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestUpdatePromptKeepsUnknownFields(t *testing.T) {
	t.Parallel()
	tools, _, mgmt := newAgentTools(t)

	result, err := tools.updatePrompt(context.Background(), newRequest(map[string]any{
		"name":   "agent-a-prompt",
		"prefix": "You are precise.",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))
	require.Len(t, mgmt.upserted, 1)
	assert.Equal(t, "You are precise.", mgmt.upserted[0].Prefix)
	assert.Equal(t, "kept", gjson.GetBytes(mgmt.upserted[0].Raw, "category").String())
	assert.Equal(t, "You are precise.", gjson.GetBytes(mgmt.upserted[0].Raw, "prefix").String())
}

func TestUpdatePromptRejectsEmptyPrefix(t *testing.T) {
	t.Parallel()
	tools, _, mgmt := newAgentTools(t)

	result, err := tools.updatePrompt(context.Background(), newRequest(map[string]any{
		"name":   "agent-a-prompt",
		"prefix": "  ",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Empty(t, mgmt.upserted)
}

func TestGetAgentAndListings(t *testing.T) {
	t.Parallel()
	tools, _, _ := newAgentTools(t)
	ctx := context.Background()

	result, err := tools.getAgent(ctx, newRequest(nil))
	require.NoError(t, err)
	assert.Equal(t, "knowledge-management", gjson.Get(resultText(t, result), "type").String())

	result, err = tools.getAgent(ctx, newRequest(map[string]any{"name": "missing"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = tools.listTools(ctx, newRequest(nil))
	require.NoError(t, err)
	assert.Equal(t, int64(1), gjson.Get(resultText(t, result), "count").Int())

	result, err = tools.listPipelines(ctx, newRequest(nil))
	require.NoError(t, err)
	assert.Equal(t, "[]", gjson.Get(resultText(t, result), "pipelines").Raw)

	result, err = tools.listAgents(ctx, newRequest(nil))
	require.NoError(t, err)
	assert.Equal(t, "agent-b", gjson.Get(resultText(t, result), "agents.1.name").String())
}

func TestRunTestSuiteReturnsSummary(t *testing.T) {
	t.Parallel()
	tools, _, _ := newAgentTools(t)
	csv := "Question,Filename,ExpectedAnswer,ValidationRules,ValidationMode\n" +
		"\"Capital of France?\",,Paris,\"{\"\"contains\"\":[\"\"Paris\"\"]}\",rule\n" +
		"\"Capital of Spain?\",,Madrid,\"{\"\"contains\"\":[\"\"Madrid\"\"]}\",rule\n"
	require.NoError(t, os.WriteFile(filepath.Join(tools.SuitesDir, "capitals.csv"), []byte(csv), 0o644))

	result, err := tools.runTestSuite(context.Background(), newRequest(map[string]any{"suite": "capitals"}))
	require.NoError(t, err)
	text := resultText(t, result)
	require.False(t, result.IsError, text)
	assert.Equal(t, int64(2), gjson.Get(text, "summary.total").Int())
	assert.Equal(t, int64(1), gjson.Get(text, "summary.passed").Int())
	assert.InDelta(t, 0.5, gjson.Get(text, "summary.pass_rate").Float(), 1e-9)
	assert.Equal(t, int64(1), gjson.Get(text, "failures.#").Int())
}

func TestRunTestSuiteUnknownSuite(t *testing.T) {
	t.Parallel()
	tools, _, _ := newAgentTools(t)

	result, err := tools.runTestSuite(context.Background(), newRequest(map[string]any{"suite": "nope"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "not found")
}

func TestSearchKnowledgePassesTop(t *testing.T) {
	t.Parallel()
	tools, _, _ := newAgentTools(t)
	searcher := &fakeSearcher{}
	tools.Search = searcher

	result, err := tools.searchKnowledge(context.Background(), newRequest(map[string]any{"query": "pricing", "top": 3}))
	require.NoError(t, err)
	assert.Equal(t, "pricing", searcher.query)
	assert.InDelta(t, 3, gjson.Get(resultText(t, result), "documents.0.score").Float(), 1e-9)
}

type fakeAsker struct{ question string }

func (f *fakeAsker) Ask(_ context.Context, question string) (plugins.Answer, error) {
	f.question = question
	if question == "fail" {
		return plugins.Answer{}, errors.New("index offline")
	}
	return plugins.Answer{Text: "Use the management API."}, nil
}

func TestAskKnowledge(t *testing.T) {
	t.Parallel()
	tools, _, _ := newAgentTools(t)
	asker := &fakeAsker{}
	tools.Knowledge = asker

	result, err := tools.askKnowledge(context.Background(), newRequest(map[string]any{"question": "how do I edit prompts?"}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "how do I edit prompts?", asker.question)
	assert.Equal(t, "Use the management API.", gjson.Get(resultText(t, result), "answer").String())

	result, err = tools.askKnowledge(context.Background(), newRequest(map[string]any{"question": "fail"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "index offline")

	result, err = tools.askKnowledge(context.Background(), newRequest(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

type fakeWebSearcher struct{ model string }

func (f *fakeWebSearcher) Search(_ context.Context, query, model string) (perplexity.Result, error) {
	f.model = model
	if query == "fail" {
		return perplexity.Result{}, errors.New("rate limited")
	}
	return perplexity.Result{Answer: "42", Citations: []string{"https://example.com/a"}, Model: "sonar"}, nil
}

func TestPerplexitySearchFormatsCitations(t *testing.T) {
	t.Parallel()
	searcher := &fakeWebSearcher{}
	handler := perplexitySearch(searcher)

	result, err := handler(context.Background(), newRequest(map[string]any{"query": "meaning of life", "model": "sonar-pro"}))
	require.NoError(t, err)
	assert.Equal(t, "sonar-pro", searcher.model)
	text := resultText(t, result)
	assert.True(t, strings.HasPrefix(text, "42"))
	assert.Contains(t, text, "[1] https://example.com/a")

	result, err = handler(context.Background(), newRequest(map[string]any{"query": "fail"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

type fakeFetcher struct {
	opts crawler.CrawlOptions
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL string) (crawler.Page, error) {
	if strings.Contains(rawURL, "broken") {
		return crawler.Page{}, crawler.ErrNotHTML
	}
	return crawler.Page{URL: rawURL, Title: "Home", Text: "héllo world"}, nil
}

func (f *fakeFetcher) Crawl(_ context.Context, start string, opts crawler.CrawlOptions) ([]crawler.Page, []error, error) {
	f.opts = opts
	return []crawler.Page{{URL: start, Text: "root page"}, {URL: start + "/a", Text: "child", Depth: 1}},
		[]error{errors.New("fetch /b: 404")}, nil
}

func TestFetchPageTruncatesText(t *testing.T) {
	t.Parallel()
	handler := fetchPage(&fakeFetcher{})

	result, err := handler(context.Background(), newRequest(map[string]any{"url": "https://example.com", "max_chars": 2}))
	require.NoError(t, err)
	assert.Equal(t, "hé…", gjson.Get(resultText(t, result), "text").String())

	result, err = handler(context.Background(), newRequest(map[string]any{"url": "https://example.com/broken"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestCrawlUsesDefaultsAndReportsPageErrors(t *testing.T) {
	t.Parallel()
	fetcher := &fakeFetcher{}
	handler := crawlSite(fetcher)

	result, err := handler(context.Background(), newRequest(map[string]any{"url": "https://example.com"}))
	require.NoError(t, err)
	assert.Equal(t, crawler.DefaultMaxDepth, fetcher.opts.MaxDepth)
	assert.Equal(t, crawler.DefaultMaxPages, fetcher.opts.MaxPages)
	text := resultText(t, result)
	assert.Equal(t, int64(2), gjson.Get(text, "pages.#").Int())
	assert.Equal(t, "fetch /b: 404", gjson.Get(text, "errors.0").String())
}

type syncBuffer struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestServeStdioAnswersToolsList(t *testing.T) {
	t.Parallel()
	tools, _, _ := newAgentTools(t)
	stdinReader, stdinWriter := io.Pipe()
	stdout := &syncBuffer{}
	ctx, cancel := context.WithCancel(testutil.Context(t, 5*time.Second))
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, NewAgentServer(tools, "test"), ServeOptions{
			Transport: TransportStdio,
			Stdin:     stdinReader,
			Stdout:    stdout,
		})
	}()

	_, err := io.WriteString(stdinWriter, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`+"\n")
	require.NoError(t, err)
	testutil.Eventually(t, 2*time.Second, 10*time.Millisecond, func() bool {
		return strings.Contains(stdout.String(), "run_test_suite")
	}, "tools/list reply never arrived")

	cancel()
	_ = stdinWriter.Close()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("stdio server did not stop")
	}
}

func TestParseTransport(t *testing.T) {
	t.Parallel()
	tests := []struct {
		input   string
		want    Transport
		wantErr bool
	}{
		{input: "", want: TransportStdio},
		{input: "stdio", want: TransportStdio},
		{input: "http", want: TransportHTTP},
		{input: "streamable-http", want: TransportHTTP},
		{input: "sse", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			got, err := ParseTransport(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHandlerServesMetricsAndHealth(t *testing.T) {
	t.Parallel()
	s := NewCrawlerServer(&fakeFetcher{}, "test")
	srv := httptest.NewServer(Handler(context.Background(), s, metrics.New()))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
