package plugins

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foundationallm/foundationallm-sub000/internal/auth"
	"github.com/foundationallm/foundationallm-sub000/internal/llm/llmtest"
	"github.com/foundationallm/foundationallm-sub000/internal/transport"
)

func newRest(t *testing.T, handler http.HandlerFunc, opts transport.Options) *transport.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	opts.BaseURL = server.URL
	opts.MaxRetries = -1
	rest, err := transport.New(opts)
	require.NoError(t, err)
	return rest
}

func TestSearchToolQueriesIndex(t *testing.T) {
	t.Parallel()
	var gotPath, gotKey, gotVersion string
	var gotBody searchRequest
	rest := newRest(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("api-key")
		gotVersion = r.URL.Query().Get("api-version")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{"value":[
			{"@search.score":2.5,"id":"1","title":"Leave policy","content":"Vacation is 25 days.","url":"https://intranet/leave"},
			{"@search.score":1.1,"chunk_id":"c-2","chunk":"Sick leave is unlimited."}
		]}`))
	}, transport.Options{Headers: SearchHeaders("secret")})

	tool, err := NewSearchTool(rest, "handbook", "2023-11-01", 3)
	require.NoError(t, err)
	docs, err := tool.Search(context.Background(), "vacation days", SearchOptions{Select: []string{"title", "content"}})
	require.NoError(t, err)

	assert.Equal(t, "/indexes/handbook/docs/search", gotPath)
	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, "2023-11-01", gotVersion)
	assert.Equal(t, searchRequest{Search: "vacation days", Top: 3, Select: "title,content"}, gotBody)
	require.Len(t, docs, 2)
	assert.Equal(t, "Leave policy", docs[0].Title)
	assert.Equal(t, "https://intranet/leave", docs[0].Source)
	assert.InDelta(t, 2.5, docs[0].Score, 1e-9)
	assert.Equal(t, "c-2", docs[1].ID)
	assert.Equal(t, "Sick leave is unlimited.", docs[1].Content)
	assert.NotContains(t, docs[0].Fields, "@search.score")
}

func TestSearchToolRequiresQuery(t *testing.T) {
	t.Parallel()
	rest := newRest(t, func(w http.ResponseWriter, r *http.Request) {}, transport.Options{})
	tool, err := NewSearchTool(rest, "handbook", "", 0)
	require.NoError(t, err)
	_, err = tool.Search(context.Background(), "  ", SearchOptions{})
	assert.Error(t, err)
	_, err = NewSearchTool(rest, "", "", 0)
	assert.Error(t, err)
}

func TestCodeSessionToolExecutes(t *testing.T) {
	t.Parallel()
	var gotQuery map[string]string
	var gotAuth string
	var gotBody executeRequest
	rest := newRest(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/code/execute", r.URL.Path)
		gotQuery = map[string]string{
			"api-version": r.URL.Query().Get("api-version"),
			"identifier":  r.URL.Query().Get("identifier"),
		}
		gotAuth = r.Header.Get("Authorization")
		data, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(data, &gotBody))
		_, _ = w.Write([]byte(`{"properties":{"status":"Success","stdout":"4\n","stderr":"","result":4,"executionTimeInMilliseconds":12}}`))
	}, transport.Options{Tokens: auth.StaticSource{EnvVar: "TOKEN", Getenv: func(string) string { return "pool-token" }}})

	tool, err := NewCodeSessionTool(rest, "2024-02-02-preview")
	require.NoError(t, err)
	tool.newID = func() string { return "generated-session" }

	result, err := tool.Execute(context.Background(), "", "print(2+2)")
	require.NoError(t, err)
	assert.True(t, result.Succeeded())
	assert.Equal(t, "generated-session", result.SessionID)
	assert.Equal(t, "4\n", result.Stdout)
	assert.JSONEq(t, "4", string(result.Result))
	assert.Equal(t, map[string]string{"api-version": "2024-02-02-preview", "identifier": "generated-session"}, gotQuery)
	assert.Equal(t, "Bearer pool-token", gotAuth)
	assert.Equal(t, executeProperties{CodeInputType: "inline", ExecutionType: "synchronous", Code: "print(2+2)"}, gotBody.Properties)

	again, err := tool.Execute(context.Background(), "existing", "x = 1")
	require.NoError(t, err)
	assert.Equal(t, "existing", again.SessionID)
	assert.Equal(t, "existing", gotQuery["identifier"])
}

type stubRetriever struct {
	docs []Document
	err  error
}

func (s stubRetriever) Search(context.Context, string, SearchOptions) ([]Document, error) {
	return s.docs, s.err
}

func TestKnowledgeWorkflowAnswersFromSources(t *testing.T) {
	t.Parallel()
	chat := &llmtest.Fake{Responses: []string{"Vacation is 25 days [1]."}}
	workflow := &KnowledgeWorkflow{
		Retriever:      stubRetriever{docs: []Document{{Title: "Leave policy", Content: "Vacation is 25 days. More text here."}}},
		Chat:           chat,
		MaxSourceChars: 20,
	}
	answer, err := workflow.Ask(context.Background(), "How much vacation?")
	require.NoError(t, err)
	assert.Equal(t, "Vacation is 25 days [1].", answer.Text)
	require.Len(t, answer.Sources, 1)
	user := chat.LastUserMessage()
	assert.Contains(t, user, "[1] Leave policy")
	assert.Contains(t, user, "Vacation is 25 days.")
	assert.NotContains(t, user, "More text here")
}

func TestKnowledgeWorkflowWithoutSources(t *testing.T) {
	t.Parallel()
	chat := &llmtest.Fake{}
	workflow := &KnowledgeWorkflow{Retriever: stubRetriever{}, Chat: chat}
	answer, err := workflow.Ask(context.Background(), "Anything?")
	require.NoError(t, err)
	assert.Empty(t, answer.Sources)
	assert.Empty(t, chat.Calls())

	failing := &KnowledgeWorkflow{Retriever: stubRetriever{err: errors.New("index offline")}, Chat: chat}
	_, err = failing.Ask(context.Background(), "Anything?")
	assert.ErrorContains(t, err, "index offline")
}
