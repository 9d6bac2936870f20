package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingTokens struct {
	mu          sync.Mutex
	tokens      []string
	calls       int
	invalidated int
}

func (c *countingTokens) Token(context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := c.calls
	if idx >= len(c.tokens) {
		idx = len(c.tokens) - 1
	}
	c.calls++
	return c.tokens[idx], nil
}

func (c *countingTokens) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated++
}

type recordingObserver struct {
	mu       sync.Mutex
	statuses []int
}

func (r *recordingObserver) ObserveRequest(_ string, _ string, status int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
}

func newTestClient(t *testing.T, server *httptest.Server, opts Options) *Client {
	t.Helper()
	opts.BaseURL = server.URL + "/api"
	if opts.InitialInterval == 0 {
		opts.InitialInterval = time.Millisecond
	}
	client, err := New(opts)
	require.NoError(t, err)
	return client
}

func TestJSONSendsBearerAndDecodes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/instances/i1/sessions", r.URL.Path)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "hello", body["name"])
		_, _ = w.Write([]byte(`{"sessionId":"s-1"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server, Options{Tokens: &countingTokens{tokens: []string{"tok-1"}}})
	var out struct {
		SessionID string `json:"sessionId"`
	}
	err := client.JSON(context.Background(), http.MethodPost, "/instances/i1/sessions", nil, map[string]string{"name": "hello"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "s-1", out.SessionID)
}

func TestRetriesServerErrorsThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	observer := &recordingObserver{}
	client := newTestClient(t, server, Options{MaxRetries: 3, Observer: observer})
	_, err := client.Do(context.Background(), Request{Method: http.MethodGet, Path: "agents"})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []int{502, 502, 200}, observer.statuses)
}

func TestHonorsRetryAfterOnTooManyRequests(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := newTestClient(t, server, Options{MaxRetries: 1})
	_, err := client.Do(context.Background(), Request{Method: http.MethodGet, Path: "agents"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`missing`))
	}))
	defer server.Close()

	client := newTestClient(t, server, Options{MaxRetries: 3})
	_, err := client.Do(context.Background(), Request{Method: http.MethodGet, Path: "agents/x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "missing", apiErr.Body)
	assert.Equal(t, int32(1), calls.Load())
}

func TestExhaustedRetriesReturnAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(t, server, Options{MaxRetries: 1})
	_, err := client.Do(context.Background(), Request{Method: http.MethodGet, Path: "agents"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
}

func TestUnauthorizedRefreshesTokenOnce(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	tokens := &countingTokens{tokens: []string{"stale", "fresh"}}
	client := newTestClient(t, server, Options{Tokens: tokens})
	_, err := client.Do(context.Background(), Request{Method: http.MethodGet, Path: "agents"})
	require.NoError(t, err)
	assert.Equal(t, 1, tokens.invalidated)
	assert.Equal(t, 2, tokens.calls)
}

func TestUnauthorizedAfterRefreshFails(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newTestClient(t, server, Options{Tokens: &countingTokens{tokens: []string{"bad"}}, MaxRetries: 3})
	_, err := client.Do(context.Background(), Request{Method: http.MethodGet, Path: "agents"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnauthorized))
	assert.Equal(t, int32(2), calls.Load())
}

func TestUploadSendsMultipart(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "s-1", r.URL.Query().Get("sessionId"))
		file, header, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "notes.txt", header.Filename)
		assert.Equal(t, "contents", string(data))
		_, _ = w.Write([]byte(`{"objectId":"o-1"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server, Options{})
	body, err := client.Upload(context.Background(), "files/upload", url.Values{"sessionId": {"s-1"}}, "file", "notes.txt", strings.NewReader("contents"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"objectId":"o-1"}`, string(body))
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Duration(-1), parseRetryAfter("", now))
	assert.Equal(t, 3*time.Second, parseRetryAfter("3", now))
	assert.Equal(t, 10*time.Second, parseRetryAfter(now.Add(10*time.Second).Format(http.TimeFormat), now))
	assert.Equal(t, time.Duration(-1), parseRetryAfter("soon", now))
}

func TestNewRequiresAbsoluteURL(t *testing.T) {
	_, err := New(Options{BaseURL: "core.example.com"})
	require.Error(t, err)
}
