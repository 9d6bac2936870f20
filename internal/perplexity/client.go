// Package perplexity wraps the Perplexity chat-completions search API.
package perplexity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/foundationallm/foundationallm-sub000/internal/transport"
)

const systemPrompt = "Be precise and concise. Cite your sources."

// Result is a search answer with its sources.
type Result struct {
	Answer    string   `json:"answer"`
	Citations []string `json:"citations"`
	Model     string   `json:"model"`
	Tokens    int      `json:"tokens,omitempty"`
}

// Client calls the Perplexity API through the shared REST transport.
type Client struct {
	rest  *transport.Client
	model string
}

// New returns a client that uses model unless a call overrides it.
func New(rest *transport.Client, model string) (*Client, error) {
	if rest == nil {
		return nil, errors.New("perplexity: rest client is required")
	}
	return &Client{rest: rest, model: strings.TrimSpace(model)}, nil
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type request struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
}

// Search asks the model a question with web grounding.
func (c *Client) Search(ctx context.Context, query, model string) (Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Result{}, errors.New("perplexity: query is required")
	}
	if model = strings.TrimSpace(model); model == "" {
		model = c.model
	}
	if model == "" {
		return Result{}, errors.New("perplexity: model is required")
	}
	body, err := c.rest.Do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/chat/completions",
		Body: request{
			Model: model,
			Messages: []message{
				{Role: "system", Content: systemPrompt},
				{Role: "user", Content: query},
			},
		},
	})
	if err != nil {
		return Result{}, fmt.Errorf("perplexity search: %w", err)
	}
	return parseResponse(body, model)
}

// parseResponse reads the answer and citations. Newer responses carry
// search_results objects instead of a citations list.
func parseResponse(body []byte, model string) (Result, error) {
	if !gjson.ValidBytes(body) {
		return Result{}, errors.New("perplexity: response is not valid json")
	}
	doc := gjson.ParseBytes(body)
	answer := doc.Get("choices.0.message.content")
	if !answer.Exists() {
		return Result{}, errors.New("perplexity: response has no choices")
	}
	result := Result{
		Answer: strings.TrimSpace(answer.String()),
		Model:  model,
		Tokens: int(doc.Get("usage.total_tokens").Int()),
	}
	if served := doc.Get("model").String(); served != "" {
		result.Model = served
	}
	seen := map[string]bool{}
	add := func(link string) {
		link = strings.TrimSpace(link)
		if link != "" && !seen[link] {
			seen[link] = true
			result.Citations = append(result.Citations, link)
		}
	}
	for _, item := range doc.Get("citations").Array() {
		add(item.String())
	}
	for _, item := range doc.Get("search_results").Array() {
		add(item.Get("url").String())
	}
	return result, nil
}

// Format renders a result as plain text with numbered sources.
func (r Result) Format() string {
	var b strings.Builder
	b.WriteString(r.Answer)
	if len(r.Citations) > 0 {
		b.WriteString("\n\nSources:\n")
		for i, link := range r.Citations {
			fmt.Fprintf(&b, "[%d] %s\n", i+1, link)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// JSON renders the result for structured tool output.
func (r Result) JSON() string {
	data, _ := json.Marshal(r)
	return string(data)
}
