// Package plugins adapts Azure services into tools and workflows that agents
// and MCP servers can call.
package plugins

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/foundationallm/foundationallm-sub000/internal/transport"
)

// Document is one search hit.
type Document struct {
	ID      string         `json:"id,omitempty"`
	Title   string         `json:"title,omitempty"`
	Content string         `json:"content"`
	Source  string         `json:"source,omitempty"`
	Score   float64        `json:"score"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// SearchOptions narrows a query.
type SearchOptions struct {
	Top    int
	Select []string
	Filter string
}

// Field names tried, in order, when mapping index documents.
var (
	idFields      = []string{"id", "chunk_id", "key"}
	titleFields   = []string{"title", "name", "metadata_storage_name"}
	contentFields = []string{"content", "chunk", "text", "page_content"}
	sourceFields  = []string{"source", "url", "metadata_storage_path", "filepath"}
)

// SearchTool queries an Azure AI Search index over REST.
type SearchTool struct {
	rest       *transport.Client
	index      string
	apiVersion string
	top        int
}

// NewSearchTool builds a tool for one index. rest should carry the api-key
// header; see SearchHeaders.
func NewSearchTool(rest *transport.Client, index, apiVersion string, top int) (*SearchTool, error) {
	if rest == nil {
		return nil, errors.New("search: rest client is required")
	}
	if strings.TrimSpace(index) == "" {
		return nil, errors.New("search: index is required")
	}
	if top <= 0 {
		top = 5
	}
	return &SearchTool{rest: rest, index: index, apiVersion: apiVersion, top: top}, nil
}

// SearchHeaders returns the key header Azure AI Search expects.
func SearchHeaders(apiKey string) map[string]string {
	return map[string]string{"api-key": apiKey}
}

type searchRequest struct {
	Search string `json:"search"`
	Top    int    `json:"top"`
	Select string `json:"select,omitempty"`
	Filter string `json:"filter,omitempty"`
}

// Search runs a full-text query and maps hits to documents.
func (s *SearchTool) Search(ctx context.Context, query string, opts SearchOptions) ([]Document, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("search: query is required")
	}
	top := opts.Top
	if top <= 0 {
		top = s.top
	}
	params := url.Values{}
	if s.apiVersion != "" {
		params.Set("api-version", s.apiVersion)
	}
	body, err := s.rest.Do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/indexes/" + url.PathEscape(s.index) + "/docs/search",
		Query:  params,
		Body: searchRequest{
			Search: query,
			Top:    top,
			Select: strings.Join(opts.Select, ","),
			Filter: opts.Filter,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", s.index, err)
	}
	return parseSearch(body)
}

func parseSearch(body []byte) ([]Document, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("search: response is not valid json")
	}
	hits := gjson.GetBytes(body, "value").Array()
	docs := make([]Document, 0, len(hits))
	for _, hit := range hits {
		doc := Document{
			ID:      firstString(hit, idFields),
			Title:   firstString(hit, titleFields),
			Content: firstString(hit, contentFields),
			Source:  firstString(hit, sourceFields),
		}
		if fields, ok := hit.Value().(map[string]any); ok {
			if score, ok := fields["@search.score"].(float64); ok {
				doc.Score = score
			}
			delete(fields, "@search.score")
			doc.Fields = fields
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func firstString(hit gjson.Result, names []string) string {
	for _, name := range names {
		if value := hit.Get(name); value.Exists() && value.String() != "" {
			return value.String()
		}
	}
	return ""
}
