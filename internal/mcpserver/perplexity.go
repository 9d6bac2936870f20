package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/foundationallm/foundationallm-sub000/internal/perplexity"
)

// WebSearcher is the Perplexity surface the search tool calls.
type WebSearcher interface {
	Search(ctx context.Context, query, model string) (perplexity.Result, error)
}

// NewPerplexityServer exposes perplexity_search.
func NewPerplexityServer(searcher WebSearcher, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"fllm-perplexity",
		version,
		server.WithToolCapabilities(false),
	)
	s.AddTool(mcp.NewTool("perplexity_search",
		mcp.WithDescription("Answer a question with live web search and return the answer with citations"),
		mcp.WithString("query", mcp.Required(), mcp.Description("Question or search query")),
		mcp.WithString("model", mcp.Description("Perplexity model; defaults to the configured model")),
	), perplexitySearch(searcher))
	return s
}

func perplexitySearch(searcher WebSearcher) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := request.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		result, err := searcher.Search(ctx, query, request.GetString("model", ""))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Search failed: %v", err)), nil
		}
		return mcp.NewToolResultStructured(result, result.Format()), nil
	}
}
