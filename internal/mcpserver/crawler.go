package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/foundationallm/foundationallm-sub000/internal/crawler"
)

// DefaultMaxChars caps page text returned by fetch_page.
const DefaultMaxChars = 20000

// PageFetcher is the crawler surface the tools call.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (crawler.Page, error)
	Crawl(ctx context.Context, start string, opts crawler.CrawlOptions) ([]crawler.Page, []error, error)
}

// NewCrawlerServer exposes fetch_page and crawl.
func NewCrawlerServer(fetcher PageFetcher, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"fllm-crawler",
		version,
		server.WithToolCapabilities(false),
	)
	s.AddTool(mcp.NewTool("fetch_page",
		mcp.WithDescription("Download a web page and return its title, visible text and links"),
		mcp.WithString("url", mcp.Required(), mcp.Description("Absolute http(s) URL")),
		mcp.WithNumber("max_chars", mcp.Description("Truncate page text to this many characters")),
	), fetchPage(fetcher))
	s.AddTool(mcp.NewTool("crawl",
		mcp.WithDescription("Follow same-host links breadth first and return the text of each page"),
		mcp.WithString("url", mcp.Required(), mcp.Description("Start URL")),
		mcp.WithNumber("depth", mcp.Description("Link depth to follow (default 1)")),
		mcp.WithNumber("max_pages", mcp.Description("Maximum pages to return (default 20)")),
		mcp.WithNumber("max_chars", mcp.Description("Truncate each page's text to this many characters")),
	), crawlSite(fetcher))
	return s
}

func fetchPage(fetcher PageFetcher) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		target, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		page, err := fetcher.Fetch(ctx, target)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to fetch %s: %v", target, err)), nil
		}
		page.Text = truncateText(page.Text, request.GetInt("max_chars", DefaultMaxChars))
		return jsonResult(page)
	}
}

func crawlSite(fetcher PageFetcher) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		target, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		pages, pageErrs, err := fetcher.Crawl(ctx, target, crawler.CrawlOptions{
			MaxDepth: request.GetInt("depth", crawler.DefaultMaxDepth),
			MaxPages: request.GetInt("max_pages", crawler.DefaultMaxPages),
		})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Crawl failed: %v", err)), nil
		}
		limit := request.GetInt("max_chars", DefaultMaxChars)
		for i := range pages {
			pages[i].Text = truncateText(pages[i].Text, limit)
		}
		errs := make([]string, 0, len(pageErrs))
		for _, pageErr := range pageErrs {
			errs = append(errs, pageErr.Error())
		}
		return jsonResult(map[string]any{"pages": pages, "errors": errs})
	}
}

// truncateText cuts on a rune boundary; limit <= 0 disables truncation.
func truncateText(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "…"
}
