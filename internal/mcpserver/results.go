package mcpserver

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// jsonResult returns v as structured content with an indented JSON text
// fallback for clients that ignore structured output.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	text, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultStructured(v, string(text)), nil
}

// rawResult passes a Management API resource through verbatim.
func rawResult(raw json.RawMessage) *mcp.CallToolResult {
	return mcp.NewToolResultText(string(raw))
}

func resourceList(key string, items []json.RawMessage) (*mcp.CallToolResult, error) {
	if items == nil {
		items = []json.RawMessage{}
	}
	return jsonResult(map[string]any{key: items, "count": len(items)})
}
