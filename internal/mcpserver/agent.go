package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/foundationallm/foundationallm-sub000/internal/coreapi"
	"github.com/foundationallm/foundationallm-sub000/internal/harness"
	"github.com/foundationallm/foundationallm-sub000/internal/logging"
	"github.com/foundationallm/foundationallm-sub000/internal/mgmtapi"
	"github.com/foundationallm/foundationallm-sub000/internal/plugins"
	"github.com/foundationallm/foundationallm-sub000/internal/suite"
	"github.com/foundationallm/foundationallm-sub000/internal/validate"
)

// CoreAPI is the Core API surface the agent tools call.
type CoreAPI interface {
	harness.Completer
	ListAgents(ctx context.Context) ([]coreapi.AgentSummary, error)
}

// ManagementAPI is the Management API surface the agent tools call.
type ManagementAPI interface {
	GetAgent(ctx context.Context, name string) (json.RawMessage, error)
	ListTools(ctx context.Context) ([]json.RawMessage, error)
	ListVectorizationPipelines(ctx context.Context) ([]json.RawMessage, error)
	GetPrompt(ctx context.Context, name string) (mgmtapi.Prompt, error)
	UpsertPrompt(ctx context.Context, prompt mgmtapi.Prompt) (mgmtapi.UpsertResult, error)
}

// Searcher answers search_knowledge.
type Searcher interface {
	Search(ctx context.Context, query string, opts plugins.SearchOptions) ([]plugins.Document, error)
}

// KnowledgeAsker answers ask_knowledge.
type KnowledgeAsker interface {
	Ask(ctx context.Context, question string) (plugins.Answer, error)
}

// CodeRunner answers run_code.
type CodeRunner interface {
	Execute(ctx context.Context, sessionID, code string) (plugins.ExecutionResult, error)
}

// AgentTools backs the agent server. Search, Knowledge and Code are
// optional; their tools are only registered when set.
type AgentTools struct {
	Core         CoreAPI
	Management   ManagementAPI
	DefaultAgent string
	SuitesDir    string
	Workers      int
	Mode         validate.Mode
	Validator    *validate.Validator
	CaseTimeout  time.Duration
	Search       Searcher
	Knowledge    KnowledgeAsker
	Code         CodeRunner
	Logger       *zap.SugaredLogger
}

// NewAgentServer registers the agent tools on a fresh MCP server.
func NewAgentServer(tools *AgentTools, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"fllm-agent",
		version,
		server.WithToolCapabilities(false),
		server.WithLogging(),
	)
	tools.register(s)
	return s
}

func (a *AgentTools) register(s *server.MCPServer) {
	s.AddTool(mcp.NewTool("list_agents",
		mcp.WithDescription("List the agents deployed on the FoundationaLLM instance"),
	), a.listAgents)

	s.AddTool(mcp.NewTool("get_agent",
		mcp.WithDescription("Fetch an agent resource from the Management API"),
		mcp.WithString("name", mcp.Description("Agent name; defaults to the configured agent")),
	), a.getAgent)

	s.AddTool(mcp.NewTool("get_prompt",
		mcp.WithDescription("Fetch a multipart prompt (prefix and suffix)"),
		mcp.WithString("name", mcp.Required(), mcp.Description("Prompt resource name")),
	), a.getPrompt)

	s.AddTool(mcp.NewTool("update_prompt",
		mcp.WithDescription("Replace the prefix of a prompt, keeping every other field"),
		mcp.WithString("name", mcp.Required(), mcp.Description("Prompt resource name")),
		mcp.WithString("prefix", mcp.Required(), mcp.Description("New prompt prefix")),
	), a.updatePrompt)

	s.AddTool(mcp.NewTool("list_tools",
		mcp.WithDescription("List agent tools registered on the instance"),
	), a.listTools)

	s.AddTool(mcp.NewTool("list_pipelines",
		mcp.WithDescription("List vectorization pipelines"),
	), a.listPipelines)

	s.AddTool(mcp.NewTool("ask_agent",
		mcp.WithDescription("Send a question to an agent and return its answer"),
		mcp.WithString("question", mcp.Required(), mcp.Description("User prompt")),
		mcp.WithString("agent", mcp.Description("Agent name; defaults to the configured agent")),
		mcp.WithString("session_id", mcp.Description("Existing chat session to continue")),
	), a.askAgent)

	s.AddTool(mcp.NewTool("run_test_suite",
		mcp.WithDescription("Run a test suite against an agent and return the summary"),
		mcp.WithString("suite", mcp.Required(), mcp.Description("Suite name or path")),
		mcp.WithString("agent", mcp.Description("Agent name; defaults to the configured agent")),
		mcp.WithString("tags", mcp.Description("Comma separated tags to select")),
	), a.runTestSuite)

	if a.Search != nil {
		s.AddTool(mcp.NewTool("search_knowledge",
			mcp.WithDescription("Query the Azure AI Search knowledge index"),
			mcp.WithString("query", mcp.Required(), mcp.Description("Search text")),
			mcp.WithNumber("top", mcp.Description("Maximum documents to return")),
			mcp.WithString("filter", mcp.Description("OData filter expression")),
		), a.searchKnowledge)
	}
	if a.Knowledge != nil {
		s.AddTool(mcp.NewTool("ask_knowledge",
			mcp.WithDescription("Answer a question from the knowledge index and cite the passages used"),
			mcp.WithString("question", mcp.Required(), mcp.Description("Question to answer")),
		), a.askKnowledge)
	}
	if a.Code != nil {
		s.AddTool(mcp.NewTool("run_code",
			mcp.WithDescription("Execute Python code in an Azure Dynamic Sessions sandbox"),
			mcp.WithString("code", mcp.Required(), mcp.Description("Python source")),
			mcp.WithString("session_id", mcp.Description("Sandbox session identifier; a new one is created when empty")),
		), a.runCode)
	}
}

func (a *AgentTools) logger() *zap.SugaredLogger {
	return logging.OrNop(a.Logger)
}

func (a *AgentTools) agentName(requested string) string {
	if name := strings.TrimSpace(requested); name != "" {
		return name
	}
	return a.DefaultAgent
}

func (a *AgentTools) listAgents(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if a.Core == nil {
		return mcp.NewToolResultError("core api is not configured"), nil
	}
	agents, err := a.Core.ListAgents(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list agents: %v", err)), nil
	}
	return jsonResult(map[string]any{"agents": agents})
}

func (a *AgentTools) getAgent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if a.Management == nil {
		return mcp.NewToolResultError("management api is not configured"), nil
	}
	name := a.agentName(request.GetString("name", ""))
	if name == "" {
		return mcp.NewToolResultError("agent name is required"), nil
	}
	raw, err := a.Management.GetAgent(ctx, name)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get agent %s: %v", name, err)), nil
	}
	return rawResult(raw), nil
}

func (a *AgentTools) getPrompt(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if a.Management == nil {
		return mcp.NewToolResultError("management api is not configured"), nil
	}
	name, err := request.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	prompt, err := a.Management.GetPrompt(ctx, name)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get prompt %s: %v", name, err)), nil
	}
	return jsonResult(map[string]any{
		"name":   prompt.Name,
		"prefix": prompt.Prefix,
		"suffix": prompt.Suffix,
	})
}

func (a *AgentTools) updatePrompt(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if a.Management == nil {
		return mcp.NewToolResultError("management api is not configured"), nil
	}
	var args struct {
		Name   string `json:"name"`
		Prefix string `json:"prefix"`
	}
	if err := request.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse arguments: %v", err)), nil
	}
	if strings.TrimSpace(args.Name) == "" {
		return mcp.NewToolResultError("name is required"), nil
	}
	if strings.TrimSpace(args.Prefix) == "" {
		return mcp.NewToolResultError("prefix must not be empty"), nil
	}
	current, err := a.Management.GetPrompt(ctx, args.Name)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get prompt %s: %v", args.Name, err)), nil
	}
	updated, err := current.WithPrefix(args.Prefix)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to patch prompt: %v", err)), nil
	}
	result, err := a.Management.UpsertPrompt(ctx, updated)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to update prompt %s: %v", args.Name, err)), nil
	}
	a.logger().Infow("prompt updated via mcp", "prompt", args.Name, "object_id", result.ObjectID)
	return jsonResult(result)
}

func (a *AgentTools) listTools(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if a.Management == nil {
		return mcp.NewToolResultError("management api is not configured"), nil
	}
	items, err := a.Management.ListTools(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list tools: %v", err)), nil
	}
	return resourceList("tools", items)
}

func (a *AgentTools) listPipelines(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if a.Management == nil {
		return mcp.NewToolResultError("management api is not configured"), nil
	}
	items, err := a.Management.ListVectorizationPipelines(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list pipelines: %v", err)), nil
	}
	return resourceList("pipelines", items)
}

func (a *AgentTools) askAgent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if a.Core == nil {
		return mcp.NewToolResultError("core api is not configured"), nil
	}
	question, err := request.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	agent := a.agentName(request.GetString("agent", ""))
	if agent == "" {
		return mcp.NewToolResultError("agent is required"), nil
	}
	resp, err := a.Core.Completion(ctx, coreapi.CompletionRequest{
		UserPrompt: question,
		AgentName:  agent,
		SessionID:  request.GetString("session_id", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Completion failed: %v", err)), nil
	}
	return jsonResult(map[string]any{
		"agent":      agent,
		"answer":     resp.Text(),
		"tokens":     resp.Tokens(),
		"session_id": resp.SessionID,
	})
}

func (a *AgentTools) runTestSuite(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if a.Core == nil {
		return mcp.NewToolResultError("core api is not configured"), nil
	}
	ref, err := request.RequireString("suite")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path, err := suite.Resolve(a.SuitesDir, ref)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	loaded, err := suite.Load(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to load suite: %v", err)), nil
	}
	agent := a.agentName(request.GetString("agent", ""))
	results, err := harness.Run(ctx, loaded, harness.Options{
		Client:      a.Core,
		Agent:       agent,
		Workers:     a.Workers,
		Mode:        a.Mode,
		Validator:   a.Validator,
		Tags:        splitList(request.GetString("tags", "")),
		CaseTimeout: a.CaseTimeout,
		Logger:      a.Logger,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Run failed: %v", err)), nil
	}
	failures := make([]map[string]any, 0)
	for _, item := range results.Failures() {
		failures = append(failures, map[string]any{
			"id":     item.ID,
			"status": item.Status,
			"checks": item.FailedChecks(),
			"error":  item.Error,
		})
	}
	return jsonResult(map[string]any{
		"run_id":   results.RunID,
		"suite":    results.Suite,
		"agent":    results.Agent,
		"summary":  results.Summary,
		"failures": failures,
	})
}

func (a *AgentTools) searchKnowledge(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	docs, err := a.Search.Search(ctx, query, plugins.SearchOptions{
		Top:    request.GetInt("top", 0),
		Filter: request.GetString("filter", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Search failed: %v", err)), nil
	}
	return jsonResult(map[string]any{"documents": docs})
}

func (a *AgentTools) askKnowledge(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	answer, err := a.Knowledge.Ask(ctx, question)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Knowledge lookup failed: %v", err)), nil
	}
	return jsonResult(answer)
}

func (a *AgentTools) runCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := request.RequireString("code")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	result, err := a.Code.Execute(ctx, request.GetString("session_id", ""), code)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Execution failed: %v", err)), nil
	}
	return jsonResult(result)
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
