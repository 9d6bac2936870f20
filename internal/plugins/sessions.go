package plugins

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/foundationallm/foundationallm-sub000/internal/transport"
)

// SessionsScope is the token audience for Azure Dynamic Sessions pools.
const SessionsScope = "https://dynamicsessions.io/.default"

// ExecutionResult is the outcome of running code in a session.
type ExecutionResult struct {
	SessionID       string          `json:"session_id"`
	Status          string          `json:"status"`
	Stdout          string          `json:"stdout,omitempty"`
	Stderr          string          `json:"stderr,omitempty"`
	Result          json.RawMessage `json:"result,omitempty"`
	ExecutionTimeMs int64           `json:"execution_time_ms,omitempty"`
}

// Succeeded reports whether the pool ran the code without error.
func (r ExecutionResult) Succeeded() bool {
	return strings.EqualFold(r.Status, "Success") || strings.EqualFold(r.Status, "Succeeded")
}

// CodeSessionTool runs Python in an Azure Dynamic Sessions pool. The rest
// client must authenticate with a token for SessionsScope.
type CodeSessionTool struct {
	rest       *transport.Client
	apiVersion string
	newID      func() string
}

// NewCodeSessionTool builds a tool for the pool at rest's base URL.
func NewCodeSessionTool(rest *transport.Client, apiVersion string) (*CodeSessionTool, error) {
	if rest == nil {
		return nil, errors.New("code sessions: rest client is required")
	}
	return &CodeSessionTool{rest: rest, apiVersion: apiVersion, newID: uuid.NewString}, nil
}

type executeRequest struct {
	Properties executeProperties `json:"properties"`
}

type executeProperties struct {
	CodeInputType string `json:"codeInputType"`
	ExecutionType string `json:"executionType"`
	Code          string `json:"code"`
}

type executeResponse struct {
	Properties struct {
		Status          string          `json:"status"`
		Stdout          string          `json:"stdout"`
		Stderr          string          `json:"stderr"`
		Result          json.RawMessage `json:"result"`
		ExecutionTimeMs int64           `json:"executionTimeInMilliseconds"`
	} `json:"properties"`
}

// Execute runs code synchronously. An empty sessionID starts a new session;
// reusing an id keeps interpreter state between calls.
func (c *CodeSessionTool) Execute(ctx context.Context, sessionID, code string) (ExecutionResult, error) {
	if strings.TrimSpace(code) == "" {
		return ExecutionResult{}, errors.New("code sessions: code is required")
	}
	if sessionID = strings.TrimSpace(sessionID); sessionID == "" {
		sessionID = c.newID()
	}
	params := url.Values{}
	if c.apiVersion != "" {
		params.Set("api-version", c.apiVersion)
	}
	params.Set("identifier", sessionID)
	var resp executeResponse
	err := c.rest.JSON(ctx, http.MethodPost, "/code/execute", params, executeRequest{
		Properties: executeProperties{
			CodeInputType: "inline",
			ExecutionType: "synchronous",
			Code:          code,
		},
	}, &resp)
	if err != nil {
		return ExecutionResult{}, fmt.Errorf("execute code: %w", err)
	}
	return ExecutionResult{
		SessionID:       sessionID,
		Status:          resp.Properties.Status,
		Stdout:          resp.Properties.Stdout,
		Stderr:          resp.Properties.Stderr,
		Result:          resp.Properties.Result,
		ExecutionTimeMs: resp.Properties.ExecutionTimeMs,
	}, nil
}
