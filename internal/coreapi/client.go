// Package coreapi is a client for the FoundationaLLM Core API.
package coreapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/foundationallm/foundationallm-sub000/internal/transport"
)

// Client calls Core API endpoints scoped to one instance.
type Client struct {
	rest       *transport.Client
	instanceID string
}

// New wraps a transport client for the given instance.
func New(rest *transport.Client, instanceID string) (*Client, error) {
	if rest == nil {
		return nil, fmt.Errorf("transport client is required")
	}
	if strings.TrimSpace(instanceID) == "" {
		return nil, fmt.Errorf("instance id is required")
	}
	return &Client{rest: rest, instanceID: instanceID}, nil
}

func (c *Client) path(parts ...string) string {
	segments := append([]string{"instances", url.PathEscape(c.instanceID)}, parts...)
	return strings.Join(segments, "/")
}

// CreateSession opens a new chat session.
func (c *Client) CreateSession(ctx context.Context, name string) (Session, error) {
	var raw sessionResponse
	if err := c.rest.JSON(ctx, http.MethodPost, c.path("sessions"), nil, map[string]string{"name": name}, &raw); err != nil {
		return Session{}, fmt.Errorf("create session: %w", err)
	}
	id := raw.ID()
	if id == "" {
		return Session{}, fmt.Errorf("create session: response has no session id")
	}
	return Session{ID: id, Name: name}, nil
}

// Completion sends a user prompt to an agent.
func (c *Client) Completion(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	if strings.TrimSpace(req.UserPrompt) == "" {
		return CompletionResponse{}, fmt.Errorf("completion: user prompt is required")
	}
	if strings.TrimSpace(req.AgentName) == "" {
		return CompletionResponse{}, fmt.Errorf("completion: agent name is required")
	}
	var resp CompletionResponse
	if err := c.rest.JSON(ctx, http.MethodPost, c.path("completions"), nil, req, &resp); err != nil {
		return CompletionResponse{}, fmt.Errorf("completion: %w", err)
	}
	return resp, nil
}

// UploadFile attaches a local file to a session for an agent.
func (c *Client) UploadFile(ctx context.Context, sessionID, agentName, filePath string) (Attachment, error) {
	query := url.Values{}
	if sessionID != "" {
		query.Set("sessionId", sessionID)
	}
	if agentName != "" {
		query.Set("agentName", agentName)
	}
	body, err := c.rest.UploadFile(ctx, c.path("files", "upload"), query, "file", filePath)
	if err != nil {
		return Attachment{}, fmt.Errorf("upload %s: %w", filePath, err)
	}
	var raw attachmentResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return Attachment{}, fmt.Errorf("upload %s: decode response: %w", filePath, err)
	}
	attachment := raw.Attachment()
	if attachment.ObjectID == "" {
		return Attachment{}, fmt.Errorf("upload %s: response has no object id", filePath)
	}
	return attachment, nil
}

// ListAgents returns the agents visible to the caller.
func (c *Client) ListAgents(ctx context.Context) ([]AgentSummary, error) {
	var raw []agentEntry
	if err := c.rest.JSON(ctx, http.MethodGet, c.path("completions", "agents"), nil, nil, &raw); err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	agents := make([]AgentSummary, 0, len(raw))
	for _, entry := range raw {
		agents = append(agents, entry.Summary())
	}
	return agents, nil
}
