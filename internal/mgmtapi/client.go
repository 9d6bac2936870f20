// Package mgmtapi is a client for the FoundationaLLM Management API.
//
// Resources are passed through as raw JSON so fields this tool does not
// know about survive a read-modify-write cycle.
package mgmtapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/foundationallm/foundationallm-sub000/internal/transport"
)

// Resource providers and types used by the tools.
const (
	ProviderAgent         = "FoundationaLLM.Agent"
	ProviderPrompt        = "FoundationaLLM.Prompt"
	ProviderVectorization = "FoundationaLLM.Vectorization"

	TypeAgents    = "agents"
	TypeTools     = "tools"
	TypePrompts   = "prompts"
	TypePipelines = "vectorizationPipelines"
)

// Ref addresses a resource (Name empty addresses the collection).
type Ref struct {
	Provider string
	Type     string
	Name     string
}

// Client calls Management API endpoints scoped to one instance.
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

// ObjectID returns the canonical object id for ref.
func (c *Client) ObjectID(ref Ref) string {
	return "/" + c.path(ref)
}

func (c *Client) path(ref Ref) string {
	parts := []string{"instances", url.PathEscape(c.instanceID), "providers", ref.Provider, ref.Type}
	if ref.Name != "" {
		parts = append(parts, url.PathEscape(ref.Name))
	}
	return strings.Join(parts, "/")
}

// Get fetches a single resource. The API wraps results as
// [{"resource": {...}, "roles": [...]}]; the bare resource is returned.
func (c *Client) Get(ctx context.Context, ref Ref) (json.RawMessage, error) {
	if ref.Name == "" {
		return nil, fmt.Errorf("get %s/%s: name is required", ref.Provider, ref.Type)
	}
	body, err := c.rest.Do(ctx, transport.Request{Method: http.MethodGet, Path: c.path(ref)})
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", ref.Type, ref.Name, err)
	}
	items := unwrapResources(body)
	if len(items) == 0 {
		return nil, fmt.Errorf("get %s %s: %w", ref.Type, ref.Name, transport.ErrNotFound)
	}
	return items[0], nil
}

// List fetches every resource of a type.
func (c *Client) List(ctx context.Context, ref Ref) ([]json.RawMessage, error) {
	ref.Name = ""
	body, err := c.rest.Do(ctx, transport.Request{Method: http.MethodGet, Path: c.path(ref)})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", ref.Type, err)
	}
	return unwrapResources(body), nil
}

// UpsertResult is the Management API reply to a create/update.
type UpsertResult struct {
	ObjectID       string `json:"object_id"`
	ResourceExists bool   `json:"resource_exists"`
}

// Upsert creates or replaces a resource with the given raw body.
func (c *Client) Upsert(ctx context.Context, ref Ref, resource json.RawMessage) (UpsertResult, error) {
	if ref.Name == "" {
		return UpsertResult{}, fmt.Errorf("upsert %s: name is required", ref.Type)
	}
	if !json.Valid(resource) {
		return UpsertResult{}, fmt.Errorf("upsert %s %s: body is not valid json", ref.Type, ref.Name)
	}
	var result UpsertResult
	if err := c.rest.JSON(ctx, http.MethodPost, c.path(ref), nil, resource, &result); err != nil {
		return UpsertResult{}, fmt.Errorf("upsert %s %s: %w", ref.Type, ref.Name, err)
	}
	return result, nil
}

// Delete removes a resource.
func (c *Client) Delete(ctx context.Context, ref Ref) error {
	if ref.Name == "" {
		return fmt.Errorf("delete %s: name is required", ref.Type)
	}
	if _, err := c.rest.Do(ctx, transport.Request{Method: http.MethodDelete, Path: c.path(ref)}); err != nil {
		return fmt.Errorf("delete %s %s: %w", ref.Type, ref.Name, err)
	}
	return nil
}

// action posts to a resource sub-path such as ".../activate".
func (c *Client) action(ctx context.Context, ref Ref, action string) (json.RawMessage, error) {
	body, err := c.rest.Do(ctx, transport.Request{Method: http.MethodPost, Path: c.path(ref) + "/" + action, Body: struct{}{}})
	if err != nil {
		return nil, fmt.Errorf("%s %s %s: %w", action, ref.Type, ref.Name, err)
	}
	return body, nil
}

// unwrapResources accepts a wrapped list, a bare list, or a single object.
func unwrapResources(body []byte) []json.RawMessage {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil
	}
	parsed := gjson.ParseBytes(trimmed)
	if !parsed.IsArray() {
		if inner := parsed.Get("resource"); inner.IsObject() {
			return []json.RawMessage{json.RawMessage(inner.Raw)}
		}
		return []json.RawMessage{json.RawMessage(parsed.Raw)}
	}
	items := make([]json.RawMessage, 0)
	parsed.ForEach(func(_, value gjson.Result) bool {
		if inner := value.Get("resource"); inner.IsObject() {
			items = append(items, json.RawMessage(inner.Raw))
		} else {
			items = append(items, json.RawMessage(value.Raw))
		}
		return true
	})
	return items
}
