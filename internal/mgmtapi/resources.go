package mgmtapi

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Prompt is a view over a multipart prompt resource.
type Prompt struct {
	Name   string
	Prefix string
	Suffix string
	Raw    json.RawMessage
}

// ParsePrompt reads the prompt view out of a raw resource.
func ParsePrompt(raw json.RawMessage) (Prompt, error) {
	if !gjson.ValidBytes(raw) {
		return Prompt{}, fmt.Errorf("prompt resource is not valid json")
	}
	doc := gjson.ParseBytes(raw)
	return Prompt{
		Name:   doc.Get("name").String(),
		Prefix: doc.Get("prefix").String(),
		Suffix: doc.Get("suffix").String(),
		Raw:    append(json.RawMessage(nil), raw...),
	}, nil
}

// WithPrefix returns a copy of the prompt with prefix replaced in Raw too.
func (p Prompt) WithPrefix(prefix string) (Prompt, error) {
	raw, err := patchFields(p.Raw, map[string]any{"prefix": prefix})
	if err != nil {
		return Prompt{}, err
	}
	p.Prefix = prefix
	p.Raw = raw
	return p, nil
}

// patchFields overwrites top-level fields while keeping everything else.
func patchFields(raw json.RawMessage, fields map[string]any) (json.RawMessage, error) {
	doc := map[string]json.RawMessage{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("decode resource: %w", err)
		}
	}
	for key, value := range fields {
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", key, err)
		}
		doc[key] = encoded
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode resource: %w", err)
	}
	return out, nil
}

// GetAgent fetches an agent resource.
func (c *Client) GetAgent(ctx context.Context, name string) (json.RawMessage, error) {
	return c.Get(ctx, Ref{Provider: ProviderAgent, Type: TypeAgents, Name: name})
}

// ListAgents lists agent resources.
func (c *Client) ListAgents(ctx context.Context) ([]json.RawMessage, error) {
	return c.List(ctx, Ref{Provider: ProviderAgent, Type: TypeAgents})
}

// ListTools lists tool resources.
func (c *Client) ListTools(ctx context.Context) ([]json.RawMessage, error) {
	return c.List(ctx, Ref{Provider: ProviderAgent, Type: TypeTools})
}

// ListVectorizationPipelines lists vectorization pipelines.
func (c *Client) ListVectorizationPipelines(ctx context.Context) ([]json.RawMessage, error) {
	return c.List(ctx, Ref{Provider: ProviderVectorization, Type: TypePipelines})
}

// ActivatePipeline triggers a vectorization pipeline run.
func (c *Client) ActivatePipeline(ctx context.Context, name string) (json.RawMessage, error) {
	return c.action(ctx, Ref{Provider: ProviderVectorization, Type: TypePipelines, Name: name}, "activate")
}

// GetPrompt fetches a prompt and parses its view.
func (c *Client) GetPrompt(ctx context.Context, name string) (Prompt, error) {
	raw, err := c.Get(ctx, Ref{Provider: ProviderPrompt, Type: TypePrompts, Name: name})
	if err != nil {
		return Prompt{}, err
	}
	prompt, err := ParsePrompt(raw)
	if err != nil {
		return Prompt{}, fmt.Errorf("prompt %s: %w", name, err)
	}
	if prompt.Name == "" {
		prompt.Name = name
	}
	return prompt, nil
}

// UpsertPrompt writes the prompt's raw resource back.
func (c *Client) UpsertPrompt(ctx context.Context, prompt Prompt) (UpsertResult, error) {
	if prompt.Name == "" {
		return UpsertResult{}, fmt.Errorf("upsert prompt: name is required")
	}
	raw := prompt.Raw
	if len(raw) == 0 {
		patched, err := patchFields(nil, map[string]any{
			"type":   "multipart",
			"name":   prompt.Name,
			"prefix": prompt.Prefix,
			"suffix": prompt.Suffix,
		})
		if err != nil {
			return UpsertResult{}, err
		}
		raw = patched
	}
	return c.Upsert(ctx, Ref{Provider: ProviderPrompt, Type: TypePrompts, Name: prompt.Name}, raw)
}

// AgentPromptName resolves the main prompt name referenced by an agent.
// Newer agents list it in workflow.resource_object_ids with role
// main_prompt; older ones carry prompt_object_id.
func AgentPromptName(agent json.RawMessage) (string, error) {
	doc := gjson.ParseBytes(agent)
	objectID := ""
	doc.Get("workflow.resource_object_ids").ForEach(func(key, value gjson.Result) bool {
		if value.Get("properties.object_role").String() != "main_prompt" {
			return true
		}
		objectID = value.Get("object_id").String()
		if objectID == "" {
			objectID = key.String()
		}
		return false
	})
	if objectID == "" {
		objectID = doc.Get("prompt_object_id").String()
	}
	if objectID == "" {
		return "", fmt.Errorf("agent %q has no main prompt reference", doc.Get("name").String())
	}
	return lastSegment(objectID), nil
}

func lastSegment(objectID string) string {
	trimmed := strings.TrimRight(objectID, "/")
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		return trimmed[idx+1:]
	}
	return trimmed
}

// ResourceName returns the name field of a raw resource.
func ResourceName(raw json.RawMessage) string {
	return gjson.GetBytes(raw, "name").String()
}
