package coreapi

import "strings"

// Session identifies a Core API chat session.
type Session struct {
	ID   string `json:"session_id"`
	Name string `json:"name,omitempty"`
}

type sessionResponse struct {
	SessionID    string `json:"session_id"`
	SessionIDAlt string `json:"sessionId"`
	Name         string `json:"name"`
}

func (r sessionResponse) ID() string {
	if r.SessionID != "" {
		return r.SessionID
	}
	return r.SessionIDAlt
}

// CompletionRequest is the body of POST /completions.
type CompletionRequest struct {
	UserPrompt  string   `json:"user_prompt"`
	AgentName   string   `json:"agent_name"`
	SessionID   string   `json:"session_id,omitempty"`
	Attachments []string `json:"attachments,omitempty"`
}

// ContentItem is one element of a structured completion.
type ContentItem struct {
	Type  string `json:"type"`
	Value string `json:"value,omitempty"`
	Text  string `json:"text,omitempty"`
}

// CompletionResponse is the subset of the completion payload the tools use.
type CompletionResponse struct {
	OperationID      string        `json:"operation_id,omitempty"`
	RawText          string        `json:"text,omitempty"`
	Completion       string        `json:"completion,omitempty"`
	Content          []ContentItem `json:"content,omitempty"`
	PromptTokens     int           `json:"prompt_tokens,omitempty"`
	CompletionTokens int           `json:"completion_tokens,omitempty"`
	TotalTokens      int           `json:"total_tokens,omitempty"`
	SessionID        string        `json:"session_id,omitempty"`
	Errors           []string      `json:"errors,omitempty"`
	IsError          bool          `json:"is_error,omitempty"`
}

// Text flattens the response into plain text. Structured content wins over
// the legacy text/completion fields.
func (r CompletionResponse) Text() string {
	parts := make([]string, 0, len(r.Content))
	for _, item := range r.Content {
		switch {
		case item.Value != "":
			parts = append(parts, item.Value)
		case item.Text != "":
			parts = append(parts, item.Text)
		}
	}
	if len(parts) > 0 {
		return strings.TrimSpace(strings.Join(parts, "\n"))
	}
	if r.RawText != "" {
		return strings.TrimSpace(r.RawText)
	}
	return strings.TrimSpace(r.Completion)
}

// Tokens reports the total token usage when the API returned it.
func (r CompletionResponse) Tokens() int {
	if r.TotalTokens > 0 {
		return r.TotalTokens
	}
	return r.PromptTokens + r.CompletionTokens
}

// Attachment is an uploaded file reference.
type Attachment struct {
	ObjectID         string `json:"object_id"`
	OriginalFileName string `json:"original_file_name,omitempty"`
	ContentType      string `json:"content_type,omitempty"`
}

type attachmentResponse struct {
	ObjectID         string `json:"objectId"`
	ObjectIDAlt      string `json:"object_id"`
	OriginalFileName string `json:"originalFileName"`
	OriginalAlt      string `json:"original_file_name"`
	ContentType      string `json:"contentType"`
}

func (r attachmentResponse) Attachment() Attachment {
	out := Attachment{
		ObjectID:         r.ObjectID,
		OriginalFileName: r.OriginalFileName,
		ContentType:      r.ContentType,
	}
	if out.ObjectID == "" {
		out.ObjectID = r.ObjectIDAlt
	}
	if out.OriginalFileName == "" {
		out.OriginalFileName = r.OriginalAlt
	}
	return out
}

// AgentSummary is the listing view of an agent.
type AgentSummary struct {
	Name        string   `json:"name"`
	ObjectID    string   `json:"object_id,omitempty"`
	DisplayName string   `json:"display_name,omitempty"`
	Description string   `json:"description,omitempty"`
	Roles       []string `json:"roles,omitempty"`
}

type agentEntry struct {
	Resource struct {
		Name        string `json:"name"`
		ObjectID    string `json:"object_id"`
		DisplayName string `json:"display_name"`
		Description string `json:"description"`
	} `json:"resource"`
	Roles []string `json:"roles"`
}

func (e agentEntry) Summary() AgentSummary {
	return AgentSummary{
		Name:        e.Resource.Name,
		ObjectID:    e.Resource.ObjectID,
		DisplayName: e.Resource.DisplayName,
		Description: e.Resource.Description,
		Roles:       e.Roles,
	}
}
