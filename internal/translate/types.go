// Package translate converts between the gateway's canonical request and
// response shapes and each upstream provider's wire dialect, including
// streaming chunk translation and tool-call normalization.
package translate

import "github.com/synaxis-gateway/synaxis/internal/gatewaycfg"

// Role is a canonical message role.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a normalized tool invocation, either requested by the model or
// echoed back by the caller as conversation history.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // raw JSON text; may be partial mid-stream
}

// Message is one turn of a CanonicalRequest's conversation.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	Name       string     `json:"name,omitempty"`
	ToolCalls  []ToolCall `json:"toolCalls,omitempty"`
	ToolCallID string     `json:"toolCallId,omitempty"`
}

// Tool is a function tool definition offered to the model.
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  any    `json:"parameters,omitempty"`
}

// CanonicalRequest is the gateway's provider-neutral request shape, built
// from the parsed OpenAI-compatible HTTP request.
type CanonicalRequest struct {
	Model        string                  `json:"model"`
	Messages     []Message               `json:"messages"`
	Tools        []Tool                  `json:"tools,omitempty"`
	Temperature  *float64                `json:"temperature,omitempty"`
	TopP         *float64                `json:"topP,omitempty"`
	MaxTokens    *int                    `json:"maxTokens,omitempty"`
	Stream       bool                    `json:"stream"`
	EndpointKind gatewaycfg.EndpointKind `json:"endpointKind"`
	Extras       map[string]any          `json:"extras,omitempty"`
}

// Usage is token accounting for a request or streaming response.
type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

// CanonicalResponse is the gateway's provider-neutral unary response shape.
type CanonicalResponse struct {
	Content      string     `json:"content"`
	ToolCalls    []ToolCall `json:"toolCalls,omitempty"`
	FinishReason string     `json:"finishReason,omitempty"`
	Usage        *Usage     `json:"usage,omitempty"`
}

// CanonicalChunk is one streaming delta.
type CanonicalChunk struct {
	Role          Role       `json:"role,omitempty"`
	ContentDelta  string     `json:"contentDelta,omitempty"`
	ToolCallDelta []ToolCall `json:"toolCallDelta,omitempty"`
	FinishReason  string     `json:"finishReason,omitempty"`
	Usage         *Usage     `json:"usage,omitempty"`
	Done          bool       `json:"-"` // true on the terminal chunk; never serialized
}
