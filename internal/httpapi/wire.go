package httpapi

import (
	"github.com/synaxis-gateway/synaxis/internal/translate"
)

// wireToolCall is the OpenAI-compatible tool_calls entry shape.
type wireToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

// wireMessage is one OpenAI-compatible conversation turn.
type wireMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	Name       string         `json:"name,omitempty"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

// wireTool is the OpenAI-compatible function-tool definition.
type wireTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
		Parameters  any    `json:"parameters,omitempty"`
	} `json:"function"`
}

// chatCompletionsRequest is the wire body for /v1/chat/completions and,
// with Messages reinterpreted from Prompt, /v1/completions.
type chatCompletionsRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Prompt      string        `json:"prompt,omitempty"`
	Tools       []wireTool    `json:"tools,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	TopP        *float64      `json:"top_p,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

func (req chatCompletionsRequest) toCanonical() translate.CanonicalRequest {
	messages := make([]translate.Message, 0, len(req.Messages)+1)
	if req.Prompt != "" {
		messages = append(messages, translate.Message{Role: translate.RoleUser, Content: req.Prompt})
	}
	for _, m := range req.Messages {
		cm := translate.Message{
			Role:       translate.Role(m.Role),
			Content:    m.Content,
			Name:       m.Name,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			cm.ToolCalls = append(cm.ToolCalls, translate.ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}
		messages = append(messages, cm)
	}

	var tools []translate.Tool
	for _, t := range req.Tools {
		tools = append(tools, translate.Tool{
			Name:        t.Function.Name,
			Description: t.Function.Description,
			Parameters:  t.Function.Parameters,
		})
	}

	return translate.CanonicalRequest{
		Model:       req.Model,
		Messages:    messages,
		Tools:       tools,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		MaxTokens:   req.MaxTokens,
		Stream:      req.Stream,
	}
}

// chatCompletionChoice and chatCompletionResponse mirror the OpenAI
// /v1/chat/completions response envelope.
type chatCompletionChoice struct {
	Index        int              `json:"index"`
	Message      *wireRespMessage `json:"message,omitempty"`
	Delta        *wireRespMessage `json:"delta,omitempty"`
	FinishReason *string          `json:"finish_reason"`
}

type wireRespMessage struct {
	Role      string         `json:"role,omitempty"`
	Content   string         `json:"content"`
	ToolCalls []wireToolCall `json:"tool_calls,omitempty"`
}

type chatCompletionUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type chatCompletionResponse struct {
	ID      string                 `json:"id"`
	Object  string                 `json:"object"`
	Created int64                  `json:"created"`
	Model   string                 `json:"model"`
	Choices []chatCompletionChoice `json:"choices"`
	Usage   *chatCompletionUsage   `json:"usage,omitempty"`
}

func toolCallsToWire(tcs []translate.ToolCall) []wireToolCall {
	if len(tcs) == 0 {
		return nil
	}
	out := make([]wireToolCall, len(tcs))
	for i, tc := range tcs {
		out[i] = wireToolCall{ID: tc.ID, Type: "function"}
		out[i].Function.Name = tc.Name
		out[i].Function.Arguments = tc.Arguments
	}
	return out
}

func usageToWire(u *translate.Usage) *chatCompletionUsage {
	if u == nil {
		return nil
	}
	return &chatCompletionUsage{
		PromptTokens:     u.InputTokens,
		CompletionTokens: u.OutputTokens,
		TotalTokens:      u.InputTokens + u.OutputTokens,
	}
}

// openaiErrorBody is the OpenAI-compatible {"error": {...}} envelope.
type openaiErrorBody struct {
	Error openaiErrorDetail `json:"error"`
}

type openaiErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"`
}
