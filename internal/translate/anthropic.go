package translate

import (
	"encoding/json"
	"fmt"
)

// AnthropicTranslator implements the Anthropic Messages API wire shape.
// System messages are hoisted out of the messages array into a top-level
// "system" field, and content is carried as an array of typed blocks rather
// than a plain string.
type AnthropicTranslator struct{}

const anthropicDefaultMaxTokens = 4096

type anthropicContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
}

type anthropicMessage struct {
	Role    string                  `json:"role"`
	Content []anthropicContentBlock `json:"content"`
}

type anthropicTool struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	InputSchema any    `json:"input_schema,omitempty"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Tools       []anthropicTool    `json:"tools,omitempty"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float64           `json:"temperature,omitempty"`
	TopP        *float64           `json:"top_p,omitempty"`
	Stream      bool               `json:"stream,omitempty"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicResponse struct {
	Content    []anthropicContentBlock `json:"content"`
	StopReason string                  `json:"stop_reason"`
	Usage      anthropicUsage          `json:"usage"`
}

// anthropicStreamEvent covers the union of fields used across
// message_start/content_block_delta/message_delta/message_stop events; only
// the fields relevant to the current event name are populated by Anthropic.
type anthropicStreamEvent struct {
	Delta struct {
		Type        string `json:"type"`
		Text        string `json:"text,omitempty"`
		PartialJSON string `json:"partial_json,omitempty"`
		StopReason  string `json:"stop_reason,omitempty"`
	} `json:"delta"`
	ContentBlock *anthropicContentBlock `json:"content_block,omitempty"`
	Index        int                    `json:"index"`
	Usage        *anthropicUsage        `json:"usage,omitempty"`
}

// TranslateRequest converts a CanonicalRequest into an Anthropic Messages
// request, hoisting system messages out of the conversation.
func (AnthropicTranslator) TranslateRequest(req CanonicalRequest) ([]byte, error) {
	out := anthropicRequest{
		Model:       req.Model,
		MaxTokens:   anthropicDefaultMaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stream:      req.Stream,
	}
	if req.MaxTokens != nil {
		out.MaxTokens = *req.MaxTokens
	}

	var system []string
	for _, m := range req.Messages {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
			continue
		}
		am := anthropicMessage{Role: string(m.Role)}
		if m.Role == RoleTool {
			am.Role = "user"
			am.Content = append(am.Content, anthropicContentBlock{
				Type:      "tool_result",
				ToolUseID: m.ToolCallID,
				Content:   m.Content,
			})
		} else {
			if m.Content != "" {
				am.Content = append(am.Content, anthropicContentBlock{Type: "text", Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				am.Content = append(am.Content, anthropicContentBlock{
					Type:  "tool_use",
					ID:    tc.ID,
					Name:  tc.Name,
					Input: json.RawMessage(tc.Arguments),
				})
			}
		}
		out.Messages = append(out.Messages, am)
	}
	if len(system) > 0 {
		out.System = joinParagraphs(system)
	}

	for _, t := range req.Tools {
		out.Tools = append(out.Tools, anthropicTool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.Parameters,
		})
	}

	return json.Marshal(out)
}

// TranslateResponse converts an Anthropic Messages response into a
// CanonicalResponse, concatenating content blocks into a single text and
// lifting tool_use blocks into ToolCalls.
func (AnthropicTranslator) TranslateResponse(wire []byte) (CanonicalResponse, error) {
	var ar anthropicResponse
	if err := json.Unmarshal(wire, &ar); err != nil {
		return CanonicalResponse{}, fmt.Errorf("translate: decode anthropic response: %w", err)
	}

	resp := CanonicalResponse{
		FinishReason: ar.StopReason,
		Usage:        &Usage{InputTokens: ar.Usage.InputTokens, OutputTokens: ar.Usage.OutputTokens},
	}
	var text []string
	for _, block := range ar.Content {
		switch block.Type {
		case "text":
			text = append(text, block.Text)
		case "tool_use":
			resp.ToolCalls = append(resp.ToolCalls, ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: string(block.Input),
			})
		}
	}
	resp.Content = joinParagraphs(text)
	return resp, nil
}

// TranslateChunk converts one named Anthropic SSE event into a
// CanonicalChunk. Anthropic streams message_start, content_block_start,
// content_block_delta, content_block_stop, message_delta, and message_stop
// as distinct named events sharing one event stream; only the events that
// carry incremental content or terminal state produce a non-empty chunk.
func (AnthropicTranslator) TranslateChunk(event string, raw []byte, state *ChunkState) (CanonicalChunk, error) {
	switch event {
	case "content_block_start":
		var ev anthropicStreamEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return CanonicalChunk{}, fmt.Errorf("translate: decode anthropic content_block_start: %w", err)
		}
		if ev.ContentBlock != nil && ev.ContentBlock.Type == "tool_use" {
			state.accumulate([]wireToolCall{{
				ID:    ev.ContentBlock.ID,
				Index: &ev.Index,
				Function: wireFunction{
					Name: ev.ContentBlock.Name,
				},
			}})
		}
		return CanonicalChunk{}, nil

	case "content_block_delta":
		var ev anthropicStreamEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return CanonicalChunk{}, fmt.Errorf("translate: decode anthropic content_block_delta: %w", err)
		}
		switch ev.Delta.Type {
		case "text_delta":
			return CanonicalChunk{ContentDelta: ev.Delta.Text}, nil
		case "input_json_delta":
			deltas := state.accumulate([]wireToolCall{{
				Index: &ev.Index,
				Function: wireFunction{
					Arguments: ev.Delta.PartialJSON,
				},
			}})
			return CanonicalChunk{ToolCallDelta: deltas}, nil
		default:
			return CanonicalChunk{}, nil
		}

	case "message_delta":
		var ev anthropicStreamEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return CanonicalChunk{}, fmt.Errorf("translate: decode anthropic message_delta: %w", err)
		}
		chunk := CanonicalChunk{FinishReason: ev.Delta.StopReason}
		if ev.Usage != nil {
			chunk.Usage = &Usage{InputTokens: ev.Usage.InputTokens, OutputTokens: ev.Usage.OutputTokens}
		}
		return chunk, nil

	case "message_stop":
		if err := state.ValidateComplete(); err != nil {
			return CanonicalChunk{}, err
		}
		return CanonicalChunk{Done: true}, nil

	default:
		return CanonicalChunk{}, nil
	}
}

func joinParagraphs(parts []string) string {
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	default:
		out := parts[0]
		for _, p := range parts[1:] {
			out += "\n" + p
		}
		return out
	}
}
