package translate

import (
	"encoding/json"
	"fmt"
)

// OpenAICompatTranslator implements the OpenAI chat/completions wire shape
// shared by OpenAI, Azure OpenAI, and any OpenAI-compatible endpoint.
type OpenAICompatTranslator struct{}

type wireFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type wireToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Index    *int         `json:"index,omitempty"`
	Function wireFunction `json:"function"`
}

type wireMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content,omitempty"`
	Name       string         `json:"name,omitempty"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type wireTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
		Parameters  any    `json:"parameters,omitempty"`
	} `json:"function"`
}

type wireRequest struct {
	Model       string        `json:"model,omitempty"`
	Messages    []wireMessage `json:"messages"`
	Tools       []wireTool    `json:"tools,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	TopP        *float64      `json:"top_p,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type wireUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

type wireChoice struct {
	Message      wireMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type wireResponse struct {
	Choices []wireChoice `json:"choices"`
	Usage   *wireUsage   `json:"usage,omitempty"`
}

type wireDelta struct {
	Role      string         `json:"role,omitempty"`
	Content   string         `json:"content,omitempty"`
	ToolCalls []wireToolCall `json:"tool_calls,omitempty"`
}

type wireChunkChoice struct {
	Delta        wireDelta `json:"delta"`
	FinishReason *string   `json:"finish_reason"`
}

type wireChunk struct {
	Choices []wireChunkChoice `json:"choices"`
	Usage   *wireUsage        `json:"usage,omitempty"`
}

// TranslateRequest converts a CanonicalRequest to the OpenAI chat/completions
// wire payload.
func (OpenAICompatTranslator) TranslateRequest(req CanonicalRequest) ([]byte, error) {
	out := wireRequest{
		Model:       req.Model,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		MaxTokens:   req.MaxTokens,
		Stream:      req.Stream,
	}
	for _, m := range req.Messages {
		wm := wireMessage{Role: string(m.Role), Content: m.Content, Name: m.Name, ToolCallID: m.ToolCallID}
		for _, tc := range m.ToolCalls {
			wm.ToolCalls = append(wm.ToolCalls, wireToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: wireFunction{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		out.Messages = append(out.Messages, wm)
	}
	for _, t := range req.Tools {
		wt := wireTool{Type: "function"}
		wt.Function.Name = t.Name
		wt.Function.Description = t.Description
		wt.Function.Parameters = t.Parameters
		out.Tools = append(out.Tools, wt)
	}
	return json.Marshal(out)
}

// TranslateResponse converts an OpenAI chat/completions wire response to a
// CanonicalResponse.
func (OpenAICompatTranslator) TranslateResponse(wire []byte) (CanonicalResponse, error) {
	var wr wireResponse
	if err := json.Unmarshal(wire, &wr); err != nil {
		return CanonicalResponse{}, fmt.Errorf("translate: decode openai response: %w", err)
	}
	if len(wr.Choices) == 0 {
		return CanonicalResponse{}, nil
	}
	choice := wr.Choices[0]
	resp := CanonicalResponse{
		Content:      choice.Message.Content,
		FinishReason: choice.FinishReason,
		ToolCalls:    toCanonicalToolCalls(choice.Message.ToolCalls),
	}
	if wr.Usage != nil {
		resp.Usage = &Usage{InputTokens: wr.Usage.PromptTokens, OutputTokens: wr.Usage.CompletionTokens}
	}
	return resp, nil
}

// TranslateChunk converts one OpenAI SSE data-line payload into a
// CanonicalChunk. event is unused (OpenAI's wire format carries no named SSE
// event, only "data:" lines). state accumulates partial tool-call argument
// text across chunks; pass the same *ChunkState for every chunk of one
// stream.
func (OpenAICompatTranslator) TranslateChunk(event string, raw []byte, state *ChunkState) (CanonicalChunk, error) {
	var wc wireChunk
	if err := json.Unmarshal(raw, &wc); err != nil {
		return CanonicalChunk{}, fmt.Errorf("translate: decode openai chunk: %w", err)
	}
	if len(wc.Choices) == 0 {
		return CanonicalChunk{}, nil
	}
	choice := wc.Choices[0]
	chunk := CanonicalChunk{
		Role:         Role(choice.Delta.Role),
		ContentDelta: choice.Delta.Content,
	}
	if choice.FinishReason != nil {
		chunk.FinishReason = *choice.FinishReason
	}
	if wc.Usage != nil {
		chunk.Usage = &Usage{InputTokens: wc.Usage.PromptTokens, OutputTokens: wc.Usage.CompletionTokens}
	}
	if len(choice.Delta.ToolCalls) > 0 {
		chunk.ToolCallDelta = state.accumulate(choice.Delta.ToolCalls)
	}
	if chunk.FinishReason != "" {
		if err := state.ValidateComplete(); err != nil {
			return CanonicalChunk{}, err
		}
	}
	return chunk, nil
}

func toCanonicalToolCalls(wtcs []wireToolCall) []ToolCall {
	if len(wtcs) == 0 {
		return nil
	}
	out := make([]ToolCall, len(wtcs))
	for i, wtc := range wtcs {
		out[i] = ToolCall{ID: wtc.ID, Name: wtc.Function.Name, Arguments: wtc.Function.Arguments}
	}
	return out
}
