package translate

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestAnthropicTranslateRequest_hoistsSystemMessage(t *testing.T) {
	req := CanonicalRequest{
		Model: "claude-3-5-sonnet",
		Messages: []Message{
			{Role: RoleSystem, Content: "be terse"},
			{Role: RoleUser, Content: "hello"},
		},
	}
	raw, err := AnthropicTranslator{}.TranslateRequest(req)
	if err != nil {
		t.Fatalf("TranslateRequest: %v", err)
	}
	var decoded anthropicRequest
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.System != "be terse" {
		t.Errorf("expected system field to carry hoisted message, got %q", decoded.System)
	}
	if len(decoded.Messages) != 1 || decoded.Messages[0].Role != "user" {
		t.Fatalf("expected only the user message in Messages, got %+v", decoded.Messages)
	}
}

func TestAnthropicTranslateRequest_defaultMaxTokens(t *testing.T) {
	req := CanonicalRequest{Model: "claude-3-5-sonnet", Messages: []Message{{Role: RoleUser, Content: "hi"}}}
	raw, err := AnthropicTranslator{}.TranslateRequest(req)
	if err != nil {
		t.Fatalf("TranslateRequest: %v", err)
	}
	var decoded anthropicRequest
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.MaxTokens != anthropicDefaultMaxTokens {
		t.Errorf("expected default max_tokens %d, got %d", anthropicDefaultMaxTokens, decoded.MaxTokens)
	}
}

func TestAnthropicTranslateResponse_concatenatesTextBlocks(t *testing.T) {
	wire := `{
		"content": [{"type":"text","text":"hello "}, {"type":"text","text":"world"}],
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 10, "output_tokens": 5}
	}`
	resp, err := AnthropicTranslator{}.TranslateResponse([]byte(wire))
	if err != nil {
		t.Fatalf("TranslateResponse: %v", err)
	}
	if !strings.Contains(resp.Content, "hello ") || !strings.Contains(resp.Content, "world") {
		t.Errorf("expected concatenated content, got %q", resp.Content)
	}
	if resp.Usage == nil || resp.Usage.InputTokens != 10 || resp.Usage.OutputTokens != 5 {
		t.Errorf("unexpected usage: %+v", resp.Usage)
	}
}

func TestAnthropicTranslateResponse_extractsToolUse(t *testing.T) {
	wire := `{
		"content": [{"type":"tool_use","id":"call_1","name":"get_weather","input":{"city":"nyc"}}],
		"stop_reason": "tool_use",
		"usage": {"input_tokens": 1, "output_tokens": 1}
	}`
	resp, err := AnthropicTranslator{}.TranslateResponse([]byte(wire))
	if err != nil {
		t.Fatalf("TranslateResponse: %v", err)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].Name != "get_weather" {
		t.Fatalf("expected one get_weather tool call, got %+v", resp.ToolCalls)
	}
}

func TestAnthropicTranslateChunk_textDelta(t *testing.T) {
	state := NewChunkState()
	raw := `{"index":0,"delta":{"type":"text_delta","text":"hi"}}`
	chunk, err := AnthropicTranslator{}.TranslateChunk("content_block_delta", []byte(raw), state)
	if err != nil {
		t.Fatalf("TranslateChunk: %v", err)
	}
	if chunk.ContentDelta != "hi" {
		t.Errorf("expected content delta 'hi', got %q", chunk.ContentDelta)
	}
}

func TestAnthropicTranslateChunk_toolUseAccumulatesAcrossEvents(t *testing.T) {
	state := NewChunkState()

	start := `{"index":0,"content_block":{"type":"tool_use","id":"call_1","name":"get_weather"}}`
	if _, err := AnthropicTranslator{}.TranslateChunk("content_block_start", []byte(start), state); err != nil {
		t.Fatalf("content_block_start: %v", err)
	}

	delta1 := `{"index":0,"delta":{"type":"input_json_delta","partial_json":"{\"city\":"}}`
	if _, err := AnthropicTranslator{}.TranslateChunk("content_block_delta", []byte(delta1), state); err != nil {
		t.Fatalf("content_block_delta 1: %v", err)
	}
	delta2 := `{"index":0,"delta":{"type":"input_json_delta","partial_json":"\"nyc\"}"}}`
	if _, err := AnthropicTranslator{}.TranslateChunk("content_block_delta", []byte(delta2), state); err != nil {
		t.Fatalf("content_block_delta 2: %v", err)
	}

	completed := state.Completed()
	if len(completed) != 1 {
		t.Fatalf("expected one completed tool call, got %d", len(completed))
	}
	if completed[0].Name != "get_weather" || completed[0].Arguments != `{"city":"nyc"}` {
		t.Errorf("unexpected completed tool call: %+v", completed[0])
	}
}

func TestAnthropicTranslateChunk_messageStopIsDone(t *testing.T) {
	chunk, err := AnthropicTranslator{}.TranslateChunk("message_stop", []byte(`{}`), NewChunkState())
	if err != nil {
		t.Fatalf("TranslateChunk: %v", err)
	}
	if !chunk.Done {
		t.Error("expected Done to be true on message_stop")
	}
}

func TestAnthropicTranslateChunk_messageDeltaCarriesUsageAndFinishReason(t *testing.T) {
	raw := `{"delta":{"stop_reason":"end_turn"},"usage":{"input_tokens":3,"output_tokens":7}}`
	chunk, err := AnthropicTranslator{}.TranslateChunk("message_delta", []byte(raw), NewChunkState())
	if err != nil {
		t.Fatalf("TranslateChunk: %v", err)
	}
	if chunk.FinishReason != "end_turn" {
		t.Errorf("expected finish reason end_turn, got %q", chunk.FinishReason)
	}
	if chunk.Usage == nil || chunk.Usage.OutputTokens != 7 {
		t.Errorf("unexpected usage: %+v", chunk.Usage)
	}
}
