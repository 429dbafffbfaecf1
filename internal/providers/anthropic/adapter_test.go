package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/synaxis-gateway/synaxis/internal/providers"
	"github.com/synaxis-gateway/synaxis/internal/translate"
)

func TestSend_success(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("expected x-api-key header, got %s", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") != "2023-06-01" {
			t.Errorf("expected anthropic-version header")
		}
		if r.URL.Path != "/v1/messages" {
			t.Errorf("expected /v1/messages, got %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content":     []map[string]string{{"type": "text", "text": "Hello from Claude!"}},
			"stop_reason": "end_turn",
			"usage":       map[string]int{"input_tokens": 2, "output_tokens": 4},
		})
	}))
	defer ts.Close()

	a := New("anthropic", "test-key", ts.URL)
	resp, err := a.Send(context.Background(), "claude-opus", translate.CanonicalRequest{
		Messages: []translate.Message{{Role: translate.RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "Hello from Claude!" {
		t.Errorf("unexpected content: %q", resp.Content)
	}
}

func TestSend_payloadIncludesDefaultMaxTokensAndHoistsSystem(t *testing.T) {
	var payload map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&payload)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"ok"}]}`))
	}))
	defer ts.Close()

	a := New("anthropic", "key", ts.URL)
	_, _ = a.Send(context.Background(), "claude-opus", translate.CanonicalRequest{
		Messages: []translate.Message{
			{Role: translate.RoleSystem, Content: "be terse"},
			{Role: translate.RoleUser, Content: "hi"},
		},
	})

	if payload["max_tokens"] != float64(4096) {
		t.Errorf("expected max_tokens=4096, got %v", payload["max_tokens"])
	}
	if payload["system"] != "be terse" {
		t.Errorf("expected hoisted system field, got %v", payload["system"])
	}
}

func TestClassifyError_rateLimit429And529(t *testing.T) {
	for _, status := range []int{http.StatusTooManyRequests, 529} {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"rate limited"}}`))
		}))
		a := New("anthropic", "test-key", ts.URL)
		_, err := a.Send(context.Background(), "claude-opus", translate.CanonicalRequest{
			Messages: []translate.Message{{Role: translate.RoleUser, Content: "hi"}},
		})
		if err == nil {
			t.Fatalf("status %d: expected error", status)
		}
		if ce := a.ClassifyError(err); ce.Class != providers.ErrRateLimited {
			t.Errorf("status %d: expected ErrRateLimited, got %s", status, ce.Class)
		}
		ts.Close()
	}
}

func TestClassifyError_promptTooLong(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"prompt_too_long: prompt is too long"}}`))
	}))
	defer ts.Close()

	a := New("anthropic", "test-key", ts.URL)
	_, err := a.Send(context.Background(), "claude-opus", translate.CanonicalRequest{
		Messages: []translate.Message{{Role: translate.RoleUser, Content: "hi"}},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if ce := a.ClassifyError(err); ce.Class != providers.ErrContextOverflow {
		t.Errorf("expected ErrContextOverflow, got %s", ce.Class)
	}
}

func TestClassifyError_serverError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"internal error"}}`))
	}))
	defer ts.Close()

	a := New("anthropic", "test-key", ts.URL)
	_, err := a.Send(context.Background(), "claude-opus", translate.CanonicalRequest{
		Messages: []translate.Message{{Role: translate.RoleUser, Content: "hi"}},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if ce := a.ClassifyError(err); ce.Class != providers.ErrTransient {
		t.Errorf("expected ErrTransient, got %s", ce.Class)
	}
}

func TestHealthEndpoint(t *testing.T) {
	a := New("anthropic", "key", "https://api.anthropic.com")
	if got := a.HealthEndpoint(); got != "https://api.anthropic.com/v1/messages" {
		t.Errorf("unexpected health endpoint: %s", got)
	}
}

func TestSendStream_parsesNamedEventsInOrder(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		fmt.Fprint(w, "event: content_block_delta\ndata: {\"index\":0,\"delta\":{\"type\":\"text_delta\",\"text\":\"hi\"}}\n\n")
		flusher.Flush()
		fmt.Fprint(w, "event: message_delta\ndata: {\"delta\":{\"stop_reason\":\"end_turn\"},\"usage\":{\"input_tokens\":1,\"output_tokens\":2}}\n\n")
		flusher.Flush()
		fmt.Fprint(w, "event: message_stop\ndata: {}\n\n")
		flusher.Flush()
	}))
	defer ts.Close()

	a := New("anthropic", "key", ts.URL)
	chunks, errs := a.SendStream(context.Background(), "claude-opus", translate.CanonicalRequest{Stream: true})

	var got []translate.CanonicalChunk
	for c := range chunks {
		got = append(got, c)
	}
	if err := <-errs; err != nil {
		t.Fatalf("unexpected stream error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(got))
	}
	if got[0].ContentDelta != "hi" {
		t.Errorf("expected text delta 'hi', got %q", got[0].ContentDelta)
	}
	if got[1].FinishReason != "end_turn" {
		t.Errorf("expected finish reason end_turn, got %q", got[1].FinishReason)
	}
	if !got[2].Done {
		t.Error("expected final chunk Done=true")
	}
}
