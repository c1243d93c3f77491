package nl2sql

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAnthropicTranslatorJoinsTextBlocks(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/messages") {
			t.Fatalf("path = %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-sonnet-4-5-20250929",
			"content": [{"type": "text", "text": "SELECT 1"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 10, "output_tokens": 2}
		}`))
	}))
	defer server.Close()

	translator, err := NewAnthropicTranslator(AnthropicConfig{BaseURL: server.URL, APIKey: "a-test"})
	if err != nil {
		t.Fatalf("NewAnthropicTranslator() error = %v", err)
	}
	result, err := translator.Translate(context.Background(), Request{Question: "how many wines"})
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if result.Text != "SELECT 1" || result.Provider != ProviderAnthropic {
		t.Fatalf("Translate() = %#v", result)
	}
	if captured["system"] != systemPrompt {
		t.Fatalf("system = %#v", captured["system"])
	}
}
